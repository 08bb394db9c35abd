package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/types"
)

// CreateFinding persists a finding and its citations inside tx. The unique
// index on task_id turns a double submission into a conflict error with no
// partial state.
func (s *Store) CreateFinding(tx *gorm.DB, finding *Finding, citations []Citation) error {
	if err := tx.Create(finding).Error; err != nil {
		if isUniqueViolation(err) {
			return types.Conflict("finding already submitted for this task")
		}
		return types.StoreUnavailable(err)
	}
	for i := range citations {
		citations[i].FindingID = finding.ID
	}
	if len(citations) > 0 {
		if err := tx.Create(&citations).Error; err != nil {
			return types.StoreUnavailable(err)
		}
	}
	return nil
}

// GetFinding loads a finding with its citations and reviews.
func (s *Store) GetFinding(ctx context.Context, id string) (*Finding, error) {
	var finding Finding
	err := s.db(ctx).
		Preload("Citations").
		Preload("Reviews").
		First(&finding, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err, "finding", id)
	}
	return &finding, nil
}

// ListFindings returns findings filtered by qc status and division, newest
// first. Empty filters match everything.
func (s *Store) ListFindings(ctx context.Context, qcStatus QCStatus, divisionID string, limit, offset int) ([]Finding, error) {
	q := s.db(ctx).Preload("Citations").Order("created_at DESC")
	if qcStatus != "" {
		q = q.Where("qc_status = ?", qcStatus)
	}
	if divisionID != "" {
		q = q.Where("division_id = ?", divisionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var findings []Finding
	if err := q.Find(&findings).Error; err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return findings, nil
}

// OldestReviewableFinding returns the oldest pending finding that still
// needs reviews and was not authored by the requesting agent, or nil.
func (s *Store) OldestReviewableFinding(ctx context.Context, excludeAgentID string, maxReviews int) (*Finding, error) {
	var finding Finding
	err := s.db(ctx).
		Where("qc_status = ? AND review_count < ? AND agent_id <> ?", QCPending, maxReviews, excludeAgentID).
		Order("created_at ASC").
		First(&finding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return &finding, nil
}

// PassedFindingsWithNotes returns the division's passed findings that carry
// a non-empty contradiction or gap note, most recent first.
func (s *Store) PassedFindingsWithNotes(ctx context.Context, divisionID string) ([]Finding, error) {
	var findings []Finding
	err := s.db(ctx).
		Where("division_id = ? AND qc_status = ?", divisionID, QCPassed).
		Where("(contradictions <> '' AND contradictions IS NOT NULL) OR (gaps <> '' AND gaps IS NOT NULL)").
		Order("created_at DESC").
		Find(&findings).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return findings, nil
}

// PassedNoteCountsByDivision returns, per division, the number of passed
// findings that carry a contradiction or gap note.
func (s *Store) PassedNoteCountsByDivision(ctx context.Context) (map[string]int, error) {
	type row struct {
		DivisionID string
		N          int
	}
	var rows []row
	err := s.db(ctx).Model(&Finding{}).
		Select("division_id, COUNT(*) AS n").
		Where("qc_status = ?", QCPassed).
		Where("(contradictions <> '' AND contradictions IS NOT NULL) OR (gaps <> '' AND gaps IS NOT NULL)").
		Group("division_id").
		Scan(&rows).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.DivisionID] = r.N
	}
	return counts, nil
}

// FindingCountsByDivision returns the number of findings per division.
func (s *Store) FindingCountsByDivision(ctx context.Context) (map[string]int, error) {
	return s.findingCountsByDivision(ctx, false)
}

// PassedFindingCountsByDivision returns, per division, the number of findings
// that passed quality control.
func (s *Store) PassedFindingCountsByDivision(ctx context.Context) (map[string]int, error) {
	return s.findingCountsByDivision(ctx, true)
}

func (s *Store) findingCountsByDivision(ctx context.Context, passedOnly bool) (map[string]int, error) {
	type row struct {
		DivisionID string
		N          int
	}
	q := s.db(ctx).Model(&Finding{}).
		Select("division_id, COUNT(*) AS n").
		Group("division_id")
	if passedOnly {
		q = q.Where("qc_status = ?", QCPassed)
	}
	var rows []row
	err := q.Scan(&rows).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.DivisionID] = r.N
	}
	return counts, nil
}

// FindingsByDivision returns all findings for one division, newest first.
func (s *Store) FindingsByDivision(ctx context.Context, divisionID string) ([]Finding, error) {
	var findings []Finding
	err := s.db(ctx).Preload("Citations").
		Where("division_id = ?", divisionID).
		Order("created_at DESC").
		Find(&findings).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return findings, nil
}

// SetFindingStatus records the resolved qc status inside tx. Guarded on the
// current pending status so a resolved finding never changes again.
func (s *Store) SetFindingStatus(tx *gorm.DB, findingID string, status QCStatus) (bool, error) {
	res := tx.Model(&Finding{}).
		Where("id = ? AND qc_status = ?", findingID, QCPending).
		Update("qc_status", status)
	if res.Error != nil {
		return false, types.StoreUnavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IncrementReviewCount bumps the finding's review counter inside tx.
func (s *Store) IncrementReviewCount(tx *gorm.DB, findingID string) error {
	err := tx.Model(&Finding{}).Where("id = ?", findingID).
		Update("review_count", gorm.Expr("review_count + 1")).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}

// MarkCitationVerified flags one citation as verified.
func (s *Store) MarkCitationVerified(ctx context.Context, citationID string) error {
	err := s.db(ctx).Model(&Citation{}).Where("id = ?", citationID).
		Update("verified", true).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}
