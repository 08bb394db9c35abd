package store

import (
	"context"

	"github.com/LahousseBram/CureSwarm/types"
	"gorm.io/gorm"
)

// CreateHypothesis persists a submitted hypothesis inside tx.
func (s *Store) CreateHypothesis(tx *gorm.DB, h *Hypothesis) error {
	if err := tx.Create(h).Error; err != nil {
		if isUniqueViolation(err) {
			return types.Conflict("hypothesis already submitted for this task")
		}
		return types.StoreUnavailable(err)
	}
	return nil
}

// GetHypothesis looks up a hypothesis by id.
func (s *Store) GetHypothesis(ctx context.Context, id string) (*Hypothesis, error) {
	var h Hypothesis
	if err := s.db(ctx).First(&h, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "hypothesis", id)
	}
	return &h, nil
}

// ListHypotheses returns hypotheses, most upvoted first then newest.
func (s *Store) ListHypotheses(ctx context.Context, divisionID string, limit int) ([]Hypothesis, error) {
	q := s.db(ctx).Order("upvotes DESC, created_at DESC")
	if divisionID != "" {
		q = q.Where("division_id = ?", divisionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var hs []Hypothesis
	if err := q.Find(&hs).Error; err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return hs, nil
}
