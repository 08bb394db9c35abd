package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LahousseBram/CureSwarm/types"
)

// AffinityScores returns the agent's per-division scores as a map.
// An empty map means the agent has no track record yet (cold start).
func (s *Store) AffinityScores(ctx context.Context, agentID string) (map[string]float64, error) {
	var rows []AffinityScore
	if err := s.db(ctx).Where("agent_id = ?", agentID).Find(&rows).Error; err != nil {
		return nil, types.StoreUnavailable(err)
	}
	scores := make(map[string]float64, len(rows))
	for _, r := range rows {
		scores[r.DivisionID] = r.Score
	}
	return scores, nil
}

// GetAffinityScore loads one (agent, division) score inside tx, or nil if
// the pair has no record yet.
func (s *Store) GetAffinityScore(tx *gorm.DB, agentID, divisionID string) (*AffinityScore, error) {
	var row AffinityScore
	err := tx.Where("agent_id = ? AND division_id = ?", agentID, divisionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return &row, nil
}

// SaveAffinityScore upserts one (agent, division) score inside tx.
func (s *Store) SaveAffinityScore(tx *gorm.DB, row *AffinityScore) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}, {Name: "division_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "tasks_count", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}
