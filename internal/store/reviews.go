package store

import (
	"github.com/LahousseBram/CureSwarm/types"
	"gorm.io/gorm"
)

// CreateReview inserts a review inside tx. The composite unique index on
// (finding_id, agent_id) turns a duplicate review into a conflict error.
func (s *Store) CreateReview(tx *gorm.DB, review *QCReview) error {
	if err := tx.Create(review).Error; err != nil {
		if isUniqueViolation(err) {
			return types.Conflict("agent already reviewed this finding")
		}
		return types.StoreUnavailable(err)
	}
	return nil
}

// ReviewsForFinding loads all reviews of one finding inside tx, oldest first.
func (s *Store) ReviewsForFinding(tx *gorm.DB, findingID string) ([]QCReview, error) {
	var reviews []QCReview
	err := tx.Where("finding_id = ?", findingID).Order("created_at ASC").Find(&reviews).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return reviews, nil
}

// ReviewerQualityScores returns each listed agent's overall quality score.
func (s *Store) ReviewerQualityScores(tx *gorm.DB, agentIDs []string) (map[string]float64, error) {
	if len(agentIDs) == 0 {
		return map[string]float64{}, nil
	}
	var agents []Agent
	err := tx.Select("id, quality_score").Where("id IN ?", agentIDs).Find(&agents).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	scores := make(map[string]float64, len(agents))
	for _, a := range agents {
		scores[a.ID] = a.QualityScore
	}
	return scores, nil
}
