// Package affinity maintains per-(agent, division) quality scores.
//
// A score is an exponential moving average over the qc verdicts of the
// agent's findings in that division, seeded at 0.5 and bounded to [0,1].
// Higher scores bias the scheduler toward handing the agent more work in
// that division.
package affinity

import (
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/internal/store"
)

// Seed is the starting score for a pair with no track record.
const Seed = 0.5

// Decay is the weight of the prior score in each update.
const Decay = 0.9

// Reward maps a resolved verdict to its score contribution.
func Reward(v store.Verdict) float64 {
	switch v {
	case store.VerdictPassed:
		return 1.0
	case store.VerdictFlagged:
		return 0.5
	default:
		return 0.0
	}
}

// Next computes the updated score: Decay*old + (1-Decay)*reward.
func Next(old, reward float64) float64 {
	return Decay*old + (1-Decay)*reward
}

// Tracker applies verdict outcomes to the persisted scores.
type Tracker struct {
	store *store.Store
}

// NewTracker creates a Tracker over the given store.
func NewTracker(s *store.Store) *Tracker {
	return &Tracker{store: s}
}

// Apply folds one resolved verdict into the (agent, division) score inside
// tx, lazily creating the record at the seed value.
func (t *Tracker) Apply(tx *gorm.DB, agentID, divisionID string, verdict store.Verdict) error {
	row, err := t.store.GetAffinityScore(tx, agentID, divisionID)
	if err != nil {
		return err
	}
	if row == nil {
		row = &store.AffinityScore{
			AgentID:    agentID,
			DivisionID: divisionID,
			Score:      Seed,
			TasksCount: 0,
		}
	}

	row.Score = Next(row.Score, Reward(verdict))
	row.TasksCount++

	return t.store.SaveAffinityScore(tx, row)
}
