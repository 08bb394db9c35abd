// Package consensus folds per-finding reviews into an authoritative qc
// verdict via a weighted majority rule.
package consensus

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/internal/affinity"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
)

// Rules holds the tally thresholds. The defaults are deliberate literals
// carried over from production tuning; change them through config, not code.
type Rules struct {
	// MinReviews is the number of reviews required before resolution is
	// considered at all.
	MinReviews int
	// EarlyThreshold is the weighted score the leading verdict must reach
	// to resolve at exactly MinReviews reviews.
	EarlyThreshold float64
	// LowTrustCutoff is the reviewer quality score below which a review
	// counts at reduced weight.
	LowTrustCutoff float64
	// LowTrustWeight is the discounted weight of a low-trust review.
	LowTrustWeight float64
}

// DefaultRules returns the production tally rules.
func DefaultRules() Rules {
	return Rules{
		MinReviews:     2,
		EarlyThreshold: 1.5,
		LowTrustCutoff: 0.5,
		LowTrustWeight: 0.5,
	}
}

// Outcome is the result of tallying one finding's reviews.
type Outcome struct {
	Resolved bool
	Verdict  store.Verdict
	Weights  map[store.Verdict]float64
}

// Tally folds the reviews into an outcome. quality maps reviewer id to the
// reviewer's overall quality score; absent reviewers count at full weight.
//
// At exactly MinReviews reviews the leading verdict must be the unique
// maximum and reach EarlyThreshold. Beyond that a unique maximum suffices;
// a tie leaves the finding pending.
func (r Rules) Tally(reviews []store.QCReview, quality map[string]float64) Outcome {
	weights := make(map[store.Verdict]float64, 3)
	for _, review := range reviews {
		weight := 1.0
		if q, ok := quality[review.AgentID]; ok && q < r.LowTrustCutoff {
			weight = r.LowTrustWeight
		}
		weights[review.Verdict] += weight
	}

	out := Outcome{Weights: weights}
	if len(reviews) < r.MinReviews {
		return out
	}

	leader, leaderWeight, unique := maxVerdict(weights)
	if !unique {
		return out
	}
	if len(reviews) == r.MinReviews && leaderWeight < r.EarlyThreshold {
		return out
	}

	out.Resolved = true
	out.Verdict = leader
	return out
}

func maxVerdict(weights map[store.Verdict]float64) (store.Verdict, float64, bool) {
	var (
		leader store.Verdict
		best   float64
		unique bool
	)
	for v, w := range weights {
		switch {
		case w > best:
			leader, best, unique = v, w, true
		case w == best:
			unique = false
		}
	}
	return leader, best, unique
}

// Result reports what RecordReview did.
type Result struct {
	Resolved    bool
	Status      store.QCStatus
	ReviewCount int
}

// Engine records reviews and applies resolution side effects.
type Engine struct {
	store   *store.Store
	tracker *affinity.Tracker
	rules   Rules
	logger  *zap.Logger
}

// New creates an Engine.
func New(s *store.Store, tracker *affinity.Tracker, rules Rules, logger *zap.Logger) *Engine {
	return &Engine{
		store:   s,
		tracker: tracker,
		rules:   rules,
		logger:  logger.With(zap.String("component", "consensus")),
	}
}

// RecordReview appends one review and re-evaluates the finding's consensus
// state in a single transaction. A duplicate (finding, reviewer) pair fails
// with a conflict and changes nothing. The reviewer's completed-review
// counter is bumped on every accepted review; the author's affinity score
// moves only on the pending-to-resolved transition.
func (e *Engine) RecordReview(ctx context.Context, findingID, reviewerID string, verdict store.Verdict, reasoning string) (*Result, error) {
	var result Result

	err := e.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		var finding store.Finding
		if err := tx.First(&finding, "id = ?", findingID).Error; err != nil {
			return translateLookup(err, findingID)
		}

		review := &store.QCReview{
			ID:        newID(),
			FindingID: findingID,
			AgentID:   reviewerID,
			Verdict:   verdict,
			Reasoning: reasoning,
		}
		if err := e.store.CreateReview(tx, review); err != nil {
			return err
		}
		if err := e.store.IncrementReviewCount(tx, findingID); err != nil {
			return err
		}
		if err := e.store.RecordReviewCompletion(tx, reviewerID); err != nil {
			return err
		}

		reviews, err := e.store.ReviewsForFinding(tx, findingID)
		if err != nil {
			return err
		}
		result.ReviewCount = len(reviews)
		result.Status = finding.QCStatus

		// a resolved finding accepts the review but never changes state
		if finding.QCStatus != store.QCPending {
			return nil
		}

		reviewerIDs := make([]string, 0, len(reviews))
		for _, r := range reviews {
			reviewerIDs = append(reviewerIDs, r.AgentID)
		}
		quality, err := e.store.ReviewerQualityScores(tx, reviewerIDs)
		if err != nil {
			return err
		}

		outcome := e.rules.Tally(reviews, quality)
		if !outcome.Resolved {
			return nil
		}

		changed, err := e.store.SetFindingStatus(tx, findingID, store.QCStatus(outcome.Verdict))
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		result.Resolved = true
		result.Status = store.QCStatus(outcome.Verdict)

		return e.tracker.Apply(tx, finding.AgentID, finding.DivisionID, outcome.Verdict)
	})
	if err != nil {
		return nil, err
	}

	if result.Resolved {
		e.logger.Info("finding resolved",
			zap.String("finding_id", findingID),
			zap.String("status", string(result.Status)),
			zap.Int("reviews", result.ReviewCount),
		)
	}

	return &result, nil
}

func translateLookup(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFound("finding", id)
	}
	return types.StoreUnavailable(err)
}

func newID() string {
	return uuid.NewString()
}
