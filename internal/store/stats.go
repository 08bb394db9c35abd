package store

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LahousseBram/CureSwarm/types"
)

// SwarmStats is the operational snapshot served by the stats endpoint.
type SwarmStats struct {
	Agents         int64 `json:"agents"`
	ActiveAgents   int64 `json:"active_agents"`
	TasksTotal     int64 `json:"tasks_total"`
	TasksPending   int64 `json:"tasks_pending"`
	TasksAssigned  int64 `json:"tasks_assigned"`
	TasksCompleted int64 `json:"tasks_completed"`
	Findings       int64 `json:"findings"`
	FindingsPassed int64 `json:"findings_passed"`
	Citations      int64 `json:"citations"`
	Reviews        int64 `json:"reviews"`
	Hypotheses     int64 `json:"hypotheses"`
}

// QCStats summarizes the review pipeline.
type QCStats struct {
	Pending       int64 `json:"pending"`
	Passed        int64 `json:"passed"`
	Flagged       int64 `json:"flagged"`
	Rejected      int64 `json:"rejected"`
	TotalReviews  int64 `json:"total_reviews"`
	AwaitingFirst int64 `json:"awaiting_first_review"`
}

// GetStats gathers the swarm snapshot. The independent counts run
// concurrently on the shared pool.
func (s *Store) GetStats(ctx context.Context) (*SwarmStats, error) {
	stats := &SwarmStats{}
	activeCutoff := time.Now().UTC().Add(-1 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db(gctx).Model(&Agent{}).Count(&stats.Agents).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Agent{}).Where("last_active > ?", activeCutoff).Count(&stats.ActiveAgents).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Task{}).Count(&stats.TasksTotal).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Task{}).Where("status = ?", TaskPending).Count(&stats.TasksPending).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Task{}).Where("status = ?", TaskAssigned).Count(&stats.TasksAssigned).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Task{}).Where("status = ?", TaskCompleted).Count(&stats.TasksCompleted).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Finding{}).Count(&stats.Findings).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Finding{}).Where("qc_status = ?", QCPassed).Count(&stats.FindingsPassed).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Citation{}).Count(&stats.Citations).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&QCReview{}).Count(&stats.Reviews).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Hypothesis{}).Count(&stats.Hypotheses).Error
	})

	if err := g.Wait(); err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return stats, nil
}

// GetQCStats gathers the review-pipeline snapshot.
func (s *Store) GetQCStats(ctx context.Context) (*QCStats, error) {
	stats := &QCStats{}

	g, gctx := errgroup.WithContext(ctx)

	byStatus := func(dest *int64, status QCStatus) func() error {
		return func() error {
			return s.db(gctx).Model(&Finding{}).Where("qc_status = ?", status).Count(dest).Error
		}
	}

	g.Go(byStatus(&stats.Pending, QCPending))
	g.Go(byStatus(&stats.Passed, QCPassed))
	g.Go(byStatus(&stats.Flagged, QCFlagged))
	g.Go(byStatus(&stats.Rejected, QCRejected))
	g.Go(func() error {
		return s.db(gctx).Model(&QCReview{}).Count(&stats.TotalReviews).Error
	})
	g.Go(func() error {
		return s.db(gctx).Model(&Finding{}).
			Where("qc_status = ? AND review_count = 0", QCPending).
			Count(&stats.AwaitingFirst).Error
	})

	if err := g.Wait(); err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return stats, nil
}
