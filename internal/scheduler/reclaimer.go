package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/metrics"
	"github.com/LahousseBram/CureSwarm/internal/store"
)

// Reclaimer returns expired task claims to the pending pool on a fixed
// interval. It never raises to its caller; sweep failures are logged and the
// next tick tries again.
type Reclaimer struct {
	store     *store.Store
	collector *metrics.Collector
	cfg       config.SwarmConfig
	logger    *zap.Logger
}

// NewReclaimer creates a Reclaimer. collector may be nil.
func NewReclaimer(s *store.Store, collector *metrics.Collector, cfg config.SwarmConfig, logger *zap.Logger) *Reclaimer {
	return &Reclaimer{
		store:     s,
		collector: collector,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "reclaimer")),
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReclaimInterval)
	defer ticker.Stop()

	r.logger.Info("reclaimer started",
		zap.Duration("interval", r.cfg.ReclaimInterval),
		zap.Duration("stale_timeout", r.cfg.StaleTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer stopped")
			return
		case <-ticker.C:
			r.ReclaimOnce(ctx)
		}
	}
}

// ReclaimOnce runs a single sweep and returns the number of reclaimed tasks.
func (r *Reclaimer) ReclaimOnce(ctx context.Context) int64 {
	cutoff := time.Now().UTC().Add(-r.cfg.StaleTimeout)

	n, err := r.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		r.logger.Error("stale task reclaim failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		r.logger.Info("stale tasks reclaimed", zap.Int64("count", n))
		if r.collector != nil {
			r.collector.RecordTasksReclaimed(n)
		}
	}
	return n
}
