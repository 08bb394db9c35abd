// Package store implements the relational persistence layer: entity models,
// predicate scans, and the single-row conditional updates that make claims
// and reclaims safe under concurrent requests.
package store

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/types"
)

// Store wraps the database pool with the domain's persistence operations.
// It holds no scheduling state of its own; all coordination lives in the
// database so any number of service replicas can share it.
type Store struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// New creates a Store on top of an open pool.
func New(pool *database.PoolManager, logger *zap.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "store")),
	}
}

// Migrate creates or updates the schema for all entities.
func (s *Store) Migrate() error {
	return s.pool.DB().AutoMigrate(
		&Mission{},
		&Division{},
		&Agent{},
		&Task{},
		&Finding{},
		&Citation{},
		&QCReview{},
		&Hypothesis{},
		&AffinityScore{},
	)
}

// Pool exposes the underlying pool for health checks and transactions.
func (s *Store) Pool() *database.PoolManager {
	return s.pool
}

// db returns a context-bound handle.
func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

// WithTransaction runs fn inside a single short-lived transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.pool.WithTransaction(ctx, fn)
}

// translateError maps driver-level failures onto the service error taxonomy.
func translateError(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return types.NotFound(entity, id)
	case isUniqueViolation(err):
		return types.Conflict(entity + " already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.StoreUnavailable(err)
	default:
		return types.StoreUnavailable(err)
	}
}

// isUniqueViolation detects unique-index conflicts for both supported drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// sqlite
	if strings.Contains(msg, "unique constraint failed") {
		return true
	}
	// postgres (SQLSTATE 23505)
	if strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "23505") {
		return true
	}
	return false
}
