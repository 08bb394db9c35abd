package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/types"
)

// CreateAgent persists a new agent.
func (s *Store) CreateAgent(ctx context.Context, agent *Agent) error {
	if err := s.db(ctx).Create(agent).Error; err != nil {
		return translateError(err, "agent", agent.ID)
	}
	return nil
}

// GetAgent looks up an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	if err := s.db(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "agent", id)
	}
	return &agent, nil
}

// ListAgents returns all agents, most recently active first.
func (s *Store) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := s.db(ctx).Order("last_active DESC").Find(&agents).Error; err != nil {
		return nil, translateError(err, "agent", "")
	}
	return agents, nil
}

// FindRecentAgent returns an agent with the same name and model registered
// after the cutoff, or nil if none exists. Used to deduplicate registrations
// from clients that retry.
func (s *Store) FindRecentAgent(ctx context.Context, name, model string, since time.Time) (*Agent, error) {
	var agent Agent
	err := s.db(ctx).
		Where("name = ? AND model = ? AND created_at > ?", name, model, since).
		Order("created_at DESC").
		First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return &agent, nil
}

// TouchAgent updates the agent's last-activity timestamp.
func (s *Store) TouchAgent(ctx context.Context, id string, now time.Time) error {
	res := s.db(ctx).Model(&Agent{}).Where("id = ?", id).Update("last_active", now)
	if res.Error != nil {
		return types.StoreUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NotFound("agent", id)
	}
	return nil
}

// RecordTaskCompletion bumps the agent's completion and citation counters.
func (s *Store) RecordTaskCompletion(tx *gorm.DB, agentID string, citations int) error {
	err := tx.Model(&Agent{}).Where("id = ?", agentID).Updates(map[string]any{
		"tasks_completed": gorm.Expr("tasks_completed + 1"),
		"citations_added": gorm.Expr("citations_added + ?", citations),
		"last_active":     time.Now().UTC(),
	}).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}

// RecordReviewCompletion bumps the agent's completed-review counter.
func (s *Store) RecordReviewCompletion(tx *gorm.DB, agentID string) error {
	err := tx.Model(&Agent{}).Where("id = ?", agentID).Updates(map[string]any{
		"qc_completed": gorm.Expr("qc_completed + 1"),
		"last_active":  time.Now().UTC(),
	}).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}
