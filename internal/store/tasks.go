package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/types"
)

// CreateTask persists a new task and bumps its division's task counter.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	err := s.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		return tx.Model(&Division{}).Where("id = ?", task.DivisionID).
			Update("total_tasks", gorm.Expr("total_tasks + 1")).Error
	})
	if err != nil {
		return translateError(err, "task", task.ID)
	}
	return nil
}

// GetTask looks up a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := s.db(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "task", id)
	}
	return &task, nil
}

// OldestPendingResearch returns the oldest pending research and synthesis
// tasks, capped at limit. This is the candidate window the scheduler ranks
// by affinity.
func (s *Store) OldestPendingResearch(ctx context.Context, limit int) ([]Task, error) {
	var tasks []Task
	err := s.db(ctx).
		Where("status = ? AND kind IN ?", TaskPending, []TaskKind{KindResearch, KindSynthesis}).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return tasks, nil
}

// NewestPendingHypothesis returns the division's most recently created
// unclaimed hypothesis task, or nil if none exists.
func (s *Store) NewestPendingHypothesis(ctx context.Context, divisionID string) (*Task, error) {
	var task Task
	err := s.db(ctx).
		Where("division_id = ? AND status = ? AND kind = ?", divisionID, TaskPending, KindHypothesis).
		Order("created_at DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return &task, nil
}

// ClaimTask atomically transitions a pending task to assigned. The status
// guard in the WHERE clause is what makes concurrent claims safe: of two
// racing callers, exactly one sees RowsAffected == 1.
func (s *Store) ClaimTask(ctx context.Context, taskID, agentID string, now time.Time) (bool, error) {
	res := s.db(ctx).Model(&Task{}).
		Where("id = ? AND status = ?", taskID, TaskPending).
		Updates(map[string]any{
			"status":      TaskAssigned,
			"assigned_to": agentID,
			"assigned_at": now,
		})
	if res.Error != nil {
		return false, types.StoreUnavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CompleteTask marks an assigned task completed inside tx and bumps the
// division's completion counter. Guarded on current status so a reclaimed
// and re-assigned task cannot be completed by its previous holder.
func (s *Store) CompleteTask(tx *gorm.DB, taskID, agentID string, now time.Time) error {
	res := tx.Model(&Task{}).
		Where("id = ? AND status = ? AND assigned_to = ?", taskID, TaskAssigned, agentID).
		Updates(map[string]any{
			"status":       TaskCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return types.StoreUnavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.Conflict("task is not assigned to this agent")
	}

	var task Task
	if err := tx.Select("division_id").First(&task, "id = ?", taskID).Error; err != nil {
		return types.StoreUnavailable(err)
	}
	err := tx.Model(&Division{}).Where("id = ?", task.DivisionID).
		Update("completed_tasks", gorm.Expr("completed_tasks + 1")).Error
	if err != nil {
		return types.StoreUnavailable(err)
	}
	return nil
}

// ReclaimStale returns every task assigned before the cutoff to the pending
// pool, clearing its assignee. Idempotent; safe to run concurrently with
// claims because the cutoff guard only matches expired assignments.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db(ctx).Model(&Task{}).
		Where("status = ? AND assigned_at < ?", TaskAssigned, cutoff).
		Updates(map[string]any{
			"status":      TaskPending,
			"assigned_to": nil,
			"assigned_at": nil,
		})
	if res.Error != nil {
		return 0, types.StoreUnavailable(res.Error)
	}
	return res.RowsAffected, nil
}

// HasUnclaimedHypothesis reports whether the division already has a pending
// hypothesis task waiting to be picked up.
func (s *Store) HasUnclaimedHypothesis(ctx context.Context, divisionID string) (bool, error) {
	var count int64
	err := s.db(ctx).Model(&Task{}).
		Where("division_id = ? AND kind = ? AND status = ?", divisionID, KindHypothesis, TaskPending).
		Count(&count).Error
	if err != nil {
		return false, types.StoreUnavailable(err)
	}
	return count > 0, nil
}

// HasLiveSynthesis reports whether the division has a synthesis task that is
// not yet completed. Live items block generating another for the same pair.
func (s *Store) HasLiveSynthesis(ctx context.Context, divisionID string) (bool, error) {
	var count int64
	err := s.db(ctx).Model(&Task{}).
		Where("division_id = ? AND kind = ? AND status <> ?", divisionID, KindSynthesis, TaskCompleted).
		Count(&count).Error
	if err != nil {
		return false, types.StoreUnavailable(err)
	}
	return count > 0, nil
}

// CountTasksByKind counts tasks of one kind, optionally restricted to a
// status. An empty status matches everything.
func (s *Store) CountTasksByKind(ctx context.Context, kind TaskKind, status TaskStatus) (int64, error) {
	q := s.db(ctx).Model(&Task{}).Where("kind = ?", kind)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, types.StoreUnavailable(err)
	}
	return count, nil
}

// ListTasks returns tasks filtered by status, newest first. An empty status
// matches everything.
func (s *Store) ListTasks(ctx context.Context, status TaskStatus, limit int) ([]Task, error) {
	q := s.db(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return tasks, nil
}
