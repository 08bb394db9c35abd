package store

import (
	"context"

	"github.com/LahousseBram/CureSwarm/types"
)

// CreateMission persists a mission.
func (s *Store) CreateMission(ctx context.Context, m *Mission) error {
	if err := s.db(ctx).Create(m).Error; err != nil {
		return translateError(err, "mission", m.ID)
	}
	return nil
}

// GetMission looks up a mission by id.
func (s *Store) GetMission(ctx context.Context, id string) (*Mission, error) {
	var m Mission
	if err := s.db(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "mission", id)
	}
	return &m, nil
}

// CreateDivision persists a division.
func (s *Store) CreateDivision(ctx context.Context, d *Division) error {
	if err := s.db(ctx).Create(d).Error; err != nil {
		return translateError(err, "division", d.ID)
	}
	return nil
}

// GetDivision looks up a division by id.
func (s *Store) GetDivision(ctx context.Context, id string) (*Division, error) {
	var d Division
	if err := s.db(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "division", id)
	}
	return &d, nil
}

// ListDivisions returns all divisions ordered by priority then name.
func (s *Store) ListDivisions(ctx context.Context) ([]Division, error) {
	var ds []Division
	if err := s.db(ctx).Order("priority DESC, name ASC").Find(&ds).Error; err != nil {
		return nil, types.StoreUnavailable(err)
	}
	return ds, nil
}

// CountMissions returns the number of seeded missions.
func (s *Store) CountMissions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db(ctx).Model(&Mission{}).Count(&n).Error; err != nil {
		return 0, types.StoreUnavailable(err)
	}
	return n, nil
}
