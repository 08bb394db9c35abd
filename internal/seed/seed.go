// Package seed provisions the database with the research mission catalog:
// the mission record, its divisions, and the initial pool of research tasks.
// Seeding is idempotent and runs once per empty database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/LahousseBram/CureSwarm/internal/store"
)

//go:embed mission.yaml
var defaultMissionYAML []byte

// Mission is the seed file's mission header.
type Mission struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Division is one topical partition of the mission.
type Division struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Task is one seed research task.
type Task struct {
	Division      string   `yaml:"division"`
	Topic         string   `yaml:"topic"`
	Description   string   `yaml:"description"`
	SearchQueries []string `yaml:"search_queries"`
}

// Catalog is the parsed mission seed file.
type Catalog struct {
	Mission   Mission    `yaml:"mission"`
	Divisions []Division `yaml:"divisions"`
	Tasks     []Task     `yaml:"tasks"`
}

// Load reads the mission catalog from path, or the embedded default when path
// is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultMissionYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mission catalog: %w", err)
		}
		raw = b
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse mission catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.Mission.ID == "" || c.Mission.Name == "" {
		return fmt.Errorf("mission catalog: mission id and name are required")
	}
	ids := make(map[string]bool, len(c.Divisions))
	for _, d := range c.Divisions {
		if d.ID == "" || d.Name == "" {
			return fmt.Errorf("mission catalog: division id and name are required")
		}
		if ids[d.ID] {
			return fmt.Errorf("mission catalog: duplicate division %q", d.ID)
		}
		ids[d.ID] = true
	}
	for _, t := range c.Tasks {
		if !ids[t.Division] {
			return fmt.Errorf("mission catalog: task %q references unknown division %q", t.Topic, t.Division)
		}
	}
	return nil
}

// Apply writes the catalog into an empty database. A database that already
// holds a mission is left untouched.
func Apply(ctx context.Context, s *store.Store, c *Catalog, logger *zap.Logger) error {
	n, err := s.CountMissions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debug("database already seeded, skipping")
		return nil
	}

	if err := s.CreateMission(ctx, &store.Mission{
		ID:          c.Mission.ID,
		Name:        c.Mission.Name,
		Description: c.Mission.Description,
		Status:      "active",
	}); err != nil {
		return err
	}

	// total_tasks is maintained by CreateTask below, so divisions start at zero
	for _, d := range c.Divisions {
		if err := s.CreateDivision(ctx, &store.Division{
			ID:          d.ID,
			MissionID:   c.Mission.ID,
			Name:        d.Name,
			Description: d.Description,
		}); err != nil {
			return err
		}
	}

	for _, t := range c.Tasks {
		if err := s.CreateTask(ctx, &store.Task{
			ID:            uuid.NewString(),
			MissionID:     c.Mission.ID,
			DivisionID:    t.Division,
			Kind:          store.KindResearch,
			Topic:         t.Topic,
			Description:   t.Description,
			SearchQueries: store.StringList(t.SearchQueries),
			Status:        store.TaskPending,
		}); err != nil {
			return err
		}
	}

	logger.Info("mission catalog seeded",
		zap.String("mission_id", c.Mission.ID),
		zap.Int("divisions", len(c.Divisions)),
		zap.Int("tasks", len(c.Tasks)),
	)
	return nil
}
