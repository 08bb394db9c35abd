// Package generator derives hypothesis and synthesis tasks from the pool of
// reviewed findings, so completed research feeds back into new work without
// operator input.
package generator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/store"
)

// Rand is the randomness source the scheduler and generator draw from.
// math/rand's *Rand satisfies it; tests swap in a scripted source.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// LockedRand serializes access to an underlying source so one source can be
// handed to several components that draw from it concurrently.
type LockedRand struct {
	mu  sync.Mutex
	src Rand
}

// NewLockedRand wraps src behind a mutex.
func NewLockedRand(src Rand) *LockedRand {
	return &LockedRand{src: src}
}

func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *LockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

// Generator files derived tasks into the work pool.
type Generator struct {
	store   *store.Store
	catalog *Catalog
	cfg     config.SwarmConfig
	logger  *zap.Logger
}

// New creates a Generator.
func New(s *store.Store, catalog *Catalog, cfg config.SwarmConfig, logger *zap.Logger) *Generator {
	return &Generator{
		store:   s,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "generator")),
	}
}

// EligibleHypothesisDivisions lists divisions whose count of passed findings
// with contradiction or gap notes reached the hypothesis threshold, in a
// stable order for the caller's random pick.
func (g *Generator) EligibleHypothesisDivisions(ctx context.Context) ([]string, error) {
	counts, err := g.store.PassedNoteCountsByDivision(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(counts))
	for id, n := range counts {
		if n >= g.cfg.HypothesisFindingMin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GenerateHypothesisTask files a hypothesis task for the division, carrying
// the most recent contradiction and gap notes from its passed findings as
// task metadata. It is a no-op when the division already has an unclaimed
// hypothesis task or when no notes exist; it returns the created task or nil.
func (g *Generator) GenerateHypothesisTask(ctx context.Context, divisionID string) (*store.Task, error) {
	exists, err := g.store.HasUnclaimedHypothesis(ctx, divisionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	findings, err := g.store.ListFindings(ctx, store.QCPassed, divisionID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return nil, nil
	}

	// findings arrive newest first, so the caps keep the most recent notes
	var contradictions, gaps []string
	for _, f := range findings {
		if f.Contradictions != "" && len(contradictions) < g.cfg.NoteAggregationMax {
			contradictions = append(contradictions, f.Contradictions)
		}
		if f.Gaps != "" && len(gaps) < g.cfg.NoteAggregationMax {
			gaps = append(gaps, f.Gaps)
		}
	}
	if len(contradictions) == 0 && len(gaps) == 0 {
		return nil, nil
	}

	division, err := g.store.GetDivision(ctx, divisionID)
	if err != nil {
		return nil, err
	}

	task := &store.Task{
		ID:         uuid.NewString(),
		MissionID:  division.MissionID,
		DivisionID: divisionID,
		Kind:       store.KindHypothesis,
		Topic:      fmt.Sprintf("Hypothesis Generation for %s", division.Name),
		Description: fmt.Sprintf(
			"Based on %d research findings in %s, generate 2-3 testable hypotheses that address the identified contradictions and research gaps. Include hypothesis statements, supporting evidence, experimental approaches, expected impact, and feasibility ratings.",
			len(findings), division.Name),
		SearchQueries: store.StringList{
			fmt.Sprintf("%s research hypotheses", division.Name),
			fmt.Sprintf("%s future research directions", division.Name),
		},
		Status: store.TaskPending,
		Metadata: &store.TaskMetadata{Hypothesis: &store.HypothesisContext{
			DivisionID:     divisionID,
			Contradictions: contradictions,
			Gaps:           gaps,
			SourceFindings: len(findings),
		}},
	}
	if err := g.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	g.logger.Info("hypothesis task generated",
		zap.String("division_id", divisionID),
		zap.Int("source_findings", len(findings)),
	)
	return task, nil
}

// GenerateSynthesisTasks files synthesis tasks for strategic division pairs
// with enough accumulated findings. Fewer than two qualifying divisions is a
// no-op; a pair is skipped while either division still has a live synthesis
// task; at most SynthesisMaxPerRun pairs are considered per call. The task is
// filed under the pair's first division.
func (g *Generator) GenerateSynthesisTasks(ctx context.Context) ([]store.Task, error) {
	counts, err := g.store.FindingCountsByDivision(ctx)
	if err != nil {
		return nil, err
	}

	qualifying := make(map[string]bool, len(counts))
	for id, n := range counts {
		if n >= g.cfg.SynthesisFindingMin {
			qualifying[id] = true
		}
	}
	if len(qualifying) < 2 {
		return nil, nil
	}

	combos := g.catalog.Combinations(qualifying)
	if len(combos) > g.cfg.SynthesisMaxPerRun {
		combos = combos[:g.cfg.SynthesisMaxPerRun]
	}

	var created []store.Task
	for _, pair := range combos {
		a, b := pair[0], pair[1]

		busy, err := g.hasLiveSynthesis(ctx, a, b)
		if err != nil {
			return created, err
		}
		if busy {
			continue
		}

		divA, err := g.store.GetDivision(ctx, a)
		if err != nil {
			return created, err
		}
		divB, err := g.store.GetDivision(ctx, b)
		if err != nil {
			return created, err
		}

		tpl := g.catalog.TemplateFor(a, b, divA.Name, divB.Name)
		task := &store.Task{
			ID:            uuid.NewString(),
			MissionID:     divA.MissionID,
			DivisionID:    a,
			Kind:          store.KindSynthesis,
			Topic:         tpl.Topic,
			Description:   tpl.Description,
			SearchQueries: store.StringList(tpl.SearchQueries),
			Status:        store.TaskPending,
			Metadata: &store.TaskMetadata{Synthesis: &store.SynthesisContext{
				DivisionA: a,
				DivisionB: b,
			}},
		}
		if err := g.store.CreateTask(ctx, task); err != nil {
			return created, err
		}

		g.logger.Info("synthesis task generated",
			zap.String("division_a", a),
			zap.String("division_b", b),
			zap.String("topic", tpl.Topic),
		)
		created = append(created, *task)
	}
	return created, nil
}

func (g *Generator) hasLiveSynthesis(ctx context.Context, divisions ...string) (bool, error) {
	for _, id := range divisions {
		busy, err := g.store.HasLiveSynthesis(ctx, id)
		if err != nil {
			return false, err
		}
		if busy {
			return true, nil
		}
	}
	return false, nil
}

// Opportunities summarizes the synthesis landscape for operators.
type Opportunities struct {
	ReadyDivisions       int `json:"ready_divisions"`
	PossibleCombinations int `json:"possible_combinations"`
	PendingSynthesis     int `json:"pending_synthesis"`
	CompletedSynthesis   int `json:"completed_synthesis"`
}

// GetOpportunities reports how many divisions are synthesis-ready and the
// current pending and completed synthesis task counts. Unlike generation,
// which weighs every finding, readiness here counts only findings that
// passed quality control.
func (g *Generator) GetOpportunities(ctx context.Context) (*Opportunities, error) {
	counts, err := g.store.PassedFindingCountsByDivision(ctx)
	if err != nil {
		return nil, err
	}
	ready := 0
	for _, n := range counts {
		if n >= g.cfg.SynthesisFindingMin {
			ready++
		}
	}

	pending, err := g.store.CountTasksByKind(ctx, store.KindSynthesis, store.TaskPending)
	if err != nil {
		return nil, err
	}
	completed, err := g.store.CountTasksByKind(ctx, store.KindSynthesis, store.TaskCompleted)
	if err != nil {
		return nil, err
	}

	possible := ready * (ready - 1) / 2
	if possible > 10 {
		possible = 10
	}
	return &Opportunities{
		ReadyDivisions:       ready,
		PossibleCombinations: possible,
		PendingSynthesis:     int(pending),
		CompletedSynthesis:   int(completed),
	}, nil
}
