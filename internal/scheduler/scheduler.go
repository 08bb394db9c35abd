// Package scheduler decides which work item each requesting agent receives
// next. All coordination state lives in the store; concurrent requests are
// arbitrated by conditional claims, not in-memory locks.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/generator"
	"github.com/LahousseBram/CureSwarm/internal/store"
)

// maxReviewsSolicited caps how many reviews the scheduler hands out per
// finding. Consensus still accepts late reviews beyond it.
const maxReviewsSolicited = 2

// defaultAffinity ranks divisions the agent has no score for yet.
const defaultAffinity = 0.5

// Kind labels the class of work handed to an agent.
type Kind string

const (
	KindResearch   Kind = "research"
	KindSynthesis  Kind = "synthesis"
	KindHypothesis Kind = "hypothesis"
	KindQCReview   Kind = "qc_review"
)

// Assignment is one unit of work handed to an agent. Task is set for claimed
// task work; Finding is set for a quality review, which is never claimed and
// may be offered to several reviewers at once.
type Assignment struct {
	Kind    Kind
	Task    *store.Task
	Finding *store.Finding
}

// Scheduler selects and claims work items.
type Scheduler struct {
	store  *store.Store
	gen    *generator.Generator
	cfg    config.SwarmConfig
	logger *zap.Logger

	// rng is not assumed goroutine-safe
	mu  sync.Mutex
	rng generator.Rand
}

// New creates a Scheduler. The rng drives class selection and cold-start
// picks; tests inject a scripted source.
func New(s *store.Store, gen *generator.Generator, rng generator.Rand, cfg config.SwarmConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  s,
		gen:    gen,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "scheduler")),
		rng:    rng,
	}
}

func (s *Scheduler) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Scheduler) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// NextItem returns the agent's next work item, or nil when nothing is
// eligible. Class selection draws hypothesis work first, then quality
// review, falling through to research on a miss. Task items are claimed
// atomically before they are returned.
func (s *Scheduler) NextItem(ctx context.Context, agentID string) (*Assignment, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// best-effort sweep so an expired claim frees up before selection
	if n, err := s.store.ReclaimStale(ctx, now.Add(-s.cfg.StaleTimeout)); err != nil {
		s.logger.Warn("pre-assignment reclaim failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("reclaimed stale tasks before assignment", zap.Int64("count", n))
	}

	if err := s.store.TouchAgent(ctx, agentID, now); err != nil {
		return nil, err
	}

	// the cap counts completed work, not held claims
	if agent.MaxTasks != nil && agent.TasksCompleted >= *agent.MaxTasks {
		return nil, nil
	}

	if s.float64() < s.cfg.HypothesisProbability {
		a, err := s.hypothesisItem(ctx, agentID, now)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
	}

	if s.float64() < s.cfg.QCProbability {
		a, err := s.reviewItem(ctx, agentID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
	}

	return s.researchItem(ctx, agentID, now)
}

// hypothesisItem picks a random hypothesis-eligible division, generates its
// task if none is waiting, and claims the newest unclaimed one.
func (s *Scheduler) hypothesisItem(ctx context.Context, agentID string, now time.Time) (*Assignment, error) {
	divisions, err := s.gen.EligibleHypothesisDivisions(ctx)
	if err != nil {
		return nil, err
	}
	if len(divisions) == 0 {
		return nil, nil
	}

	divisionID := divisions[s.intn(len(divisions))]
	if _, err := s.gen.GenerateHypothesisTask(ctx, divisionID); err != nil {
		return nil, err
	}

	task, err := s.store.NewestPendingHypothesis(ctx, divisionID)
	if err != nil || task == nil {
		return nil, err
	}

	claimed, err := s.store.ClaimTask(ctx, task.ID, agentID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	markAssigned(task, agentID, now)
	return &Assignment{Kind: KindHypothesis, Task: task}, nil
}

// reviewItem offers the oldest finding still awaiting reviews. Review work
// is not claimed; the unique (finding, reviewer) constraint arbitrates
// double submissions instead.
func (s *Scheduler) reviewItem(ctx context.Context, agentID string) (*Assignment, error) {
	finding, err := s.store.OldestReviewableFinding(ctx, agentID, maxReviewsSolicited)
	if err != nil {
		return nil, err
	}
	if finding == nil {
		return nil, nil
	}
	return &Assignment{Kind: KindQCReview, Finding: finding}, nil
}

// researchItem ranks the oldest pending research window by the agent's
// division affinity and claims the best candidate, walking down the ranking
// when a concurrent claim wins the race.
func (s *Scheduler) researchItem(ctx context.Context, agentID string, now time.Time) (*Assignment, error) {
	tasks, err := s.store.OldestPendingResearch(ctx, s.cfg.ResearchWindow)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	scores, err := s.store.AffinityScores(ctx, agentID)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	if len(scores) == 0 {
		// cold start: no track record anywhere, start from a uniform pick
		start := s.intn(len(tasks))
		for i := range order {
			order[i] = (start + i) % len(tasks)
		}
	} else {
		scoreOf := func(i int) float64 {
			if score, ok := scores[tasks[i].DivisionID]; ok {
				return score
			}
			return defaultAffinity
		}
		// stable keeps the oldest-first order within equal scores
		sort.SliceStable(order, func(a, b int) bool {
			return scoreOf(order[a]) > scoreOf(order[b])
		})
	}

	for _, idx := range order {
		task := &tasks[idx]
		claimed, err := s.store.ClaimTask(ctx, task.ID, agentID, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}

		markAssigned(task, agentID, now)
		kind := KindResearch
		if task.Kind == store.KindSynthesis {
			kind = KindSynthesis
		}
		return &Assignment{Kind: kind, Task: task}, nil
	}
	return nil, nil
}

// markAssigned mirrors the store-side claim onto the in-memory row so the
// caller sees the assignment without a re-read.
func markAssigned(task *store.Task, agentID string, now time.Time) {
	task.Status = store.TaskAssigned
	task.AssignedTo = &agentID
	task.AssignedAt = &now
}
