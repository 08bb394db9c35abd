// Package research is the application façade over the swarm core: agent
// registration, work distribution, submissions, and reporting. Transport
// handlers call into this package and never touch the store directly.
package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/consensus"
	"github.com/LahousseBram/CureSwarm/internal/doiverify"
	"github.com/LahousseBram/CureSwarm/internal/generator"
	"github.com/LahousseBram/CureSwarm/internal/metrics"
	"github.com/LahousseBram/CureSwarm/internal/scheduler"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
)

// registrationDedupWindow collapses duplicate registrations from clients
// that retry the welcome call.
const registrationDedupWindow = 5 * time.Minute

// synthesisRunTimeout bounds the background synthesis generation sweep.
const synthesisRunTimeout = 30 * time.Second

// minCitations is the citation floor for a finding submission.
const minCitations = 3

// Service wires the swarm core together behind one API.
type Service struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	engine    *consensus.Engine
	generator *generator.Generator
	verifier  *doiverify.Client
	collector *metrics.Collector
	cfg       config.SwarmConfig
	logger    *zap.Logger

	// rng drives the post-submission synthesis trigger
	mu  sync.Mutex
	rng generator.Rand
}

// New creates a Service. verifier and collector may be nil.
func New(
	s *store.Store,
	sched *scheduler.Scheduler,
	engine *consensus.Engine,
	gen *generator.Generator,
	verifier *doiverify.Client,
	collector *metrics.Collector,
	rng generator.Rand,
	cfg config.SwarmConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     s,
		scheduler: sched,
		engine:    engine,
		generator: gen,
		verifier:  verifier,
		collector: collector,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "research")),
		rng:       rng,
	}
}

// RegisterAgent creates an agent and hands it its first work item. A second
// registration with the same name and model inside the dedup window returns
// the existing agent instead of creating another.
func (s *Service) RegisterAgent(ctx context.Context, name, model string, maxTasks *int) (*store.Agent, *scheduler.Assignment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, types.Invalid("agent name is required")
	}
	if model == "" {
		model = "unknown"
	}

	now := time.Now().UTC()

	agent, err := s.store.FindRecentAgent(ctx, name, model, now.Add(-registrationDedupWindow))
	if err != nil {
		return nil, nil, err
	}
	if agent == nil {
		agent = &store.Agent{
			ID:           uuid.NewString(),
			Name:         name,
			Model:        model,
			QualityScore: 1.0,
			MaxTasks:     maxTasks,
			LastActive:   now,
		}
		if err := s.store.CreateAgent(ctx, agent); err != nil {
			return nil, nil, err
		}
		s.logger.Info("agent registered",
			zap.String("agent_id", agent.ID),
			zap.String("name", name),
			zap.String("model", model),
		)
	}

	// a welcome without work is still a successful registration
	assignment, err := s.NextTask(ctx, agent.ID)
	if err != nil {
		s.logger.Warn("first assignment failed", zap.String("agent_id", agent.ID), zap.Error(err))
		return agent, nil, nil
	}
	return agent, assignment, nil
}

// NextTask hands the agent its next work item, or nil when nothing is
// eligible.
func (s *Service) NextTask(ctx context.Context, agentID string) (*scheduler.Assignment, error) {
	assignment, err := s.scheduler.NextItem(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		if assignment != nil {
			s.collector.RecordAssignment(string(assignment.Kind))
		} else {
			s.collector.RecordNothingAvailable()
		}
	}
	return assignment, nil
}

// CitationInput is one citation attached to a finding submission.
type CitationInput struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Journal string `json:"journal"`
	Year    int    `json:"year"`
	DOI     string `json:"doi"`
	URL     string `json:"url"`
}

// FindingSubmission is a completed research or synthesis task result.
type FindingSubmission struct {
	AgentID        string
	TaskID         string
	Summary        string
	Confidence     string
	Contradictions string
	Gaps           string
	Citations      []CitationInput
	Quality        *store.QualityAssessment
}

func (sub *FindingSubmission) validate() error {
	if sub.AgentID == "" || sub.TaskID == "" {
		return types.Invalid("agent id and task id are required")
	}
	if strings.TrimSpace(sub.Summary) == "" {
		return types.Invalid("summary is required")
	}
	switch sub.Confidence {
	case "high", "medium", "low":
	default:
		return types.Invalid("confidence must be high, medium, or low")
	}
	if len(sub.Citations) < minCitations {
		return types.Invalid("minimum 3 citations required")
	}
	return nil
}

// SubmitFinding records a finding against its task, completing the task and
// crediting the agent in one transaction. Citation DOIs are verified against
// the registry first; verification failures degrade to unverified citations.
func (s *Service) SubmitFinding(ctx context.Context, sub FindingSubmission) (*store.Finding, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return nil, err
	}

	citations := s.enrichCitations(ctx, sub.Citations)

	finding := &store.Finding{
		ID:             uuid.NewString(),
		TaskID:         task.ID,
		DivisionID:     task.DivisionID,
		AgentID:        sub.AgentID,
		Summary:        strings.TrimSpace(sub.Summary),
		Confidence:     sub.Confidence,
		Contradictions: strings.TrimSpace(sub.Contradictions),
		Gaps:           strings.TrimSpace(sub.Gaps),
		Quality:        sub.Quality,
	}

	now := time.Now().UTC()
	err = s.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.CreateFinding(tx, finding, citations); err != nil {
			return err
		}
		if err := s.store.CompleteTask(tx, task.ID, sub.AgentID, now); err != nil {
			return err
		}
		return s.store.RecordTaskCompletion(tx, sub.AgentID, len(citations))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("finding submitted",
		zap.String("finding_id", finding.ID),
		zap.String("task_id", task.ID),
		zap.String("agent_id", sub.AgentID),
		zap.Int("citations", len(citations)),
	)
	if s.collector != nil {
		s.collector.RecordFindingSubmitted(sub.Confidence)
	}

	s.maybeGenerateSynthesis()
	finding.Citations = citations
	return finding, nil
}

// enrichCitations verifies citation DOIs and backfills missing bibliographic
// fields from the registry record. Runs before the submission transaction so
// network latency never holds a database lock.
func (s *Service) enrichCitations(ctx context.Context, inputs []CitationInput) []store.Citation {
	citations := make([]store.Citation, 0, len(inputs))
	for _, in := range inputs {
		citation := store.Citation{
			ID:      uuid.NewString(),
			Title:   in.Title,
			Authors: in.Authors,
			Journal: in.Journal,
			Year:    in.Year,
			DOI:     in.DOI,
			URL:     in.URL,
		}

		if s.verifier != nil && in.DOI != "" && doiverify.IsValidFormat(in.DOI) {
			res, err := s.verifier.Verify(ctx, in.DOI)
			if err == nil && res.Verified {
				citation.Verified = true
				if meta := res.Metadata; meta != nil {
					if citation.Title == "" {
						citation.Title = meta.Title
					}
					if citation.Authors == "" {
						citation.Authors = meta.Authors
					}
					if citation.Journal == "" {
						citation.Journal = meta.Journal
					}
					if citation.Year == 0 {
						citation.Year = meta.Year
					}
					if citation.URL == "" {
						citation.URL = meta.URL
					}
				}
			}
		}

		citations = append(citations, citation)
	}
	return citations
}

// SubmitReview records one quality review and reports the consensus outcome.
func (s *Service) SubmitReview(ctx context.Context, agentID, findingID string, verdict store.Verdict, reasoning string) (*consensus.Result, error) {
	if agentID == "" || findingID == "" {
		return nil, types.Invalid("agent id and finding id are required")
	}
	if !store.ValidVerdict(string(verdict)) {
		return nil, types.Invalid("verdict must be passed, flagged, or rejected")
	}
	if strings.TrimSpace(reasoning) == "" {
		return nil, types.Invalid("reasoning is required")
	}

	result, err := s.engine.RecordReview(ctx, findingID, agentID, verdict, strings.TrimSpace(reasoning))
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordReview()
		if result.Resolved {
			s.collector.RecordFindingResolved(string(result.Status))
		}
	}

	s.maybeGenerateSynthesis()
	return result, nil
}

// HypothesisSubmission is a completed hypothesis-generation task result.
type HypothesisSubmission struct {
	AgentID              string
	TaskID               string
	Statement            string
	SupportingEvidence   []string
	ExperimentalApproach string
	ExpectedImpact       string
	Feasibility          int
}

func (sub *HypothesisSubmission) validate() error {
	if sub.AgentID == "" || sub.TaskID == "" {
		return types.Invalid("agent id and task id are required")
	}
	if strings.TrimSpace(sub.Statement) == "" {
		return types.Invalid("hypothesis statement is required")
	}
	if len(sub.SupportingEvidence) == 0 {
		return types.Invalid("supporting evidence is required")
	}
	if strings.TrimSpace(sub.ExperimentalApproach) == "" {
		return types.Invalid("experimental approach is required")
	}
	if sub.Feasibility < 1 || sub.Feasibility > 5 {
		return types.Invalid("feasibility must be between 1 and 5")
	}
	return nil
}

// SubmitHypothesis records a hypothesis and completes its generation task.
func (s *Service) SubmitHypothesis(ctx context.Context, sub HypothesisSubmission) (*store.Hypothesis, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return nil, err
	}

	hypothesis := &store.Hypothesis{
		ID:                   uuid.NewString(),
		TaskID:               task.ID,
		DivisionID:           task.DivisionID,
		AgentID:              sub.AgentID,
		Statement:            strings.TrimSpace(sub.Statement),
		SupportingEvidence:   store.StringList(sub.SupportingEvidence),
		ExperimentalApproach: strings.TrimSpace(sub.ExperimentalApproach),
		ExpectedImpact:       strings.TrimSpace(sub.ExpectedImpact),
		Feasibility:          sub.Feasibility,
		Status:               "proposed",
	}

	now := time.Now().UTC()
	err = s.store.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.CreateHypothesis(tx, hypothesis); err != nil {
			return err
		}
		if err := s.store.CompleteTask(tx, task.ID, sub.AgentID, now); err != nil {
			return err
		}
		return s.store.RecordTaskCompletion(tx, sub.AgentID, 0)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("hypothesis submitted",
		zap.String("hypothesis_id", hypothesis.ID),
		zap.String("division_id", hypothesis.DivisionID),
		zap.Int("feasibility", hypothesis.Feasibility),
	)

	s.maybeGenerateSynthesis()
	return hypothesis, nil
}

// maybeGenerateSynthesis rolls the post-submission dice and, on a hit, runs
// synthesis generation in the background. Never blocks or fails the caller.
func (s *Service) maybeGenerateSynthesis() {
	s.mu.Lock()
	hit := s.rng.Float64() < s.cfg.SynthesisProbability
	s.mu.Unlock()
	if !hit {
		return
	}
	go s.runSynthesis()
}

func (s *Service) runSynthesis() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("synthesis generation panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), synthesisRunTimeout)
	defer cancel()

	created, err := s.generator.GenerateSynthesisTasks(ctx)
	if err != nil {
		s.logger.Warn("synthesis generation failed", zap.Error(err))
		return
	}
	if s.collector != nil {
		for range created {
			s.collector.RecordTaskGenerated(string(store.KindSynthesis))
		}
	}
}

// VerifyDOI exposes citation verification to the transport layer.
func (s *Service) VerifyDOI(ctx context.Context, doi string) (*doiverify.Result, error) {
	if s.verifier == nil {
		return nil, types.Invalid("doi verification is disabled")
	}
	if strings.TrimSpace(doi) == "" {
		return nil, types.Invalid("doi is required")
	}
	return s.verifier.Verify(ctx, doi)
}

// GetStats returns the swarm-wide dashboard counters.
func (s *Service) GetStats(ctx context.Context) (*store.SwarmStats, error) {
	return s.store.GetStats(ctx)
}

// GetQCStats returns the quality-control pipeline counters.
func (s *Service) GetQCStats(ctx context.Context) (*store.QCStats, error) {
	return s.store.GetQCStats(ctx)
}

// GetOpportunities summarizes the synthesis landscape.
func (s *Service) GetOpportunities(ctx context.Context) (*generator.Opportunities, error) {
	return s.generator.GetOpportunities(ctx)
}

// Agents lists all registered agents.
func (s *Service) Agents(ctx context.Context) ([]store.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Agent returns one agent.
func (s *Service) Agent(ctx context.Context, id string) (*store.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// Findings lists findings with optional qc-status and division filters.
func (s *Service) Findings(ctx context.Context, qcStatus store.QCStatus, divisionID string, limit, offset int) ([]store.Finding, error) {
	return s.store.ListFindings(ctx, qcStatus, divisionID, limit, offset)
}

// Finding returns one finding with its citations and reviews.
func (s *Service) Finding(ctx context.Context, id string) (*store.Finding, error) {
	return s.store.GetFinding(ctx, id)
}

// Divisions lists the mission's divisions.
func (s *Service) Divisions(ctx context.Context) ([]store.Division, error) {
	return s.store.ListDivisions(ctx)
}

// Hypotheses lists hypotheses, optionally per division.
func (s *Service) Hypotheses(ctx context.Context, divisionID string, limit int) ([]store.Hypothesis, error) {
	return s.store.ListHypotheses(ctx, divisionID, limit)
}

// Hypothesis returns one hypothesis.
func (s *Service) Hypothesis(ctx context.Context, id string) (*store.Hypothesis, error) {
	return s.store.GetHypothesis(ctx, id)
}
