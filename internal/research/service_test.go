package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/affinity"
	"github.com/LahousseBram/CureSwarm/internal/consensus"
	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/internal/doiverify"
	"github.com/LahousseBram/CureSwarm/internal/generator"
	"github.com/LahousseBram/CureSwarm/internal/scheduler"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
)

// fixedRand misses every probability gate and picks index zero, keeping the
// service deterministic unless a test overrides it.
type fixedRand struct{}

func (fixedRand) Float64() float64 { return 1.0 }
func (fixedRand) Intn(n int) int   { return 0 }

func newService(t *testing.T, verifier *doiverify.Client) (*Service, *store.Store) {
	t.Helper()

	pool, err := database.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	s := store.New(pool, zap.NewNop())
	require.NoError(t, s.Migrate())

	cfg := config.DefaultSwarmConfig()
	catalog, err := generator.LoadCatalog("")
	require.NoError(t, err)

	gen := generator.New(s, catalog, cfg, zap.NewNop())
	sched := scheduler.New(s, gen, fixedRand{}, cfg, zap.NewNop())
	engine := consensus.New(s, affinity.NewTracker(s), consensus.DefaultRules(), zap.NewNop())

	svc := New(s, sched, engine, gen, verifier, nil, fixedRand{}, cfg, zap.NewNop())
	return svc, s
}

func seedDivision(t *testing.T, s *store.Store, id string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.GetMission(ctx, "m1"); err != nil {
		require.NoError(t, s.CreateMission(ctx, &store.Mission{ID: "m1", Name: "AMR"}))
	}
	require.NoError(t, s.CreateDivision(ctx, &store.Division{ID: id, MissionID: "m1", Name: "Division " + id}))
}

func seedClaimedTask(t *testing.T, s *store.Store, divisionID, agentID string) *store.Task {
	t.Helper()
	ctx := context.Background()

	task := &store.Task{
		ID:         uuid.NewString(),
		MissionID:  "m1",
		DivisionID: divisionID,
		Kind:       store.KindResearch,
		Topic:      "topic",
		Status:     store.TaskPending,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	claimed, err := s.ClaimTask(ctx, task.ID, agentID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)
	return task
}

func threeCitations() []CitationInput {
	return []CitationInput{
		{Title: "Paper one", Journal: "The Lancet", Year: 2022},
		{Title: "Paper two", Journal: "Nature", Year: 2023},
		{Title: "Paper three", Journal: "Cell", Year: 2021},
	}
}

func TestRegisterAgent(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")

	agent, assignment, err := svc.RegisterAgent(ctx, "  scout-1  ", "gpt-4", nil)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "scout-1", agent.Name)
	assert.Equal(t, "gpt-4", agent.Model)

	// no tasks seeded, so registration succeeds with an empty welcome
	assert.Nil(t, assignment)
}

func TestRegisterAgent_DedupWindow(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	first, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)

	second, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// a different model is a different agent
	third, _, err := svc.RegisterAgent(ctx, "scout-1", "claude", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestRegisterAgent_RequiresName(t *testing.T) {
	svc, _ := newService(t, nil)

	_, _, err := svc.RegisterAgent(context.Background(), "   ", "gpt-4", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestRegisterAgent_HandsOutFirstTask(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	task := &store.Task{
		ID: uuid.NewString(), MissionID: "m1", DivisionID: "d1",
		Kind: store.KindResearch, Topic: "t", Status: store.TaskPending,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	_, assignment, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, scheduler.KindResearch, assignment.Kind)
	assert.Equal(t, task.ID, assignment.Task.ID)
}

func TestSubmitFinding(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", agent.ID)

	finding, err := svc.SubmitFinding(ctx, FindingSubmission{
		AgentID:        agent.ID,
		TaskID:         task.ID,
		Summary:        "  colistin resistance is spreading  ",
		Confidence:     "high",
		Contradictions: "conflicts with earlier surveillance data",
		Citations:      threeCitations(),
	})
	require.NoError(t, err)
	require.NotNil(t, finding)
	assert.Equal(t, "colistin resistance is spreading", finding.Summary)
	assert.Equal(t, "d1", finding.DivisionID)

	// the task is completed and the agent credited
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskCompleted, got.Status)

	updated, err := s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TasksCompleted)
	assert.Equal(t, 3, updated.CitationsAdded)
}

func TestSubmitFinding_CitationFloor(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", agent.ID)

	_, err = svc.SubmitFinding(ctx, FindingSubmission{
		AgentID:    agent.ID,
		TaskID:     task.ID,
		Summary:    "s",
		Confidence: "high",
		Citations:  threeCitations()[:2],
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestSubmitFinding_DuplicateConflict(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", agent.ID)

	sub := FindingSubmission{
		AgentID: agent.ID, TaskID: task.ID, Summary: "s", Confidence: "high", Citations: threeCitations(),
	}
	_, err = svc.SubmitFinding(ctx, sub)
	require.NoError(t, err)

	_, err = svc.SubmitFinding(ctx, sub)
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
}

func TestSubmitFinding_WrongHolderConflict(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	holder, _, err := svc.RegisterAgent(ctx, "holder", "gpt-4", nil)
	require.NoError(t, err)
	thief, _, err := svc.RegisterAgent(ctx, "thief", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", holder.ID)

	_, err = svc.SubmitFinding(ctx, FindingSubmission{
		AgentID: thief.ID, TaskID: task.ID, Summary: "s", Confidence: "high", Citations: threeCitations(),
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
}

func TestSubmitFinding_VerifiesAndBackfillsCitations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"message": {
				"title": ["Registry title"],
				"container-title": ["Registry journal"],
				"published": {"date-parts": [[2020]]}
			}
		}`))
	}))
	defer server.Close()

	vcfg := config.DefaultVerifyConfig()
	vcfg.BaseURL = server.URL
	verifier := doiverify.NewClient(vcfg, nil, zap.NewNop())

	svc, s := newService(t, verifier)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", agent.ID)

	citations := threeCitations()
	citations[0] = CitationInput{DOI: "10.1038/registry-entry"}

	finding, err := svc.SubmitFinding(ctx, FindingSubmission{
		AgentID: agent.ID, TaskID: task.ID, Summary: "s", Confidence: "medium", Citations: citations,
	})
	require.NoError(t, err)

	stored, err := s.GetFinding(ctx, finding.ID)
	require.NoError(t, err)
	require.Len(t, stored.Citations, 3)

	var enriched *store.Citation
	for i := range stored.Citations {
		if stored.Citations[i].DOI != "" {
			enriched = &stored.Citations[i]
		}
	}
	require.NotNil(t, enriched)
	assert.True(t, enriched.Verified)
	assert.Equal(t, "Registry title", enriched.Title)
	assert.Equal(t, "Registry journal", enriched.Journal)
	assert.Equal(t, 2020, enriched.Year)
}

func TestSubmitFinding_VerifierOutageDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	vcfg := config.DefaultVerifyConfig()
	vcfg.BaseURL = server.URL
	verifier := doiverify.NewClient(vcfg, nil, zap.NewNop())

	svc, s := newService(t, verifier)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)
	task := seedClaimedTask(t, s, "d1", agent.ID)

	citations := threeCitations()
	citations[0].DOI = "10.1038/unreachable"

	finding, err := svc.SubmitFinding(ctx, FindingSubmission{
		AgentID: agent.ID, TaskID: task.ID, Summary: "s", Confidence: "low", Citations: citations,
	})
	require.NoError(t, err)

	// submission succeeds with the citation stored unverified
	stored, err := s.GetFinding(ctx, finding.ID)
	require.NoError(t, err)
	for _, c := range stored.Citations {
		assert.False(t, c.Verified)
	}
}

func TestSubmitReview_DrivesConsensus(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	author, _, err := svc.RegisterAgent(ctx, "author", "gpt-4", nil)
	require.NoError(t, err)
	r1, _, err := svc.RegisterAgent(ctx, "reviewer-1", "gpt-4", nil)
	require.NoError(t, err)
	r2, _, err := svc.RegisterAgent(ctx, "reviewer-2", "gpt-4", nil)
	require.NoError(t, err)

	task := seedClaimedTask(t, s, "d1", author.ID)
	finding, err := svc.SubmitFinding(ctx, FindingSubmission{
		AgentID: author.ID, TaskID: task.ID, Summary: "s", Confidence: "high", Citations: threeCitations(),
	})
	require.NoError(t, err)

	res, err := svc.SubmitReview(ctx, r1.ID, finding.ID, store.VerdictPassed, "solid")
	require.NoError(t, err)
	assert.False(t, res.Resolved)

	res, err = svc.SubmitReview(ctx, r2.ID, finding.ID, store.VerdictPassed, "agreed")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, store.QCPassed, res.Status)
}

func TestSubmitReview_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, "a1", "f1", "maybe", "r")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))

	_, err = svc.SubmitReview(ctx, "a1", "f1", store.VerdictPassed, "   ")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestSubmitHypothesis(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "d1")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)

	task := &store.Task{
		ID: uuid.NewString(), MissionID: "m1", DivisionID: "d1",
		Kind: store.KindHypothesis, Topic: "t", Status: store.TaskPending,
	}
	require.NoError(t, s.CreateTask(ctx, task))
	claimed, err := s.ClaimTask(ctx, task.ID, agent.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	hypothesis, err := svc.SubmitHypothesis(ctx, HypothesisSubmission{
		AgentID:              agent.ID,
		TaskID:               task.ID,
		Statement:            "efflux pump inhibitors restore carbapenem activity",
		SupportingEvidence:   []string{"finding A", "finding B"},
		ExperimentalApproach: "checkerboard synergy assays",
		Feasibility:          4,
	})
	require.NoError(t, err)
	assert.Equal(t, "proposed", hypothesis.Status)
	assert.Equal(t, "d1", hypothesis.DivisionID)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskCompleted, got.Status)
}

func TestSubmitHypothesis_FeasibilityBounds(t *testing.T) {
	svc, _ := newService(t, nil)

	for _, feasibility := range []int{0, 6} {
		_, err := svc.SubmitHypothesis(context.Background(), HypothesisSubmission{
			AgentID:              "a1",
			TaskID:               "t1",
			Statement:            "s",
			SupportingEvidence:   []string{"e"},
			ExperimentalApproach: "x",
			Feasibility:          feasibility,
		})
		require.Error(t, err)
		assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	}
}

func TestRunSynthesis_GeneratesTasks(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms")
	seedDivision(t, s, "priority-pathogens")

	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)

	for _, div := range []string{"resistance-mechanisms", "priority-pathogens"} {
		for i := 0; i < 10; i++ {
			task := seedClaimedTask(t, s, div, agent.ID)
			_, err := svc.SubmitFinding(ctx, FindingSubmission{
				AgentID: agent.ID, TaskID: task.ID, Summary: "s", Confidence: "high", Citations: threeCitations(),
			})
			require.NoError(t, err)
		}
	}

	// run the background sweep synchronously
	svc.runSynthesis()

	tasks, err := s.ListTasks(ctx, store.TaskPending, 0)
	require.NoError(t, err)

	var synthesis int
	for _, task := range tasks {
		if task.Kind == store.KindSynthesis {
			synthesis++
		}
	}
	assert.Equal(t, 1, synthesis)
}

func TestDivisionReport(t *testing.T) {
	svc, s := newService(t, nil)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms")
	agent, _, err := svc.RegisterAgent(ctx, "scout-1", "gpt-4", nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		task := seedClaimedTask(t, s, "resistance-mechanisms", agent.ID)
		_, err := svc.SubmitFinding(ctx, FindingSubmission{
			AgentID:        agent.ID,
			TaskID:         task.ID,
			Summary:        "s",
			Confidence:     "high",
			Contradictions: "contradicts prior efflux data",
			Gaps:           "no in vivo validation",
			Citations:      threeCitations(),
			Quality:        &store.QualityAssessment{StudyType: "meta-analysis", MethodologyScore: 4, ClinicalRelevance: "high"},
		})
		require.NoError(t, err)
	}

	report, err := svc.DivisionReport(ctx, "resistance-mechanisms")
	require.NoError(t, err)

	assert.Equal(t, "resistance-mechanisms", report.Division.ID)
	assert.Equal(t, 3, report.Summary.TotalFindings)
	assert.Equal(t, 9, report.Summary.TotalCitations)
	assert.Len(t, report.TopContradictions, 3)
	assert.Len(t, report.TopResearchGaps, 3)

	require.NotNil(t, report.DataQuality.AvgMethodologyScore)
	assert.InDelta(t, 4.0, *report.DataQuality.AvgMethodologyScore, 1e-9)
	assert.Equal(t, 3, report.DataQuality.StudyTypes["meta-analysis"])

	// division name contains "resistance", so the mechanistic step appears
	var categories []string
	for _, step := range report.ActionableNextSteps {
		categories = append(categories, step.Category)
	}
	assert.Contains(t, categories, "Mechanistic Research")
	assert.GreaterOrEqual(t, len(report.ActionableNextSteps), 3)
	assert.LessOrEqual(t, len(report.ActionableNextSteps), 5)
}

func TestDivisionReport_UnknownDivision(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.DivisionReport(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestVerifyDOI_Disabled(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.VerifyDOI(context.Background(), "10.1038/x")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}
