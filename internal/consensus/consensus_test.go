package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/LahousseBram/CureSwarm/internal/affinity"
	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
)

func review(agentID string, v store.Verdict) store.QCReview {
	return store.QCReview{ID: uuid.NewString(), AgentID: agentID, Verdict: v}
}

func TestTally(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name        string
		reviews     []store.QCReview
		quality     map[string]float64
		wantResolve bool
		wantVerdict store.Verdict
	}{
		{
			name:        "single review stays pending",
			reviews:     []store.QCReview{review("r1", store.VerdictPassed)},
			wantResolve: false,
		},
		{
			name: "two full-weight agreeing reviews resolve",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictPassed),
			},
			wantResolve: true,
			wantVerdict: store.VerdictPassed,
		},
		{
			name: "two disagreeing reviews stay pending",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictFlagged),
			},
			wantResolve: false,
		},
		{
			name: "three-way tie stays pending",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictFlagged),
				review("r3", store.VerdictRejected),
			},
			wantResolve: false,
		},
		{
			name: "third review breaks the tie",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictFlagged),
				review("r3", store.VerdictPassed),
			},
			wantResolve: true,
			wantVerdict: store.VerdictPassed,
		},
		{
			name: "low-trust second reviewer still reaches threshold",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictPassed),
			},
			quality:     map[string]float64{"r2": 0.3},
			wantResolve: true,
			wantVerdict: store.VerdictPassed,
		},
		{
			name: "two low-trust agreeing reviews miss the threshold",
			reviews: []store.QCReview{
				review("r1", store.VerdictRejected),
				review("r2", store.VerdictRejected),
			},
			quality:     map[string]float64{"r1": 0.2, "r2": 0.2},
			wantResolve: false,
		},
		{
			name: "low-trust dissenter cannot block a majority",
			reviews: []store.QCReview{
				review("r1", store.VerdictPassed),
				review("r2", store.VerdictRejected),
				review("r3", store.VerdictPassed),
			},
			quality:     map[string]float64{"r2": 0.1},
			wantResolve: true,
			wantVerdict: store.VerdictPassed,
		},
		{
			name: "quality at the cutoff keeps full weight",
			reviews: []store.QCReview{
				review("r1", store.VerdictFlagged),
				review("r2", store.VerdictFlagged),
			},
			quality:     map[string]float64{"r1": 0.5, "r2": 0.5},
			wantResolve: true,
			wantVerdict: store.VerdictFlagged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rules.Tally(tt.reviews, tt.quality)
			assert.Equal(t, tt.wantResolve, out.Resolved)
			if tt.wantResolve {
				assert.Equal(t, tt.wantVerdict, out.Verdict)
			}
		})
	}
}

func TestTally_ResolutionImpliesUniqueMax(t *testing.T) {
	rules := DefaultRules()
	verdicts := []store.Verdict{store.VerdictPassed, store.VerdictFlagged, store.VerdictRejected}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "reviews")

		reviews := make([]store.QCReview, 0, n)
		quality := make(map[string]float64, n)
		for i := 0; i < n; i++ {
			id := uuid.NewString()
			v := rapid.SampledFrom(verdicts).Draw(t, "verdict")
			reviews = append(reviews, review(id, v))
			quality[id] = rapid.Float64Range(0, 1).Draw(t, "quality")
		}

		out := rules.Tally(reviews, quality)

		if out.Resolved {
			// the winning verdict must hold a strictly maximal weight
			for v, w := range out.Weights {
				if v == out.Verdict {
					continue
				}
				assert.Less(t, w, out.Weights[out.Verdict])
			}
			// and resolution requires at least the review floor
			assert.GreaterOrEqual(t, len(reviews), rules.MinReviews)
		} else if len(reviews) == rules.MinReviews {
			_, weight, unique := maxVerdict(out.Weights)
			if unique {
				assert.Less(t, weight, rules.EarlyThreshold)
			}
		}
	})
}

// --- engine integration ---

func setupEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	pool, err := database.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	s := store.New(pool, zap.NewNop())
	require.NoError(t, s.Migrate())

	engine := New(s, affinity.NewTracker(s), DefaultRules(), zap.NewNop())
	return engine, s
}

func seedFinding(t *testing.T, s *store.Store, authorID string) *store.Finding {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.CreateMission(ctx, &store.Mission{ID: "m1", Name: "m"}))
	require.NoError(t, s.CreateDivision(ctx, &store.Division{ID: "d1", MissionID: "m1", Name: "d"}))

	task := &store.Task{ID: uuid.NewString(), MissionID: "m1", DivisionID: "d1", Kind: store.KindResearch, Topic: "t", Status: store.TaskPending}
	require.NoError(t, s.CreateTask(ctx, task))

	finding := &store.Finding{ID: uuid.NewString(), TaskID: task.ID, DivisionID: "d1", AgentID: authorID, Summary: "s"}
	require.NoError(t, s.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.CreateFinding(tx, finding, nil)
	}))
	return finding
}

func seedAgent(t *testing.T, s *store.Store, id string, quality float64) {
	t.Helper()
	require.NoError(t, s.CreateAgent(context.Background(), &store.Agent{
		ID: id, Name: id, Model: "m", QualityScore: quality, LastActive: time.Now().UTC(),
	}))
}

func TestEngine_ResolveAfterTwoAgreeingReviews(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	seedAgent(t, s, "author", 1.0)
	seedAgent(t, s, "r1", 1.0)
	seedAgent(t, s, "r2", 1.0)
	finding := seedFinding(t, s, "author")

	res, err := engine.RecordReview(ctx, finding.ID, "r1", store.VerdictPassed, "solid methodology")
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Equal(t, 1, res.ReviewCount)

	res, err = engine.RecordReview(ctx, finding.ID, "r2", store.VerdictPassed, "agrees")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, store.QCPassed, res.Status)

	// author's affinity moved from the 0.5 seed
	scores, err := s.AffinityScores(ctx, "author")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, scores["d1"], 1e-9)

	// reviewer counters bumped
	r1, err := s.GetAgent(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, r1.QCCompleted)
}

func TestEngine_DisagreementNeedsThirdReview(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	seedAgent(t, s, "author", 1.0)
	seedAgent(t, s, "r1", 1.0)
	seedAgent(t, s, "r2", 1.0)
	seedAgent(t, s, "r3", 1.0)
	finding := seedFinding(t, s, "author")

	_, err := engine.RecordReview(ctx, finding.ID, "r1", store.VerdictPassed, "")
	require.NoError(t, err)
	res, err := engine.RecordReview(ctx, finding.ID, "r2", store.VerdictFlagged, "")
	require.NoError(t, err)
	assert.False(t, res.Resolved)

	// three-way tie leaves it pending
	res, err = engine.RecordReview(ctx, finding.ID, "r3", store.VerdictRejected, "")
	require.NoError(t, err)
	assert.False(t, res.Resolved)

	got, err := s.GetFinding(ctx, finding.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QCPending, got.QCStatus)
	assert.Equal(t, 3, got.ReviewCount)
}

func TestEngine_LowTrustReviewerDiscounted(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	seedAgent(t, s, "author", 1.0)
	seedAgent(t, s, "r1", 1.0)
	seedAgent(t, s, "r2", 0.3)
	finding := seedFinding(t, s, "author")

	_, err := engine.RecordReview(ctx, finding.ID, "r1", store.VerdictPassed, "")
	require.NoError(t, err)

	// weighted 1.0 + 0.5 = 1.5, unique max, resolves
	res, err := engine.RecordReview(ctx, finding.ID, "r2", store.VerdictPassed, "")
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, store.QCPassed, res.Status)
}

func TestEngine_DuplicateReviewConflict(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	seedAgent(t, s, "author", 1.0)
	seedAgent(t, s, "r1", 1.0)
	finding := seedFinding(t, s, "author")

	_, err := engine.RecordReview(ctx, finding.ID, "r1", store.VerdictPassed, "")
	require.NoError(t, err)

	_, err = engine.RecordReview(ctx, finding.ID, "r1", store.VerdictRejected, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	// review count unchanged by the rejected duplicate
	got, err := s.GetFinding(ctx, finding.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReviewCount)
}

func TestEngine_ResolvedFindingAcceptsButIgnoresLateReviews(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	seedAgent(t, s, "author", 1.0)
	seedAgent(t, s, "r1", 1.0)
	seedAgent(t, s, "r2", 1.0)
	seedAgent(t, s, "r3", 1.0)
	finding := seedFinding(t, s, "author")

	_, err := engine.RecordReview(ctx, finding.ID, "r1", store.VerdictPassed, "")
	require.NoError(t, err)
	_, err = engine.RecordReview(ctx, finding.ID, "r2", store.VerdictPassed, "")
	require.NoError(t, err)

	// a late dissenting review does not reopen the verdict
	res, err := engine.RecordReview(ctx, finding.ID, "r3", store.VerdictRejected, "late")
	require.NoError(t, err)
	assert.False(t, res.Resolved)

	got, err := s.GetFinding(ctx, finding.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QCPassed, got.QCStatus)
	assert.Equal(t, 3, got.ReviewCount)
}

func TestEngine_UnknownFinding(t *testing.T) {
	engine, s := setupEngine(t)
	seedAgent(t, s, "r1", 1.0)

	_, err := engine.RecordReview(context.Background(), "missing", "r1", store.VerdictPassed, "")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}
