package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LahousseBram/CureSwarm/config"
	"github.com/LahousseBram/CureSwarm/internal/database"
	"github.com/LahousseBram/CureSwarm/internal/store"
)

func setupGenerator(t *testing.T) (*Generator, *store.Store) {
	t.Helper()

	pool, err := database.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	s := store.New(pool, zap.NewNop())
	require.NoError(t, s.Migrate())

	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	return New(s, catalog, config.DefaultSwarmConfig(), zap.NewNop()), s
}

func seedDivision(t *testing.T, s *store.Store, id, name string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.GetMission(ctx, "m1"); err != nil {
		require.NoError(t, s.CreateMission(ctx, &store.Mission{ID: "m1", Name: "AMR"}))
	}
	require.NoError(t, s.CreateDivision(ctx, &store.Division{ID: id, MissionID: "m1", Name: name}))
}

// seedPassedFinding files a completed research task with a passed finding so
// the note pool has something to aggregate.
func seedPassedFinding(t *testing.T, s *store.Store, divisionID, contradictions, gaps string) {
	t.Helper()
	ctx := context.Background()

	task := &store.Task{
		ID:         uuid.NewString(),
		MissionID:  "m1",
		DivisionID: divisionID,
		Kind:       store.KindResearch,
		Topic:      "t",
		Status:     store.TaskCompleted,
	}
	require.NoError(t, s.CreateTask(ctx, task))

	finding := &store.Finding{
		ID:             uuid.NewString(),
		TaskID:         task.ID,
		DivisionID:     divisionID,
		AgentID:        "a1",
		Summary:        "s",
		Contradictions: contradictions,
		Gaps:           gaps,
		QCStatus:       store.QCPassed,
	}
	require.NoError(t, s.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.CreateFinding(tx, finding, nil)
	}))
}

func TestEligibleHypothesisDivisions(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "d-ready", "Ready")
	seedDivision(t, s, "d-short", "Short")

	for i := 0; i < 15; i++ {
		seedPassedFinding(t, s, "d-ready", fmt.Sprintf("contradiction %d", i), "")
	}
	for i := 0; i < 14; i++ {
		seedPassedFinding(t, s, "d-short", "", fmt.Sprintf("gap %d", i))
	}

	ids, err := g.EligibleHypothesisDivisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d-ready"}, ids)
}

func TestEligibleHypothesisDivisions_IgnoresUnreviewedNotes(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "d1", "One")

	// pending findings never count toward eligibility
	for i := 0; i < 15; i++ {
		task := &store.Task{ID: uuid.NewString(), MissionID: "m1", DivisionID: "d1", Kind: store.KindResearch, Topic: "t", Status: store.TaskCompleted}
		require.NoError(t, s.CreateTask(ctx, task))
		finding := &store.Finding{ID: uuid.NewString(), TaskID: task.ID, DivisionID: "d1", AgentID: "a1", Summary: "s", Contradictions: "c"}
		require.NoError(t, s.WithTransaction(ctx, func(tx *gorm.DB) error {
			return s.CreateFinding(tx, finding, nil)
		}))
	}

	ids, err := g.EligibleHypothesisDivisions(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGenerateHypothesisTask(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms", "Resistance Mechanisms")
	for i := 0; i < 8; i++ {
		seedPassedFinding(t, s, "resistance-mechanisms", fmt.Sprintf("contradiction %d", i), fmt.Sprintf("gap %d", i))
	}

	task, err := g.GenerateHypothesisTask(ctx, "resistance-mechanisms")
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, store.KindHypothesis, task.Kind)
	assert.Equal(t, "Hypothesis Generation for Resistance Mechanisms", task.Topic)
	assert.Equal(t, store.TaskPending, task.Status)
	assert.Contains(t, task.Description, "Based on 8 research findings in Resistance Mechanisms")
	assert.Equal(t, store.StringList{
		"Resistance Mechanisms research hypotheses",
		"Resistance Mechanisms future research directions",
	}, task.SearchQueries)

	// metadata aggregates at most five of each note kind
	require.NotNil(t, task.Metadata)
	require.NotNil(t, task.Metadata.Hypothesis)
	assert.Len(t, task.Metadata.Hypothesis.Contradictions, 5)
	assert.Len(t, task.Metadata.Hypothesis.Gaps, 5)
	assert.Equal(t, 8, task.Metadata.Hypothesis.SourceFindings)

	// metadata round-trips through the json column
	stored, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metadata)
	assert.Equal(t, task.Metadata.Hypothesis, stored.Metadata.Hypothesis)
}

func TestGenerateHypothesisTask_SkipsWhenUnclaimedExists(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "d1", "One")
	seedPassedFinding(t, s, "d1", "c", "g")

	first, err := g.GenerateHypothesisTask(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := g.GenerateHypothesisTask(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, second)

	// once the first is claimed, a new one may be generated
	claimed, err := s.ClaimTask(ctx, first.ID, "a1", first.CreatedAt)
	require.NoError(t, err)
	require.True(t, claimed)

	third, err := g.GenerateHypothesisTask(ctx, "d1")
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestGenerateHypothesisTask_NoNotesNoTask(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "d1", "One")
	seedPassedFinding(t, s, "d1", "", "")

	task, err := g.GenerateHypothesisTask(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestGenerateSynthesisTasks(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms", "Resistance Mechanisms")
	seedDivision(t, s, "priority-pathogens", "Priority Pathogens")

	for i := 0; i < 10; i++ {
		seedPassedFinding(t, s, "resistance-mechanisms", "", "")
		seedPassedFinding(t, s, "priority-pathogens", "", "")
	}

	created, err := g.GenerateSynthesisTasks(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	task := created[0]
	assert.Equal(t, store.KindSynthesis, task.Kind)
	assert.Equal(t, "Cross-Pathogen Resistance Mechanism Analysis", task.Topic)
	assert.Equal(t, "resistance-mechanisms", task.DivisionID)
	require.NotNil(t, task.Metadata)
	require.NotNil(t, task.Metadata.Synthesis)
	assert.Equal(t, "resistance-mechanisms", task.Metadata.Synthesis.DivisionA)
	assert.Equal(t, "priority-pathogens", task.Metadata.Synthesis.DivisionB)

	// the live task blocks a second generation for the same pair
	again, err := g.GenerateSynthesisTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestGenerateSynthesisTasks_NeedsTwoQualifyingDivisions(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms", "Resistance Mechanisms")
	seedDivision(t, s, "priority-pathogens", "Priority Pathogens")

	for i := 0; i < 10; i++ {
		seedPassedFinding(t, s, "resistance-mechanisms", "", "")
	}
	for i := 0; i < 9; i++ {
		seedPassedFinding(t, s, "priority-pathogens", "", "")
	}

	created, err := g.GenerateSynthesisTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateSynthesisTasks_CapsPerRun(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	// every catalog division qualifies
	divisions := map[string]string{
		"resistance-mechanisms":    "Resistance Mechanisms",
		"priority-pathogens":       "Priority Pathogens",
		"novel-therapeutics":       "Novel Therapeutics",
		"diagnostics-surveillance": "Diagnostics & Surveillance",
		"one-health":               "One Health",
		"stewardship-policy":       "Stewardship & Policy",
		"infection-prevention":     "Infection Prevention",
		"clinical-outcomes":        "Clinical Outcomes",
		"genomics-evolution":       "Genomics & Evolution",
		"economic-impact":          "Economic Impact",
		"vaccines-prevention":      "Vaccines & Prevention",
	}
	for id, name := range divisions {
		seedDivision(t, s, id, name)
		for i := 0; i < 10; i++ {
			seedPassedFinding(t, s, id, "", "")
		}
	}

	created, err := g.GenerateSynthesisTasks(ctx)
	require.NoError(t, err)

	// of the first five strategic pairs, later ones sharing a division with
	// an earlier task are skipped
	assert.NotEmpty(t, created)
	assert.LessOrEqual(t, len(created), 5)
	for _, task := range created {
		assert.Equal(t, store.KindSynthesis, task.Kind)
	}
}

func TestCatalog_TemplateFor(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	// curated template, reversed key order
	tpl := catalog.TemplateFor("priority-pathogens", "resistance-mechanisms", "Priority Pathogens", "Resistance Mechanisms")
	assert.Equal(t, "Cross-Pathogen Resistance Mechanism Analysis", tpl.Topic)
	assert.Len(t, tpl.SearchQueries, 4)

	// unknown pair renders the generic fallback from division names
	tpl = catalog.TemplateFor("economic-impact", "resistance-mechanisms", "Economic Impact", "Resistance Mechanisms")
	assert.Equal(t, "Cross-Domain Analysis: Economic Impact and Resistance Mechanisms", tpl.Topic)
	assert.Contains(t, tpl.Description, "Synthesize findings from Economic Impact and Resistance Mechanisms")
	assert.Contains(t, tpl.SearchQueries, "Economic Impact Resistance Mechanisms AMR integration")
}

func TestCatalog_Combinations(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)

	qualifying := map[string]bool{
		"resistance-mechanisms": true,
		"priority-pathogens":    true,
		"economic-impact":       true,
	}
	combos := catalog.Combinations(qualifying)
	require.Len(t, combos, 1)
	assert.Equal(t, [2]string{"resistance-mechanisms", "priority-pathogens"}, combos[0])

	// the bonus pair activates once six divisions qualify
	for _, id := range []string{"one-health", "stewardship-policy", "clinical-outcomes"} {
		qualifying[id] = true
	}
	combos = catalog.Combinations(qualifying)
	assert.Contains(t, combos, [2]string{"economic-impact", "resistance-mechanisms"})
}

func TestGetOpportunities(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "resistance-mechanisms", "Resistance Mechanisms")
	seedDivision(t, s, "priority-pathogens", "Priority Pathogens")
	for i := 0; i < 10; i++ {
		seedPassedFinding(t, s, "resistance-mechanisms", "", "")
		seedPassedFinding(t, s, "priority-pathogens", "", "")
	}

	created, err := g.GenerateSynthesisTasks(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	opps, err := g.GetOpportunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, opps.ReadyDivisions)
	assert.Equal(t, 1, opps.PossibleCombinations)
	assert.Equal(t, 1, opps.PendingSynthesis)
	assert.Equal(t, 0, opps.CompletedSynthesis)
}

func TestGetOpportunities_CountsOnlyPassedFindings(t *testing.T) {
	g, s := setupGenerator(t)
	ctx := context.Background()

	seedDivision(t, s, "one-health", "One Health")
	for i := 0; i < 10; i++ {
		task := &store.Task{
			ID:         uuid.NewString(),
			MissionID:  "m1",
			DivisionID: "one-health",
			Kind:       store.KindResearch,
			Topic:      "t",
			Status:     store.TaskCompleted,
		}
		require.NoError(t, s.CreateTask(ctx, task))
		require.NoError(t, s.WithTransaction(ctx, func(tx *gorm.DB) error {
			return s.CreateFinding(tx, &store.Finding{
				ID:         uuid.NewString(),
				TaskID:     task.ID,
				DivisionID: "one-health",
				AgentID:    "a1",
				Summary:    "s",
				QCStatus:   store.QCPending,
			}, nil)
		}))
	}

	// ten findings on the books, none through review yet
	opps, err := g.GetOpportunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, opps.ReadyDivisions)
}

func TestLockedRand_ConcurrentDraws(t *testing.T) {
	rng := NewLockedRand(rand.New(rand.NewSource(1)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				f := rng.Float64()
				assert.GreaterOrEqual(t, f, 0.0)
				assert.Less(t, f, 1.0)
				n := rng.Intn(10)
				assert.GreaterOrEqual(t, n, 0)
				assert.Less(t, n, 10)
			}
		}()
	}
	wg.Wait()
}
