package research

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LahousseBram/CureSwarm/internal/store"
)

const (
	reportNoteLimit       = 5
	reportNoteMaxLen      = 200
	reportHypothesisLimit = 3
	reportHypothesisLen   = 150
	reportStepLimit       = 5
)

// DivisionReport is the operator-facing rollup of one division's output.
type DivisionReport struct {
	Division            ReportDivision     `json:"division"`
	Summary             ReportSummary      `json:"summary"`
	DataQuality         ReportDataQuality  `json:"data_quality"`
	TopContradictions   []ReportNote       `json:"top_contradictions"`
	TopResearchGaps     []ReportNote       `json:"top_research_gaps"`
	ActiveHypotheses    []ReportHypothesis `json:"active_hypotheses"`
	ActionableNextSteps []ReportStep       `json:"actionable_next_steps"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// ReportDivision identifies the division under report.
type ReportDivision struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReportSummary carries the division's headline counters.
type ReportSummary struct {
	TotalFindings   int     `json:"total_findings"`
	PassedFindings  int     `json:"passed_findings"`
	QCPassRate      float64 `json:"qc_pass_rate"`
	TotalCitations  int     `json:"total_citations"`
	TotalHypotheses int     `json:"total_hypotheses"`
}

// ReportDataQuality aggregates the structured study assessments.
type ReportDataQuality struct {
	AvgMethodologyScore *float64       `json:"avg_methodology_score"`
	StudyTypes          map[string]int `json:"study_type_distribution"`
	ClinicalRelevance   map[string]int `json:"clinical_relevance_distribution"`
	TotalAssessments    int            `json:"total_assessments"`
}

// ReportNote is one truncated contradiction or gap entry.
type ReportNote struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ReportHypothesis is a top-voted proposed hypothesis.
type ReportHypothesis struct {
	ID          string `json:"id"`
	Hypothesis  string `json:"hypothesis"`
	Feasibility int    `json:"feasibility"`
	Votes       int    `json:"votes"`
	Author      string `json:"author"`
}

// ReportStep is one recommended follow-up action.
type ReportStep struct {
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	Action          string `json:"action"`
	Rationale       string `json:"rationale"`
	EstimatedImpact string `json:"estimated_impact"`
}

// DivisionReport builds the rollup for one division.
func (s *Service) DivisionReport(ctx context.Context, divisionID string) (*DivisionReport, error) {
	division, err := s.store.GetDivision(ctx, divisionID)
	if err != nil {
		return nil, err
	}

	findings, err := s.store.FindingsByDivision(ctx, divisionID)
	if err != nil {
		return nil, err
	}
	hypotheses, err := s.store.ListHypotheses(ctx, divisionID, 0)
	if err != nil {
		return nil, err
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	agentNames := make(map[string]string, len(agents))
	for _, a := range agents {
		agentNames[a.ID] = a.Name
	}

	var (
		contradictions []string
		gaps           []string
		scores         []int
		studyTypes     = map[string]int{}
		relevance      = map[string]int{}
		passed         int
		citations      int
	)
	for _, f := range findings {
		if f.QCStatus == store.QCPassed {
			passed++
		}
		citations += len(f.Citations)
		if note := strings.TrimSpace(f.Contradictions); note != "" {
			contradictions = append(contradictions, note)
		}
		if note := strings.TrimSpace(f.Gaps); note != "" {
			gaps = append(gaps, note)
		}
		if q := f.Quality; q != nil {
			if q.MethodologyScore > 0 {
				scores = append(scores, q.MethodologyScore)
			}
			if q.StudyType != "" {
				studyTypes[q.StudyType]++
			}
			if q.ClinicalRelevance != "" {
				relevance[q.ClinicalRelevance]++
			}
		}
	}

	passRate := 0.0
	if len(findings) > 0 {
		passRate = math.Round(float64(passed)/float64(len(findings))*10000) / 100
	}

	var avgScore *float64
	if len(scores) > 0 {
		sum := 0
		for _, v := range scores {
			sum += v
		}
		avg := math.Round(float64(sum)/float64(len(scores))*100) / 100
		avgScore = &avg
	}

	topContradictions := truncateNotes(contradictions)
	topGaps := truncateNotes(gaps)

	active := make([]ReportHypothesis, 0, reportHypothesisLimit)
	for _, h := range hypotheses {
		if h.Status != "proposed" {
			continue
		}
		if len(active) == reportHypothesisLimit {
			break
		}
		author := agentNames[h.AgentID]
		if author == "" {
			author = "Unknown"
		}
		active = append(active, ReportHypothesis{
			ID:          h.ID,
			Hypothesis:  truncate(h.Statement, reportHypothesisLen),
			Feasibility: h.Feasibility,
			Votes:       h.Upvotes - h.Downvotes,
			Author:      author,
		})
	}

	return &DivisionReport{
		Division: ReportDivision{
			ID:          division.ID,
			Name:        division.Name,
			Description: division.Description,
		},
		Summary: ReportSummary{
			TotalFindings:   len(findings),
			PassedFindings:  passed,
			QCPassRate:      passRate,
			TotalCitations:  citations,
			TotalHypotheses: len(hypotheses),
		},
		DataQuality: ReportDataQuality{
			AvgMethodologyScore: avgScore,
			StudyTypes:          studyTypes,
			ClinicalRelevance:   relevance,
			TotalAssessments:    len(scores),
		},
		TopContradictions:   topContradictions,
		TopResearchGaps:     topGaps,
		ActiveHypotheses:    active,
		ActionableNextSteps: actionableSteps(topContradictions, topGaps, division.Name, avgScore),
		GeneratedAt:         time.Now().UTC(),
	}, nil
}

func truncateNotes(notes []string) []ReportNote {
	if len(notes) > reportNoteLimit {
		notes = notes[:reportNoteLimit]
	}
	out := make([]ReportNote, 0, len(notes))
	for i, note := range notes {
		out = append(out, ReportNote{ID: i + 1, Description: truncate(note, reportNoteMaxLen)})
	}
	return out
}

// truncate limits a string to max runes without splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// actionableSteps derives 3-5 recommended follow-ups from the division's
// contradiction, gap, and quality signals.
func actionableSteps(contradictions, gaps []ReportNote, divisionName string, avgScore *float64) []ReportStep {
	var steps []ReportStep

	if len(contradictions) > 0 {
		steps = append(steps, ReportStep{
			Priority:        "high",
			Category:        "Research Harmonization",
			Action:          fmt.Sprintf("Conduct systematic review to resolve contradictory findings in %s", strings.ToLower(divisionName)),
			Rationale:       fmt.Sprintf("%d conflicting findings identified that need resolution", len(contradictions)),
			EstimatedImpact: "High - will clarify research direction",
		})
	}
	if len(gaps) > 0 {
		steps = append(steps, ReportStep{
			Priority:        "high",
			Category:        "Gap Filling Research",
			Action:          fmt.Sprintf("Priority research initiatives needed in %d identified gap areas", len(gaps)),
			Rationale:       "Multiple research gaps consistently identified across findings",
			EstimatedImpact: "High - will advance field knowledge",
		})
	}
	if avgScore != nil && *avgScore < 3.0 {
		steps = append(steps, ReportStep{
			Priority:        "medium",
			Category:        "Quality Improvement",
			Action:          "Focus on higher-quality study designs and larger sample sizes",
			Rationale:       fmt.Sprintf("Average methodology score (%.1f) indicates room for improvement", *avgScore),
			EstimatedImpact: "Medium - will improve evidence reliability",
		})
	}

	lower := strings.ToLower(divisionName)
	switch {
	case strings.Contains(lower, "diagnostic"):
		steps = append(steps, ReportStep{
			Priority:        "medium",
			Category:        "Clinical Translation",
			Action:          "Accelerate point-of-care diagnostic validation studies",
			Rationale:       "Diagnostics require real-world clinical validation",
			EstimatedImpact: "High - direct clinical benefit",
		})
	case strings.Contains(lower, "therapeutic") || strings.Contains(lower, "novel"):
		steps = append(steps, ReportStep{
			Priority:        "medium",
			Category:        "Clinical Translation",
			Action:          "Prioritize Phase I/II clinical trials for promising therapies",
			Rationale:       "Novel therapeutics need clinical validation",
			EstimatedImpact: "High - potential new treatments",
		})
	case strings.Contains(lower, "mechanism") || strings.Contains(lower, "resistance"):
		steps = append(steps, ReportStep{
			Priority:        "medium",
			Category:        "Mechanistic Research",
			Action:          "Deepen molecular-level understanding through structural studies",
			Rationale:       "Mechanism research benefits from structural and biochemical approaches",
			EstimatedImpact: "Medium - foundational knowledge",
		})
	}

	if len(steps) < 3 {
		steps = append(steps, ReportStep{
			Priority:        "low",
			Category:        "Synthesis",
			Action:          "Develop comprehensive synthesis paper",
			Rationale:       fmt.Sprintf("%s findings would benefit from systematic synthesis", divisionName),
			EstimatedImpact: "Medium - knowledge consolidation",
		})
	}

	if len(steps) > reportStepLimit {
		steps = steps[:reportStepLimit]
	}
	return steps
}
