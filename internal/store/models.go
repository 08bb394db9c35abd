package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// 📦 实体模型
// =============================================================================

// TaskStatus is the lifecycle state of a work item.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskCompleted TaskStatus = "completed"
)

// TaskKind distinguishes the three classes of assignable work.
type TaskKind string

const (
	KindResearch   TaskKind = "research"
	KindSynthesis  TaskKind = "synthesis"
	KindHypothesis TaskKind = "hypothesis"
)

// Verdict is a single reviewer's judgement of a finding.
type Verdict string

const (
	VerdictPassed   Verdict = "passed"
	VerdictFlagged  Verdict = "flagged"
	VerdictRejected Verdict = "rejected"
)

// QCStatus is the authoritative quality state of a finding.
// It starts at pending and moves to a Verdict value once consensus resolves.
type QCStatus string

const (
	QCPending  QCStatus = "pending"
	QCPassed   QCStatus = "passed"
	QCFlagged  QCStatus = "flagged"
	QCRejected QCStatus = "rejected"
)

// ValidVerdict reports whether s names a known verdict.
func ValidVerdict(s string) bool {
	switch Verdict(s) {
	case VerdictPassed, VerdictFlagged, VerdictRejected:
		return true
	}
	return false
}

// Mission is a top-level research program.
type Mission struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Description string
	Status      string    `gorm:"size:32;default:active"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Division is a topical partition of a mission. Immutable after seeding
// except for its counters.
type Division struct {
	ID             string `gorm:"primaryKey;size:64"`
	MissionID      string `gorm:"size:64;index;not null"`
	Name           string `gorm:"size:255;not null"`
	Description    string
	Priority       int       `gorm:"default:0"`
	TotalTasks     int       `gorm:"default:0"`
	CompletedTasks int       `gorm:"default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// Agent is a registered worker. Never deleted.
type Agent struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:255;not null;index:idx_agents_name_model"`
	Model          string `gorm:"size:255;index:idx_agents_name_model"`
	Status         string `gorm:"size:32;default:active"`
	TasksCompleted int    `gorm:"default:0"`
	QCCompleted    int    `gorm:"default:0"`
	CitationsAdded int    `gorm:"default:0"`
	// Overall trust weight for QC reviews. Operators may lower it; reviews
	// from agents below the low-trust cutoff count at reduced weight.
	QualityScore float64 `gorm:"default:1.0"`
	// MaxTasks caps assignments when set; nil means unlimited.
	MaxTasks   *int
	LastActive time.Time `gorm:"index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Task is the unit of assignable work.
// Invariant: AssignedTo and AssignedAt are non-nil iff Status == assigned.
type Task struct {
	ID            string     `gorm:"primaryKey;size:64"`
	MissionID     string     `gorm:"size:64;index"`
	DivisionID    string     `gorm:"size:64;index;not null"`
	Kind          TaskKind   `gorm:"size:16;not null;default:research;index"`
	Topic         string     `gorm:"size:512;not null"`
	Description   string
	SearchQueries StringList `gorm:"type:text"`
	Status        TaskStatus `gorm:"size:16;not null;default:pending;index:idx_tasks_status_created"`
	AssignedTo    *string    `gorm:"size:64;index"`
	AssignedAt    *time.Time
	Metadata      *TaskMetadata `gorm:"type:text"`
	CreatedAt     time.Time     `gorm:"autoCreateTime;index:idx_tasks_status_created"`
	CompletedAt   *time.Time
}

// Finding is the research result attached to a task.
// At most one finding per task, enforced by the unique index.
type Finding struct {
	ID             string `gorm:"primaryKey;size:64"`
	TaskID         string `gorm:"size:64;uniqueIndex;not null"`
	DivisionID     string `gorm:"size:64;index;not null"`
	AgentID        string `gorm:"size:64;index;not null"`
	Summary        string `gorm:"not null"`
	Confidence     string `gorm:"size:16;default:medium"`
	Contradictions string
	Gaps           string
	Quality        *QualityAssessment `gorm:"type:text"`
	QCStatus       QCStatus           `gorm:"size:16;not null;default:pending;index:idx_findings_qc_created"`
	ReviewCount    int                `gorm:"default:0"`
	CreatedAt      time.Time          `gorm:"autoCreateTime;index:idx_findings_qc_created"`

	Citations []Citation `gorm:"foreignKey:FindingID"`
	Reviews   []QCReview `gorm:"foreignKey:FindingID"`
}

// Citation is a bibliographic reference supporting a finding.
type Citation struct {
	ID        string    `gorm:"primaryKey;size:64"`
	FindingID string    `gorm:"size:64;index;not null"`
	Title     string    `gorm:"size:512"`
	Authors   string    `gorm:"size:512"`
	Journal   string    `gorm:"size:255"`
	Year      int
	DOI       string    `gorm:"size:255"`
	URL       string    `gorm:"size:512"`
	Verified  bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// QCReview is one reviewer's verdict on a finding.
// At most one review per (finding, agent), enforced by the unique index.
type QCReview struct {
	ID        string    `gorm:"primaryKey;size:64"`
	FindingID string    `gorm:"size:64;not null;uniqueIndex:idx_reviews_finding_agent"`
	AgentID   string    `gorm:"size:64;not null;uniqueIndex:idx_reviews_finding_agent"`
	Verdict   Verdict   `gorm:"size:16;not null"`
	Reasoning string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Hypothesis is a structured research hypothesis submitted against a
// hypothesis-generation task. Its lifecycle is independent of the task's.
type Hypothesis struct {
	ID                   string     `gorm:"primaryKey;size:64"`
	TaskID               string     `gorm:"size:64;index;not null"`
	DivisionID           string     `gorm:"size:64;index"`
	AgentID              string     `gorm:"size:64;index;not null"`
	Statement            string     `gorm:"not null"`
	SupportingEvidence   StringList `gorm:"type:text"`
	ExperimentalApproach string
	ExpectedImpact       string
	Feasibility          int       `gorm:"default:3"`
	Upvotes              int       `gorm:"default:0"`
	Downvotes            int       `gorm:"default:0"`
	Status               string    `gorm:"size:32;default:proposed"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
}

// AffinityScore is an agent's exponentially averaged quality track record
// within one division. Created lazily, never deleted.
type AffinityScore struct {
	AgentID    string    `gorm:"primaryKey;size:64"`
	DivisionID string    `gorm:"primaryKey;size:64"`
	Score      float64   `gorm:"not null"`
	TasksCount int       `gorm:"default:0"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// =============================================================================
// 🧩 JSON 列类型
// =============================================================================

// StringList stores a []string as a JSON text column.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(value any) error {
	return scanJSON(value, s)
}

// QualityAssessment is the structured study-quality block of a finding.
type QualityAssessment struct {
	StudyType         string `json:"study_type,omitempty"`
	MethodologyScore  int    `json:"methodology_score,omitempty"`
	ClinicalRelevance string `json:"clinical_relevance,omitempty"`
}

// Value implements driver.Valuer.
func (q QualityAssessment) Value() (driver.Value, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (q *QualityAssessment) Scan(value any) error {
	return scanJSON(value, q)
}

// TaskMetadata is the per-kind structured payload of a task. Exactly one
// variant is set, matching the task's Kind; research tasks usually carry none.
type TaskMetadata struct {
	Hypothesis *HypothesisContext `json:"hypothesis,omitempty"`
	Synthesis  *SynthesisContext  `json:"synthesis,omitempty"`
}

// HypothesisContext carries the aggregated evidence that motivated a
// hypothesis-generation task.
type HypothesisContext struct {
	DivisionID     string   `json:"division_id"`
	Contradictions []string `json:"contradictions,omitempty"`
	Gaps           []string `json:"gaps,omitempty"`
	SourceFindings int      `json:"source_findings"`
}

// SynthesisContext names the two divisions a synthesis task bridges.
type SynthesisContext struct {
	DivisionA string `json:"division_a"`
	DivisionB string `json:"division_b"`
}

// Value implements driver.Valuer.
func (m TaskMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *TaskMetadata) Scan(value any) error {
	return scanJSON(value, m)
}

func scanJSON(value, dest any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
