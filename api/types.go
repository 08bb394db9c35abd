package api

import (
	"time"

	"github.com/LahousseBram/CureSwarm/internal/doiverify"
	"github.com/LahousseBram/CureSwarm/internal/scheduler"
	"github.com/LahousseBram/CureSwarm/internal/store"
)

// =============================================================================
// 智能体注册类型
// =============================================================================

// RegisterAgentRequest 代表智能体注册请求。
// @Description 智能体注册请求结构
type RegisterAgentRequest struct {
	// 智能体名称
	Name string `json:"name" example:"scout-7" binding:"required"`
	// 驱动模型标识
	Model string `json:"model,omitempty" example:"gpt-4"`
	// 并发任务上限（为空时不限制）
	MaxTasks *int `json:"max_tasks,omitempty" example:"3"`
}

// RegisterAgentResponse 代表智能体注册响应。
// @Description 智能体注册响应结构，注册即派发首个任务
type RegisterAgentResponse struct {
	// 注册后的智能体档案
	Agent AgentView `json:"agent"`
	// 首个工作项（没有可派发工作时为空）
	Assignment *AssignmentView `json:"assignment,omitempty"`
}

// AgentView 智能体档案视图
type AgentView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	TasksCompleted int       `json:"tasks_completed"`
	QCCompleted    int       `json:"qc_completed"`
	CitationsAdded int       `json:"citations_added"`
	QualityScore   float64   `json:"quality_score"`
	LastActive     time.Time `json:"last_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// =============================================================================
// 任务派发类型
// =============================================================================

// AssignmentView 工作项视图。Task 与 Finding 二选一：
// 任务类工作携带 Task，质检类工作携带待评审的 Finding。
type AssignmentView struct {
	// 工作类型: research, synthesis, hypothesis, qc_review
	Type string `json:"type" example:"research"`
	// 已认领的任务
	Task *TaskView `json:"task,omitempty"`
	// 待评审的发现
	Finding *FindingView `json:"finding,omitempty"`
}

// TaskView 任务视图
type TaskView struct {
	ID            string              `json:"id"`
	DivisionID    string              `json:"division_id"`
	Kind          string              `json:"kind"`
	Topic         string              `json:"topic"`
	Description   string              `json:"description,omitempty"`
	SearchQueries []string            `json:"search_queries,omitempty"`
	Status        string              `json:"status"`
	Metadata      *store.TaskMetadata `json:"metadata,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// =============================================================================
// 成果提交类型
// =============================================================================

// SubmitRequest 代表统一提交请求，按 Type 区分载荷。
// @Description 成果提交请求结构
type SubmitRequest struct {
	// 提交类型: finding, qc_review, hypothesis
	Type string `json:"type" example:"finding" binding:"required"`
	// 提交方智能体 ID
	AgentID string `json:"agent_id" binding:"required"`
	// 研究发现载荷（Type 为 finding 时必填）
	Finding *FindingPayload `json:"finding,omitempty"`
	// 质检评审载荷（Type 为 qc_review 时必填）
	Review *ReviewPayload `json:"review,omitempty"`
	// 假设载荷（Type 为 hypothesis 时必填）
	Hypothesis *HypothesisPayload `json:"hypothesis,omitempty"`
}

// FindingPayload 研究发现载荷
type FindingPayload struct {
	TaskID         string                   `json:"task_id" binding:"required"`
	Summary        string                   `json:"summary" binding:"required"`
	Confidence     string                   `json:"confidence" example:"high"`
	Contradictions string                   `json:"contradictions,omitempty"`
	Gaps           string                   `json:"gaps,omitempty"`
	Citations      []CitationPayload        `json:"citations"`
	Quality        *store.QualityAssessment `json:"quality_assessment,omitempty"`
}

// CitationPayload 引文载荷
type CitationPayload struct {
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Journal string `json:"journal,omitempty"`
	Year    int    `json:"year,omitempty"`
	DOI     string `json:"doi,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ReviewPayload 质检评审载荷
type ReviewPayload struct {
	FindingID string `json:"finding_id" binding:"required"`
	Verdict   string `json:"verdict" example:"passed" binding:"required"`
	Reasoning string `json:"reasoning" binding:"required"`
}

// HypothesisPayload 假设载荷
type HypothesisPayload struct {
	TaskID               string   `json:"task_id" binding:"required"`
	Statement            string   `json:"statement" binding:"required"`
	SupportingEvidence   []string `json:"supporting_evidence"`
	ExperimentalApproach string   `json:"experimental_approach"`
	ExpectedImpact       string   `json:"expected_impact,omitempty"`
	Feasibility          int      `json:"feasibility" example:"3"`
}

// SubmitResponse 代表提交响应。
// @Description 成果提交响应结构
type SubmitResponse struct {
	// 提交类型的回显
	Type string `json:"type"`
	// 已落库的发现（finding 提交）
	Finding *FindingView `json:"finding,omitempty"`
	// 共识裁决结果（qc_review 提交）
	Review *ReviewResultView `json:"review,omitempty"`
	// 已落库的假设（hypothesis 提交）
	Hypothesis *HypothesisView `json:"hypothesis,omitempty"`
}

// ReviewResultView 共识裁决视图
type ReviewResultView struct {
	FindingID   string `json:"finding_id"`
	Resolved    bool   `json:"resolved"`
	Status      string `json:"status"`
	ReviewCount int    `json:"review_count"`
}

// =============================================================================
// 查询视图类型
// =============================================================================

// FindingView 研究发现视图
type FindingView struct {
	ID             string                   `json:"id"`
	TaskID         string                   `json:"task_id"`
	DivisionID     string                   `json:"division_id"`
	AgentID        string                   `json:"agent_id"`
	Summary        string                   `json:"summary"`
	Confidence     string                   `json:"confidence"`
	Contradictions string                   `json:"contradictions,omitempty"`
	Gaps           string                   `json:"gaps,omitempty"`
	Quality        *store.QualityAssessment `json:"quality_assessment,omitempty"`
	QCStatus       string                   `json:"qc_status"`
	ReviewCount    int                      `json:"review_count"`
	Citations      []CitationView           `json:"citations,omitempty"`
	Reviews        []ReviewView             `json:"reviews,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// CitationView 引文视图
type CitationView struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Authors  string `json:"authors,omitempty"`
	Journal  string `json:"journal,omitempty"`
	Year     int    `json:"year,omitempty"`
	DOI      string `json:"doi,omitempty"`
	URL      string `json:"url,omitempty"`
	Verified bool   `json:"verified"`
}

// ReviewView 评审视图
type ReviewView struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Verdict   string    `json:"verdict"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HypothesisView 假设视图
type HypothesisView struct {
	ID                   string    `json:"id"`
	TaskID               string    `json:"task_id"`
	DivisionID           string    `json:"division_id"`
	AgentID              string    `json:"agent_id"`
	Statement            string    `json:"statement"`
	SupportingEvidence   []string  `json:"supporting_evidence,omitempty"`
	ExperimentalApproach string    `json:"experimental_approach,omitempty"`
	ExpectedImpact       string    `json:"expected_impact,omitempty"`
	Feasibility          int       `json:"feasibility"`
	Upvotes              int       `json:"upvotes"`
	Downvotes            int       `json:"downvotes"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// DivisionView 研究分部视图
type DivisionView struct {
	ID             string `json:"id"`
	MissionID      string `json:"mission_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	TotalTasks     int    `json:"total_tasks"`
	CompletedTasks int    `json:"completed_tasks"`
}

// =============================================================================
// 引文核验类型
// =============================================================================

// VerifyDOIRequest 代表 DOI 核验请求。
// @Description DOI 核验请求结构
type VerifyDOIRequest struct {
	// 待核验的 DOI
	DOI string `json:"doi" example:"10.1016/S0140-6736(21)02724-0" binding:"required"`
}

// VerifyDOIResponse 代表 DOI 核验响应。
// @Description DOI 核验响应结构
type VerifyDOIResponse struct {
	Verified bool                `json:"verified"`
	DOI      string              `json:"doi,omitempty"`
	Metadata *doiverify.Metadata `json:"metadata,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// =============================================================================
// 视图转换
// =============================================================================

// NewAgentView 从存储模型构建智能体视图
func NewAgentView(a *store.Agent) AgentView {
	return AgentView{
		ID:             a.ID,
		Name:           a.Name,
		Model:          a.Model,
		Status:         a.Status,
		TasksCompleted: a.TasksCompleted,
		QCCompleted:    a.QCCompleted,
		CitationsAdded: a.CitationsAdded,
		QualityScore:   a.QualityScore,
		LastActive:     a.LastActive,
		CreatedAt:      a.CreatedAt,
	}
}

// NewTaskView 从存储模型构建任务视图
func NewTaskView(t *store.Task) *TaskView {
	if t == nil {
		return nil
	}
	return &TaskView{
		ID:            t.ID,
		DivisionID:    t.DivisionID,
		Kind:          string(t.Kind),
		Topic:         t.Topic,
		Description:   t.Description,
		SearchQueries: t.SearchQueries,
		Status:        string(t.Status),
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt,
	}
}

// NewFindingView 从存储模型构建发现视图
func NewFindingView(f *store.Finding) *FindingView {
	if f == nil {
		return nil
	}
	v := &FindingView{
		ID:             f.ID,
		TaskID:         f.TaskID,
		DivisionID:     f.DivisionID,
		AgentID:        f.AgentID,
		Summary:        f.Summary,
		Confidence:     f.Confidence,
		Contradictions: f.Contradictions,
		Gaps:           f.Gaps,
		Quality:        f.Quality,
		QCStatus:       string(f.QCStatus),
		ReviewCount:    f.ReviewCount,
		CreatedAt:      f.CreatedAt,
	}
	for _, c := range f.Citations {
		v.Citations = append(v.Citations, CitationView{
			ID:       c.ID,
			Title:    c.Title,
			Authors:  c.Authors,
			Journal:  c.Journal,
			Year:     c.Year,
			DOI:      c.DOI,
			URL:      c.URL,
			Verified: c.Verified,
		})
	}
	for _, r := range f.Reviews {
		v.Reviews = append(v.Reviews, ReviewView{
			ID:        r.ID,
			AgentID:   r.AgentID,
			Verdict:   string(r.Verdict),
			Reasoning: r.Reasoning,
			CreatedAt: r.CreatedAt,
		})
	}
	return v
}

// NewHypothesisView 从存储模型构建假设视图
func NewHypothesisView(h *store.Hypothesis) *HypothesisView {
	if h == nil {
		return nil
	}
	return &HypothesisView{
		ID:                   h.ID,
		TaskID:               h.TaskID,
		DivisionID:           h.DivisionID,
		AgentID:              h.AgentID,
		Statement:            h.Statement,
		SupportingEvidence:   h.SupportingEvidence,
		ExperimentalApproach: h.ExperimentalApproach,
		ExpectedImpact:       h.ExpectedImpact,
		Feasibility:          h.Feasibility,
		Upvotes:              h.Upvotes,
		Downvotes:            h.Downvotes,
		Status:               h.Status,
		CreatedAt:            h.CreatedAt,
	}
}

// NewDivisionView 从存储模型构建分部视图
func NewDivisionView(d *store.Division) DivisionView {
	return DivisionView{
		ID:             d.ID,
		MissionID:      d.MissionID,
		Name:           d.Name,
		Description:    d.Description,
		TotalTasks:     d.TotalTasks,
		CompletedTasks: d.CompletedTasks,
	}
}

// NewAssignmentView 从调度结果构建工作项视图
func NewAssignmentView(a *scheduler.Assignment) *AssignmentView {
	if a == nil {
		return nil
	}
	return &AssignmentView{
		Type:    string(a.Kind),
		Task:    NewTaskView(a.Task),
		Finding: NewFindingView(a.Finding),
	}
}

// NewVerifyDOIResponse 从核验结果构建响应
func NewVerifyDOIResponse(r *doiverify.Result) VerifyDOIResponse {
	return VerifyDOIResponse{
		Verified: r.Verified,
		DOI:      r.DOI,
		Metadata: r.Metadata,
		Reason:   r.Reason,
	}
}
