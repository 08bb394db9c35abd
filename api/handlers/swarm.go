package handlers

import (
	"net/http"

	"github.com/LahousseBram/CureSwarm/api"
	"github.com/LahousseBram/CureSwarm/internal/research"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🐝 蜂群工作流 Handler
// =============================================================================

// SwarmHandler 智能体注册、任务派发与成果提交处理器
type SwarmHandler struct {
	service *research.Service
	logger  *zap.Logger
}

// NewSwarmHandler 创建蜂群工作流处理器
func NewSwarmHandler(service *research.Service, logger *zap.Logger) *SwarmHandler {
	return &SwarmHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRegister 处理智能体注册，注册即派发首个工作项
// @Summary 注册智能体
// @Description 注册一个新智能体并派发其首个工作项；五分钟内重复注册返回既有档案
// @Tags 蜂群
// @Accept json
// @Produce json
// @Param request body api.RegisterAgentRequest true "注册请求"
// @Success 201 {object} Response{data=api.RegisterAgentResponse} "注册成功"
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/agents/register [post]
func (h *SwarmHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterAgentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	agent, assignment, err := h.service.RegisterAgent(r.Context(), req.Name, req.Model, req.MaxTasks)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, api.RegisterAgentResponse{
		Agent:      api.NewAgentView(agent),
		Assignment: api.NewAssignmentView(assignment),
	})
}

// HandleNextTask 处理任务领取
// @Summary 领取下一个工作项
// @Description 为智能体选取下一个工作项；无可派发工作时 assignment 为空
// @Tags 蜂群
// @Produce json
// @Param agentID path string true "智能体 ID"
// @Success 200 {object} Response{data=api.AssignmentView} "工作项"
// @Failure 404 {object} Response "智能体不存在"
// @Router /api/v1/tasks/next/{agentID} [get]
func (h *SwarmHandler) HandleNextTask(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	if agentID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "agent ID is required", h.logger)
		return
	}

	assignment, err := h.service.NextTask(r.Context(), agentID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	// assignment 为空表示当前无可派发工作，这不是错误
	WriteSuccess(w, api.NewAssignmentView(assignment))
}

// HandleSubmit 处理成果提交，按 type 分流
// @Summary 提交成果
// @Description 提交研究发现、质检评审或假设，完成对应任务
// @Tags 蜂群
// @Accept json
// @Produce json
// @Param request body api.SubmitRequest true "提交请求"
// @Success 201 {object} Response{data=api.SubmitResponse} "提交成功"
// @Failure 400 {object} Response "无效请求"
// @Failure 409 {object} Response "重复提交或任务归属冲突"
// @Router /api/v1/tasks/submit [post]
func (h *SwarmHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	switch req.Type {
	case "finding":
		h.submitFinding(w, r, &req)
	case "qc_review":
		h.submitReview(w, r, &req)
	case "hypothesis":
		h.submitHypothesis(w, r, &req)
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"type must be finding, qc_review, or hypothesis", h.logger)
	}
}

func (h *SwarmHandler) submitFinding(w http.ResponseWriter, r *http.Request, req *api.SubmitRequest) {
	if req.Finding == nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "finding payload is required", h.logger)
		return
	}

	citations := make([]research.CitationInput, 0, len(req.Finding.Citations))
	for _, c := range req.Finding.Citations {
		citations = append(citations, research.CitationInput{
			Title:   c.Title,
			Authors: c.Authors,
			Journal: c.Journal,
			Year:    c.Year,
			DOI:     c.DOI,
			URL:     c.URL,
		})
	}

	finding, err := h.service.SubmitFinding(r.Context(), research.FindingSubmission{
		AgentID:        req.AgentID,
		TaskID:         req.Finding.TaskID,
		Summary:        req.Finding.Summary,
		Confidence:     req.Finding.Confidence,
		Contradictions: req.Finding.Contradictions,
		Gaps:           req.Finding.Gaps,
		Citations:      citations,
		Quality:        req.Finding.Quality,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, api.SubmitResponse{
		Type:    "finding",
		Finding: api.NewFindingView(finding),
	})
}

func (h *SwarmHandler) submitReview(w http.ResponseWriter, r *http.Request, req *api.SubmitRequest) {
	if req.Review == nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "review payload is required", h.logger)
		return
	}

	result, err := h.service.SubmitReview(r.Context(), req.AgentID,
		req.Review.FindingID, store.Verdict(req.Review.Verdict), req.Review.Reasoning)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, api.SubmitResponse{
		Type: "qc_review",
		Review: &api.ReviewResultView{
			FindingID:   req.Review.FindingID,
			Resolved:    result.Resolved,
			Status:      string(result.Status),
			ReviewCount: result.ReviewCount,
		},
	})
}

func (h *SwarmHandler) submitHypothesis(w http.ResponseWriter, r *http.Request, req *api.SubmitRequest) {
	if req.Hypothesis == nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "hypothesis payload is required", h.logger)
		return
	}

	hypothesis, err := h.service.SubmitHypothesis(r.Context(), research.HypothesisSubmission{
		AgentID:              req.AgentID,
		TaskID:               req.Hypothesis.TaskID,
		Statement:            req.Hypothesis.Statement,
		SupportingEvidence:   req.Hypothesis.SupportingEvidence,
		ExperimentalApproach: req.Hypothesis.ExperimentalApproach,
		ExpectedImpact:       req.Hypothesis.ExpectedImpact,
		Feasibility:          req.Hypothesis.Feasibility,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteCreated(w, api.SubmitResponse{
		Type:       "hypothesis",
		Hypothesis: api.NewHypothesisView(hypothesis),
	})
}

// HandleVerifyDOI 处理 DOI 核验
// @Summary 核验 DOI
// @Description 调用引文注册中心核验 DOI 并返回书目元数据
// @Tags 蜂群
// @Accept json
// @Produce json
// @Param request body api.VerifyDOIRequest true "核验请求"
// @Success 200 {object} Response{data=api.VerifyDOIResponse} "核验结果"
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/doi/verify [post]
func (h *SwarmHandler) HandleVerifyDOI(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyDOIRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.service.VerifyDOI(r.Context(), req.DOI)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.NewVerifyDOIResponse(result))
}
