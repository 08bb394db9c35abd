package handlers

import (
	"net/http"
	"strconv"

	"github.com/LahousseBram/CureSwarm/api"
	"github.com/LahousseBram/CureSwarm/internal/research"
	"github.com/LahousseBram/CureSwarm/internal/store"
	"github.com/LahousseBram/CureSwarm/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔍 只读查询 Handler
// =============================================================================

// QueryHandler 蜂群只读查询处理器
type QueryHandler struct {
	service *research.Service
	logger  *zap.Logger
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(service *research.Service, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListAgents 列出全部智能体
// @Summary 智能体列表
// @Tags 查询
// @Produce json
// @Success 200 {object} Response{data=[]api.AgentView} "智能体列表"
// @Router /api/v1/agents [get]
func (h *QueryHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.Agents(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	views := make([]api.AgentView, 0, len(agents))
	for i := range agents {
		views = append(views, api.NewAgentView(&agents[i]))
	}
	WriteSuccess(w, views)
}

// HandleGetAgent 查询单个智能体
// @Summary 智能体详情
// @Tags 查询
// @Produce json
// @Param id path string true "智能体 ID"
// @Success 200 {object} Response{data=api.AgentView} "智能体详情"
// @Failure 404 {object} Response "智能体不存在"
// @Router /api/v1/agents/{id} [get]
func (h *QueryHandler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "agent ID is required", h.logger)
		return
	}

	agent, err := h.service.Agent(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewAgentView(agent))
}

// HandleListFindings 列出研究发现
// @Summary 发现列表
// @Description 按质检状态与分部过滤的发现列表
// @Tags 查询
// @Produce json
// @Param status query string false "质检状态过滤: pending, passed, flagged, rejected"
// @Param division query string false "分部 ID 过滤"
// @Param limit query int false "返回条数上限"
// @Param offset query int false "偏移量"
// @Success 200 {object} Response{data=[]api.FindingView} "发现列表"
// @Router /api/v1/findings [get]
func (h *QueryHandler) HandleListFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)

	findings, err := h.service.Findings(r.Context(),
		store.QCStatus(q.Get("status")), q.Get("division"), limit, offset)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	views := make([]*api.FindingView, 0, len(findings))
	for i := range findings {
		views = append(views, api.NewFindingView(&findings[i]))
	}
	WriteSuccess(w, views)
}

// HandleGetFinding 查询单个发现（含引文与评审）
// @Summary 发现详情
// @Tags 查询
// @Produce json
// @Param id path string true "发现 ID"
// @Success 200 {object} Response{data=api.FindingView} "发现详情"
// @Failure 404 {object} Response "发现不存在"
// @Router /api/v1/findings/{id} [get]
func (h *QueryHandler) HandleGetFinding(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "finding ID is required", h.logger)
		return
	}

	finding, err := h.service.Finding(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewFindingView(finding))
}

// HandleListHypotheses 列出假设
// @Summary 假设列表
// @Tags 查询
// @Produce json
// @Param division query string false "分部 ID 过滤"
// @Param limit query int false "返回条数上限"
// @Success 200 {object} Response{data=[]api.HypothesisView} "假设列表"
// @Router /api/v1/hypotheses [get]
func (h *QueryHandler) HandleListHypotheses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hypotheses, err := h.service.Hypotheses(r.Context(), q.Get("division"), queryInt(q.Get("limit"), 50))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	views := make([]*api.HypothesisView, 0, len(hypotheses))
	for i := range hypotheses {
		views = append(views, api.NewHypothesisView(&hypotheses[i]))
	}
	WriteSuccess(w, views)
}

// HandleGetHypothesis 查询单个假设
// @Summary 假设详情
// @Tags 查询
// @Produce json
// @Param id path string true "假设 ID"
// @Success 200 {object} Response{data=api.HypothesisView} "假设详情"
// @Failure 404 {object} Response "假设不存在"
// @Router /api/v1/hypotheses/{id} [get]
func (h *QueryHandler) HandleGetHypothesis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "hypothesis ID is required", h.logger)
		return
	}

	hypothesis, err := h.service.Hypothesis(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewHypothesisView(hypothesis))
}

// HandleListDivisions 列出研究分部
// @Summary 分部列表
// @Tags 查询
// @Produce json
// @Success 200 {object} Response{data=[]api.DivisionView} "分部列表"
// @Router /api/v1/divisions [get]
func (h *QueryHandler) HandleListDivisions(w http.ResponseWriter, r *http.Request) {
	divisions, err := h.service.Divisions(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	views := make([]api.DivisionView, 0, len(divisions))
	for i := range divisions {
		views = append(views, api.NewDivisionView(&divisions[i]))
	}
	WriteSuccess(w, views)
}

// HandleDivisionReport 生成分部研究报告
// @Summary 分部报告
// @Description 汇总分部的发现、数据质量、矛盾与缺口、假设及建议行动
// @Tags 查询
// @Produce json
// @Param id path string true "分部 ID"
// @Success 200 {object} Response{data=research.DivisionReport} "分部报告"
// @Failure 404 {object} Response "分部不存在"
// @Router /api/v1/divisions/{id}/report [get]
func (h *QueryHandler) HandleDivisionReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "division ID is required", h.logger)
		return
	}

	report, err := h.service.DivisionReport(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, report)
}

// HandleStats 蜂群总览统计
// @Summary 总览统计
// @Tags 查询
// @Produce json
// @Success 200 {object} Response{data=store.SwarmStats} "总览统计"
// @Router /api/v1/stats [get]
func (h *QueryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, stats)
}

// HandleQCStats 质检管道统计
// @Summary 质检统计
// @Tags 查询
// @Produce json
// @Success 200 {object} Response{data=store.QCStats} "质检统计"
// @Router /api/v1/qc/stats [get]
func (h *QueryHandler) HandleQCStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetQCStats(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, stats)
}

// HandleOpportunities 综合任务机会概览
// @Summary 综合机会
// @Tags 查询
// @Produce json
// @Success 200 {object} Response{data=generator.Opportunities} "综合机会概览"
// @Router /api/v1/synthesis/opportunities [get]
func (h *QueryHandler) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	opportunities, err := h.service.GetOpportunities(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, opportunities)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
