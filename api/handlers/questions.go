package handlers

import (
	"net/http"

	"github.com/BaSui01/intelflow/api"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 🧠 问题提交 Handler
// =============================================================================

// QuestionHandler 问题提交处理器。提交即受理：校验、分解、注册运行后
// 立刻返回 202，执行在后台继续。
type QuestionHandler struct {
	orchestrator *workflow.Orchestrator
	logger       *zap.Logger
}

// NewQuestionHandler 创建问题提交处理器
func NewQuestionHandler(orchestrator *workflow.Orchestrator, logger *zap.Logger) *QuestionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// HandleSubmit 处理问题提交请求
// @Summary 提交研究问题
// @Description 受理一个销售研究问题并返回运行 ID，执行异步进行
// @Tags 问题
// @Accept json
// @Produce json
// @Param request body api.QuestionRequest true "问题请求"
// @Success 202 {object} api.RunAccepted "运行已受理"
// @Failure 400 {object} Response "无效请求"
// @Failure 503 {object} Response "解析链无可用供应商"
// @Security ApiKeyAuth
// @Router /api/v1/questions [post]
func (h *QuestionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed, use POST", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.QuestionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	question, apiErr := req.ToQuestion()
	if apiErr != nil {
		WriteError(w, apiErr, h.logger)
		return
	}

	run, err := h.orchestrator.Submit(r.Context(), question)
	if err != nil {
		h.handleSubmitError(w, err)
		return
	}

	h.logger.Info("question accepted",
		zap.String("run_id", run.ID),
		zap.String("organization", question.Organization),
		zap.Int("focus_count", len(run.Plan.Focuses)))

	WriteJSON(w, http.StatusAccepted, api.RunAccepted{
		RunID:      run.ID,
		Status:     types.RunInProgress,
		FocusAreas: run.Plan.Areas(),
	})
}

// handleSubmitError 处理提交失败。类型化错误按其码映射状态，
// 其余包装为内部错误。
func (h *QuestionHandler) handleSubmitError(w http.ResponseWriter, err error) {
	if typed, ok := err.(*types.Error); ok {
		WriteError(w, typed, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "submit failed").WithCause(err), h.logger)
}
