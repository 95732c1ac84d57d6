package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/BaSui01/intelflow/api"
	"github.com/BaSui01/intelflow/internal/archive"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 运行查询 Handler
// =============================================================================

// RunArchive 归档查询端口。生产实现是 archive.Store；归档未配置时
// 传 nil，查询退化到在内存注册表。
type RunArchive interface {
	GetRun(ctx context.Context, id string) (*archive.RunRecord, error)
	ListRuns(ctx context.Context, opts archive.ListOptions) ([]archive.RunRecord, error)
}

// RunHandler 运行查询处理器。单运行查询先查注册表（含进行中的运行），
// 未命中再落到归档；列表查询归档优先，注册表兜底。
type RunHandler struct {
	registry *workflow.Registry
	archive  RunArchive
	logger   *zap.Logger
}

// NewRunHandler 创建运行查询处理器。arch 可以为 nil。
func NewRunHandler(registry *workflow.Registry, arch RunArchive, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		registry: registry,
		archive:  arch,
		logger:   logger,
	}
}

// HandleRun 处理单运行查询
// @Summary 查询运行
// @Description 返回运行的响应契约；进行中时返回各焦点状态
// @Tags 运行
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} api.RunView "运行视图"
// @Failure 404 {object} Response "运行不存在"
// @Security ApiKeyAuth
// @Router /api/v1/runs/{id} [get]
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "run id is required", h.logger)
		return
	}

	if run, ok := h.registry.Get(id); ok {
		WriteJSON(w, http.StatusOK, api.NewRunView(run))
		return
	}

	if h.archive == nil {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound, "run not found: "+id, h.logger)
		return
	}

	rec, err := h.archive.GetRun(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound, "run not found: "+id, h.logger)
		return
	}
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "archive lookup failed").WithCause(err), h.logger)
		return
	}

	view, err := api.NewRunViewFromRecord(rec)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "archived response is corrupt").WithCause(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleList 处理运行列表查询
// @Summary 列出运行
// @Description 按创建时间倒序列出最近的运行
// @Tags 运行
// @Produce json
// @Param organization query string false "按组织过滤"
// @Param status query string false "按状态过滤"
// @Param limit query int false "条数上限（默认 50，最大 500）"
// @Param offset query int false "偏移量"
// @Success 200 {object} api.RunListResponse "运行列表"
// @Security ApiKeyAuth
// @Router /api/v1/runs [get]
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	if h.archive == nil {
		h.listFromRegistry(w, opts)
		return
	}

	records, err := h.archive.ListRuns(r.Context(), opts)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "archive list failed").WithCause(err), h.logger)
		return
	}

	summaries := make([]api.RunSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, api.NewRunSummary(&records[i]))
	}
	WriteJSON(w, http.StatusOK, api.RunListResponse{Runs: summaries, Count: len(summaries)})
}

// listFromRegistry 归档未配置时的兜底：列出注册表中仍持有的运行。
func (h *RunHandler) listFromRegistry(w http.ResponseWriter, opts archive.ListOptions) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	summaries := make([]api.RunSummary, 0, limit)
	for _, run := range h.registry.List() {
		if opts.Organization != "" && run.Question.Organization != opts.Organization {
			continue
		}
		if opts.Status != "" && string(run.Status()) != opts.Status {
			continue
		}
		summaries = append(summaries, api.NewRunSummaryFromRun(run))
		if len(summaries) >= limit {
			break
		}
	}
	WriteJSON(w, http.StatusOK, api.RunListResponse{Runs: summaries, Count: len(summaries)})
}

func listOptionsFromQuery(r *http.Request) archive.ListOptions {
	q := r.URL.Query()
	opts := archive.ListOptions{
		Organization: q.Get("organization"),
		Status:       q.Get("status"),
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			opts.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Offset = n
		}
	}
	return opts
}
