package api

import (
	"strings"
	"time"

	"github.com/BaSui01/intelflow/internal/archive"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// =============================================================================
// 📦 问题提交类型
// =============================================================================

// QuestionRequest 提交一个销售研究问题的请求体。
// @Description 问题提交请求结构
type QuestionRequest struct {
	// 目标组织名称
	Organization string `json:"organization" example:"Abbey Capital"`
	// 自由文本问题
	Question string `json:"question" example:"Who are the decision makers and what did they invest in recently?"`
	// 可选领域标签
	Tags []string `json:"tags,omitempty" example:"fintech"`
	// 可选焦点白名单，绕过关键词分解；接受 decision_makers 与 decision-makers 两种拼写
	Focus []string `json:"focus,omitempty" example:"decision_makers"`
	// 整个运行的墙钟预算（Go duration 字符串，如 "90s"）；空值用服务端默认
	Budget string `json:"budget,omitempty" example:"90s"`
	// 是否附加综述焦点；缺省为 true
	IncludeSynthesis *bool `json:"include_synthesis,omitempty"`
}

// ToQuestion 校验请求并转换为领域问题对象。
func (r *QuestionRequest) ToQuestion() (*types.Question, *types.Error) {
	q := &types.Question{
		Organization:     strings.TrimSpace(r.Organization),
		Text:             strings.TrimSpace(r.Question),
		Tags:             r.Tags,
		IncludeSynthesis: true,
	}
	if r.IncludeSynthesis != nil {
		q.IncludeSynthesis = *r.IncludeSynthesis
	}

	for _, raw := range r.Focus {
		focus, ok := types.ParseFocusArea(raw)
		if !ok {
			return nil, types.NewError(types.ErrInvalidRequest, "unknown focus area: "+raw)
		}
		q.Focus = append(q.Focus, focus)
	}

	if r.Budget != "" {
		budget, err := time.ParseDuration(r.Budget)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "invalid budget duration: "+r.Budget).WithCause(err)
		}
		if budget <= 0 {
			return nil, types.NewError(types.ErrInvalidRequest, "budget must be positive")
		}
		q.Budget = budget
	}

	if err := q.Validate(); err != nil {
		if typed, ok := err.(*types.Error); ok {
			return nil, typed
		}
		return nil, types.NewError(types.ErrInvalidRequest, err.Error())
	}
	return q, nil
}

// RunAccepted 提交成功后的 202 响应体。
// @Description 运行受理响应结构
type RunAccepted struct {
	// 运行 ID，用于后续查询与事件订阅
	RunID string `json:"run_id" example:"3f1d1f0a-8c2e-4b7f-9c44-6a0a3b1f2e9d"`
	// 受理时恒为 in_progress
	Status types.RunStatus `json:"status" example:"in_progress"`
	// 分解得到的焦点计划，依赖序排列
	FocusAreas []types.FocusArea `json:"focus_areas"`
}

// =============================================================================
// 🔄 运行查询类型
// =============================================================================

// RunView 单个运行的查询视图。进行中只有 focus_states，终结后带完整
// 响应契约；两种形态共享 run_id 与 status。
// @Description 运行查询响应结构
type RunView struct {
	// 运行 ID
	RunID string `json:"run_id"`
	// 运行状态（in_progress、complete、partial、timeout）
	Status types.RunStatus `json:"status"`
	// 受理时间
	CreatedAt time.Time `json:"created_at"`
	// 终结时间（仅终结后）
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// 运行耗时毫秒数（仅终结后）
	DurationMS int64 `json:"duration_ms,omitempty"`
	// 各焦点当前状态（仅进行中）
	FocusStates map[types.FocusArea]types.FocusState `json:"focus_states,omitempty"`
	// 响应契约（仅终结后）
	Result *types.Response `json:"result,omitempty"`
}

// NewRunView 从在内存注册表中的运行构建查询视图。
func NewRunView(run *workflow.WorkflowRun) *RunView {
	view := &RunView{
		RunID:     run.ID,
		Status:    run.Status(),
		CreatedAt: run.CreatedAt(),
	}
	if resp, ok := run.Response(); ok {
		view.Result = resp
		if finished := run.FinishedAt(); !finished.IsZero() {
			f := finished
			view.FinishedAt = &f
			view.DurationMS = finished.Sub(run.CreatedAt()).Milliseconds()
		}
		return view
	}
	view.FocusStates = run.States()
	return view
}

// NewRunViewFromRecord 从归档行还原查询视图。归档中的运行必然已终结。
func NewRunViewFromRecord(rec *archive.RunRecord) (*RunView, error) {
	resp, err := rec.DecodeResponse()
	if err != nil {
		return nil, err
	}
	return &RunView{
		RunID:      rec.ID,
		Status:     types.RunStatus(rec.Status),
		CreatedAt:  rec.CreatedAt,
		FinishedAt: rec.FinishedAt,
		DurationMS: rec.DurationMS,
		Result:     resp,
	}, nil
}

// RunSummary 运行列表中的单行摘要，不含完整契约。
// @Description 运行摘要结构
type RunSummary struct {
	RunID          string          `json:"run_id"`
	Organization   string          `json:"organization"`
	Question       string          `json:"question"`
	Status         types.RunStatus `json:"status"`
	ReadinessScore *int            `json:"readiness_score,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	DurationMS     int64           `json:"duration_ms,omitempty"`
}

// NewRunSummary 从归档行构建摘要。
func NewRunSummary(rec *archive.RunRecord) RunSummary {
	return RunSummary{
		RunID:          rec.ID,
		Organization:   rec.Organization,
		Question:       rec.Question,
		Status:         types.RunStatus(rec.Status),
		ReadinessScore: rec.ReadinessScore,
		CreatedAt:      rec.CreatedAt,
		FinishedAt:     rec.FinishedAt,
		DurationMS:     rec.DurationMS,
	}
}

// NewRunSummaryFromRun 从在内存注册表中的运行构建摘要，归档未配置时
// 列表端点以此回退。
func NewRunSummaryFromRun(run *workflow.WorkflowRun) RunSummary {
	s := RunSummary{
		RunID:        run.ID,
		Organization: run.Question.Organization,
		Question:     run.Question.Text,
		Status:       run.Status(),
		CreatedAt:    run.CreatedAt(),
	}
	if resp, ok := run.Response(); ok && resp.MeetingReadiness != nil {
		score := resp.MeetingReadiness.Score
		s.ReadinessScore = &score
	}
	if finished := run.FinishedAt(); !finished.IsZero() {
		f := finished
		s.FinishedAt = &f
		s.DurationMS = finished.Sub(run.CreatedAt()).Milliseconds()
	}
	return s
}

// RunListResponse 运行列表响应体。
// @Description 运行列表响应结构
type RunListResponse struct {
	// 运行摘要，按创建时间倒序
	Runs []RunSummary `json:"runs"`
	// 本页条数
	Count int `json:"count"`
}
