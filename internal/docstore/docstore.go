package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// ErrNotFound 文档库中不存在请求的报告。
var ErrNotFound = errors.New("docstore: report not found")

// =============================================================================
// 📄 报告文档模型
// =============================================================================

// Report 一次终结运行的完整报告文档，以运行 ID 为主键。
// Response 保留输出契约的完整结构，供下游 CRM / 报表消费方读取；
// 其余字段为查询与筛选维度。
type Report struct {
	// 运行 ID，文档主键
	RunID string `json:"run_id"`

	// 目标组织（取响应中的解析后名称）
	Organization string `json:"organization"`

	// 原始问题文本
	Question string `json:"question"`

	// 运行终态
	Status types.RunStatus `json:"status"`

	// 会面就绪度总分；综述未产出时为 nil
	ReadinessScore *int `json:"readiness_score,omitempty"`

	// 完整输出契约
	Response *types.Response `json:"response"`

	// 运行创建时间
	CreatedAt time.Time `json:"created_at"`

	// 文档最近写入时间
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate 检查报告是否可落库
func (r *Report) Validate() error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	if r.RunID == "" {
		return fmt.Errorf("report run_id is required")
	}
	if r.Response == nil {
		return fmt.Errorf("report response is required")
	}
	return nil
}

// Store 报告文档库。
// Mongo 实现服务于生产；内存实现支撑测试并在未配置 Mongo 时兜底。
// 文档库的有无从不影响执行管线本身。
type Store interface {
	// Save 写入或覆盖一份报告（按运行 ID 幂等）
	Save(ctx context.Context, report *Report) error

	// Get 按运行 ID 读取报告；不存在时返回 ErrNotFound
	Get(ctx context.Context, runID string) (*Report, error)

	// List 按组织名筛选（空串不筛选），按创建时间倒序返回最多 limit 份
	List(ctx context.Context, organization string, limit int64) ([]*Report, error)

	// Delete 按运行 ID 删除报告；不存在时返回 ErrNotFound
	Delete(ctx context.Context, runID string) error

	// Ping 健康检查
	Ping(ctx context.Context) error

	// Close 释放底层连接
	Close(ctx context.Context) error
}

// 列表查询的默认与上限条数，与运行归档一致
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampListLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// =============================================================================
// 🔗 工作流挂接
// =============================================================================

// RunArchiver 把终结运行转成报告文档落库，实现 workflow.Archiver。
// 与运行归档（internal/archive）并联挂在编排器上。
type RunArchiver struct {
	store  Store
	logger *zap.Logger
}

// NewRunArchiver creates the workflow hook around a report store.
func NewRunArchiver(store Store, logger *zap.Logger) *RunArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunArchiver{
		store:  store,
		logger: logger.With(zap.String("component", "report_archiver")),
	}
}

var _ workflow.Archiver = (*RunArchiver)(nil)

// SaveRun 提取运行的输出契约并保存为报告。
// 尚未终结的运行没有契约可存，直接跳过。
func (a *RunArchiver) SaveRun(ctx context.Context, run *workflow.WorkflowRun) error {
	resp, ok := run.Response()
	if !ok {
		a.logger.Debug("run has no response yet, skipping report", zap.String("run_id", run.ID))
		return nil
	}

	report := ReportFromRun(run, resp)
	if err := a.store.Save(ctx, report); err != nil {
		return fmt.Errorf("save report for run %s: %w", run.ID, err)
	}

	a.logger.Info("report saved",
		zap.String("run_id", run.ID),
		zap.String("organization", report.Organization),
		zap.String("status", string(report.Status)))
	return nil
}

// ReportFromRun 由终结运行与其响应组装报告文档
func ReportFromRun(run *workflow.WorkflowRun, resp *types.Response) *Report {
	report := &Report{
		RunID:        run.ID,
		Organization: resp.Organization,
		Status:       resp.Status,
		Response:     resp,
		CreatedAt:    run.CreatedAt(),
		UpdatedAt:    time.Now().UTC(),
	}
	if run.Question != nil {
		report.Question = run.Question.Text
		if report.Organization == "" {
			report.Organization = run.Question.Organization
		}
	}
	if resp.MeetingReadiness != nil {
		score := resp.MeetingReadiness.Score
		report.ReadinessScore = &score
	}
	return report
}
