package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/intelflow/internal/database"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// ErrNotFound 归档中不存在请求的运行。
var ErrNotFound = errors.New("archive: run not found")

// =============================================================================
// 💾 归档数据模型
// =============================================================================

// RunRecord 一次终结运行的归档行。响应契约整体以 JSON 落库，
// 便于 API 层直接回放；其余列为查询维度。
type RunRecord struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Organization   string     `gorm:"not null;index:idx_runs_organization" json:"organization"`
	Question       string     `gorm:"not null" json:"question"`
	Status         string     `gorm:"not null;index:idx_runs_status" json:"status"`
	FocusAreas     string     `gorm:"not null;default:'[]'" json:"focus_areas"`
	Response       string     `gorm:"not null;default:'{}'" json:"response"`
	ReadinessScore *int       `json:"readiness_score,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_runs_created_at" json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMS     int64      `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`

	// 关联
	Focuses []FocusResultRecord `gorm:"foreignKey:RunID;references:ID" json:"focuses,omitempty"`
}

func (RunRecord) TableName() string {
	return "runs"
}

// DecodeResponse 还原归档的响应契约。
func (r *RunRecord) DecodeResponse() (*types.Response, error) {
	var resp types.Response
	if err := json.Unmarshal([]byte(r.Response), &resp); err != nil {
		return nil, fmt.Errorf("archive: decode response for run %s: %w", r.ID, err)
	}
	return &resp, nil
}

// FocusResultRecord 单个焦点的终态归档行。
type FocusResultRecord struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID          string     `gorm:"not null;size:36;uniqueIndex:idx_focus_results_run_focus" json:"run_id"`
	Focus          string     `gorm:"not null;uniqueIndex:idx_focus_results_run_focus" json:"focus"`
	State          string     `gorm:"not null;index:idx_focus_results_state" json:"state"`
	FailureReason  string     `gorm:"not null;default:''" json:"failure_reason"`
	ProvidersTried string     `gorm:"not null;default:'[]'" json:"providers_tried"`
	EntityCount    int        `gorm:"not null;default:0" json:"entity_count"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func (FocusResultRecord) TableName() string {
	return "focus_results"
}

// =============================================================================
// 🗄️ 归档存储
// =============================================================================

var _ workflow.Archiver = (*Store)(nil)

// Store 通过共享连接池持久化终结运行，并提供查询与清理入口。
type Store struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewStore 创建归档存储。
func NewStore(pool *database.PoolManager, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger.With(zap.String("component", "archive")),
	}
}

// AutoMigrate 按 gorm 模型建表。sqlite 默认部署在启动时调用；
// postgres/mysql 部署用 migrate 子命令走版本化迁移，两者产出同构。
func (s *Store) AutoMigrate() error {
	return s.pool.DB().AutoMigrate(&RunRecord{}, &FocusResultRecord{})
}

// Ping 透传连接池健康检查。
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveRun 实现 workflow.Archiver。同一运行重复归档时整体替换，
// 先删后建保证焦点行与最新终态一致。
func (s *Store) SaveRun(ctx context.Context, run *workflow.WorkflowRun) error {
	rec, err := buildRecord(run)
	if err != nil {
		return err
	}

	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", rec.ID).Delete(&FocusResultRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", rec.ID).Delete(&RunRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("archive: save run %s: %w", rec.ID, err)
	}

	s.logger.Debug("run archived",
		zap.String("run_id", rec.ID),
		zap.String("status", rec.Status),
		zap.Int("focus_rows", len(rec.Focuses)))
	return nil
}

// GetRun 按 ID 取一条归档运行及其焦点行。
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.pool.DB().WithContext(ctx).
		Preload("Focuses").
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get run %s: %w", id, err)
	}
	return &rec, nil
}

// ListOptions 归档查询的筛选与分页参数。
type ListOptions struct {
	Organization string
	Status       string
	Limit        int
	Offset       int
}

// ListRuns 按创建时间倒序列出归档运行（不含焦点行）。
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	q := s.pool.DB().WithContext(ctx).
		Model(&RunRecord{}).
		Order("created_at DESC").
		Limit(limit)
	if opts.Organization != "" {
		q = q.Where("organization = ?", opts.Organization)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var out []RunRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	return out, nil
}

// Count 返回归档运行总数。
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.DB().WithContext(ctx).Model(&RunRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("archive: count runs: %w", err)
	}
	return n, nil
}

// PruneBefore 删除 cutoff 之前创建的归档运行，返回删除的运行数。
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var pruned int64
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		sub := tx.Model(&RunRecord{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("run_id IN (?)", sub).Delete(&FocusResultRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("created_at < ?", cutoff).Delete(&RunRecord{})
		if res.Error != nil {
			return res.Error
		}
		pruned = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("archive: prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if pruned > 0 {
		s.logger.Info("archived runs pruned",
			zap.Int64("runs", pruned),
			zap.Time("cutoff", cutoff))
	}
	return pruned, nil
}

// =============================================================================
// 🔧 记录构建
// =============================================================================

// buildRecord 把终结运行拍平成归档行。焦点行按计划顺序排列。
func buildRecord(run *workflow.WorkflowRun) (*RunRecord, error) {
	resp, ok := run.Response()
	if !ok {
		return nil, fmt.Errorf("archive: run %s is not terminal", run.ID)
	}

	respJSON, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("archive: encode response for run %s: %w", run.ID, err)
	}
	areasJSON, err := json.Marshal(resp.FocusAreas)
	if err != nil {
		return nil, fmt.Errorf("archive: encode focus areas for run %s: %w", run.ID, err)
	}

	var readiness *int
	if resp.MeetingReadiness != nil {
		score := resp.MeetingReadiness.Score
		readiness = &score
	}

	created := run.CreatedAt()
	rec := &RunRecord{
		ID:             run.ID,
		Organization:   run.Question.Organization,
		Question:       run.Question.Text,
		Status:         string(resp.Status),
		FocusAreas:     string(areasJSON),
		Response:       string(respJSON),
		ReadinessScore: readiness,
		CreatedAt:      created,
	}
	if finished := run.FinishedAt(); !finished.IsZero() {
		f := finished
		rec.FinishedAt = &f
		rec.DurationMS = finished.Sub(created).Milliseconds()
	}

	states := run.States()
	results := run.Results()
	for _, f := range run.Plan.Focuses {
		row := FocusResultRecord{
			RunID:          run.ID,
			Focus:          string(f.Area),
			State:          string(states[f.Area]),
			ProvidersTried: "[]",
		}
		if res := results[f.Area]; res != nil {
			row.FailureReason = res.FailureReason
			row.EntityCount = res.EntityCount()
			if len(res.ProvidersTried) > 0 {
				tried, err := json.Marshal(res.ProvidersTried)
				if err != nil {
					return nil, fmt.Errorf("archive: encode providers for run %s: %w", run.ID, err)
				}
				row.ProvidersTried = string(tried)
			}
			if !res.StartedAt.IsZero() {
				t := res.StartedAt
				row.StartedAt = &t
			}
			if !res.FinishedAt.IsZero() {
				t := res.FinishedAt
				row.FinishedAt = &t
			}
		}
		if row.FailureReason == "" {
			row.FailureReason = run.Reason(f.Area)
		}
		rec.Focuses = append(rec.Focuses, row)
	}
	return rec, nil
}
