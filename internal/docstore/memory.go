package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// 🧠 内存报告文档库
// =============================================================================

// MemoryStore 内存实现：支撑测试，并在未配置 Mongo 时兜底。
// 所有读写做深拷贝，调用方修改返回值不会污染存储。
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
	}
}

// Save 写入或覆盖一份报告
func (s *MemoryStore) Save(ctx context.Context, report *Report) error {
	if err := report.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := cloneReport(report)
	if err != nil {
		return err
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[stored.RunID] = stored
	return nil
}

// Get 按运行 ID 读取报告
func (s *MemoryStore) Get(ctx context.Context, runID string) (*Report, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	report, ok := s.reports[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(report)
}

// List 按组织名筛选并按创建时间倒序返回报告
func (s *MemoryStore) List(ctx context.Context, organization string, limit int64) ([]*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]*Report, 0, len(s.reports))
	for _, report := range s.reports {
		if organization != "" && report.Organization != organization {
			continue
		}
		matched = append(matched, report)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	max := clampListLimit(limit)
	if int64(len(matched)) > max {
		matched = matched[:max]
	}

	out := make([]*Report, 0, len(matched))
	for _, report := range matched {
		clone, err := cloneReport(report)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	return out, nil
}

// Delete 按运行 ID 删除报告
func (s *MemoryStore) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[runID]; !ok {
		return ErrNotFound
	}
	delete(s.reports, runID)
	return nil
}

// Ping 健康检查；内存实现恒可用
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close 释放存储
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = make(map[string]*Report)
	return nil
}

// Len 返回当前存储的报告数（测试用）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// cloneReport 通过 JSON 往返做深拷贝
func cloneReport(report *Report) (*Report, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to clone report: %w", err)
	}
	out := &Report{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to clone report: %w", err)
	}
	return out, nil
}
