// =============================================================================
// 🗄️ RecordingArchiver - 运行归档器模拟实现
// =============================================================================
// 用于测试的归档器模拟，记录所有归档的运行并支持错误注入
//
// 使用方法:
//
//	archiver := mocks.NewRecordingArchiver()
//	orch := workflow.NewOrchestrator(deps, workflow.WithArchiver(archiver))
//	... run to completion ...
//	runs := archiver.Runs()
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/intelflow/workflow"
)

var _ workflow.Archiver = (*RecordingArchiver)(nil)

// RecordingArchiver 是 workflow.Archiver 的模拟实现
type RecordingArchiver struct {
	mu sync.Mutex

	// 归档记录
	runs []*workflow.WorkflowRun

	// 错误注入
	err error

	// 通知通道，每次归档后发送
	saved chan *workflow.WorkflowRun
}

// NewRecordingArchiver 创建新的 RecordingArchiver
func NewRecordingArchiver() *RecordingArchiver {
	return &RecordingArchiver{
		saved: make(chan *workflow.WorkflowRun, 16),
	}
}

// WithError 设置归档返回的错误
func (a *RecordingArchiver) WithError(err error) *RecordingArchiver {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

// SaveRun 实现 workflow.Archiver
func (a *RecordingArchiver) SaveRun(ctx context.Context, run *workflow.WorkflowRun) error {
	_ = ctx
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}

	a.runs = append(a.runs, run)
	select {
	case a.saved <- run:
	default:
	}
	return nil
}

// Runs 获取所有归档的运行
func (a *RecordingArchiver) Runs() []*workflow.WorkflowRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*workflow.WorkflowRun{}, a.runs...)
}

// Len 获取归档次数
func (a *RecordingArchiver) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runs)
}

// Saved 返回归档通知通道，配合 testutil.WaitForChannel 等待异步归档完成
func (a *RecordingArchiver) Saved() <-chan *workflow.WorkflowRun {
	return a.saved
}
