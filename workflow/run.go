package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/intelflow/types"
	"github.com/google/uuid"
)

// WorkflowRun is one question's execution: the plan, the per-focus state
// machine, accumulated results, and the assembled response once terminal.
// All accessors are safe for concurrent use.
type WorkflowRun struct {
	ID       string
	Question *types.Question
	Plan     *Decomposition

	mu         sync.RWMutex
	states     map[types.FocusArea]types.FocusState
	reasons    map[types.FocusArea]string
	results    map[types.FocusArea]*types.AgentResult
	response   *types.Response
	status     types.RunStatus
	createdAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

func newRun(q *types.Question, plan *Decomposition) *WorkflowRun {
	states := make(map[types.FocusArea]types.FocusState, len(plan.Focuses))
	for _, f := range plan.Focuses {
		states[f.Area] = types.StatePending
	}
	return &WorkflowRun{
		ID:        uuid.NewString(),
		Question:  q,
		Plan:      plan,
		states:    states,
		reasons:   make(map[types.FocusArea]string),
		results:   make(map[types.FocusArea]*types.AgentResult, len(plan.Focuses)),
		status:    types.RunInProgress,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// State returns the current state of one focus.
func (r *WorkflowRun) State(focus types.FocusArea) types.FocusState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[focus]
}

// States returns a snapshot of every focus state.
func (r *WorkflowRun) States() map[types.FocusArea]types.FocusState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.FocusArea]types.FocusState, len(r.states))
	for focus, state := range r.states {
		out[focus] = state
	}
	return out
}

// Reason returns the recorded transition reason for one focus, if any.
func (r *WorkflowRun) Reason(focus types.FocusArea) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reasons[focus]
}

// setState 迁移焦点状态并返回旧态；终态焦点不再迁移（幂等保护）。
func (r *WorkflowRun) setState(focus types.FocusArea, to types.FocusState, reason string) (types.FocusState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := r.states[focus]
	if from.Terminal() {
		return from, false
	}
	r.states[focus] = to
	if reason != "" {
		r.reasons[focus] = reason
	}
	return from, true
}

// Result returns the terminal result for one focus, nil while pending or
// running.
func (r *WorkflowRun) Result(focus types.FocusArea) *types.AgentResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.results[focus]
}

// Results returns a snapshot of all terminal results keyed by focus.
func (r *WorkflowRun) Results() map[types.FocusArea]*types.AgentResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.FocusArea]*types.AgentResult, len(r.results))
	for focus, res := range r.results {
		out[focus] = res
	}
	return out
}

func (r *WorkflowRun) setResult(focus types.FocusArea, res *types.AgentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[focus] = res
}

// Organization returns the resolved profile once company resolution has
// terminated, nil otherwise. Dependents run degraded when it stays nil.
func (r *WorkflowRun) Organization() *types.OrganizationProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.results[types.FocusCompanyResolution]; ok && res != nil {
		return res.Organization
	}
	return nil
}

// Status returns the run status, RunInProgress until terminal.
func (r *WorkflowRun) Status() types.RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Response returns the assembled contract once the run is terminal.
func (r *WorkflowRun) Response() (*types.Response, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.response, r.response != nil
}

// finish 落终态：写入契约与状态并关闭 done。只生效一次。
func (r *WorkflowRun) finish(status types.RunStatus, resp *types.Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != types.RunInProgress {
		return false
	}
	r.status = status
	r.response = resp
	r.finishedAt = time.Now().UTC()
	close(r.done)
	return true
}

// Done is closed when the run reaches a terminal status.
func (r *WorkflowRun) Done() <-chan struct{} { return r.done }

// Wait blocks until the run terminates or ctx is cancelled.
func (r *WorkflowRun) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreatedAt returns when the run was accepted.
func (r *WorkflowRun) CreatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.createdAt
}

// FinishedAt returns when the run terminated, zero while in progress.
func (r *WorkflowRun) FinishedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt
}

// Registry 运行注册表：按 ID 查询，超出容量按接收顺序淘汰最旧的
// 已终结运行（进行中的运行不淘汰）。
type Registry struct {
	mu       sync.RWMutex
	runs     map[string]*WorkflowRun
	order    []string
	capacity int
}

// NewRunRegistry creates a registry holding at most capacity runs;
// capacity <= 0 means unbounded.
func NewRunRegistry(capacity int) *Registry {
	return &Registry{
		runs:     make(map[string]*WorkflowRun),
		capacity: capacity,
	}
}

// Add registers a run, evicting the oldest finished runs beyond capacity.
func (r *Registry) Add(run *WorkflowRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	r.order = append(r.order, run.ID)

	if r.capacity <= 0 {
		return
	}
	for len(r.runs) > r.capacity {
		evicted := false
		for i, id := range r.order {
			candidate, ok := r.runs[id]
			if !ok {
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
			if candidate.Status() != types.RunInProgress {
				delete(r.runs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// Get looks a run up by ID.
func (r *Registry) Get(id string) (*WorkflowRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}

// List returns registered runs, most recent first.
func (r *Registry) List() []*WorkflowRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WorkflowRun, 0, len(r.runs))
	for i := len(r.order) - 1; i >= 0; i-- {
		if run, ok := r.runs[r.order[i]]; ok {
			out = append(out, run)
		}
	}
	return out
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
