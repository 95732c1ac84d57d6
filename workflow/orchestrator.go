package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/intelflow/agent"
	"github.com/BaSui01/intelflow/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const instrumentationName = "github.com/BaSui01/intelflow/workflow"

const (
	reasonBudgetExceeded    = "wall-clock budget exceeded"
	reasonDependencyTimeout = "run budget exhausted before dependencies completed"
)

// Config 编排器的运行参数。
type Config struct {
	// DefaultBudget 未指定预算的问题使用的墙钟预算。
	DefaultBudget time.Duration `json:"default_budget" yaml:"default_budget"`

	// MaxBudget 调用方可请求的预算上限。
	MaxBudget time.Duration `json:"max_budget" yaml:"max_budget"`

	// MaxConcurrentFoci 跨全部运行同时执行的焦点上限。
	MaxConcurrentFoci int64 `json:"max_concurrent_foci" yaml:"max_concurrent_foci"`

	// RunCapacity 注册表保留的运行数，超出后淘汰最旧的已终结运行。
	RunCapacity int `json:"run_capacity" yaml:"run_capacity"`
}

// DefaultConfig returns production defaults sized for free-tier provider
// quotas.
func DefaultConfig() Config {
	return Config{
		DefaultBudget:     90 * time.Second,
		MaxBudget:         10 * time.Minute,
		MaxConcurrentFoci: 8,
		RunCapacity:       256,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.DefaultBudget <= 0 {
		c.DefaultBudget = def.DefaultBudget
	}
	if c.MaxBudget <= 0 {
		c.MaxBudget = def.MaxBudget
	}
	if c.MaxConcurrentFoci <= 0 {
		c.MaxConcurrentFoci = def.MaxConcurrentFoci
	}
	if c.RunCapacity == 0 {
		c.RunCapacity = def.RunCapacity
	}
	return c
}

// Archiver persists terminal runs. Implementations must tolerate being
// called after the run's own context is dead.
type Archiver interface {
	SaveRun(ctx context.Context, run *WorkflowRun) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithArchiver wires terminal-run persistence.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithDecomposer 替换默认分解器（测试注入用）。
func WithDecomposer(d *Decomposer) Option {
	return func(o *Orchestrator) { o.decomposer = d }
}

// Orchestrator 按分解计划调度焦点执行：依赖就绪即启动，吸收提供商
// 级失败，预算耗尽时带着已终结的部分结果收尾。
type Orchestrator struct {
	cfg        Config
	decomposer *Decomposer
	router     *Router
	registry   *Registry
	events     *Broadcaster
	archiver   Archiver
	sem        *semaphore.Weighted
	tracer     trace.Tracer
	logger     *zap.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator creates the run scheduler around a routing table.
func NewOrchestrator(router *Router, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()

	baseCtx, baseCancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		decomposer: NewDecomposer(logger),
		router:     router,
		registry:   NewRunRegistry(cfg.RunCapacity),
		events:     NewBroadcaster(logger),
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentFoci),
		tracer:     otel.Tracer(instrumentationName),
		logger:     logger.With(zap.String("component", "orchestrator")),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns the run event broadcaster.
func (o *Orchestrator) Events() *Broadcaster { return o.events }

// Runs returns the run registry.
func (o *Orchestrator) Runs() *Registry { return o.registry }

// Submit validates and decomposes the question, registers a run, and starts
// executing it in the background. The returned run is terminal-safe to poll
// immediately.
//
// 公司解析链完全无提供商时在此即拒绝：解析失败会让全部下游降级，
// 不值得起跑。寒暄计划没有解析焦点，不受此检查约束。
func (o *Orchestrator) Submit(ctx context.Context, q *types.Question) (*WorkflowRun, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	plan := o.decomposer.Decompose(q)
	if !plan.ChitChat && !o.router.Routable(types.FocusCompanyResolution) {
		return nil, types.NewError(types.ErrConfiguration,
			"no provider in the company resolution chain is configured; run aborted")
	}

	budget := q.Budget
	if budget <= 0 {
		budget = o.cfg.DefaultBudget
	}
	if budget > o.cfg.MaxBudget {
		budget = o.cfg.MaxBudget
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, types.NewError(types.ErrInternalError, "orchestrator is shutting down").WithHTTPStatus(503)
	}
	o.wg.Add(1)
	o.mu.Unlock()

	run := newRun(q, plan)
	o.registry.Add(run)

	o.events.Publish(Event{RunID: run.ID, Type: EventRunAccepted})
	o.logger.Info("run accepted",
		zap.String("run_id", run.ID),
		zap.String("organization", q.Organization),
		zap.Any("focus_areas", plan.Areas()),
		zap.Duration("budget", budget))

	go o.execute(run, budget)
	return run, nil
}

// Ask 同步便捷入口：提交并等待运行终结或调用方上下文取消。
func (o *Orchestrator) Ask(ctx context.Context, q *types.Question) (*types.Response, error) {
	run, err := o.Submit(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := run.Wait(ctx); err != nil {
		return nil, err
	}
	resp, _ := run.Response()
	return resp, nil
}

// transition carries one focus's terminal outcome back to the scheduler
// loop. err is non-nil only for configuration errors.
type transition struct {
	focus  types.FocusArea
	result *types.AgentResult
	err    error
}

func (o *Orchestrator) execute(run *WorkflowRun, budget time.Duration) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(o.baseCtx, budget)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.organization", run.Question.Organization),
			attribute.Int("run.focus_count", len(run.Plan.Focuses))))
	defer span.End()

	transitions := make(chan transition, len(run.Plan.Focuses))
	inFlight := 0
	budgetDied := false

	launch := func(f Focus) {
		if _, ok := run.setState(f.Area, types.StateRunning, ""); !ok {
			return
		}
		o.publishTransition(run, f.Area, types.StatePending, types.StateRunning, "")
		inFlight++
		go o.runFocus(ctx, run, f, transitions)
	}

	schedule := func() {
		if ctx.Err() != nil {
			return
		}
		for _, f := range run.Plan.Focuses {
			if run.State(f.Area) != types.StatePending {
				continue
			}
			if !o.dependenciesTerminal(run, f) {
				continue
			}
			launch(f)
		}
	}

	schedule()
	for inFlight > 0 {
		select {
		case tr := <-transitions:
			inFlight--
			o.applyTransition(run, tr)
			schedule()
		case <-ctx.Done():
			budgetDied = true
			o.failPending(run, reasonDependencyTimeout)
			// 在飞焦点已看到取消，会很快自行报失败回传；收完即止。
			for inFlight > 0 {
				tr := <-transitions
				inFlight--
				o.applyTransition(run, tr)
			}
		}
	}
	// 预算死亡可能在最后一个迁移到达后才被观察到；此处统一补刀。
	if ctx.Err() != nil {
		budgetDied = true
		o.failPending(run, reasonDependencyTimeout)
	}

	status := o.deriveStatus(run, budgetDied)
	resp := AssembleResponse(run)
	resp.Status = status
	run.finish(status, resp)

	span.SetAttributes(attribute.String("run.status", string(status)))
	o.events.Publish(Event{RunID: run.ID, Type: EventRunFinished, Status: status})
	o.logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Duration("elapsed", time.Since(run.CreatedAt())))

	if o.archiver != nil {
		archiveCtx, archiveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer archiveCancel()
		if err := o.archiver.SaveRun(archiveCtx, run); err != nil {
			o.logger.Warn("run archive failed",
				zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

// dependenciesTerminal 报告焦点的全部依赖是否已抵达终态。失败的依赖
// 同样计入：下游带着空档案降级执行，而不是跟着失败。
func (o *Orchestrator) dependenciesTerminal(run *WorkflowRun, f Focus) bool {
	for _, dep := range f.DependsOn {
		if !run.State(dep).Terminal() {
			return false
		}
	}
	return true
}

func (o *Orchestrator) runFocus(ctx context.Context, run *WorkflowRun, f Focus, out chan<- transition) {
	started := time.Now().UTC()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		out <- transition{focus: f.Area, result: budgetFailure(f.Area, started)}
		return
	}
	defer o.sem.Release(1)

	ctx, span := o.tracer.Start(ctx, "workflow.focus",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("focus.area", string(f.Area))))
	defer span.End()

	route, err := o.router.Route(f.Area)
	if err != nil {
		out <- transition{focus: f.Area, err: err}
		return
	}

	task := &agent.Task{
		Question:    *run.Question,
		SubQuestion: f.SubQuestion,
		Chain:       route.Chain,
		Profile:     run.Organization(),
		Results:     run.Results(),
	}

	result, err := route.Agent.Execute(ctx, task)
	if err != nil {
		span.SetAttributes(attribute.String("focus.outcome", "configuration_error"))
		out <- transition{focus: f.Area, err: err}
		return
	}
	span.SetAttributes(attribute.String("focus.outcome", string(result.Status)))
	out <- transition{focus: f.Area, result: result}
}

// applyTransition 落一个焦点的终局：写结果、迁状态、广播事件。
// 解析焦点的配置错误会放弃整个运行的剩余焦点。
func (o *Orchestrator) applyTransition(run *WorkflowRun, tr transition) {
	result := tr.result
	if tr.err != nil {
		result = &types.AgentResult{
			Focus:         tr.focus,
			Status:        types.ResultFailed,
			FailureReason: tr.err.Error(),
			FinishedAt:    time.Now().UTC(),
		}
	}
	run.setResult(tr.focus, result)

	to := focusStateFor(result.Status)
	from, _ := run.setState(tr.focus, to, result.FailureReason)
	o.publishTransition(run, tr.focus, from, to, result.FailureReason)

	o.logger.Info("focus terminated",
		zap.String("run_id", run.ID),
		zap.String("focus", string(tr.focus)),
		zap.String("state", string(to)),
		zap.Int("entities", result.EntityCount()),
		zap.Strings("providers_tried", result.ProvidersTried))

	if tr.err != nil && tr.focus == types.FocusCompanyResolution && types.IsConfiguration(tr.err) {
		o.failPending(run, fmt.Sprintf("run aborted: %v", tr.err))
	}
}

// failPending 把仍处 pending 的焦点统一判失败，并合成占位结果，
// 让响应契约对每个计划内焦点都有据可查。
func (o *Orchestrator) failPending(run *WorkflowRun, reason string) {
	for _, f := range run.Plan.Focuses {
		if run.State(f.Area) != types.StatePending {
			continue
		}
		from, ok := run.setState(f.Area, types.StateFailed, reason)
		if !ok {
			continue
		}
		run.setResult(f.Area, &types.AgentResult{
			Focus:         f.Area,
			Status:        types.ResultFailed,
			FailureReason: reason,
			FinishedAt:    time.Now().UTC(),
		})
		o.publishTransition(run, f.Area, from, types.StateFailed, reason)
	}
}

func (o *Orchestrator) publishTransition(run *WorkflowRun, focus types.FocusArea, from, to types.FocusState, reason string) {
	o.events.Publish(Event{
		RunID:  run.ID,
		Type:   EventFocusTransition,
		Focus:  focus,
		From:   from,
		To:     to,
		Reason: reason,
	})
}

// deriveStatus 终局状态：预算死亡恒为 timeout；否则任一焦点失败为
// partial；sufficient 与 insufficient 都算正常完成。预算死亡也可能
// 只体现在结果的失败原因里（取消先于调度循环观察到），一并识别。
func (o *Orchestrator) deriveStatus(run *WorkflowRun, budgetDied bool) types.RunStatus {
	if budgetDied {
		return types.RunTimeout
	}
	partial := false
	for _, f := range run.Plan.Focuses {
		if run.State(f.Area) != types.StateFailed {
			continue
		}
		partial = true
		if res := run.Result(f.Area); res != nil &&
			(res.FailureReason == reasonBudgetExceeded || res.FailureReason == reasonDependencyTimeout) {
			return types.RunTimeout
		}
	}
	if partial {
		return types.RunPartial
	}
	return types.RunComplete
}

// Shutdown 停止接单并等待在途运行收尾；ctx 到期则强制取消后等待。
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		o.baseCancel()
		<-done
	}
	o.baseCancel()
	o.events.Close()
	return err
}

func focusStateFor(status types.ResultStatus) types.FocusState {
	switch status {
	case types.ResultSufficient:
		return types.StateSufficient
	case types.ResultInsufficient:
		return types.StateInsufficient
	default:
		return types.StateFailed
	}
}

func budgetFailure(focus types.FocusArea, started time.Time) *types.AgentResult {
	return &types.AgentResult{
		Focus:         focus,
		Status:        types.ResultFailed,
		FailureReason: reasonBudgetExceeded,
		StartedAt:     started,
		FinishedAt:    time.Now().UTC(),
	}
}
