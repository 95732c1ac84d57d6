package agent

import (
	"context"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// GapAgent 挖掘目标组织公开承认的运营缺口：人手短缺、系统老旧、
// 合规压力等销售切入点。只依赖搜索提供商，按缺口信号词筛选命中。
type GapAgent struct {
	deps Deps
	cfg  Config
}

// NewGapAgent 创建缺口情报代理。
func NewGapAgent(deps Deps, cfg Config) *GapAgent {
	return &GapAgent{deps: deps.normalized(), cfg: cfg.normalized()}
}

func (a *GapAgent) Focus() types.FocusArea { return types.FocusGaps }

func (a *GapAgent) Execute(ctx context.Context, task *Task) (*types.AgentResult, error) {
	result := newResult(a.Focus())
	org := task.Organization()

	var merged []types.Gap

	step := func(ctx context.Context, name string) (*guardrails.Verdict, error) {
		gaps, err := a.query(ctx, name, org)
		if err != nil {
			return nil, err
		}
		merged = a.deps.Merger.MergeGaps(merged, gaps)
		return a.deps.Guard.EvaluateGaps(org, merged), nil
	}

	run, err := runChain(ctx, task.Chain, a.deps.Logger, step)
	if err != nil {
		return nil, err
	}

	result.Gaps = merged
	applyOutcome(result, run, ctx.Err())
	result.FinishedAt = time.Now().UTC()

	a.deps.Logger.Info("gap discovery finished",
		zap.String("organization", org),
		zap.String("status", string(result.Status)),
		zap.Int("gaps", len(merged)))
	return result, nil
}

func (a *GapAgent) query(ctx context.Context, name, org string) ([]types.Gap, error) {
	searcher, err := a.deps.Registry.Searcher(name)
	if err != nil {
		return nil, err
	}

	resp, err := searcher.Search(ctx, &provider.SearchRequest{
		Query:             "\"" + org + "\" challenges staffing shortage legacy system compliance",
		MaxResults:        a.cfg.SearchMaxResults,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, err
	}

	var gaps []types.Gap
	for _, doc := range resp.Results {
		if gap := parseGap(docText(doc), org, doc); gap != nil {
			gaps = append(gaps, *gap)
		}
	}
	return gaps, nil
}
