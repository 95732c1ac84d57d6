package agent

import (
	"context"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// InvestmentAgent 追踪目标组织近期的投融资与并购动作。搜索提供商
// 检索新闻摘要并解析金额、标的与日期；抽取提供商深读命中页面补全。
type InvestmentAgent struct {
	deps Deps
	cfg  Config
}

// NewInvestmentAgent 创建投资情报代理。
func NewInvestmentAgent(deps Deps, cfg Config) *InvestmentAgent {
	return &InvestmentAgent{deps: deps.normalized(), cfg: cfg.normalized()}
}

func (a *InvestmentAgent) Focus() types.FocusArea { return types.FocusInvestments }

func (a *InvestmentAgent) Execute(ctx context.Context, task *Task) (*types.AgentResult, error) {
	result := newResult(a.Focus())
	org := task.Organization()

	var merged []types.Investment
	var docs []types.SourceDocument

	step := func(ctx context.Context, name string) (*guardrails.Verdict, error) {
		deals, stepDocs, err := a.query(ctx, name, org, docs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, stepDocs...)
		merged = a.deps.Merger.MergeInvestments(merged, deals)
		return a.deps.Guard.EvaluateInvestments(org, merged), nil
	}

	run, err := runChain(ctx, task.Chain, a.deps.Logger, step)
	if err != nil {
		return nil, err
	}

	result.Investments = merged
	applyOutcome(result, run, ctx.Err())
	result.FinishedAt = time.Now().UTC()

	a.deps.Logger.Info("investment discovery finished",
		zap.String("organization", org),
		zap.String("status", string(result.Status)),
		zap.Int("investments", len(merged)))
	return result, nil
}

func (a *InvestmentAgent) query(ctx context.Context, name, org string, docs []types.SourceDocument) ([]types.Investment, []types.SourceDocument, error) {
	if searcher, err := a.deps.Registry.Searcher(name); err == nil {
		return a.querySearch(ctx, searcher, org)
	}
	extractor, err := a.deps.Registry.Extractor(name)
	if err != nil {
		return nil, nil, err
	}
	return a.queryExtractor(ctx, extractor, org, docs)
}

func (a *InvestmentAgent) querySearch(ctx context.Context, searcher provider.Searcher, org string) ([]types.Investment, []types.SourceDocument, error) {
	resp, err := searcher.Search(ctx, &provider.SearchRequest{
		Query:             "\"" + org + "\" investment funding acquisition announcement",
		MaxResults:        a.cfg.SearchMaxResults,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, nil, err
	}

	var deals []types.Investment
	for _, doc := range resp.Results {
		deals = append(deals, parseInvestments(docText(doc), org, doc)...)
	}
	return deals, resp.Results, nil
}

func (a *InvestmentAgent) queryExtractor(ctx context.Context, extractor provider.Extractor, org string, docs []types.SourceDocument) ([]types.Investment, []types.SourceDocument, error) {
	urls := topURLs(docs, a.cfg.ExtractTopURLs)
	if len(urls) == 0 {
		return nil, nil, types.NewError(types.ErrInvalidRequest,
			"no candidate pages accumulated for extraction").WithProvider(extractor.Name())
	}

	resp, err := extractor.Extract(ctx, &provider.ExtractRequest{URLs: urls})
	if err != nil {
		return nil, nil, err
	}

	var deals []types.Investment
	var pageDocs []types.SourceDocument
	for _, page := range resp.Pages {
		deals = append(deals, parseInvestments(page.Document.RawContent, org, page.Document)...)
		pageDocs = append(pageDocs, page.Document)
	}
	return deals, pageDocs, nil
}
