package agent

import (
	"context"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// DecisionMakerAgent 识别目标组织的高层决策人。目录提供商按职级过滤
// 翻页拉取；搜索提供商从摘要解析人名；抽取提供商深读搜索命中的页面。
type DecisionMakerAgent struct {
	deps Deps
	cfg  Config
}

// NewDecisionMakerAgent 创建决策人代理。
func NewDecisionMakerAgent(deps Deps, cfg Config) *DecisionMakerAgent {
	return &DecisionMakerAgent{deps: deps.normalized(), cfg: cfg.normalized()}
}

func (a *DecisionMakerAgent) Focus() types.FocusArea { return types.FocusDecisionMakers }

func (a *DecisionMakerAgent) Execute(ctx context.Context, task *Task) (*types.AgentResult, error) {
	result := newResult(a.Focus())
	org := task.Organization()

	var merged []types.DecisionMaker
	var docs []types.SourceDocument

	step := func(ctx context.Context, name string) (*guardrails.Verdict, error) {
		people, stepDocs, err := a.query(ctx, name, org, task, docs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, stepDocs...)
		merged = a.deps.Merger.MergeDecisionMakers(merged, people)
		return a.deps.Guard.EvaluateDecisionMakers(org, merged), nil
	}

	run, err := runChain(ctx, task.Chain, a.deps.Logger, step)
	if err != nil {
		return nil, err
	}

	result.DecisionMakers = merged
	applyOutcome(result, run, ctx.Err())
	result.FinishedAt = time.Now().UTC()

	a.deps.Logger.Info("decision maker discovery finished",
		zap.String("organization", org),
		zap.String("status", string(result.Status)),
		zap.Int("decision_makers", len(merged)))
	return result, nil
}

func (a *DecisionMakerAgent) query(ctx context.Context, name, org string, task *Task, docs []types.SourceDocument) ([]types.DecisionMaker, []types.SourceDocument, error) {
	if directory, err := a.deps.Registry.Directory(name); err == nil {
		people, err := a.queryDirectory(ctx, directory, org, task.Profile)
		return people, nil, err
	}
	if extractor, err := a.deps.Registry.Extractor(name); err == nil {
		return a.queryExtractor(ctx, extractor, task, docs)
	}
	searcher, err := a.deps.Registry.Searcher(name)
	if err != nil {
		return nil, nil, err
	}
	return a.querySearch(ctx, searcher, org)
}

func (a *DecisionMakerAgent) queryDirectory(ctx context.Context, directory provider.Directory, org string, profile *types.OrganizationProfile) ([]types.DecisionMaker, error) {
	req := &provider.PeopleRequest{
		Organization: org,
		Titles:       a.cfg.SeniorTitles,
	}
	if profile != nil {
		req.Domain = profile.Domain
	}

	var people []types.DecisionMaker
	for page := 1; page <= a.cfg.DirectoryMaxPages; page++ {
		req.Page = page
		resp, err := directory.ListPeople(ctx, req)
		if err != nil {
			// 首页失败整步失败；翻页失败保留已拉到的条目。
			if page == 1 {
				return nil, err
			}
			a.deps.Logger.Warn("directory paging stopped early",
				zap.String("provider", directory.Name()),
				zap.Int("page", page),
				zap.Error(err))
			break
		}
		people = append(people, resp.People...)
		if !resp.HasMore {
			break
		}
	}
	return people, nil
}

func (a *DecisionMakerAgent) querySearch(ctx context.Context, searcher provider.Searcher, org string) ([]types.DecisionMaker, []types.SourceDocument, error) {
	resp, err := searcher.Search(ctx, &provider.SearchRequest{
		Query:             "\"" + org + "\" leadership team executives",
		MaxResults:        a.cfg.SearchMaxResults,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, nil, err
	}

	var people []types.DecisionMaker
	for _, doc := range resp.Results {
		people = append(people, parsePeople(docText(doc), doc)...)
	}
	return people, resp.Results, nil
}

// queryExtractor 深读候选页面：优先用此前搜索步骤累积的命中，没有时
// 退而猜测组织官网的团队页。两者都没有则按提供商错误吸收并继续升级。
func (a *DecisionMakerAgent) queryExtractor(ctx context.Context, extractor provider.Extractor, task *Task, docs []types.SourceDocument) ([]types.DecisionMaker, []types.SourceDocument, error) {
	urls := topURLs(docs, a.cfg.ExtractTopURLs)
	if len(urls) == 0 {
		urls = leadershipPages(task.Profile)
	}
	if len(urls) == 0 {
		return nil, nil, types.NewError(types.ErrInvalidRequest,
			"no candidate pages for extraction").WithProvider(extractor.Name())
	}

	resp, err := extractor.Extract(ctx, &provider.ExtractRequest{URLs: urls})
	if err != nil {
		return nil, nil, err
	}

	var people []types.DecisionMaker
	var pageDocs []types.SourceDocument
	for _, page := range resp.Pages {
		people = append(people, page.People...)
		people = append(people, parsePeople(page.Document.RawContent, page.Document)...)
		pageDocs = append(pageDocs, page.Document)
	}
	return people, pageDocs, nil
}

// leadershipPages 组织官网上惯常放团队信息的路径。
func leadershipPages(profile *types.OrganizationProfile) []string {
	if profile == nil || profile.Domain == "" {
		return nil
	}
	base := "https://" + profile.Domain
	return []string{base + "/team", base + "/about", base + "/leadership"}
}

// topURLs returns up to n distinct URLs in document order.
func topURLs(docs []types.SourceDocument, n int) []string {
	seen := make(map[string]struct{}, n)
	var urls []string
	for _, doc := range docs {
		if doc.URL == "" {
			continue
		}
		if _, dup := seen[doc.URL]; dup {
			continue
		}
		seen[doc.URL] = struct{}{}
		urls = append(urls, doc.URL)
		if len(urls) == n {
			break
		}
	}
	return urls
}
