package agent

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// aggregatorHosts are hosts that never count as an organization's own
// web presence when deriving a domain from search hits.
var aggregatorHosts = map[string]struct{}{
	"linkedin.com":   {},
	"facebook.com":   {},
	"twitter.com":    {},
	"x.com":          {},
	"instagram.com":  {},
	"youtube.com":    {},
	"crunchbase.com": {},
	"wikipedia.org":  {},
	"glassdoor.com":  {},
	"indeed.com":     {},
	"bloomberg.com":  {},
}

// CompanyResolverAgent 解析目标组织的权威身份（规范名 + 域名 + 档案）。
// 搜索提供商从官网命中推导域名；目录提供商按域名确认并补全档案。
type CompanyResolverAgent struct {
	deps Deps
	cfg  Config
}

// NewCompanyResolverAgent 创建组织解析代理。
func NewCompanyResolverAgent(deps Deps, cfg Config) *CompanyResolverAgent {
	return &CompanyResolverAgent{deps: deps.normalized(), cfg: cfg.normalized()}
}

func (a *CompanyResolverAgent) Focus() types.FocusArea { return types.FocusCompanyResolution }

func (a *CompanyResolverAgent) Execute(ctx context.Context, task *Task) (*types.AgentResult, error) {
	result := newResult(a.Focus())
	org := task.Organization()

	var candidates []types.OrganizationProfile
	var merged *types.OrganizationProfile

	step := func(ctx context.Context, name string) (*guardrails.Verdict, error) {
		profile, err := a.query(ctx, name, org, merged)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			candidates = append(candidates, *profile)
			merged = a.deps.Merger.MergeOrganizations(candidates...)
		}
		return a.deps.Guard.EvaluateOrganization(org, merged), nil
	}

	run, err := runChain(ctx, task.Chain, a.deps.Logger, step)
	if err != nil {
		return nil, err
	}

	result.Organization = merged
	applyOutcome(result, run, ctx.Err())
	result.FinishedAt = time.Now().UTC()

	a.deps.Logger.Info("company resolution finished",
		zap.String("organization", org),
		zap.String("status", string(result.Status)),
		zap.Strings("providers_tried", result.ProvidersTried))
	return result, nil
}

// query dispatches one chain member by capability.
func (a *CompanyResolverAgent) query(ctx context.Context, name, org string, current *types.OrganizationProfile) (*types.OrganizationProfile, error) {
	if directory, err := a.deps.Registry.Directory(name); err == nil {
		return a.queryDirectory(ctx, directory, org, current)
	}
	searcher, err := a.deps.Registry.Searcher(name)
	if err != nil {
		return nil, err
	}
	return a.querySearch(ctx, searcher, org)
}

func (a *CompanyResolverAgent) querySearch(ctx context.Context, searcher provider.Searcher, org string) (*types.OrganizationProfile, error) {
	resp, err := searcher.Search(ctx, &provider.SearchRequest{
		Query:      "\"" + org + "\" official website",
		MaxResults: a.cfg.SearchMaxResults,
	})
	if err != nil {
		return nil, err
	}

	for _, doc := range resp.Results {
		domain := deriveDomain(doc.URL)
		if domain == "" {
			continue
		}
		return &types.OrganizationProfile{
			Name:        org,
			Domain:      domain,
			Description: doc.Snippet,
			Sources:     []types.SourceDocument{doc},
		}, nil
	}
	return nil, nil
}

func (a *CompanyResolverAgent) queryDirectory(ctx context.Context, directory provider.Directory, org string, current *types.OrganizationProfile) (*types.OrganizationProfile, error) {
	domain := domainHint(org, current)
	if domain == "" {
		return nil, types.NewError(types.ErrInvalidRequest,
			"no domain candidate available for directory lookup").WithProvider(directory.Name())
	}

	resp, err := directory.LookupOrganization(ctx, &provider.OrgLookupRequest{Name: org, Domain: domain})
	if err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// domainHint 目录查询的域名来源：已累积档案的域名优先，
// 组织名本身形如域名时兜底。
func domainHint(org string, current *types.OrganizationProfile) string {
	if current != nil && current.Domain != "" {
		return current.Domain
	}
	trimmed := strings.ToLower(strings.TrimSpace(org))
	if strings.Contains(trimmed, ".") && !strings.ContainsAny(trimmed, " \t") {
		return trimmed
	}
	return ""
}

// deriveDomain 从搜索命中推导组织自有域名；聚合站点不算。
func deriveDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, aggregator := aggregatorHosts[registrableDomain(host)]; aggregator {
		return ""
	}
	return host
}

// registrableDomain 取主机名的最后两段，近似注册域。
func registrableDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
