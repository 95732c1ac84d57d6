package provider

import (
	"context"
	"time"

	"github.com/BaSui01/intelflow/types"
)

// Capability 标识提供商支持的一种操作。
type Capability string

const (
	CapabilitySearch     Capability = "search"
	CapabilityExtract    Capability = "extract"
	CapabilityDirectory  Capability = "directory"
	CapabilitySynthesize Capability = "synthesize"
)

// HealthStatus 表示提供商健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Client 是所有提供商客户端的基础接口。路由层按名字持有提供商链，
// 调用前通过 Registry 做能力类型检查。
type Client interface {
	// Name 返回提供商唯一标识（小写，如 "tavily"）
	Name() string

	// Capabilities 返回该客户端声明的能力集合
	Capabilities() []Capability

	// HealthCheck 执行轻量级健康检查（用于路由探活/降级）
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// SearchRequest is a keyword search against a provider's index.
type SearchRequest struct {
	Query             string   `json:"query"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
	// Site restricts results to one site, e.g. "linkedin.com/in".
	Site string `json:"site,omitempty"`
}

// SearchResponse carries ranked hits as immutable source documents with
// Origin set to search.
type SearchResponse struct {
	Results []types.SourceDocument `json:"results"`
}

// ExtractRequest asks a provider to fetch and structure the given pages.
type ExtractRequest struct {
	URLs []string `json:"urls"`
}

// ExtractedPage is one structured page. People carries person entities the
// provider recognized on the page, already backed by the page document.
type ExtractedPage struct {
	Document types.SourceDocument  `json:"document"`
	People   []types.DecisionMaker `json:"people,omitempty"`
}

// ExtractResponse lists successfully structured pages; URLs that failed
// extraction land in Failed and never abort the batch.
type ExtractResponse struct {
	Pages  []ExtractedPage `json:"pages"`
	Failed []string        `json:"failed,omitempty"`
}

// OrgLookupRequest resolves an organization by name or web domain.
type OrgLookupRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// OrgLookupResponse carries the directory profile, nil when not found.
type OrgLookupResponse struct {
	Profile *types.OrganizationProfile `json:"profile"`
}

// PeopleRequest lists people affiliated with an organization. Titles is an
// optional seniority keyword filter applied provider-side when supported.
// Page is 1-based.
type PeopleRequest struct {
	Organization string   `json:"organization"`
	Domain       string   `json:"domain,omitempty"`
	Titles       []string `json:"titles,omitempty"`
	Page         int      `json:"page,omitempty"`
}

// PeopleResponse is one page of directory people. HasMore signals that the
// next page may return further entries.
type PeopleResponse struct {
	People  []types.DecisionMaker `json:"people"`
	HasMore bool                  `json:"has_more"`
}

// SynthesisRequest asks a provider to narrate pre-collected evidence. The
// evidence digest is already trimmed to MaxTokens by the caller.
type SynthesisRequest struct {
	Organization string `json:"organization"`
	Question     string `json:"question"`
	Evidence     string `json:"evidence"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
}

// SynthesisResponse 综述结果与用量统计。
type SynthesisResponse struct {
	Text             string `json:"text"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// Searcher 检索能力。
type Searcher interface {
	Client
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// Extractor 网页抽取能力。
type Extractor interface {
	Client
	Extract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error)
}

// Directory 目录查询能力。
type Directory interface {
	Client
	LookupOrganization(ctx context.Context, req *OrgLookupRequest) (*OrgLookupResponse, error)
	ListPeople(ctx context.Context, req *PeopleRequest) (*PeopleResponse, error)
}

// Synthesizer 综述生成能力。
type Synthesizer interface {
	Client
	Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResponse, error)
}
