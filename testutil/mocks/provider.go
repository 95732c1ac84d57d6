// 情报供应商的测试模拟实现。
//
// 支持固定响应、分页目录、错误注入与自定义函数场景。
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
)

var (
	_ provider.Searcher    = (*FakeSearcher)(nil)
	_ provider.Extractor   = (*FakeExtractor)(nil)
	_ provider.Directory   = (*FakeDirectory)(nil)
	_ provider.Synthesizer = (*FakeSynthesizer)(nil)
)

// --- FakeClient 基座 ---

// FakeCall 记录单次能力调用
type FakeCall struct {
	Method  string
	Request any
}

// FakeClient 实现 provider.Client，作为各能力 Fake 的公共基座。
// 并发安全，记录所有调用。
type FakeClient struct {
	mu        sync.RWMutex
	name      string
	caps      []provider.Capability
	healthy   bool
	healthErr error
	latency   time.Duration
	calls     []FakeCall
}

func newFakeClient(name string, caps ...provider.Capability) FakeClient {
	return FakeClient{
		name:    name,
		caps:    caps,
		healthy: true,
		latency: 5 * time.Millisecond,
	}
}

// Name 返回供应商名称
func (c *FakeClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Capabilities 返回声明的能力集合
func (c *FakeClient) Capabilities() []provider.Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]provider.Capability{}, c.caps...)
}

// HealthCheck 执行健康检查
func (c *FakeClient) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.healthErr != nil {
		return nil, c.healthErr
	}
	return &provider.HealthStatus{Healthy: c.healthy, Latency: c.latency}, nil
}

// SetHealthy 设置健康检查返回的状态
func (c *FakeClient) SetHealthy(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
}

// SetHealthError 设置健康检查返回的错误
func (c *FakeClient) SetHealthError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthErr = err
}

// Calls 获取所有调用记录
func (c *FakeClient) Calls() []FakeCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FakeCall{}, c.calls...)
}

// CallCount 获取指定方法的调用次数，方法名为空时统计全部
func (c *FakeClient) CallCount(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if method == "" {
		return len(c.calls)
	}
	n := 0
	for _, call := range c.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Reset 清空调用记录
func (c *FakeClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func (c *FakeClient) recordCall(method string, req any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, FakeCall{Method: method, Request: req})
}

// --- FakeSearcher ---

// FakeSearcher 是检索供应商的模拟实现
type FakeSearcher struct {
	FakeClient

	docs       []types.SourceDocument
	err        error
	searchFunc func(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error)
}

// NewFakeSearcher 创建新的 FakeSearcher
func NewFakeSearcher(name string) *FakeSearcher {
	return &FakeSearcher{FakeClient: newFakeClient(name, provider.CapabilitySearch)}
}

// WithDocuments 设置固定返回的文档
func (s *FakeSearcher) WithDocuments(docs ...types.SourceDocument) *FakeSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
	return s
}

// WithError 设置返回错误
func (s *FakeSearcher) WithError(err error) *FakeSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithSearchFunc 设置自定义检索函数，按查询内容分发不同结果
func (s *FakeSearcher) WithSearchFunc(fn func(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error)) *FakeSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchFunc = fn
	return s
}

// Search 实现 provider.Searcher
func (s *FakeSearcher) Search(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
	s.recordCall("Search", req)

	s.mu.RLock()
	err, fn, docs, name := s.err, s.searchFunc, s.docs, s.name
	s.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}

	out := make([]types.SourceDocument, len(docs))
	copy(out, docs)
	for i := range out {
		if out[i].Provider == "" {
			out[i].Provider = name
		}
		if out[i].Origin == "" {
			out[i].Origin = types.OriginSearch
		}
		if out[i].Method == "" {
			out[i].Method = types.MethodSnippet
		}
	}
	return &provider.SearchResponse{Results: out}, nil
}

// --- FakeExtractor ---

// FakeExtractor 是网页抽取供应商的模拟实现
type FakeExtractor struct {
	FakeClient

	pages       []provider.ExtractedPage
	failed      []string
	err         error
	extractFunc func(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error)
}

// NewFakeExtractor 创建新的 FakeExtractor
func NewFakeExtractor(name string) *FakeExtractor {
	return &FakeExtractor{FakeClient: newFakeClient(name, provider.CapabilityExtract)}
}

// WithPages 设置固定返回的结构化页面
func (e *FakeExtractor) WithPages(pages ...provider.ExtractedPage) *FakeExtractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages = pages
	return e
}

// WithFailed 设置抽取失败的 URL 列表
func (e *FakeExtractor) WithFailed(urls ...string) *FakeExtractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = urls
	return e
}

// WithError 设置返回错误
func (e *FakeExtractor) WithError(err error) *FakeExtractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	return e
}

// WithExtractFunc 设置自定义抽取函数
func (e *FakeExtractor) WithExtractFunc(fn func(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error)) *FakeExtractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extractFunc = fn
	return e
}

// Extract 实现 provider.Extractor。未配置页面时为每个 URL 生成一个
// 占位结构化页面。
func (e *FakeExtractor) Extract(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error) {
	e.recordCall("Extract", req)

	e.mu.RLock()
	err, fn, pages, failed, name := e.err, e.extractFunc, e.pages, e.failed, e.name
	e.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if pages == nil && failed == nil {
		generated := make([]provider.ExtractedPage, 0, len(req.URLs))
		for _, u := range req.URLs {
			generated = append(generated, provider.ExtractedPage{
				Document: types.SourceDocument{
					Title:    "Extracted page",
					URL:      u,
					Provider: name,
					Origin:   types.OriginExtraction,
					Method:   types.MethodStructured,
				},
			})
		}
		return &provider.ExtractResponse{Pages: generated}, nil
	}
	return &provider.ExtractResponse{
		Pages:  append([]provider.ExtractedPage{}, pages...),
		Failed: append([]string{}, failed...),
	}, nil
}

// --- FakeDirectory ---

// FakeDirectory 是目录供应商的模拟实现，支持分页
type FakeDirectory struct {
	FakeClient

	profile    *types.OrganizationProfile
	people     []types.DecisionMaker
	pageSize   int
	err        error
	lookupFunc func(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error)
	peopleFunc func(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error)
}

// NewFakeDirectory 创建新的 FakeDirectory
func NewFakeDirectory(name string) *FakeDirectory {
	return &FakeDirectory{FakeClient: newFakeClient(name, provider.CapabilityDirectory)}
}

// WithProfile 设置组织查询返回的画像，nil 表示未找到
func (d *FakeDirectory) WithProfile(p *types.OrganizationProfile) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profile = p
	return d
}

// WithPeople 设置人员名录
func (d *FakeDirectory) WithPeople(people ...types.DecisionMaker) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people = people
	return d
}

// WithPageSize 设置每页人数，0 表示单页返回全部
func (d *FakeDirectory) WithPageSize(n int) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pageSize = n
	return d
}

// WithError 设置返回错误
func (d *FakeDirectory) WithError(err error) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	return d
}

// WithLookupFunc 设置自定义组织查询函数
func (d *FakeDirectory) WithLookupFunc(fn func(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error)) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookupFunc = fn
	return d
}

// WithPeopleFunc 设置自定义人员查询函数
func (d *FakeDirectory) WithPeopleFunc(fn func(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error)) *FakeDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peopleFunc = fn
	return d
}

// LookupOrganization 实现 provider.Directory
func (d *FakeDirectory) LookupOrganization(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error) {
	d.recordCall("LookupOrganization", req)

	d.mu.RLock()
	err, fn, profile := d.err, d.lookupFunc, d.profile
	d.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return &provider.OrgLookupResponse{Profile: profile}, nil
}

// ListPeople 实现 provider.Directory，按配置的页大小分页
func (d *FakeDirectory) ListPeople(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error) {
	d.recordCall("ListPeople", req)

	d.mu.RLock()
	err, fn, people, pageSize := d.err, d.peopleFunc, d.people, d.pageSize
	d.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		if page > 1 {
			return &provider.PeopleResponse{}, nil
		}
		return &provider.PeopleResponse{People: append([]types.DecisionMaker{}, people...)}, nil
	}

	start := (page - 1) * pageSize
	if start >= len(people) {
		return &provider.PeopleResponse{}, nil
	}
	end := start + pageSize
	if end > len(people) {
		end = len(people)
	}
	return &provider.PeopleResponse{
		People:  append([]types.DecisionMaker{}, people[start:end]...),
		HasMore: end < len(people),
	}, nil
}

// --- FakeSynthesizer ---

// FakeSynthesizer 是综述供应商的模拟实现
type FakeSynthesizer struct {
	FakeClient

	text      string
	model     string
	err       error
	synthFunc func(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error)
}

// NewFakeSynthesizer 创建新的 FakeSynthesizer
func NewFakeSynthesizer(name string) *FakeSynthesizer {
	return &FakeSynthesizer{
		FakeClient: newFakeClient(name, provider.CapabilitySynthesize),
		model:      "fake-synth-1",
	}
}

// WithText 设置综述文本
func (s *FakeSynthesizer) WithText(text string) *FakeSynthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	return s
}

// WithModel 设置响应中标注的模型名
func (s *FakeSynthesizer) WithModel(model string) *FakeSynthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	return s
}

// WithError 设置返回错误
func (s *FakeSynthesizer) WithError(err error) *FakeSynthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithSynthesizeFunc 设置自定义综述函数
func (s *FakeSynthesizer) WithSynthesizeFunc(fn func(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error)) *FakeSynthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synthFunc = fn
	return s
}

// Synthesize 实现 provider.Synthesizer。未配置文本时返回包含组织名的
// 占位综述。
func (s *FakeSynthesizer) Synthesize(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
	s.recordCall("Synthesize", req)

	s.mu.RLock()
	err, fn, text, model := s.err, s.synthFunc, s.text, s.model
	s.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if text == "" {
		text = fmt.Sprintf("Research summary for %s based on the collected evidence.", req.Organization)
	}
	return &provider.SynthesisResponse{
		Text:             text,
		Model:            model,
		PromptTokens:     120,
		CompletionTokens: 80,
	}, nil
}

// --- 预设工厂 ---

// NewErrorSearcher 创建总是失败的检索供应商
func NewErrorSearcher(name string, err error) *FakeSearcher {
	return NewFakeSearcher(name).WithError(err)
}

// NewErrorDirectory 创建总是失败的目录供应商
func NewErrorDirectory(name string, err error) *FakeDirectory {
	return NewFakeDirectory(name).WithError(err)
}
