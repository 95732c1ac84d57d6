package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/provider"
	providers "github.com/BaSui01/intelflow/internal/providerconf"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// DefaultHost RapidAPI 网关主机名
const DefaultHost = "linkedin-data-api.p.rapidapi.com"

// linkedinPageSize 是该 API 员工列表的固定页大小。
const linkedinPageSize = 50

// LinkedInProvider 实现职业目录的 Directory 能力（经 RapidAPI 网关）。
// 注意事项：
// 1. 认证走 x-rapidapi-key / x-rapidapi-host 双请求头
// 2. 公司查询只支持按域名，组织名需要先经搜索解析出域名
// 3. 员工列表按 companyId 翻页，须先查公司取内部 ID
// 4. 不同套餐的响应字段差异较大，解析保持防御性
type LinkedInProvider struct {
	cfg    providers.LinkedInConfig
	client *http.Client
	gate   *provider.Gate
	logger *zap.Logger
}

// NewLinkedInProvider 创建 LinkedIn Provider
func NewLinkedInProvider(cfg providers.LinkedInConfig, cache provider.Cache, logger *zap.Logger) *LinkedInProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}

	return &LinkedInProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout, 20*time.Second),
		gate:   provider.NewGate("linkedin", cfg.Gate, cache, logger),
		logger: logger,
	}
}

func (p *LinkedInProvider) Name() string { return "linkedin" }

func (p *LinkedInProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilityDirectory}
}

func (p *LinkedInProvider) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
	start := time.Now()
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.cfg.BaseURL, "/"), nil)
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &provider.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &provider.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("linkedin health check failed: status=%d", resp.StatusCode)
	}
	return &provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *LinkedInProvider) buildHeaders(req *http.Request) {
	// RapidAPI 网关认证
	req.Header.Set("x-rapidapi-key", p.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", p.cfg.Host)
}

// LinkedIn 响应结构（字段按常见套餐取并集，缺失字段留零值）
type linkedinCompanyResp struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    linkedinCompany `json:"data"`
}

type linkedinCompany struct {
	ID            json.Number `json:"id"`
	Name          string      `json:"name"`
	UniversalName string      `json:"universalName,omitempty"`
	LinkedinURL   string      `json:"linkedinUrl,omitempty"`
	Website       string      `json:"website,omitempty"`
	Description   string      `json:"description,omitempty"`
	Industry      string      `json:"industry,omitempty"`
	Industries    []string    `json:"industries,omitempty"`
	StaffCount    int         `json:"staffCount,omitempty"`
}

type linkedinEmployeesResp struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message,omitempty"`
	Data      []linkedinEmployee `json:"data"`
	Total     int                `json:"total,omitempty"`
	TotalPage int                `json:"totalPage,omitempty"`
}

type linkedinEmployee struct {
	FullName         string `json:"fullName,omitempty"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Headline         string `json:"headline,omitempty"`
	Title            string `json:"title,omitempty"`
	ProfileURL       string `json:"profileURL,omitempty"`
	PublicIdentifier string `json:"publicIdentifier,omitempty"`
	Location         string `json:"location,omitempty"`
}

type linkedinErrorResp struct {
	Message string `json:"message"`
}

func (p *LinkedInProvider) LookupOrganization(ctx context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error) {
	if req == nil || strings.TrimSpace(req.Domain) == "" {
		// 该目录只支持按域名定位公司；没有域名的解析走搜索兜底
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "organization domain is required for directory lookup",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	company, found, err := p.fetchCompany(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	if !found {
		return &provider.OrgLookupResponse{Profile: nil}, nil
	}

	profile := &types.OrganizationProfile{
		Name:        company.Name,
		Domain:      pickDomain(company.Website, req.Domain),
		Description: company.Description,
		Industry:    pickIndustry(company),
		Employees:   company.StaffCount,
		Sources: []types.SourceDocument{{
			Title:     company.Name + " — LinkedIn",
			URL:       pickCompanyURL(company, req.Domain),
			Provider:  p.Name(),
			Origin:    types.OriginDirectory,
			Method:    types.MethodStructured,
			Retrieved: time.Now().UTC(),
		}},
	}

	p.logger.Debug("linkedin company resolved",
		zap.String("domain", req.Domain),
		zap.String("name", company.Name))
	return &provider.OrgLookupResponse{Profile: profile}, nil
}

func (p *LinkedInProvider) ListPeople(ctx context.Context, req *provider.PeopleRequest) (*provider.PeopleResponse, error) {
	if req == nil || strings.TrimSpace(req.Domain) == "" {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "organization domain is required to list people",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	if page > p.cfg.MaxPages {
		return &provider.PeopleResponse{People: nil, HasMore: false}, nil
	}

	// 员工列表按内部 companyId 翻页；公司查询结果由调用门缓存，
	// 连续翻页不会重复计费
	company, found, err := p.fetchCompany(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	if !found || company.ID.String() == "" {
		return &provider.PeopleResponse{People: nil, HasMore: false}, nil
	}

	query := url.Values{}
	query.Set("companyId", company.ID.String())
	query.Set("page", strconv.Itoa(page))
	key := "employees|" + company.ID.String() + "|" + strconv.Itoa(page)

	data, err := p.getJSON(ctx, key, "/get-company-employees", query)
	if err != nil {
		return nil, err
	}

	var er linkedinEmployeesResp
	if err := json.Unmarshal(data, &er); err != nil {
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	now := time.Now().UTC()
	companyURL := pickCompanyURL(company, req.Domain)
	people := make([]types.DecisionMaker, 0, len(er.Data))
	for _, e := range er.Data {
		name := employeeName(e)
		if name == "" {
			continue
		}
		title := e.Title
		if title == "" {
			title = e.Headline
		}
		if len(req.Titles) > 0 && !titleMatches(title, req.Titles) {
			continue
		}

		profileURL := employeeProfileURL(e)
		docURL := profileURL
		if docURL == "" {
			docURL = companyURL
		}
		people = append(people, types.DecisionMaker{
			Name:       name,
			Title:      title,
			ProfileURL: profileURL,
			Location:   e.Location,
			Sources: []types.SourceDocument{{
				Title:     name + " — " + company.Name,
				URL:       docURL,
				Snippet:   title,
				Provider:  p.Name(),
				Origin:    types.OriginDirectory,
				Method:    types.MethodStructured,
				Retrieved: now,
			}},
		})
	}

	hasMore := hasMorePages(er, page, p.cfg.MaxPages)

	p.logger.Debug("linkedin people listed",
		zap.String("domain", req.Domain),
		zap.Int("page", page),
		zap.Int("people", len(people)),
		zap.Bool("has_more", hasMore))
	return &provider.PeopleResponse{People: people, HasMore: hasMore}, nil
}

// fetchCompany 按域名查询公司。404 或 success=false 视为未收录而非错误。
func (p *LinkedInProvider) fetchCompany(ctx context.Context, domain string) (linkedinCompany, bool, error) {
	domain = strings.TrimSpace(domain)
	query := url.Values{}
	query.Set("domain", domain)

	data, err := p.getJSON(ctx, "company|"+domain, "/get-company-by-domain", query)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrProviderNotFound {
			return linkedinCompany{}, false, nil
		}
		return linkedinCompany{}, false, err
	}

	var cr linkedinCompanyResp
	if err := json.Unmarshal(data, &cr); err != nil {
		return linkedinCompany{}, false, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}
	if !cr.Success && cr.Data.Name == "" {
		return linkedinCompany{}, false, nil
	}
	return cr.Data, true, nil
}

// getJSON 发起一次经调用门的 GET 请求并返回原始响应体。
func (p *LinkedInProvider) getJSON(ctx context.Context, key, path string, query url.Values) ([]byte, error) {
	return p.gate.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + path + "?" + query.Encode()
		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		p.buildHeaders(httpReq)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, &types.Error{
				Code:       types.ErrUpstreamError,
				Message:    err.Error(),
				HTTPStatus: http.StatusBadGateway,
				Retryable:  true,
				Provider:   p.Name(),
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg := readLinkedInErrMsg(resp.Body)
			return nil, mapLinkedInError(resp.StatusCode, msg, p.Name())
		}
		return io.ReadAll(resp.Body)
	})
}

func employeeName(e linkedinEmployee) string {
	if e.FullName != "" {
		return strings.TrimSpace(e.FullName)
	}
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

func employeeProfileURL(e linkedinEmployee) string {
	if e.ProfileURL != "" {
		return e.ProfileURL
	}
	if e.PublicIdentifier != "" {
		return "https://www.linkedin.com/in/" + e.PublicIdentifier
	}
	return ""
}

// titleMatches 是客户端侧的职位关键词过滤；该 API 不支持服务端过滤。
func titleMatches(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hasMorePages(er linkedinEmployeesResp, page, maxPages int) bool {
	if page >= maxPages {
		return false
	}
	if er.TotalPage > 0 {
		return page < er.TotalPage
	}
	if er.Total > 0 {
		return page*linkedinPageSize < er.Total
	}
	// 套餐未返回分页信息时以满页作为还有下一页的信号
	return len(er.Data) >= linkedinPageSize
}

func pickDomain(website, fallback string) string {
	d := strings.TrimSpace(website)
	if d == "" {
		return fallback
	}
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.IndexByte(d, '/'); idx >= 0 {
		d = d[:idx]
	}
	if d == "" {
		return fallback
	}
	return d
}

func pickIndustry(c linkedinCompany) string {
	if c.Industry != "" {
		return c.Industry
	}
	if len(c.Industries) > 0 {
		return c.Industries[0]
	}
	return ""
}

func pickCompanyURL(c linkedinCompany, domain string) string {
	if c.LinkedinURL != "" {
		return c.LinkedinURL
	}
	if c.UniversalName != "" {
		return "https://www.linkedin.com/company/" + c.UniversalName
	}
	return "https://" + domain
}

func readLinkedInErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp linkedinErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Message != "" {
		return errResp.Message
	}
	return string(data)
}

func mapLinkedInError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.Error{Code: types.ErrProviderUnauthorized, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusNotFound:
		// 公司未收录走正常未命中路径
		return &types.Error{Code: types.ErrProviderNotFound, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrProviderRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	default:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: name}
	}
}
