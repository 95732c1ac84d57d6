package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/provider"
	providers "github.com/BaSui01/intelflow/internal/providerconf"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// TavilyProvider 实现 Tavily 搜索 API 的 Searcher。
// Tavily API 特点：
// 1. api_key 放在请求体而非请求头
// 2. 单一 POST /search 端点，snippet 与可选全文一次返回
// 3. exclude_domains 需要显式传入，否则字典站点会混入结果
type TavilyProvider struct {
	cfg    providers.TavilyConfig
	client *http.Client
	gate   *provider.Gate
	logger *zap.Logger
}

// DefaultExcludeDomains 过滤通用释义站点。对 "What is a CIO?" 这类查询，
// 字典站点的命中率极高，但对组织情报毫无价值。
func DefaultExcludeDomains() []string {
	return []string{"wikipedia.org", "dictionary.com", "thefreedictionary.com"}
}

// NewTavilyProvider 创建 Tavily Provider
func NewTavilyProvider(cfg providers.TavilyConfig, cache provider.Cache, logger *zap.Logger) *TavilyProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.ExcludeDomains == nil {
		cfg.ExcludeDomains = DefaultExcludeDomains()
	}

	return &TavilyProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout, 30*time.Second),
		gate:   provider.NewGate("tavily", cfg.Gate, cache, logger),
		logger: logger,
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilitySearch}
}

func (p *TavilyProvider) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
	start := time.Now()
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/")
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &provider.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	// 没有专用健康端点，可达且未报 5xx 即视为健康
	if resp.StatusCode >= http.StatusInternalServerError {
		return &provider.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("tavily health check failed: status=%d", resp.StatusCode)
	}
	return &provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Tavily 请求/响应结构
type tavilyRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []tavilyResult `json:"results"`
}

type tavilyErrorResp struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error,omitempty"`
}

func (p *TavilyProvider) Search(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "search query must not be empty",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = p.cfg.MaxResults
	}

	body := tavilyRequest{
		APIKey:            p.cfg.APIKey,
		Query:             req.Query,
		SearchDepth:       p.cfg.SearchDepth,
		MaxResults:        maxResults,
		IncludeRawContent: req.IncludeRawContent,
		ExcludeDomains:    appendUnique(p.cfg.ExcludeDomains, req.ExcludeDomains),
	}
	if req.Site != "" {
		body.IncludeDomains = []string{req.Site}
	}

	// 缓存键不含 api_key，换 key 不会击穿缓存
	key := strings.Join([]string{
		"search", req.Query, body.SearchDepth, strconv.Itoa(maxResults),
		strconv.FormatBool(req.IncludeRawContent),
		strings.Join(body.IncludeDomains, ","),
		strings.Join(body.ExcludeDomains, ","),
	}, "|")

	data, err := p.gate.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		payload, _ := json.Marshal(body)
		endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/search"

		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		httpReq.Header.Set("Content-Type", "application/json")

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
			msg := readTavilyErrMsg(resp.Body)
			return nil, mapTavilyError(resp.StatusCode, msg, p.Name())
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var tr tavilyResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	now := time.Now().UTC()
	docs := make([]types.SourceDocument, 0, len(tr.Results))
	for _, r := range tr.Results {
		if r.URL == "" {
			continue
		}
		docs = append(docs, types.SourceDocument{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Content,
			RawContent: r.RawContent,
			Provider:   p.Name(),
			Origin:     types.OriginSearch,
			Method:     types.MethodSnippet,
			Retrieved:  now,
		})
	}

	p.logger.Debug("tavily search completed",
		zap.String("query", req.Query),
		zap.Int("results", len(docs)))
	return &provider.SearchResponse{Results: docs}, nil
}

// appendUnique 合并两组域名并去重，保序。
func appendUnique(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, lst := range [][]string{base, extra} {
		for _, d := range lst {
			if _, ok := seen[d]; ok || d == "" {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}

func readTavilyErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp tavilyErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if len(errResp.Detail) > 0 {
			var detail string
			if json.Unmarshal(errResp.Detail, &detail) == nil && detail != "" {
				return detail
			}
			return string(errResp.Detail)
		}
	}
	return string(data)
}

func mapTavilyError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.Error{Code: types.ErrProviderUnauthorized, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrProviderRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	case http.StatusBadRequest:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "limit") {
			return &types.Error{Code: types.ErrProviderQuota, Message: msg, HTTPStatus: status, Provider: name}
		}
		return &types.Error{Code: types.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	default:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: name}
	}
}
