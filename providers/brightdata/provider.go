package brightdata

import (
	"bytes"
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

// BrightDataProvider 实现 Bright Data 的 Searcher + Extractor。
// Bright Data 按账号开通的产品差异很大：
// 1. SERP 端点因账号而异，BaseURL 必须显式配置
// 2. 结果字段名不统一（results/data/items、url/link、content/snippet），
//    解析按并集取值
// 3. 原始页面经 Unlocker 代理抓取，返回 HTML 后在本地提取可见文本
type BrightDataProvider struct {
	cfg    providers.BrightDataConfig
	client *http.Client
	gate   *provider.Gate
	logger *zap.Logger
}

// NewBrightDataProvider 创建 Bright Data Provider
func NewBrightDataProvider(cfg providers.BrightDataConfig, cache provider.Cache, logger *zap.Logger) *BrightDataProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UnlockerURL == "" {
		cfg.UnlockerURL = "https://api.brightdata.com/request"
	}
	if cfg.Zone == "" {
		cfg.Zone = "web_unlocker1"
	}

	return &BrightDataProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout, 25*time.Second),
		gate:   provider.NewGate("brightdata", cfg.Gate, cache, logger),
		logger: logger,
	}
}

func (p *BrightDataProvider) Name() string { return "brightdata" }

func (p *BrightDataProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilitySearch, provider.CapabilityExtract}
}

func (p *BrightDataProvider) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
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
			fmt.Errorf("brightdata health check failed: status=%d", resp.StatusCode)
	}
	return &provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *BrightDataProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
}

// Bright Data 响应结构（字段取常见流水线的并集）
type brightdataResponse struct {
	Results []brightdataItem `json:"results"`
	Data    []brightdataItem `json:"data"`
	Items   []brightdataItem `json:"items"`
}

type brightdataItem struct {
	Title    string `json:"title"`
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Link     string `json:"link"`
	Content  string `json:"content"`
	Snippet  string `json:"snippet"`
}

type brightdataUnlockRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

func (p *BrightDataProvider) Search(ctx context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "search query must not be empty",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	q := req.Query
	if req.Site != "" {
		q = q + " site:" + req.Site
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = 5
	}

	key := "search|" + q + "|" + strconv.Itoa(limit)
	data, err := p.gate.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		query := url.Values{}
		query.Set("q", q)
		query.Set("limit", strconv.Itoa(limit))
		endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "?" + query.Encode()

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
			body, _ := io.ReadAll(resp.Body)
			return nil, mapBrightDataError(resp.StatusCode, string(body), p.Name())
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var br brightdataResponse
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	now := time.Now().UTC()
	items := pickItems(br)
	docs := make([]types.SourceDocument, 0, len(items))
	for _, item := range items {
		u := item.URL
		if u == "" {
			u = item.Link
		}
		if u == "" {
			continue
		}
		title := item.Title
		if title == "" {
			title = item.Headline
		}
		snippet := item.Content
		if snippet == "" {
			snippet = item.Snippet
		}
		docs = append(docs, types.SourceDocument{
			Title:     title,
			URL:       u,
			Snippet:   snippet,
			Provider:  p.Name(),
			Origin:    types.OriginSearch,
			Method:    types.MethodSnippet,
			Retrieved: now,
		})
	}

	p.logger.Debug("brightdata search completed",
		zap.String("query", q),
		zap.Int("results", len(docs)))
	return &provider.SearchResponse{Results: docs}, nil
}

func (p *BrightDataProvider) Extract(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error) {
	if req == nil || len(req.URLs) == 0 {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "extract requires at least one url",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	now := time.Now().UTC()
	out := &provider.ExtractResponse{}
	for _, pageURL := range req.URLs {
		raw, err := p.unlock(ctx, pageURL)
		if err != nil {
			if types.GetErrorCode(err) == types.ErrProviderUnauthorized {
				return nil, err
			}
			p.logger.Debug("brightdata page fetch failed",
				zap.String("url", pageURL),
				zap.Error(err))
			out.Failed = append(out.Failed, pageURL)
			continue
		}

		text, err := provider.VisibleText(bytes.NewReader(raw))
		if err != nil || text == "" {
			out.Failed = append(out.Failed, pageURL)
			continue
		}

		// 代理抓回的是未结构化的可见文本，抽取质量按 snippet 档计
		out.Pages = append(out.Pages, provider.ExtractedPage{
			Document: types.SourceDocument{
				Title:      pageURL,
				URL:        pageURL,
				Snippet:    provider.Condense(text, 500),
				RawContent: text,
				Provider:   p.Name(),
				Origin:     types.OriginExtraction,
				Method:     types.MethodSnippet,
				Retrieved:  now,
			},
		})
	}

	p.logger.Debug("brightdata extraction completed",
		zap.Int("pages", len(out.Pages)),
		zap.Int("failed", len(out.Failed)))
	return out, nil
}

func (p *BrightDataProvider) unlock(ctx context.Context, pageURL string) ([]byte, error) {
	return p.gate.Do(ctx, "unlock|"+pageURL, func(ctx context.Context) ([]byte, error) {
		payload, _ := json.Marshal(brightdataUnlockRequest{
			Zone:   p.cfg.Zone,
			URL:    pageURL,
			Format: "raw",
		})

		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.UnlockerURL, bytes.NewReader(payload))
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
			body, _ := io.ReadAll(resp.Body)
			return nil, mapBrightDataError(resp.StatusCode, string(body), p.Name())
		}
		return io.ReadAll(resp.Body)
	})
}

// pickItems 取第一个非空的结果数组。
func pickItems(br brightdataResponse) []brightdataItem {
	if len(br.Results) > 0 {
		return br.Results
	}
	if len(br.Data) > 0 {
		return br.Data
	}
	return br.Items
}

func mapBrightDataError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.Error{Code: types.ErrProviderUnauthorized, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrProviderRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	default:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: name}
	}
}
