package diffbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/provider"
	providers "github.com/BaSui01/intelflow/internal/providerconf"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// DiffbotProvider 实现 Diffbot Analyze API 的 Extractor。
// Diffbot API 特点：
// 1. token 放在查询参数而非请求头
// 2. 出错时常以 HTTP 200 返回 {"error": ..., "errorCode": ...} 体
// 3. objects 的 schema 随页面类型变化，人名抽取需保持启发式兜底
type DiffbotProvider struct {
	cfg    providers.DiffbotConfig
	client *http.Client
	gate   *provider.Gate
	logger *zap.Logger
}

// NewDiffbotProvider 创建 Diffbot Provider
func NewDiffbotProvider(cfg providers.DiffbotConfig, cache provider.Cache, logger *zap.Logger) *DiffbotProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.diffbot.com/v3/analyze"
	}

	return &DiffbotProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout, 25*time.Second),
		gate:   provider.NewGate("diffbot", cfg.Gate, cache, logger),
		logger: logger,
	}
}

func (p *DiffbotProvider) Name() string { return "diffbot" }

func (p *DiffbotProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilityExtract}
}

func (p *DiffbotProvider) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
	start := time.Now()
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL, nil)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &provider.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &provider.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("diffbot health check failed: status=%d", resp.StatusCode)
	}
	return &provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Diffbot 响应结构
type diffbotResponse struct {
	Objects   []diffbotObject `json:"objects"`
	Error     string          `json:"error,omitempty"`
	ErrorCode int             `json:"errorCode,omitempty"`
}

type diffbotObject struct {
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
	Name    string `json:"name,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	PageURL string `json:"pageUrl,omitempty"`
	Date    string `json:"date,omitempty"`
}

// personPattern 命中 "Jane Doe, Managing Partner" 或 "John Smith - CIO" 形式。
var personPattern = regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+)\s*[,-]\s*([^\n\r|]+)`)

func (p *DiffbotProvider) Extract(ctx context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error) {
	if req == nil || len(req.URLs) == 0 {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "extract requires at least one url",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	out := &provider.ExtractResponse{}
	for _, pageURL := range req.URLs {
		page, err := p.analyzeURL(ctx, pageURL)
		if err != nil {
			// 凭据失效是提供商级故障，整批中止交给回退链；
			// 单页抓取失败只记入 Failed
			if types.GetErrorCode(err) == types.ErrProviderUnauthorized {
				return nil, err
			}
			p.logger.Debug("diffbot page extraction failed",
				zap.String("url", pageURL),
				zap.Error(err))
			out.Failed = append(out.Failed, pageURL)
			continue
		}
		out.Pages = append(out.Pages, *page)
	}

	p.logger.Debug("diffbot extraction completed",
		zap.Int("pages", len(out.Pages)),
		zap.Int("failed", len(out.Failed)))
	return out, nil
}

func (p *DiffbotProvider) analyzeURL(ctx context.Context, pageURL string) (*provider.ExtractedPage, error) {
	data, err := p.gate.Do(ctx, "analyze|"+pageURL, func(ctx context.Context) ([]byte, error) {
		query := url.Values{}
		query.Set("token", p.cfg.Token)
		query.Set("url", pageURL)
		endpoint := p.cfg.BaseURL + "?" + query.Encode()

		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)

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
			return nil, mapDiffbotError(resp.StatusCode, string(body), p.Name())
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var dr diffbotResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}
	// Diffbot 习惯用 200 + error 体报错
	if dr.Error != "" {
		return nil, mapDiffbotError(dr.ErrorCode, dr.Error, p.Name())
	}

	doc := types.SourceDocument{
		Title:     pageURL,
		URL:       pageURL,
		Provider:  p.Name(),
		Origin:    types.OriginExtraction,
		Method:    types.MethodStructured,
		Retrieved: time.Now().UTC(),
	}
	var text strings.Builder
	for _, obj := range dr.Objects {
		if doc.Title == pageURL && obj.Title != "" {
			doc.Title = obj.Title
		}
		if obj.PageURL != "" {
			doc.URL = obj.PageURL
		}
		if obj.Text != "" {
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(obj.Text)
		}
	}
	doc.RawContent = text.String()
	doc.Snippet = provider.Condense(doc.RawContent, 500)

	return &provider.ExtractedPage{
		Document: doc,
		People:   extractPeople(dr.Objects, doc),
	}, nil
}

// extractPeople 从分析结果中识别人名与职位。优先使用显式字段，
// 其次对正文/标题做启发式匹配，按 name+title 去重。
func extractPeople(objects []diffbotObject, doc types.SourceDocument) []types.DecisionMaker {
	type candidate struct {
		name  string
		title string
	}
	var candidates []candidate

	for _, obj := range objects {
		name := obj.Author
		if name == "" {
			name = obj.Name
		}
		if name != "" && obj.Title != "" && looksLikePersonName(name) {
			candidates = append(candidates, candidate{name: name, title: obj.Title})
			continue
		}

		for _, blob := range []string{obj.Text, obj.Title} {
			for _, match := range personPattern.FindAllStringSubmatch(blob, -1) {
				pname := strings.TrimSpace(match[1])
				ptitle := strings.TrimSpace(match[2])
				if len(ptitle) > 2 && len(strings.Fields(pname)) >= 2 {
					candidates = append(candidates, candidate{name: pname, title: ptitle})
				}
			}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	people := make([]types.DecisionMaker, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(c.name) + "|" + strings.ToLower(c.title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		people = append(people, types.DecisionMaker{
			Name:    c.name,
			Title:   c.title,
			Sources: []types.SourceDocument{doc},
		})
	}
	return people
}

// looksLikePersonName 过滤掉被填进 author/name 字段的站点名。
func looksLikePersonName(name string) bool {
	fields := strings.Fields(name)
	if len(fields) < 2 || len(fields) > 4 {
		return false
	}
	for _, f := range fields {
		r := rune(f[0])
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func mapDiffbotError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &types.Error{Code: types.ErrProviderUnauthorized, Message: msg, HTTPStatus: status, Provider: name}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrProviderRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true, Provider: name}
	default:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "limit") {
			return &types.Error{Code: types.ErrProviderQuota, Message: msg, HTTPStatus: status, Provider: name}
		}
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: name}
	}
}
