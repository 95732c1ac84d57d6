package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/provider"
	providers "github.com/BaSui01/intelflow/internal/providerconf"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// systemPrompt 固定综述人设：只陈述证据支持的结论。
const systemPrompt = `You are a sales-intelligence analyst. Write a concise pre-meeting briefing ` +
	`for the question below using only the evidence provided. Cite no facts that are absent from ` +
	`the evidence. Prefer named people, concrete amounts, and dates over generalities.`

// GeminiProvider 实现 Google Gemini 的 Synthesizer。
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. generateContent 单次返回全部候选
// 3. systemInstruction 与对话内容分离
type GeminiProvider struct {
	cfg    providers.GeminiConfig
	client *http.Client
	gate   *provider.Gate
	logger *zap.Logger
}

// NewGeminiProvider 创建 Gemini Provider
func NewGeminiProvider(cfg providers.GeminiConfig, cache provider.Cache, logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: providers.NewHTTPClient(cfg.Timeout, 60*time.Second),
		gate:   provider.NewGate("gemini", cfg.Gate, cache, logger),
		logger: logger,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilitySynthesize}
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) (*provider.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &provider.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readGeminiErrMsg(resp.Body)
		return &provider.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("gemini health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *GeminiProvider) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// Gemini 请求/响应结构
type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *GeminiProvider) Synthesize(ctx context.Context, req *provider.SynthesisRequest) (*provider.SynthesisResponse, error) {
	if req == nil || strings.TrimSpace(req.Evidence) == "" {
		return nil, &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    "synthesis requires non-empty evidence",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	model := providers.ChooseModel("", p.cfg.Model, "gemini-2.5-flash")

	prompt := fmt.Sprintf("Organization: %s\nQuestion: %s\n\nEvidence:\n%s",
		req.Organization, req.Question, req.Evidence)
	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     p.cfg.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	key := strings.Join([]string{"synthesize", model, req.Organization, req.Question, req.Evidence}, "|")
	data, err := p.gate.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		payload, _ := json.Marshal(body)
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
			strings.TrimRight(p.cfg.BaseURL, "/"), model)

		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
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
			msg := readGeminiErrMsg(resp.Body)
			return nil, mapGeminiError(resp.StatusCode, msg, p.Name())
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var gr geminiResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	out := &provider.SynthesisResponse{Model: model}
	if gr.ModelVersion != "" {
		out.Model = gr.ModelVersion
	}
	if gr.UsageMetadata != nil {
		out.PromptTokens = gr.UsageMetadata.PromptTokenCount
		out.CompletionTokens = gr.UsageMetadata.CandidatesTokenCount
	}
	var text strings.Builder
	for _, candidate := range gr.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		break // 只取首个候选
	}
	out.Text = strings.TrimSpace(text.String())

	p.logger.Debug("gemini synthesis completed",
		zap.String("model", out.Model),
		zap.Int("completion_tokens", out.CompletionTokens))
	return out, nil
}

func readGeminiErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

func mapGeminiError(status int, msg string, name string) *types.Error {
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
