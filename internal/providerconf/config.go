// Package providerconf holds the shared provider config structs and HTTP
// helpers used by both the providers package and its vendor subpackages,
// keeping the credential-gated factory in providers free of import cycles.
package providerconf

import (
	"time"

	"github.com/BaSui01/intelflow/provider"
)

// TavilyConfig Tavily 搜索 Provider 配置
type TavilyConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	SearchDepth string        `json:"search_depth,omitempty" yaml:"search_depth,omitempty"` // basic / advanced
	MaxResults  int           `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ExcludeDomains 过滤字典类站点，避免通用释义污染搜索结果。
	ExcludeDomains []string `json:"exclude_domains,omitempty" yaml:"exclude_domains,omitempty"`

	Gate provider.GateConfig `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// DiffbotConfig Diffbot 抽取 Provider 配置
type DiffbotConfig struct {
	Token   string        `json:"token" yaml:"token"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Gate provider.GateConfig `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// LinkedInConfig LinkedIn 目录 Provider 配置（RapidAPI 网关）
type LinkedInConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	Host    string        `json:"host,omitempty" yaml:"host,omitempty"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxPages 限制人员列表的最大翻页数，防止大型组织拖垮配额。
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`

	Gate provider.GateConfig `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// BrightDataConfig Bright Data Provider 配置。BaseURL 指向账号下的
// SERP 端点；UnlockerURL/Zone 用于原始页面抓取。
type BrightDataConfig struct {
	APIToken    string        `json:"api_token" yaml:"api_token"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	UnlockerURL string        `json:"unlocker_url,omitempty" yaml:"unlocker_url,omitempty"`
	Zone        string        `json:"zone,omitempty" yaml:"zone,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Gate provider.GateConfig `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// GeminiConfig Gemini 综述 Provider 配置
type GeminiConfig struct {
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float32       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Gate provider.GateConfig `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// Config 汇总所有提供商配置；工厂只注册已配置凭据的提供商。
type Config struct {
	Tavily     TavilyConfig     `json:"tavily" yaml:"tavily"`
	Diffbot    DiffbotConfig    `json:"diffbot" yaml:"diffbot"`
	LinkedIn   LinkedInConfig   `json:"linkedin" yaml:"linkedin"`
	BrightData BrightDataConfig `json:"brightdata" yaml:"brightdata"`
	Gemini     GeminiConfig     `json:"gemini" yaml:"gemini"`
}
