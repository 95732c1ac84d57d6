package providers

import (
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/providers/brightdata"
	"github.com/BaSui01/intelflow/providers/diffbot"
	"github.com/BaSui01/intelflow/providers/gemini"
	"github.com/BaSui01/intelflow/providers/linkedin"
	"github.com/BaSui01/intelflow/providers/tavily"
	"go.uber.org/zap"
)

// BuildRegistry 按配置组装提供商注册表，只注册已配置凭据的提供商。
// 缺失的提供商由路由层的回退链吸收；cache 可为 nil（关闭响应缓存）。
func BuildRegistry(cfg Config, cache provider.Cache, logger *zap.Logger) *provider.Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := provider.NewRegistry()

	if cfg.Tavily.APIKey != "" {
		registry.Register(tavily.NewTavilyProvider(cfg.Tavily, cache, logger))
	}
	if cfg.Diffbot.Token != "" {
		registry.Register(diffbot.NewDiffbotProvider(cfg.Diffbot, cache, logger))
	}
	if cfg.LinkedIn.APIKey != "" {
		registry.Register(linkedin.NewLinkedInProvider(cfg.LinkedIn, cache, logger))
	}
	if cfg.BrightData.APIToken != "" && cfg.BrightData.BaseURL != "" {
		registry.Register(brightdata.NewBrightDataProvider(cfg.BrightData, cache, logger))
	}
	if cfg.Gemini.APIKey != "" {
		registry.Register(gemini.NewGeminiProvider(cfg.Gemini, cache, logger))
	}

	logger.Info("provider registry assembled",
		zap.Strings("providers", registry.List()))
	return registry
}
