package providers

import (
	"github.com/BaSui01/intelflow/internal/providerconf"
)

// 配置结构体定义在 internal/providerconf，这里以别名形式再导出，
// 供调用方以 providers.XxxConfig 引用；子包直接依赖 providerconf，
// 避免与本包的工厂形成导入环。

// TavilyConfig Tavily 搜索 Provider 配置
type TavilyConfig = providerconf.TavilyConfig

// DiffbotConfig Diffbot 抽取 Provider 配置
type DiffbotConfig = providerconf.DiffbotConfig

// LinkedInConfig LinkedIn 目录 Provider 配置（RapidAPI 网关）
type LinkedInConfig = providerconf.LinkedInConfig

// BrightDataConfig Bright Data Provider 配置。BaseURL 指向账号下的
// SERP 端点；UnlockerURL/Zone 用于原始页面抓取。
type BrightDataConfig = providerconf.BrightDataConfig

// GeminiConfig Gemini 综述 Provider 配置
type GeminiConfig = providerconf.GeminiConfig

// Config 汇总所有提供商配置；工厂只注册已配置凭据的提供商。
type Config = providerconf.Config
