// =============================================================================
// 📦 IntelFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Workflow:   DefaultWorkflowConfig(),
		Agent:      DefaultAgentConfig(),
		Guardrails: DefaultGuardrailsConfig(),
		Providers:  DefaultProvidersConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Mongo:      DefaultMongoConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultWorkflowConfig 返回默认编排器配置
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DefaultBudget:     90 * time.Second,
		MaxBudget:         10 * time.Minute,
		MaxConcurrentFoci: 8,
		RunCapacity:       256,
	}
}

// DefaultAgentConfig 返回默认代理配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		SeniorTitles: []string{
			"chief", "ceo", "cio", "cto", "cfo", "coo",
			"president", "vice president", "vp", "director",
			"head of", "partner", "founder",
		},
		DirectoryMaxPages:  3,
		ExtractTopURLs:     3,
		SearchMaxResults:   5,
		MaxEvidenceTokens:  6000,
		SynthesisMaxTokens: 1024,
		TemplateFallback:   true,
	}
}

// DefaultGuardrailsConfig 返回默认充分性阈值配置
func DefaultGuardrailsConfig() GuardrailsConfig {
	return GuardrailsConfig{
		MinDecisionMakers: 3,
		MinInvestments:    1,
		MinGaps:           1,
		GenericMinWords:   12,
	}
}

// DefaultGateConfig 返回默认调用门配置；保守取值，适合免费档提供商配额
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxConcurrent: 4,
		RPS:           5,
		Burst:         10,
		CacheTTL:      30 * time.Minute,
	}
}

// DefaultProvidersConfig 返回默认提供商配置。
// 凭据默认为空（对应提供商不注册）；URL、模型等由各客户端回退到官方端点。
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Tavily: TavilyConfig{
			SearchDepth: "basic",
			MaxResults:  5,
			Gate:        DefaultGateConfig(),
		},
		Diffbot: DiffbotConfig{
			Gate: DefaultGateConfig(),
		},
		LinkedIn: LinkedInConfig{
			MaxPages: 3,
			Gate:     DefaultGateConfig(),
		},
		BrightData: BrightDataConfig{
			Gate: DefaultGateConfig(),
		},
		Gemini: GeminiConfig{
			Temperature: 0.2,
			Gate:        DefaultGateConfig(),
		},
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "intelflow:",
		DefaultTTL:   30 * time.Minute,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置。
// 默认使用纯 Go SQLite，开箱即用；置空 driver 可关闭归档。
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "intelflow",
		Password:        "",
		Name:            "intelflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认文档库配置。
// URI 默认为空，报告写入内存文档库。
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "",
		Database:   "intelflow",
		Collection: "reports",
		Timeout:    10 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "intelflow",
		SampleRate:   0.1,
	}
}
