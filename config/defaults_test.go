package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, WorkflowConfig{}, cfg.Workflow)
	assert.NotEqual(t, AgentConfig{}, cfg.Agent)
	assert.NotEqual(t, GuardrailsConfig{}, cfg.Guardrails)
	assert.NotEqual(t, ProvidersConfig{}, cfg.Providers)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, MongoConfig{}, cfg.Mongo)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Empty(t, cfg.APIKeys)
}

func TestDefaultWorkflowConfig(t *testing.T) {
	cfg := DefaultWorkflowConfig()
	assert.Equal(t, 90*time.Second, cfg.DefaultBudget)
	assert.Equal(t, 10*time.Minute, cfg.MaxBudget)
	assert.Equal(t, int64(8), cfg.MaxConcurrentFoci)
	assert.Equal(t, 256, cfg.RunCapacity)
}

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig()
	assert.Contains(t, cfg.SeniorTitles, "ceo")
	assert.Contains(t, cfg.SeniorTitles, "partner")
	assert.Equal(t, 3, cfg.DirectoryMaxPages)
	assert.Equal(t, 3, cfg.ExtractTopURLs)
	assert.Equal(t, 5, cfg.SearchMaxResults)
	assert.Equal(t, 6000, cfg.MaxEvidenceTokens)
	assert.Equal(t, 1024, cfg.SynthesisMaxTokens)
	assert.True(t, cfg.TemplateFallback)
}

func TestDefaultGuardrailsConfig(t *testing.T) {
	cfg := DefaultGuardrailsConfig()
	assert.Equal(t, 3, cfg.MinDecisionMakers)
	assert.Equal(t, 1, cfg.MinInvestments)
	assert.Equal(t, 1, cfg.MinGaps)
	assert.Equal(t, 12, cfg.GenericMinWords)
}

func TestDefaultGateConfig(t *testing.T) {
	cfg := DefaultGateConfig()
	assert.Equal(t, int64(4), cfg.MaxConcurrent)
	assert.InDelta(t, 5.0, cfg.RPS, 0.001)
	assert.Equal(t, 10, cfg.Burst)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
}

func TestDefaultProvidersConfig(t *testing.T) {
	cfg := DefaultProvidersConfig()

	// 凭据默认为空：未配置的提供商不会注册
	assert.Empty(t, cfg.Tavily.APIKey)
	assert.Empty(t, cfg.Diffbot.Token)
	assert.Empty(t, cfg.LinkedIn.APIKey)
	assert.Empty(t, cfg.BrightData.APIToken)
	assert.Empty(t, cfg.Gemini.APIKey)

	assert.Equal(t, "basic", cfg.Tavily.SearchDepth)
	assert.Equal(t, 5, cfg.Tavily.MaxResults)
	assert.Equal(t, 3, cfg.LinkedIn.MaxPages)
	assert.InDelta(t, 0.2, cfg.Gemini.Temperature, 0.001)

	// 每个提供商都带调用门默认值
	assert.Equal(t, DefaultGateConfig(), cfg.Tavily.Gate)
	assert.Equal(t, DefaultGateConfig(), cfg.Gemini.Gate)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, "intelflow:", cfg.KeyPrefix)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "intelflow.db", cfg.Name)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "intelflow", cfg.User)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultMongoConfig(t *testing.T) {
	cfg := DefaultMongoConfig()
	assert.Empty(t, cfg.URI)
	assert.Equal(t, "intelflow", cfg.Database)
	assert.Equal(t, "reports", cfg.Collection)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "intelflow", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}
