// =============================================================================
// 📦 IntelFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("INTELFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 IntelFlow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Workflow 编排器配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Agent 专业代理配置
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Guardrails 充分性阈值配置
	Guardrails GuardrailsConfig `yaml:"guardrails" env:"GUARDRAILS"`

	// Providers 外部提供商配置
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 运行归档数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Mongo 报告文档库配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每 IP 限流速率（请求/秒）
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// API 密钥列表；为空时不启用鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// WorkflowConfig 编排器配置（与 workflow.Config 兼容）
type WorkflowConfig struct {
	// 未指定预算的问题使用的墙钟预算
	DefaultBudget time.Duration `yaml:"default_budget" env:"DEFAULT_BUDGET"`
	// 调用方可请求的预算上限
	MaxBudget time.Duration `yaml:"max_budget" env:"MAX_BUDGET"`
	// 同时执行的焦点上限
	MaxConcurrentFoci int64 `yaml:"max_concurrent_foci" env:"MAX_CONCURRENT_FOCI"`
	// 注册表保留的运行数
	RunCapacity int `yaml:"run_capacity" env:"RUN_CAPACITY"`
}

// AgentConfig 专业代理配置（与 agent.Config 兼容）
type AgentConfig struct {
	// 决策人目录查询的职级关键词过滤
	SeniorTitles []string `yaml:"senior_titles" env:"SENIOR_TITLES"`
	// 目录翻页上限
	DirectoryMaxPages int `yaml:"directory_max_pages" env:"DIRECTORY_MAX_PAGES"`
	// 升级到抽取提供商时深读的候选页面数
	ExtractTopURLs int `yaml:"extract_top_urls" env:"EXTRACT_TOP_URLS"`
	// 每次搜索请求的结果数
	SearchMaxResults int `yaml:"search_max_results" env:"SEARCH_MAX_RESULTS"`
	// 综述证据摘要的 token 预算
	MaxEvidenceTokens int `yaml:"max_evidence_tokens" env:"MAX_EVIDENCE_TOKENS"`
	// 综述生成的输出 token 上限
	SynthesisMaxTokens int `yaml:"synthesis_max_tokens" env:"SYNTHESIS_MAX_TOKENS"`
	// 综述提供商不可用时退化为确定性模板摘要
	TemplateFallback bool `yaml:"template_fallback" env:"TEMPLATE_FALLBACK"`
}

// GuardrailsConfig 充分性阈值配置（与 guardrails.Policy 兼容）
type GuardrailsConfig struct {
	// 决策人焦点域的充分性阈值
	MinDecisionMakers int `yaml:"min_decision_makers" env:"MIN_DECISION_MAKERS"`
	// 投资焦点域的充分性阈值
	MinInvestments int `yaml:"min_investments" env:"MIN_INVESTMENTS"`
	// 缺口焦点域的充分性阈值
	MinGaps int `yaml:"min_gaps" env:"MIN_GAPS"`
	// 低于该词数的无组织指称文本直接判为泛化回答
	GenericMinWords int `yaml:"generic_min_words" env:"GENERIC_MIN_WORDS"`
}

// GateConfig 提供商调用门配置（与 provider.GateConfig 兼容）
type GateConfig struct {
	// 最大并发请求数
	MaxConcurrent int64 `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 令牌桶速率（请求/秒）
	RPS float64 `yaml:"rps" env:"RPS"`
	// 令牌桶突发容量
	Burst int `yaml:"burst" env:"BURST"`
	// 响应缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// TavilyConfig Tavily 搜索提供商配置
type TavilyConfig struct {
	// API Key；为空时不注册该提供商
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，默认官方端点）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 搜索深度: basic / advanced
	SearchDepth string `yaml:"search_depth" env:"SEARCH_DEPTH"`
	// 单次搜索结果数
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 排除的低信号域名
	ExcludeDomains []string `yaml:"exclude_domains" env:"EXCLUDE_DOMAINS"`
	// 调用门配置
	Gate GateConfig `yaml:"gate" env:"GATE"`
}

// DiffbotConfig Diffbot 抽取提供商配置
type DiffbotConfig struct {
	// API Token；为空时不注册该提供商
	Token string `yaml:"token" env:"TOKEN"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 调用门配置
	Gate GateConfig `yaml:"gate" env:"GATE"`
}

// LinkedInConfig LinkedIn 目录提供商配置（RapidAPI 网关）
type LinkedInConfig struct {
	// RapidAPI Key；为空时不注册该提供商
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// RapidAPI 网关主机
	Host string `yaml:"host" env:"HOST"`
	// 基础 URL（可选，默认 https://<host>）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 人员列表最大翻页数
	MaxPages int `yaml:"max_pages" env:"MAX_PAGES"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 调用门配置
	Gate GateConfig `yaml:"gate" env:"GATE"`
}

// BrightDataConfig Bright Data 新闻搜索提供商配置
type BrightDataConfig struct {
	// API Token；为空时不注册该提供商
	APIToken string `yaml:"api_token" env:"API_TOKEN"`
	// SERP 端点 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Unlocker 原始页面抓取端点（可选）
	UnlockerURL string `yaml:"unlocker_url" env:"UNLOCKER_URL"`
	// Unlocker zone 名称
	Zone string `yaml:"zone" env:"ZONE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 调用门配置
	Gate GateConfig `yaml:"gate" env:"GATE"`
}

// GeminiConfig Gemini 综述提供商配置
type GeminiConfig struct {
	// API Key；为空时不注册该提供商
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 生成温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 调用门配置
	Gate GateConfig `yaml:"gate" env:"GATE"`
}

// ProvidersConfig 汇总所有外部提供商配置。
// 工厂只注册已配置凭据的提供商；链路中未注册的提供商在运行时被跳过。
type ProvidersConfig struct {
	Tavily     TavilyConfig     `yaml:"tavily" env:"TAVILY"`
	Diffbot    DiffbotConfig    `yaml:"diffbot" env:"DIFFBOT"`
	LinkedIn   LinkedInConfig   `yaml:"linkedin" env:"LINKEDIN"`
	BrightData BrightDataConfig `yaml:"brightdata" env:"BRIGHTDATA"`
	Gemini     GeminiConfig     `yaml:"gemini" env:"GEMINI"`
}

// RedisConfig Redis 缓存配置（与 cache.Config 兼容）
type RedisConfig struct {
	// 地址；为空时禁用提供商响应缓存
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig 运行归档数据库配置。
// Driver 为空时禁用归档；归档的有无从不影响执行管线本身。
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite；为空时禁用归档
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名；sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig 报告文档库配置。
// URI 为空时退化为内存实现；文档库的有无从不影响执行管线本身。
type MongoConfig struct {
	// 连接 URI；为空时使用内存文档库
	URI string `yaml:"uri" env:"URI"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
	// 操作超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "INTELFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}

	// 验证编排器配置
	if c.Workflow.MaxBudget > 0 && c.Workflow.DefaultBudget > c.Workflow.MaxBudget {
		errs = append(errs, "workflow default_budget exceeds max_budget")
	}
	if c.Workflow.MaxConcurrentFoci < 0 {
		errs = append(errs, "max_concurrent_foci must not be negative")
	}

	// 验证阈值配置
	if c.Guardrails.MinDecisionMakers < 0 || c.Guardrails.MinInvestments < 0 || c.Guardrails.MinGaps < 0 {
		errs = append(errs, "guardrail thresholds must not be negative")
	}

	// 验证提供商配置
	if c.Providers.Gemini.Temperature < 0 || c.Providers.Gemini.Temperature > 2 {
		errs = append(errs, "gemini temperature must be between 0 and 2")
	}

	// 验证数据库配置
	switch c.Database.Driver {
	case "", "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	// 验证遥测配置
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ArchiveEnabled 报告是否配置了运行归档数据库。
func (c *Config) ArchiveEnabled() bool {
	return c.Database.Driver != ""
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
