// 配置热重载管理器实现。
//
// 监听配置文件变更并应用到运行中的进程：重新加载、校验、记录变更、
// 通知订阅方。大多数字段改动需要重启才能生效，管理器负责把这一事实
// 讲清楚，而不是假装所有配置都能热切换。
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 热重载类型定义 ---

// HotReloadManager 管理配置的运行时重载
type HotReloadManager struct {
	mu sync.RWMutex

	// 当前生效配置与上一份配置
	config         *Config
	previousConfig *Config

	// 配置文件路径
	configPath string

	// 文件监听器
	watcher *FileWatcher

	// 回调
	changeCallbacks []func(event ChangeEvent)
	reloadCallbacks []func(oldConfig, newConfig *Config)

	// 变更日志（环形，最多保留 maxChangeLog 条）
	changeLog []ChangeEvent

	// 记录器
	logger *zap.Logger

	// 状态
	running bool
	cancel  context.CancelFunc
}

// maxChangeLog 变更日志保留上限
const maxChangeLog = 1000

// ChangeEvent 一次配置字段变更
type ChangeEvent struct {
	// 变更时间
	Timestamp time.Time `json:"timestamp"`

	// 变更来源: file | api | rollback
	Source string `json:"source"`

	// 字段路径，如 "Log.Level"
	Path string `json:"path"`

	// 旧值与新值；敏感字段已脱敏
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`

	// 是否需要重启才能生效
	RequiresRestart bool `json:"requires_restart"`
}

// HotReloadableField 描述一个可通过管理器修改的字段
type HotReloadableField struct {
	// 字段路径，如 "Log.Level"
	Path string

	// 字段说明
	Description string

	// 是否需要重启才能生效
	RequiresRestart bool

	// 是否为敏感字段（日志与脱敏输出中隐藏取值）
	Sensitive bool

	// 可选的字段级校验
	Validator func(value interface{}) error
}

// hotReloadableFields 注册表。
// 日志级别是唯一真正运行中生效的字段（经 zap.AtomicLevel 下发）；
// 其余字段在构造子系统时被拷贝，改动记录在案并提示重启。
var hotReloadableFields = map[string]HotReloadableField{
	"Log.Level": {
		Path:        "Log.Level",
		Description: "日志级别",
		Validator:   validateLogLevel,
	},
	"Log.Format": {
		Path:            "Log.Format",
		Description:     "日志输出格式",
		RequiresRestart: true,
		Validator:       validateLogFormat,
	},
	"Workflow.DefaultBudget": {
		Path:            "Workflow.DefaultBudget",
		Description:     "运行默认墙钟预算",
		RequiresRestart: true,
		Validator:       validatePositiveDuration,
	},
	"Workflow.MaxBudget": {
		Path:            "Workflow.MaxBudget",
		Description:     "运行墙钟预算上限",
		RequiresRestart: true,
		Validator:       validatePositiveDuration,
	},
	"Workflow.MaxConcurrentFoci": {
		Path:            "Workflow.MaxConcurrentFoci",
		Description:     "单次运行焦点并发上限",
		RequiresRestart: true,
	},
	"Guardrails.MinDecisionMakers": {
		Path:            "Guardrails.MinDecisionMakers",
		Description:     "充分性判定所需决策人下限",
		RequiresRestart: true,
		Validator:       validateNonNegativeInt,
	},
	"Guardrails.MinInvestments": {
		Path:            "Guardrails.MinInvestments",
		Description:     "充分性判定所需投资事件下限",
		RequiresRestart: true,
		Validator:       validateNonNegativeInt,
	},
	"Guardrails.MinGaps": {
		Path:            "Guardrails.MinGaps",
		Description:     "充分性判定所需情报缺口下限",
		RequiresRestart: true,
		Validator:       validateNonNegativeInt,
	},
	"Guardrails.GenericMinWords": {
		Path:            "Guardrails.GenericMinWords",
		Description:     "泛化文本判定的最小词数",
		RequiresRestart: true,
		Validator:       validateNonNegativeInt,
	},
	"Server.HTTPPort": {
		Path:            "Server.HTTPPort",
		Description:     "HTTP 服务端口",
		RequiresRestart: true,
		Validator:       validatePort,
	},
	"Server.RateLimitRPS": {
		Path:            "Server.RateLimitRPS",
		Description:     "全局限流速率",
		RequiresRestart: true,
		Validator:       validateNonNegativeInt,
	},
	"Database.Driver": {
		Path:            "Database.Driver",
		Description:     "归档数据库驱动",
		RequiresRestart: true,
	},
	"Database.Password": {
		Path:            "Database.Password",
		Description:     "归档数据库口令",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Redis.Addr": {
		Path:            "Redis.Addr",
		Description:     "Redis 缓存地址",
		RequiresRestart: true,
	},
	"Redis.Password": {
		Path:            "Redis.Password",
		Description:     "Redis 口令",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.Tavily.APIKey": {
		Path:            "Providers.Tavily.APIKey",
		Description:     "Tavily 搜索密钥",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.Diffbot.Token": {
		Path:            "Providers.Diffbot.Token",
		Description:     "Diffbot 抽取令牌",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.LinkedIn.APIKey": {
		Path:            "Providers.LinkedIn.APIKey",
		Description:     "LinkedIn 目录密钥",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.BrightData.APIToken": {
		Path:            "Providers.BrightData.APIToken",
		Description:     "Bright Data 访问令牌",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.Gemini.APIKey": {
		Path:            "Providers.Gemini.APIKey",
		Description:     "Gemini 合成密钥",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"Providers.Gemini.Model": {
		Path:            "Providers.Gemini.Model",
		Description:     "Gemini 合成模型",
		RequiresRestart: true,
	},
	"Telemetry.Enabled": {
		Path:            "Telemetry.Enabled",
		Description:     "是否启用链路追踪",
		RequiresRestart: true,
	},
	"Telemetry.SampleRate": {
		Path:            "Telemetry.SampleRate",
		Description:     "链路追踪采样率",
		RequiresRestart: true,
	},
}

// --- 字段校验器 ---

func validateLogLevel(value interface{}) error {
	level, ok := value.(string)
	if !ok {
		return fmt.Errorf("log level must be a string")
	}
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s", level)
}

func validateLogFormat(value interface{}) error {
	format, ok := value.(string)
	if !ok {
		return fmt.Errorf("log format must be a string")
	}
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid log format: %s", format)
	}
	return nil
}

func validatePositiveDuration(value interface{}) error {
	switch v := value.(type) {
	case time.Duration:
		if v <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		return nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		return nil
	default:
		return fmt.Errorf("duration must be a time.Duration or duration string")
	}
}

func validateNonNegativeInt(value interface{}) error {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return fmt.Errorf("value must be non-negative")
		}
	case int64:
		if v < 0 {
			return fmt.Errorf("value must be non-negative")
		}
	case float64:
		if v < 0 {
			return fmt.Errorf("value must be non-negative")
		}
	default:
		return fmt.Errorf("value must be an integer")
	}
	return nil
}

func validatePort(value interface{}) error {
	var port int
	switch v := value.(type) {
	case int:
		port = v
	case float64:
		port = int(v)
	default:
		return fmt.Errorf("port must be an integer")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// --- 热重载管理器选项 ---

// HotReloadOption configures the HotReloadManager
type HotReloadOption func(*HotReloadManager)

// WithHotReloadLogger sets the logger
func WithHotReloadLogger(logger *zap.Logger) HotReloadOption {
	return func(m *HotReloadManager) {
		m.logger = logger
	}
}

// WithConfigPath sets the config file path watched for changes
func WithConfigPath(path string) HotReloadOption {
	return func(m *HotReloadManager) {
		m.configPath = path
	}
}

// --- 热重载管理器实现 ---

// NewHotReloadManager creates a manager around the given initial config
func NewHotReloadManager(cfg *Config, opts ...HotReloadOption) *HotReloadManager {
	m := &HotReloadManager{
		config:          cfg,
		changeCallbacks: make([]func(ChangeEvent), 0),
		reloadCallbacks: make([]func(*Config, *Config), 0),
		changeLog:       make([]ChangeEvent, 0),
		logger:          zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins watching the config file for changes
func (m *HotReloadManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("hot reload manager already running")
	}
	if m.configPath == "" {
		m.mu.Unlock()
		return fmt.Errorf("config path not set, use WithConfigPath")
	}

	watchCtx, cancel := context.WithCancel(ctx)

	watcher, err := NewFileWatcher(m.configPath,
		WithDebounceDelay(500*time.Millisecond),
		WithWatcherLogger(m.logger))
	if err != nil {
		cancel()
		m.mu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	watcher.OnChange(m.handleFileChange)
	m.watcher = watcher
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if err := watcher.Start(watchCtx); err != nil {
		m.mu.Lock()
		m.running = false
		m.watcher = nil
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	m.logger.Info("config hot reload started", zap.String("path", m.configPath))
	return nil
}

// Stop stops watching for changes
func (m *HotReloadManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}
	if m.watcher != nil {
		_ = m.watcher.Stop()
		m.watcher = nil
	}
	m.running = false

	m.logger.Info("config hot reload stopped")
	return nil
}

// handleFileChange 文件变更回调：删除事件忽略，其余触发重载
func (m *HotReloadManager) handleFileChange(event FileEvent) {
	if event.Op != FileOpWrite && event.Op != FileOpCreate {
		return
	}

	if err := m.ReloadFromFile(); err != nil {
		m.logger.Error("config reload failed, keeping current config",
			zap.String("path", event.Path),
			zap.Error(err))
	}
}

// ReloadFromFile 重新读取配置文件并应用。
// 加载或校验失败时保留当前配置。
func (m *HotReloadManager) ReloadFromFile() error {
	m.mu.RLock()
	path := m.configPath
	m.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("config path not set")
	}

	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return m.ApplyConfig(cfg, "file")
}

// ApplyConfig 校验并切换到新配置，记录字段级变更。
// 回调在锁外执行。
func (m *HotReloadManager) ApplyConfig(newConfig *Config, source string) error {
	if newConfig == nil {
		return fmt.Errorf("config is nil")
	}
	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.mu.Lock()
	oldConfig := m.config
	changes := detectChanges(oldConfig, newConfig, source)

	m.previousConfig = oldConfig
	m.config = newConfig

	m.changeLog = append(m.changeLog, changes...)
	if len(m.changeLog) > maxChangeLog {
		m.changeLog = m.changeLog[len(m.changeLog)-maxChangeLog:]
	}

	changeCallbacks := make([]func(ChangeEvent), len(m.changeCallbacks))
	copy(changeCallbacks, m.changeCallbacks)
	reloadCallbacks := make([]func(*Config, *Config), len(m.reloadCallbacks))
	copy(reloadCallbacks, m.reloadCallbacks)
	m.mu.Unlock()

	for _, change := range changes {
		if change.RequiresRestart {
			m.logger.Warn("config change requires restart to take effect",
				zap.String("path", change.Path),
				zap.String("source", change.Source))
		} else {
			m.logger.Info("config change applied",
				zap.String("path", change.Path),
				zap.String("source", change.Source))
		}
		for _, cb := range changeCallbacks {
			m.invokeSafe(func() { cb(change) })
		}
	}

	if len(changes) > 0 {
		for _, cb := range reloadCallbacks {
			m.invokeSafe(func() { cb(oldConfig, newConfig) })
		}
	}

	return nil
}

// invokeSafe 执行回调并吸收 panic，避免订阅方拖垮重载流程
func (m *HotReloadManager) invokeSafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("config callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// detectChanges 逐字段比较新旧配置
func detectChanges(oldCfg, newCfg *Config, source string) []ChangeEvent {
	if oldCfg == nil {
		return nil
	}

	changes := make([]ChangeEvent, 0)
	compareStructs(reflect.ValueOf(*oldCfg), reflect.ValueOf(*newCfg), "", func(path string, oldVal, newVal interface{}) {
		event := ChangeEvent{
			Timestamp: time.Now(),
			Source:    source,
			Path:      path,
			OldValue:  oldVal,
			NewValue:  newVal,
		}
		if field, ok := hotReloadableFields[path]; ok {
			event.RequiresRestart = field.RequiresRestart
			if field.Sensitive {
				event.OldValue = "[REDACTED]"
				event.NewValue = "[REDACTED]"
			}
		} else {
			// 未注册字段一律按需重启处理
			event.RequiresRestart = true
		}
		changes = append(changes, event)
	})

	return changes
}

// compareStructs 递归比较结构体叶子字段，差异通过 report 上报
func compareStructs(oldVal, newVal reflect.Value, prefix string, report func(path string, oldV, newV interface{})) {
	t := oldVal.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		of := oldVal.Field(i)
		nf := newVal.Field(i)

		if of.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			compareStructs(of, nf, path, report)
			continue
		}

		if !reflect.DeepEqual(of.Interface(), nf.Interface()) {
			report(path, of.Interface(), nf.Interface())
		}
	}
}

// UpdateField 按字段路径更新当前配置中的单个值。
// 仅允许更新注册表中的字段；更新前执行字段校验与整体校验。
func (m *HotReloadManager) UpdateField(path string, value interface{}) error {
	field, ok := hotReloadableFields[path]
	if !ok {
		return fmt.Errorf("field %s is not reloadable", path)
	}

	if field.Validator != nil {
		if err := field.Validator(value); err != nil {
			return fmt.Errorf("validation failed for %s: %w", path, err)
		}
	}

	m.mu.RLock()
	current := m.config
	m.mu.RUnlock()

	updated, err := copyConfig(current)
	if err != nil {
		return fmt.Errorf("failed to copy config: %w", err)
	}

	if err := setNestedField(updated, path, value); err != nil {
		return fmt.Errorf("failed to set field %s: %w", path, err)
	}

	return m.ApplyConfig(updated, "api")
}

// GetFieldValue 按字段路径读取当前配置中的值；敏感字段返回脱敏占位
func (m *HotReloadManager) GetFieldValue(path string) (interface{}, error) {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	value, err := getNestedField(cfg, path)
	if err != nil {
		return nil, err
	}

	if field, ok := hotReloadableFields[path]; ok && field.Sensitive {
		return "[REDACTED]", nil
	}
	return value, nil
}

// getNestedField 按 "A.B.C" 路径读取字段值
func getNestedField(cfg *Config, path string) (interface{}, error) {
	v := reflect.ValueOf(cfg).Elem()
	for _, segment := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("path %s does not resolve to a field", path)
		}
		v = v.FieldByName(segment)
		if !v.IsValid() {
			return nil, fmt.Errorf("field %s not found in path %s", segment, path)
		}
	}
	return v.Interface(), nil
}

// setNestedField 按 "A.B.C" 路径写入字段值，带类型转换
func setNestedField(cfg *Config, path string, value interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	for _, segment := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return fmt.Errorf("path %s does not resolve to a field", path)
		}
		v = v.FieldByName(segment)
		if !v.IsValid() {
			return fmt.Errorf("field %s not found in path %s", segment, path)
		}
	}

	if !v.CanSet() {
		return fmt.Errorf("field %s is not settable", path)
	}

	val := reflect.ValueOf(value)

	// 字符串形式的时长转换为 time.Duration
	if v.Type() == reflect.TypeOf(time.Duration(0)) && val.Kind() == reflect.String {
		d, err := time.ParseDuration(val.String())
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val.String(), err)
		}
		v.Set(reflect.ValueOf(d))
		return nil
	}

	if val.Type().ConvertibleTo(v.Type()) {
		v.Set(val.Convert(v.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to field %s (%s)", value, path, v.Type())
}

// --- 回调注册 ---

// OnChange registers a callback invoked for each field-level change
func (m *HotReloadManager) OnChange(callback func(ChangeEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeCallbacks = append(m.changeCallbacks, callback)
}

// OnReload registers a callback invoked after a new config is applied
func (m *HotReloadManager) OnReload(callback func(oldConfig, newConfig *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadCallbacks = append(m.reloadCallbacks, callback)
}

// --- 查询接口 ---

// GetConfig returns a deep copy of the current config
func (m *HotReloadManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, err := copyConfig(m.config)
	if err != nil {
		m.logger.Error("failed to copy config", zap.Error(err))
		return m.config
	}
	return cfg
}

// Rollback 回退到上一份成功应用的配置
func (m *HotReloadManager) Rollback() error {
	m.mu.RLock()
	prev := m.previousConfig
	m.mu.RUnlock()

	if prev == nil {
		return fmt.Errorf("no previous config to roll back to")
	}

	m.logger.Warn("rolling back to previous config")
	return m.ApplyConfig(prev, "rollback")
}

// GetChangeLog returns the most recent change events, newest last
func (m *HotReloadManager) GetChangeLog(limit int) []ChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.changeLog) {
		limit = len(m.changeLog)
	}

	result := make([]ChangeEvent, limit)
	copy(result, m.changeLog[len(m.changeLog)-limit:])
	return result
}

// GetHotReloadableFields returns a copy of the field registry
func (m *HotReloadManager) GetHotReloadableFields() map[string]HotReloadableField {
	result := make(map[string]HotReloadableField, len(hotReloadableFields))
	for k, v := range hotReloadableFields {
		result[k] = v
	}
	return result
}

// IsHotReloadable reports whether the field can change without a restart
func (m *HotReloadManager) IsHotReloadable(path string) bool {
	field, ok := hotReloadableFields[path]
	return ok && !field.RequiresRestart
}

// SanitizedConfig 返回脱敏后的配置快照，用于日志与诊断输出
func (m *HotReloadManager) SanitizedConfig() (map[string]interface{}, error) {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	redactSensitiveFields(raw)
	return raw, nil
}

// sensitiveKeySubstrings 键名包含这些子串的字段在脱敏输出中隐藏
var sensitiveKeySubstrings = []string{"password", "api_key", "apikey", "secret", "token", "credential"}

// redactSensitiveFields 就地替换敏感字段取值
func redactSensitiveFields(raw map[string]interface{}) {
	for key, value := range raw {
		lower := strings.ToLower(key)
		sensitive := false
		for _, sub := range sensitiveKeySubstrings {
			if strings.Contains(lower, sub) {
				sensitive = true
				break
			}
		}
		if sensitive {
			if s, ok := value.(string); ok && s != "" {
				raw[key] = "[REDACTED]"
			}
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			redactSensitiveFields(nested)
		}
	}
}

// copyConfig 通过 JSON 往返做深拷贝
func copyConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := &Config{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
