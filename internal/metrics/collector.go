// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 工作流指标
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
	focusTransitions *prometheus.CounterVec
	focusOutcomes    *prometheus.CounterVec
	focusDuration    *prometheus.HistogramVec

	// 供应商指标
	providerAttempts    *prometheus.CounterVec
	providerEscalations *prometheus.CounterVec
	guardrailTrips      *prometheus.CounterVec
	entitiesMerged      *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.GaugeVec
	cacheMisses *prometheus.GaugeVec
	cacheKeys   *prometheus.GaugeVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 工作流指标
	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished workflow runs",
		},
		[]string{"status"},
	)

	c.runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	c.runsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Number of workflow runs currently executing",
		},
	)

	c.focusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_transitions_total",
			Help:      "Total number of focus state transitions",
		},
		[]string{"focus", "from_state", "to_state"},
	)

	c.focusOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "focus_outcomes_total",
			Help:      "Total number of focus areas by terminal state",
		},
		[]string{"focus", "state"},
	)

	c.focusDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "focus_duration_seconds",
			Help:      "Focus area execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"focus", "state"},
	)

	// 供应商指标
	c.providerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Total number of provider attempts across fallback chains",
		},
		[]string{"provider", "focus"},
	)

	c.providerEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_escalations_total",
			Help:      "Total number of escalations to a fallback provider",
		},
		[]string{"focus"},
	)

	c.guardrailTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_insufficient_total",
			Help:      "Total number of focus results held back as insufficient",
		},
		[]string{"focus"},
	)

	c.entitiesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_merged_total",
			Help:      "Total number of entities in terminal focus results",
		},
		[]string{"kind"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_hits",
			Help:      "Cache hits as reported by the cache manager",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_misses",
			Help:      "Cache misses as reported by the cache manager",
		},
		[]string{"cache_type"},
	)

	c.cacheKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_keys",
			Help:      "Number of keys held by the cache",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧭 工作流指标记录
// =============================================================================

// RecordRunAccepted 记录新接受的工作流运行
func (c *Collector) RecordRunAccepted() {
	c.runsInFlight.Inc()
}

// RecordRunFinished 记录结束的工作流运行
func (c *Collector) RecordRunFinished(status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.runsInFlight.Dec()
}

// RecordFocusTransition 记录焦点状态迁移
func (c *Collector) RecordFocusTransition(focus, fromState, toState string) {
	c.focusTransitions.WithLabelValues(focus, fromState, toState).Inc()
}

// RecordFocusOutcome 记录焦点的终态与执行耗时
func (c *Collector) RecordFocusOutcome(focus, state string, duration time.Duration) {
	c.focusOutcomes.WithLabelValues(focus, state).Inc()
	if duration > 0 {
		c.focusDuration.WithLabelValues(focus, state).Observe(duration.Seconds())
	}
}

// =============================================================================
// 🔌 供应商指标记录
// =============================================================================

// RecordProviderAttempt 记录一次供应商调用尝试
func (c *Collector) RecordProviderAttempt(provider, focus string) {
	c.providerAttempts.WithLabelValues(provider, focus).Inc()
}

// RecordEscalations 记录降级链中发生的升级次数
func (c *Collector) RecordEscalations(focus string, n int) {
	if n <= 0 {
		return
	}
	c.providerEscalations.WithLabelValues(focus).Add(float64(n))
}

// RecordGuardrailTrip 记录一次被判定为证据不足的结果
func (c *Collector) RecordGuardrailTrip(focus string) {
	c.guardrailTrips.WithLabelValues(focus).Inc()
}

// RecordEntitiesMerged 记录终态结果中的实体数量
func (c *Collector) RecordEntitiesMerged(kind string, n int) {
	if n <= 0 {
		return
	}
	c.entitiesMerged.WithLabelValues(kind).Add(float64(n))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// SetCacheStats 更新缓存统计快照
func (c *Collector) SetCacheStats(cacheType string, hits, misses uint64, keys int64) {
	c.cacheHits.WithLabelValues(cacheType).Set(float64(hits))
	c.cacheMisses.WithLabelValues(cacheType).Set(float64(misses))
	c.cacheKeys.WithLabelValues(cacheType).Set(float64(keys))
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
