package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.focusTransitions)
	assert.NotNil(t, collector.providerAttempts)
	assert.NotNil(t, collector.guardrailTrips)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录请求
	collector.RecordHTTPRequest("GET", "/api/v1/runs", 200, 100*time.Millisecond, 1024, 2048)

	// 验证指标
	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	// 再记录一次相同的请求
	collector.RecordHTTPRequest("GET", "/api/v1/runs", 200, 50*time.Millisecond, 512, 1024)

	// 验证计数增加
	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordRunLifecycle(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 接受两个运行，结束一个
	collector.RecordRunAccepted()
	collector.RecordRunAccepted()
	collector.RecordRunFinished("complete", 3*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.runsInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.runsTotal.WithLabelValues("complete")))

	collector.RecordRunFinished("partial", 5*time.Second)
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.runsInFlight))

	count := testutil.CollectAndCount(collector.runDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordFocusMetrics(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordFocusTransition("decision_makers", "pending", "running")
	collector.RecordFocusTransition("decision_makers", "running", "sufficient")
	collector.RecordFocusOutcome("decision_makers", "sufficient", 2*time.Second)

	// 零耗时不进直方图
	collector.RecordFocusOutcome("synthesis", "failed", 0)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.focusTransitions.WithLabelValues("decision_makers", "running", "sufficient")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.focusOutcomes.WithLabelValues("decision_makers", "sufficient")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.focusOutcomes.WithLabelValues("synthesis", "failed")))
}

func TestCollector_RecordProviderMetrics(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordProviderAttempt("linkedin", "decision_makers")
	collector.RecordProviderAttempt("diffbot", "decision_makers")
	collector.RecordEscalations("decision_makers", 1)
	collector.RecordGuardrailTrip("decision_makers")
	collector.RecordEntitiesMerged("decision_maker", 3)

	// 非正数不计入
	collector.RecordEscalations("investments", 0)
	collector.RecordEntitiesMerged("gap", -1)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.providerAttempts.WithLabelValues("linkedin", "decision_makers")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.providerEscalations.WithLabelValues("decision_makers")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.guardrailTrips.WithLabelValues("decision_makers")))
	assert.Equal(t, float64(3),
		testutil.ToFloat64(collector.entitiesMerged.WithLabelValues("decision_maker")))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(collector.providerEscalations.WithLabelValues("investments")))
}

func TestCollector_SetCacheStats(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 快照覆盖而非累加
	collector.SetCacheStats("redis", 10, 4, 7)
	collector.SetCacheStats("redis", 12, 5, 6)

	assert.Equal(t, float64(12), testutil.ToFloat64(collector.cacheHits.WithLabelValues("redis")))
	assert.Equal(t, float64(5), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("redis")))
	assert.Equal(t, float64(6), testutil.ToFloat64(collector.cacheKeys.WithLabelValues("redis")))
}

func TestCollector_RecordDatabaseQuery(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 记录数据库查询
	collector.RecordDBQuery("postgres", "INSERT", 20*time.Millisecond)

	// 验证指标
	count := testutil.CollectAndCount(collector.dbQueryDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 更新连接池状态
	collector.RecordDBConnections("postgres", 10, 5)

	// 验证指标
	openCount := testutil.CollectAndCount(collector.dbConnectionsOpen)
	assert.Greater(t, openCount, 0)

	idleCount := testutil.CollectAndCount(collector.dbConnectionsIdle)
	assert.Greater(t, idleCount, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			collector.RecordHTTPRequest("GET", "/api/v1/runs", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordRunAccepted()
			collector.RecordRunFinished("complete", time.Second)
			collector.RecordProviderAttempt("tavily", "company_resolution")
			done <- true
		}(i)
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	// 验证指标被正确记录
	httpCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, httpCount, 0)

	assert.Equal(t, float64(10),
		testutil.ToFloat64(collector.runsTotal.WithLabelValues("complete")))
	assert.Equal(t, float64(10),
		testutil.ToFloat64(collector.providerAttempts.WithLabelValues("tavily", "company_resolution")))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	logger := zap.NewNop()

	// 创建自定义 registry
	registry := prometheus.NewRegistry()

	// 创建 collector（会自动注册到默认 registry）
	collector := NewCollector(nextTestNamespace(), logger)

	// 手动注册到自定义 registry
	registry.MustRegister(collector.httpRequestsTotal)
	registry.MustRegister(collector.httpRequestDuration)

	// 记录一些数据
	collector.RecordHTTPRequest("GET", "/api/v1/runs", 200, 100*time.Millisecond, 0, 0)

	// 验证可以从自定义 registry 收集指标
	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}
