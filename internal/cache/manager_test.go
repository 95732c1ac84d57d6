package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	// 创建 miniredis 实例
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// 创建 Manager
	logger := zap.NewNop()
	config := Config{
		Addr:       mr.Addr(),
		Password:   "",
		DB:         0,
		KeyPrefix:  "intelflow:",
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(config, logger)
	require.NoError(t, err)

	return mr, manager
}

func TestNewManager(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.redis)
	assert.NotNil(t, manager.logger)
}

func TestNewManager_ConnectFailure(t *testing.T) {
	config := DefaultConfig()
	config.Addr = "127.0.0.1:1"

	manager, err := NewManager(config, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, manager)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	// 设置值
	err := manager.Set(ctx, "search:acme", []byte(`{"results":[]}`), 1*time.Minute)
	require.NoError(t, err)

	// 获取值
	value, found, err := manager.Get(ctx, "search:acme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"results":[]}`), value)

	// 键带统一前缀写入
	raw, err := mr.Get("intelflow:search:acme")
	require.NoError(t, err)
	assert.Equal(t, `{"results":[]}`, raw)
}

func TestManager_GetMiss(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	// 未命中不是错误
	value, found, err := manager.Get(ctx, "non-existent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestManager_SetDefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	// ttl 为零时落到默认过期时间
	err := manager.Set(ctx, "ttl-key", []byte("v"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1*time.Minute, mr.TTL("intelflow:ttl-key"))

	// 过期后未命中
	mr.FastForward(2 * time.Minute)
	_, found, err := manager.Get(ctx, "ttl-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_JSON(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	type payload struct {
		Organization string `json:"organization"`
		Results      int    `json:"results"`
	}

	err := manager.SetJSON(ctx, "resp:acme", payload{Organization: "Acme Corp", Results: 3}, time.Minute)
	require.NoError(t, err)

	var got payload
	found, err := manager.GetJSON(ctx, "resp:acme", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Organization: "Acme Corp", Results: 3}, got)

	// 未命中同样返回 (false, nil)
	found, err = manager.GetJSON(ctx, "resp:other", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_Delete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, manager.Set(ctx, "k2", []byte("v2"), time.Minute))

	err := manager.Delete(ctx, "k1", "k2")
	require.NoError(t, err)

	count, err := manager.Exists(ctx, "k1", "k2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// 空键列表直接返回
	assert.NoError(t, manager.Delete(ctx))
}

func TestManager_Exists(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "present", []byte("v"), time.Minute))

	count, err := manager.Exists(ctx, "present", "absent")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestManager_Expire(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "exp-key", []byte("v"), time.Hour))

	err := manager.Expire(ctx, "exp-key", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, found, err := manager.Get(ctx, "exp-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_Ping(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	assert.NoError(t, manager.Ping(context.Background()))
}

func TestManager_Stats(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "hit-key", []byte("v"), time.Minute))

	// 一次命中，两次未命中
	_, _, _ = manager.Get(ctx, "hit-key")
	_, _, _ = manager.Get(ctx, "miss-1")
	_, _, _ = manager.Get(ctx, "miss-2")

	stats, err := manager.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Keys)
}

func TestManager_Closed(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()

	require.NoError(t, manager.Close())

	// 重复关闭无副作用
	assert.NoError(t, manager.Close())

	ctx := context.Background()

	_, _, err := manager.Get(ctx, "k")
	assert.Error(t, err)

	assert.Error(t, manager.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Error(t, manager.Delete(ctx, "k"))
	assert.Error(t, manager.Ping(ctx))

	_, err = manager.GetStats(ctx)
	assert.Error(t, err)
}
