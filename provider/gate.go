package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Cache 是调用门的响应缓存抽象；internal/cache 的 Redis 实现满足它。
// 缓存故障只会降级为直连，绝不阻断调用。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GateConfig 调用门配置。
type GateConfig struct {
	MaxConcurrent int64         `json:"max_concurrent" yaml:"max_concurrent"`
	RPS           float64       `json:"rps" yaml:"rps"`
	Burst         int           `json:"burst" yaml:"burst"`
	CacheTTL      time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// DefaultGateConfig 返回保守的默认值，适合免费档的第三方 API 配额。
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxConcurrent: 4,
		RPS:           5,
		Burst:         10,
		CacheTTL:      30 * time.Minute,
	}
}

// Gate serializes outbound calls for one provider: a semaphore caps
// in-flight requests, a token bucket paces them, and an optional byte
// cache short-circuits repeats of the same request within the TTL.
type Gate struct {
	name    string
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	cache   Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewGate creates a Gate for the named provider. cache may be nil.
func NewGate(name string, cfg GateConfig, cache Cache, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultGateConfig().MaxConcurrent
	}
	if cfg.RPS <= 0 {
		cfg.RPS = DefaultGateConfig().RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultGateConfig().Burst
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultGateConfig().CacheTTL
	}
	return &Gate{
		name:    name,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cache:   cache,
		ttl:     cfg.CacheTTL,
		logger:  logger.With(zap.String("provider", name)),
	}
}

// Do executes fn under the gate. key identifies the request for caching;
// an empty key disables caching for this call. fn receives the caller's
// context and returns the raw response bytes to cache.
func (g *Gate) Do(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	cacheKey := ""
	if g.cache != nil && key != "" {
		cacheKey = g.cacheKey(key)
		data, ok, err := g.cache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			g.logger.Debug("provider cache read failed", zap.Error(err))
		case ok:
			g.logger.Debug("provider cache hit", zap.String("key", cacheKey))
			return data, nil
		}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := g.cache.Set(ctx, cacheKey, data, g.ttl); err != nil {
			g.logger.Debug("provider cache write failed", zap.Error(err))
		}
	}
	return data, nil
}

func (g *Gate) cacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "provider:" + g.name + ":" + hex.EncodeToString(sum[:16])
}
