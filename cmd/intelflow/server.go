package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/intelflow"
	"github.com/BaSui01/intelflow/api/handlers"
	"github.com/BaSui01/intelflow/config"
	"github.com/BaSui01/intelflow/internal/archive"
	"github.com/BaSui01/intelflow/internal/cache"
	"github.com/BaSui01/intelflow/internal/database"
	"github.com/BaSui01/intelflow/internal/docstore"
	"github.com/BaSui01/intelflow/internal/metrics"
	"github.com/BaSui01/intelflow/internal/server"
	"github.com/BaSui01/intelflow/internal/telemetry"
	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 IntelFlow 的主服务器，组装执行管线与两个 HTTP 端口
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	logLevel   zap.AtomicLevel

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 存储与缓存；除编排器外均可缺席
	cacheManager *cache.Manager
	dbPool       *database.PoolManager
	archiveStore *archive.Store
	reports      docstore.Store

	// 执行管线
	orchestrator *workflow.Orchestrator

	// Handlers
	healthHandler   *handlers.HealthHandler
	questionHandler *handlers.QuestionHandler
	runHandler      *handlers.RunHandler
	eventsHandler   *handlers.EventsHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 热更新管理器
	hotReloadManager *config.HotReloadManager

	// 遥测（由 main 初始化，关闭时在此统一冲刷）
	otelProviders *telemetry.Providers

	// 生命周期管理
	rateLimiterCancel  context.CancelFunc
	eventPumpCancel    func()
	statsSamplerCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, logLevel zap.AtomicLevel, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		configPath:    configPath,
		logger:        logger,
		logLevel:      logLevel,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("intelflow", s.logger)

	// 2. 初始化存储（缓存、归档、报告库），全部允许缺席
	s.initStores()
	s.startStatsSampler()

	// 3. 组装执行管线
	if err := s.initOrchestrator(); err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	// 4. 初始化 Handlers
	s.initHandlers()

	// 5. 初始化热更新管理器
	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	// 6. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 7. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("archive_enabled", s.archiveStore != nil),
		zap.Bool("cache_enabled", s.cacheManager != nil),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initStores 初始化缓存、运行归档和报告文档库。
// 三者任一不可用都只降级记录，研究管线本身照常服务。
func (s *Server) initStores() {
	// Redis 提供商响应缓存
	if s.cfg.Redis.Addr != "" {
		manager, err := cache.NewManager(cacheConfig(s.cfg.Redis), s.logger)
		if err != nil {
			s.logger.Warn("Redis unavailable, provider responses will not be cached", zap.Error(err))
		} else {
			s.cacheManager = manager
		}
	} else {
		s.logger.Info("Redis not configured, provider response cache disabled")
	}

	// 运行归档数据库
	if s.cfg.ArchiveEnabled() {
		pool, err := database.Open(databaseConfig(s.cfg.Database), s.logger)
		if err != nil {
			s.logger.Warn("Database unavailable, run archive disabled", zap.Error(err))
		} else {
			s.dbPool = pool
			driver := s.cfg.Database.Driver
			if err := pool.InstrumentQueries(func(operation string, duration time.Duration) {
				s.metricsCollector.RecordDBQuery(driver, operation, duration)
			}); err != nil {
				s.logger.Warn("Failed to instrument database queries", zap.Error(err))
			}
			s.archiveStore = archive.NewStore(pool, s.logger)
			if err := s.archiveStore.AutoMigrate(); err != nil {
				s.logger.Error("Archive auto-migrate failed", zap.Error(err))
			}
		}
	} else {
		s.logger.Info("Database not configured, run archive disabled")
	}

	// 报告文档库：Mongo 未配置时退化为内存实现
	if s.cfg.Mongo.URI != "" {
		store, err := docstore.NewMongoStore(docstoreConfig(s.cfg.Mongo), s.logger)
		if err != nil {
			s.logger.Warn("MongoDB unavailable, falling back to in-memory report store", zap.Error(err))
			s.reports = docstore.NewMemoryStore()
		} else {
			s.reports = store
		}
	} else {
		s.logger.Info("MongoDB not configured, using in-memory report store")
		s.reports = docstore.NewMemoryStore()
	}
}

// initOrchestrator 通过根包装配执行管线
func (s *Server) initOrchestrator() error {
	opts := []intelflow.Option{
		intelflow.WithConfig(s.cfg),
		intelflow.WithLogger(s.logger),
	}
	// cacheManager 为 nil 时不传选项，避免接口装箱出非 nil 接口
	if s.cacheManager != nil {
		opts = append(opts, intelflow.WithCache(s.cacheManager))
	}
	if archiver := s.buildArchiver(); archiver != nil {
		opts = append(opts, intelflow.WithArchiver(archiver))
	}

	orchestrator, err := intelflow.New(opts...)
	if err != nil {
		return err
	}
	s.orchestrator = orchestrator
	s.startEventMetricsPump()
	return nil
}

// buildArchiver 把运行归档与报告库并联成一个编排器挂钩
func (s *Server) buildArchiver() workflow.Archiver {
	var targets []workflow.Archiver
	if s.archiveStore != nil {
		targets = append(targets, s.archiveStore)
	}
	if s.reports != nil {
		targets = append(targets, docstore.NewRunArchiver(s.reports, s.logger))
	}
	switch len(targets) {
	case 0:
		return nil
	case 1:
		return targets[0]
	default:
		return &teeArchiver{targets: targets}
	}
}

// teeArchiver 依次写入全部持久化目标；单个目标失败不阻断其余目标
type teeArchiver struct {
	targets []workflow.Archiver
}

func (t *teeArchiver) SaveRun(ctx context.Context, run *workflow.WorkflowRun) error {
	var errs []error
	for _, target := range t.targets {
		if err := target.SaveRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startEventMetricsPump 订阅运行事件流并转成 Prometheus 指标。
// 缓冲满时广播器丢事件，指标短少几次计数不值得拖慢调度。
func (s *Server) startEventMetricsPump() {
	events, cancel := s.orchestrator.Events().Subscribe(256)
	s.eventPumpCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range events {
			switch ev.Type {
			case workflow.EventRunAccepted:
				s.metricsCollector.RecordRunAccepted()
			case workflow.EventFocusTransition:
				s.metricsCollector.RecordFocusTransition(string(ev.Focus), string(ev.From), string(ev.To))
				if ev.To.Terminal() {
					s.recordFocusOutcome(ev)
				}
			case workflow.EventRunFinished:
				var duration time.Duration
				if run, ok := s.orchestrator.Runs().Get(ev.RunID); ok {
					duration = run.FinishedAt().Sub(run.CreatedAt())
				}
				s.metricsCollector.RecordRunFinished(string(ev.Status), duration)
			}
		}
	}()
}

// recordFocusOutcome 在焦点到达终态时从运行结果补充提供商与实体指标
func (s *Server) recordFocusOutcome(ev workflow.Event) {
	focus := string(ev.Focus)
	if ev.To == types.StateInsufficient {
		s.metricsCollector.RecordGuardrailTrip(focus)
	}

	run, ok := s.orchestrator.Runs().Get(ev.RunID)
	if !ok {
		s.metricsCollector.RecordFocusOutcome(focus, string(ev.To), 0)
		return
	}
	result := run.Result(ev.Focus)
	if result == nil {
		s.metricsCollector.RecordFocusOutcome(focus, string(ev.To), 0)
		return
	}

	var duration time.Duration
	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		duration = result.FinishedAt.Sub(result.StartedAt)
	}
	s.metricsCollector.RecordFocusOutcome(focus, string(ev.To), duration)

	for _, provider := range result.ProvidersTried {
		s.metricsCollector.RecordProviderAttempt(provider, focus)
	}
	s.metricsCollector.RecordEscalations(focus, len(result.ProvidersTried)-1)
	s.metricsCollector.RecordEntitiesMerged(entityKind(ev.Focus), result.EntityCount())
}

// entityKind 焦点域对应的实体指标标签
func entityKind(focus types.FocusArea) string {
	switch focus {
	case types.FocusDecisionMakers:
		return "decision_maker"
	case types.FocusInvestments:
		return "investment"
	case types.FocusGaps:
		return "gap"
	case types.FocusCompanyResolution:
		return "organization"
	default:
		return string(focus)
	}
}

// startStatsSampler 周期性采集连接池与缓存统计；两者都缺席时不起采样器
func (s *Server) startStatsSampler() {
	if s.dbPool == nil && s.cacheManager == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.statsSamplerCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleStoreStats(ctx)
			}
		}
	}()
}

func (s *Server) sampleStoreStats(ctx context.Context) {
	if s.dbPool != nil {
		stats := s.dbPool.Stats()
		s.metricsCollector.RecordDBConnections(s.cfg.Database.Driver, stats.OpenConnections, stats.Idle)
	}
	if s.cacheManager != nil {
		if stats, err := s.cacheManager.GetStats(ctx); err == nil {
			s.metricsCollector.SetCacheStats("redis", stats.Hits, stats.Misses, stats.Keys)
		}
	}
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.dbPool != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("archive", s.dbPool.Ping))
	}
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("cache", s.cacheManager.Ping))
	}
	if s.reports != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("reports", s.reports.Ping))
	}

	s.questionHandler = handlers.NewQuestionHandler(s.orchestrator, s.logger)

	// archiveStore 为 nil 时传无类型 nil，查询退化到内存注册表
	var runArchive handlers.RunArchive
	if s.archiveStore != nil {
		runArchive = s.archiveStore
	}
	s.runHandler = handlers.NewRunHandler(s.orchestrator.Runs(), runArchive, s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.orchestrator.Runs(), s.orchestrator.Events(), s.logger)

	s.logger.Info("Handlers initialized")
}

// initHotReloadManager 初始化热更新管理器
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}

	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	// 日志级别是唯一运行中生效的字段，其余变更记录在案并提示重启
	s.hotReloadManager.OnChange(func(change config.ChangeEvent) {
		if change.Path == "Log.Level" {
			if level, err := zapcore.ParseLevel(fmt.Sprint(change.NewValue)); err == nil {
				s.logLevel.SetLevel(level)
				s.logger.Info("Log level updated", zap.String("level", level.String()))
				return
			}
		}
		s.logger.Info("Configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("Configuration reloaded")
		s.cfg = newConfig
	})

	if err := s.hotReloadManager.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	// 启动时打一份脱敏后的生效配置，便于排查环境差异
	if snapshot, err := s.hotReloadManager.SanitizedConfig(); err == nil {
		s.logger.Info("Effective configuration", zap.Any("config", snapshot))
	}

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与版本端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("POST /api/v1/questions", s.questionHandler.HandleSubmit)
	mux.HandleFunc("GET /api/v1/runs", s.runHandler.HandleList)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.runHandler.HandleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/events", s.eventsHandler.HandleEvents)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞到收到终止信号或任一服务器异常退出，然后优雅关闭
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Errors():
		s.logger.Error("HTTP server failed", zap.Error(err))
	case err := <-s.metricsManager.Errors():
		s.logger.Error("Metrics server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.Shutdown(ctx)
}

// Shutdown 优雅关闭所有服务。
// 先停入口再排空运行，保证进行中的运行还能完成归档。
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	// 1. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 停止热更新管理器
	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("Hot reload manager shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 HTTP 服务器，不再受理新运行
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 4. 排空编排器，让进行中的运行终结并归档
	if s.orchestrator != nil {
		if err := s.orchestrator.Shutdown(ctx); err != nil {
			s.logger.Error("Orchestrator shutdown error", zap.Error(err))
		}
	}

	// 5. 停掉事件→指标泵与统计采样器（广播器随编排器关闭，订阅通道已经收尾）
	if s.eventPumpCancel != nil {
		s.eventPumpCancel()
	}
	if s.statsSamplerCancel != nil {
		s.statsSamplerCancel()
	}

	// 6. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 7. 关闭存储
	if s.reports != nil {
		if err := s.reports.Close(ctx); err != nil {
			s.logger.Error("Report store close error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database pool close error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}

	// 8. 冲刷遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 9. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}

// =============================================================================
// 🔀 配置转换
// =============================================================================
// 管线配置的转换在根包；这里只转换服务器自有的存储配置。

func cacheConfig(cfg config.RedisConfig) cache.Config {
	return cache.Config{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		KeyPrefix:    cfg.KeyPrefix,
		DefaultTTL:   cfg.DefaultTTL,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func databaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Driver: cfg.Driver,
		DSN:    cfg.DSN(),
		Pool: database.PoolConfig{
			MaxIdleConns:    cfg.MaxIdleConns,
			MaxOpenConns:    cfg.MaxOpenConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		},
	}
}

func docstoreConfig(cfg config.MongoConfig) docstore.Config {
	return docstore.Config{
		URI:        cfg.URI,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Timeout:    cfg.Timeout,
	}
}
