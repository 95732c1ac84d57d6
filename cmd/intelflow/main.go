// =============================================================================
// IntelFlow 主入口
// =============================================================================
// 完整服务入口点，包含 HTTP 服务、运行事件流、健康检查、Prometheus 指标
//
// 使用方法:
//
//	intelflow serve                       # 启动服务
//	intelflow serve --config config.yaml  # 指定配置文件
//	intelflow ask "<question>"            # 提交问题并等待研究报告
//	intelflow result <run-id>             # 拉取指定运行的结果
//	intelflow version                     # 显示版本信息
//	intelflow health                      # 健康检查
//	intelflow migrate up                  # 运行数据库迁移
//	intelflow migrate down                # 回滚最后一次迁移
//	intelflow migrate status              # 查看迁移状态
// =============================================================================

// @title IntelFlow API
// @version 1.0.0
// @description IntelFlow is a question-driven sales intelligence service: submit a research question about an organization and receive a structured report on its leadership, investments and open gaps.
// @description
// @description ## Features
// @description - Deterministic question decomposition into ordered research focus areas
// @description - Provider escalation chains (Tavily, Diffbot, LinkedIn, Bright Data, Gemini)
// @description - Real-time run event stream over WebSocket
// @description - Run archive with partial-result reporting
// @description - Health monitoring and metrics

// @contact.name IntelFlow Team
// @contact.url https://github.com/BaSui01/intelflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/intelflow/config"
	"github.com/BaSui01/intelflow/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "ask":
		runAsk(os.Args[2:])
	case "result":
		runResult(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	// 解析命令行参数
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	// 加载配置
	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志；AtomicLevel 交给热更新管理器动态调级
	logger, logLevel := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting IntelFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// 创建服务器（传入配置文件路径以支持热更新）
	server := NewServer(cfg, *configPath, logger, logLevel, otelProviders)

	// 启动服务器
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// 等待关闭信号
	server.WaitForShutdown()

	logger.Info("IntelFlow stopped")
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("IntelFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`IntelFlow - Question-Driven Sales Intelligence

Usage:
  intelflow <command> [options]

Commands:
  serve     Start the IntelFlow server
  ask       Submit a research question and wait for the report
  result    Fetch the result of a run by id
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'ask':
  --org <name>      Organization the question is about (required)
  --budget <dur>    Wall-clock budget, e.g. 90s (default: server setting)
  --synthesis       Request an executive synthesis paragraph (default true)
  --focus <list>    Comma-separated focus areas, bypassing keyword detection
  --tags <list>     Comma-separated domain tags
  --addr <url>      Submit over HTTP to a running server instead of in-process
  --wait            Poll until terminal and print the full report (HTTP mode)
  --api-key <key>   API key for the X-API-Key header (HTTP mode)
  --config <path>   Config file for in-process execution

Options for 'result':
  --addr <url>      Server address (default http://localhost:8080)
  --api-key <key>   API key for the X-API-Key header

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate steps <n> Apply n migrations (negative rolls back)
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate info      Show migration source and database details
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  intelflow serve
  intelflow serve --config /etc/intelflow/config.yaml
  intelflow ask --org "Acme Corp" "Who are the decision makers and recent investments?"
  intelflow result 7f3b2c1a-…
  intelflow migrate up
  intelflow migrate status
  intelflow health --addr http://localhost:8080
  intelflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

// initLogger 按配置构建 logger，并返回可动态调级的 AtomicLevel
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}
	atomicLevel := zap.NewAtomicLevelAt(level)

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            atomicLevel,
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	var buildOpts []zap.Option
	if cfg.EnableCaller {
		buildOpts = append(buildOpts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		buildOpts = append(buildOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	// 构建 logger
	logger, err := zapConfig.Build(buildOpts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger, atomicLevel
}
