package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/intelflow"
	"github.com/BaSui01/intelflow/api"
	"github.com/BaSui01/intelflow/config"
	"github.com/BaSui01/intelflow/internal/cache"
	"github.com/BaSui01/intelflow/types"
)

// =============================================================================
// 🧠 ask 命令
// =============================================================================

// runAsk 提交研究问题并等待报告。
// 指定 --addr 时通过 HTTP 提交到运行中的服务；否则在进程内
// 直接装配管线执行，适合脚本与无服务环境。
func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	org := fs.String("org", "", "Organization the question is about (required)")
	budget := fs.String("budget", "", "Wall-clock budget, e.g. 90s")
	synthesis := fs.Bool("synthesis", true, "Request an executive synthesis paragraph")
	focus := fs.String("focus", "", "Comma-separated focus areas, bypassing keyword detection")
	tags := fs.String("tags", "", "Comma-separated domain tags")
	addr := fs.String("addr", "", "Submit over HTTP to a running server instead of in-process")
	wait := fs.Bool("wait", false, "Poll the run until terminal and print the full report (HTTP mode)")
	apiKey := fs.String("api-key", "", "API key for the X-API-Key header (HTTP mode)")
	configPath := fs.String("config", "", "Config file for in-process execution")
	fs.Parse(args)

	questionText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if questionText == "" {
		fmt.Fprintln(os.Stderr, "Usage: intelflow ask --org <name> [options] \"<question>\"")
		os.Exit(1)
	}

	req := api.QuestionRequest{
		Organization:     *org,
		Question:         questionText,
		Budget:           *budget,
		IncludeSynthesis: synthesis,
	}
	if *focus != "" {
		req.Focus = splitList(*focus)
	}
	if *tags != "" {
		req.Tags = splitList(*tags)
	}

	if *addr != "" {
		askOverHTTP(*addr, *apiKey, req, *wait)
		return
	}
	// 进程内模式没有可回连的服务，总是等到运行终结
	askInProcess(*configPath, req)
}

// splitList 切逗号列表并去空白项
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// =============================================================================
// 🌐 HTTP 模式
// =============================================================================

// askOverHTTP 走服务端 API 提交。默认打印受理回执（含 run_id）即返回，
// wait 为真时轮询运行直至终结并打印完整报告
func askOverHTTP(addr, apiKey string, req api.QuestionRequest, wait bool) {
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(addr, "/")+"/api/v1/questions", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build request: %v\n", err)
		os.Exit(1)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Submit rejected: status %d\n%s\n", resp.StatusCode, payload)
		os.Exit(1)
	}

	var accepted api.RunAccepted
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Run accepted: %s (focus areas: %s)\n", accepted.RunID, joinFocusAreas(accepted.FocusAreas))

	if !wait {
		printJSON(accepted)
		return
	}
	view := pollRun(client, addr, apiKey, accepted.RunID, deadlineFor(req.Budget))
	printJSON(view)
}

// deadlineFor 客户端等待上限：预算加宽限，未指定预算时取保守上限
func deadlineFor(budget string) time.Time {
	wait := 10 * time.Minute
	if budget != "" {
		if parsed, err := time.ParseDuration(budget); err == nil {
			wait = parsed + 30*time.Second
		}
	}
	return time.Now().Add(wait)
}

// pollRun 轮询运行直到离开 in_progress 或超出客户端等待上限
func pollRun(client *http.Client, addr, apiKey, runID string, deadline time.Time) *api.RunView {
	for {
		view, status, err := fetchRun(client, addr, apiKey, runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			os.Exit(1)
		}
		if status != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Fetch failed: status %d\n", status)
			os.Exit(1)
		}
		if view.Status != types.RunInProgress {
			return view
		}
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "Run %s still in progress after client deadline; fetch later with: intelflow result %s\n", runID, runID)
			os.Exit(1)
		}
		time.Sleep(time.Second)
	}
}

func fetchRun(client *http.Client, addr, apiKey, runID string) (*api.RunView, int, error) {
	httpReq, err := http.NewRequest(http.MethodGet, strings.TrimRight(addr, "/")+"/api/v1/runs/"+runID, nil)
	if err != nil {
		return nil, 0, err
	}
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	var view api.RunView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, resp.StatusCode, err
	}
	return &view, resp.StatusCode, nil
}

func joinFocusAreas(areas []types.FocusArea) string {
	parts := make([]string, len(areas))
	for i, area := range areas {
		parts[i] = string(area)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// 🔧 进程内模式
// =============================================================================

// askInProcess 在进程内装配管线执行一次运行。
// 一次性调用不挂接归档，配置了 Redis 时仍复用提供商缓存。
func askInProcess(configPath string, req api.QuestionRequest) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 报告写 stdout，日志全部走 stderr
	cfg.Log.OutputPaths = []string{"stderr"}
	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	question, apiErr := req.ToQuestion()
	if apiErr != nil {
		fmt.Fprintf(os.Stderr, "Invalid question: %s\n", apiErr.Message)
		os.Exit(1)
	}

	opts := []intelflow.Option{
		intelflow.WithConfig(cfg),
		intelflow.WithLogger(logger),
	}
	if cfg.Redis.Addr != "" {
		cacheManager, err := cache.NewManager(cacheConfig(cfg.Redis), logger)
		if err != nil {
			logger.Warn("Redis unavailable, provider responses will not be cached", zap.Error(err))
		} else {
			opts = append(opts, intelflow.WithCache(cacheManager))
			defer cacheManager.Close()
		}
	}

	orchestrator, err := intelflow.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to assemble pipeline: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orchestrator.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	response, err := orchestrator.Ask(ctx, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(response)
}

// =============================================================================
// 📄 result 命令
// =============================================================================

// runResult 按运行 ID 拉取结果。进行中的运行返回焦点状态快照。
func runResult(args []string) {
	fs := flag.NewFlagSet("result", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	apiKey := fs.String("api-key", "", "API key for the X-API-Key header")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: intelflow result [--addr <url>] <run-id>")
		os.Exit(1)
	}
	runID := fs.Arg(0)

	client := &http.Client{Timeout: 30 * time.Second}
	view, status, err := fetchRun(client, *addr, *apiKey, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}
	switch status {
	case http.StatusOK:
		printJSON(view)
	case http.StatusNotFound:
		fmt.Fprintf(os.Stderr, "Run not found: %s\n", runID)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Fetch failed: status %d\n", status)
		os.Exit(1)
	}
}

// printJSON 缩进打印结果到 stdout
func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
