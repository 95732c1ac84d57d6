// Package intelflow provides a top-level convenience entry point for
// assembling the research pipeline with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/intelflow"
//
//	flow, err := intelflow.New()                                  // config from INTELFLOW_* env
//	flow, err := intelflow.New(intelflow.WithConfigFile("intelflow.yaml"))
//	flow, err := intelflow.New(intelflow.WithRegistry(myRegistry)) // pre-built providers
//
//	resp, err := flow.Ask(ctx, &types.Question{
//		Organization: "Abbey Capital",
//		Text:         "Who are the decision makers and what did they invest in recently?",
//	})
//
// New returns a ready *workflow.Orchestrator; callers own its lifecycle and
// should call Shutdown when done. The server and the in-process CLI both
// build their pipelines through this entry point.
package intelflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/intelflow/agent"
	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/config"
	"github.com/BaSui01/intelflow/entity"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/providers"
	"github.com/BaSui01/intelflow/workflow"
)

// Option configures the pipeline created by [New].
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	cache      provider.Cache
	registry   *provider.Registry
	archiver   workflow.Archiver
}

// WithConfig uses a pre-loaded configuration. Takes precedence over
// WithConfigFile and the environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file, with INTELFLOW_*
// environment variables applied on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCache sets the provider response cache. Without it provider calls
// are never cached.
func WithCache(cache provider.Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithRegistry sets a pre-built provider registry, bypassing credential-based
// construction from configuration. Useful for tests and custom providers.
func WithRegistry(registry *provider.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithArchiver sets the hook that persists every terminal run.
func WithArchiver(archiver workflow.Archiver) Option {
	return func(o *options) { o.archiver = archiver }
}

// New assembles the question pipeline: provider registry, sufficiency
// evaluator, entity merger, focus router and orchestrator.
func New(opts ...Option) (*workflow.Orchestrator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if o.configPath != "" {
			loader = loader.WithConfigPath(o.configPath)
		}
		var err error
		cfg, err = loader.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := o.registry
	if registry == nil {
		registry = providers.BuildRegistry(providersFromConfig(cfg.Providers), o.cache, logger)
	}

	deps := agent.Deps{
		Registry: registry,
		Guard:    guardrails.NewEvaluator(policyFromConfig(cfg.Guardrails), logger),
		Merger:   entity.NewMerger(logger),
		Logger:   logger,
	}
	router := workflow.NewRouter(deps, agentFromConfig(cfg.Agent))

	var workflowOpts []workflow.Option
	if o.archiver != nil {
		workflowOpts = append(workflowOpts, workflow.WithArchiver(o.archiver))
	}
	return workflow.NewOrchestrator(router, workflowFromConfig(cfg.Workflow), logger, workflowOpts...), nil
}

// =============================================================================
// 🔀 配置转换
// =============================================================================
// config 包不依赖任何领域包，各子系统的配置在装配点转换。

func workflowFromConfig(cfg config.WorkflowConfig) workflow.Config {
	return workflow.Config{
		DefaultBudget:     cfg.DefaultBudget,
		MaxBudget:         cfg.MaxBudget,
		MaxConcurrentFoci: cfg.MaxConcurrentFoci,
		RunCapacity:       cfg.RunCapacity,
	}
}

func agentFromConfig(cfg config.AgentConfig) agent.Config {
	return agent.Config{
		SeniorTitles:       cfg.SeniorTitles,
		DirectoryMaxPages:  cfg.DirectoryMaxPages,
		ExtractTopURLs:     cfg.ExtractTopURLs,
		SearchMaxResults:   cfg.SearchMaxResults,
		MaxEvidenceTokens:  cfg.MaxEvidenceTokens,
		SynthesisMaxTokens: cfg.SynthesisMaxTokens,
		TemplateFallback:   cfg.TemplateFallback,
	}
}

func policyFromConfig(cfg config.GuardrailsConfig) *guardrails.Policy {
	return &guardrails.Policy{
		MinDecisionMakers: cfg.MinDecisionMakers,
		MinInvestments:    cfg.MinInvestments,
		MinGaps:           cfg.MinGaps,
		GenericMinWords:   cfg.GenericMinWords,
	}
}

func providersFromConfig(cfg config.ProvidersConfig) providers.Config {
	return providers.Config{
		Tavily: providers.TavilyConfig{
			APIKey:         cfg.Tavily.APIKey,
			BaseURL:        cfg.Tavily.BaseURL,
			SearchDepth:    cfg.Tavily.SearchDepth,
			MaxResults:     cfg.Tavily.MaxResults,
			Timeout:        cfg.Tavily.Timeout,
			ExcludeDomains: cfg.Tavily.ExcludeDomains,
			Gate:           gateFromConfig(cfg.Tavily.Gate),
		},
		Diffbot: providers.DiffbotConfig{
			Token:   cfg.Diffbot.Token,
			BaseURL: cfg.Diffbot.BaseURL,
			Timeout: cfg.Diffbot.Timeout,
			Gate:    gateFromConfig(cfg.Diffbot.Gate),
		},
		LinkedIn: providers.LinkedInConfig{
			APIKey:   cfg.LinkedIn.APIKey,
			Host:     cfg.LinkedIn.Host,
			BaseURL:  cfg.LinkedIn.BaseURL,
			MaxPages: cfg.LinkedIn.MaxPages,
			Timeout:  cfg.LinkedIn.Timeout,
			Gate:     gateFromConfig(cfg.LinkedIn.Gate),
		},
		BrightData: providers.BrightDataConfig{
			APIToken:    cfg.BrightData.APIToken,
			BaseURL:     cfg.BrightData.BaseURL,
			UnlockerURL: cfg.BrightData.UnlockerURL,
			Zone:        cfg.BrightData.Zone,
			Timeout:     cfg.BrightData.Timeout,
			Gate:        gateFromConfig(cfg.BrightData.Gate),
		},
		Gemini: providers.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			BaseURL:     cfg.Gemini.BaseURL,
			Model:       cfg.Gemini.Model,
			Temperature: float32(cfg.Gemini.Temperature),
			Timeout:     cfg.Gemini.Timeout,
			Gate:        gateFromConfig(cfg.Gemini.Gate),
		},
	}
}

func gateFromConfig(cfg config.GateConfig) provider.GateConfig {
	return provider.GateConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		RPS:           cfg.RPS,
		Burst:         cfg.Burst,
		CacheTTL:      cfg.CacheTTL,
	}
}
