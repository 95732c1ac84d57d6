package agent

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/entity"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// Task is the context one specialist receives: the sub-question the
// decomposer derived for its focus, the provider chain the router assigned,
// and the terminal results of every dependency.
type Task struct {
	Question    types.Question
	SubQuestion string
	Chain       []string

	// Profile is the resolved organization, nil until company resolution
	// terminates (and for the resolver itself).
	Profile *types.OrganizationProfile

	// Results holds terminal dependency results keyed by focus. Only the
	// synthesis agent reads beyond Profile.
	Results map[types.FocusArea]*types.AgentResult
}

// Organization returns the target organization name.
func (t *Task) Organization() string { return t.Question.Organization }

// Agent 是焦点专家的统一契约。Execute 的 error 只用于配置错误
// （链上没有任何可用提供商）；其余失败都编码进 AgentResult。
type Agent interface {
	Focus() types.FocusArea
	Execute(ctx context.Context, task *Task) (*types.AgentResult, error)
}

// Deps bundles the collaborators every specialist shares.
type Deps struct {
	Registry *provider.Registry
	Guard    *guardrails.Evaluator
	Merger   *entity.Merger
	Logger   *zap.Logger
}

func (d Deps) normalized() Deps {
	if d.Registry == nil {
		d.Registry = provider.NewRegistry()
	}
	if d.Guard == nil {
		d.Guard = guardrails.NewEvaluator(nil, nil)
	}
	if d.Merger == nil {
		d.Merger = entity.NewMerger(nil)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Config 控制各代理的查询行为。
type Config struct {
	// SeniorTitles 决策人目录查询的职级关键词过滤。
	SeniorTitles []string `json:"senior_titles" yaml:"senior_titles"`

	// DirectoryMaxPages 目录翻页上限。
	DirectoryMaxPages int `json:"directory_max_pages" yaml:"directory_max_pages"`

	// ExtractTopURLs 升级到抽取提供商时深读的候选页面数。
	ExtractTopURLs int `json:"extract_top_urls" yaml:"extract_top_urls"`

	// SearchMaxResults 每次搜索请求的结果数。
	SearchMaxResults int `json:"search_max_results" yaml:"search_max_results"`

	// MaxEvidenceTokens 综述证据摘要的 token 预算。
	MaxEvidenceTokens int `json:"max_evidence_tokens" yaml:"max_evidence_tokens"`

	// SynthesisMaxTokens 综述生成的输出 token 上限。
	SynthesisMaxTokens int `json:"synthesis_max_tokens" yaml:"synthesis_max_tokens"`

	// TemplateFallback 在综述提供商不可用时退化为确定性模板摘要。
	TemplateFallback bool `json:"template_fallback" yaml:"template_fallback"`
}

// DefaultConfig 返回适合免费档提供商配额的默认值。
func DefaultConfig() Config {
	return Config{
		SeniorTitles: []string{
			"chief", "ceo", "cio", "cto", "cfo", "coo",
			"president", "vice president", "vp", "director",
			"head of", "partner", "founder",
		},
		DirectoryMaxPages:  3,
		ExtractTopURLs:     3,
		SearchMaxResults:   5,
		MaxEvidenceTokens:  6000,
		SynthesisMaxTokens: 1024,
		TemplateFallback:   true,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if len(c.SeniorTitles) == 0 {
		c.SeniorTitles = def.SeniorTitles
	}
	if c.DirectoryMaxPages <= 0 {
		c.DirectoryMaxPages = def.DirectoryMaxPages
	}
	if c.ExtractTopURLs <= 0 {
		c.ExtractTopURLs = def.ExtractTopURLs
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = def.SearchMaxResults
	}
	if c.MaxEvidenceTokens <= 0 {
		c.MaxEvidenceTokens = def.MaxEvidenceTokens
	}
	if c.SynthesisMaxTokens <= 0 {
		c.SynthesisMaxTokens = def.SynthesisMaxTokens
	}
	return c
}

// stepFunc is one provider attempt: query the named provider, fold its
// entities into the agent's accumulated state, and return the guardrail
// verdict for the accumulated state.
type stepFunc func(ctx context.Context, providerName string) (*guardrails.Verdict, error)

// chainRun records how an escalation walk went.
type chainRun struct {
	tried      []string
	succeeded  int
	sufficient bool
	verdict    *guardrails.Verdict
	lastErr    error
}

// runChain walks the provider chain in order until a step reports a
// sufficient verdict. Provider errors are absorbed: the provider drops out
// of the chain for this call and the walk continues. Unregistered providers
// are skipped without counting as attempts; when the whole chain is
// unregistered the walk reports a configuration error.
func runChain(ctx context.Context, chain []string, logger *zap.Logger, step stepFunc) (*chainRun, error) {
	run := &chainRun{}
	for _, name := range chain {
		if ctx.Err() != nil {
			break
		}

		verdict, err := step(ctx, name)
		if err != nil {
			if types.GetErrorCode(err) == types.ErrProviderUnavailable {
				logger.Debug("provider unavailable, skipping",
					zap.String("provider", name))
				continue
			}
			run.tried = append(run.tried, name)
			run.lastErr = err
			logger.Warn("provider attempt failed, escalating",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}

		run.tried = append(run.tried, name)
		run.succeeded++
		run.verdict = verdict
		if verdict.Sufficient {
			run.sufficient = true
			break
		}
		logger.Debug("guardrail flagged result insufficient, escalating",
			zap.String("provider", name),
			zap.Strings("reasons", verdict.Reasons))
	}

	if len(run.tried) == 0 {
		if ctx.Err() != nil {
			return run, nil
		}
		err := types.NewError(types.ErrConfiguration,
			"no provider in chain ["+strings.Join(chain, ", ")+"] is configured")
		if run.lastErr != nil {
			err = err.WithCause(run.lastErr)
		}
		return nil, err
	}
	return run, nil
}

// applyOutcome maps a finished chain walk onto the result's status fields.
func applyOutcome(result *types.AgentResult, run *chainRun, ctxErr error) {
	result.ProvidersTried = run.tried
	switch {
	case run.sufficient:
		result.Status = types.ResultSufficient
	case ctxErr != nil:
		result.Status = types.ResultFailed
		result.FailureReason = "wall-clock budget exceeded"
	case run.succeeded > 0:
		result.Status = types.ResultInsufficient
		if run.verdict != nil {
			result.FollowUps = run.verdict.FollowUps
		}
	default:
		result.Status = types.ResultFailed
		result.FailureReason = "all providers in chain failed"
		if run.lastErr != nil {
			result.FailureReason += ": " + run.lastErr.Error()
		}
	}
}

// newResult stamps the common result envelope for one focus.
func newResult(focus types.FocusArea) *types.AgentResult {
	return &types.AgentResult{
		Focus:     focus,
		StartedAt: time.Now().UTC(),
	}
}
