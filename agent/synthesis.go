package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/intelflow/agent/guardrails"
	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// SynthesisAgent 把所有终态焦点的实体压成证据摘要，交给综述提供商
// 生成面向销售的叙述。证据按 token 预算裁剪；提供商全部缺席或失败时
// 可退化为确定性模板摘要，模板同样过综述门控。
type SynthesisAgent struct {
	deps    Deps
	cfg     Config
	counter tokenCounter
}

// NewSynthesisAgent 创建综述代理。
func NewSynthesisAgent(deps Deps, cfg Config) *SynthesisAgent {
	return &SynthesisAgent{deps: deps.normalized(), cfg: cfg.normalized()}
}

func (a *SynthesisAgent) Focus() types.FocusArea { return types.FocusSynthesis }

func (a *SynthesisAgent) Execute(ctx context.Context, task *Task) (*types.AgentResult, error) {
	result := newResult(a.Focus())
	org := task.Organization()

	evidence := a.counter.Trim(buildEvidence(org, task), a.cfg.MaxEvidenceTokens)
	question := task.SubQuestion
	if question == "" {
		question = task.Question.Text
	}

	var text string
	step := func(ctx context.Context, name string) (*guardrails.Verdict, error) {
		synthesizer, err := a.deps.Registry.Synthesizer(name)
		if err != nil {
			return nil, err
		}
		resp, err := synthesizer.Synthesize(ctx, &provider.SynthesisRequest{
			Organization: org,
			Question:     question,
			Evidence:     evidence,
			MaxTokens:    a.cfg.SynthesisMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		text = resp.Text
		return a.deps.Guard.EvaluateSynthesis(org, text), nil
	}

	run, err := runChain(ctx, task.Chain, a.deps.Logger, step)
	if err != nil {
		if types.GetErrorCode(err) != types.ErrConfiguration || !a.cfg.TemplateFallback {
			return nil, err
		}
		a.deps.Logger.Warn("no synthesis provider configured, using template narrative",
			zap.String("organization", org))
		run = &chainRun{}
	}

	result.Synthesis = text
	applyOutcome(result, run, ctx.Err())

	// 预算内失败才允许模板兜底；超预算按失败上报。
	if result.Status == types.ResultFailed && ctx.Err() == nil && a.cfg.TemplateFallback {
		result.Synthesis = templateNarrative(org, question, task)
		verdict := a.deps.Guard.EvaluateSynthesis(org, result.Synthesis)
		if verdict.Sufficient {
			result.Status = types.ResultSufficient
		} else {
			result.Status = types.ResultInsufficient
			result.FollowUps = verdict.FollowUps
		}
		result.FailureReason = ""
	}

	result.FinishedAt = time.Now().UTC()

	a.deps.Logger.Info("synthesis finished",
		zap.String("organization", org),
		zap.String("status", string(result.Status)),
		zap.Int("evidence_tokens", a.counter.Count(evidence)))
	return result, nil
}

// buildEvidence 按焦点的规范顺序拼装证据摘要，引用字面计数，
// 输出对相同输入完全确定。
func buildEvidence(org string, task *Task) string {
	var b strings.Builder

	if task.Profile != nil {
		fmt.Fprintf(&b, "Organization: %s", task.Profile.Name)
		if task.Profile.Domain != "" {
			fmt.Fprintf(&b, " (%s)", task.Profile.Domain)
		}
		b.WriteString("\n")
		if task.Profile.Industry != "" {
			fmt.Fprintf(&b, "Industry: %s\n", task.Profile.Industry)
		}
		if task.Profile.Description != "" {
			fmt.Fprintf(&b, "About: %s\n", task.Profile.Description)
		}
	} else {
		fmt.Fprintf(&b, "Organization: %s (unresolved)\n", org)
	}

	var unresolved []string
	for _, focus := range types.AllFocusAreas() {
		res, ok := task.Results[focus]
		if !ok || res == nil || focus == types.FocusCompanyResolution || focus == types.FocusSynthesis {
			continue
		}
		if res.Status == types.ResultFailed {
			unresolved = append(unresolved, string(focus))
			continue
		}
		switch focus {
		case types.FocusDecisionMakers:
			fmt.Fprintf(&b, "\nDecision makers (%d):\n", len(res.DecisionMakers))
			for _, dm := range res.DecisionMakers {
				fmt.Fprintf(&b, "- %s, %s (confidence %.2f)\n", dm.Name, dm.Title, dm.Confidence)
			}
		case types.FocusInvestments:
			fmt.Fprintf(&b, "\nInvestments (%d):\n", len(res.Investments))
			for _, inv := range res.Investments {
				fmt.Fprintf(&b, "- %s", inv.Company)
				if inv.Amount != "" {
					fmt.Fprintf(&b, ": %s", inv.Amount)
				}
				if inv.Date != "" {
					fmt.Fprintf(&b, " (%s)", inv.Date)
				}
				b.WriteString("\n")
			}
		case types.FocusGaps:
			fmt.Fprintf(&b, "\nIdentified gaps (%d):\n", len(res.Gaps))
			for _, gap := range res.Gaps {
				fmt.Fprintf(&b, "- %s\n", gap.Statement)
			}
		}
	}

	if len(unresolved) > 0 {
		fmt.Fprintf(&b, "\nUnresolved focus areas: %s\n", strings.Join(unresolved, ", "))
	}
	return b.String()
}

// templateNarrative 无 LLM 时的确定性摘要：逐焦点陈述计数与要点。
func templateNarrative(org, question string, task *Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intelligence summary for %s.\n\n", org)
	if question != "" {
		fmt.Fprintf(&b, "Question: %s\n\n", question)
	}

	if task.Profile != nil && task.Profile.Domain != "" {
		fmt.Fprintf(&b, "%s was resolved to %s.", task.Profile.Name, task.Profile.Domain)
		if task.Profile.Industry != "" {
			fmt.Fprintf(&b, " It operates in the %s industry.", task.Profile.Industry)
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "%s could not be fully resolved to a web domain.\n", org)
	}

	if res := task.Results[types.FocusDecisionMakers]; res != nil && len(res.DecisionMakers) > 0 {
		names := make([]string, 0, len(res.DecisionMakers))
		for _, dm := range res.DecisionMakers {
			names = append(names, dm.Name+" ("+dm.Title+")")
		}
		fmt.Fprintf(&b, "Key decision makers identified: %s.\n", strings.Join(names, ", "))
	}
	if res := task.Results[types.FocusInvestments]; res != nil && len(res.Investments) > 0 {
		fmt.Fprintf(&b, "Recent investment activity: %d event(s) on record", len(res.Investments))
		first := res.Investments[0]
		if first.Amount != "" {
			fmt.Fprintf(&b, ", most notably %s into %s", first.Amount, first.Company)
		}
		b.WriteString(".\n")
	}
	if res := task.Results[types.FocusGaps]; res != nil && len(res.Gaps) > 0 {
		fmt.Fprintf(&b, "Identified gaps: %s\n", res.Gaps[0].Statement)
	}

	b.WriteString("\nThis summary was assembled directly from collected evidence without a language model.")
	return b.String()
}
