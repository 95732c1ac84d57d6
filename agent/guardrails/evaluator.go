package guardrails

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/intelflow/types"
)

// Policy 充分性阈值与泛化判定配置。
type Policy struct {
	// MinDecisionMakers 决策人焦点域的充分性阈值
	MinDecisionMakers int
	// MinInvestments 投资焦点域的充分性阈值
	MinInvestments int
	// MinGaps 缺口焦点域的充分性阈值
	MinGaps int
	// GenericMinWords 低于该词数的无组织指称文本直接判为泛化回答
	GenericMinWords int
}

// DefaultPolicy 返回默认阈值。
func DefaultPolicy() *Policy {
	return &Policy{
		MinDecisionMakers: 3,
		MinInvestments:    1,
		MinGaps:           1,
		GenericMinWords:   12,
	}
}

// genericMarkers 泛化回答常见的角色/流程词；命中且不含组织指称时判为泛化。
var genericMarkers = []string{"ceo", "director", "partner", "investment", "committee"}

// Verdict is the evaluator's answer for one result: whether it clears the
// focus threshold, why not, and what to ask next when it does not.
type Verdict struct {
	Sufficient bool     `json:"sufficient"`
	Reasons    []string `json:"reasons,omitempty"`
	FollowUps  []string `json:"follow_ups,omitempty"`
}

// Evaluator 按 Policy 对结果做质量把关。无共享可变状态，可并发使用。
type Evaluator struct {
	policy Policy
	logger *zap.Logger
}

// NewEvaluator 创建 Evaluator；policy 为 nil 时使用默认阈值。
func NewEvaluator(policy *Policy, logger *zap.Logger) *Evaluator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{policy: *policy, logger: logger}
}

// GenericText reports whether text reads like boilerplate about the topic
// rather than intelligence about the named organization: it mentions none
// of the organization's name tokens, and either hits a generic marker word
// or is too short to carry specifics.
func (e *Evaluator) GenericText(organization, text string) bool {
	norm := " " + types.NormalizeKey(text) + " "
	words := len(strings.Fields(norm))
	if words == 0 {
		return true
	}

	for _, tok := range organizationTokens(organization) {
		if strings.Contains(norm, " "+tok+" ") {
			return false
		}
	}

	if words < e.policy.GenericMinWords {
		return true
	}
	for _, marker := range genericMarkers {
		if strings.Contains(norm, " "+marker+" ") {
			return true
		}
	}
	return false
}

// EvaluateDecisionMakers 决策人充分性判定。
func (e *Evaluator) EvaluateDecisionMakers(organization string, people []types.DecisionMaker) *Verdict {
	if len(people) >= e.policy.MinDecisionMakers {
		return &Verdict{Sufficient: true}
	}
	v := &Verdict{
		Reasons: []string{fmt.Sprintf("found %d named decision makers, need at least %d",
			len(people), e.policy.MinDecisionMakers)},
		FollowUps: FollowUps(types.FocusDecisionMakers, organization),
	}
	e.logger.Debug("decision makers below threshold",
		zap.String("organization", organization),
		zap.Int("found", len(people)),
		zap.Int("min", e.policy.MinDecisionMakers))
	return v
}

// EvaluateInvestments 投资充分性判定。
func (e *Evaluator) EvaluateInvestments(organization string, deals []types.Investment) *Verdict {
	if len(deals) >= e.policy.MinInvestments {
		return &Verdict{Sufficient: true}
	}
	return &Verdict{
		Reasons: []string{fmt.Sprintf("found %d evidence-backed investments, need at least %d",
			len(deals), e.policy.MinInvestments)},
		FollowUps: FollowUps(types.FocusInvestments, organization),
	}
}

// EvaluateGaps 缺口充分性判定。
func (e *Evaluator) EvaluateGaps(organization string, gaps []types.Gap) *Verdict {
	if len(gaps) >= e.policy.MinGaps {
		return &Verdict{Sufficient: true}
	}
	return &Verdict{
		Reasons: []string{fmt.Sprintf("found %d evidence-backed gaps, need at least %d",
			len(gaps), e.policy.MinGaps)},
		FollowUps: FollowUps(types.FocusGaps, organization),
	}
}

// EvaluateOrganization 组织解析充分性。下游焦点消费的是解析出的域名，
// 因此无域名的档案视为不充分，继续升级到目录提供商。
func (e *Evaluator) EvaluateOrganization(organization string, profile *types.OrganizationProfile) *Verdict {
	if profile == nil {
		return &Verdict{
			Reasons:   []string{"organization could not be resolved to a profile"},
			FollowUps: FollowUps(types.FocusCompanyResolution, organization),
		}
	}
	if profile.Domain == "" {
		return &Verdict{
			Reasons:   []string{"profile resolved without a web domain"},
			FollowUps: FollowUps(types.FocusCompanyResolution, organization),
		}
	}
	return &Verdict{Sufficient: true}
}

// EvaluateSynthesis 综述质量判定：泛化文本视为不充分。
func (e *Evaluator) EvaluateSynthesis(organization, text string) *Verdict {
	if strings.TrimSpace(text) == "" || e.GenericText(organization, text) {
		return &Verdict{
			Reasons:   []string{"synthesis text is generic or empty"},
			FollowUps: FollowUps(types.FocusSynthesis, organization),
		}
	}
	return &Verdict{Sufficient: true}
}

// organizationTokens 取组织名中有区分度的词：长度 ≥3 且不是纯通名。
func organizationTokens(organization string) []string {
	stop := map[string]struct{}{
		"the": {}, "inc": {}, "llc": {}, "ltd": {}, "corp": {}, "corporation": {},
		"company": {}, "group": {}, "and": {},
	}
	var out []string
	for _, tok := range strings.Fields(types.NormalizeKey(organization)) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := stop[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}
