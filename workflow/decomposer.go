package workflow

import (
	"fmt"
	"strings"

	"github.com/BaSui01/intelflow/types"
	"go.uber.org/zap"
)

// ExecutionStrategy 分解结果的执行形态分类，仅作日志与事件的
// 参考元数据，不影响调度。
type ExecutionStrategy string

const (
	StrategySequential ExecutionStrategy = "sequential"
	StrategyParallel   ExecutionStrategy = "parallel"
	StrategyHybrid     ExecutionStrategy = "hybrid"
)

// Focus is one scheduled focus area: its sub-question and the foci whose
// terminal results it consumes.
type Focus struct {
	Area        types.FocusArea   `json:"area"`
	SubQuestion string            `json:"sub_question"`
	DependsOn   []types.FocusArea `json:"depends_on,omitempty"`
}

// Decomposition is the deterministic plan for one question: same question
// text and tag set in, same ordered focus list out.
type Decomposition struct {
	Focuses    []Focus           `json:"focuses"`
	Strategy   ExecutionStrategy `json:"strategy"`
	Complexity float64           `json:"complexity"`

	// ChitChat 标记问题不含任何焦点信号：仅剩综述焦点，
	// 且无需任何子代理采集。
	ChitChat bool `json:"chit_chat"`
}

// Areas returns the scheduled focus areas in execution order.
func (d *Decomposition) Areas() []types.FocusArea {
	out := make([]types.FocusArea, 0, len(d.Focuses))
	for _, f := range d.Focuses {
		out = append(out, f.Area)
	}
	return out
}

// focusKeywords 关键词触发表。按 AllFocusAreas 的规范顺序扫描，
// 与 map 迭代顺序无关，保证分解确定性。
var focusKeywords = map[types.FocusArea][]string{
	types.FocusDecisionMakers: {
		"decision maker", "decision-maker", "who runs", "who leads", "who are",
		"leadership", "executive", "board", "ceo", "cio", "cto", "cfo",
		"contact", "people", "team", "management",
	},
	types.FocusInvestments: {
		"invest", "funding", "fund raise", "acquisition", "acquire",
		"allocat", "portfolio", "deal", "m&a", "raised", "capital",
	},
	types.FocusGaps: {
		"gap", "need", "challenge", "pain point", "weakness",
		"opportunit", "shortage", "struggl", "problem", "priorit",
	},
}

// tagEmphasis 领域标签在子问题措辞中的侧重点。
var tagEmphasis = map[string]string{
	"healthcare": "clinical systems, staffing, and compliance",
	"fintech":    "payments infrastructure, risk, and regulation",
}

// Decomposer 把商业问题确定性地拆成有序焦点列表。组织解析恒为首，
// 综述（如请求）恒为尾并依赖其余全部焦点。
type Decomposer struct {
	logger *zap.Logger
}

// NewDecomposer 创建分解器。
func NewDecomposer(logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{logger: logger.With(zap.String("component", "decomposer"))}
}

// Decompose 生成问题的执行计划。
func (d *Decomposer) Decompose(q *types.Question) *Decomposition {
	middle := d.middleFoci(q)

	// 零信号且未显式点名焦点：纯寒暄，单综述焦点直答。
	if len(middle) == 0 && len(q.Focus) == 0 {
		dec := &Decomposition{
			Focuses: []Focus{{
				Area:        types.FocusSynthesis,
				SubQuestion: fmt.Sprintf("Reply conversationally to: %s", strings.TrimSpace(q.Text)),
			}},
			Strategy:   StrategySequential,
			Complexity: complexityScore(1, q.Text),
			ChitChat:   true,
		}
		d.logger.Debug("question carries no focus signals, chit-chat plan",
			zap.String("organization", q.Organization))
		return dec
	}

	focuses := []Focus{{
		Area:        types.FocusCompanyResolution,
		SubQuestion: fmt.Sprintf("Resolve the canonical identity and web domain of %s", q.Organization),
	}}
	for _, area := range middle {
		focuses = append(focuses, Focus{
			Area:        area,
			SubQuestion: d.subQuestion(area, q),
			DependsOn:   []types.FocusArea{types.FocusCompanyResolution},
		})
	}
	if q.IncludeSynthesis {
		deps := make([]types.FocusArea, 0, len(focuses))
		for _, f := range focuses {
			deps = append(deps, f.Area)
		}
		focuses = append(focuses, Focus{
			Area:        types.FocusSynthesis,
			SubQuestion: fmt.Sprintf("Summarize the collected intelligence on %s for a sales conversation", q.Organization),
			DependsOn:   deps,
		})
	}

	dec := &Decomposition{
		Focuses:    focuses,
		Strategy:   classifyStrategy(focuses),
		Complexity: complexityScore(len(focuses), q.Text),
	}
	d.logger.Info("question decomposed",
		zap.String("organization", q.Organization),
		zap.Any("focus_areas", dec.Areas()),
		zap.String("strategy", string(dec.Strategy)),
		zap.Float64("complexity", dec.Complexity))
	return dec
}

// middleFoci 选出解析与综述之间的焦点：显式点名优先，否则扫关键词。
func (d *Decomposer) middleFoci(q *types.Question) []types.FocusArea {
	if len(q.Focus) > 0 {
		var out []types.FocusArea
		for _, area := range middleAreas() {
			for _, pinned := range q.Focus {
				if pinned == area {
					out = append(out, area)
					break
				}
			}
		}
		return out
	}

	text := strings.ToLower(q.Text + " " + strings.Join(q.Tags, " "))
	var out []types.FocusArea
	for _, area := range middleAreas() {
		for _, kw := range focusKeywords[area] {
			if strings.Contains(text, kw) {
				out = append(out, area)
				break
			}
		}
	}
	return out
}

func (d *Decomposer) subQuestion(area types.FocusArea, q *types.Question) string {
	var base string
	switch area {
	case types.FocusDecisionMakers:
		base = fmt.Sprintf("Who are the decision makers at %s?", q.Organization)
	case types.FocusInvestments:
		base = fmt.Sprintf("What recent investments, funding, or acquisitions involve %s?", q.Organization)
	case types.FocusGaps:
		base = fmt.Sprintf("What operational gaps or unmet needs has %s disclosed?", q.Organization)
	default:
		base = q.Text
	}

	for _, tag := range q.Tags {
		if emphasis, ok := tagEmphasis[strings.ToLower(tag)]; ok {
			return base + " Emphasize " + emphasis + "."
		}
	}
	return base
}

// middleAreas 规范顺序的中段焦点。
func middleAreas() []types.FocusArea {
	return []types.FocusArea{
		types.FocusDecisionMakers,
		types.FocusInvestments,
		types.FocusGaps,
	}
}

// classifyStrategy 按依赖形态归类：至多一个依赖焦点是纯链，
// 全部独立是纯并行，其余为混合。
func classifyStrategy(focuses []Focus) ExecutionStrategy {
	dependent := 0
	for _, f := range focuses {
		if len(f.DependsOn) > 0 {
			dependent++
		}
	}
	switch {
	case dependent == 0 && len(focuses) > 1:
		return StrategyParallel
	case dependent <= 1:
		return StrategySequential
	default:
		return StrategyHybrid
	}
}

// complexityScore 由焦点数量与问题长度推出 [0,1] 复杂度。
func complexityScore(focusCount int, text string) float64 {
	score := 0.15*float64(focusCount) + float64(len(strings.Fields(text)))/50.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}
