package workflow

import (
	"reflect"
	"strings"
	"testing"

	"github.com/BaSui01/intelflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecomposeKeywordScenario(t *testing.T) {
	d := NewDecomposer(nil)
	plan := d.Decompose(&types.Question{
		Organization:     "Acme Corp",
		Text:             "Who are the decision makers at Acme Corp and what recent investments have they made?",
		IncludeSynthesis: true,
	})

	require.Equal(t, []types.FocusArea{
		types.FocusCompanyResolution,
		types.FocusDecisionMakers,
		types.FocusInvestments,
		types.FocusSynthesis,
	}, plan.Areas())
	assert.False(t, plan.ChitChat)
	assert.Equal(t, StrategyHybrid, plan.Strategy)

	byArea := make(map[types.FocusArea]Focus)
	for _, f := range plan.Focuses {
		byArea[f.Area] = f
	}
	assert.Empty(t, byArea[types.FocusCompanyResolution].DependsOn)
	assert.Equal(t, []types.FocusArea{types.FocusCompanyResolution},
		byArea[types.FocusDecisionMakers].DependsOn)
	assert.Equal(t, []types.FocusArea{types.FocusCompanyResolution},
		byArea[types.FocusInvestments].DependsOn)
	assert.Equal(t, []types.FocusArea{
		types.FocusCompanyResolution,
		types.FocusDecisionMakers,
		types.FocusInvestments,
	}, byArea[types.FocusSynthesis].DependsOn)

	assert.Contains(t, byArea[types.FocusDecisionMakers].SubQuestion, "Acme Corp")
	assert.Greater(t, plan.Complexity, 0.0)
	assert.LessOrEqual(t, plan.Complexity, 1.0)
}

func TestDecomposeChitChat(t *testing.T) {
	d := NewDecomposer(nil)
	plan := d.Decompose(&types.Question{
		Organization:     "Acme Corp",
		Text:             "Hello! How is everything going today?",
		IncludeSynthesis: true,
	})

	require.True(t, plan.ChitChat)
	require.Len(t, plan.Focuses, 1)
	assert.Equal(t, types.FocusSynthesis, plan.Focuses[0].Area)
	assert.Empty(t, plan.Focuses[0].DependsOn)
	assert.Contains(t, plan.Focuses[0].SubQuestion, "Hello! How is everything going today?")
	assert.Equal(t, StrategySequential, plan.Strategy)
}

func TestDecomposePinnedFocus(t *testing.T) {
	d := NewDecomposer(nil)
	plan := d.Decompose(&types.Question{
		Organization: "Mercy Health",
		Text:         "Brief me.",
		Focus:        []types.FocusArea{types.FocusGaps, types.FocusDecisionMakers},
	})

	// Pinned areas run in canonical order regardless of request order;
	// resolution is still prepended and synthesis stays out without the
	// flag.
	require.Equal(t, []types.FocusArea{
		types.FocusCompanyResolution,
		types.FocusDecisionMakers,
		types.FocusGaps,
	}, plan.Areas())
	assert.False(t, plan.ChitChat)
}

func TestDecomposeTagEmphasis(t *testing.T) {
	d := NewDecomposer(nil)
	plan := d.Decompose(&types.Question{
		Organization: "Mercy Health",
		Text:         "Who runs technology leadership at Mercy Health?",
		Tags:         []string{"healthcare"},
	})

	var sub string
	for _, f := range plan.Focuses {
		if f.Area == types.FocusDecisionMakers {
			sub = f.SubQuestion
		}
	}
	require.NotEmpty(t, sub)
	assert.Contains(t, sub, "clinical systems, staffing, and compliance")
}

func TestDecomposeStrategyClassification(t *testing.T) {
	d := NewDecomposer(nil)

	single := d.Decompose(&types.Question{
		Organization: "Acme Corp",
		Text:         "Tell me about their executive leadership.",
	})
	require.Equal(t, []types.FocusArea{
		types.FocusCompanyResolution,
		types.FocusDecisionMakers,
	}, single.Areas())
	assert.Equal(t, StrategySequential, single.Strategy)

	multi := d.Decompose(&types.Question{
		Organization: "Acme Corp",
		Text:         "Cover leadership and funding history.",
	})
	require.Len(t, multi.Focuses, 3)
	assert.Equal(t, StrategyHybrid, multi.Strategy)
}

func TestDecomposeGapKeywords(t *testing.T) {
	d := NewDecomposer(nil)
	plan := d.Decompose(&types.Question{
		Organization: "Mercy Health",
		Text:         "What pain points and staffing shortages is Mercy Health facing?",
	})
	assert.Contains(t, plan.Areas(), types.FocusGaps)
	assert.NotContains(t, plan.Areas(), types.FocusInvestments)
}

// 同一问题文本与标签集合必须得到完全相同的计划。
func TestDecomposeDeterministic(t *testing.T) {
	words := []string{
		"who", "leadership", "investment", "funding", "gap", "challenge",
		"team", "portfolio", "shortage", "about", "hello", "plans",
		"acquisition", "executive", "roadmap",
	}
	tagPool := []string{"healthcare", "fintech", "manufacturing"}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "words")
		var parts []string
		for i := 0; i < n; i++ {
			parts = append(parts, rapid.SampledFrom(words).Draw(rt, "word"))
		}
		text := strings.Join(parts, " ")

		var tags []string
		for i := rapid.IntRange(0, 2).Draw(rt, "tags"); i > 0; i-- {
			tags = append(tags, rapid.SampledFrom(tagPool).Draw(rt, "tag"))
		}

		q := &types.Question{
			Organization:     "Acme Corp",
			Text:             text,
			Tags:             tags,
			IncludeSynthesis: rapid.Bool().Draw(rt, "synthesis"),
		}

		d := NewDecomposer(nil)
		first := d.Decompose(q)
		second := d.Decompose(q)
		if !reflect.DeepEqual(first, second) {
			rt.Fatalf("plans diverged for %q: %+v vs %+v", text, first, second)
		}

		// 解析恒为首（寒暄除外），综述只能在尾部。
		areas := first.Areas()
		if !first.ChitChat && areas[0] != types.FocusCompanyResolution {
			rt.Fatalf("company resolution not first in %v", areas)
		}
		for i, area := range areas {
			if area == types.FocusSynthesis && i != len(areas)-1 {
				rt.Fatalf("synthesis not last in %v", areas)
			}
		}
	})
}
