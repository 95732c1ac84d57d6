package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/intelflow/types"
)

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name     string
		sources  []types.SourceDocument
		expected float64
	}{
		{
			name:     "no sources scores zero",
			sources:  nil,
			expected: 0,
		},
		{
			name: "single search snippet",
			sources: []types.SourceDocument{
				{Provider: "tavily", URL: "https://a.example", Origin: types.OriginSearch, Method: types.MethodSnippet},
			},
			expected: 0.5 * 0.70, // 0.35
		},
		{
			name: "single directory structured",
			sources: []types.SourceDocument{
				{Provider: "linkedin", URL: "https://b.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
			},
			expected: 0.8 * 0.95, // 0.76
		},
		{
			name: "structured extraction outranks sibling snippet",
			sources: []types.SourceDocument{
				{Provider: "diffbot", URL: "https://c.example", Origin: types.OriginExtraction, Method: types.MethodStructured},
				{Provider: "diffbot", URL: "https://d.example", Origin: types.OriginSearch, Method: types.MethodSnippet},
			},
			expected: 0.8 * 0.85, // 同一提供商不触发佐证加成
		},
		{
			name: "second provider adds corroboration boost",
			sources: []types.SourceDocument{
				{Provider: "tavily", URL: "https://a.example", Origin: types.OriginSearch, Method: types.MethodSnippet},
				{Provider: "brightdata", URL: "https://b.example", Origin: types.OriginSearch, Method: types.MethodSnippet},
			},
			expected: 0.5 * 0.70 * 1.1, // 0.385
		},
		{
			name: "confidence caps at one",
			sources: []types.SourceDocument{
				{Provider: "p1", URL: "https://1.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
				{Provider: "p2", URL: "https://2.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
				{Provider: "p3", URL: "https://3.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
				{Provider: "p4", URL: "https://4.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
				{Provider: "p5", URL: "https://5.example", Origin: types.OriginDirectory, Method: types.MethodStructured},
			},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, scorer.Score(tt.sources), 1e-9)
		})
	}
}

func TestScorer_PureFunctionOfSourceSet(t *testing.T) {
	scorer := NewScorer()

	a := types.SourceDocument{Provider: "tavily", URL: "https://a.example", Origin: types.OriginSearch, Method: types.MethodSnippet}
	b := types.SourceDocument{Provider: "diffbot", URL: "https://b.example", Origin: types.OriginExtraction, Method: types.MethodStructured}

	forward := scorer.Score([]types.SourceDocument{a, b})
	reverse := scorer.Score([]types.SourceDocument{b, a})
	assert.Equal(t, forward, reverse, "score must not depend on source order")
}
