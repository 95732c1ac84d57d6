package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
)

func TestGapAgentFindsSignalledSentences(t *testing.T) {
	searcher := newMockSearcher("brightdata", func(_ context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
		assert.Contains(t, req.Query, "Mercy Health")
		return &provider.SearchResponse{Results: []types.SourceDocument{
			{
				Title:    "Mercy Health Q3 report",
				URL:      "https://report.example/q3",
				Snippet:  "Revenue grew 8%. The network still runs a legacy patient-records platform from 2009.",
				Provider: "brightdata",
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			},
			{
				Title:    "Local news",
				URL:      "https://news.example/staffing",
				Snippet:  "Mercy Health faces a nursing shortage across its rural campuses.",
				Provider: "brightdata",
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			},
			{
				Title:    "Unrelated",
				URL:      "https://news.example/gala",
				Snippet:  "The annual fundraising gala was well attended.",
				Provider: "brightdata",
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			},
		}}, nil
	})

	agent := NewGapAgent(newTestDeps(searcher), Config{})
	task := &Task{
		Question: types.Question{Organization: "Mercy Health"},
		Chain:    []string{"brightdata", "tavily"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.FocusGaps, result.Focus)
	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"brightdata"}, result.ProvidersTried)

	require.Len(t, result.Gaps, 2, "only signalled documents yield gaps")

	var statements []string
	for _, gap := range result.Gaps {
		statements = append(statements, gap.Statement)
		assert.NotEmpty(t, gap.EvidenceURL)
		assert.InDelta(t, 0.35, gap.Confidence, 1e-9)
	}
	assert.Contains(t, statements[0]+statements[1], "legacy")
	assert.Contains(t, statements[0]+statements[1], "nursing shortage")
}

func TestGapAgentEscalatesWhenQuiet(t *testing.T) {
	quiet := newMockSearcher("brightdata", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return &provider.SearchResponse{Results: []types.SourceDocument{{
			Title:    "Mercy Health press",
			URL:      "https://mercy.example/press",
			Snippet:  "Everything is going well.",
			Provider: "brightdata",
			Origin:   types.OriginSearch,
			Method:   types.MethodSnippet,
		}}}, nil
	})
	second := newMockSearcher("tavily", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return &provider.SearchResponse{Results: []types.SourceDocument{{
			Title:    "Analyst note",
			URL:      "https://analyst.example/note",
			Snippet:  "Procurement remains a bottleneck for the hospital group.",
			Provider: "tavily",
			Origin:   types.OriginSearch,
			Method:   types.MethodSnippet,
		}}}, nil
	})

	agent := NewGapAgent(newTestDeps(quiet, second), Config{})
	task := &Task{
		Question: types.Question{Organization: "Mercy Health"},
		Chain:    []string{"brightdata", "tavily"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"brightdata", "tavily"}, result.ProvidersTried)
	require.Len(t, result.Gaps, 1)
	assert.Contains(t, result.Gaps[0].Statement, "bottleneck")
}

func TestGapAgentRequiresSearchCapability(t *testing.T) {
	extractor := newMockExtractor("diffbot", func(_ context.Context, _ *provider.ExtractRequest) (*provider.ExtractResponse, error) {
		return &provider.ExtractResponse{}, nil
	})

	agent := NewGapAgent(newTestDeps(extractor), Config{})
	task := &Task{
		Question: types.Question{Organization: "Mercy Health"},
		Chain:    []string{"diffbot"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.Error(t, err, "a chain with no usable capability is a configuration problem")
	assert.Nil(t, result)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}
