package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
)

func TestInvestmentAgentSearchSufficient(t *testing.T) {
	searcher := newMockSearcher("brightdata", func(_ context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
		assert.Contains(t, req.Query, "funding")
		return &provider.SearchResponse{Results: []types.SourceDocument{{
			Title:    "Abbey Capital backs Helix",
			URL:      "https://news.example/abbey-helix",
			Snippet:  "Abbey Capital invested in Helix Diagnostics on 2024-03-15, committing $30 million",
			Provider: "brightdata",
			Origin:   types.OriginSearch,
			Method:   types.MethodSnippet,
		}}}, nil
	})

	agent := NewInvestmentAgent(newTestDeps(searcher), Config{})
	task := &Task{
		Question: types.Question{Organization: "Abbey Capital"},
		Chain:    []string{"brightdata", "tavily", "diffbot"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.FocusInvestments, result.Focus)
	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"brightdata"}, result.ProvidersTried)

	require.Len(t, result.Investments, 1)
	deal := result.Investments[0]
	assert.Equal(t, "Helix Diagnostics", deal.Company)
	assert.Equal(t, "$30 million", deal.Amount)
	assert.Equal(t, "USD", deal.Currency)
	assert.Equal(t, "2024-03-15", deal.Date)
	assert.InDelta(t, 0.35, deal.Confidence, 1e-9)
}

func TestInvestmentAgentEscalatesToExtractor(t *testing.T) {
	searcher := newMockSearcher("tavily", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return &provider.SearchResponse{Results: []types.SourceDocument{{
			Title:    "Abbey Capital quarterly letter",
			URL:      "https://abbey.example/letter",
			Snippet:  "Our allocation strategy remains unchanged this quarter.",
			Provider: "tavily",
			Origin:   types.OriginSearch,
			Method:   types.MethodSnippet,
		}}}, nil
	})

	extractor := newMockExtractor("diffbot", func(_ context.Context, req *provider.ExtractRequest) (*provider.ExtractResponse, error) {
		assert.Equal(t, []string{"https://abbey.example/letter"}, req.URLs)
		return &provider.ExtractResponse{Pages: []provider.ExtractedPage{{
			Document: types.SourceDocument{
				Title:      "Abbey Capital quarterly letter",
				URL:        "https://abbey.example/letter",
				RawContent: "In March 2024 we acquired Meridian Clinical for USD 45 million.",
				Provider:   "diffbot",
				Origin:     types.OriginExtraction,
				Method:     types.MethodStructured,
			},
		}}}, nil
	})

	agent := NewInvestmentAgent(newTestDeps(searcher, extractor), Config{})
	task := &Task{
		Question: types.Question{Organization: "Abbey Capital"},
		Chain:    []string{"tavily", "diffbot"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"tavily", "diffbot"}, result.ProvidersTried,
		"a snippet with no amounts is below threshold, so the chain escalates")

	require.Len(t, result.Investments, 1)
	assert.Equal(t, "Meridian Clinical", result.Investments[0].Company)
	assert.Equal(t, "USD45 million", result.Investments[0].Amount)
	assert.Equal(t, "2024-03", result.Investments[0].Date)
}

func TestInvestmentAgentNothingFound(t *testing.T) {
	searcher := newMockSearcher("tavily", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return &provider.SearchResponse{}, nil
	})

	agent := NewInvestmentAgent(newTestDeps(searcher), Config{})
	task := &Task{
		Question: types.Question{Organization: "Abbey Capital"},
		Chain:    []string{"tavily"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.ResultInsufficient, result.Status)
	assert.Empty(t, result.Investments)
	assert.NotEmpty(t, result.FollowUps, "an insufficient result suggests what to ask next")
	assert.Empty(t, result.FailureReason)
}
