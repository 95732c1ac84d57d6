package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/intelflow/provider"
	"github.com/BaSui01/intelflow/types"
)

func TestCompanyResolverResolvesFromSearch(t *testing.T) {
	var capturedQuery string
	searcher := newMockSearcher("tavily", func(_ context.Context, req *provider.SearchRequest) (*provider.SearchResponse, error) {
		capturedQuery = req.Query
		return &provider.SearchResponse{Results: []types.SourceDocument{
			{
				Title:    "Mercy Health | LinkedIn",
				URL:      "https://www.linkedin.com/company/mercy-health",
				Provider: "tavily",
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			},
			{
				Title:    "Mercy Health — About Us",
				URL:      "https://www.mercyhealth.example/about",
				Snippet:  "Mercy Health operates 14 hospitals across the region.",
				Provider: "tavily",
				Origin:   types.OriginSearch,
				Method:   types.MethodSnippet,
			},
		}}, nil
	})

	agent := NewCompanyResolverAgent(newTestDeps(searcher), Config{})
	task := &Task{
		Question: types.Question{Organization: "Mercy Health", Text: "who runs IT at Mercy Health?"},
		Chain:    []string{"tavily", "linkedin"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.FocusCompanyResolution, result.Focus)
	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"tavily"}, result.ProvidersTried,
		"a sufficient search hit ends the chain before the directory")
	assert.Contains(t, capturedQuery, "official website")

	require.NotNil(t, result.Organization)
	assert.Equal(t, "Mercy Health", result.Organization.Name)
	assert.Equal(t, "mercyhealth.example", result.Organization.Domain,
		"aggregator hosts never count as the organization's own domain")
	assert.Contains(t, result.Organization.Description, "14 hospitals")
	assert.InDelta(t, 0.35, result.Organization.Confidence, 1e-9,
		"snippet quality x search authority, single provider")
	assert.False(t, result.FinishedAt.IsZero())
}

func TestCompanyResolverEscalatesToDirectory(t *testing.T) {
	searcher := newMockSearcher("tavily", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return nil, types.NewError(types.ErrUpstreamError, "bad gateway").WithProvider("tavily")
	})

	directory := newMockDirectory("linkedin")
	directory.lookupFn = func(_ context.Context, req *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error) {
		assert.Equal(t, "mercy.example", req.Domain, "the org name itself serves as the domain hint")
		return &provider.OrgLookupResponse{Profile: &types.OrganizationProfile{
			Name:     "Mercy Health System",
			Domain:   "mercy.example",
			Industry: "Hospitals and Health Care",
			Sources: []types.SourceDocument{{
				Title:    "Mercy Health System",
				URL:      "https://www.linkedin.com/company/mercy-health",
				Provider: "linkedin",
				Origin:   types.OriginDirectory,
				Method:   types.MethodStructured,
			}},
		}}, nil
	}

	agent := NewCompanyResolverAgent(newTestDeps(searcher, directory), Config{})
	task := &Task{
		Question: types.Question{Organization: "mercy.example", Text: "tell me about mercy.example"},
		Chain:    []string{"tavily", "linkedin"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, types.ResultSufficient, result.Status)
	assert.Equal(t, []string{"tavily", "linkedin"}, result.ProvidersTried,
		"the failed search provider still counts as an attempt")

	require.NotNil(t, result.Organization)
	assert.Equal(t, "Mercy Health System", result.Organization.Name)
	assert.Equal(t, "Hospitals and Health Care", result.Organization.Industry)
	assert.InDelta(t, 0.76, result.Organization.Confidence, 1e-9,
		"structured quality x directory authority, single provider")
}

func TestCompanyResolverNoProvidersConfigured(t *testing.T) {
	agent := NewCompanyResolverAgent(newTestDeps(), Config{})
	task := &Task{
		Question: types.Question{Organization: "Mercy Health"},
		Chain:    []string{"tavily", "linkedin"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestCompanyResolverAllProvidersFail(t *testing.T) {
	searcher := newMockSearcher("tavily", func(_ context.Context, _ *provider.SearchRequest) (*provider.SearchResponse, error) {
		return nil, types.NewError(types.ErrUpstreamError, "bad gateway").WithProvider("tavily")
	})
	directory := newMockDirectory("linkedin")
	directory.lookupFn = func(_ context.Context, _ *provider.OrgLookupRequest) (*provider.OrgLookupResponse, error) {
		return nil, types.NewError(types.ErrProviderRateLimited, "429").WithProvider("linkedin")
	}

	agent := NewCompanyResolverAgent(newTestDeps(searcher, directory), Config{})
	task := &Task{
		Question: types.Question{Organization: "mercy.example"},
		Chain:    []string{"tavily", "linkedin"},
	}

	result, err := agent.Execute(context.Background(), task)
	require.NoError(t, err, "provider failures are absorbed, not returned")

	assert.Equal(t, types.ResultFailed, result.Status)
	assert.Contains(t, result.FailureReason, "all providers in chain failed")
	assert.Nil(t, result.Organization)
}

func TestDeriveDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.mercyhealth.example/about", "mercyhealth.example"},
		{"https://careers.mercy.example/jobs", "careers.mercy.example"},
		{"https://www.linkedin.com/company/mercy", ""},
		{"https://en.wikipedia.org/wiki/Mercy", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deriveDomain(tt.url), tt.url)
	}
}

func TestDomainHint(t *testing.T) {
	withDomain := &types.OrganizationProfile{Domain: "mercy.example"}

	assert.Equal(t, "mercy.example", domainHint("Mercy Health", withDomain),
		"an accumulated profile domain wins")
	assert.Equal(t, "mercy.example", domainHint("Mercy.Example", nil),
		"a domain-shaped organization name is usable directly")
	assert.Equal(t, "", domainHint("Mercy Health", nil))
	assert.Equal(t, "", domainHint("Mercy Health Inc.", nil),
		"names with spaces are never domains")
}
