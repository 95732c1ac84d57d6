package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/intelflow/types"
)

func searchSrc(provider, url string) types.SourceDocument {
	return types.SourceDocument{Provider: provider, URL: url, Title: url, Origin: types.OriginSearch, Method: types.MethodSnippet}
}

func directorySrc(provider, url string) types.SourceDocument {
	return types.SourceDocument{Provider: provider, URL: url, Title: url, Origin: types.OriginDirectory, Method: types.MethodStructured}
}

func TestMergeDecisionMakers_AuthorityWinsConflicts(t *testing.T) {
	m := NewMerger(nil)

	fromSearch := types.DecisionMaker{
		Name:    "Sarah Chen",
		Title:   "CIO",
		Sources: []types.SourceDocument{searchSrc("tavily", "https://news.example/cio")},
	}
	fromDirectory := types.DecisionMaker{
		Name:       "sarah chen",
		Title:      "Chief Investment Officer",
		ProfileURL: "https://linkedin.com/in/sarahchen",
		Sources:    []types.SourceDocument{directorySrc("linkedin", "https://linkedin.com/in/sarahchen")},
	}

	out := m.MergeDecisionMakers(
		[]types.DecisionMaker{fromSearch},
		[]types.DecisionMaker{fromDirectory},
	)

	require.Len(t, out, 1, "same person must collapse to one record")
	got := out[0]
	assert.Equal(t, "Chief Investment Officer", got.Title, "directory title must win")
	assert.Equal(t, []string{"CIO"}, got.AltTitles, "losing title must survive as alternate")
	assert.Equal(t, "https://linkedin.com/in/sarahchen", got.ProfileURL)
	assert.Len(t, got.Sources, 2, "sources must union")

	// 两家提供商 + 结构化目录记录: 0.8 × 0.95 × 1.1
	assert.InDelta(t, 0.8*0.95*1.1, got.Confidence, 1e-9)
}

func TestMergeDecisionMakers_DropsUnusableRecords(t *testing.T) {
	m := NewMerger(nil)

	out := m.MergeDecisionMakers([]types.DecisionMaker{
		{Name: "", Title: "CEO", Sources: []types.SourceDocument{searchSrc("tavily", "https://a.example")}},
		{Name: "No Evidence", Title: "CFO"},
		{Name: "Kept Person", Title: "COO", Sources: []types.SourceDocument{searchSrc("tavily", "https://b.example")}},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "Kept Person", out[0].Name)
}

func TestMergeDecisionMakers_OrderedByConfidence(t *testing.T) {
	m := NewMerger(nil)

	weak := types.DecisionMaker{Name: "Weak Signal", Title: "Analyst",
		Sources: []types.SourceDocument{searchSrc("tavily", "https://w.example")}}
	strong := types.DecisionMaker{Name: "Strong Signal", Title: "CEO",
		Sources: []types.SourceDocument{directorySrc("linkedin", "https://s.example")}}

	out := m.MergeDecisionMakers([]types.DecisionMaker{weak, strong})
	require.Len(t, out, 2)
	assert.Equal(t, "Strong Signal", out[0].Name)
	assert.Equal(t, "Weak Signal", out[1].Name)
}

func TestMergeInvestments_MonthPrecisionCollapse(t *testing.T) {
	m := NewMerger(nil)

	fromNews := types.Investment{
		Company: "Acme Robotics",
		Amount:  "$2.5M",
		Date:    "2025-03-05",
		Sources: []types.SourceDocument{searchSrc("tavily", "https://news.example/round")},
	}
	fromCrawl := types.Investment{
		Company:  "ACME Robotics",
		Amount:   "2.5 million USD",
		Currency: "USD",
		Date:     "2025-03-28",
		Sources: []types.SourceDocument{{
			Provider: "brightdata", URL: "https://filings.example/acme", Title: "filing",
			Origin: types.OriginExtraction, Method: types.MethodStructured,
		}},
	}
	laterRound := types.Investment{
		Company: "Acme Robotics",
		Amount:  "$10M",
		Date:    "2025-06-01",
		Sources: []types.SourceDocument{searchSrc("tavily", "https://news.example/series-b")},
	}

	out := m.MergeInvestments([]types.Investment{fromNews, fromCrawl, laterRound})
	require.Len(t, out, 2, "same month collapses, different month stays distinct")

	// 抽取来源权威度更高, 其金额与日期胜出
	merged := out[0]
	if merged.Date == "2025-06-01" {
		merged = out[1]
	}
	assert.Equal(t, "2.5 million USD", merged.Amount)
	assert.Equal(t, "USD", merged.Currency)
	assert.Equal(t, "2025-03-28", merged.Date)
	assert.Equal(t, []string{"$2.5M"}, merged.AltAmounts)
	assert.Len(t, merged.Sources, 2)
}

func TestMergeGaps_StatementKey(t *testing.T) {
	m := NewMerger(nil)

	a := types.Gap{
		Statement:   "No cloud migration partner announced",
		EvidenceURL: "https://a.example",
		Sources:     []types.SourceDocument{searchSrc("tavily", "https://a.example")},
	}
	b := types.Gap{
		Statement:   "no cloud migration partner announced!",
		EvidenceURL: "https://b.example",
		Rationale:   "annual report mentions in-house IT only",
		Sources:     []types.SourceDocument{searchSrc("brightdata", "https://b.example")},
	}

	out := m.MergeGaps([]types.Gap{a}, []types.Gap{b})
	require.Len(t, out, 1)
	assert.Equal(t, "annual report mentions in-house IT only", out[0].Rationale)
	assert.Len(t, out[0].Sources, 2)
}

func TestMergeOrganizations_PicksBestProfile(t *testing.T) {
	m := NewMerger(nil)

	weak := types.OrganizationProfile{
		Name:    "Meridian Health",
		Sources: []types.SourceDocument{searchSrc("tavily", "https://hit.example")},
	}
	strong := types.OrganizationProfile{
		Name:      "Meridian Health Systems",
		Domain:    "meridianhealth.example",
		Employees: 4200,
		Sources:   []types.SourceDocument{directorySrc("linkedin", "https://linkedin.com/company/meridian")},
	}

	got := m.MergeOrganizations(weak, strong)
	require.NotNil(t, got)
	assert.Equal(t, "meridianhealth.example", got.Domain)
	assert.Equal(t, 4200, got.Employees)

	assert.Nil(t, m.MergeOrganizations(), "no profiles resolves to nil")
}
