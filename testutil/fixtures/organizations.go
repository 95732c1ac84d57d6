// =============================================================================
// 📦 测试数据工厂 - 情报实体样例
// =============================================================================
// 提供预定义的公司画像、决策人名录与证据文档，用于测试
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/intelflow/types"
)

// Acme Corp 是贯穿测试的目标组织。
const (
	AcmeOrganization = "Acme Corp"
	AcmeDomain       = "acme.example"
)

// =============================================================================
// 📄 证据文档工厂
// =============================================================================

// AcmeAboutDoc 返回官网检索命中，组织解析从中推导域名
func AcmeAboutDoc(providerName string) types.SourceDocument {
	return types.SourceDocument{
		Title:    "Acme Corp",
		URL:      "https://acme.example/about",
		Snippet:  "Acme Corp official website.",
		Provider: providerName,
		Origin:   types.OriginSearch,
		Method:   types.MethodSnippet,
	}
}

// AcmeDealDoc 返回并购新闻命中，投资焦点从中解析交易
func AcmeDealDoc(providerName string) types.SourceDocument {
	return types.SourceDocument{
		Title:    "Acme Corp expands",
		URL:      "https://news.example/acme-deal",
		Snippet:  "Acme Corp acquired Helix Robotics for $45 million on 2024-03-15.",
		Provider: providerName,
		Origin:   types.OriginSearch,
		Method:   types.MethodSnippet,
	}
}

// AcmeOpsDoc 返回运营报道命中，缺口焦点从中提炼痛点
func AcmeOpsDoc(providerName string) types.SourceDocument {
	return types.SourceDocument{
		Title:    "Acme Corp operations report",
		URL:      "https://news.example/acme-ops",
		Snippet:  "Acme Corp faces a staffing shortage across its assembly plants.",
		Provider: providerName,
		Origin:   types.OriginSearch,
		Method:   types.MethodSnippet,
	}
}

// =============================================================================
// 🏢 组织画像工厂
// =============================================================================

// AcmeProfile 返回解析完成的组织画像
func AcmeProfile() *types.OrganizationProfile {
	return &types.OrganizationProfile{
		Name:        AcmeOrganization,
		Domain:      AcmeDomain,
		Description: "Acme Corp official website.",
		Industry:    "Industrial automation",
		Employees:   4800,
		Sources:     []types.SourceDocument{AcmeAboutDoc("tavily")},
		Confidence:  0.8,
	}
}

// AcmeLeadership 返回三位带档案链接的高管，目录来源背书
func AcmeLeadership(providerName string) []types.DecisionMaker {
	rows := [][2]string{
		{"Sarah Chen", "Chief Information Officer"},
		{"Marcus Webb", "Chief Financial Officer"},
		{"Elena Ortiz", "Vice President of Operations"},
	}
	people := make([]types.DecisionMaker, 0, len(rows))
	for i, row := range rows {
		profileURL := fmt.Sprintf("https://linkedin.com/in/person-%d", i+1)
		people = append(people, types.DecisionMaker{
			Name:       row[0],
			Title:      row[1],
			ProfileURL: profileURL,
			Sources: []types.SourceDocument{{
				Title:    row[0] + " | LinkedIn",
				URL:      profileURL,
				Provider: providerName,
				Origin:   types.OriginDirectory,
				Method:   types.MethodStructured,
			}},
		})
	}
	return people
}

// =============================================================================
// ❓ 问题工厂
// =============================================================================

// ResearchQuestion 返回触发解析、决策人、投资与综述四个焦点的研究问题
func ResearchQuestion() *types.Question {
	return &types.Question{
		Organization:     AcmeOrganization,
		Text:             "Who are the decision makers at Acme Corp and what recent investments have they made?",
		IncludeSynthesis: true,
	}
}

// ChitChatQuestion 返回不含任何焦点信号的寒暄问题
func ChitChatQuestion() *types.Question {
	return &types.Question{
		Organization: AcmeOrganization,
		Text:         "hello there, hope your week is going well",
	}
}
