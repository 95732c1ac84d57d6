package agent

import (
	"regexp"
	"strings"

	"github.com/BaSui01/intelflow/types"
)

// Textual entity extraction for unstructured provider output. Search
// snippets and proxied page text carry no structure, so people, amounts,
// and dates are pulled out with conservative patterns: a missed entity
// lowers recall, but a hallucinated one poisons the merge.

// peoplePattern 命中 "Jane Doe, Managing Partner" 或 "John Smith - CIO" 形式。
var peoplePattern = regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+)\s*[,-]\s*([^\n\r|.]{3,80})`)

// moneyPattern 命中 "$30M"、"USD 2.5 million"、"€500k" 等金额写法。
var moneyPattern = regexp.MustCompile(`(?i)(USD|EUR|GBP|US\$|\$|€|£)\s?(\d+(?:[.,]\d+)?)\s?(billion|million|thousand|bn|mn|[bmk])?`)

// datePatterns 按精度从高到低匹配日期；第一个命中生效。
var (
	dateISOPattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})(?:-(\d{2}))?\b`)
	dateMonthPattern = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)
	dateYearPattern  = regexp.MustCompile(`\b(20\d{2})\b`)
)

// investeePatterns 定位投资事件中的对手方公司名。
var investeePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:invested in|invests in|investment in|funding for|acquired|acquires|backs|stake in|round in)\s+([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*){0,3})`),
	regexp.MustCompile(`([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*){0,3})\s+(?:raised|raises|secured|secures|closed|closes)\s`),
}

var monthNumbers = map[string]string{
	"january": "01", "february": "02", "march": "03", "april": "04",
	"may": "05", "june": "06", "july": "07", "august": "08",
	"september": "09", "october": "10", "november": "11", "december": "12",
}

// gapSignals 标记未满足需求的措辞；命中句子成为缺口陈述的候选。
var gapSignals = []string{
	"challenge", "struggl", "legacy", "outdated", "gap", "shortage",
	"lacks", "lacking", "bottleneck", "modernize", "modernization",
	"understaffed", "aging", "pain point", "backlog",
}

// parsePeople 从非结构化文本识别人名与职位。
func parsePeople(text string, doc types.SourceDocument) []types.DecisionMaker {
	var people []types.DecisionMaker
	for _, match := range peoplePattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		title := strings.TrimSpace(match[2])
		if len(strings.Fields(name)) < 2 || len(title) <= 2 {
			continue
		}
		people = append(people, types.DecisionMaker{
			Name:    name,
			Title:   title,
			Sources: []types.SourceDocument{doc},
		})
	}
	return people
}

// parseInvestments 从非结构化文本识别投资事件。没有金额的文本不产出
// 实体；对手方公司缺失时回落到目标组织自身（融资场景）。
func parseInvestments(text, fallbackCompany string, doc types.SourceDocument) []types.Investment {
	money := moneyPattern.FindStringSubmatch(text)
	if money == nil {
		return nil
	}

	company := findInvestee(text)
	if company == "" {
		company = fallbackCompany
	}
	if company == "" {
		return nil
	}

	inv := types.Investment{
		Company:  company,
		Amount:   normalizeAmount(money),
		Currency: normalizeCurrency(money[1]),
		Date:     findDate(text),
		Sources:  []types.SourceDocument{doc},
	}
	return []types.Investment{inv}
}

// parseGap 找出文本里第一个含需求信号的句子作为缺口陈述。
func parseGap(text, organization string, doc types.SourceDocument) *types.Gap {
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, signal := range gapSignals {
			if !strings.Contains(lower, signal) {
				continue
			}
			statement := strings.TrimSpace(sentence)
			if runes := []rune(statement); len(runes) > 240 {
				statement = string(runes[:240])
			}
			return &types.Gap{
				Statement:   statement,
				EvidenceURL: doc.URL,
				Rationale:   "source discusses \"" + signal + "\" in the context of " + organization,
				Sources:     []types.SourceDocument{doc},
			}
		}
	}
	return nil
}

func findInvestee(text string) string {
	for _, pattern := range investeePatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return strings.TrimRight(strings.TrimSpace(match[1]), ".,")
		}
	}
	return ""
}

// findDate 返回归一化日期：YYYY-MM-DD、YYYY-MM 或 YYYY，找不到为空。
func findDate(text string) string {
	if m := dateISOPattern.FindStringSubmatch(text); m != nil {
		if m[3] != "" {
			return m[1] + "-" + m[2] + "-" + m[3]
		}
		return m[1] + "-" + m[2]
	}
	if m := dateMonthPattern.FindStringSubmatch(text); m != nil {
		return m[2] + "-" + monthNumbers[strings.ToLower(m[1])]
	}
	if m := dateYearPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// normalizeAmount 把正则命中的金额还原为紧凑写法，如 "$30M"、"USD 2.5 million"。
func normalizeAmount(match []string) string {
	out := match[1] + match[2]
	if match[3] != "" {
		if len(match[3]) == 1 {
			out += strings.ToUpper(match[3])
		} else {
			out += " " + strings.ToLower(match[3])
		}
	}
	return out
}

func normalizeCurrency(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "$", "US$", "USD":
		return "USD"
	case "€", "EUR":
		return "EUR"
	case "£", "GBP":
		return "GBP"
	}
	return ""
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

// docText 取文档可用于抽取的最完整文本。
func docText(doc types.SourceDocument) string {
	if doc.RawContent != "" {
		return doc.RawContent
	}
	if doc.Snippet != "" {
		return doc.Snippet
	}
	return doc.Title
}
