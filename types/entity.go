package types

import (
	"strings"
	"time"
	"unicode"
)

// ExtractionMethod records how an entity was lifted out of a source.
// Structured extraction (directory records, page-entity objects) is worth
// more than snippet parsing when confidence is computed.
type ExtractionMethod string

const (
	MethodSnippet    ExtractionMethod = "snippet"
	MethodStructured ExtractionMethod = "structured"
)

// SourceOrigin classifies the provider capability a document came through.
// Directory records outrank page extractions, which outrank search hits,
// both for conflict resolution and for confidence weighting.
type SourceOrigin string

const (
	OriginSearch     SourceOrigin = "search"
	OriginExtraction SourceOrigin = "extraction"
	OriginDirectory  SourceOrigin = "directory"
)

// Rank orders origins by authority. Unknown origins rank below search.
func (o SourceOrigin) Rank() int {
	switch o {
	case OriginDirectory:
		return 3
	case OriginExtraction:
		return 2
	case OriginSearch:
		return 1
	default:
		return 0
	}
}

// SourceDocument is one piece of evidence returned by a provider. Never
// mutated after creation; many documents may back one entity.
type SourceDocument struct {
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	Snippet    string           `json:"snippet,omitempty"`
	RawContent string           `json:"raw_content,omitempty"`
	Provider   string           `json:"provider"`
	Origin     SourceOrigin     `json:"origin"`
	Method     ExtractionMethod `json:"method"`
	Retrieved  time.Time        `json:"retrieved,omitempty"`
}

// EntityKind tags the entity union.
type EntityKind string

const (
	KindDecisionMaker EntityKind = "decision_maker"
	KindInvestment    EntityKind = "investment"
	KindGap           EntityKind = "gap"
	KindOrganization  EntityKind = "organization"
)

// DecisionMaker is a named person with buying or allocation authority at the
// target organization.
type DecisionMaker struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	ProfileURL string   `json:"profile_url,omitempty"`
	Location   string   `json:"location,omitempty"`
	AltTitles  []string `json:"alt_titles,omitempty"`

	Sources    []SourceDocument `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// Investment is one allocation, funding event, or portfolio position
// attributed to the target organization.
type Investment struct {
	Company    string   `json:"company"`
	Amount     string   `json:"amount,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD or YYYY-MM
	AltAmounts []string `json:"alt_amounts,omitempty"`

	Sources    []SourceDocument `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// Gap is an evidence-backed statement of an unmet need or opportunity at the
// target organization.
type Gap struct {
	Statement   string `json:"statement"`
	EvidenceURL string `json:"evidence_url"`
	Rationale   string `json:"rationale,omitempty"`

	Sources    []SourceDocument `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// OrganizationProfile is the resolved identity of the target organization:
// canonical name, web domain, and whatever descriptive fields the directory
// provider returned. Downstream foci depend on Domain.
type OrganizationProfile struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	Description string `json:"description,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Employees   int    `json:"employees,omitempty"`

	Sources    []SourceDocument `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// NormalizeKey lowercases s, strips punctuation, and collapses whitespace.
// It is the shared base for every entity merge key.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// MergeKey returns the near-duplicate key for a decision maker: the
// normalized lowercase full name.
func (d DecisionMaker) MergeKey() string { return NormalizeKey(d.Name) }

// MergeKey returns the near-duplicate key for an investment: normalized
// company name plus the date rounded to month precision.
func (i Investment) MergeKey() string {
	return NormalizeKey(i.Company) + "|" + roundDateToMonth(i.Date)
}

// MergeKey returns the near-duplicate key for a gap: the normalized
// statement text.
func (g Gap) MergeKey() string { return NormalizeKey(g.Statement) }

// MergeKey returns the near-duplicate key for an organization profile.
func (o OrganizationProfile) MergeKey() string { return NormalizeKey(o.Name) }

// roundDateToMonth truncates an ISO-ish date string to YYYY-MM. Unparseable
// or empty dates round to the empty string so undated records about the same
// company still collapse together.
func roundDateToMonth(date string) string {
	date = strings.TrimSpace(date)
	if len(date) >= 7 && date[4] == '-' {
		return date[:7]
	}
	if len(date) == 4 && isDigits(date) {
		return date
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
