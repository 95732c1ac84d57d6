package types

import (
	"strings"
	"time"
)

// FocusArea identifies one sub-topic of a business question. Each focus is
// handled by exactly one specialist agent.
type FocusArea string

const (
	FocusCompanyResolution FocusArea = "company_resolution"
	FocusDecisionMakers    FocusArea = "decision_makers"
	FocusInvestments       FocusArea = "investments"
	FocusGaps              FocusArea = "gaps"
	FocusSynthesis         FocusArea = "synthesis"
)

// AllFocusAreas lists every focus area in canonical dependency order.
func AllFocusAreas() []FocusArea {
	return []FocusArea{
		FocusCompanyResolution,
		FocusDecisionMakers,
		FocusInvestments,
		FocusGaps,
		FocusSynthesis,
	}
}

// Valid reports whether f is a known focus area.
func (f FocusArea) Valid() bool {
	switch f {
	case FocusCompanyResolution, FocusDecisionMakers, FocusInvestments, FocusGaps, FocusSynthesis:
		return true
	}
	return false
}

// ParseFocusArea normalizes a user-supplied focus name. Hyphenated spellings
// ("decision-makers") are accepted alongside the canonical snake_case form.
func ParseFocusArea(s string) (FocusArea, bool) {
	f := FocusArea(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return f, f.Valid()
}

// Question is one submitted business question. Immutable once submitted.
type Question struct {
	// Organization is the target organization name, e.g. "Abbey Capital".
	Organization string `json:"organization"`

	// Text is the free-text question.
	Text string `json:"text"`

	// Tags are optional domain tags, e.g. "healthcare", "fintech".
	Tags []string `json:"tags,omitempty"`

	// Focus optionally pins the exact focus areas to run, bypassing
	// keyword detection. company_resolution is still prepended and
	// synthesis still runs last.
	Focus []FocusArea `json:"focus,omitempty"`

	// Budget is the wall-clock budget for the whole run. Zero means the
	// configured default.
	Budget time.Duration `json:"budget,omitempty"`

	// IncludeSynthesis controls whether a synthesis focus is appended.
	// The CLI and API default this to true.
	IncludeSynthesis bool `json:"include_synthesis"`
}

// Validate checks the minimal submission requirements.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Organization) == "" {
		return NewError(ErrInvalidRequest, "organization is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		return NewError(ErrInvalidRequest, "question text is required")
	}
	for _, f := range q.Focus {
		if !f.Valid() {
			return NewError(ErrInvalidRequest, "unknown focus area: "+string(f))
		}
	}
	return nil
}
