package types

import "time"

// FocusState is the per-focus state machine. sufficient, insufficient, and
// failed are terminal; sufficient and insufficient both count as "done" for
// dependency purposes, failed propagates as a degraded result.
type FocusState string

const (
	StatePending      FocusState = "pending"
	StateRunning      FocusState = "running"
	StateSufficient   FocusState = "sufficient"
	StateInsufficient FocusState = "insufficient"
	StateFailed       FocusState = "failed"
)

// Terminal reports whether s is a terminal state.
func (s FocusState) Terminal() bool {
	switch s {
	case StateSufficient, StateInsufficient, StateFailed:
		return true
	}
	return false
}

// Done reports whether s satisfies dependents: any terminal state except
// failed unblocks dependents normally; failed unblocks them too but is
// surfaced to them as a degraded dependency.
func (s FocusState) Done() bool { return s.Terminal() }

// ResultStatus is the quality flag on an AgentResult.
type ResultStatus string

const (
	ResultSufficient   ResultStatus = "sufficient"
	ResultInsufficient ResultStatus = "insufficient"
	ResultFailed       ResultStatus = "failed"
)

// AgentResult is the typed outcome of one focus area.
type AgentResult struct {
	Focus  FocusArea    `json:"focus"`
	Status ResultStatus `json:"status"`

	// Exactly one of the entity slices is populated, matching Focus.
	DecisionMakers []DecisionMaker      `json:"decision_makers,omitempty"`
	Investments    []Investment         `json:"investments,omitempty"`
	Gaps           []Gap                `json:"gaps,omitempty"`
	Organization   *OrganizationProfile `json:"organization,omitempty"`
	Synthesis      string               `json:"synthesis,omitempty"`

	// FollowUps carries 1-3 suggested follow-up sub-questions, populated
	// only when Status is insufficient.
	FollowUps []string `json:"follow_ups,omitempty"`

	// FailureReason explains a failed status (e.g. "all providers failed",
	// "wall-clock budget exceeded").
	FailureReason string `json:"failure_reason,omitempty"`

	// ProvidersTried lists provider names in the order they were attempted,
	// including ones that errored.
	ProvidersTried []string `json:"providers_tried,omitempty"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// EntityCount returns the number of entities in the result, regardless of
// focus. Synthesis results count zero.
func (r *AgentResult) EntityCount() int {
	switch {
	case r == nil:
		return 0
	case len(r.DecisionMakers) > 0:
		return len(r.DecisionMakers)
	case len(r.Investments) > 0:
		return len(r.Investments)
	case len(r.Gaps) > 0:
		return len(r.Gaps)
	case r.Organization != nil:
		return 1
	}
	return 0
}

// Sources returns every source document attached to the result's entities.
func (r *AgentResult) Sources() []SourceDocument {
	if r == nil {
		return nil
	}
	var out []SourceDocument
	for _, d := range r.DecisionMakers {
		out = append(out, d.Sources...)
	}
	for _, i := range r.Investments {
		out = append(out, i.Sources...)
	}
	for _, g := range r.Gaps {
		out = append(out, g.Sources...)
	}
	if r.Organization != nil {
		out = append(out, r.Organization.Sources...)
	}
	return out
}

// RunStatus is the terminal status of a whole WorkflowRun as reported in the
// response contract.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunComplete   RunStatus = "complete"
	RunPartial    RunStatus = "partial"
	RunTimeout    RunStatus = "timeout"
)
