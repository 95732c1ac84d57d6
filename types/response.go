package types

// Response is the structured output contract consumed by the surrounding
// CRM/report glue. Field names and the status vocabulary are load-bearing;
// downstream consumers key on them.
type Response struct {
	Organization     string              `json:"organization"`
	FocusAreas       []string            `json:"focus_areas"`
	DecisionMakers   []ResponsePerson    `json:"decision_makers"`
	Investments      []ResponseDeal      `json:"investments"`
	Gaps             []ResponseGap       `json:"gaps"`
	Sources          []ResponseSource    `json:"sources"`
	Synthesis        *string             `json:"synthesis"`
	Status           RunStatus           `json:"status"`
	MeetingReadiness *MeetingReadiness   `json:"meeting_readiness,omitempty"`
}

// ResponsePerson is the flattened decision-maker row of the contract. The
// source_url points at the highest-authority source backing the entity.
type ResponsePerson struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	ProfileURL string  `json:"profile_url,omitempty"`
	SourceURL  string  `json:"source_url"`
	Confidence float64 `json:"confidence"`
}

// ResponseDeal is the flattened investment row.
type ResponseDeal struct {
	Company    string  `json:"company"`
	Amount     string  `json:"amount,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Date       string  `json:"date,omitempty"`
	SourceURL  string  `json:"source_url"`
	Confidence float64 `json:"confidence"`
}

// ResponseGap is the flattened gap row.
type ResponseGap struct {
	Statement   string  `json:"statement"`
	EvidenceURL string  `json:"evidence_url"`
	Rationale   string  `json:"rationale"`
	Confidence  float64 `json:"confidence"`
}

// ResponseSource is one deduplicated evidence source.
type ResponseSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MeetingReadiness scores how ready a sales conversation is, derived only
// from the structured results (never from synthesis prose). Components cap
// at fit 40, access 30, need 20, timing 10; Score is their sum.
type MeetingReadiness struct {
	Score  int `json:"score"`
	Fit    int `json:"fit"`
	Access int `json:"access"`
	Need   int `json:"need"`
	Timing int `json:"timing"`
}
