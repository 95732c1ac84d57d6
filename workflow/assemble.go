package workflow

import (
	"github.com/BaSui01/intelflow/types"
)

// AssembleResponse flattens whatever results have terminated into the
// output contract. Callers own Status; everything else is derived here.
// Foci that failed or never ran simply contribute nothing — partial runs
// still produce a well-formed document.
func AssembleResponse(run *WorkflowRun) *types.Response {
	results := run.Results()

	resp := &types.Response{
		Organization:   run.Question.Organization,
		FocusAreas:     make([]string, 0, len(run.Plan.Focuses)),
		DecisionMakers: []types.ResponsePerson{},
		Investments:    []types.ResponseDeal{},
		Gaps:           []types.ResponseGap{},
		Sources:        []types.ResponseSource{},
		Status:         run.Status(),
	}
	for _, f := range run.Plan.Focuses {
		resp.FocusAreas = append(resp.FocusAreas, string(f.Area))
	}

	// 解析出的规范名优先于用户输入的组织名。
	if res := results[types.FocusCompanyResolution]; res != nil && res.Organization != nil {
		if res.Organization.Name != "" {
			resp.Organization = res.Organization.Name
		}
	}

	if res := results[types.FocusDecisionMakers]; res != nil {
		for _, dm := range res.DecisionMakers {
			resp.DecisionMakers = append(resp.DecisionMakers, types.ResponsePerson{
				Name:       dm.Name,
				Title:      dm.Title,
				ProfileURL: dm.ProfileURL,
				SourceURL:  bestSourceURL(dm.Sources),
				Confidence: dm.Confidence,
			})
		}
	}

	if res := results[types.FocusInvestments]; res != nil {
		for _, inv := range res.Investments {
			resp.Investments = append(resp.Investments, types.ResponseDeal{
				Company:    inv.Company,
				Amount:     inv.Amount,
				Currency:   inv.Currency,
				Date:       inv.Date,
				SourceURL:  bestSourceURL(inv.Sources),
				Confidence: inv.Confidence,
			})
		}
	}

	if res := results[types.FocusGaps]; res != nil {
		for _, gap := range res.Gaps {
			evidence := gap.EvidenceURL
			if evidence == "" {
				evidence = bestSourceURL(gap.Sources)
			}
			resp.Gaps = append(resp.Gaps, types.ResponseGap{
				Statement:   gap.Statement,
				EvidenceURL: evidence,
				Rationale:   gap.Rationale,
				Confidence:  gap.Confidence,
			})
		}
	}

	if res := results[types.FocusSynthesis]; res != nil && res.Synthesis != "" {
		narrative := res.Synthesis
		resp.Synthesis = &narrative
	}

	resp.Sources = collectSources(run, results)

	if !run.Plan.ChitChat {
		resp.MeetingReadiness = scoreMeetingReadiness(resp)
	}
	return resp
}

// bestSourceURL 取实体证据里权威度最高的来源 URL；并列取先到者。
func bestSourceURL(sources []types.SourceDocument) string {
	best := ""
	bestRank := -1
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		if rank := s.Origin.Rank(); rank > bestRank {
			best = s.URL
			bestRank = rank
		}
	}
	return best
}

// collectSources unions every terminated focus's evidence, deduplicated by
// URL, ordered by plan position then first appearance.
func collectSources(run *WorkflowRun, results map[types.FocusArea]*types.AgentResult) []types.ResponseSource {
	out := []types.ResponseSource{}
	seen := make(map[string]struct{})
	for _, f := range run.Plan.Focuses {
		res := results[f.Area]
		if res == nil {
			continue
		}
		for _, doc := range res.Sources() {
			if doc.URL == "" {
				continue
			}
			if _, dup := seen[doc.URL]; dup {
				continue
			}
			seen[doc.URL] = struct{}{}
			title := doc.Title
			if title == "" {
				title = doc.URL
			}
			out = append(out, types.ResponseSource{Title: title, URL: doc.URL})
		}
	}
	return out
}

// scoreMeetingReadiness derives the 0-100 readiness score from the
// structured rows alone; synthesis prose never feeds it.
func scoreMeetingReadiness(resp *types.Response) *types.MeetingReadiness {
	withProfiles := 0
	for _, dm := range resp.DecisionMakers {
		if dm.ProfileURL != "" {
			withProfiles++
		}
	}
	if withProfiles > 3 {
		withProfiles = 3
	}

	fit := 15 + 5*len(resp.DecisionMakers)
	if fit > 40 {
		fit = 40
	}
	access := 10 * withProfiles
	need := 10 * len(resp.Gaps)
	if need > 20 {
		need = 20
	}
	timing := 5 * len(resp.Investments)
	if timing > 10 {
		timing = 10
	}

	return &types.MeetingReadiness{
		Score:  fit + access + need + timing,
		Fit:    fit,
		Access: access,
		Need:   need,
		Timing: timing,
	}
}
