package guardrails

import (
	"strings"

	"github.com/BaSui01/intelflow/types"
)

// FollowUps returns one to three concrete follow-up sub-questions for a
// focus area that came back insufficient. The suggestions are deterministic
// so repeated runs report the same next steps.
func FollowUps(focus types.FocusArea, organization string) []string {
	org := strings.TrimSpace(organization)
	if org == "" {
		org = "the organization"
	}
	switch focus {
	case types.FocusCompanyResolution:
		return []string{
			"verify the legal name and primary web domain of " + org,
			"search for " + org + " on a professional directory to confirm identity",
		}
	case types.FocusDecisionMakers:
		return []string{
			"search for the " + org + " leadership team page directly",
			"list senior profiles for " + org + " on a professional directory",
			"extract the executives named in recent " + org + " press releases",
		}
	case types.FocusInvestments:
		return []string{
			"search trade press for " + org + " funding or investment announcements",
			"extract deal details from " + org + " press releases and filings",
		}
	case types.FocusGaps:
		return []string{
			"review the " + org + " annual report for stated priorities and unmet needs",
			"search for analyst commentary on " + org + " capability gaps",
		}
	case types.FocusSynthesis:
		return []string{
			"regenerate the summary strictly from the structured findings for " + org,
		}
	default:
		return []string{"refine the question for " + org + " with a narrower focus"}
	}
}
