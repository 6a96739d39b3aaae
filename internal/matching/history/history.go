// internal/matching/history/history.go
package history

import (
	"strings"

	"grantmatch-workers/internal/models"
)

// Adjustment deltas. The rejected-industry penalty is the only subtractive
// rule in the whole engine and applies at most once regardless of how many
// rejected tags overlap.
const (
	SuccessIndustryBoost = 15
	SuccessAudienceBoost = 10
	RejectedPenalty      = -10
)

// Adjust applies a profile's own past outcomes to a base rule score.
// Opportunities sharing an industry tag with a past success are boosted, as
// are those sharing a target-audience tag; sharing an industry tag with a
// past rejection costs a single penalty. The result is not clamped here —
// clamping happens once, at persist or display time.
func Adjust(baseScore int, baseReasons []string, past []models.OutcomeRecord, opp *models.Opportunity) (int, []string) {
	score := baseScore
	reasons := append([]string(nil), baseReasons...)

	successIndustries := make(map[string]bool)
	successAudiences := make(map[string]bool)
	rejectedIndustries := make(map[string]bool)
	for _, rec := range past {
		switch rec.Outcome {
		case models.OutcomeSuccessful:
			addLowered(successIndustries, rec.IndustryTags)
			addLowered(successAudiences, rec.AudienceTags)
		case models.OutcomeRejected:
			addLowered(rejectedIndustries, rec.IndustryTags)
		}
	}

	industryHit := sharesTag(successIndustries, opp.IndustryTags)
	audienceHit := sharesTag(successAudiences, opp.AudienceTags)
	if industryHit {
		score += SuccessIndustryBoost
	}
	if audienceHit {
		score += SuccessAudienceBoost
	}
	// One reason covers both boosts to avoid duplicate messaging.
	if industryHit || audienceHit {
		reasons = append(reasons, "Similar to a grant you previously won")
	}

	if sharesTag(rejectedIndustries, opp.IndustryTags) {
		score += RejectedPenalty
		reasons = append(reasons, "Similar industry to a past unsuccessful application")
	}

	return score, reasons
}

func addLowered(set map[string]bool, tags []string) {
	for _, tag := range tags {
		set[strings.ToLower(tag)] = true
	}
}

func sharesTag(set map[string]bool, tags []string) bool {
	for _, tag := range tags {
		if set[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}
