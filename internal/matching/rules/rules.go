// internal/matching/rules/rules.go
package rules

import (
	"fmt"
	"strings"

	"grantmatch-workers/internal/models"
)

// Category weights. Evaluation is additive and independent; no category
// subtracts and no category short-circuits another.
const (
	IndustryPoints  = 30
	OwnershipPoints = 25
	GeographyPoints = 20
	StagePoints     = 15
	RevenuePoints   = 10
	OpenBaseline    = 5
)

// Score evaluates a profile against an opportunity and returns the additive
// rule score with one reason string per category that fired. Absent profile
// fields or empty tag sets silently skip their category. The function is
// pure; category order only affects the order of the reasons.
func Score(profile *models.Profile, opp *models.Opportunity) (int, []string) {
	score := 0
	var reasons []string

	if pts, reason := industryFit(profile, opp); pts > 0 {
		score += pts
		reasons = append(reasons, reason)
	}

	for _, hit := range ownershipFit(profile, opp) {
		score += hit.points
		reasons = append(reasons, hit.reason)
	}

	if pts, reason := geographyFit(profile, opp); pts > 0 {
		score += pts
		reasons = append(reasons, reason)
	}

	if pts, reason := stageFit(profile, opp); pts > 0 {
		score += pts
		reasons = append(reasons, reason)
	}

	if pts, reason := revenueFit(profile, opp); pts > 0 {
		score += pts
		reasons = append(reasons, reason)
	}

	if opp.IsOpen() {
		score += OpenBaseline
		reasons = append(reasons, "Currently accepting applications")
	}

	return score, reasons
}

type categoryHit struct {
	points int
	reason string
}

// industryFit awards points when any industry tag contains, or is contained
// by, the profile's industry string. Skipped when either side is absent.
func industryFit(profile *models.Profile, opp *models.Opportunity) (int, string) {
	if profile.Industry == "" || len(opp.IndustryTags) == 0 {
		return 0, ""
	}
	industry := strings.ToLower(profile.Industry)
	for _, tag := range opp.IndustryTags {
		t := strings.ToLower(tag)
		if strings.Contains(t, industry) || strings.Contains(industry, t) {
			return IndustryPoints, fmt.Sprintf("Industry match: %s", tag)
		}
	}
	return 0, ""
}

// ownershipFit checks woman-owned and minority-owned independently; both
// bonuses can fire for the same opportunity.
func ownershipFit(profile *models.Profile, opp *models.Opportunity) []categoryHit {
	var hits []categoryHit
	if isTrue(profile.WomanOwned) && anyTagContains(opp.AudienceTags, "woman", "women") {
		hits = append(hits, categoryHit{OwnershipPoints, "Targets women-owned businesses"})
	}
	if isTrue(profile.MinorityOwned) && anyTagContains(opp.AudienceTags, "minority") {
		hits = append(hits, categoryHit{OwnershipPoints, "Targets minority-owned businesses"})
	}
	return hits
}

func geographyFit(profile *models.Profile, opp *models.Opportunity) (int, string) {
	if len(opp.GeographyTags) == 0 {
		return 0, ""
	}
	for _, loc := range []string{profile.Region, profile.Country} {
		if loc == "" {
			continue
		}
		if anyTagContains(opp.GeographyTags, loc) {
			return GeographyPoints, fmt.Sprintf("Available in %s", loc)
		}
	}
	return 0, ""
}

// stageFit bands years-in-business into exactly one stage and matches the
// band's keywords against the opportunity's stage tags. Unknown years skips
// the category entirely.
func stageFit(profile *models.Profile, opp *models.Opportunity) (int, string) {
	if !profile.HasYears() || len(opp.StageTags) == 0 {
		return 0, ""
	}

	var keywords []string
	var label string
	switch years := profile.YearsInBusiness; {
	case years <= 2:
		keywords, label = []string{"startup", "early"}, "startup-stage"
	case years <= 5:
		keywords, label = []string{"growth", "emerging"}, "growth-stage"
	default:
		keywords, label = []string{"established", "mature"}, "established"
	}

	if anyTagContains(opp.StageTags, keywords...) {
		return StagePoints, fmt.Sprintf("Suited to %s businesses", label)
	}
	return 0, ""
}

func revenueFit(profile *models.Profile, opp *models.Opportunity) (int, string) {
	if profile.RevenueBracket == "" || len(opp.AudienceTags) == 0 {
		return 0, ""
	}
	if anyTagContains(opp.AudienceTags, profile.RevenueBracket) {
		return RevenuePoints, fmt.Sprintf("Matches revenue bracket %s", profile.RevenueBracket)
	}
	return 0, ""
}

// anyTagContains reports whether any tag case-insensitively contains one of
// the given substrings.
func anyTagContains(tags []string, substrs ...string) bool {
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, s := range substrs {
			if s != "" && strings.Contains(t, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
