// internal/matching/history/history_test.go
package history

import (
	"testing"

	"grantmatch-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAdjust_NoHistory(t *testing.T) {
	opp := &models.Opportunity{ID: "opp-1", IndustryTags: []string{"Technology"}}

	score, reasons := Adjust(50, []string{"base"}, nil, opp)

	assert.Equal(t, 50, score)
	assert.Equal(t, []string{"base"}, reasons)
}

func TestAdjust_SuccessIndustryBoost(t *testing.T) {
	past := []models.OutcomeRecord{
		{
			ProfileID:     "profile-1",
			OpportunityID: "old-opp",
			Outcome:       models.OutcomeSuccessful,
			IndustryTags:  []string{"technology"},
		},
	}
	opp := &models.Opportunity{ID: "opp-1", IndustryTags: []string{"Technology"}}

	score, reasons := Adjust(60, nil, past, opp)

	assert.Equal(t, 75, score)
	assert.Contains(t, reasons, "Similar to a grant you previously won")
}

func TestAdjust_BothBoostsShareOneReason(t *testing.T) {
	past := []models.OutcomeRecord{
		{
			Outcome:      models.OutcomeSuccessful,
			IndustryTags: []string{"retail"},
			AudienceTags: []string{"women-owned"},
		},
	}
	opp := &models.Opportunity{
		IndustryTags: []string{"Retail"},
		AudienceTags: []string{"Women-Owned"},
	}

	score, reasons := Adjust(40, nil, past, opp)

	assert.Equal(t, 65, score, "industry +15 and audience +10 both apply")
	assert.Len(t, reasons, 1, "the two boosts share a single reason string")
}

func TestAdjust_RejectedPenaltyBoundedToOne(t *testing.T) {
	past := []models.OutcomeRecord{
		{Outcome: models.OutcomeRejected, IndustryTags: []string{"construction", "manufacturing"}},
		{Outcome: models.OutcomeRejected, IndustryTags: []string{"construction"}},
	}
	opp := &models.Opportunity{
		IndustryTags: []string{"Construction", "Manufacturing"},
	}

	score, _ := Adjust(50, nil, past, opp)

	assert.Equal(t, 40, score, "penalty is exactly -10 regardless of overlap count")
}

func TestAdjust_PendingOutcomesIgnored(t *testing.T) {
	past := []models.OutcomeRecord{
		{Outcome: models.OutcomePending, IndustryTags: []string{"technology"}},
	}
	opp := &models.Opportunity{IndustryTags: []string{"Technology"}}

	score, reasons := Adjust(30, nil, past, opp)

	assert.Equal(t, 30, score)
	assert.Empty(t, reasons)
}

func TestAdjust_NotClamped(t *testing.T) {
	past := []models.OutcomeRecord{
		{
			Outcome:      models.OutcomeSuccessful,
			IndustryTags: []string{"technology"},
			AudienceTags: []string{"women-owned"},
		},
	}
	opp := &models.Opportunity{
		IndustryTags: []string{"Technology"},
		AudienceTags: []string{"women-owned"},
	}

	score, _ := Adjust(95, nil, past, opp)

	assert.Equal(t, 120, score, "clamping is deferred to persist/display time")
	assert.Equal(t, 100, models.ClampScore(score))
}

func TestAdjust_DoesNotMutateBaseReasons(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "base"
	past := []models.OutcomeRecord{
		{Outcome: models.OutcomeSuccessful, IndustryTags: []string{"tech"}},
	}
	opp := &models.Opportunity{IndustryTags: []string{"tech"}}

	_, reasons := Adjust(10, base, past, opp)

	assert.Equal(t, []string{"base"}, base)
	assert.Len(t, reasons, 2)
}
