// internal/workers/matching/score-match/models.go
package scorematch

import "grantmatch-workers/internal/common/validation"

// InputSchema is the schema enforced on inbound job variables. The activity
// registry publishes the same required fields for this task type.
var InputSchema = validation.ObjectSchema("profileId", "opportunityId")

type Input struct {
	ProfileID     string `json:"profileId"`
	OpportunityID string `json:"opportunityId"`
}

type Output struct {
	ProfileID     string   `json:"profileId"`
	OpportunityID string   `json:"opportunityId"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	ComputedAt    string   `json:"computedAt"`
}
