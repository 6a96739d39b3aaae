// internal/workers/matching/match-opportunity/models.go
package matchopportunity

import "grantmatch-workers/internal/common/validation"

// InputSchema is the schema enforced on inbound job variables. The activity
// registry publishes the same required fields for this task type.
var InputSchema = validation.ObjectSchema("opportunityId")

type Input struct {
	OpportunityID string `json:"opportunityId"`
}

type Output struct {
	OpportunityID string `json:"opportunityId"`
	Processed     int    `json:"processed"`
	Matched       int    `json:"matched"`
	Notified      int    `json:"notified"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	CompletedAt   string `json:"completedAt"`
}
