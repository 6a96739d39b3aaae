// internal/workers/matching/recommend-grants/models.go
package recommendgrants

import (
	"grantmatch-workers/internal/common/validation"
	"grantmatch-workers/internal/matching/rank"
)

// InputSchema is the schema enforced on inbound job variables. The activity
// registry publishes the same required fields for this task type.
var InputSchema = validation.ObjectSchema("profileId")

type Input struct {
	ProfileID string `json:"profileId"`
	Limit     int    `json:"limit,omitempty"`
}

type Output struct {
	ProfileID       string           `json:"profileId"`
	Recommendations []Recommendation `json:"recommendations"`
	Count           int              `json:"count"`
	GeneratedAt     string           `json:"generatedAt"`
}

// Recommendation is the display shape of one ranked candidate.
type Recommendation struct {
	OpportunityID string   `json:"opportunityId"`
	Title         string   `json:"title"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons,omitempty"`
	Deadline      string   `json:"deadline,omitempty"`
}

func toRecommendation(c rank.Candidate) Recommendation {
	rec := Recommendation{
		OpportunityID: c.Opportunity.ID,
		Title:         c.Opportunity.Title,
		Score:         c.Combined,
		Reasons:       c.Reasons,
	}
	if c.Opportunity.Deadline != nil {
		rec.Deadline = c.Opportunity.Deadline.UTC().Format("2006-01-02")
	}
	return rec
}
