// internal/models/outcome.go
package models

// Application outcome values.
const (
	OutcomePending    = "pending"
	OutcomeSuccessful = "successful"
	OutcomeRejected   = "rejected"
)

// OutcomeRecord is one completed-application outcome for a
// (profile, opportunity) pair. The tag sets of the outcome's opportunity are
// denormalized onto the record so the historical adjuster needs a single
// read per profile. Read-only to the matching engine.
type OutcomeRecord struct {
	ProfileID     string   `json:"profileId"`
	OpportunityID string   `json:"opportunityId"`
	Outcome       string   `json:"outcome"` // "pending", "successful", "rejected"
	IndustryTags  []string `json:"industryTags,omitempty"`
	AudienceTags  []string `json:"targetAudienceTags,omitempty"`
}
