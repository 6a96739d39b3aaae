// internal/models/opportunity.go
package models

import "time"

// Opportunity lifecycle status values.
const (
	StatusOpen    = "open"
	StatusClosing = "closing"
	StatusClosed  = "closed"
)

// Opportunity is a single funding offer. Curated externally; read-only to
// the matching engine. Tag sets are unordered and matched case-insensitively;
// an empty tag set means "no constraint", not "no match".
type Opportunity struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	Status        string     `json:"status"` // "open", "closing", "closed"
	Deadline      *time.Time `json:"deadline,omitempty"`
	AmountMin     int        `json:"amountMin,omitempty"`
	AmountMax     int        `json:"amountMax,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	IndustryTags  []string   `json:"industryTags,omitempty"`
	GeographyTags []string   `json:"geographyTags,omitempty"`
	AudienceTags  []string   `json:"targetAudienceTags,omitempty"`
	StageTags     []string   `json:"businessStageTags,omitempty"`
}

// IsOpen reports whether the opportunity still accepts applications.
func (o *Opportunity) IsOpen() bool {
	return o.Status == StatusOpen
}
