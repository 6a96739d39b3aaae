// internal/models/notification.go
package models

// Notification is the fire-and-forget event emitted when a match score first
// crosses the persistence threshold. Delivery failure is logged and
// swallowed; retries, if any, belong to the transport.
type Notification struct {
	ID            string `json:"id"`
	ProfileID     string `json:"profileId"`
	OpportunityID string `json:"opportunityId"`
	Score         int    `json:"score"`
	Message       string `json:"message"`
	SentAt        string `json:"sentAt,omitempty"`
}
