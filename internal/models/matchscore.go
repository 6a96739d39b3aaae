// internal/models/matchscore.go
package models

import "time"

// MatchScore is the engine's persisted output for one
// (profile, opportunity) pair. At most one live record exists per key;
// recomputation overwrites in place. Records are superseded, never deleted.
type MatchScore struct {
	ProfileID     string    `json:"profileId"`
	OpportunityID string    `json:"opportunityId"`
	Score         int       `json:"score"`
	Reasons       []string  `json:"reasons"`
	Notified      bool      `json:"notified"`
	ComputedAt    time.Time `json:"computedAt"`
}

// ClampScore bounds a score to [0,100]. Applied exactly once, at the point a
// score is persisted or displayed; intermediate rule and history sums stay
// unclamped so stacked boosts remain comparable.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
