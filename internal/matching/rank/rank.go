// internal/matching/rank/rank.go
package rank

import (
	"math"
	"sort"

	"grantmatch-workers/internal/models"
)

// Blend weights for the combined display score.
const (
	RuleWeight = 0.6
	AIWeight   = 0.4
)

// Candidate is one opportunity entering the ranking, carrying its clamped
// rule score and the externally supplied success probability. HasAIScore is
// false when the provider was unavailable for this pair; the rule score then
// stands alone — the candidate is never zeroed out.
type Candidate struct {
	Opportunity models.Opportunity `json:"opportunity"`
	RuleScore   int                `json:"ruleScore"`
	Reasons     []string           `json:"reasons,omitempty"`
	AIScore     int                `json:"aiScore,omitempty"`
	HasAIScore  bool               `json:"hasAiScore"`
	Combined    int                `json:"combinedScore"`
}

// Rank computes combined scores and orders candidates descending. The sort
// is stable: candidates with equal combined scores keep their input order,
// which is the documented tie-break (callers supply input in a meaningful
// default order, e.g. soonest deadline first). Truncation to limit happens
// after sorting, never before; limit <= 0 means no cap.
func Rank(cands []Candidate, limit int) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)

	for i := range ranked {
		ranked[i].Combined = Combine(ranked[i].RuleScore, ranked[i].AIScore, ranked[i].HasAIScore)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Combine blends a rule score with an AI success probability. Inputs are
// expected in [0,100]; with both in range the result is in [0,100] with no
// further clamping needed. A missing AI score falls back to the rule score
// alone rather than defaulting the probability to zero.
func Combine(ruleScore, aiScore int, hasAI bool) int {
	if !hasAI {
		return ruleScore
	}
	return int(math.Round(float64(ruleScore)*RuleWeight + float64(aiScore)*AIWeight))
}
