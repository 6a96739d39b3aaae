// internal/workers/matching/score-match/handler_test.go
package scorematch

import (
	"context"
	"testing"

	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockScorer struct {
	score   int
	reasons []string
	err     error
}

func (m *mockScorer) ScorePair(ctx context.Context, profileID, opportunityID string) (int, []string, error) {
	if m.err != nil {
		return 0, nil, m.err
	}
	return m.score, m.reasons, nil
}

func newTestHandler(m Scorer) *Handler {
	return NewHandler(LoadConfig(), m, logger.NewNoOpLogger())
}

func TestExecute(t *testing.T) {
	h := newTestHandler(&mockScorer{score: 85, reasons: []string{"Industry match: food"}})

	output, err := h.Execute(context.Background(), &Input{ProfileID: "prof-1", OpportunityID: "opp-1"})
	require.NoError(t, err)

	assert.Equal(t, 85, output.Score)
	assert.Equal(t, []string{"Industry match: food"}, output.Reasons)
	assert.Equal(t, "prof-1", output.ProfileID)
	assert.NotEmpty(t, output.ComputedAt)
}

func TestExecute_NoReasonsSerializesEmpty(t *testing.T) {
	h := newTestHandler(&mockScorer{score: 5})

	output, err := h.Execute(context.Background(), &Input{ProfileID: "prof-1", OpportunityID: "opp-1"})
	require.NoError(t, err)
	assert.NotNil(t, output.Reasons)
	assert.Empty(t, output.Reasons)
}

func TestExecute_PairNotFound(t *testing.T) {
	h := newTestHandler(&mockScorer{err: store.ErrNotFound})

	_, err := h.Execute(context.Background(), &Input{ProfileID: "ghost", OpportunityID: "opp-1"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"profileId": "prof-1", "opportunityId": "opp-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "prof-1", input.ProfileID)
	assert.Equal(t, "opp-1", input.OpportunityID)
}

func TestParseInput_MissingField(t *testing.T) {
	_, err := parseInput(`{"profileId": "prof-1"}`)
	assert.Error(t, err)
}
