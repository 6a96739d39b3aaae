// internal/workers/matching/match-opportunity/handler_test.go
package matchopportunity

import (
	"context"
	"errors"
	"testing"

	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/matching/dispatch"
	"grantmatch-workers/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMatcher struct {
	result     *dispatch.Result
	err        error
	calledWith string
}

func (m *mockMatcher) MatchOpportunity(ctx context.Context, opportunityID string) (*dispatch.Result, error) {
	m.calledWith = opportunityID
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newTestHandler(m Matcher) *Handler {
	return NewHandler(LoadConfig(), m, logger.NewNoOpLogger())
}

func TestExecute(t *testing.T) {
	matcher := &mockMatcher{result: &dispatch.Result{
		Processed: 10,
		Matched:   3,
		Notified:  2,
		Skipped:   6,
		Failed:    1,
	}}
	h := newTestHandler(matcher)

	output, err := h.Execute(context.Background(), &Input{OpportunityID: "opp-1"})
	require.NoError(t, err)

	assert.Equal(t, "opp-1", matcher.calledWith)
	assert.Equal(t, "opp-1", output.OpportunityID)
	assert.Equal(t, 10, output.Processed)
	assert.Equal(t, 3, output.Matched)
	assert.Equal(t, 2, output.Notified)
	assert.NotEmpty(t, output.CompletedAt)
}

func TestExecute_UnknownOpportunity(t *testing.T) {
	h := newTestHandler(&mockMatcher{err: store.ErrNotFound})

	_, err := h.Execute(context.Background(), &Input{OpportunityID: "ghost"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecute_DispatchError(t *testing.T) {
	h := newTestHandler(&mockMatcher{err: errors.New("profiles table unavailable")})

	_, err := h.Execute(context.Background(), &Input{OpportunityID: "opp-1"})
	assert.Error(t, err)
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"opportunityId": "opp-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "opp-1", input.OpportunityID)
}

func TestParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		variables string
	}{
		{"malformed json", `{"opportunityId": `},
		{"missing field", `{}`},
		{"empty id", `{"opportunityId": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(tt.variables)
			assert.Error(t, err)
		})
	}
}
