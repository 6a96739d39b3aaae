// internal/store/postgres_test.go
package store

import (
	"context"
	"testing"
	"time"

	"grantmatch-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func profileColumns() []string {
	return []string{"id", "business_name", "industry", "region", "country",
		"years_in_business", "revenue_bracket", "woman_owned", "minority_owned",
		"email", "phone"}
}

func TestGetProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").
		WithArgs("prof-1").
		WillReturnRows(sqlmock.NewRows(profileColumns()).
			AddRow("prof-1", "Bloom Bakery", "Food & Beverage", "Ontario", "Canada",
				3, "100k-500k", true, nil, "owner@bloom.example", "555-0101"))

	profile, err := store.GetProfile(context.Background(), "prof-1")
	require.NoError(t, err)

	assert.Equal(t, "prof-1", profile.ID)
	assert.Equal(t, "Food & Beverage", profile.Industry)
	assert.Equal(t, 3, profile.YearsInBusiness)
	require.NotNil(t, profile.WomanOwned)
	assert.True(t, *profile.WomanOwned)
	assert.Nil(t, profile.MinorityOwned, "NULL ownership stays unknown")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_NullYearsMeansUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").
		WithArgs("prof-2").
		WillReturnRows(sqlmock.NewRows(profileColumns()).
			AddRow("prof-2", "Quiet Co", nil, nil, nil, nil, nil, nil, nil, nil, nil))

	profile, err := store.GetProfile(context.Background(), "prof-2")
	require.NoError(t, err)
	assert.Equal(t, -1, profile.YearsInBusiness)
	assert.False(t, profile.HasYears())
}

func TestGetProfile_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM profiles WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(profileColumns()))

	_, err := store.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOpenOpportunities(t *testing.T) {
	store, mock := newMockStore(t)

	deadline := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "title", "status", "deadline",
		"amount_min", "amount_max", "currency", "industry_tags", "geography_tags",
		"audience_tags", "stage_tags"}).
		AddRow("opp-1", "Women in Trade Grant", models.StatusOpen, deadline,
			5000, 25000, "CAD",
			pq.Array([]string{"food", "retail"}), pq.Array([]string{"Ontario"}),
			pq.Array([]string{"women-owned businesses"}), pq.Array([]string{"growth"}))

	mock.ExpectQuery("SELECT (.+) FROM opportunities WHERE status = 'open'").
		WillReturnRows(rows)

	opps, err := store.ListOpenOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, []string{"food", "retail"}, opps[0].IndustryTags)
	require.NotNil(t, opps[0].Deadline)
	assert.True(t, opps[0].Deadline.Equal(deadline))
}

func TestListOutcomes(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"profile_id", "opportunity_id", "outcome",
		"industry_tags", "audience_tags"}).
		AddRow("prof-1", "opp-9", models.OutcomeSuccessful,
			pq.Array([]string{"food"}), pq.Array([]string{"women-owned"})).
		AddRow("prof-1", "opp-10", models.OutcomeRejected,
			pq.Array([]string{"tech"}), pq.Array([]string{}))

	mock.ExpectQuery("SELECT (.+) FROM outcomes WHERE profile_id").
		WithArgs("prof-1").
		WillReturnRows(rows)

	outcomes, err := store.ListOutcomes(context.Background(), "prof-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.OutcomeSuccessful, outcomes[0].Outcome)
	assert.Equal(t, []string{"tech"}, outcomes[1].IndustryTags)
}

func TestUpsertMatchScore(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO match_scores").
		WithArgs("prof-1", "opp-1", 85, pq.Array([]string{"Industry match"}), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertMatchScore(context.Background(), &models.MatchScore{
		ProfileID:     "prof-1",
		OpportunityID: "opp-1",
		Score:         85,
		Reasons:       []string{"Industry match"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotified_FirstCrossing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE match_scores SET notified = true").
		WithArgs("prof-1", "opp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	first, err := store.MarkNotified(context.Background(), "prof-1", "opp-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMarkNotified_AlreadyNotified(t *testing.T) {
	store, mock := newMockStore(t)

	// The conditional WHERE notified = false matches no row the second time.
	mock.ExpectExec("UPDATE match_scores SET notified = true").
		WithArgs("prof-1", "opp-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := store.MarkNotified(context.Background(), "prof-1", "opp-1")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestGetMatchScore(t *testing.T) {
	store, mock := newMockStore(t)

	computedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM match_scores WHERE profile_id").
		WithArgs("prof-1", "opp-1").
		WillReturnRows(sqlmock.NewRows([]string{"profile_id", "opportunity_id",
			"score", "reasons", "notified", "computed_at"}).
			AddRow("prof-1", "opp-1", 85, pq.Array([]string{"Industry match"}), true, computedAt))

	rec, err := store.GetMatchScore(context.Background(), "prof-1", "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 85, rec.Score)
	assert.True(t, rec.Notified)
}
