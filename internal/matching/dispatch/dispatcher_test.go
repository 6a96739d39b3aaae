// internal/matching/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grantmatch-workers/internal/aiprob"
	"grantmatch-workers/internal/common/config"
	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/models"
	"grantmatch-workers/internal/notify"
	"grantmatch-workers/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory implementation of the persistence contracts.
type fakeStore struct {
	mu            sync.Mutex
	profiles      map[string]models.Profile
	opportunities map[string]models.Opportunity
	outcomes      map[string][]models.OutcomeRecord
	scores        map[string]*models.MatchScore

	failOutcomesFor string
	failUpsertFor   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:      make(map[string]models.Profile),
		opportunities: make(map[string]models.Opportunity),
		outcomes:      make(map[string][]models.OutcomeRecord),
		scores:        make(map[string]*models.MatchScore),
	}
}

func scoreKey(profileID, opportunityID string) string {
	return profileID + "|" + opportunityID
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Profile
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.opportunities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Opportunity
	for _, o := range f.opportunities {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return f.ListOpenOpportunities(ctx)
}

func (f *fakeStore) ListOutcomes(ctx context.Context, profileID string) ([]models.OutcomeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if profileID == f.failOutcomesFor {
		return nil, errors.New("outcomes table unavailable")
	}
	return f.outcomes[profileID], nil
}

func (f *fakeStore) GetMatchScore(ctx context.Context, profileID, opportunityID string) (*models.MatchScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.scores[scoreKey(profileID, opportunityID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpsertMatchScore(ctx context.Context, rec *models.MatchScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ProfileID == f.failUpsertFor {
		return errors.New("match_scores table unavailable")
	}
	key := scoreKey(rec.ProfileID, rec.OpportunityID)
	if existing, ok := f.scores[key]; ok {
		existing.Score = rec.Score
		existing.Reasons = rec.Reasons
		existing.ComputedAt = rec.ComputedAt
		return nil
	}
	cp := *rec
	f.scores[key] = &cp
	return nil
}

func (f *fakeStore) MarkNotified(ctx context.Context, profileID, opportunityID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.scores[scoreKey(profileID, opportunityID)]
	if !ok || rec.Notified {
		return false, nil
	}
	rec.Notified = true
	return true, nil
}

type fakeAI struct {
	scores map[string]int
	err    error
}

func (f *fakeAI) SuccessProbability(ctx context.Context, profile *models.Profile, opp *models.Opportunity) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if s, ok := f.scores[opp.ID]; ok {
		return s, nil
	}
	return 0, aiprob.ErrUnavailable
}

func boolPtr(b bool) *bool { return &b }

func strongProfile(id string) models.Profile {
	return models.Profile{
		ID:              id,
		BusinessName:    "Bloom Bakery",
		Industry:        "Food & Beverage",
		Region:          "Ontario",
		Country:         "Canada",
		YearsInBusiness: 3,
		RevenueBracket:  "100k-500k",
		WomanOwned:      boolPtr(true),
		Email:           id + "@example.com",
	}
}

func weakProfile(id string) models.Profile {
	return models.Profile{
		ID:              id,
		BusinessName:    "Quiet Co",
		Industry:        "Mining",
		Region:          "Nowhere",
		YearsInBusiness: -1,
	}
}

func openOpportunity(id string) models.Opportunity {
	return models.Opportunity{
		ID:            id,
		Title:         "Women in Food Grant",
		Status:        models.StatusOpen,
		IndustryTags:  []string{"food"},
		GeographyTags: []string{"Ontario"},
		AudienceTags:  []string{"women-owned businesses"},
		StageTags:     []string{"growth"},
	}
}

func testDispatcher(fs *fakeStore, ai aiprob.Provider) *Dispatcher {
	if ai == nil {
		ai = &fakeAI{}
	}
	return NewDispatcher(
		Config{
			NotifyThreshold: 70,
			WorkerPoolSize:  4,
			UnitTimeout:     time.Second,
			RecommendLimit:  10,
		},
		fs, fs, fs, fs, fs, ai, nil, logger.NewNoOpLogger(),
	)
}

func TestMatchOpportunity_PersistsStrongMatches(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.profiles["prof-weak"] = weakProfile("prof-weak")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, nil)
	result, err := d.MatchOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	rec, err := fs.GetMatchScore(context.Background(), "prof-strong", "opp-1")
	require.NoError(t, err)
	// 30 industry + 25 woman-owned + 20 geography + 15 stage + 5 open = 95
	assert.Equal(t, 95, rec.Score)
	assert.True(t, rec.Notified)

	_, err = fs.GetMatchScore(context.Background(), "prof-weak", "opp-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "below-threshold pairs are not persisted")
}

func TestMatchOpportunity_RerunDoesNotDuplicate(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, nil)
	ctx := context.Background()

	first, err := d.MatchOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Matched)

	second, err := d.MatchOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Matched)
	assert.Len(t, fs.scores, 1, "rerun upserts in place")
}

func TestMatchOpportunity_UnitFailureContinuesBatch(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-bad"] = strongProfile("prof-bad")
	fs.profiles["prof-good"] = strongProfile("prof-good")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")
	fs.failOutcomesFor = "prof-bad"

	d := testDispatcher(fs, nil)
	result, err := d.MatchOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Matched, "healthy units complete despite the failure")
}

func TestMatchOpportunity_UnknownOpportunity(t *testing.T) {
	d := testDispatcher(newFakeStore(), nil)

	_, err := d.MatchOpportunity(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecommendForProfile_RanksByCombinedScore(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")

	strong := openOpportunity("opp-strong")
	mild := openOpportunity("opp-mild")
	mild.IndustryTags = nil
	mild.AudienceTags = nil
	closed := openOpportunity("opp-closed")
	closed.Status = models.StatusClosed
	fs.opportunities[strong.ID] = strong
	fs.opportunities[mild.ID] = mild
	fs.opportunities[closed.ID] = closed

	d := testDispatcher(fs, &fakeAI{scores: map[string]int{"opp-strong": 80, "opp-mild": 50}})
	ranked, err := d.RecommendForProfile(context.Background(), "prof-1", 10)
	require.NoError(t, err)

	require.Len(t, ranked, 2, "closed opportunities never enter the ranking")
	assert.Equal(t, "opp-strong", ranked[0].Opportunity.ID)
	assert.Equal(t, "opp-mild", ranked[1].Opportunity.ID)
	assert.Greater(t, ranked[0].Combined, ranked[1].Combined)
	assert.True(t, ranked[0].HasAIScore)
}

func TestRecommendForProfile_AIUnavailableFallsBackToRules(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, &fakeAI{err: aiprob.ErrUnavailable})
	ranked, err := d.RecommendForProfile(context.Background(), "prof-1", 10)
	require.NoError(t, err)

	require.Len(t, ranked, 1)
	assert.False(t, ranked[0].HasAIScore)
	assert.Equal(t, ranked[0].RuleScore, ranked[0].Combined, "rule score stands alone")
}

func TestRecommendForProfile_TruncatesAfterRanking(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	for _, id := range []string{"opp-a", "opp-b", "opp-c"} {
		fs.opportunities[id] = openOpportunity(id)
	}

	d := testDispatcher(fs, nil)
	ranked, err := d.RecommendForProfile(context.Background(), "prof-1", 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRecommendForProfile_WritesNothing(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, nil)
	_, err := d.RecommendForProfile(context.Background(), "prof-1", 10)
	require.NoError(t, err)
	assert.Empty(t, fs.scores)
}

func TestRecommendForProfile_HistoryBoostAppliesToRanking(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")
	fs.outcomes["prof-1"] = []models.OutcomeRecord{{
		ProfileID:     "prof-1",
		OpportunityID: "opp-old",
		Outcome:       models.OutcomeSuccessful,
		IndustryTags:  []string{"food"},
	}}

	d := testDispatcher(fs, nil)
	ranked, err := d.RecommendForProfile(context.Background(), "prof-1", 10)
	require.NoError(t, err)

	require.Len(t, ranked, 1)
	// 95 base + 15 success industry boost clamps to 100.
	assert.Equal(t, 100, ranked[0].RuleScore)
}

// stubSES counts deliveries so the exactly-once property is observable at the
// transport boundary, not just in the Result counters.
type stubSES struct {
	mu      sync.Mutex
	sent    int
	sendErr error
}

func (s *stubSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent++
	return &ses.SendEmailOutput{}, nil
}

func (s *stubSES) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

type stubDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *stubDedupe) MarkSent(ctx context.Context, profileID, opportunityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := profileID + "|" + opportunityID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubDedupe) AlreadySentToday(ctx context.Context, profileID, opportunityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[profileID+"|"+opportunityID], nil
}

func emailNotifier(sesStub *stubSES) *notify.Notifier {
	var ncfg config.NotificationConfig
	ncfg.Email.Enabled = true
	ncfg.Email.FromEmail = "matches@grantmatch.example"
	return notify.NewNotifier(ncfg, sesStub, nil, &stubDedupe{}, logger.NewNoOpLogger())
}

func notifyingDispatcher(fs *fakeStore, n *notify.Notifier) *Dispatcher {
	return NewDispatcher(
		Config{
			NotifyThreshold: 70,
			WorkerPoolSize:  4,
			UnitTimeout:     time.Second,
			RecommendLimit:  10,
		},
		fs, fs, fs, fs, fs, &fakeAI{}, n, logger.NewNoOpLogger(),
	)
}

func TestMatchOpportunity_NotifiesExactlyOnceAcrossRuns(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	sesStub := &stubSES{}
	d := notifyingDispatcher(fs, emailNotifier(sesStub))
	ctx := context.Background()

	first, err := d.MatchOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Notified)

	rerun, err := d.MatchOpportunity(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rerun.Matched, "rerun still counts the refreshed match")
	assert.Zero(t, rerun.Notified, "first crossing fires only once")
	assert.Equal(t, 1, sesStub.count(), "exactly one email across both runs")
}

func TestMatchOpportunity_DeliveryFailureKeepsMatch(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	sesStub := &stubSES{sendErr: errors.New("ses throttled")}
	d := notifyingDispatcher(fs, emailNotifier(sesStub))

	result, err := d.MatchOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Zero(t, result.Notified)

	rec, err := fs.GetMatchScore(context.Background(), "prof-strong", "opp-1")
	require.NoError(t, err)
	assert.True(t, rec.Notified, "the first crossing is consumed even when delivery fails")
}

func TestMatchOpportunity_PersistFailureCountsFailed(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")
	fs.failUpsertFor = "prof-strong"

	d := testDispatcher(fs, nil)
	result, err := d.MatchOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Matched)
}

func TestMatchOpportunity_SkipsMalformedProfiles(t *testing.T) {
	fs := newFakeStore()
	fs.profiles[""] = models.Profile{}
	fs.profiles["prof-strong"] = strongProfile("prof-strong")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, nil)
	result, err := d.MatchOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Matched)
}

func TestRecommendForProfile_SkipsMalformedOpportunities(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")
	fs.opportunities[""] = openOpportunity("")

	d := testDispatcher(fs, nil)
	ranked, err := d.RecommendForProfile(context.Background(), "prof-1", 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "opp-1", ranked[0].Opportunity.ID)
}

func TestScorePair(t *testing.T) {
	fs := newFakeStore()
	fs.profiles["prof-1"] = strongProfile("prof-1")
	fs.opportunities["opp-1"] = openOpportunity("opp-1")

	d := testDispatcher(fs, nil)
	score, reasons, err := d.ScorePair(context.Background(), "prof-1", "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 95, score)
	assert.NotEmpty(t, reasons)
}
