// internal/matching/dispatch/dispatcher.go

// Package dispatch fans the scoring pipeline out over batches: every profile
// against one opportunity (persist and notify), or every open opportunity
// against one profile (rank for display).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grantmatch-workers/internal/aiprob"
	commonerrors "grantmatch-workers/internal/common/errors"
	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/common/metrics"
	"grantmatch-workers/internal/matching/history"
	"grantmatch-workers/internal/matching/rank"
	"grantmatch-workers/internal/matching/rules"
	"grantmatch-workers/internal/models"
	"grantmatch-workers/internal/notify"
	"grantmatch-workers/internal/store"
)

// Result summarizes an opportunity fan-out run. Failed units are logged and
// counted, never fatal to the batch.
type Result struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Notified  int `json:"notified"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Config bounds the fan-out.
type Config struct {
	NotifyThreshold int
	WorkerPoolSize  int
	UnitTimeout     time.Duration
	RecommendLimit  int
}

// Dispatcher wires the pure scoring core to the stores and side effects.
type Dispatcher struct {
	config        Config
	profiles      store.ProfileStore
	opportunities store.OpportunityStore
	outcomes      store.OutcomeStore
	scores        store.MatchScoreStore
	searcher      store.OpportunitySearcher
	aiProvider    aiprob.Provider
	notifier      *notify.Notifier
	logger        logger.Logger
}

func NewDispatcher(
	cfg Config,
	profiles store.ProfileStore,
	opportunities store.OpportunityStore,
	outcomes store.OutcomeStore,
	scores store.MatchScoreStore,
	searcher store.OpportunitySearcher,
	aiProvider aiprob.Provider,
	notifier *notify.Notifier,
	log logger.Logger,
) *Dispatcher {
	if cfg.WorkerPoolSize < 1 {
		cfg.WorkerPoolSize = 1
	}
	return &Dispatcher{
		config:        cfg,
		profiles:      profiles,
		opportunities: opportunities,
		outcomes:      outcomes,
		scores:        scores,
		searcher:      searcher,
		aiProvider:    aiProvider,
		notifier:      notifier,
		logger:        log,
	}
}

// scorePair runs the full additive pipeline for one (profile, opportunity)
// pair: rule score, then history adjustment. Clamping to [0,100] happens here
// and only here, after both stages.
func (d *Dispatcher) scorePair(ctx context.Context, profile *models.Profile, opp *models.Opportunity) (int, []string, error) {
	base, reasons := rules.Score(profile, opp)

	past, err := d.outcomes.ListOutcomes(ctx, profile.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("load outcomes: %w", err)
	}

	adjusted, reasons := history.Adjust(base, reasons, past, opp)
	return models.ClampScore(adjusted), reasons, nil
}

// MatchOpportunity scores every profile against one opportunity, persisting
// strong matches and notifying each profile the first time its score crosses
// the threshold. Unit failures are logged and the batch continues.
func (d *Dispatcher) MatchOpportunity(ctx context.Context, opportunityID string) (*Result, error) {
	opp, err := d.opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("load opportunity %s: %w", opportunityID, err)
	}

	profiles, err := d.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	result := &Result{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.config.WorkerPoolSize)

	for i := range profiles {
		profile := profiles[i]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.matchUnit(ctx, &profile, opp)

			mu.Lock()
			result.Processed++
			switch outcome {
			case unitMatched:
				result.Matched++
			case unitNotified:
				result.Matched++
				result.Notified++
			case unitSkipped:
				result.Skipped++
			case unitFailed:
				result.Failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	d.logger.Info("opportunity fan-out complete", map[string]interface{}{
		"opportunity_id": opportunityID,
		"processed":      result.Processed,
		"matched":        result.Matched,
		"notified":       result.Notified,
		"skipped":        result.Skipped,
		"failed":         result.Failed,
	})
	return result, nil
}

type unitOutcome string

const (
	unitMatched  unitOutcome = "matched"
	unitNotified unitOutcome = "notified"
	unitSkipped  unitOutcome = "skipped"
	unitFailed   unitOutcome = "failed"
)

func (d *Dispatcher) matchUnit(ctx context.Context, profile *models.Profile, opp *models.Opportunity) unitOutcome {
	if profile.ID == "" {
		d.logger.Warn("skipping malformed profile unit", map[string]interface{}{
			"opportunity_id": opp.ID,
			"error":          commonerrors.NewProfileInvalidError("profile has no id").Error(),
		})
		metrics.BatchUnitsProcessed.WithLabelValues("opportunity", string(unitSkipped)).Inc()
		return unitSkipped
	}

	unitCtx, cancel := context.WithTimeout(ctx, d.config.UnitTimeout)
	defer cancel()

	outcome, err := d.runMatchUnit(unitCtx, profile, opp)
	if err != nil {
		d.logger.Error("match unit failed", map[string]interface{}{
			"profile_id":     profile.ID,
			"opportunity_id": opp.ID,
			"error":          err.Error(),
		})
		outcome = unitFailed
	}
	metrics.BatchUnitsProcessed.WithLabelValues("opportunity", string(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) runMatchUnit(ctx context.Context, profile *models.Profile, opp *models.Opportunity) (unitOutcome, error) {
	score, reasons, err := d.scorePair(ctx, profile, opp)
	if err != nil {
		return unitFailed, err
	}

	if score < d.config.NotifyThreshold {
		return unitSkipped, nil
	}

	err = d.scores.UpsertMatchScore(ctx, &models.MatchScore{
		ProfileID:     profile.ID,
		OpportunityID: opp.ID,
		Score:         score,
		Reasons:       reasons,
		ComputedAt:    time.Now().UTC(),
	})
	if err != nil {
		return unitFailed, commonerrors.NewScorePersistFailedError(err)
	}

	firstCrossing, err := d.scores.MarkNotified(ctx, profile.ID, opp.ID)
	if err != nil {
		return unitFailed, err
	}
	if !firstCrossing {
		return unitMatched, nil
	}

	if d.notifier == nil {
		return unitMatched, nil
	}
	notification, err := d.notifier.NotifyMatch(ctx, profile, opp, score)
	if err != nil {
		// The score is persisted; only delivery failed.
		stdErr := commonerrors.NewNotificationSendFailedError(err)
		d.logger.Error("match notification failed", map[string]interface{}{
			"profile_id":     profile.ID,
			"opportunity_id": opp.ID,
			"error":          stdErr.Error(),
			"details":        stdErr.Details,
		})
		return unitMatched, nil
	}
	if notification == nil {
		return unitMatched, nil
	}
	return unitNotified, nil
}

// RecommendForProfile ranks every open opportunity for one profile. This path
// is read-only: nothing is persisted and nobody is notified.
func (d *Dispatcher) RecommendForProfile(ctx context.Context, profileID string, limit int) ([]rank.Candidate, error) {
	profile, err := d.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", profileID, err)
	}

	opps, err := d.searcher.SearchOpenOpportunities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open opportunities: %w", err)
	}

	// Malformed index entries are dropped, same as malformed profile units.
	open := opps[:0]
	for i := range opps {
		if opps[i].ID == "" {
			d.logger.Warn("skipping malformed opportunity unit", map[string]interface{}{
				"profile_id": profileID,
				"error":      commonerrors.NewOpportunityInvalidError("opportunity has no id").Error(),
			})
			continue
		}
		open = append(open, opps[i])
	}
	opps = open

	past, err := d.outcomes.ListOutcomes(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}

	if limit <= 0 {
		limit = d.config.RecommendLimit
	}

	candidates := make([]rank.Candidate, len(opps))
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.config.WorkerPoolSize)

	for i := range opps {
		idx := i

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			candidates[idx] = d.recommendUnit(ctx, profile, &opps[idx], past)
		}()
	}
	wg.Wait()

	return rank.Rank(candidates, limit), nil
}

func (d *Dispatcher) recommendUnit(ctx context.Context, profile *models.Profile, opp *models.Opportunity, past []models.OutcomeRecord) rank.Candidate {
	unitCtx, cancel := context.WithTimeout(ctx, d.config.UnitTimeout)
	defer cancel()

	base, reasons := rules.Score(profile, opp)
	adjusted, reasons := history.Adjust(base, reasons, past, opp)

	cand := rank.Candidate{
		Opportunity: *opp,
		RuleScore:   models.ClampScore(adjusted),
		Reasons:     reasons,
	}

	aiScore, err := d.aiProvider.SuccessProbability(unitCtx, profile, opp)
	if err != nil {
		if !errors.Is(err, aiprob.ErrUnavailable) {
			stdErr := commonerrors.NewAIProviderUnavailableError(err)
			d.logger.Warn("success probability lookup failed", map[string]interface{}{
				"profile_id":     profile.ID,
				"opportunity_id": opp.ID,
				"error":          stdErr.Error(),
				"details":        stdErr.Details,
			})
		}
		metrics.AIFallbacks.Inc()
	} else {
		cand.AIScore = aiScore
		cand.HasAIScore = true
	}

	metrics.BatchUnitsProcessed.WithLabelValues("profile", "processed").Inc()
	return cand
}

// ScorePair exposes single-pair scoring for the on-demand scoring path.
func (d *Dispatcher) ScorePair(ctx context.Context, profileID, opportunityID string) (int, []string, error) {
	profile, err := d.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return 0, nil, fmt.Errorf("load profile %s: %w", profileID, err)
	}
	opp, err := d.opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return 0, nil, fmt.Errorf("load opportunity %s: %w", opportunityID, err)
	}
	return d.scorePair(ctx, profile, opp)
}
