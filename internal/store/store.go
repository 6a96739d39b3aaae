// internal/store/store.go

// Package store defines the persistence contracts the matching engine
// requires and their Postgres/Redis/Elasticsearch-backed implementations.
// The engine only reads profiles, opportunities and outcomes; match scores
// are the one surface it writes.
package store

import (
	"context"
	"errors"

	"grantmatch-workers/internal/models"
)

// ErrNotFound is returned when a keyed read finds no row.
var ErrNotFound = errors.New("not found")

// ProfileStore reads applicant profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// OpportunityStore reads curated funding opportunities.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error)
}

// OutcomeStore reads a profile's past application outcomes.
type OutcomeStore interface {
	ListOutcomes(ctx context.Context, profileID string) ([]models.OutcomeRecord, error)
}

// MatchScoreStore persists the engine's output. Upsert is idempotent under
// retry: the (profileID, opportunityID) natural key never duplicates and the
// notified flag survives score refreshes. MarkNotified is a single atomic
// conditional update — it reports true only for the caller that flipped the
// flag, which closes the notify-once race at the store boundary.
type MatchScoreStore interface {
	GetMatchScore(ctx context.Context, profileID, opportunityID string) (*models.MatchScore, error)
	UpsertMatchScore(ctx context.Context, rec *models.MatchScore) error
	MarkNotified(ctx context.Context, profileID, opportunityID string) (bool, error)
}

// DedupeLog is the server-side, queryable record of notifications sent per
// (profile, opportunity, day) — replacing any client-held "already emailed
// today" memory.
type DedupeLog interface {
	MarkSent(ctx context.Context, profileID, opportunityID string) (bool, error)
	AlreadySentToday(ctx context.Context, profileID, opportunityID string) (bool, error)
}

// OpportunitySearcher serves the recommendation path's open-opportunity
// listing from a search index; implementations fall back to the
// OpportunityStore when the index is not configured.
type OpportunitySearcher interface {
	SearchOpenOpportunities(ctx context.Context) ([]models.Opportunity, error)
}
