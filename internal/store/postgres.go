// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"grantmatch-workers/internal/models"

	"github.com/lib/pq"
)

// PostgresStore implements the profile, opportunity, outcome and match-score
// contracts on a shared *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_name, industry, region, country, years_in_business,
		       revenue_bracket, woman_owned, minority_owned, email, phone
		FROM profiles WHERE id = $1`, id)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return profile, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_name, industry, region, country, years_in_business,
		       revenue_bracket, woman_owned, minority_owned, email, phone
		FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var years sql.NullInt64
	var womanOwned, minorityOwned sql.NullBool
	var businessName, industry, region, country, bracket, email, phone sql.NullString

	err := row.Scan(&p.ID, &businessName, &industry, &region, &country, &years,
		&bracket, &womanOwned, &minorityOwned, &email, &phone)
	if err != nil {
		return nil, err
	}

	p.BusinessName = businessName.String
	p.Industry = industry.String
	p.Region = region.String
	p.Country = country.String
	p.RevenueBracket = bracket.String
	p.Email = email.String
	p.Phone = phone.String

	p.YearsInBusiness = -1
	if years.Valid {
		p.YearsInBusiness = int(years.Int64)
	}
	if womanOwned.Valid {
		v := womanOwned.Bool
		p.WomanOwned = &v
	}
	if minorityOwned.Valid {
		v := minorityOwned.Bool
		p.MinorityOwned = &v
	}
	return &p, nil
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, deadline, amount_min, amount_max, currency,
		       industry_tags, geography_tags, audience_tags, stage_tags
		FROM opportunities WHERE id = $1`, id)

	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// ListOpenOpportunities orders soonest-deadline-first so downstream ranking
// inherits a meaningful tie-break order.
func (s *PostgresStore) ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, deadline, amount_min, amount_max, currency,
		       industry_tags, geography_tags, audience_tags, stage_tags
		FROM opportunities WHERE status = 'open'
		ORDER BY deadline ASC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("list open opportunities: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opps = append(opps, *opp)
	}
	return opps, rows.Err()
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var o models.Opportunity
	var title, currency sql.NullString
	var deadline sql.NullTime
	var amountMin, amountMax sql.NullInt64

	err := row.Scan(&o.ID, &title, &o.Status, &deadline, &amountMin, &amountMax, &currency,
		pq.Array(&o.IndustryTags), pq.Array(&o.GeographyTags),
		pq.Array(&o.AudienceTags), pq.Array(&o.StageTags))
	if err != nil {
		return nil, err
	}

	o.Title = title.String
	o.Currency = currency.String
	o.AmountMin = int(amountMin.Int64)
	o.AmountMax = int(amountMax.Int64)
	if deadline.Valid {
		d := deadline.Time
		o.Deadline = &d
	}
	return &o, nil
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, profileID string) ([]models.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, opportunity_id, outcome, industry_tags, audience_tags
		FROM outcomes WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes for %s: %w", profileID, err)
	}
	defer rows.Close()

	var outcomes []models.OutcomeRecord
	for rows.Next() {
		var rec models.OutcomeRecord
		err := rows.Scan(&rec.ProfileID, &rec.OpportunityID, &rec.Outcome,
			pq.Array(&rec.IndustryTags), pq.Array(&rec.AudienceTags))
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, rec)
	}
	return outcomes, rows.Err()
}

func (s *PostgresStore) GetMatchScore(ctx context.Context, profileID, opportunityID string) (*models.MatchScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_id, opportunity_id, score, reasons, notified, computed_at
		FROM match_scores WHERE profile_id = $1 AND opportunity_id = $2`,
		profileID, opportunityID)

	var rec models.MatchScore
	err := row.Scan(&rec.ProfileID, &rec.OpportunityID, &rec.Score,
		pq.Array(&rec.Reasons), &rec.Notified, &rec.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match score (%s,%s): %w", profileID, opportunityID, err)
	}
	return &rec, nil
}

// UpsertMatchScore writes a record under its natural key. A rescore
// overwrites score, reasons and timestamp in place; the notified flag is
// owned by MarkNotified and deliberately left untouched on conflict, so the
// write is idempotent under retry and never duplicates a row.
func (s *PostgresStore) UpsertMatchScore(ctx context.Context, rec *models.MatchScore) error {
	computedAt := rec.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_scores (profile_id, opportunity_id, score, reasons, notified, computed_at)
		VALUES ($1, $2, $3, $4, false, $5)
		ON CONFLICT (profile_id, opportunity_id)
		DO UPDATE SET score = EXCLUDED.score,
		              reasons = EXCLUDED.reasons,
		              computed_at = EXCLUDED.computed_at`,
		rec.ProfileID, rec.OpportunityID, rec.Score, pq.Array(rec.Reasons), computedAt)
	if err != nil {
		return fmt.Errorf("upsert match score (%s,%s): %w", rec.ProfileID, rec.OpportunityID, err)
	}
	return nil
}

// MarkNotified flips the notified flag only if it was false. The affected-row
// count tells the caller whether this run was the first crossing; concurrent
// dispatch runs for the same key cannot both see true.
func (s *PostgresStore) MarkNotified(ctx context.Context, profileID, opportunityID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE match_scores SET notified = true
		WHERE profile_id = $1 AND opportunity_id = $2 AND notified = false`,
		profileID, opportunityID)
	if err != nil {
		return false, fmt.Errorf("mark notified (%s,%s): %w", profileID, opportunityID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
