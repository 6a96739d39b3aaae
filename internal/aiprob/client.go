// internal/aiprob/client.go

// Package aiprob calls the external success-probability service. The matching
// pipeline treats this signal as optional: callers fall back to the rule score
// when the provider is down or slow.
package aiprob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/models"
)

// ErrUnavailable reports that no probability could be obtained. Callers treat
// it as "rank on rules alone", never as a pipeline failure.
var ErrUnavailable = errors.New("success probability unavailable")

// Provider is the interface the ranking path depends on.
type Provider interface {
	SuccessProbability(ctx context.Context, profile *models.Profile, opp *models.Opportunity) (int, error)
}

// Client is an HTTP Provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

type scoreRequest struct {
	Profile     *models.Profile     `json:"profile"`
	Opportunity *models.Opportunity `json:"opportunity"`
}

type scoreResponse struct {
	Probability int `json:"probability"`
}

// SuccessProbability returns the provider's 0-100 estimate for the pair.
// Every failure mode collapses into ErrUnavailable with the cause wrapped, so
// callers need exactly one check.
func (c *Client) SuccessProbability(ctx context.Context, profile *models.Profile, opp *models.Opportunity) (int, error) {
	if c.baseURL == "" {
		return 0, ErrUnavailable
	}

	payload, err := json.Marshal(scoreRequest{Profile: profile, Opportunity: opp})
	if err != nil {
		return 0, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/success-probability", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("success probability request failed", map[string]interface{}{
			"profile_id":     profile.ID,
			"opportunity_id": opp.ID,
			"error":          err.Error(),
		})
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return clampProbability(out.Probability), nil
}

func clampProbability(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
