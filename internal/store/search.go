// internal/store/search.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const searchResultLimit = 500

// ESOpportunitySearcher serves the open-opportunity listing from an
// Elasticsearch index. Index errors degrade to the relational store so a
// missing or stale index never blocks recommendations.
type ESOpportunitySearcher struct {
	esClient *elasticsearch.Client
	index    string
	fallback OpportunityStore
	logger   logger.Logger
}

func NewESOpportunitySearcher(esClient *elasticsearch.Client, index string, fallback OpportunityStore, log logger.Logger) *ESOpportunitySearcher {
	return &ESOpportunitySearcher{
		esClient: esClient,
		index:    index,
		fallback: fallback,
		logger:   log,
	}
}

func (s *ESOpportunitySearcher) SearchOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	if s.esClient == nil || s.index == "" {
		return s.fallback.ListOpenOpportunities(ctx)
	}

	opps, err := s.queryIndex(ctx)
	if err != nil {
		s.logger.Warn("opportunity index unavailable, using database", map[string]interface{}{
			"index": s.index,
			"error": err.Error(),
		})
		return s.fallback.ListOpenOpportunities(ctx)
	}
	return opps, nil
}

func (s *ESOpportunitySearcher) queryIndex(ctx context.Context) ([]models.Opportunity, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"status": models.StatusOpen},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"deadline": map[string]interface{}{"order": "asc", "missing": "_last"}},
		},
		"size": searchResultLimit,
	}

	body, _ := json.Marshal(queryBody)
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source opportunityDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	opps := make([]models.Opportunity, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		opps = append(opps, hit.Source.toModel())
	}
	return opps, nil
}

// opportunityDoc mirrors the index mapping for grant opportunities.
type opportunityDoc struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Deadline      string   `json:"deadline"`
	AmountMin     int      `json:"amount_min"`
	AmountMax     int      `json:"amount_max"`
	Currency      string   `json:"currency"`
	IndustryTags  []string `json:"industry_tags"`
	GeographyTags []string `json:"geography_tags"`
	AudienceTags  []string `json:"audience_tags"`
	StageTags     []string `json:"stage_tags"`
}

func (d opportunityDoc) toModel() models.Opportunity {
	opp := models.Opportunity{
		ID:            d.ID,
		Title:         d.Title,
		Status:        d.Status,
		AmountMin:     d.AmountMin,
		AmountMax:     d.AmountMax,
		Currency:      d.Currency,
		IndustryTags:  d.IndustryTags,
		GeographyTags: d.GeographyTags,
		AudienceTags:  d.AudienceTags,
		StageTags:     d.StageTags,
	}
	if d.Deadline != "" {
		if t, err := time.Parse(time.RFC3339, d.Deadline); err == nil {
			opp.Deadline = &t
		}
	}
	return opp
}
