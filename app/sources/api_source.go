package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hikarudo/uwabami/models"
	"golang.org/x/time/rate"
)

// DMMSource fetches listings from the DMM affiliate item API
type DMMSource struct {
	baseURL     string
	apiID       string
	affiliateID string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewDMMSource creates a DMM API client. minInterval throttles consecutive
// requests to the API host.
func NewDMMSource(baseURL, apiID, affiliateID string, timeout, minInterval time.Duration) *DMMSource {
	return &DMMSource{
		baseURL:     baseURL,
		apiID:       apiID,
		affiliateID: affiliateID,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name returns the source name
func (s *DMMSource) Name() models.ASPName { return models.ASPDMM }

type dmmItemListResponse struct {
	Result struct {
		Items []json.RawMessage `json:"items"`
	} `json:"result"`
}

// FetchListings retrieves up to limit recently updated items. Each item's own
// JSON object becomes the raw snapshot body, so unchanged items hash equal
// across fetches.
func (s *DMMSource) FetchListings(ctx context.Context, limit int) ([]Listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dmm fetch cancelled while rate limited: %w", err)
	}

	params := url.Values{}
	params.Set("api_id", s.apiID)
	params.Set("affiliate_id", s.affiliateID)
	params.Set("site", "FANZA")
	params.Set("service", "digital")
	params.Set("floor", "videoa")
	params.Set("sort", "date")
	params.Set("output", "json")
	if limit > 0 {
		params.Set("hits", fmt.Sprintf("%d", limit))
	}

	endpoint := fmt.Sprintf("%s/ItemList?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build dmm request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dmm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dmm returned status %d", resp.StatusCode)
	}

	var parsed dmmItemListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode dmm response: %w", err)
	}

	listings := make([]Listing, 0, len(parsed.Result.Items))
	for _, raw := range parsed.Result.Items {
		var head struct {
			ContentID string `json:"content_id"`
			URL       string `json:"URL"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.ContentID == "" {
			continue
		}
		listings = append(listings, Listing{
			Source:          models.ASPDMM,
			SourceProductID: head.ContentID,
			URL:             head.URL,
			Body:            raw,
		})
	}
	return listings, nil
}
