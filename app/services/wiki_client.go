package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WikiPerformer is a performer candidate returned by an external wiki lookup
type WikiPerformer struct {
	Provider   string   `json:"provider"`
	ExternalID string   `json:"external_id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	// Confidence in [0,1] as reported by the wiki's matcher
	Confidence float64 `json:"confidence"`
}

// WikiClient looks up performer credits on an external wiki site. Lookups are
// best effort: callers must treat failures and empty results the same way and
// move on without the hint.
type WikiClient interface {
	// SearchByProductCode returns performer candidates credited on the given
	// normalized product code, best match first.
	SearchByProductCode(ctx context.Context, normalizedProductID string) ([]WikiPerformer, error)
}

// WikiClientImpl implements WikiClient against an HTTP wiki API. Requests
// are throttled by a shared limiter so burst ingestion cannot hammer the
// wiki host.
type WikiClientImpl struct {
	baseURL  string
	provider string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewWikiClient creates a wiki client. minInterval is the smallest gap
// between consecutive requests to the wiki host.
func NewWikiClient(baseURL, provider string, timeout, minInterval time.Duration) *WikiClientImpl {
	return &WikiClientImpl{
		baseURL:  baseURL,
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

type wikiSearchResponse struct {
	Results []struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		Aliases    []string `json:"aliases"`
		Confidence float64  `json:"confidence"`
	} `json:"results"`
}

// SearchByProductCode queries the wiki for performers credited on a product code
func (c *WikiClientImpl) SearchByProductCode(ctx context.Context, normalizedProductID string) ([]WikiPerformer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wiki lookup cancelled while rate limited: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/search?code=%s", c.baseURL, url.QueryEscape(normalizedProductID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build wiki request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki returned status %d", resp.StatusCode)
	}

	var parsed wikiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode wiki response: %w", err)
	}

	performers := make([]WikiPerformer, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		performers = append(performers, WikiPerformer{
			Provider:   c.provider,
			ExternalID: r.ID,
			Name:       r.Name,
			Aliases:    r.Aliases,
			Confidence: r.Confidence,
		})
	}
	return performers, nil
}

// MockWikiClient implements WikiClient for testing with canned results
type MockWikiClient struct {
	mu sync.Mutex

	// Results maps normalized product id to canned candidates
	Results map[string][]WikiPerformer
	// ShouldFail makes every lookup return an error
	ShouldFail bool
	// Queries records every lookup in order
	Queries []string
}

// NewMockWikiClient creates a mock wiki client
func NewMockWikiClient() *MockWikiClient {
	return &MockWikiClient{Results: make(map[string][]WikiPerformer)}
}

// SearchByProductCode returns the canned candidates for a product code
func (m *MockWikiClient) SearchByProductCode(ctx context.Context, normalizedProductID string) ([]WikiPerformer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, normalizedProductID)
	if m.ShouldFail {
		return nil, fmt.Errorf("mock wiki failure")
	}
	return m.Results[normalizedProductID], nil
}

// QueryCount returns the number of lookups performed
func (m *MockWikiClient) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}
