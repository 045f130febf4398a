package sources

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hikarudo/uwabami/models"
	"golang.org/x/time/rate"
)

// DugaSource fetches the duga CSV product feed. Each data row becomes one
// listing with a JSON object keyed by column header as the raw snapshot, so
// an unchanged row hashes equal across feed downloads regardless of its
// position in the file.
type DugaSource struct {
	feedURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDugaSource creates a duga feed client
func NewDugaSource(feedURL string, timeout, minInterval time.Duration) *DugaSource {
	return &DugaSource{
		feedURL: feedURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name returns the source name
func (s *DugaSource) Name() models.ASPName { return models.ASPDuga }

// idColumns are the feed headers that can carry the product id, in
// preference order
var dugaIDColumns = []string{"productid", "itemno"}

// FetchListings downloads the feed and converts up to limit rows
func (s *DugaSource) FetchListings(ctx context.Context, limit int) ([]Listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("duga fetch cancelled while rate limited: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build duga request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duga request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duga returned status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read duga feed header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var listings []Listing
	for {
		if limit > 0 && len(listings) >= limit {
			break
		}
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// A truncated or corrupt feed must not pass as a short one
			return nil, fmt.Errorf("failed to read duga feed row: %w", err)
		}

		row := make(map[string]string, len(header))
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(value)
			}
		}

		var productID string
		for _, col := range dugaIDColumns {
			if row[col] != "" {
				productID = row[col]
				break
			}
		}
		if productID == "" {
			continue
		}

		body, err := json.Marshal(row)
		if err != nil {
			continue
		}
		listings = append(listings, Listing{
			Source:          models.ASPDuga,
			SourceProductID: productID,
			URL:             row["url"],
			Body:            body,
		})
	}
	return listings, nil
}
