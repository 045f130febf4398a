package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hikarudo/uwabami/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

// AdultfestaSource fetches the adultfesta XLSX product sheet. Like the CSV
// feed, each data row is snapshotted as a JSON object keyed by column header.
type AdultfestaSource struct {
	feedURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewAdultfestaSource creates an adultfesta feed client
func NewAdultfestaSource(feedURL string, timeout, minInterval time.Duration) *AdultfestaSource {
	return &AdultfestaSource{
		feedURL: feedURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name returns the source name
func (s *AdultfestaSource) Name() models.ASPName { return models.ASPAdultfesta }

// adultfestaIDColumns are the sheet headers that can carry the product id
var adultfestaIDColumns = []string{"商品ID", "品番"}

// FetchListings downloads the sheet and converts up to limit rows from the
// first worksheet
func (s *AdultfestaSource) FetchListings(ctx context.Context, limit int) ([]Listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("adultfesta fetch cancelled while rate limited: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build adultfesta request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adultfesta request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adultfesta returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read adultfesta sheet: %w", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open adultfesta sheet: %w", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read adultfesta rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var listings []Listing
	for _, record := range rows[1:] {
		if limit > 0 && len(listings) >= limit {
			break
		}

		row := make(map[string]string, len(header))
		for i, value := range record {
			if i < len(header) && header[i] != "" {
				row[header[i]] = strings.TrimSpace(value)
			}
		}

		var productID string
		for _, col := range adultfestaIDColumns {
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
			Source:          models.ASPAdultfesta,
			SourceProductID: productID,
			URL:             row["URL"],
			Body:            body,
		})
	}
	return listings, nil
}
