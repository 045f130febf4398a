package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/hikarudo/uwabami/models"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// ScrapeSource fetches listings from sites without a feed: it reads the new
// release index page, extracts detail page links, then fetches each detail
// page as the raw snapshot. One limiter covers index and detail requests so
// the site sees a steady request rate.
type ScrapeSource struct {
	name      models.ASPName
	indexURL  string
	idPattern *regexp.Regexp
	detailURL func(id string) string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewSokmilSource creates a scrape client for sokmil
func NewSokmilSource(baseURL string, timeout, minInterval time.Duration) *ScrapeSource {
	return &ScrapeSource{
		name:      models.ASPSokmil,
		indexURL:  baseURL + "/av/list_new.htm",
		idPattern: regexp.MustCompile(`/av/item_([0-9]+)\.htm`),
		detailURL: func(id string) string { return fmt.Sprintf("%s/av/item_%s.htm", baseURL, id) },
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// NewMGSSource creates a scrape client for mgs
func NewMGSSource(baseURL string, timeout, minInterval time.Duration) *ScrapeSource {
	return &ScrapeSource{
		name:      models.ASPMGS,
		indexURL:  baseURL + "/search/cSearch.php?sort=new",
		idPattern: regexp.MustCompile(`/product/product_detail/([0-9A-Za-z_-]+)/`),
		detailURL: func(id string) string { return fmt.Sprintf("%s/product/product_detail/%s/", baseURL, id) },
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Name returns the source name
func (s *ScrapeSource) Name() models.ASPName { return s.name }

// FetchListings reads the index page and fetches up to limit detail pages
func (s *ScrapeSource) FetchListings(ctx context.Context, limit int) ([]Listing, error) {
	indexBody, err := s.get(ctx, s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s index: %w", s.name, err)
	}

	ids, err := s.extractProductIDs(indexBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s index: %w", s.name, err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	var listings []Listing
	for _, id := range ids {
		detailURL := s.detailURL(id)
		body, err := s.get(ctx, detailURL)
		if err != nil {
			if ctx.Err() != nil {
				return listings, ctx.Err()
			}
			// One broken detail page does not abort the crawl
			continue
		}
		listings = append(listings, Listing{
			Source:          s.name,
			SourceProductID: id,
			URL:             detailURL,
			Body:            body,
		})
	}
	return listings, nil
}

func (s *ScrapeSource) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch cancelled while rate limited: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// extractProductIDs collects detail page ids from anchor hrefs on the index
// page, preserving page order and dropping duplicates
func (s *ScrapeSource) extractProductIDs(indexBody []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(indexBody))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if m := s.idPattern.FindStringSubmatch(attr.Val); m != nil {
					if _, dup := seen[m[1]]; !dup {
						seen[m[1]] = struct{}{}
						ids = append(ids, m[1])
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids, nil
}
