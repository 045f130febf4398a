// Package sources contains the per-site clients that fetch product listings
// from ASP catalogs, and the field extraction for each payload shape.
package sources

import (
	"context"
	"fmt"

	"github.com/hikarudo/uwabami/models"
)

// Listing is one product listing snapshot fetched from a source site. Body is
// the raw payload persisted to the raw store: the item JSON for API sources,
// the detail page HTML for scraped sources, and a JSON object keyed by column
// header for feed (CSV/XLSX) sources.
type Listing struct {
	Source          models.ASPName
	SourceProductID string
	URL             string
	Body            []byte
}

// SourceClient fetches listings from one ASP site. Implementations own their
// timeouts and per-host throttling; callers only bound the overall run
// through ctx.
type SourceClient interface {
	Name() models.ASPName
	FetchListings(ctx context.Context, limit int) ([]Listing, error)
}

// Registry holds the configured source clients keyed by name
type Registry struct {
	clients map[models.ASPName]SourceClient
	order   []models.ASPName
}

// NewRegistry creates a registry from the given clients
func NewRegistry(clients ...SourceClient) *Registry {
	r := &Registry{clients: make(map[models.ASPName]SourceClient)}
	for _, c := range clients {
		if _, dup := r.clients[c.Name()]; dup {
			continue
		}
		r.clients[c.Name()] = c
		r.order = append(r.order, c.Name())
	}
	return r
}

// Get returns the client for a source
func (r *Registry) Get(name models.ASPName) (SourceClient, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("no source client registered for %q", name)
	}
	return c, nil
}

// Names returns the registered source names in registration order
func (r *Registry) Names() []models.ASPName {
	out := make([]models.ASPName, len(r.order))
	copy(out, r.order)
	return out
}
