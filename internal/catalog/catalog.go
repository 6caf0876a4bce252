// Package catalog holds the static list of auctions loaded from configuration.
package catalog

import (
	"fmt"
	"sort"
	"time"

	"live-auction/internal/config"
	"live-auction/internal/domain"
)

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	byID  map[string]domain.Auction
	order []string
}

func New(auctions []domain.Auction) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]domain.Auction, len(auctions))}
	for _, a := range auctions {
		if a.ID == "" {
			return nil, fmt.Errorf("catalog: auction %q has no id", a.Title)
		}
		if _, dup := c.byID[a.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate auction id %q", a.ID)
		}
		c.byID[a.ID] = a
		c.order = append(c.order, a.ID)
	}
	return c, nil
}

// FromConfig parses the configured entries. Deadlines must be RFC3339.
func FromConfig(entries []config.AuctionConfig) (*Catalog, error) {
	auctions := make([]domain.Auction, 0, len(entries))
	for _, e := range entries {
		endsAt, err := time.Parse(time.RFC3339, e.EndsAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: auction %q: parse ends_at: %w", e.ID, err)
		}
		auctions = append(auctions, domain.Auction{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			EndsAt:      endsAt.UTC(),
		})
	}
	return New(auctions)
}

func (c *Catalog) Get(auctionID string) (domain.Auction, bool) {
	a, ok := c.byID[auctionID]
	return a, ok
}

// List returns the auctions in configuration order.
func (c *Catalog) List() []domain.Auction {
	out := make([]domain.Auction, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the auction ids sorted lexically.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}
