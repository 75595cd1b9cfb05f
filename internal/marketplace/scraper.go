// Package marketplace defines the contract with the external
// marketplace scraping service and its HTTP implementation.
package marketplace

import (
	"context"
	"errors"
)

// ErrPortalBlocked signals that the marketplace is actively blocking
// the scraper. It is fatal for the current job's search phase and must
// propagate instead of being swallowed per query.
var ErrPortalBlocked = errors.New("marketplace: portal blocked")

// Listing is a single search result.
type Listing struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Link  string  `json:"link"`
}

// Details is the per-listing data returned by a detail fetch.
type Details struct {
	ShippingCost float64           `json:"shipping_cost"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Description  string            `json:"description,omitempty"`
	Seller       string            `json:"seller,omitempty"`
	Condition    string            `json:"condition,omitempty"`
	Brand        string            `json:"brand,omitempty"`
	Model        string            `json:"model,omitempty"`
	GTIN         string            `json:"gtin,omitempty"`
	MPN          string            `json:"mpn,omitempty"`
}

// Page is a scraper session. One page is acquired per sourcing run and
// reused for every search and detail fetch of that run; Close releases
// it on every exit path.
type Page interface {
	Search(ctx context.Context, query string) ([]Listing, error)
	FetchDetails(ctx context.Context, link, region string) (*Details, error)
	Close() error
}

// Browser hands out pages. Implementations share one rate-limited
// upstream instance across all pages.
type Browser interface {
	AcquirePage(ctx context.Context) (Page, error)
}
