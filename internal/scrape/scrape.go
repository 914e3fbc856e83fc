package scrape

import (
	"context"
	"time"
)

// Platform identifiers used across snapshots, history and breakdowns.
const (
	PlatformStubHub    = "stubhub"
	PlatformSeatGeek   = "seatgeek"
	PlatformVividSeats = "vividseats"
)

// Listing is the normalized shape every platform scraper produces.
type Listing struct {
	Platform       string         `json:"platform"`
	Section        string         `json:"section,omitempty"`
	Row            string         `json:"row,omitempty"`
	Quantity       int            `json:"quantity"`
	PricePerTicket float64        `json:"price_per_ticket"`
	TotalPrice     float64        `json:"total_price,omitempty"`
	ListingURL     string         `json:"listing_url,omitempty"`
	RawData        map[string]any `json:"raw_data,omitempty"`
}

// Status classifies the outcome of a fetch so callers can tell
// "nothing for sale" apart from "we got blocked" and "our code broke".
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusBlocked
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusBlocked:
		return "blocked"
	default:
		return "error"
	}
}

// Result is the typed outcome of a FetchListings call. A Result is never
// an error to the caller; Err carries detail for Blocked and Error states.
type Result struct {
	Status   Status
	Listings []Listing
	Err      error
}

// OK wraps listings, collapsing to Empty when there are none.
func OK(listings []Listing) Result {
	if len(listings) == 0 {
		return Empty()
	}
	return Result{Status: StatusOK, Listings: listings}
}

func Empty() Result {
	return Result{Status: StatusEmpty}
}

func Blocked(err error) Result {
	return Result{Status: StatusBlocked, Err: err}
}

func Failed(err error) Result {
	return Result{Status: StatusError, Err: err}
}

// Scraper is the contract every platform implementation satisfies.
// FetchListings never returns an error for ordinary failures; they are
// folded into the Result status.
type Scraper interface {
	Platform() string
	FetchListings(ctx context.Context, eventID string) Result
	SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool)
}
