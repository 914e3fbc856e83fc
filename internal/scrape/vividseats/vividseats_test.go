package vividseats

import (
	"testing"
	"time"

	"ticket-tracker/internal/scrape"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScraper(t *testing.T) *Scraper {
	limiter, err := scrape.NewLimiter(100, time.Minute)
	require.NoError(t, err)
	return New(limiter, 5*time.Second)
}

func TestParseTicketsShortKeys(t *testing.T) {
	s := newTestScraper(t)

	tickets := []map[string]any{
		{"s": "112", "r": "5", "q": float64(2), "aip": float64(150)},
		{"s": "204", "r": "B", "q": float64(4), "p": float64(210.5)},
	}

	listings := s.parseTickets(tickets, "6564610")
	require.Len(t, listings, 2)

	assert.Equal(t, scrape.PlatformVividSeats, listings[0].Platform)
	assert.Equal(t, "112", listings[0].Section)
	assert.Equal(t, "5", listings[0].Row)
	assert.Equal(t, 2, listings[0].Quantity)
	assert.Equal(t, 150.0, listings[0].PricePerTicket)
	assert.Equal(t, 300.0, listings[0].TotalPrice)

	// "p" is preferred over "aip" when both forms appear across tickets
	assert.Equal(t, 210.5, listings[1].PricePerTicket)
}

func TestParseTicketsLongKeys(t *testing.T) {
	s := newTestScraper(t)

	tickets := []map[string]any{
		{"sectionName": "Floor GA", "row": "GA", "quantity": float64(2), "price": float64(425)},
	}

	listings := s.parseTickets(tickets, "123")
	require.Len(t, listings, 1)
	assert.Equal(t, "Floor GA", listings[0].Section)
	assert.Equal(t, 425.0, listings[0].PricePerTicket)
}

func TestParseTicketsDropsNoise(t *testing.T) {
	s := newTestScraper(t)

	tickets := []map[string]any{
		{"s": "Parking", "q": float64(1), "aip": float64(25)},
		{"s": "112", "q": float64(2), "aip": float64(99.99)},
		{"s": "112", "q": float64(2), "aip": float64(100)},
		{"s": "113"}, // no price at all
	}

	listings := s.parseTickets(tickets, "123")
	require.Len(t, listings, 1)
	assert.Equal(t, 100.0, listings[0].PricePerTicket)
}

func TestParseTicketsDefaults(t *testing.T) {
	s := newTestScraper(t)

	listings := s.parseTickets([]map[string]any{{"aip": float64(180)}}, "123")
	require.Len(t, listings, 1)
	assert.Equal(t, "General", listings[0].Section)
	assert.Equal(t, 1, listings[0].Quantity)
	assert.Equal(t, 180.0, listings[0].TotalPrice)
}

func TestParseTicketsCapsListingCount(t *testing.T) {
	s := newTestScraper(t)

	tickets := make([]map[string]any, maxListings+50)
	for i := range tickets {
		tickets[i] = map[string]any{"s": "112", "aip": float64(100 + i)}
	}

	listings := s.parseTickets(tickets, "123")
	assert.Len(t, listings, maxListings)
}

func TestSearchDateFormat(t *testing.T) {
	// URL dates are unpadded m-d-yyyy
	date := time.Date(2026, time.September, 8, 0, 0, 0, 0, time.UTC)
	got := formatSearchDate(date)
	assert.Equal(t, "9-8-2026", got)
}

func TestProductionRePicksIDFromHref(t *testing.T) {
	html := `<a href="/taylor-swift-tickets-gillette-stadium-9-18-2026/production/6564610">tickets</a>
<a href="/parking-passes-only-tickets-lot-9-18-2026-parking/production/6564611">parking</a>`

	matches := productionRe.FindAllStringSubmatch(html, -1)
	require.Len(t, matches, 2)
	assert.Equal(t, "6564610", matches[0][2])
}
