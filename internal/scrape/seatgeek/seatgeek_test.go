package seatgeek

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
	return New(limiter, 5*time.Second, "")
}

func TestExtractStats(t *testing.T) {
	// top-level stats
	stats := extractStats(map[string]any{"stats": map[string]any{"lowest_price": float64(80)}})
	require.NotNil(t, stats)
	assert.Equal(t, float64(80), stats["lowest_price"])

	// nested under event
	stats = extractStats(map[string]any{
		"event": map[string]any{"stats": map[string]any{"lowest_price": float64(95)}},
	})
	require.NotNil(t, stats)
	assert.Equal(t, float64(95), stats["lowest_price"])

	assert.Nil(t, extractStats(map[string]any{"meta": map[string]any{}}))
}

func TestListingsFromStats(t *testing.T) {
	stats := map[string]any{
		"lowest_price":  float64(80),
		"average_price": float64(150),
		"highest_price": float64(400),
		"listing_count": float64(42),
	}

	listings := listingsFromStats(stats, "6310700")
	require.Len(t, listings, 3)
	assert.Equal(t, "Various (Low)", listings[0].Section)
	assert.Equal(t, 80.0, listings[0].PricePerTicket)
	assert.Equal(t, "Various (Avg)", listings[1].Section)
	assert.Equal(t, 150.0, listings[1].PricePerTicket)
	assert.Equal(t, "Various (High)", listings[2].Section)
	assert.Equal(t, 400.0, listings[2].PricePerTicket)
	for _, listing := range listings {
		assert.Equal(t, scrape.PlatformSeatGeek, listing.Platform)
	}
}

func TestListingsFromStatsDedupesTiers(t *testing.T) {
	// a one-listing event reports the same number for every stat
	stats := map[string]any{
		"lowest_price":  float64(120),
		"average_price": float64(120),
		"highest_price": float64(120),
	}

	listings := listingsFromStats(stats, "123")
	require.Len(t, listings, 1)
	assert.Equal(t, "Various (Low)", listings[0].Section)
}

func TestListingsFromStatsEmpty(t *testing.T) {
	assert.Empty(t, listingsFromStats(map[string]any{"listing_count": float64(0)}, "123"))
}

func TestParsePageNextData(t *testing.T) {
	s := newTestScraper(t)

	html := `<script id="__NEXT_DATA__" type="application/json">{
		"props": {"pageProps": {"event": {"stats": {"lowest_price": 75, "highest_price": 310}}}}
	}</script>`

	listings := s.parsePage(html, "123")
	require.Len(t, listings, 2)
	assert.Equal(t, 75.0, listings[0].PricePerTicket)
	assert.Equal(t, 310.0, listings[1].PricePerTicket)
}

func TestParsePageRegexFallback(t *testing.T) {
	s := newTestScraper(t)

	html := `<script>var x = {"lowest_price": 88.50, "average_price": 140, "highest_price": 525};</script>`

	listings := s.parsePage(html, "123")
	require.Len(t, listings, 3)
	assert.Equal(t, 88.5, listings[0].PricePerTicket)
	assert.Equal(t, "regex", listings[0].RawData["source"])
}

func TestParsePageNothing(t *testing.T) {
	s := newTestScraper(t)
	assert.Empty(t, s.parsePage("<html><body>Event over</body></html>", "123"))
}
