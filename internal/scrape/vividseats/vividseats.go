package vividseats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ticket-tracker/internal/scrape"

	"github.com/go-resty/resty/v2"
)

// Vivid Seats exposes a public JSON API (Hermes), which makes it the most
// reliable of the three platforms. No authentication needed.

const (
	baseURL = "https://www.vividseats.com"
	apiURL  = "https://www.vividseats.com/hermes/api/v1"

	// Listings under this price are placeholder/parking noise on the
	// productions we track and are dropped before aggregation.
	noiseFloor = 100.0

	maxListings = 200
)

type Scraper struct {
	client  *resty.Client
	limiter *scrape.Limiter
}

func New(limiter *scrape.Limiter, timeout time.Duration) *Scraper {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://www.vividseats.com/",
	})

	return &Scraper{client: client, limiter: limiter}
}

func (s *Scraper) Platform() string {
	return scrape.PlatformVividSeats
}

type ticketsResponse struct {
	Tickets []map[string]any `json:"tickets"`
}

// FetchListings hits the listings endpoint for a production ID. When the
// endpoint has no individual tickets it falls back to production-level
// price stats, which yield up to three synthetic Low/Avg/High listings.
func (s *Scraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	if err := s.limiter.Acquire(ctx); err != nil {
		return scrape.Failed(err)
	}

	url := fmt.Sprintf("%s/listings?productionId=%s", apiURL, eventID)
	log.Printf("[vividseats] Fetching %s", url)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[vividseats] Request failed: %v", err)
		return scrape.Failed(err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusForbidden:
		log.Printf("[vividseats] 403 Forbidden - may be rate limited")
		return scrape.Blocked(fmt.Errorf("vividseats: 403 forbidden"))
	case http.StatusNotFound:
		log.Printf("[vividseats] Event %s not found", eventID)
		return scrape.Empty()
	default:
		log.Printf("[vividseats] HTTP %d", resp.StatusCode())
		return scrape.Empty()
	}

	var payload ticketsResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		log.Printf("[vividseats] Malformed listings payload: %v", err)
		return scrape.Failed(err)
	}

	listings := s.parseTickets(payload.Tickets, eventID)

	// No individual tickets: fall back to production stats
	if len(listings) == 0 {
		listings = s.fetchProductionStats(ctx, eventID)
	}

	log.Printf("[vividseats] Found %d listings for event %s", len(listings), eventID)
	return scrape.OK(listings)
}

func (s *Scraper) parseTickets(tickets []map[string]any, eventID string) []scrape.Listing {
	listings := make([]scrape.Listing, 0, len(tickets))

	for _, ticket := range tickets {
		if len(listings) >= maxListings {
			break
		}
		// API uses short keys: s=section, r=row, q=quantity, aip=all-in price
		price, ok := scrape.FirstFloat(ticket, "p", "price", "allInPricePerTicket", "aip")
		if !ok || price < noiseFloor {
			continue
		}

		section, _ := scrape.FirstString(ticket, "s", "sectionName", "section")
		if section == "" {
			section = "General"
		}
		row, _ := scrape.FirstString(ticket, "r", "row")
		quantity, ok := scrape.FirstInt(ticket, "q", "quantity")
		if !ok {
			quantity = 1
		}

		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformVividSeats,
			Section:        section,
			Row:            row,
			Quantity:       quantity,
			PricePerTicket: price,
			TotalPrice:     price * float64(quantity),
			ListingURL:     fmt.Sprintf("%s/production/%s", baseURL, eventID),
			RawData:        ticket,
		})
	}

	return listings
}

func (s *Scraper) fetchProductionStats(ctx context.Context, eventID string) []scrape.Listing {
	details, err := s.ProductionDetails(ctx, eventID)
	if err != nil {
		log.Printf("[vividseats] Production stats fetch failed: %v", err)
		return nil
	}

	var listings []scrape.Listing
	add := func(label string, price float64, kind string) {
		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformVividSeats,
			Section:        label,
			Quantity:       1,
			PricePerTicket: price,
			TotalPrice:     price,
			ListingURL:     fmt.Sprintf("%s/production/%s", baseURL, eventID),
			RawData:        map[string]any{"type": kind, "source": "production_api"},
		})
	}

	if details.MinPrice > 0 {
		add("Various (Low)", details.MinPrice, "min_price")
	}
	if details.AvgPrice > 0 && details.AvgPrice != details.MinPrice {
		add("Various (Avg)", details.AvgPrice, "avg_price")
	}
	if details.MaxPrice > 0 && details.MaxPrice != details.AvgPrice {
		add("Various (High)", details.MaxPrice, "max_price")
	}
	return listings
}

// ProductionDetails holds event metadata plus price stats from the
// productions endpoint.
type ProductionDetails struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Date     string  `json:"date"`
	Venue    string  `json:"venue"`
	City     string  `json:"city"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
}

func (s *Scraper) ProductionDetails(ctx context.Context, eventID string) (*ProductionDetails, error) {
	resp, err := s.client.R().SetContext(ctx).Get(fmt.Sprintf("%s/productions/%s", apiURL, eventID))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("vividseats: productions endpoint returned %d", resp.StatusCode())
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("vividseats: malformed production payload: %w", err)
	}

	details := &ProductionDetails{}
	if name, ok := scrape.FirstString(data, "name"); ok {
		details.Name = name
	}
	if date, ok := scrape.FirstString(data, "localDate"); ok {
		details.Date = date
	}
	if venue, ok := data["venue"].(map[string]any); ok {
		details.Venue, _ = scrape.FirstString(venue, "name")
		details.City, _ = scrape.FirstString(venue, "city")
	}
	details.MinPrice, _ = scrape.FirstFloat(data, "minPrice")
	details.MaxPrice, _ = scrape.FirstFloat(data, "maxPrice")
	details.AvgPrice, _ = scrape.FirstFloat(data, "avgPrice", "medianPrice")
	return details, nil
}

var (
	// Production URLs look like /artist-tickets-venue-9-18-2026/production/6564610
	productionRe = regexp.MustCompile(`href="(/[^"]*-tickets-[^"]*production/(\d+))"`)
)

func formatSearchDate(date time.Time) string {
	return fmt.Sprintf("%d-%d-%d", int(date.Month()), date.Day(), date.Year())
}

// SearchEvent scrapes the search results page for a production ID matching
// the event date, falling back to the first non-parking result.
func (s *Scraper) SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", false
	}

	url := fmt.Sprintf("%s/search?searchTerm=%s", baseURL, strings.ReplaceAll(artist, " ", "+"))
	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(url)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return "", false
	}
	html := string(resp.Body())

	// Exact date match first; URL dates are m-d-yyyy without zero padding
	dateRe := regexp.MustCompile(`(?i)href="[^"]*` + regexp.QuoteMeta(formatSearchDate(date)) + `[^"]*production/(\d+)"`)
	if m := dateRe.FindStringSubmatch(html); m != nil {
		return m[1], true
	}

	for _, m := range productionRe.FindAllStringSubmatch(html, -1) {
		if !strings.Contains(strings.ToLower(m[1]), "parking") {
			return m[2], true
		}
	}
	return "", false
}
