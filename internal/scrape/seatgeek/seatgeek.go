package seatgeek

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

// SeatGeek sits behind DataDome, one of the harder anti-bot layers. The
// public API only exposes event-level price stats (no individual listings),
// and the event page is blocked more often than not. Every path here is
// best-effort; a block is reported as such rather than as "no listings".

const (
	baseURL = "https://seatgeek.com"
	apiURL  = "https://api.seatgeek.com/2"
)

type Scraper struct {
	client   *resty.Client
	limiter  *scrape.Limiter
	clientID string
}

func New(limiter *scrape.Limiter, timeout time.Duration, clientID string) *Scraper {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Accept-Language": "en-US,en;q=0.9",
	})

	return &Scraper{client: client, limiter: limiter, clientID: clientID}
}

func (s *Scraper) Platform() string {
	return scrape.PlatformSeatGeek
}

// FetchListings tries the public stats API first, then the event page.
func (s *Scraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	if err := s.limiter.Acquire(ctx); err != nil {
		return scrape.Failed(err)
	}

	listings := s.fetchViaAPI(ctx, eventID)
	if len(listings) > 0 {
		log.Printf("[seatgeek] Found %d price points for event %s (api)", len(listings), eventID)
		return scrape.OK(listings)
	}

	result := s.fetchViaPage(ctx, eventID)
	if result.Status == scrape.StatusOK {
		log.Printf("[seatgeek] Found %d price points for event %s (page)", len(result.Listings), eventID)
	}
	return result
}

func (s *Scraper) fetchViaAPI(ctx context.Context, eventID string) []scrape.Listing {
	req := s.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if s.clientID != "" {
		req.SetQueryParam("client_id", s.clientID)
	}

	resp, err := req.Get(fmt.Sprintf("%s/events/%s", apiURL, eventID))
	if err != nil {
		log.Printf("[seatgeek] API fetch failed: %v", err)
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		log.Printf("[seatgeek] API returned %d", resp.StatusCode())
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil
	}

	stats := extractStats(data)
	if stats == nil {
		return nil
	}
	return listingsFromStats(stats, eventID)
}

func extractStats(data map[string]any) map[string]any {
	if stats, ok := data["stats"].(map[string]any); ok {
		return stats
	}
	if event, ok := data["event"].(map[string]any); ok {
		if stats, ok := event["stats"].(map[string]any); ok {
			return stats
		}
	}
	return nil
}

// listingsFromStats converts event-level stats into up to three synthetic
// Low/Avg/High listings, skipping duplicates of a lower tier.
func listingsFromStats(stats map[string]any, eventID string) []scrape.Listing {
	lowest, _ := scrape.FirstFloat(stats, "lowest_price", "lowest_sg_base_price")
	average, _ := scrape.FirstFloat(stats, "average_price", "median_price")
	highest, _ := scrape.FirstFloat(stats, "highest_price")
	count, _ := scrape.FirstInt(stats, "listing_count")

	var listings []scrape.Listing
	add := func(label string, price float64, kind string) {
		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformSeatGeek,
			Section:        label,
			Quantity:       1,
			PricePerTicket: price,
			TotalPrice:     price,
			ListingURL:     fmt.Sprintf("%s/e/%s", baseURL, eventID),
			RawData:        map[string]any{"type": kind, "listing_count": count, "source": "api_stats"},
		})
	}

	if lowest > 0 {
		add("Various (Low)", lowest, "lowest_price")
	}
	if average > 0 && average != lowest {
		add("Various (Avg)", average, "average_price")
	}
	if highest > 0 && highest != average {
		add("Various (High)", highest, "highest_price")
	}
	return listings
}

func (s *Scraper) fetchViaPage(ctx context.Context, eventID string) scrape.Result {
	url := fmt.Sprintf("%s/e/%s", baseURL, eventID)
	log.Printf("[seatgeek] Attempting page fetch %s", url)

	resp, err := s.client.R().SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(url)
	if err != nil {
		log.Printf("[seatgeek] Page fetch failed: %v", err)
		return scrape.Failed(err)
	}

	body := string(resp.Body())
	if resp.StatusCode() == http.StatusForbidden || strings.Contains(strings.ToLower(body), "datadome") {
		log.Printf("[seatgeek] Blocked by DataDome anti-bot protection")
		return scrape.Blocked(fmt.Errorf("seatgeek: datadome block"))
	}
	if resp.StatusCode() != http.StatusOK {
		log.Printf("[seatgeek] HTTP %d", resp.StatusCode())
		return scrape.Empty()
	}

	return scrape.OK(s.parsePage(body, eventID))
}

var nextDataRe = regexp.MustCompile(`(?s)<script\s+id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

func (s *Scraper) parsePage(html, eventID string) []scrape.Listing {
	var listings []scrape.Listing

	if m := nextDataRe.FindStringSubmatch(html); m != nil {
		var data map[string]any
		if err := json.Unmarshal([]byte(m[1]), &data); err == nil {
			listings = s.parseNextData(data, eventID)
		}
	}

	if len(listings) == 0 {
		listings = s.regexFallback(html, eventID)
	}
	return listings
}

func (s *Scraper) parseNextData(data map[string]any, eventID string) []scrape.Listing {
	props, _ := data["props"].(map[string]any)
	pageProps, _ := props["pageProps"].(map[string]any)
	if pageProps == nil {
		return nil
	}

	var listings []scrape.Listing
	if event, ok := pageProps["event"].(map[string]any); ok {
		if stats, ok := event["stats"].(map[string]any); ok {
			listings = listingsFromStats(stats, eventID)
		}
	}

	// Individual listings rarely survive into the bootstrap JSON, but take
	// them when present.
	if raw, ok := pageProps["listings"].([]any); ok {
		for i, item := range raw {
			if i >= 50 {
				break
			}
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			price, ok := scrape.FirstFloat(obj, "price", "p")
			if !ok {
				continue
			}
			section, _ := scrape.FirstString(obj, "section")
			if section == "" {
				section = "General"
			}
			row, _ := scrape.FirstString(obj, "row")
			qty, ok := scrape.FirstInt(obj, "quantity")
			if !ok {
				qty = 1
			}
			listings = append(listings, scrape.Listing{
				Platform:       scrape.PlatformSeatGeek,
				Section:        section,
				Row:            row,
				Quantity:       qty,
				PricePerTicket: price,
				TotalPrice:     price * float64(qty),
				ListingURL:     fmt.Sprintf("%s/e/%s", baseURL, eventID),
				RawData:        obj,
			})
		}
	}
	return listings
}

var pageStatRes = map[string]*regexp.Regexp{
	"low":  regexp.MustCompile(`"lowest_price"\s*:\s*(\d+(?:\.\d{2})?)`),
	"avg":  regexp.MustCompile(`"average_price"\s*:\s*(\d+(?:\.\d{2})?)`),
	"high": regexp.MustCompile(`"highest_price"\s*:\s*(\d+(?:\.\d{2})?)`),
}

// regexFallback pulls stat fields straight out of raw HTML as a last resort.
func (s *Scraper) regexFallback(html, eventID string) []scrape.Listing {
	found := map[string]float64{}
	for kind, re := range pageStatRes {
		if m := re.FindStringSubmatch(html); m != nil {
			if f, ok := parseFloat(m[1]); ok {
				found[kind] = f
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	stats := map[string]any{}
	if v, ok := found["low"]; ok {
		stats["lowest_price"] = v
	}
	if v, ok := found["avg"]; ok {
		stats["average_price"] = v
	}
	if v, ok := found["high"]; ok {
		stats["highest_price"] = v
	}
	listings := listingsFromStats(stats, eventID)
	for i := range listings {
		listings[i].RawData["source"] = "regex"
	}
	return listings
}

func parseFloat(s string) (float64, bool) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err == nil
}

// SearchEvent uses the public events API with a one-day datetime window,
// preferring a venue match over the first result.
func (s *Scraper) SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", false
	}

	day := date.Format("2006-01-02")
	req := s.client.R().SetContext(ctx).
		SetQueryParam("q", artist).
		SetQueryParam("datetime_utc.gte", day+"T00:00:00").
		SetQueryParam("datetime_utc.lte", day+"T23:59:59").
		SetQueryParam("per_page", "10")
	if s.clientID != "" {
		req.SetQueryParam("client_id", s.clientID)
	}

	resp, err := req.Get(apiURL + "/events")
	if err != nil || resp.StatusCode() != http.StatusOK {
		return "", false
	}

	var data struct {
		Events []struct {
			ID    int64 `json:"id"`
			Venue struct {
				Name string `json:"name"`
			} `json:"venue"`
		} `json:"events"`
	}
	if err := json.Unmarshal(resp.Body(), &data); err != nil || len(data.Events) == 0 {
		return "", false
	}

	for _, ev := range data.Events {
		if strings.Contains(strings.ToLower(ev.Venue.Name), strings.ToLower(venue)) {
			return fmt.Sprintf("%d", ev.ID), true
		}
	}
	return fmt.Sprintf("%d", data.Events[0].ID), true
}
