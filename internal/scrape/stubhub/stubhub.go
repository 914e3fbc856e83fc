package stubhub

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ticket-tracker/internal/scrape"

	"github.com/go-resty/resty/v2"
)

// StubHub has no stable public API and fronts its event pages with bot
// detection that answers non-browser clients with a 202 "pending" page.
// The plain HTTP scraper works when the page renders server-side; the
// chromedp variant in browser.go is the reliable (and expensive) path.

const baseURL = "https://www.stubhub.com"

type Scraper struct {
	client  *resty.Client
	limiter *scrape.Limiter
}

func New(limiter *scrape.Limiter, timeout time.Duration) *Scraper {
	client := resty.New()
	client.SetTimeout(timeout)
	// Full browser-like headers are critical here
	client.SetHeaders(map[string]string{
		"User-Agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Sec-Ch-Ua":                 `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"macOS"`,
		"Cache-Control":             "max-age=0",
	})

	return &Scraper{client: client, limiter: limiter}
}

func (s *Scraper) Platform() string {
	return scrape.PlatformStubHub
}

// Strategy is one extraction attempt over a fetched event page. Strategies
// are pure over the HTML so each can be tested against fixture pages.
type Strategy struct {
	Name    string
	Extract func(html, eventID string) []scrape.Listing
}

// Strategies returns the extraction chain in priority order. The driver
// stops at the first strategy that yields listings.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "flight-data", Extract: extractFlightData},
		{Name: "next-data", Extract: extractNextData},
		{Name: "script-tags", Extract: extractScriptTags},
		{Name: "regex", Extract: extractRegexPrices},
	}
}

// FetchListings fetches the event page over plain HTTP and runs the
// strategy chain against it.
func (s *Scraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	if err := s.limiter.Acquire(ctx); err != nil {
		return scrape.Failed(err)
	}

	url := fmt.Sprintf("%s/event/%s", baseURL, eventID)
	log.Printf("[stubhub] Fetching %s", url)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		log.Printf("[stubhub] Request failed: %v", err)
		return scrape.Failed(err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusAccepted:
		log.Printf("[stubhub] 202 Accepted - bot detection triggered")
		return scrape.Blocked(fmt.Errorf("stubhub: 202 bot check pending"))
	case http.StatusForbidden:
		log.Printf("[stubhub] 403 Forbidden - blocked")
		return scrape.Blocked(fmt.Errorf("stubhub: 403 forbidden"))
	case http.StatusNotFound:
		log.Printf("[stubhub] Event %s not found", eventID)
		return scrape.Empty()
	default:
		log.Printf("[stubhub] HTTP %d", resp.StatusCode())
		return scrape.Empty()
	}

	listings := ExtractListings(string(resp.Body()), eventID)
	if len(listings) == 0 {
		log.Printf("[stubhub] All extraction strategies failed for event %s", eventID)
		return scrape.Empty()
	}
	return scrape.OK(listings)
}

// ExtractListings runs the strategy chain over HTML, short-circuiting on
// the first non-empty result.
func ExtractListings(html, eventID string) []scrape.Listing {
	for _, strat := range Strategies() {
		listings := strat.Extract(html, eventID)
		if len(listings) > 0 {
			log.Printf("[stubhub] %s extracted %d listings", strat.Name, len(listings))
			return listings
		}
	}
	return nil
}

var eventIDRe = regexp.MustCompile(`/event/(\d{7,9})`)

// SearchEvent scrapes the search page for the first event ID.
func (s *Scraper) SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", false
	}

	url := fmt.Sprintf("%s/secure/search?q=%s", baseURL, strings.ReplaceAll(artist, " ", "+"))
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return "", false
	}

	if m := eventIDRe.FindSubmatch(resp.Body()); m != nil {
		return string(m[1]), true
	}
	return "", false
}
