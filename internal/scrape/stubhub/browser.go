package stubhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"ticket-tracker/internal/scrape"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript masks the usual automation tells before any page script
// runs. StubHub's bot check inspects navigator.webdriver and friends.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = { runtime: {} };
`

// Browser owns a single headless Chrome instance shared across calls.
// It is created lazily on first use and must be released with Close.
type Browser struct {
	mu         sync.Mutex
	chromeBin  string
	browserCtx context.Context
	cancels    []context.CancelFunc
}

func NewBrowser(chromeBin string) *Browser {
	return &Browser{chromeBin: chromeBin}
}

func (b *Browser) context() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}

	bin := b.chromeBin
	if bin == "" {
		bin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	b.browserCtx = browserCtx
	b.cancels = []context.CancelFunc{cancelBrowser, cancelAlloc}
	log.Printf("[stubhub] Launched headless browser (binary: %q)", bin)
	return browserCtx, nil
}

// Close releases the browser process. Safe to call more than once.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	b.browserCtx = nil
}

// BrowserScraper drives headless Chrome against the event page. Much
// slower than the HTTP scraper, but it passes the server-side bot checks
// that block plain clients. Search still goes over HTTP.
type BrowserScraper struct {
	*Scraper
	browser *Browser
}

func NewWithBrowser(limiter *scrape.Limiter, timeout time.Duration, chromeBin string) *BrowserScraper {
	return &BrowserScraper{
		Scraper: New(limiter, timeout),
		browser: NewBrowser(chromeBin),
	}
}

// Close releases the shared browser process.
func (s *BrowserScraper) Close() {
	s.browser.Close()
}

type domListing struct {
	Text string `json:"text"`
}

// FetchListings renders the event page and tries, in order: listing DOM
// nodes, injected page-state globals, regex over the rendered HTML, and
// finally intercepted inventory/listing XHR responses.
func (s *BrowserScraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	if err := s.limiter.Acquire(ctx); err != nil {
		return scrape.Failed(err)
	}

	browserCtx, err := s.browser.context()
	if err != nil {
		return scrape.Failed(err)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 90*time.Second)
	defer cancelTimeout()

	url := fmt.Sprintf("%s/event/%s", baseURL, eventID)
	log.Printf("[stubhub] Browser navigating to %s", url)

	// Record inventory/listing API responses as they stream in; bodies
	// are pulled later only if the DOM paths come up empty.
	var respMu sync.Mutex
	var capturedIDs []network.RequestID
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		lower := strings.ToLower(resp.Response.URL)
		if strings.Contains(lower, "inventory") || strings.Contains(lower, "listing") {
			respMu.Lock()
			capturedIDs = append(capturedIDs, resp.RequestID)
			respMu.Unlock()
		}
	})

	var domTexts []domListing
	err = chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.Sleep(5*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`
			(function() {
				var nodes = document.querySelectorAll('[data-testid="listing-row"], .ListingRow, [class*="listing"]');
				var out = [];
				for (var i = 0; i < nodes.length && out.length < 100; i++) {
					var text = nodes[i].innerText || '';
					if (text.indexOf('$') !== -1) {
						out.push({text: text.slice(0, 300)});
					}
				}
				return out;
			})()
		`, &domTexts),
	)
	if err != nil {
		log.Printf("[stubhub] Browser navigation failed: %v", err)
		return scrape.Failed(err)
	}

	// Method 1: rendered listing DOM nodes
	listings := parseDOMTexts(domTexts, eventID)
	if len(listings) > 0 {
		log.Printf("[stubhub] Browser DOM extracted %d listings", len(listings))
		return scrape.OK(listings)
	}

	// Method 2: page-state globals injected by the frontend
	var pageState json.RawMessage
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`
		(function() {
			if (window.__NEXT_DATA__) return window.__NEXT_DATA__;
			if (window.__data) return window.__data;
			if (window.__INITIAL_STATE__) return window.__INITIAL_STATE__;
			return null;
		})()
	`, &pageState)); err == nil && len(pageState) > 0 && string(pageState) != "null" {
		var data map[string]any
		if json.Unmarshal(pageState, &data) == nil {
			if listings := listingsFromData(data, eventID); len(listings) > 0 {
				log.Printf("[stubhub] Browser page state extracted %d listings", len(listings))
				return scrape.OK(listings)
			}
		}
	}

	// Method 3: full strategy chain over the rendered HTML
	var renderedHTML string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &renderedHTML)); err == nil {
		if listings := ExtractListings(renderedHTML, eventID); len(listings) > 0 {
			return scrape.OK(listings)
		}
	}

	// Method 4: bodies of intercepted inventory/listing responses
	respMu.Lock()
	ids := append([]network.RequestID(nil), capturedIDs...)
	respMu.Unlock()
	if len(ids) > 0 {
		err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			for _, id := range ids {
				body, err := network.GetResponseBody(id).Do(ctx)
				if err != nil {
					continue
				}
				var data map[string]any
				if json.Unmarshal(body, &data) != nil {
					continue
				}
				listings = append(listings, listingsFromData(data, eventID)...)
			}
			return nil
		}))
		if err == nil && len(listings) > 0 {
			log.Printf("[stubhub] Browser network capture extracted %d listings", len(listings))
			return scrape.OK(listings)
		}
	}

	log.Printf("[stubhub] Browser found no listings for event %s", eventID)
	return scrape.Empty()
}

var (
	domPriceRe   = regexp.MustCompile(`\$([0-9,]+(?:\.[0-9]{2})?)`)
	domSectionRe = regexp.MustCompile(`(?i)(Section\s*\d+|GA|PIT|Floor|General Admission)`)
	domRowRe     = regexp.MustCompile(`(?i)Row\s*([A-Z0-9]+)`)
	domQtyRe     = regexp.MustCompile(`(?i)(\d+)\s*ticket`)
)

// parseDOMTexts pulls listing fields out of the free text of rendered
// listing rows.
func parseDOMTexts(rows []domListing, eventID string) []scrape.Listing {
	var listings []scrape.Listing
	for _, row := range rows {
		m := domPriceRe.FindStringSubmatch(row.Text)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || price <= 0 {
			continue
		}

		section := "General"
		if sm := domSectionRe.FindStringSubmatch(row.Text); sm != nil {
			section = sm[1]
		}
		rowName := ""
		if rm := domRowRe.FindStringSubmatch(row.Text); rm != nil {
			rowName = rm[1]
		}
		quantity := 1
		if qm := domQtyRe.FindStringSubmatch(row.Text); qm != nil {
			if q, err := strconv.Atoi(qm[1]); err == nil && q > 0 {
				quantity = q
			}
		}

		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformStubHub,
			Section:        section,
			Row:            rowName,
			Quantity:       quantity,
			PricePerTicket: price,
			TotalPrice:     price * float64(quantity),
			ListingURL:     fmt.Sprintf("%s/event/%s", baseURL, eventID),
			RawData:        map[string]any{"source": "browser_dom", "raw_text": row.Text},
		})
	}
	return listings
}

// listingsFromData walks the usual nesting paths of captured JSON
// payloads for a listing array.
func listingsFromData(data map[string]any, eventID string) []scrape.Listing {
	sources := []any{
		data["listings"],
		data["items"],
		data["tickets"],
		dig(data, "props", "pageProps", "listings"),
		dig(data, "data", "listings"),
	}

	var listings []scrape.Listing
	for _, source := range sources {
		items, ok := source.([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if listing, ok := parseListingObject(obj, eventID); ok {
				listings = append(listings, listing)
			}
		}
	}
	return listings
}

// findChromeBinary locates a Chrome/Chromium binary on the host.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
