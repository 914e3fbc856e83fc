package stubhub

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"ticket-tracker/internal/scrape"
)

// Tolerant field matching for listing objects coming out of any strategy.
// StubHub's payloads have gone through several frontend rewrites and the
// same listing can spell its price five different ways.
var pricePaths = []scrape.PricePath{
	{Key: "currentPrice", SubKey: "amount"},
	{Key: "listingPrice", SubKey: "amount"},
	{Key: "price", SubKey: "amount"},
	{Key: "price"},
	{Key: "amount"},
	{Key: "pricePerTicket"},
	{Key: "ticketPrice"},
}

// parseListingObject normalizes a single listing-shaped JSON object.
// A miss on one object never aborts the batch.
func parseListingObject(obj map[string]any, eventID string) (scrape.Listing, bool) {
	price, ok := scrape.FirstPrice(obj, pricePaths)
	if !ok || price > 100000 {
		return scrape.Listing{}, false
	}

	section, _ := scrape.FirstString(obj, "sectionName", "section", "sellerSectionName", "zoneName", "s")
	if section == "" {
		section = "General"
	}
	row, _ := scrape.FirstString(obj, "row", "rowName", "r")
	quantity, ok := scrape.FirstInt(obj, "quantity", "qty", "q")
	if !ok {
		quantity = 1
	}

	return scrape.Listing{
		Platform:       scrape.PlatformStubHub,
		Section:        section,
		Row:            row,
		Quantity:       quantity,
		PricePerTicket: price,
		TotalPrice:     price * float64(quantity),
		ListingURL:     fmt.Sprintf("%s/event/%s", baseURL, eventID),
		RawData:        obj,
	}, true
}

// ---------- Strategy 1: Next.js Flight data ----------

var (
	flightChunkRe  = regexp.MustCompile(`self\.__next_f\.push\(\[1,\s*"((?:[^"\\]|\\.)*)"\]\)`)
	flightObjectRe = regexp.MustCompile(`\{[^{}]*"price"[^{}]*\}`)
	textSectionRe  = regexp.MustCompile(`"(?:sectionName|section)"\s*:\s*"([^"]+)"`)
	textPriceRe    = regexp.MustCompile(`"(?:price|amount|currentPrice)"\s*:\s*(\d+(?:\.\d+)?)`)
	textRowRe      = regexp.MustCompile(`"row"\s*:\s*"([^"]+)"`)
)

// extractFlightData decodes the streamed React Server Components chunks
// (self.__next_f.push([1, "..."])) and hunts price-bearing fragments in
// the combined text.
func extractFlightData(html, eventID string) []scrape.Listing {
	chunks := flightChunkRe.FindAllStringSubmatch(html, -1)
	if len(chunks) == 0 {
		return nil
	}

	var combined string
	for _, m := range chunks {
		if decoded, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			combined += decoded
		} else {
			combined += m[1]
		}
	}

	listings := bucketListingsFromText(combined, eventID)

	// Also pick up full JSON objects embedded in the decoded stream
	for i, objStr := range flightObjectRe.FindAllString(combined, -1) {
		if i >= 100 {
			break
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(objStr), &obj); err != nil {
			continue
		}
		if listing, ok := parseListingObject(obj, eventID); ok {
			listings = append(listings, listing)
		}
	}

	return listings
}

// bucketListingsFromText collapses loose price tokens from decoded text
// into Low/Median/High summary listings.
func bucketListingsFromText(text, eventID string) []scrape.Listing {
	var prices []float64
	for _, m := range textPriceRe.FindAllStringSubmatch(text, -1) {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 10 && f <= 50000 {
			prices = append(prices, f)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	section := ""
	if m := textSectionRe.FindStringSubmatch(text); m != nil {
		section = m[1]
	}
	row := ""
	if m := textRowRe.FindStringSubmatch(text); m != nil {
		row = m[1]
	}
	return summaryBuckets(prices, section, row, eventID, "extracted")
}

// ---------- Strategy 2: classic __NEXT_DATA__ blob ----------

var stubhubNextDataRe = regexp.MustCompile(`(?s)<script\s+id="__NEXT_DATA__"[^>]*>(.*?)</script>`)

func extractNextData(html, eventID string) []scrape.Listing {
	m := stubhubNextDataRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return nil
	}

	props, _ := data["props"].(map[string]any)
	pageProps, _ := props["pageProps"].(map[string]any)
	if pageProps == nil {
		return nil
	}

	// Listing arrays have lived under several keys across page rewrites
	sources := []any{
		pageProps["listings"],
		pageProps["eventListings"],
		pageProps["ticketListings"],
		pageProps["initialListings"],
		dig(pageProps, "inventory", "listings"),
		dig(pageProps, "data", "listings"),
	}

	for _, source := range sources {
		items, ok := source.([]any)
		if !ok || len(items) == 0 {
			continue
		}
		var listings []scrape.Listing
		for i, item := range items {
			if i >= 100 {
				break
			}
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if listing, ok := parseListingObject(obj, eventID); ok {
				listings = append(listings, listing)
			}
		}
		if len(listings) > 0 {
			return listings
		}
	}

	// No listing array: fall back to event-level price stats
	for _, key := range []any{pageProps["event"], pageProps["eventData"], dig(pageProps, "data", "event")} {
		if event, ok := key.(map[string]any); ok && len(event) > 0 {
			if listings := eventSummaryListings(event, eventID); len(listings) > 0 {
				return listings
			}
		}
	}
	return nil
}

// dig descends nested maps one key at a time, nil on any miss.
func dig(obj map[string]any, keys ...string) any {
	var current any = obj
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

func eventSummaryListings(event map[string]any, eventID string) []scrape.Listing {
	stats, _ := event["stats"].(map[string]any)
	if stats == nil {
		stats = map[string]any{}
	}

	minPrice, ok := scrape.FirstFloat(event, "minPrice", "lowestPrice", "minListPrice")
	if !ok {
		minPrice, _ = scrape.FirstFloat(stats, "minPrice")
	}
	maxPrice, ok := scrape.FirstFloat(event, "maxPrice", "highestPrice", "maxListPrice")
	if !ok {
		maxPrice, _ = scrape.FirstFloat(stats, "maxPrice")
	}
	count, _ := scrape.FirstInt(event, "listingCount", "ticketCount", "totalListings")

	var listings []scrape.Listing
	add := func(label string, price float64, kind string) {
		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformStubHub,
			Section:        label,
			Quantity:       1,
			PricePerTicket: price,
			TotalPrice:     price,
			ListingURL:     fmt.Sprintf("%s/event/%s", baseURL, eventID),
			RawData:        map[string]any{"type": kind, "ticket_count": count},
		})
	}
	if minPrice > 0 {
		add("Various (Low)", minPrice, "event_min_price")
	}
	if maxPrice > 0 && maxPrice != minPrice {
		add("Various (High)", maxPrice, "event_max_price")
	}
	return listings
}

// ---------- Strategy 3: script tag scan ----------

var (
	scriptTagRe    = regexp.MustCompile(`(?s)<script[^>]*>(.*?)</script>`)
	scriptObjectRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\});`),
		regexp.MustCompile(`(?s)window\.initialState\s*=\s*(\{.*?\});`),
		regexp.MustCompile(`(?s)"listings"\s*:\s*(\[.*?\])`),
		regexp.MustCompile(`(?s)"inventory"\s*:\s*(\{.*?\})`),
	}
)

// extractScriptTags scans every script tag for assignment patterns and
// recognizable listing arrays.
func extractScriptTags(html, eventID string) []scrape.Listing {
	for _, tag := range scriptTagRe.FindAllStringSubmatch(html, -1) {
		content := tag[1]
		for _, re := range scriptObjectRes {
			for _, m := range re.FindAllStringSubmatch(content, -1) {
				if listings := parseScriptPayload(m[1], eventID); len(listings) > 0 {
					return listings
				}
			}
		}
	}
	return nil
}

func parseScriptPayload(raw, eventID string) []scrape.Listing {
	var listings []scrape.Listing
	appendObjects := func(items []any) {
		for i, item := range items {
			if i >= 100 {
				break
			}
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if listing, ok := parseListingObject(obj, eventID); ok {
				listings = append(listings, listing)
			}
		}
	}

	var asList []any
	if err := json.Unmarshal([]byte(raw), &asList); err == nil {
		appendObjects(asList)
		return listings
	}

	var asObject map[string]any
	if err := json.Unmarshal([]byte(raw), &asObject); err != nil {
		return nil
	}
	for _, key := range []string{"listings", "items", "inventory"} {
		if items, ok := asObject[key].([]any); ok && len(items) > 0 {
			appendObjects(items)
			if len(listings) > 0 {
				return listings
			}
		}
	}
	return listings
}

// ---------- Strategy 4: regex price buckets ----------

var regexPriceRes = []*regexp.Regexp{
	regexp.MustCompile(`"currentPrice"\s*:\s*\{\s*"amount"\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`"listingPrice"\s*:\s*\{\s*"amount"\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`"price"\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`"amount"\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`\$(\d{2,4}(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(\d{2,4}(?:\.\d{2})?)\s*(?:per ticket|each|/ticket)`),
}

// extractRegexPrices is the last resort: any price-shaped token in the
// raw HTML, bucketed into Low/Median/High.
func extractRegexPrices(html, eventID string) []scrape.Listing {
	var prices []float64
	for _, re := range regexPriceRes {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 20 && f <= 50000 {
				prices = append(prices, f)
			}
		}
	}
	if len(prices) == 0 {
		return nil
	}
	return summaryBuckets(prices, "", "", eventID, "regex")
}

// summaryBuckets dedupes prices and emits Low / Median / High synthetic
// listings, labeling the low bucket with the first real section seen.
func summaryBuckets(prices []float64, section, row, eventID, kind string) []scrape.Listing {
	unique := uniqueSorted(prices)
	if len(unique) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/event/%s", baseURL, eventID)
	lowSection := section
	if lowSection == "" {
		lowSection = "Various (Low)"
	}

	listings := []scrape.Listing{{
		Platform:       scrape.PlatformStubHub,
		Section:        lowSection,
		Row:            row,
		Quantity:       1,
		PricePerTicket: unique[0],
		TotalPrice:     unique[0],
		ListingURL:     url,
		RawData:        map[string]any{"type": kind + "_min", "prices_found": len(unique)},
	}}

	if len(unique) > 2 {
		median := unique[len(unique)/2]
		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformStubHub,
			Section:        "Various (Median)",
			Quantity:       1,
			PricePerTicket: median,
			TotalPrice:     median,
			ListingURL:     url,
			RawData:        map[string]any{"type": kind + "_median"},
		})
	}

	if len(unique) > 1 {
		high := unique[len(unique)-1]
		listings = append(listings, scrape.Listing{
			Platform:       scrape.PlatformStubHub,
			Section:        "Various (High)",
			Quantity:       1,
			PricePerTicket: high,
			TotalPrice:     high,
			ListingURL:     url,
			RawData:        map[string]any{"type": kind + "_max"},
		})
	}

	return listings
}

func uniqueSorted(prices []float64) []float64 {
	seen := make(map[float64]struct{}, len(prices))
	unique := make([]float64, 0, len(prices))
	for _, p := range prices {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	sort.Float64s(unique)
	return unique
}
