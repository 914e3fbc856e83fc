package aggregate

import (
	"sort"

	"ticket-tracker/internal/scrape"
)

// Stats summarizes per-ticket prices across a set of listings. All
// fields are zero when Count is zero.
type Stats struct {
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	AvgPrice     float64 `json:"avg_price"`
	MedianPrice  float64 `json:"median_price"`
	AvgLowestTwo float64 `json:"avg_lowest_2"`
	Count        int     `json:"count"`
}

// PlatformStats is the per-platform slice of a breakdown.
type PlatformStats struct {
	AvgPrice float64 `json:"avg_price"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	Count    int     `json:"count"`
}

// Aggregate computes summary stats over the listings' per-ticket prices.
func Aggregate(listings []scrape.Listing) Stats {
	prices := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.PricePerTicket > 0 {
			prices = append(prices, listing.PricePerTicket)
		}
	}
	if len(prices) == 0 {
		return Stats{}
	}

	sort.Float64s(prices)

	var sum float64
	for _, p := range prices {
		sum += p
	}

	return Stats{
		MinPrice:     prices[0],
		MaxPrice:     prices[len(prices)-1],
		AvgPrice:     sum / float64(len(prices)),
		MedianPrice:  median(prices),
		AvgLowestTwo: avgLowestTwo(prices),
		Count:        len(prices),
	}
}

// median expects prices sorted ascending.
func median(prices []float64) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return prices[n/2]
	}
	return (prices[n/2-1] + prices[n/2]) / 2
}

// avgLowestTwo averages the two cheapest prices, or returns the single
// price when only one exists. Less twitchy than the raw minimum when a
// lone underpriced listing appears. Expects prices sorted ascending.
func avgLowestTwo(prices []float64) float64 {
	switch len(prices) {
	case 0:
		return 0
	case 1:
		return prices[0]
	default:
		return (prices[0] + prices[1]) / 2
	}
}

// ByPlatform groups listings by platform and summarizes each group.
// Platforms with no priced listings are omitted.
func ByPlatform(listings []scrape.Listing) map[string]PlatformStats {
	grouped := make(map[string][]float64)
	for _, listing := range listings {
		if listing.PricePerTicket > 0 {
			grouped[listing.Platform] = append(grouped[listing.Platform], listing.PricePerTicket)
		}
	}

	breakdown := make(map[string]PlatformStats, len(grouped))
	for platform, prices := range grouped {
		sort.Float64s(prices)
		var sum float64
		for _, p := range prices {
			sum += p
		}
		breakdown[platform] = PlatformStats{
			AvgPrice: sum / float64(len(prices)),
			MinPrice: prices[0],
			MaxPrice: prices[len(prices)-1],
			Count:    len(prices),
		}
	}
	return breakdown
}

// BySection groups listings by section name.
func BySection(listings []scrape.Listing) map[string][]scrape.Listing {
	grouped := make(map[string][]scrape.Listing)
	for _, listing := range listings {
		section := listing.Section
		if section == "" {
			section = "General"
		}
		grouped[section] = append(grouped[section], listing)
	}
	return grouped
}
