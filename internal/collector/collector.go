package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"ticket-tracker/internal/aggregate"
	"ticket-tracker/internal/models"
	"ticket-tracker/internal/scrape"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventResult is the outcome of one event's collection pass.
type EventResult struct {
	EventID       uint            `json:"event_id"`
	EventName     string          `json:"event_name"`
	ListingCount  int             `json:"listing_count"`
	Stats         aggregate.Stats `json:"stats"`
	PlatformsOK   []string        `json:"platforms_ok"`
	PlatformsSkip []string        `json:"platforms_skipped,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
}

// CycleSummary describes one full collection cycle across all events.
type CycleSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	EventCount int           `json:"event_count"`
	Results    []EventResult `json:"results"`
}

// Collector pulls listings from every configured marketplace, persists
// raw snapshots, and rolls them up into hourly price history rows.
type Collector struct {
	db       *gorm.DB
	scrapers []scrape.Scraper

	// OnCycle, when set, is invoked with each completed cycle summary.
	OnCycle func(CycleSummary)

	mu      sync.Mutex
	running bool
	lastRun *CycleSummary
	lastErr error
}

func New(db *gorm.DB, scrapers []scrape.Scraper) *Collector {
	return &Collector{db: db, scrapers: scrapers}
}

// Status reports whether a cycle is in flight plus the last outcome.
func (c *Collector) Status() (running bool, last *CycleSummary, lastErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running, c.lastRun, c.lastErr
}

// StartAsync kicks off a collection cycle in the background. Returns an
// error if one is already running.
func (c *Collector) StartAsync(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("collection already in progress")
	}
	c.running = true
	c.mu.Unlock()

	go func() {
		summary, err := c.collect(ctx)
		c.mu.Lock()
		c.running = false
		c.lastRun = &summary
		c.lastErr = err
		c.mu.Unlock()
	}()
	return nil
}

// CollectAll runs one synchronous collection cycle. Used by the
// scheduler and the one-shot CLI; the API goes through StartAsync.
func (c *Collector) CollectAll(ctx context.Context) (CycleSummary, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return CycleSummary{}, fmt.Errorf("collection already in progress")
	}
	c.running = true
	c.mu.Unlock()

	summary, err := c.collect(ctx)

	c.mu.Lock()
	c.running = false
	c.lastRun = &summary
	c.lastErr = err
	c.mu.Unlock()
	return summary, err
}

func (c *Collector) collect(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{StartedAt: time.Now()}

	var events []models.Event
	if err := c.db.Where("event_date >= ?", time.Now()).Order("event_date asc").Find(&events).Error; err != nil {
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("load events: %w", err)
	}
	summary.EventCount = len(events)
	log.Printf("[collector] Starting cycle for %d upcoming events", len(events))

	for i := range events {
		select {
		case <-ctx.Done():
			summary.FinishedAt = time.Now()
			return summary, ctx.Err()
		default:
		}
		result := c.collectEvent(ctx, &events[i])
		summary.Results = append(summary.Results, result)
	}

	summary.FinishedAt = time.Now()
	log.Printf("[collector] Cycle finished in %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))

	if c.OnCycle != nil {
		c.OnCycle(summary)
	}
	return summary, nil
}

// collectEvent fetches every marketplace for one event sequentially.
// Per-platform failures are recorded and do not abort the event.
func (c *Collector) collectEvent(ctx context.Context, event *models.Event) EventResult {
	result := EventResult{EventID: event.ID, EventName: event.Name}
	now := time.Now()

	var all []scrape.Listing
	for _, scraper := range c.scrapers {
		externalID := platformEventID(event, scraper.Platform())
		if externalID == "" {
			result.PlatformsSkip = append(result.PlatformsSkip, scraper.Platform())
			continue
		}

		res := scraper.FetchListings(ctx, externalID)
		switch res.Status {
		case scrape.StatusOK:
			log.Printf("[collector] %s: %s returned %d listings", event.Name, scraper.Platform(), len(res.Listings))
			all = append(all, res.Listings...)
			result.PlatformsOK = append(result.PlatformsOK, scraper.Platform())
		case scrape.StatusEmpty:
			log.Printf("[collector] %s: %s returned no listings", event.Name, scraper.Platform())
			result.PlatformsOK = append(result.PlatformsOK, scraper.Platform())
		case scrape.StatusBlocked:
			log.Printf("[collector] %s: %s blocked the request: %v", event.Name, scraper.Platform(), res.Err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: blocked", scraper.Platform()))
		case scrape.StatusError:
			log.Printf("[collector] %s: %s failed: %v", event.Name, scraper.Platform(), res.Err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", scraper.Platform(), res.Err))
		}
	}

	result.ListingCount = len(all)
	if len(all) == 0 {
		return result
	}

	if err := c.saveSnapshots(event.ID, all, now); err != nil {
		log.Printf("[collector] %s: saving snapshots failed: %v", event.Name, err)
		result.Errors = append(result.Errors, fmt.Sprintf("snapshots: %v", err))
	}

	result.Stats = aggregate.Aggregate(all)
	if err := c.saveHistory(event.ID, all, now); err != nil {
		log.Printf("[collector] %s: saving history failed: %v", event.Name, err)
		result.Errors = append(result.Errors, fmt.Sprintf("history: %v", err))
	}
	return result
}

func (c *Collector) saveSnapshots(eventID uint, listings []scrape.Listing, fetchedAt time.Time) error {
	snapshots := make([]models.ListingSnapshot, 0, len(listings))
	for _, listing := range listings {
		raw := ""
		if listing.RawData != nil {
			if data, err := json.Marshal(listing.RawData); err == nil {
				raw = string(data)
			}
		}
		snapshots = append(snapshots, models.ListingSnapshot{
			EventID:        eventID,
			Platform:       listing.Platform,
			Section:        listing.Section,
			Row:            listing.Row,
			Quantity:       listing.Quantity,
			PricePerTicket: listing.PricePerTicket,
			TotalPrice:     listing.TotalPrice,
			ListingURL:     listing.ListingURL,
			FetchedAt:      fetchedAt,
			RawData:        raw,
		})
	}
	return c.db.CreateInBatches(snapshots, 100).Error
}

// saveHistory upserts one overall row plus one row per section, keyed
// by (event, section, date, hour). A rerun within the same hour
// overwrites instead of duplicating.
func (c *Collector) saveHistory(eventID uint, listings []scrape.Listing, now time.Time) error {
	rows := []models.PriceHistory{historyRow(eventID, "", listings, now)}
	for section, sectionListings := range aggregate.BySection(listings) {
		rows = append(rows, historyRow(eventID, section, sectionListings, now))
	}

	return c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "event_id"}, {Name: "section"}, {Name: "recorded_date"}, {Name: "recorded_hour"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_price", "max_price", "avg_price", "median_price",
			"avg_lowest_two", "listing_count", "platform_breakdown",
		}),
	}).Create(&rows).Error
}

func historyRow(eventID uint, section string, listings []scrape.Listing, now time.Time) models.PriceHistory {
	stats := aggregate.Aggregate(listings)

	breakdown := ""
	if data, err := json.Marshal(aggregate.ByPlatform(listings)); err == nil {
		breakdown = string(data)
	}

	return models.PriceHistory{
		EventID:           eventID,
		Section:           section,
		RecordedDate:      now.Format("2006-01-02"),
		RecordedHour:      now.Hour(),
		MinPrice:          stats.MinPrice,
		MaxPrice:          stats.MaxPrice,
		AvgPrice:          stats.AvgPrice,
		MedianPrice:       stats.MedianPrice,
		AvgLowestTwo:      stats.AvgLowestTwo,
		ListingCount:      stats.Count,
		PlatformBreakdown: breakdown,
	}
}

// platformEventID returns the event's external ID for a marketplace, or
// "" when the event is not tracked there.
func platformEventID(event *models.Event, platform string) string {
	switch platform {
	case scrape.PlatformStubHub:
		return event.StubHubEventID
	case scrape.PlatformSeatGeek:
		return event.SeatGeekEventID
	case scrape.PlatformVividSeats:
		return event.VividSeatsEventID
	}
	return ""
}
