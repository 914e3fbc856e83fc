package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ticket-tracker/internal/database"
	"ticket-tracker/internal/models"
	"ticket-tracker/internal/scrape"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeScraper returns a canned result and records the IDs it was asked for.
type fakeScraper struct {
	platform string
	result   scrape.Result
	calls    []string
}

func (f *fakeScraper) Platform() string { return f.platform }

func (f *fakeScraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	f.calls = append(f.calls, eventID)
	return f.result
}

func (f *fakeScraper) SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool) {
	return "", false
}

func testDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, name string) *models.Event {
	event := &models.Event{
		Name:              name,
		Venue:             "Test Arena",
		EventDate:         time.Now().AddDate(0, 1, 0),
		VividSeatsEventID: "6564610",
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func vividListings(prices ...float64) []scrape.Listing {
	out := make([]scrape.Listing, 0, len(prices))
	for i, p := range prices {
		out = append(out, scrape.Listing{
			Platform:       scrape.PlatformVividSeats,
			Section:        "112",
			Row:            fmt.Sprintf("%d", i+1),
			Quantity:       2,
			PricePerTicket: p,
			TotalPrice:     p * 2,
		})
	}
	return out
}

func TestCollectAllPersistsSnapshotsAndHistory(t *testing.T) {
	db := testDB(t)
	event := seedEvent(t, db, "Test Show")

	vivid := &fakeScraper{
		platform: scrape.PlatformVividSeats,
		result:   scrape.OK(vividListings(150, 90)),
	}
	coll := New(db, []scrape.Scraper{vivid})

	summary, err := coll.CollectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, []string{"6564610"}, vivid.calls)
	assert.Equal(t, 2, summary.Results[0].ListingCount)

	var snapshots []models.ListingSnapshot
	require.NoError(t, db.Where("event_id = ?", event.ID).Find(&snapshots).Error)
	assert.Len(t, snapshots, 2)

	// one overall row (section "") plus one for section 112
	var history []models.PriceHistory
	require.NoError(t, db.Where("event_id = ?", event.ID).Order("section asc").Find(&history).Error)
	require.Len(t, history, 2)

	overall := history[0]
	assert.Equal(t, "", overall.Section)
	assert.Equal(t, 90.0, overall.MinPrice)
	assert.Equal(t, 150.0, overall.MaxPrice)
	assert.Equal(t, 120.0, overall.AvgPrice)
	assert.Equal(t, 120.0, overall.MedianPrice)
	assert.Equal(t, 120.0, overall.AvgLowestTwo)
	assert.Equal(t, 2, overall.ListingCount)
	assert.Contains(t, overall.PlatformBreakdown, scrape.PlatformVividSeats)
}

func TestCollectAllUpsertsWithinSameHour(t *testing.T) {
	db := testDB(t)
	event := seedEvent(t, db, "Upsert Show")

	vivid := &fakeScraper{
		platform: scrape.PlatformVividSeats,
		result:   scrape.OK(vividListings(200)),
	}
	coll := New(db, []scrape.Scraper{vivid})

	_, err := coll.CollectAll(context.Background())
	require.NoError(t, err)

	// second run in the same hour with new prices overwrites, not appends
	vivid.result = scrape.OK(vividListings(180))
	_, err = coll.CollectAll(context.Background())
	require.NoError(t, err)

	var history []models.PriceHistory
	require.NoError(t, db.Where("event_id = ? AND section = ?", event.ID, "").Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, 180.0, history[0].MinPrice)
}

func TestCollectAllSkipsPlatformsWithoutID(t *testing.T) {
	db := testDB(t)
	seedEvent(t, db, "Vivid Only Show") // no stubhub/seatgeek IDs

	stub := &fakeScraper{platform: scrape.PlatformStubHub, result: scrape.OK(vividListings(100))}
	vivid := &fakeScraper{platform: scrape.PlatformVividSeats, result: scrape.OK(vividListings(100))}
	coll := New(db, []scrape.Scraper{stub, vivid})

	summary, err := coll.CollectAll(context.Background())
	require.NoError(t, err)

	assert.Empty(t, stub.calls)
	assert.Len(t, vivid.calls, 1)
	require.Len(t, summary.Results, 1)
	assert.Contains(t, summary.Results[0].PlatformsSkip, scrape.PlatformStubHub)
}

func TestCollectAllRecordsBlocksWithoutAborting(t *testing.T) {
	db := testDB(t)
	event := seedEvent(t, db, "Blocked Show")
	event.StubHubEventID = "157838477"
	require.NoError(t, db.Save(event).Error)

	stub := &fakeScraper{
		platform: scrape.PlatformStubHub,
		result:   scrape.Blocked(errors.New("202 bot check pending")),
	}
	vivid := &fakeScraper{
		platform: scrape.PlatformVividSeats,
		result:   scrape.OK(vividListings(130)),
	}
	coll := New(db, []scrape.Scraper{stub, vivid})

	summary, err := coll.CollectAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	result := summary.Results[0]
	assert.Equal(t, 1, result.ListingCount)
	assert.Contains(t, result.Errors, "stubhub: blocked")
	assert.Contains(t, result.PlatformsOK, scrape.PlatformVividSeats)
}

func TestCollectAllIgnoresPastEvents(t *testing.T) {
	db := testDB(t)
	past := &models.Event{
		Name:              "Finished Show",
		EventDate:         time.Now().AddDate(0, 0, -7),
		VividSeatsEventID: "111",
	}
	require.NoError(t, db.Create(past).Error)

	vivid := &fakeScraper{platform: scrape.PlatformVividSeats, result: scrape.OK(vividListings(100))}
	coll := New(db, []scrape.Scraper{vivid})

	summary, err := coll.CollectAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.EventCount)
	assert.Empty(t, vivid.calls)
}

func TestOnCycleCallback(t *testing.T) {
	db := testDB(t)
	seedEvent(t, db, "Callback Show")

	vivid := &fakeScraper{platform: scrape.PlatformVividSeats, result: scrape.OK(vividListings(100))}
	coll := New(db, []scrape.Scraper{vivid})

	var got *CycleSummary
	coll.OnCycle = func(summary CycleSummary) { got = &summary }

	_, err := coll.CollectAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.EventCount)
}

func TestCollectAllRejectsConcurrentRuns(t *testing.T) {
	db := testDB(t)
	coll := New(db, nil)

	coll.mu.Lock()
	coll.running = true
	coll.mu.Unlock()

	_, err := coll.CollectAll(context.Background())
	assert.Error(t, err)
}
