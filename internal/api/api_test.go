package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticket-tracker/internal/collector"
	"ticket-tracker/internal/database"
	"ticket-tracker/internal/models"
	"ticket-tracker/internal/scrape"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	return setupTestAPIWith(t, nil)
}

func setupTestAPIWith(t *testing.T, scrapers []scrape.Scraper) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

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

	r := gin.New()
	SetupRoutes(r.Group("/api/v1"), db, collector.New(db, scrapers), NewHub())
	return r, db
}

// cannedScraper serves a fixed result for collection tests.
type cannedScraper struct {
	platform string
	listings []scrape.Listing
}

func (s *cannedScraper) Platform() string { return s.platform }

func (s *cannedScraper) FetchListings(ctx context.Context, eventID string) scrape.Result {
	return scrape.OK(s.listings)
}

func (s *cannedScraper) SearchEvent(ctx context.Context, artist, venue string, date time.Time) (string, bool) {
	return "", false
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func createTestEvent(t *testing.T, db *gorm.DB) *models.Event {
	event := &models.Event{
		Name:              "Test Show",
		Venue:             "Test Arena",
		EventDate:         time.Now().AddDate(0, 1, 0),
		VividSeatsEventID: "6564610",
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func TestCreateAndGetEvent(t *testing.T) {
	r, _ := setupTestAPI(t)

	w, created := doJSON(t, r, http.MethodPost, "/api/v1/events", gin.H{
		"name":                "Arena Tour",
		"venue":               "Big Stadium",
		"event_date":          "2026-10-01",
		"vividseats_event_id": "123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := int(created["id"].(float64))

	w, fetched := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/events/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Arena Tour", fetched["name"])
	assert.Equal(t, "123", fetched["vividseats_event_id"])
}

func TestCreateEventValidation(t *testing.T) {
	r, _ := setupTestAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/events", gin.H{"venue": "No Name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/events", gin.H{
		"name": "Bad Date", "event_date": "next tuesday",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEventNotFound(t *testing.T) {
	r, _ := setupTestAPI(t)
	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/events/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEvent(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)

	w, _ := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/events/%d", event.ID), gin.H{
		"stubhub_event_id": "157838477",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Event
	require.NoError(t, db.First(&reloaded, event.ID).Error)
	assert.Equal(t, "157838477", reloaded.StubHubEventID)
	assert.Equal(t, "Test Show", reloaded.Name)
}

func TestDeleteEventCascades(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)
	require.NoError(t, db.Create(&models.Inventory{
		EventID: event.ID, Section: "112", Quantity: 2, CostPerTicket: 100, TotalCost: 200,
	}).Error)

	w, _ := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/events/%d", event.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Event{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateInventory(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)

	w, created := doJSON(t, r, http.MethodPost, "/api/v1/inventory", gin.H{
		"event_id":        event.ID,
		"section":         "112",
		"row":             "5",
		"quantity":        4,
		"cost_per_ticket": 85.5,
		"target_sell_min": 120,
		"target_sell_max": 200,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 342.0, created["total_cost"])
}

func TestCreateInventoryRequiresEvent(t *testing.T) {
	r, _ := setupTestAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/inventory", gin.H{
		"event_id": 999, "section": "112", "quantity": 2, "cost_per_ticket": 50,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListInventoryJoinsRecentMarket(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)
	require.NoError(t, db.Create(&models.Inventory{
		EventID: event.ID, Section: "112", Quantity: 2, CostPerTicket: 100, TotalCost: 200,
	}).Error)

	// one fresh snapshot in the matching section, one stale, one elsewhere
	now := time.Now()
	require.NoError(t, db.Create(&[]models.ListingSnapshot{
		{EventID: event.ID, Platform: scrape.PlatformVividSeats, Section: "Section 112", PricePerTicket: 150, Quantity: 2, FetchedAt: now},
		{EventID: event.ID, Platform: scrape.PlatformVividSeats, Section: "112", PricePerTicket: 90, Quantity: 2, FetchedAt: now.Add(-3 * time.Hour)},
		{EventID: event.ID, Platform: scrape.PlatformStubHub, Section: "Floor", PricePerTicket: 400, Quantity: 2, FetchedAt: now},
	}).Error)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)

	items := resp["inventory"].([]any)
	require.Len(t, items, 1)
	market := items[0].(map[string]any)["market"].(map[string]any)
	assert.Equal(t, float64(1), market["listing_count"])
	assert.Equal(t, 150.0, market["current_min_price"])
	// (150 - 100) * 2 tickets
	assert.Equal(t, 100.0, market["potential_profit"])
}

func TestComparisonAppliesFees(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)

	now := time.Now()
	require.NoError(t, db.Create(&[]models.ListingSnapshot{
		{EventID: event.ID, Platform: scrape.PlatformVividSeats, Section: "112", PricePerTicket: 100, Quantity: 2, FetchedAt: now},
		{EventID: event.ID, Platform: scrape.PlatformStubHub, Section: "112", PricePerTicket: 100, Quantity: 2, FetchedAt: now},
	}).Error)

	w, resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/comparison?event_id=%d", event.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	platforms := resp["platforms"].(map[string]any)
	vivid := platforms[scrape.PlatformVividSeats].(map[string]any)
	stub := platforms[scrape.PlatformStubHub].(map[string]any)
	assert.Equal(t, 90.0, vivid["you_receive"])
	assert.Equal(t, 85.0, stub["you_receive"])
	assert.Equal(t, scrape.PlatformVividSeats, resp["best_platform"])
}

func TestPriceHistoryEndpoint(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)

	today := time.Now().Format("2006-01-02")
	require.NoError(t, db.Create(&[]models.PriceHistory{
		{EventID: event.ID, Section: "", RecordedDate: today, RecordedHour: 9, MinPrice: 100, AvgPrice: 150, ListingCount: 10},
		{EventID: event.ID, Section: "", RecordedDate: today, RecordedHour: 10, MinPrice: 95, AvgPrice: 140, ListingCount: 12},
		{EventID: event.ID, Section: "112", RecordedDate: today, RecordedHour: 10, MinPrice: 90, AvgPrice: 120, ListingCount: 4},
	}).Error)

	// overall series by default
	w, resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/history?event_id=%d", event.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := resp["history"].([]any)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Equal(t, float64(9), first["recorded_hour"])

	// section filter
	w, resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/history?event_id=%d&section=112", event.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["history"].([]any), 1)

	// latest picks the newest row per section
	w, resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/history/latest?event_id=%d", event.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	latest := resp["latest"].([]any)
	require.Len(t, latest, 2)
	overall := latest[0].(map[string]any)
	assert.Equal(t, "", overall["section"])
	assert.Equal(t, float64(10), overall["recorded_hour"])
}

func TestRevenueSummary(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)
	require.NoError(t, db.Create(&models.Inventory{
		EventID: event.ID, Section: "112", Quantity: 2,
		CostPerTicket: 100, TotalCost: 200, TargetSellMin: 150, TargetSellMax: 250,
	}).Error)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/analytics/revenue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["total_tickets"])
	assert.Equal(t, 200.0, resp["total_cost"])
	assert.Equal(t, 300.0, resp["target_revenue_min"])
	assert.Equal(t, 500.0, resp["target_revenue_max"])
	assert.Equal(t, 100.0, resp["target_profit_min"])
}

func TestCollectionStatusDefaults(t *testing.T) {
	r, _ := setupTestAPI(t)

	w, resp := doJSON(t, r, http.MethodGet, "/api/v1/collect/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["running"])
	assert.NotContains(t, resp, "last_run")
}

func TestGetPriceTrendRespondsWithJSON(t *testing.T) {
	r, db := setupTestAPI(t)
	event := createTestEvent(t, db)

	for hour, price := range []float64{100, 110, 120} {
		require.NoError(t, db.Create(&models.PriceHistory{
			EventID:      event.ID,
			RecordedDate: time.Now().Format("2006-01-02"),
			RecordedHour: hour,
			MinPrice:     price,
			AvgLowestTwo: price,
			ListingCount: 5,
		}).Error)
	}

	path := fmt.Sprintf("/api/v1/history/trend?event_id=%d", event.ID)
	w, resp := doJSON(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), resp["points"])

	trend, ok := resp["trend"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(120), trend["latest"])
	assert.NotEmpty(t, trend["moving_average"])
}

func TestStartCollectionSurvivesRequestReturn(t *testing.T) {
	scraper := &cannedScraper{
		platform: "vividseats",
		listings: []scrape.Listing{
			{Platform: "vividseats", Section: "112", Quantity: 2, PricePerTicket: 125},
			{Platform: "vividseats", Section: "113", Quantity: 2, PricePerTicket: 140},
		},
	}
	r, db := setupTestAPIWith(t, []scrape.Scraper{scraper})
	createTestEvent(t, db)

	// A recorder never cancels the request context; a real server does
	// the moment the 202 is written, which is exactly the case the
	// background run has to survive.
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/collect", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		res, err := http.Get(srv.URL + "/api/v1/collect/status")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		var status map[string]any
		if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
			return false
		}
		return status["running"] == false && status["last_run"] != nil
	}, 5*time.Second, 20*time.Millisecond)

	res, err := http.Get(srv.URL + "/api/v1/collect/status")
	require.NoError(t, err)
	defer res.Body.Close()
	var status map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	assert.NotContains(t, status, "last_error")

	var snapshots int64
	require.NoError(t, db.Model(&models.ListingSnapshot{}).Count(&snapshots).Error)
	assert.Equal(t, int64(2), snapshots)
}
