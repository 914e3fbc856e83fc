package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ticket-tracker/internal/collector"
	"ticket-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Marketplace seller fees applied when estimating payout.
const (
	vividSeatsFee = 0.10
	stubHubFee    = 0.15
)

type APIHandler struct {
	db        *gorm.DB
	collector *collector.Collector
	hub       *Hub
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, coll *collector.Collector, hub *Hub) *APIHandler {
	handler := &APIHandler{
		db:        db,
		collector: coll,
		hub:       hub,
	}

	events := r.Group("/events")
	{
		events.GET("", handler.ListEvents)
		events.POST("", handler.CreateEvent)
		events.GET("/:id", handler.GetEvent)
		events.PUT("/:id", handler.UpdateEvent)
		events.DELETE("/:id", handler.DeleteEvent)
	}

	inventory := r.Group("/inventory")
	{
		inventory.GET("", handler.ListInventory)
		inventory.POST("", handler.CreateInventory)
		inventory.GET("/:id", handler.GetInventory)
		inventory.PUT("/:id", handler.UpdateInventory)
		inventory.DELETE("/:id", handler.DeleteInventory)
	}

	r.GET("/comparison", handler.GetComparison)

	r.GET("/history", handler.GetPriceHistory)
	r.GET("/history/latest", handler.GetLatestHistory)
	r.GET("/history/trend", handler.GetPriceTrend)

	analytics := r.Group("/analytics")
	{
		analytics.GET("/revenue", handler.GetRevenueSummary)
		analytics.GET("/revenue/by-item", handler.GetRevenueByItem)
	}

	r.POST("/collect", handler.StartCollection)
	r.GET("/collect/status", handler.CollectionStatus)

	r.GET("/export/xlsx", handler.ExportXLSX)

	return handler
}

type eventPayload struct {
	Name              string `json:"name" binding:"required"`
	Venue             string `json:"venue"`
	EventDate         string `json:"event_date" binding:"required"`
	StubHubEventID    string `json:"stubhub_event_id"`
	SeatGeekEventID   string `json:"seatgeek_event_id"`
	VividSeatsEventID string `json:"vividseats_event_id"`
}

func parseEventDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

func (h *APIHandler) ListEvents(c *gin.Context) {
	q := h.db.Model(&models.Event{})
	if c.Query("upcoming") == "true" {
		q = q.Where("event_date >= ?", time.Now())
	}

	var events []models.Event
	if err := q.Order("event_date asc").Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *APIHandler) CreateEvent(c *gin.Context) {
	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventDate, err := parseEventDate(payload.EventDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_date must be YYYY-MM-DD or RFC3339"})
		return
	}

	event := models.Event{
		Name:              payload.Name,
		Venue:             payload.Venue,
		EventDate:         eventDate,
		StubHubEventID:    payload.StubHubEventID,
		SeatGeekEventID:   payload.SeatGeekEventID,
		VividSeatsEventID: payload.VividSeatsEventID,
	}
	if err := h.db.Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *APIHandler) GetEvent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var event models.Event
	if err := h.db.Preload("InventoryItems").First(&event, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *APIHandler) UpdateEvent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var event models.Event
	if err := h.db.First(&event, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	for key, column := range map[string]string{
		"name":                "name",
		"venue":               "venue",
		"stubhub_event_id":    "stub_hub_event_id",
		"seatgeek_event_id":   "seat_geek_event_id",
		"vividseats_event_id": "vivid_seats_event_id",
	} {
		if value, ok := payload[key].(string); ok {
			updates[column] = value
		}
	}
	if raw, ok := payload["event_date"].(string); ok {
		eventDate, err := parseEventDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_date must be YYYY-MM-DD or RFC3339"})
			return
		}
		updates["event_date"] = eventDate
	}

	if len(updates) > 0 {
		if err := h.db.Model(&event).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, event)
}

func (h *APIHandler) DeleteEvent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	result := h.db.Delete(&models.Event{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

type inventoryPayload struct {
	EventID       uint    `json:"event_id" binding:"required"`
	Section       string  `json:"section" binding:"required"`
	Row           string  `json:"row"`
	SeatNumbers   string  `json:"seat_numbers"`
	Quantity      int     `json:"quantity" binding:"required,gt=0"`
	CostPerTicket float64 `json:"cost_per_ticket" binding:"required,gt=0"`
	PurchaseDate  string  `json:"purchase_date"`
	TargetSellMin float64 `json:"target_sell_min"`
	TargetSellMax float64 `json:"target_sell_max"`
	Notes         string  `json:"notes"`
}

func (h *APIHandler) CreateInventory(c *gin.Context) {
	var payload inventoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var event models.Event
	if err := h.db.First(&event, payload.EventID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event not found"})
		return
	}

	item := models.Inventory{
		EventID:       payload.EventID,
		Section:       payload.Section,
		Row:           payload.Row,
		SeatNumbers:   payload.SeatNumbers,
		Quantity:      payload.Quantity,
		CostPerTicket: payload.CostPerTicket,
		TotalCost:     payload.CostPerTicket * float64(payload.Quantity),
		TargetSellMin: payload.TargetSellMin,
		TargetSellMax: payload.TargetSellMax,
		Notes:         payload.Notes,
	}
	if payload.PurchaseDate != "" {
		purchased, err := parseEventDate(payload.PurchaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "purchase_date must be YYYY-MM-DD or RFC3339"})
			return
		}
		item.PurchaseDate = &purchased
	}

	if err := h.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// ListInventory returns inventory items, each joined with the current
// market for its section: min/avg asking price from snapshots fetched
// in the last two hours whose section matches the item's.
func (h *APIHandler) ListInventory(c *gin.Context) {
	q := h.db.Model(&models.Inventory{}).Preload("Event")
	if eventID := c.Query("event_id"); eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}

	var items []models.Inventory
	if err := q.Order("id asc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(items))
	for i := range items {
		out = append(out, h.inventoryWithMarket(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"inventory": out, "count": len(out)})
}

func (h *APIHandler) GetInventory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inventory id"})
		return
	}

	var item models.Inventory
	if err := h.db.Preload("Event").First(&item, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "inventory item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.inventoryWithMarket(&item))
}

// normalizeSection lowercases and drops a leading "section" word so
// "Section 112" and "112" compare equal.
func normalizeSection(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimPrefix(s, "section"))
}

// inventoryWithMarket annotates an item with recent market prices for
// its section. Matching is a case-insensitive prefix match in both
// directions, so "112" pairs with "Section 112" and vice versa.
func (h *APIHandler) inventoryWithMarket(item *models.Inventory) gin.H {
	out := gin.H{
		"id":              item.ID,
		"event_id":        item.EventID,
		"event":           item.Event,
		"section":         item.Section,
		"row":             item.Row,
		"seat_numbers":    item.SeatNumbers,
		"quantity":        item.Quantity,
		"cost_per_ticket": item.CostPerTicket,
		"total_cost":      item.TotalCost,
		"purchase_date":   item.PurchaseDate,
		"target_sell_min": item.TargetSellMin,
		"target_sell_max": item.TargetSellMax,
		"notes":           item.Notes,
		"created_at":      item.CreatedAt,
	}

	cutoff := time.Now().Add(-2 * time.Hour)
	var snapshots []models.ListingSnapshot
	if err := h.db.Where("event_id = ? AND fetched_at >= ? AND price_per_ticket > 0", item.EventID, cutoff).
		Find(&snapshots).Error; err != nil {
		return out
	}

	section := normalizeSection(item.Section)
	var prices []float64
	for _, snap := range snapshots {
		snapSection := normalizeSection(snap.Section)
		if snapSection == "" {
			continue
		}
		if strings.HasPrefix(snapSection, section) || strings.HasPrefix(section, snapSection) {
			prices = append(prices, snap.PricePerTicket)
		}
	}
	if len(prices) == 0 {
		return out
	}

	minPrice, sum := prices[0], 0.0
	for _, p := range prices {
		if p < minPrice {
			minPrice = p
		}
		sum += p
	}
	avgPrice := sum / float64(len(prices))

	out["market"] = gin.H{
		"listing_count":     len(prices),
		"current_min_price": minPrice,
		"current_avg_price": avgPrice,
		"potential_profit":  (minPrice - item.CostPerTicket) * float64(item.Quantity),
		"profit_at_avg":     (avgPrice - item.CostPerTicket) * float64(item.Quantity),
	}
	return out
}

func (h *APIHandler) UpdateInventory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inventory id"})
		return
	}

	var item models.Inventory
	if err := h.db.First(&item, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "inventory item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	for key, column := range map[string]string{
		"section":      "section",
		"row":          "row",
		"seat_numbers": "seat_numbers",
		"notes":        "notes",
	} {
		if value, ok := payload[key].(string); ok {
			updates[column] = value
		}
	}
	for key, column := range map[string]string{
		"cost_per_ticket": "cost_per_ticket",
		"target_sell_min": "target_sell_min",
		"target_sell_max": "target_sell_max",
	} {
		if value, ok := payload[key].(float64); ok {
			updates[column] = value
		}
	}
	if value, ok := payload["quantity"].(float64); ok && value > 0 {
		updates["quantity"] = int(value)
	}

	// keep the derived total in sync
	cost := item.CostPerTicket
	quantity := item.Quantity
	if v, ok := updates["cost_per_ticket"].(float64); ok {
		cost = v
	}
	if v, ok := updates["quantity"].(int); ok {
		quantity = v
	}
	if len(updates) > 0 {
		updates["total_cost"] = cost * float64(quantity)
		if err := h.db.Model(&item).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, item)
}

func (h *APIHandler) DeleteInventory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid inventory id"})
		return
	}

	result := h.db.Delete(&models.Inventory{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "inventory item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "inventory item deleted"})
}

func (h *APIHandler) StartCollection(c *gin.Context) {
	// The request context dies with the 202; the run must not.
	if err := h.collector.StartAsync(context.Background()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "collection started"})
}

func (h *APIHandler) CollectionStatus(c *gin.Context) {
	running, last, lastErr := h.collector.Status()
	resp := gin.H{"running": running}
	if last != nil {
		resp["last_run"] = last
	}
	if lastErr != nil {
		resp["last_error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}
