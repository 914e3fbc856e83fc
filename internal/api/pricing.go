package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ticket-tracker/internal/aggregate"
	"ticket-tracker/internal/models"

	"github.com/gin-gonic/gin"
)

var platformFees = map[string]float64{
	"vividseats": vividSeatsFee,
	"stubhub":    stubHubFee,
	"seatgeek":   vividSeatsFee,
}

// GetComparison compares selling the same ticket across marketplaces:
// current floor per platform, the seller fee, and what you would
// actually receive. Pass your_price to price against your own listing
// instead of the current floor.
func (h *APIHandler) GetComparison(c *gin.Context) {
	eventID, err := strconv.Atoi(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	var event models.Event
	if err := h.db.First(&event, eventID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	yourPrice := 0.0
	if raw := c.Query("your_price"); raw != "" {
		if p, err := strconv.ParseFloat(raw, 64); err == nil && p > 0 {
			yourPrice = p
		}
	}

	cutoff := time.Now().Add(-2 * time.Hour)
	var snapshots []models.ListingSnapshot
	if err := h.db.Where("event_id = ? AND fetched_at >= ? AND price_per_ticket > 0", eventID, cutoff).
		Find(&snapshots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	floors := map[string]float64{}
	for _, snap := range snapshots {
		if floor, ok := floors[snap.Platform]; !ok || snap.PricePerTicket < floor {
			floors[snap.Platform] = snap.PricePerTicket
		}
	}

	platforms := gin.H{}
	bestPlatform := ""
	bestPayout := 0.0
	for platform, floor := range floors {
		fee := platformFees[platform]
		sellPrice := floor
		if yourPrice > 0 {
			sellPrice = yourPrice
		}
		payout := sellPrice * (1 - fee)
		platforms[platform] = gin.H{
			"lowest_price": floor,
			"fee_rate":     fee,
			"sell_price":   sellPrice,
			"you_receive":  payout,
		}
		if payout > bestPayout {
			bestPayout = payout
			bestPlatform = platform
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":      event.ID,
		"event_name":    event.Name,
		"platforms":     platforms,
		"best_platform": bestPlatform,
		"best_payout":   bestPayout,
	})
}

func historyResponse(row *models.PriceHistory) gin.H {
	out := gin.H{
		"id":            row.ID,
		"event_id":      row.EventID,
		"section":       row.Section,
		"recorded_date": row.RecordedDate,
		"recorded_hour": row.RecordedHour,
		"min_price":     row.MinPrice,
		"max_price":     row.MaxPrice,
		"avg_price":     row.AvgPrice,
		"median_price":  row.MedianPrice,
		"avg_lowest_2":  row.AvgLowestTwo,
		"listing_count": row.ListingCount,
	}
	if row.PlatformBreakdown != "" {
		var breakdown json.RawMessage
		if json.Unmarshal([]byte(row.PlatformBreakdown), &breakdown) == nil {
			out["platform_breakdown"] = breakdown
		}
	}
	return out
}

// GetPriceHistory returns hourly rollups for an event, oldest first.
// section defaults to the overall rollup (empty section).
func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	eventID, err := strconv.Atoi(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 || days > 90 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	q := h.db.Where("event_id = ? AND recorded_date >= ?", eventID, since).
		Where("section = ?", c.Query("section"))

	var rows []models.PriceHistory
	if err := q.Order("recorded_date asc, recorded_hour asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, historyResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"history": out, "count": len(out)})
}

// GetLatestHistory returns the most recent rollup per section for an
// event, overall first, then sections alphabetically.
func (h *APIHandler) GetLatestHistory(c *gin.Context) {
	eventID, err := strconv.Atoi(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	var rows []models.PriceHistory
	if err := h.db.Where("event_id = ?", eventID).
		Order("recorded_date desc, recorded_hour desc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	latest := map[string]*models.PriceHistory{}
	for i := range rows {
		if _, ok := latest[rows[i].Section]; !ok {
			latest[rows[i].Section] = &rows[i]
		}
	}

	sections := make([]string, 0, len(latest))
	for section := range latest {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	out := make([]gin.H, 0, len(sections))
	for _, section := range sections {
		out = append(out, historyResponse(latest[section]))
	}
	c.JSON(http.StatusOK, gin.H{"latest": out, "count": len(out)})
}

// GetPriceTrend runs trend analysis over the avg-lowest-2 series of an
// event's hourly rollups.
func (h *APIHandler) GetPriceTrend(c *gin.Context) {
	eventID, err := strconv.Atoi(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 || days > 90 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	var rows []models.PriceHistory
	if err := h.db.Where("event_id = ? AND section = ? AND recorded_date >= ?", eventID, c.Query("section"), since).
		Order("recorded_date asc, recorded_hour asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	prices := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.AvgLowestTwo > 0 {
			prices = append(prices, row.AvgLowestTwo)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id": eventID,
		"section":  c.Query("section"),
		"points":   len(prices),
		"trend":    aggregate.AnalyzeTrend(prices),
	})
}

// latestOverall returns the newest overall rollup for an event, or nil.
func (h *APIHandler) latestOverall(eventID uint) *models.PriceHistory {
	var row models.PriceHistory
	err := h.db.Where("event_id = ? AND section = ?", eventID, "").
		Order("recorded_date desc, recorded_hour desc").First(&row).Error
	if err != nil {
		return nil
	}
	return &row
}

// GetRevenueSummary totals the inventory position: what it cost, what
// the target prices would bring in, and what the current market floor
// suggests after fees.
func (h *APIHandler) GetRevenueSummary(c *gin.Context) {
	q := h.db.Model(&models.Inventory{})
	if eventID := c.Query("event_id"); eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}

	var items []models.Inventory
	if err := q.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var totalTickets int
	var totalCost, targetMin, targetMax, marketEstimate float64
	marketPriced := 0
	overallByEvent := map[uint]*models.PriceHistory{}
	for _, item := range items {
		totalTickets += item.Quantity
		totalCost += item.TotalCost
		targetMin += item.TargetSellMin * float64(item.Quantity)
		targetMax += item.TargetSellMax * float64(item.Quantity)

		overall, ok := overallByEvent[item.EventID]
		if !ok {
			overall = h.latestOverall(item.EventID)
			overallByEvent[item.EventID] = overall
		}
		if overall != nil && overall.AvgLowestTwo > 0 {
			marketEstimate += overall.AvgLowestTwo * (1 - stubHubFee) * float64(item.Quantity)
			marketPriced += item.Quantity
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"item_count":              len(items),
		"total_tickets":           totalTickets,
		"total_cost":              totalCost,
		"target_revenue_min":      targetMin,
		"target_revenue_max":      targetMax,
		"target_profit_min":       targetMin - totalCost,
		"target_profit_max":       targetMax - totalCost,
		"market_revenue_estimate": marketEstimate,
		"market_priced_tickets":   marketPriced,
	})
}

// GetRevenueByItem breaks the revenue picture down per inventory item.
func (h *APIHandler) GetRevenueByItem(c *gin.Context) {
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
	for _, item := range items {
		entry := gin.H{
			"id":             item.ID,
			"event_id":       item.EventID,
			"event_name":     item.Event.Name,
			"section":        item.Section,
			"quantity":       item.Quantity,
			"total_cost":     item.TotalCost,
			"target_rev_min": item.TargetSellMin * float64(item.Quantity),
			"target_rev_max": item.TargetSellMax * float64(item.Quantity),
		}
		if overall := h.latestOverall(item.EventID); overall != nil && overall.AvgLowestTwo > 0 {
			payout := overall.AvgLowestTwo * (1 - stubHubFee)
			entry["market_price"] = overall.AvgLowestTwo
			entry["market_revenue"] = payout * float64(item.Quantity)
			entry["market_profit"] = payout*float64(item.Quantity) - item.TotalCost
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}
