package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"ticket-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportXLSX writes the full position to a spreadsheet: one sheet for
// events, one for inventory, one for the latest price rollups.
func (h *APIHandler) ExportXLSX(c *gin.Context) {
	var events []models.Event
	if err := h.db.Order("event_date asc").Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var items []models.Inventory
	if err := h.db.Preload("Event").Order("id asc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Events")
	writeRow(f, "Events", 1, []any{"ID", "Name", "Venue", "Date", "StubHub ID", "SeatGeek ID", "VividSeats ID"})
	for i, event := range events {
		writeRow(f, "Events", i+2, []any{
			event.ID, event.Name, event.Venue, event.EventDate.Format("2006-01-02"),
			event.StubHubEventID, event.SeatGeekEventID, event.VividSeatsEventID,
		})
	}

	f.NewSheet("Inventory")
	writeRow(f, "Inventory", 1, []any{
		"ID", "Event", "Section", "Row", "Qty", "Cost/Ticket", "Total Cost",
		"Target Min", "Target Max", "Market Price", "Market Profit",
	})
	for i, item := range items {
		row := []any{
			item.ID, item.Event.Name, item.Section, item.Row, item.Quantity,
			item.CostPerTicket, item.TotalCost, item.TargetSellMin, item.TargetSellMax,
		}
		if overall := h.latestOverall(item.EventID); overall != nil && overall.AvgLowestTwo > 0 {
			payout := overall.AvgLowestTwo * (1 - stubHubFee)
			row = append(row, overall.AvgLowestTwo, payout*float64(item.Quantity)-item.TotalCost)
		}
		writeRow(f, "Inventory", i+2, row)
	}

	f.NewSheet("Prices")
	writeRow(f, "Prices", 1, []any{
		"Event", "Section", "Date", "Hour", "Min", "Max", "Avg", "Median", "AvgLowest2", "Listings",
	})
	rowIdx := 2
	for _, event := range events {
		var rows []models.PriceHistory
		if err := h.db.Where("event_id = ?", event.ID).
			Order("recorded_date desc, recorded_hour desc").Limit(48).Find(&rows).Error; err != nil {
			continue
		}
		for _, hist := range rows {
			writeRow(f, "Prices", rowIdx, []any{
				event.Name, hist.Section, hist.RecordedDate, hist.RecordedHour,
				hist.MinPrice, hist.MaxPrice, hist.AvgPrice, hist.MedianPrice,
				hist.AvgLowestTwo, hist.ListingCount,
			})
			rowIdx++
		}
	}

	filename := fmt.Sprintf("ticket-tracker-%s.xlsx", time.Now().Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[api] XLSX export failed: %v", err)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, cell, value)
	}
}
