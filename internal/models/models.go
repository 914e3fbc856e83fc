package models

import (
	"time"
)

// Event represents a tracked concert/show with platform-specific IDs
type Event struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Venue     string    `json:"venue" gorm:"not null"`
	EventDate time.Time `json:"event_date" gorm:"not null;index"`

	// Platform-specific event IDs used by the scrapers
	StubHubEventID    string `json:"stubhub_event_id"`
	SeatGeekEventID   string `json:"seatgeek_event_id"`
	VividSeatsEventID string `json:"vividseats_event_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InventoryItems   []Inventory       `json:"inventory_items,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	ListingSnapshots []ListingSnapshot `json:"-" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	PriceHistory     []PriceHistory    `json:"-" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// Inventory represents a ticket lot the user holds for resale
type Inventory struct {
	ID      uint  `json:"id" gorm:"primaryKey"`
	EventID uint  `json:"event_id" gorm:"not null;index"`
	Event   Event `json:"event,omitempty" gorm:"foreignKey:EventID"`

	Section     string `json:"section" gorm:"not null"`
	Row         string `json:"row"`
	SeatNumbers string `json:"seat_numbers"` // e.g. "7-10" or "101,102,103"
	Quantity    int    `json:"quantity" gorm:"default:1;not null"`

	CostPerTicket float64    `json:"cost_per_ticket" gorm:"not null"`
	TotalCost     float64    `json:"total_cost" gorm:"not null"`
	PurchaseDate  *time.Time `json:"purchase_date"`

	// User's expected sell range
	TargetSellMin float64 `json:"target_sell_min"`
	TargetSellMax float64 `json:"target_sell_max"`

	Notes string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListingSnapshot is one scraped listing, append-only after insert
type ListingSnapshot struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	EventID uint `json:"event_id" gorm:"not null;index:idx_snapshots_event_fetched"`

	Platform string `json:"platform" gorm:"not null;index"` // stubhub, seatgeek, vividseats

	Section  string `json:"section" gorm:"index"`
	Row      string `json:"row"`
	Quantity int    `json:"quantity"`

	PricePerTicket float64 `json:"price_per_ticket" gorm:"not null"`
	TotalPrice     float64 `json:"total_price"`

	ListingURL string `json:"listing_url" gorm:"type:text"`

	FetchedAt time.Time `json:"fetched_at" gorm:"index:idx_snapshots_event_fetched"`

	// Raw scraper payload, JSON stored as string
	RawData string `json:"raw_data,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// PriceHistory holds aggregated stats per (event, section, date, hour).
// Section is empty for the overall-event row. One row per hour, upserted.
type PriceHistory struct {
	ID      uint `json:"id" gorm:"primaryKey"`
	EventID uint `json:"event_id" gorm:"not null;uniqueIndex:uq_price_history"`

	Section string `json:"section" gorm:"uniqueIndex:uq_price_history"`

	RecordedDate string `json:"recorded_date" gorm:"type:date;not null;uniqueIndex:uq_price_history"`
	RecordedHour int    `json:"recorded_hour" gorm:"uniqueIndex:uq_price_history"` // 0-23

	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	AvgPrice     float64 `json:"avg_price"`
	MedianPrice  float64 `json:"median_price"`
	AvgLowestTwo float64 `json:"avg_lowest_2"`
	ListingCount int     `json:"listing_count"`

	// Per-platform breakdown, JSON stored as string
	// Example: {"stubhub":{"avg":150,"min":120,"max":300,"count":10}}
	PlatformBreakdown string `json:"platform_breakdown,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
