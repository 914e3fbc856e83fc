package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"ticket-tracker/internal/api"
	"ticket-tracker/internal/collector"
	"ticket-tracker/internal/config"
	"ticket-tracker/internal/database"
	"ticket-tracker/internal/scrape"
	"ticket-tracker/internal/scrape/seatgeek"
	"ticket-tracker/internal/scrape/stubhub"
	"ticket-tracker/internal/scrape/vividseats"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Each platform gets its own rate budget.
	newLimiter := func() *scrape.Limiter {
		l, err := scrape.NewLimiter(cfg.ScrapeRateLimit, time.Minute)
		if err != nil {
			log.Fatal("Invalid rate limit config:", err)
		}
		return l
	}
	timeout := time.Duration(cfg.ScrapeTimeoutSecs) * time.Second

	var stubhubScraper scrape.Scraper
	var browserCloser interface{ Close() }
	if cfg.StubHubUseBrowser {
		browser := stubhub.NewWithBrowser(newLimiter(), timeout, cfg.ChromeBin)
		stubhubScraper = browser
		browserCloser = browser
		log.Println("StubHub: browser mode enabled")
	} else {
		stubhubScraper = stubhub.New(newLimiter(), timeout)
	}

	scrapers := []scrape.Scraper{
		vividseats.New(newLimiter(), timeout),
		stubhubScraper,
		seatgeek.New(newLimiter(), timeout, cfg.SeatGeekClientID),
	}

	hub := api.NewHub()
	coll := collector.New(db, scrapers)
	coll.OnCycle = func(summary collector.CycleSummary) {
		hub.Broadcast("collection_cycle", summary)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if browserCloser != nil {
		defer browserCloser.Close()
	}

	scheduler := collector.NewScheduler(coll,
		time.Duration(cfg.CollectIntervalMins)*time.Minute, cfg.CollectOnStartup)
	go scheduler.Run(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Live collection feed
	r.GET("/ws", hub.ServeWS)

	// API routes
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, coll, hub)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
