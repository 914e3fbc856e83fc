package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-tracker/internal/collector"
	"ticket-tracker/internal/config"
	"ticket-tracker/internal/database"
	"ticket-tracker/internal/scrape"
	"ticket-tracker/internal/scrape/seatgeek"
	"ticket-tracker/internal/scrape/stubhub"
	"ticket-tracker/internal/scrape/vividseats"

	"github.com/joho/godotenv"
)

var (
	runOnce  = flag.Bool("once", false, "run a single collection cycle and exit")
	interval = flag.Duration("interval", 0, "collection interval (overrides COLLECT_INTERVAL_MINUTES)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	// Each platform gets its own rate budget.
	newLimiter := func() *scrape.Limiter {
		l, err := scrape.NewLimiter(cfg.ScrapeRateLimit, time.Minute)
		if err != nil {
			log.Fatalf("Invalid rate limit config: %v", err)
		}
		return l
	}
	timeout := time.Duration(cfg.ScrapeTimeoutSecs) * time.Second

	var stubhubScraper scrape.Scraper
	if cfg.StubHubUseBrowser {
		browser := stubhub.NewWithBrowser(newLimiter(), timeout, cfg.ChromeBin)
		defer browser.Close()
		stubhubScraper = browser
	} else {
		stubhubScraper = stubhub.New(newLimiter(), timeout)
	}

	coll := collector.New(db, []scrape.Scraper{
		vividseats.New(newLimiter(), timeout),
		stubhubScraper,
		seatgeek.New(newLimiter(), timeout, cfg.SeatGeekClientID),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down")
		cancel()
	}()

	if *runOnce {
		summary, err := coll.CollectAll(ctx)
		if err != nil {
			log.Fatalf("Collection failed: %v", err)
		}
		for _, result := range summary.Results {
			log.Printf("%s: %d listings, min %.2f avg %.2f",
				result.EventName, result.ListingCount, result.Stats.MinPrice, result.Stats.AvgPrice)
		}
		return
	}

	every := time.Duration(cfg.CollectIntervalMins) * time.Minute
	if *interval > 0 {
		every = *interval
	}
	collector.NewScheduler(coll, every, cfg.CollectOnStartup).Run(ctx)
}
