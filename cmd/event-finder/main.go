package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ticket-tracker/internal/scrape"
	"ticket-tracker/internal/scrape/seatgeek"
	"ticket-tracker/internal/scrape/stubhub"
	"ticket-tracker/internal/scrape/vividseats"

	"github.com/joho/godotenv"
)

// event-finder looks up an event's marketplace IDs so they can be
// attached to a tracked event. Prints one line per platform.
var (
	artist = flag.String("artist", "", "artist or event name (required)")
	venue  = flag.String("venue", "", "venue name, used to disambiguate")
	date   = flag.String("date", "", "event date as YYYY-MM-DD (required)")
)

func main() {
	flag.Parse()
	if *artist == "" || *date == "" {
		flag.Usage()
		log.Fatal("both -artist and -date are required")
	}

	eventDate, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatalf("Invalid -date %q: %v", *date, err)
	}

	_ = godotenv.Load()

	// Each platform gets its own rate budget.
	newLimiter := func() *scrape.Limiter {
		l, err := scrape.NewLimiter(10, time.Minute)
		if err != nil {
			log.Fatal(err)
		}
		return l
	}
	timeout := 30 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	vivid := vividseats.New(newLimiter(), timeout)
	scrapers := []scrape.Scraper{
		vivid,
		stubhub.New(newLimiter(), timeout),
		seatgeek.New(newLimiter(), timeout, ""),
	}

	log.Printf("Searching for %q at %q on %s", *artist, *venue, *date)
	for _, scraper := range scrapers {
		id, ok := scraper.SearchEvent(ctx, *artist, *venue, eventDate)
		if !ok {
			log.Printf("%-12s not found", scraper.Platform())
			continue
		}
		log.Printf("%-12s %s", scraper.Platform(), id)

		if scraper.Platform() == scrape.PlatformVividSeats {
			if details, err := vivid.ProductionDetails(ctx, id); err == nil {
				log.Printf("%-12s   %s / %s / %s", "", details.Name, details.Venue, details.Date)
			}
		}
	}
}
