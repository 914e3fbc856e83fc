package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Scraping settings
	ScrapeRateLimit     int // calls per minute per platform
	ScrapeTimeoutSecs   int
	SeatGeekClientID    string
	StubHubUseBrowser   bool
	ChromeBin           string
	CollectOnStartup    bool
	CollectIntervalMins int
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:tickets@tcp(127.0.0.1:3306)/ticket_tracker?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ScrapeRateLimit:     getEnvInt("SCRAPE_RATE_LIMIT", 10),
		ScrapeTimeoutSecs:   getEnvInt("SCRAPE_TIMEOUT_SECONDS", 30),
		SeatGeekClientID:    getEnv("SEATGEEK_CLIENT_ID", ""),
		StubHubUseBrowser:   getEnv("STUBHUB_USE_BROWSER", "false") == "true",
		ChromeBin:           getEnv("CHROME_BIN", ""),
		CollectOnStartup:    getEnv("COLLECT_ON_STARTUP", "true") == "true",
		CollectIntervalMins: getEnvInt("COLLECT_INTERVAL_MINUTES", 60),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
