package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ScraperStrategy string // "direct" or "proxy"
	ScraperAPIKey   string
	MaxRetries      int
	FetchMinDelayMs int
	FetchMaxDelayMs int

	GeminiAPIKey string
	GeminiModel  string

	ScanSecret     string
	ScanBudgetMs   int
	ScanPauseMinMs int
	ScanPauseMaxMs int

	HTTPAddr      string
	CSVOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		// Empty POSTGRES_HOST selects the in-memory store (local dev).
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "carspotter"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "carspotter123"),
		PostgresDB:       getEnv("POSTGRES_DB", "carspotter_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ScraperStrategy: getEnv("SCRAPER_STRATEGY", "direct"),
		ScraperAPIKey:   getEnv("SCRAPER_API_KEY", ""),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		FetchMinDelayMs: getEnvInt("FETCH_MIN_DELAY_MS", 1000),
		FetchMaxDelayMs: getEnvInt("FETCH_MAX_DELAY_MS", 4000),

		GeminiAPIKey: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		ScanSecret:     getEnv("SCAN_SECRET", ""),
		ScanBudgetMs:   getEnvInt("SCAN_BUDGET_MS", 9000),
		ScanPauseMinMs: getEnvInt("SCAN_PAUSE_MIN_MS", 2000),
		ScanPauseMaxMs: getEnvInt("SCAN_PAUSE_MAX_MS", 5000),

		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// UsePostgres reports whether a Postgres store is configured.
func (c *Config) UsePostgres() bool {
	return c.PostgresHost != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
