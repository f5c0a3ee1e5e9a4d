package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	// Last-resort USD/TRY constant when the whole rate fallback chain fails.
	// Zero disables the fallback and rate lookups fail hard instead.
	DefaultUSDTRYRate decimal.Decimal
	// Multiplier applied to the USD rate when no EUR rate is available.
	EURFallbackMultiplier decimal.Decimal

	RateProviderBaseURL string
	RateProviderTimeout time.Duration

	RateCacheTTL   time.Duration
	ReportCacheTTL time.Duration
	CacheCleanup   time.Duration

	// When true a single failed record aborts the whole aggregation instead
	// of being skipped and counted as a warning.
	AbortOnRecordError bool
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./treasury.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DefaultUSDTRYRate:     getEnvAsDecimal("DEFAULT_USD_TRY_RATE", "48.0"),
		EURFallbackMultiplier: getEnvAsDecimal("EUR_FALLBACK_MULTIPLIER", "1.08"),

		RateProviderBaseURL: getEnv("RATE_PROVIDER_BASE_URL", ""),
		RateProviderTimeout: getEnvAsDuration("RATE_PROVIDER_TIMEOUT", 5*time.Second),

		RateCacheTTL:   getEnvAsDuration("RATE_CACHE_TTL", 5*time.Minute),
		ReportCacheTTL: getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		CacheCleanup:   getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 30*time.Minute),

		AbortOnRecordError: getEnvAsBool("ABORT_ON_RECORD_ERROR", false),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RateProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.RateProviderBaseURL)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, strconv.FormatBool(fallback))
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsDecimal(key, fallback string) decimal.Decimal {
	valueStr := getEnv(key, fallback)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		log.Printf("Invalid decimal value for %s ('%s'), using default: %s", key, valueStr, fallback)
		value, _ = decimal.NewFromString(fallback)
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
