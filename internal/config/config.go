package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	PlanStoreMemory = "memory"
	PlanStoreSQLite = "sqlite"
	PlanStoreRedis  = "redis"
)

type Config struct {
	// iiko reporting API
	IikoBaseURL      string
	IikoLogin        string
	IikoPasswordSHA1 string
	IikoTimeout      time.Duration
	IikoMaxRetries   int
	IikoInsecureTLS  bool

	// Lookup tables; empty means the embedded default
	CatalogFile string

	// Snapshot output
	DataDir string

	// Database
	SQLiteDBPath string

	// Plan
	PlanStore       string
	PlanCoefficient float64
	RedisURL        string

	// Operating day
	CutoverHour   int
	ArchiveWindow time.Duration

	// AMQP (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Scheduling; zero runs once and exits
	RunInterval time.Duration

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		IikoBaseURL:      getEnv("IIKO_BASE_URL", ""),
		IikoLogin:        getEnv("IIKO_LOGIN", ""),
		IikoPasswordSHA1: getEnv("IIKO_PASSWORD_SHA1", ""),
		IikoTimeout:      getEnvDuration("IIKO_TIMEOUT", 20*time.Second),
		IikoMaxRetries:   getEnvInt("IIKO_MAX_RETRIES", 5),
		IikoInsecureTLS:  getEnvBool("IIKO_INSECURE_TLS", false),

		CatalogFile: getEnv("CATALOG_FILE", ""),
		DataDir:     getEnv("DATA_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/revenue.db"),

		PlanStore:       getEnv("PLAN_STORE", PlanStoreSQLite),
		PlanCoefficient: getEnvFloat("PLAN_COEFFICIENT", 0.991),
		RedisURL:        getEnv("REDIS_URL", ""),

		CutoverHour:   getEnvInt("DAY_CUTOVER_HOUR", 3),
		ArchiveWindow: getEnvDuration("ARCHIVE_WINDOW", 10*time.Minute),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "revenue"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "revenue"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Выручка"),

		RunInterval: getEnvDuration("RUN_INTERVAL", 0),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// iiko credentials are required before any run can start
	if c.IikoBaseURL == "" {
		errors = append(errors, "IIKO_BASE_URL is required")
	} else if u, err := url.Parse(c.IikoBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid iiko base URL '%s': %v", c.IikoBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid iiko base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}
	if c.IikoLogin == "" {
		errors = append(errors, "IIKO_LOGIN is required")
	}
	if c.IikoPasswordSHA1 == "" {
		errors = append(errors, "IIKO_PASSWORD_SHA1 is required")
	}
	if c.IikoTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid iiko timeout %v: must be at least 1 second", c.IikoTimeout))
	}
	if c.IikoMaxRetries < 0 || c.IikoMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid iiko max retries %d: must be between 0 and 10", c.IikoMaxRetries))
	}

	if c.CatalogFile != "" {
		if _, err := os.Stat(c.CatalogFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("catalog file does not exist: %s", c.CatalogFile))
		}
	}

	if c.DataDir == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	validStores := []string{PlanStoreMemory, PlanStoreSQLite, PlanStoreRedis}
	isValidStore := false
	for _, s := range validStores {
		if c.PlanStore == s {
			isValidStore = true
			break
		}
	}
	if !isValidStore {
		errors = append(errors, fmt.Sprintf("invalid plan store '%s': must be one of %v", c.PlanStore, validStores))
	}

	if c.PlanStore == PlanStoreSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite plan store")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.PlanStore == PlanStoreRedis {
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL is required when using redis plan store")
		} else if u, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if u.Scheme != "redis" && u.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
		}
	}

	if c.PlanCoefficient <= 0 || c.PlanCoefficient > 1 {
		errors = append(errors, fmt.Sprintf("invalid plan coefficient %v: must be in (0, 1]", c.PlanCoefficient))
	}

	if c.CutoverHour < 0 || c.CutoverHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid day cutover hour %d: must be between 0 and 23", c.CutoverHour))
	}
	if c.ArchiveWindow < 0 || c.ArchiveWindow >= time.Hour {
		errors = append(errors, fmt.Sprintf("invalid archive window %v: must be under one hour", c.ArchiveWindow))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if c.RunInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid run interval %v: must not be negative", c.RunInterval))
	} else if c.RunInterval > 0 && c.RunInterval < 30*time.Second {
		errors = append(errors, fmt.Sprintf("invalid run interval %v: must be at least 30 seconds", c.RunInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
