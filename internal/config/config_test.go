package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		IikoBaseURL:      "https://chain.iiko.it",
		IikoLogin:        "User",
		IikoPasswordSHA1: "9ab5284fa9b0a51a61a3b59189c04f9e4779720a",
		IikoTimeout:      20 * time.Second,
		IikoMaxRetries:   5,
		DataDir:          "./data",
		SQLiteDBPath:     "./test.db",
		PlanStore:        PlanStoreSQLite,
		PlanCoefficient:  0.991,
		CutoverHour:      3,
		ArchiveWindow:    10 * time.Minute,
		AMQPExchange:     "revenue",
		GoogleSheetName:  "Выручка",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid default config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "missing iiko base URL",
			mutate:      func(c *Config) { c.IikoBaseURL = "" },
			wantErr:     true,
			errorString: "IIKO_BASE_URL is required",
		},
		{
			name:        "invalid iiko base URL scheme",
			mutate:      func(c *Config) { c.IikoBaseURL = "ftp://chain.iiko.it" },
			wantErr:     true,
			errorString: "invalid iiko base URL scheme 'ftp': must be 'http' or 'https'",
		},
		{
			name:        "missing login",
			mutate:      func(c *Config) { c.IikoLogin = "" },
			wantErr:     true,
			errorString: "IIKO_LOGIN is required",
		},
		{
			name:        "missing password hash",
			mutate:      func(c *Config) { c.IikoPasswordSHA1 = "" },
			wantErr:     true,
			errorString: "IIKO_PASSWORD_SHA1 is required",
		},
		{
			name:        "timeout too short",
			mutate:      func(c *Config) { c.IikoTimeout = 100 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid iiko timeout 100ms: must be at least 1 second",
		},
		{
			name:        "too many retries",
			mutate:      func(c *Config) { c.IikoMaxRetries = 11 },
			wantErr:     true,
			errorString: "invalid iiko max retries 11",
		},
		{
			name:        "missing catalog file",
			mutate:      func(c *Config) { c.CatalogFile = "/non/existent/menu.toml" },
			wantErr:     true,
			errorString: "catalog file does not exist",
		},
		{
			name:        "invalid plan store",
			mutate:      func(c *Config) { c.PlanStore = "etcd" },
			wantErr:     true,
			errorString: "invalid plan store 'etcd': must be one of [memory sqlite redis]",
		},
		{
			name:        "sqlite store missing path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite plan store",
		},
		{
			name:    "memory store ignores sqlite path",
			mutate:  func(c *Config) { c.PlanStore = PlanStoreMemory; c.SQLiteDBPath = "" },
			wantErr: false,
		},
		{
			name:        "redis store missing URL",
			mutate:      func(c *Config) { c.PlanStore = PlanStoreRedis },
			wantErr:     true,
			errorString: "REDIS_URL is required when using redis plan store",
		},
		{
			name:        "redis store bad scheme",
			mutate:      func(c *Config) { c.PlanStore = PlanStoreRedis; c.RedisURL = "http://localhost:6379" },
			wantErr:     true,
			errorString: "invalid Redis URL scheme 'http'",
		},
		{
			name:    "redis store valid",
			mutate:  func(c *Config) { c.PlanStore = PlanStoreRedis; c.RedisURL = "redis://localhost:6379/0" },
			wantErr: false,
		},
		{
			name:        "plan coefficient above one",
			mutate:      func(c *Config) { c.PlanCoefficient = 1.2 },
			wantErr:     true,
			errorString: "invalid plan coefficient 1.2",
		},
		{
			name:        "cutover hour out of range",
			mutate:      func(c *Config) { c.CutoverHour = 24 },
			wantErr:     true,
			errorString: "invalid day cutover hour 24",
		},
		{
			name:        "archive window too long",
			mutate:      func(c *Config) { c.ArchiveWindow = 2 * time.Hour },
			wantErr:     true,
			errorString: "invalid archive window 2h0m0s",
		},
		{
			name:        "invalid AMQP URL scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name:        "AMQP URL without exchange",
			mutate:      func(c *Config) { c.AMQPURL = "amqp://localhost:5672/"; c.AMQPExchange = "" },
			wantErr:     true,
			errorString: "AMQP exchange name cannot be empty when AMQP URL is provided",
		},
		{
			name:        "spreadsheet without sheet name",
			mutate:      func(c *Config) { c.GoogleSpreadsheetID = "abc"; c.GoogleSheetName = "" },
			wantErr:     true,
			errorString: "Google Sheet name is required",
		},
		{
			name:        "run interval too short",
			mutate:      func(c *Config) { c.RunInterval = 5 * time.Second },
			wantErr:     true,
			errorString: "invalid run interval 5s: must be at least 30 seconds",
		},
		{
			name:    "run interval loop",
			mutate:  func(c *Config) { c.RunInterval = 5 * time.Minute },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{PlanStore: "bogus", PlanCoefficient: 2, IikoTimeout: time.Second}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"IIKO_BASE_URL", "IIKO_LOGIN", "IIKO_PASSWORD_SHA1", "invalid plan store", "invalid plan coefficient"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestConfig_ValidateCreatesSQLiteDir(t *testing.T) {
	cfg := validConfig()
	dir := filepath.Join(t.TempDir(), "nested", "db")
	cfg.SQLiteDBPath = filepath.Join(dir, "revenue.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory %s to be created: %v", dir, err)
	}
}

func TestLoad(t *testing.T) {
	for _, key := range []string{
		"IIKO_BASE_URL", "IIKO_TIMEOUT", "IIKO_MAX_RETRIES", "IIKO_INSECURE_TLS",
		"PLAN_STORE", "PLAN_COEFFICIENT", "DAY_CUTOVER_HOUR", "ARCHIVE_WINDOW",
		"RUN_INTERVAL", "SQLITE_DB_PATH", "DATA_DIR",
	} {
		t.Setenv(key, "")
	}

	t.Run("default values", func(t *testing.T) {
		cfg := Load()

		if cfg.IikoTimeout != 20*time.Second {
			t.Errorf("Load() IikoTimeout = %v, want 20s", cfg.IikoTimeout)
		}
		if cfg.IikoMaxRetries != 5 {
			t.Errorf("Load() IikoMaxRetries = %v, want 5", cfg.IikoMaxRetries)
		}
		if cfg.PlanStore != PlanStoreSQLite {
			t.Errorf("Load() PlanStore = %v, want sqlite", cfg.PlanStore)
		}
		if cfg.PlanCoefficient != 0.991 {
			t.Errorf("Load() PlanCoefficient = %v, want 0.991", cfg.PlanCoefficient)
		}
		if cfg.CutoverHour != 3 {
			t.Errorf("Load() CutoverHour = %v, want 3", cfg.CutoverHour)
		}
		if cfg.ArchiveWindow != 10*time.Minute {
			t.Errorf("Load() ArchiveWindow = %v, want 10m", cfg.ArchiveWindow)
		}
		if cfg.RunInterval != 0 {
			t.Errorf("Load() RunInterval = %v, want 0", cfg.RunInterval)
		}
		if cfg.SQLiteDBPath != "./data/revenue.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want ./data/revenue.db", cfg.SQLiteDBPath)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("IIKO_BASE_URL", "https://example.iiko.it")
		t.Setenv("IIKO_TIMEOUT", "45s")
		t.Setenv("IIKO_INSECURE_TLS", "true")
		t.Setenv("PLAN_STORE", "redis")
		t.Setenv("PLAN_COEFFICIENT", "0.95")
		t.Setenv("DAY_CUTOVER_HOUR", "4")
		t.Setenv("RUN_INTERVAL", "5m")

		cfg := Load()

		if cfg.IikoBaseURL != "https://example.iiko.it" {
			t.Errorf("Load() IikoBaseURL = %v", cfg.IikoBaseURL)
		}
		if cfg.IikoTimeout != 45*time.Second {
			t.Errorf("Load() IikoTimeout = %v, want 45s", cfg.IikoTimeout)
		}
		if !cfg.IikoInsecureTLS {
			t.Error("Load() IikoInsecureTLS = false, want true")
		}
		if cfg.PlanStore != PlanStoreRedis {
			t.Errorf("Load() PlanStore = %v, want redis", cfg.PlanStore)
		}
		if cfg.PlanCoefficient != 0.95 {
			t.Errorf("Load() PlanCoefficient = %v, want 0.95", cfg.PlanCoefficient)
		}
		if cfg.CutoverHour != 4 {
			t.Errorf("Load() CutoverHour = %v, want 4", cfg.CutoverHour)
		}
		if cfg.RunInterval != 5*time.Minute {
			t.Errorf("Load() RunInterval = %v, want 5m", cfg.RunInterval)
		}
	})

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		t.Setenv("IIKO_MAX_RETRIES", "many")
		t.Setenv("ARCHIVE_WINDOW", "ten minutes")
		t.Setenv("PLAN_COEFFICIENT", "x")

		cfg := Load()

		if cfg.IikoMaxRetries != 5 {
			t.Errorf("Load() IikoMaxRetries = %v, want 5", cfg.IikoMaxRetries)
		}
		if cfg.ArchiveWindow != 10*time.Minute {
			t.Errorf("Load() ArchiveWindow = %v, want 10m", cfg.ArchiveWindow)
		}
		if cfg.PlanCoefficient != 0.991 {
			t.Errorf("Load() PlanCoefficient = %v, want 0.991", cfg.PlanCoefficient)
		}
	})
}
