// Package config loads runtime settings from defaults, an optional TOML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendRemote}

type Config struct {
	// HTTP Server
	Port               string `toml:"port"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`

	// Backend selection
	DataBackend   string        `toml:"data_backend"`
	DataDir       string        `toml:"data_dir"`
	SQLiteDBPath  string        `toml:"sqlite_db_path"`
	RemoteAPIURL  string        `toml:"remote_api_url"`
	RemoteTimeout time.Duration `toml:"remote_timeout"`

	// AMQP, optional: empty URL disables events
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets export, used by the worker
	GoogleSpreadsheetID      string        `toml:"google_spreadsheet_id"`
	GoogleSheetName          string        `toml:"google_sheet_name"`
	GoogleSummarySheetName   string        `toml:"google_summary_sheet_name"`
	GoogleServiceAccountFile string        `toml:"google_service_account_file"`
	GoogleServiceAccountJSON string        `toml:"google_service_account_json"`
	SyncInterval             time.Duration `toml:"sync_interval"`

	// Presentation
	Currency string `toml:"currency"`
	Locale   string `toml:"locale"`
	Timezone string `toml:"timezone"`

	// Caching
	CacheTTL  time.Duration `toml:"cache_ttl"`
	CacheSize int           `toml:"cache_size"`

	LogLevel string `toml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 60,

		DataBackend:   BackendMemory,
		DataDir:       "data",
		SQLiteDBPath:  "./data/expensedash.db",
		RemoteTimeout: 10 * time.Second,

		AMQPExchange: "expensedash.events",
		AMQPQueue:    "expensedash.sheets-export",

		GoogleSheetName:        "Expenses",
		GoogleSummarySheetName: "Summary",
		SyncInterval:           5 * time.Minute,

		Currency: "LKR",
		Locale:   "en-LK",
		Timezone: "UTC",

		CacheTTL:  5 * time.Minute,
		CacheSize: 64,

		LogLevel: "info",
	}
}

// Load builds the configuration. When CONFIG_FILE is set the TOML file it
// names is applied over the defaults; environment variables are applied last.
func Load() (*Config, error) {
	base := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := base.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return base.withEnv(), nil
}

// LoadFile applies the keys present in a TOML file to c.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) withEnv() *Config {
	return &Config{
		Port:               getEnv("PORT", c.Port),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute),

		DataBackend:   getEnv("DATA_BACKEND", c.DataBackend),
		DataDir:       getEnv("DATA_DIR", c.DataDir),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", c.SQLiteDBPath),
		RemoteAPIURL:  getEnv("REMOTE_API_URL", c.RemoteAPIURL),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", c.RemoteTimeout),

		AMQPURL:      getEnv("AMQP_URL", c.AMQPURL),
		AMQPExchange: getEnv("AMQP_EXCHANGE", c.AMQPExchange),
		AMQPQueue:    getEnv("AMQP_QUEUE", c.AMQPQueue),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName),
		GoogleSummarySheetName:   getEnv("GOOGLE_SUMMARY_SHEET_NAME", c.GoogleSummarySheetName),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON),
		SyncInterval:             getEnvDuration("SYNC_INTERVAL", c.SyncInterval),

		Currency: getEnv("CURRENCY", c.Currency),
		Locale:   getEnv("LOCALE", c.Locale),
		Timezone: getEnv("TIMEZONE", c.Timezone),

		CacheTTL:  getEnvDuration("CACHE_TTL", c.CacheTTL),
		CacheSize: getEnvInt("CACHE_SIZE", c.CacheSize),

		LogLevel: getEnv("LOG_LEVEL", c.LogLevel),
	}
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExportEnabled reports whether the spreadsheet export is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendRemote:
		if c.RemoteAPIURL == "" {
			errors = append(errors, "REMOTE_API_URL is required when using remote backend")
		} else if u, err := url.Parse(c.RemoteAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid remote API URL '%s': must be an absolute http(s) URL", c.RemoteAPIURL))
		}
		if c.RemoteTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
		}
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" || c.GoogleSummarySheetName == "" {
			errors = append(errors, "Google sheet names cannot be empty when a spreadsheet is configured")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(c.Currency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be a 3-letter ISO 4217 code", c.Currency))
	}
	if _, err := language.Parse(c.Locale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
