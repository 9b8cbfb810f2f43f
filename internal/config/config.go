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

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Storage
	DataBackend  string
	DataDir      string
	SQLiteDBPath string

	// Tracked users, in display order
	Users []string

	// AMQP; an empty URL disables event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (worker only)
	GoogleSpreadsheetID    string
	GoogleMealsSheetName   string
	GoogleWeightsSheetName string

	// Worker
	ExportBackfill    bool
	ExportConcurrency int

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "file"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pasti.db"),

		Users: getEnvList("TRACKER_USERS", []string{"Milena", "Raul"}),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pasti"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "export_entries"),

		GoogleSpreadsheetID:    getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleMealsSheetName:   getEnv("GOOGLE_MEALS_SHEET_NAME", "Refeições"),
		GoogleWeightsSheetName: getEnv("GOOGLE_WEIGHTS_SHEET_NAME", "Peso"),

		ExportBackfill:    getEnvBool("EXPORT_BACKFILL", false),
		ExportConcurrency: getEnvInt("EXPORT_CONCURRENCY", 2),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration of the HTTP server and reports every
// problem at once.
func (c *Config) Validate() error {
	errs := c.validateCommon()

	validBackends := []string{"file", "memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "file":
		if strings.TrimSpace(c.DataDir) == "" {
			errs = append(errs, "data directory cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	return joinErrors(errs)
}

// ValidateWorker checks the configuration of the export worker.
func (c *Config) ValidateWorker() error {
	errs := c.validateCommon()

	if c.AMQPURL == "" {
		errs = append(errs, "AMQP URL is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required for the export worker")
	}
	if strings.TrimSpace(c.GoogleMealsSheetName) == "" || strings.TrimSpace(c.GoogleWeightsSheetName) == "" {
		errs = append(errs, "Google sheet names cannot be empty")
	}
	if c.ExportConcurrency < 1 || c.ExportConcurrency > 16 {
		errs = append(errs, fmt.Sprintf("invalid export concurrency %d: must be between 1 and 16", c.ExportConcurrency))
	}
	// A memory backend starts empty; rebuilding from it would clear the sheets.
	if c.ExportBackfill && c.DataBackend == "memory" {
		errs = append(errs, "export backfill requires a persistent data backend (file or sqlite), not memory")
	}

	return joinErrors(errs)
}

func (c *Config) validateCommon() []string {
	var errs []string

	if len(c.Users) == 0 {
		errs = append(errs, "at least one tracked user is required")
	}
	seen := map[string]bool{}
	for _, u := range c.Users {
		key := strings.ToLower(strings.TrimSpace(u))
		if key == "" || strings.ContainsAny(key, `/\|`) || strings.Contains(key, "..") {
			errs = append(errs, fmt.Sprintf("invalid user name '%s'", u))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Sprintf("duplicate user name '%s'", u))
		}
		seen[key] = true
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	return errs
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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

// getEnvList splits a comma separated value, dropping blank items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
