package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel string
	Port     int
	DataDir  string

	TaxGroup          int
	VATPayer          bool
	AccountCurrency   string
	DisabledQuarters  []string
	ClosedPeriodsOnly bool
	MaskSnapshots     bool

	MonobankToken   string
	MonobankBaseURL string
	MonobankPause   time.Duration
	NBUBaseURL      string
	SyncSchedule    string

	GCSBucket       string
	GCSPrefix       string
	BigQueryProject string
	BigQueryDataset string
	GeminiModel     string

	NotionToken      string
	NotionDatabaseID string

	MCCDictionaryPath string
	QueueWorkers      int
	QueueMaxRetries   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("API_PORT", 8080),
		DataDir:  getEnv("DATA_DIR", "./data"),

		TaxGroup:          getEnvAsInt("TAX_GROUP", int(domain.Group3)),
		VATPayer:          getEnvAsBool("VAT_PAYER", false),
		AccountCurrency:   strings.ToUpper(getEnv("ACCOUNT_CURRENCY", domain.DefaultAccountCurrency)),
		DisabledQuarters:  getEnvAsList("DISABLED_QUARTERS", nil),
		ClosedPeriodsOnly: getEnvAsBool("CLOSED_PERIODS_ONLY", false),
		MaskSnapshots:     getEnvAsBool("MASK_SNAPSHOTS", false),

		MonobankToken:   getEnv("MONOBANK_TOKEN", ""),
		MonobankBaseURL: getEnv("MONOBANK_BASE_URL", "https://api.monobank.ua"),
		MonobankPause:   time.Duration(getEnvAsInt("MONOBANK_PAUSE_SECONDS", 30)) * time.Second,
		NBUBaseURL:      getEnv("NBU_BASE_URL", "https://bank.gov.ua"),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", "0 0 6 * * *"),

		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", "snapshots"),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "fop_tax"),
		GeminiModel:     getEnv("GEMINI_MODEL", ""),

		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),

		MCCDictionaryPath: getEnv("MCC_DICTIONARY_PATH", "./dictionaries/mcc_codes.json"),
		QueueWorkers:      getEnvAsInt("QUEUE_WORKERS", 2),
		QueueMaxRetries:   getEnvAsInt("QUEUE_MAX_RETRIES", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("API_PORT must be between 0 and 65535, got %d", c.Port)
	}
	if c.TaxGroup < int(domain.Group1) || c.TaxGroup > int(domain.Group3) {
		return fmt.Errorf("TAX_GROUP must be 1, 2 or 3, got %d", c.TaxGroup)
	}
	if len(c.AccountCurrency) != 3 {
		return fmt.Errorf("ACCOUNT_CURRENCY must be a three-letter code, got %q", c.AccountCurrency)
	}
	for _, q := range c.DisabledQuarters {
		if _, err := domain.ParseQuarter(q); err != nil {
			return fmt.Errorf("DISABLED_QUARTERS: %w", err)
		}
	}
	if c.DataDir == "" && c.GCSBucket == "" {
		return fmt.Errorf("DATA_DIR or GCS_BUCKET is required")
	}
	if c.QueueWorkers < 1 {
		return fmt.Errorf("QUEUE_WORKERS must be positive, got %d", c.QueueWorkers)
	}
	return nil
}

// TaxGroupConfig builds the regime parameters selected by the configuration.
func (c *Config) TaxGroupConfig() (domain.TaxGroupConfig, error) {
	cfg, err := domain.DefaultTaxGroupConfig(domain.TaxGroup(c.TaxGroup))
	if err != nil {
		return domain.TaxGroupConfig{}, err
	}

	cfg.VATPayer = c.VATPayer
	cfg.AccountCurrency = c.AccountCurrency
	for _, s := range c.DisabledQuarters {
		q, err := domain.ParseQuarter(s)
		if err != nil {
			return domain.TaxGroupConfig{}, fmt.Errorf("TaxGroup: %w", err)
		}
		cfg.DisabledQuarters = append(cfg.DisabledQuarters, q)
	}
	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
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
	return out
}
