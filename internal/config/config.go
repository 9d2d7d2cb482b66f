// Package config provides the run configuration for price-export.
// Configuration is loaded once at startup from defaults, an optional JSON
// file and environment variables (in increasing priority), validated, and
// then passed into the pipeline as an immutable value. Nothing in the
// program mutates configuration after Load returns.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/mserhatbalik/price-export/internal/errors"
	"github.com/mserhatbalik/price-export/internal/models"
)

// Config is the complete configuration for one run.
type Config struct {
	Fetch     FetchConfig     `json:"fetch"`
	Transform TransformConfig `json:"transform"`
	Output    OutputConfig    `json:"output"`
	Logging   LoggingConfig   `json:"logging"`
}

// FetchConfig configures the market-data download.
type FetchConfig struct {
	Symbol        string `json:"symbol" env:"PRICE_EXPORT_SYMBOL"`
	WindowDays    int    `json:"window_days" env:"PRICE_EXPORT_WINDOW_DAYS"` // trailing window ending now
	Interval      string `json:"interval" env:"PRICE_EXPORT_INTERVAL"`
	BaseURL       string `json:"base_url" env:"PRICE_EXPORT_BASE_URL"`
	Timeout       string `json:"timeout" env:"PRICE_EXPORT_HTTP_TIMEOUT"`
	RateLimit     int    `json:"rate_limit" env:"PRICE_EXPORT_RATE_LIMIT"` // requests per second
	RetryAttempts int    `json:"retry_attempts" env:"PRICE_EXPORT_RETRY_ATTEMPTS"`
}

// TransformConfig configures the gap-fill and formatting transform.
type TransformConfig struct {
	TimestampUnit  string `json:"timestamp_unit" env:"PRICE_EXPORT_TIMESTAMP_UNIT"` // "seconds" or "milliseconds"
	CadenceMinutes int    `json:"cadence_minutes" env:"PRICE_EXPORT_CADENCE_MINUTES"`
	Timezone       string `json:"timezone" env:"PRICE_EXPORT_TIMEZONE"`
}

// OutputConfig configures file and sheet naming.
type OutputConfig struct {
	SheetName  string `json:"sheet_name" env:"PRICE_EXPORT_SHEET_NAME"`
	InputFile  string `json:"input_file" env:"PRICE_EXPORT_INPUT_FILE"`
	OutputFile string `json:"output_file" env:"PRICE_EXPORT_OUTPUT_FILE"` // derived from input when empty
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"PRICE_EXPORT_LOG_LEVEL"`   // debug, info, warn, error
	Format     string `json:"format" env:"PRICE_EXPORT_LOG_FORMAT"` // json, text
	Output     string `json:"output" env:"PRICE_EXPORT_LOG_OUTPUT"` // stdout, stderr, file
	FilePath   string `json:"file_path" env:"PRICE_EXPORT_LOG_FILE_PATH"`
	MaxSize    int    `json:"max_size"`    // MB per log file before rotation
	MaxBackups int    `json:"max_backups"` // rotated files kept
	MaxAge     int    `json:"max_age"`     // days
	Compress   bool   `json:"compress"`
}

// Default returns a configuration with the compiled defaults: NASDAQ
// futures at 15-minute bars over the trailing 59 days, exported for New
// York wall-clock time.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Symbol:        "NQ=F",
			WindowDays:    59,
			Interval:      "15m",
			BaseURL:       "https://query1.finance.yahoo.com",
			Timeout:       "30s",
			RateLimit:     2,
			RetryAttempts: 3,
		},
		Transform: TransformConfig{
			TimestampUnit:  "seconds",
			CadenceMinutes: 15,
			Timezone:       "America/New_York",
		},
		Output: OutputConfig{
			SheetName: "PriceData_NY",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// Load builds the configuration from defaults, then the JSON file at path
// (when it exists), then environment variables, and validates the result.
// An empty path skips the file stage.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}

	setString("PRICE_EXPORT_SYMBOL", &cfg.Fetch.Symbol)
	setInt("PRICE_EXPORT_WINDOW_DAYS", &cfg.Fetch.WindowDays)
	setString("PRICE_EXPORT_INTERVAL", &cfg.Fetch.Interval)
	setString("PRICE_EXPORT_BASE_URL", &cfg.Fetch.BaseURL)
	setString("PRICE_EXPORT_HTTP_TIMEOUT", &cfg.Fetch.Timeout)
	setInt("PRICE_EXPORT_RATE_LIMIT", &cfg.Fetch.RateLimit)
	setInt("PRICE_EXPORT_RETRY_ATTEMPTS", &cfg.Fetch.RetryAttempts)

	setString("PRICE_EXPORT_TIMESTAMP_UNIT", &cfg.Transform.TimestampUnit)
	setInt("PRICE_EXPORT_CADENCE_MINUTES", &cfg.Transform.CadenceMinutes)
	setString("PRICE_EXPORT_TIMEZONE", &cfg.Transform.Timezone)

	setString("PRICE_EXPORT_SHEET_NAME", &cfg.Output.SheetName)
	setString("PRICE_EXPORT_INPUT_FILE", &cfg.Output.InputFile)
	setString("PRICE_EXPORT_OUTPUT_FILE", &cfg.Output.OutputFile)

	setString("PRICE_EXPORT_LOG_LEVEL", &cfg.Logging.Level)
	setString("PRICE_EXPORT_LOG_FORMAT", &cfg.Logging.Format)
	setString("PRICE_EXPORT_LOG_OUTPUT", &cfg.Logging.Output)
	setString("PRICE_EXPORT_LOG_FILE_PATH", &cfg.Logging.FilePath)
}

// Validate checks the configuration for consistency. The timezone is
// resolved eagerly so an unknown zone fails the run at startup rather
// than mid-transform.
func (c *Config) Validate() error {
	var problems []string

	if c.Fetch.Symbol == "" {
		problems = append(problems, "fetch.symbol is required")
	}
	if c.Fetch.WindowDays <= 0 {
		problems = append(problems, "fetch.window_days must be greater than 0")
	}
	if c.Fetch.RateLimit <= 0 {
		problems = append(problems, "fetch.rate_limit must be greater than 0")
	}
	if c.Fetch.RetryAttempts < 0 {
		problems = append(problems, "fetch.retry_attempts must not be negative")
	}
	if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
		problems = append(problems, fmt.Sprintf("fetch.timeout is not a valid duration: %v", err))
	}

	if _, err := models.ParseTimestampUnit(c.Transform.TimestampUnit); err != nil {
		problems = append(problems, fmt.Sprintf("transform.timestamp_unit: %v", err))
	}
	if c.Transform.CadenceMinutes <= 0 {
		problems = append(problems, "transform.cadence_minutes must be greater than 0")
	}

	if c.Output.SheetName == "" {
		problems = append(problems, "output.sheet_name is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		problems = append(problems, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		problems = append(problems, "logging.format must be one of: json, text")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		problems = append(problems, "logging.file_path is required when logging.output is 'file'")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation errors:\n- %s", strings.Join(problems, "\n- "))
	}

	if c.Transform.Timezone == "" {
		return apperrors.Errorf(apperrors.KindUnknownTimezone, "config.Validate", "transform.timezone is required")
	}
	if _, err := time.LoadLocation(c.Transform.Timezone); err != nil {
		return apperrors.E(apperrors.KindUnknownTimezone, "config.Validate", err)
	}

	return nil
}

// Cadence returns the grid spacing as a duration.
func (t TransformConfig) Cadence() time.Duration {
	return time.Duration(t.CadenceMinutes) * time.Minute
}

// Location resolves the configured IANA timezone.
func (t TransformConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, apperrors.E(apperrors.KindUnknownTimezone, "config.Location", err)
	}
	return loc, nil
}

// Unit returns the validated timestamp unit.
func (t TransformConfig) Unit() models.TimestampUnit {
	unit, err := models.ParseTimestampUnit(t.TimestampUnit)
	if err != nil {
		return models.UnitSeconds
	}
	return unit
}

// HTTPTimeout returns the fetch timeout as a duration.
func (f FetchConfig) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ResolveOutput returns the spreadsheet path: the configured output file
// when set, otherwise the input path with its extension replaced by .xlsx,
// the convention carried over from the CSV-to-Excel origin of this tool.
func (o OutputConfig) ResolveOutput(input string) string {
	if o.OutputFile != "" {
		return o.OutputFile
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".xlsx"
}

// String returns the configuration as indented JSON for startup logging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
