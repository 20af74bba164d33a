// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Command line flags are applied on top by the cli package. Once loaded, the
// *Config is passed explicitly through the pipeline; nothing reads the
// environment after startup.
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	store := cfg.Shopify.Store
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Date fields the order API can filter on.
const (
	DateFieldCreated = "created_at"
	DateFieldUpdated = "updated_at"
)

// DefaultAPIVersion is the admin REST API version used when none is configured.
//
// The order list is paged with page=N. Versioned admin APIs since 2019-10
// only page with cursors and reject page numbers, so against a live store
// api_version must name an endpoint that still accepts page=N (for example
// a proxy or an unversioned legacy path). The default suits stores and test
// servers that serve page numbers under this version.
const DefaultAPIVersion = "2024-01"

// ErrMissingCredentials is wrapped by ValidationError when store credentials are absent.
var ErrMissingCredentials = errors.New("missing store credentials")

// Config represents the entire application configuration
type Config struct {
	Shopify       ShopifyConfig       `yaml:"shopify"`
	Export        ExportConfig        `yaml:"export"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ShopifyConfig holds the store connection settings
type ShopifyConfig struct {
	Store       string `yaml:"store"`
	AccessToken string `yaml:"access_token"`
	Password    string `yaml:"password"`
	APIVersion  string `yaml:"api_version"`
	Timeout     string `yaml:"timeout"`
}

// ExportConfig holds settings for the export pipeline
type ExportConfig struct {
	OutputDir    string `yaml:"output_dir"`
	DateField    string `yaml:"date_field"`
	RetryBackoff string `yaml:"retry_backoff"`
}

// StorageConfig holds the run ledger configuration. An empty path disables the ledger.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP API settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ValidationError reports every configuration problem found by Validate.
type ValidationError struct {
	Missing  []string
	Problems []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required settings: %s", strings.Join(e.Missing, ", ")))
	}
	parts = append(parts, e.Problems...)
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Unwrap lets callers test for ErrMissingCredentials with errors.Is.
func (e *ValidationError) Unwrap() error {
	if len(e.Missing) > 0 {
		return ErrMissingCredentials
	}
	return nil
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${SHOPIFY_ACCESS_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Shopify: ShopifyConfig{
			Store:       os.Getenv("SHOPIFY_STORE"),
			AccessToken: os.Getenv("SHOPIFY_ACCESS_TOKEN"),
			Password:    os.Getenv("SHOPIFY_PASSWORD"),
			APIVersion:  getEnv("SHOPIFY_API_VERSION", DefaultAPIVersion),
			Timeout:     getEnv("SHOPIFY_TIMEOUT", "30s"),
		},
		Export: ExportConfig{
			OutputDir:    getEnv("COMPTA_OUTPUT_DIR", "."),
			DateField:    getEnv("COMPTA_DATE_FIELD", DateFieldCreated),
			RetryBackoff: getEnv("COMPTA_RETRY_BACKOFF", "2s"),
		},
		Storage: StorageConfig{
			DatabasePath: os.Getenv("COMPTA_DB_PATH"),
		},
		API: APIConfig{
			Port: getEnvInt("COMPTA_API_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.Shopify.APIVersion == "" {
		c.Shopify.APIVersion = DefaultAPIVersion
	}
	if c.Shopify.Timeout == "" {
		c.Shopify.Timeout = "30s"
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "."
	}
	if c.Export.DateField == "" {
		c.Export.DateField = DateFieldCreated
	}
	if c.Export.RetryBackoff == "" {
		c.Export.RetryBackoff = "2s"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// Validate checks that the store credentials are present and that every
// duration and enum setting parses. It must pass before any network call.
func (c *Config) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(c.Shopify.Store) == "" {
		verr.Missing = append(verr.Missing, "SHOPIFY_STORE")
	}
	if strings.TrimSpace(c.Shopify.AccessToken) == "" {
		verr.Missing = append(verr.Missing, "SHOPIFY_ACCESS_TOKEN")
	}
	if strings.TrimSpace(c.Shopify.Password) == "" {
		verr.Missing = append(verr.Missing, "SHOPIFY_PASSWORD")
	}

	if _, err := c.Shopify.TimeoutDuration(); err != nil {
		verr.Problems = append(verr.Problems, fmt.Sprintf("shopify.timeout: %v", err))
	}
	if _, err := c.Export.Backoff(); err != nil {
		verr.Problems = append(verr.Problems, fmt.Sprintf("export.retry_backoff: %v", err))
	}
	if c.Export.DateField != DateFieldCreated && c.Export.DateField != DateFieldUpdated {
		verr.Problems = append(verr.Problems, fmt.Sprintf("export.date_field must be %q or %q, got %q",
			DateFieldCreated, DateFieldUpdated, c.Export.DateField))
	}

	if len(verr.Missing) > 0 || len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// TimeoutDuration parses the HTTP timeout.
func (s ShopifyConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(s.Timeout, 30*time.Second)
}

// Backoff parses the wait between a failed page fetch and its retry.
func (e ExportConfig) Backoff() (time.Duration, error) {
	return parseDuration(e.RetryBackoff, 2*time.Second)
}

func parseDuration(val string, fallback time.Duration) (time.Duration, error) {
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", val)
	}
	return d, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
