package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names a document store implementation.
type Backend string

const (
	BackendSQLite    Backend = "sqlite"
	BackendPostgres  Backend = "postgres"
	BackendFirestore Backend = "firestore"
	BackendMemory    Backend = "memory"
)

const (
	DefaultStravaBaseURL = "https://www.strava.com/api/v3"
	DefaultStravaTimeout = 15 * time.Second
	DefaultHTTPAddress   = ":8080"
	DefaultPollInterval  = 2 * time.Second
	DefaultCollection    = "users"
)

type Config struct {
	// ActiveUser is the free-text name used as the document key.
	ActiveUser string `yaml:"ActiveUser"`

	StorageBackend Backend `yaml:"StorageBackend"`
	DatabasePath   string  `yaml:"DatabasePath"`

	// PostgreSQL settings
	PostgresURL string `yaml:"PostgresURL"`

	// Firestore settings
	FirestoreProject    string `yaml:"FirestoreProject"`
	FirestoreCollection string `yaml:"FirestoreCollection"`

	// Strava settings
	StravaBaseURL string        `yaml:"StravaBaseURL"`
	StravaTimeout time.Duration `yaml:"StravaTimeout"`

	// Timezone is an IANA name; empty means the system zone.
	Timezone     string        `yaml:"Timezone"`
	MinimumWeeks int           `yaml:"MinimumWeeks"`
	HistoryPath  string        `yaml:"HistoryPath"`
	HTTPAddress  string        `yaml:"HTTPAddress"`
	PollInterval time.Duration `yaml:"PollInterval"`
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom is Load for an explicit path.
func LoadFrom(configPath string) (*Config, error) {
	cfg := getDefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.StorageBackend = Backend(getEnv("OFFICECAL_BACKEND", string(c.StorageBackend)))
	c.PostgresURL = getEnv("POSTGRES_URL", c.PostgresURL)
	c.FirestoreProject = getEnv("FIRESTORE_PROJECT", c.FirestoreProject)
	c.StravaBaseURL = getEnv("STRAVA_BASE_URL", c.StravaBaseURL)
	c.Timezone = getEnv("OFFICECAL_TIMEZONE", c.Timezone)
	c.HTTPAddress = getEnv("HTTP_ADDRESS", c.HTTPAddress)
}

func (c *Config) applyDefaults() {
	defaults := getDefaultConfig()
	if c.StorageBackend == "" {
		c.StorageBackend = defaults.StorageBackend
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.FirestoreCollection == "" {
		c.FirestoreCollection = DefaultCollection
	}
	if c.StravaBaseURL == "" {
		c.StravaBaseURL = DefaultStravaBaseURL
	}
	if c.StravaTimeout == 0 {
		c.StravaTimeout = DefaultStravaTimeout
	}
	if c.HistoryPath == "" {
		c.HistoryPath = defaults.HistoryPath
	}
	if c.HTTPAddress == "" {
		c.HTTPAddress = DefaultHTTPAddress
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}

	// Expand ~ in paths
	c.DatabasePath = expandHome(c.DatabasePath)
	c.HistoryPath = expandHome(c.HistoryPath)
}

func getConfigPath() string {
	if p := os.Getenv("OFFICECAL_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".officecal.yaml")
}

// Path returns the config file location in use.
func Path() string {
	return getConfigPath()
}

func getDefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StorageBackend:      BackendSQLite,
		DatabasePath:        filepath.Join(home, ".officecal", "data.db"),
		FirestoreCollection: DefaultCollection,
		StravaBaseURL:       DefaultStravaBaseURL,
		StravaTimeout:       DefaultStravaTimeout,
		HistoryPath:         filepath.Join(home, ".officecal", "history"),
		HTTPAddress:         DefaultHTTPAddress,
		PollInterval:        DefaultPollInterval,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetLocation returns the configured time zone, or the system zone.
func (c *Config) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "Timezone", Message: err.Error()}
	}
	return loc, nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

// Validate checks the configuration for common issues
func (c *Config) Validate() error {
	// Check for missing required fields based on backend
	switch c.StorageBackend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return &ValidationError{Field: "DatabasePath", Message: "Database path is required"}
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return &ValidationError{Field: "PostgresURL", Message: "PostgreSQL URL is required (set POSTGRES_URL env var)"}
		}
	case BackendFirestore:
		if c.FirestoreProject == "" {
			return &ValidationError{Field: "FirestoreProject", Message: "Firestore project is required (set FIRESTORE_PROJECT env var)"}
		}
	case BackendMemory:
	default:
		return &ValidationError{Field: "StorageBackend", Message: fmt.Sprintf("unknown backend %q", c.StorageBackend)}
	}

	if c.MinimumWeeks < 0 || c.MinimumWeeks > 6 {
		return &ValidationError{Field: "MinimumWeeks", Message: "Minimum weeks must be between 0 and 6"}
	}

	if c.StravaTimeout < 0 {
		return &ValidationError{Field: "StravaTimeout", Message: "Strava timeout must not be negative"}
	}

	if _, err := c.GetLocation(); err != nil {
		return err
	}

	return nil
}
