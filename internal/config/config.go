// Package config handles loading and resolving polidisc configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag
//  2. Environment variable
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 8
	DefaultRate        = 1.0 // requests/sec; matches request_delay=1.0s in SourceConfig
	DefaultLogLevel    = "INFO"

	EnvSupabaseURL     = "SUPABASE_URL"
	EnvSupabaseAnonKey = "SUPABASE_ANON_KEY"
	EnvSupabaseService = "SUPABASE_SERVICE_ROLE_KEY"
	EnvQuiverQuantKey  = "QUIVERQUANT_API_KEY"
	EnvLogLevel        = "LOG_LEVEL"
	EnvDBPath          = "POLIDISC_DB_PATH"
)

// ErrMissingCredentials is returned by Validate when SUPABASE_URL could not
// be resolved, or when neither SUPABASE_ANON_KEY nor
// SUPABASE_SERVICE_ROLE_KEY could be.
var ErrMissingCredentials = errors.New("missing required configuration")

// File is the on-disk representation of config.json.
type File struct {
	SupabaseURL      string  `json:"supabase_url"`
	SupabaseAnonKey  string  `json:"supabase_anon_key"`
	SupabaseService  string  `json:"supabase_service_role_key,omitempty"`
	QuiverQuantKey   string  `json:"quiverquant_api_key,omitempty"`
	LogLevel         string  `json:"log_level"`
	Timeout          string  `json:"timeout"`
	Concurrency      int     `json:"concurrency"`
	Rate             float64 `json:"rate"`
	DBPath           string  `json:"db_path"`
}

// Config is the fully-resolved runtime configuration. All callers use this
// struct; File is only read during loading.
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseService string
	QuiverQuantKey  string
	LogLevel        string
	Timeout         time.Duration
	Concurrency     int
	Rate            float64
	DBPath          string
	ConfigPath      string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Debug   bool
	Verbose bool
	Quiet   bool
}

// Overrides carries values already parsed from CLI flags, which Load applies
// over every other source (empty string/zero means "not set").
type Overrides struct {
	SupabaseURL string
	LogLevel    string
}

// Load resolves configuration from config.json, then environment, then the
// supplied CLI overrides (highest priority).
func Load(overrides Overrides) (*Config, error) {
	cfg := &Config{
		LogLevel:    DefaultLogLevel,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Rate:        DefaultRate,
	}

	// Layer 1: config.json (lowest priority)
	if f, path, err := loadFile(); err == nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment variables
	if v := os.Getenv(EnvSupabaseURL); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv(EnvSupabaseAnonKey); v != "" {
		cfg.SupabaseAnonKey = v
	}
	if v := os.Getenv(EnvSupabaseService); v != "" {
		cfg.SupabaseService = v
	}
	if v := os.Getenv(EnvQuiverQuantKey); v != "" {
		cfg.QuiverQuantKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flags (highest priority)
	if overrides.SupabaseURL != "" {
		cfg.SupabaseURL = overrides.SupabaseURL
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".polidisc", "polidisc.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if required fields are missing: SUPABASE_URL and
// one of SUPABASE_ANON_KEY/SUPABASE_SERVICE_ROLE_KEY.
func (c *Config) Validate() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, EnvSupabaseURL)
	}
	if c.SupabaseAnonKey == "" && c.SupabaseService == "" {
		missing = append(missing, EnvSupabaseAnonKey)
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v (set via environment, config.json, or CLI flags)", ErrMissingCredentials, missing)
}

// RedactedAnonKey returns the anon key with most characters replaced by
// asterisks, safe for logging and display.
func (c *Config) RedactedAnonKey() string {
	return redact(c.SupabaseAnonKey)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s", path)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.SupabaseURL != "" {
		cfg.SupabaseURL = f.SupabaseURL
	}
	if f.SupabaseAnonKey != "" {
		cfg.SupabaseAnonKey = f.SupabaseAnonKey
	}
	if f.SupabaseService != "" {
		cfg.SupabaseService = f.SupabaseService
	}
	if f.QuiverQuantKey != "" {
		cfg.QuiverQuantKey = f.QuiverQuantKey
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `polidisc config init`.
func Template() File {
	return File{
		LogLevel:    DefaultLogLevel,
		Timeout:     "30s",
		Concurrency: DefaultConcurrency,
		Rate:        DefaultRate,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
