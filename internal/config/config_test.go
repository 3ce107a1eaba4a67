package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwicho38/polidisc/internal/config"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// writeConfig writes a config.json into dir and changes the working directory
// to dir for the duration of the test.
func writeConfig(t *testing.T, dir string, f config.File) {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// clearEnv unsets every config-resolving env var for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvSupabaseURL, "")
	t.Setenv(config.EnvSupabaseAnonKey, "")
	t.Setenv(config.EnvSupabaseService, "")
	t.Setenv(config.EnvQuiverQuantKey, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvDBPath, "")
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, _ := os.Getwd()
	_ = os.Chdir(dir)
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

// ─── Defaults ─────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != config.DefaultLogLevel {
		t.Errorf("LogLevel: expected %q, got %q", config.DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout: expected %v, got %v", config.DefaultTimeout, cfg.Timeout)
	}
	if cfg.Concurrency != config.DefaultConcurrency {
		t.Errorf("Concurrency: expected %d, got %d", config.DefaultConcurrency, cfg.Concurrency)
	}
	if cfg.Rate != config.DefaultRate {
		t.Errorf("Rate: expected %g, got %g", config.DefaultRate, cfg.Rate)
	}
	if cfg.DBPath == "" {
		t.Error("DBPath should have a default (home dir based) value")
	}
}

// ─── Config file loading ──────────────────────────────────────────────────────

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t)
	writeConfig(t, dir, config.File{
		SupabaseURL:     "https://proj.supabase.co",
		SupabaseAnonKey: "filekey123",
		LogLevel:        "DEBUG",
		Timeout:         "60s",
		Concurrency:     4,
		Rate:            2.5,
		DBPath:          "/tmp/test.db",
	})

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SupabaseAnonKey != "filekey123" {
		t.Errorf("SupabaseAnonKey: expected filekey123, got %q", cfg.SupabaseAnonKey)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel: expected DEBUG, got %q", cfg.LogLevel)
	}
	if cfg.Timeout.String() != "1m0s" {
		t.Errorf("Timeout: expected 1m0s, got %q", cfg.Timeout.String())
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency: expected 4, got %d", cfg.Concurrency)
	}
	if cfg.Rate != 2.5 {
		t.Errorf("Rate: expected 2.5, got %g", cfg.Rate)
	}
	if cfg.SupabaseURL != "https://proj.supabase.co" {
		t.Errorf("SupabaseURL: expected custom URL, got %q", cfg.SupabaseURL)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath: expected /tmp/test.db, got %q", cfg.DBPath)
	}
}

func TestLoadConfigPathRecorded(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t)
	writeConfig(t, dir, config.File{SupabaseURL: "https://x.supabase.co"})

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigPath == "" {
		t.Error("ConfigPath should be set when config.json is found")
	}
	if !strings.Contains(cfg.ConfigPath, "config.json") {
		t.Errorf("ConfigPath should contain config.json, got %q", cfg.ConfigPath)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load without config.json should not error: %v", err)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath should be empty when no file found, got %q", cfg.ConfigPath)
	}
}

func TestLoadInvalidTimeoutIgnored(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t)
	writeConfig(t, dir, config.File{
		SupabaseURL: "https://x.supabase.co",
		Timeout:     "not-a-duration",
	})

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("invalid timeout should use default %v, got %v", config.DefaultTimeout, cfg.Timeout)
	}
}

// ─── Environment variable priority ───────────────────────────────────────────

func TestLoadEnvSupabaseURLOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.File{SupabaseURL: "https://file.supabase.co"})
	t.Setenv(config.EnvSupabaseURL, "https://env.supabase.co")
	t.Setenv(config.EnvDBPath, "")

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SupabaseURL != "https://env.supabase.co" {
		t.Errorf("env SUPABASE_URL should override file: expected https://env.supabase.co, got %q", cfg.SupabaseURL)
	}
}

func TestLoadEnvDBPath(t *testing.T) {
	clearEnv(t)
	chdirTemp(t)
	t.Setenv(config.EnvDBPath, "/custom/path/polidisc.db")

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/custom/path/polidisc.db" {
		t.Errorf("POLIDISC_DB_PATH: expected /custom/path/polidisc.db, got %q", cfg.DBPath)
	}
}

// ─── CLI flag priority ────────────────────────────────────────────────────────

func TestLoadOverrideSupabaseURLOverridesEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.File{SupabaseURL: "https://file.supabase.co"})
	t.Setenv(config.EnvSupabaseURL, "https://env.supabase.co")
	t.Setenv(config.EnvDBPath, "")

	cfg, err := config.Load(config.Overrides{SupabaseURL: "https://flag.supabase.co"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SupabaseURL != "https://flag.supabase.co" {
		t.Errorf("override should win over env and file: expected https://flag.supabase.co, got %q", cfg.SupabaseURL)
	}
}

func TestLoadOverrideEmptyDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t)
	writeConfig(t, dir, config.File{SupabaseURL: "https://file.supabase.co"})

	cfg, err := config.Load(config.Overrides{}) // empty override = not set
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SupabaseURL != "https://file.supabase.co" {
		t.Errorf("empty override should not override file value: expected https://file.supabase.co, got %q", cfg.SupabaseURL)
	}
}

// ─── Validate ─────────────────────────────────────────────────────────────────

func TestValidateWithCredentials(t *testing.T) {
	cfg := &config.Config{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "somekey"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with credentials should not error: %v", err)
	}
}

func TestValidateWithServiceKeyOnly(t *testing.T) {
	cfg := &config.Config{SupabaseURL: "https://x.supabase.co", SupabaseService: "servicekey"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with service role key should not error: %v", err)
	}
}

func TestValidateWithoutCredentials(t *testing.T) {
	cfg := &config.Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate without credentials should return error")
	}
}

func TestValidateErrorMentionsMissingFields(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), config.EnvSupabaseURL) {
		t.Errorf("error should mention %s, got: %v", config.EnvSupabaseURL, err)
	}
}

// ─── RedactedAnonKey ──────────────────────────────────────────────────────────

func TestRedactedAnonKeyNormal(t *testing.T) {
	cfg := &config.Config{SupabaseAnonKey: "abcdefghij"}
	redacted := cfg.RedactedAnonKey()

	if !strings.HasPrefix(redacted, "ab") {
		t.Errorf("redacted key should start with 'ab', got %q", redacted)
	}
	if !strings.HasSuffix(redacted, "ij") {
		t.Errorf("redacted key should end with 'ij', got %q", redacted)
	}
	if !strings.Contains(redacted, "****") {
		t.Errorf("redacted key should contain '****', got %q", redacted)
	}
}

func TestRedactedAnonKeyShort(t *testing.T) {
	for _, key := range []string{"", "a", "ab", "abc", "abcd"} {
		cfg := &config.Config{SupabaseAnonKey: key}
		if cfg.RedactedAnonKey() != "****" {
			t.Errorf("short key %q should redact to '****', got %q", key, cfg.RedactedAnonKey())
		}
	}
}

func TestRedactedAnonKeyNotPlaintext(t *testing.T) {
	cfg := &config.Config{SupabaseAnonKey: "supersecretkey123"}
	redacted := cfg.RedactedAnonKey()
	if redacted == cfg.SupabaseAnonKey {
		t.Error("redacted key should not equal the original")
	}
}

// ─── WriteFile / Template ─────────────────────────────────────────────────────

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	f := config.File{
		SupabaseURL:     "https://api.example.com",
		SupabaseAnonKey: "testkey",
		LogLevel:        "WARN",
		Timeout:         "45s",
		Concurrency:     6,
		Rate:            3.0,
		DBPath:          "/data/polidisc.db",
	}

	if err := config.WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got config.File
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	if got.SupabaseAnonKey != f.SupabaseAnonKey {
		t.Errorf("SupabaseAnonKey: expected %q, got %q", f.SupabaseAnonKey, got.SupabaseAnonKey)
	}
	if got.LogLevel != f.LogLevel {
		t.Errorf("LogLevel: expected %q, got %q", f.LogLevel, got.LogLevel)
	}
	if got.Timeout != f.Timeout {
		t.Errorf("Timeout: expected %q, got %q", f.Timeout, got.Timeout)
	}
	if got.Concurrency != f.Concurrency {
		t.Errorf("Concurrency: expected %d, got %d", f.Concurrency, got.Concurrency)
	}
	if got.Rate != f.Rate {
		t.Errorf("Rate: expected %g, got %g", f.Rate, got.Rate)
	}
	if got.DBPath != f.DBPath {
		t.Errorf("DBPath: expected %q, got %q", f.DBPath, got.DBPath)
	}
}

func TestWriteFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if err := config.WriteFile(path, config.File{SupabaseURL: "https://x.supabase.co"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file permissions: expected 0600, got %04o", info.Mode().Perm())
	}
}

func TestWriteFileIsValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if err := config.WriteFile(path, config.Template()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, _ := os.ReadFile(path)

	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		t.Errorf("WriteFile produced invalid JSON: %v", err)
	}
}

func TestTemplateDefaults(t *testing.T) {
	tmpl := config.Template()

	if tmpl.LogLevel != config.DefaultLogLevel {
		t.Errorf("Template.LogLevel: expected %q, got %q", config.DefaultLogLevel, tmpl.LogLevel)
	}
	if tmpl.Timeout != "30s" {
		t.Errorf("Template.Timeout: expected 30s, got %q", tmpl.Timeout)
	}
	if tmpl.Concurrency != config.DefaultConcurrency {
		t.Errorf("Template.Concurrency: expected %d, got %d", config.DefaultConcurrency, tmpl.Concurrency)
	}
	if tmpl.Rate != config.DefaultRate {
		t.Errorf("Template.Rate: expected %g, got %g", config.DefaultRate, tmpl.Rate)
	}
	if tmpl.SupabaseURL != "" {
		t.Errorf("Template.SupabaseURL should be empty (user fills it in), got %q", tmpl.SupabaseURL)
	}
}
