package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
	t.Setenv("GEMINI_API_KEY", "")
}

// TestDefaults verifies all default values survive loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Upstream.Mode != UpstreamDirect {
		t.Errorf("Upstream.Mode = %q, want %q", cfg.Upstream.Mode, UpstreamDirect)
	}
	if cfg.Generation.SessionCap != 10 {
		t.Errorf("Generation.SessionCap = %d, want 10", cfg.Generation.SessionCap)
	}
	if cfg.Generation.CooldownSeconds != 60 {
		t.Errorf("Generation.CooldownSeconds = %d, want 60", cfg.Generation.CooldownSeconds)
	}
	if cfg.Generation.SectionDelayMs != 4500 {
		t.Errorf("Generation.SectionDelayMs = %d, want 4500", cfg.Generation.SectionDelayMs)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

// TestMissingAPIKeyNotFatal verifies loading succeeds without any
// upstream credential; the service runs in precomputed-only mode.
func TestMissingAPIKeyNotFatal(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.GeminiAPIKey != "" {
		t.Errorf("GeminiAPIKey = %q, want empty", cfg.Upstream.GeminiAPIKey)
	}
}

// TestFileParsing verifies fields are read from the JSON config file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 5600,
  "data.dir": "/srv/neer/data",
  "storage.data_dir": "/tmp/neer-test",
  "upstream.mode": "relay",
  "upstream.relay_base_url": "https://relay.example.com",
  "generation.session_cap": 5,
  "generation.cooldown_seconds": 30,
  "generation.section_delay_ms": 1000,
  "log.level": "debug"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5600 {
		t.Errorf("Server.Port = %d, want 5600", cfg.Server.Port)
	}
	if cfg.Data.Dir != "/srv/neer/data" {
		t.Errorf("Data.Dir = %q", cfg.Data.Dir)
	}
	if cfg.Storage.DataDir != "/tmp/neer-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Upstream.Mode != UpstreamRelay {
		t.Errorf("Upstream.Mode = %q", cfg.Upstream.Mode)
	}
	if cfg.Upstream.RelayBaseURL != "https://relay.example.com" {
		t.Errorf("Upstream.RelayBaseURL = %q", cfg.Upstream.RelayBaseURL)
	}
	if cfg.Generation.SessionCap != 5 {
		t.Errorf("Generation.SessionCap = %d", cfg.Generation.SessionCap)
	}
	if cfg.Generation.CooldownSeconds != 30 {
		t.Errorf("Generation.CooldownSeconds = %d", cfg.Generation.CooldownSeconds)
	}
	if cfg.Generation.SectionDelayMs != 1000 {
		t.Errorf("Generation.SectionDelayMs = %d", cfg.Generation.SectionDelayMs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies environment variables override file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.port": 5600}`)

	t.Setenv("NEER_SERVER_PORT", "6600")
	t.Setenv("NEER_GEMINI_API_KEY", "env-key")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6600 {
		t.Errorf("Server.Port = %d, want 6600", cfg.Server.Port)
	}
	if cfg.Upstream.GeminiAPIKey != "env-key" {
		t.Errorf("GeminiAPIKey = %q, want %q", cfg.Upstream.GeminiAPIKey, "env-key")
	}
}

// TestGeminiKeyFallback verifies the bare GEMINI_API_KEY name is honored
// when the prefixed variable is unset.
func TestGeminiKeyFallback(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	t.Setenv("GEMINI_API_KEY", "bare-key")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.GeminiAPIKey != "bare-key" {
		t.Errorf("GeminiAPIKey = %q, want %q", cfg.Upstream.GeminiAPIKey, "bare-key")
	}
}

// TestShowAllHidesSecrets verifies secrets never appear in config listings.
func TestShowAllHidesSecrets(t *testing.T) {
	infos := ShowAll(defaults())
	for _, info := range infos {
		if info.Key == "upstream.gemini_api_key" || info.Key == "server.api_token" {
			t.Errorf("secret key %q exposed by ShowAll", info.Key)
		}
	}
	if len(infos) == 0 {
		t.Fatal("ShowAll returned no keys")
	}
}
