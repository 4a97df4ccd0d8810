// Package config loads neer configuration from defaults, a JSON config
// file, a .env.local file, and NEER_* environment variables, in that
// order, later sources winning.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Upstream selection. Direct calls the provider with a local API key;
// relay forwards prompts to a hosted endpoint that holds the key
// server-side.
const (
	UpstreamDirect = "direct"
	UpstreamRelay  = "relay"
)

type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Storage    StorageConfig
	Upstream   UpstreamConfig
	Generation GenerationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string // empty disables bearer auth (local single-user use)
}

type DataConfig struct {
	Dir string // directory holding the precomputed CSV/GeoJSON files
}

type StorageConfig struct {
	DataDir string
}

type UpstreamConfig struct {
	Mode         string // "direct" or "relay"
	GeminiAPIKey string
	RelayBaseURL string
}

type GenerationConfig struct {
	SessionCap      int
	CooldownSeconds int
	SectionDelayMs  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Data: DataConfig{
			Dir: "data",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Upstream: UpstreamConfig{
			Mode: UpstreamDirect,
		},
		Generation: GenerationConfig{
			SessionCap:      10,
			CooldownSeconds: 60,
			SectionDelayMs:  4500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. A .env.local file in the working directory
// is folded into the environment first (dev parity with the dashboard's
// Vite setup); a missing file is not an error.
//
// A missing Gemini API key is not an error: the service degrades to
// precomputed narratives and re-checks the key on every upstream call.
func Load() (Config, error) {
	godotenv.Load(".env.local")
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	// The dashboard's serverless functions read GEMINI_API_KEY; honor the
	// same name when the NEER_ variable is unset.
	if cfg.Upstream.GeminiAPIKey == "" {
		cfg.Upstream.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "neer-data"
		}
	}
	return filepath.Join(dir, "neer")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "neer", "config.json")
}
