package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NEER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "NEER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "data.dir", typ: kString, env: "NEER_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Data.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Data.Dir },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NEER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "upstream.mode", typ: kString, env: "NEER_UPSTREAM_MODE",
		apply:   func(cfg *Config, v any) { cfg.Upstream.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.Mode },
	},
	{
		key: "upstream.gemini_api_key", typ: kString, env: "NEER_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Upstream.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.GeminiAPIKey },
	},
	{
		key: "upstream.relay_base_url", typ: kString, env: "NEER_RELAY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Upstream.RelayBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.RelayBaseURL },
	},
	{
		key: "generation.session_cap", typ: kInt, env: "NEER_GENERATION_SESSION_CAP",
		apply:   func(cfg *Config, v any) { cfg.Generation.SessionCap = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.SessionCap },
	},
	{
		key: "generation.cooldown_seconds", typ: kInt, env: "NEER_GENERATION_COOLDOWN_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Generation.CooldownSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.CooldownSeconds },
	},
	{
		key: "generation.section_delay_ms", typ: kInt, env: "NEER_GENERATION_SECTION_DELAY_MS",
		apply:   func(cfg *Config, v any) { cfg.Generation.SectionDelayMs = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.SectionDelayMs },
	},
	{
		key: "log.level", typ: kString, env: "NEER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
