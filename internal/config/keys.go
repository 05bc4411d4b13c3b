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
	kFloat
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
		key: "server.port", typ: kInt, env: "ACNEDETECT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.ai_rate_per_minute", typ: kInt, env: "ACNEDETECT_SERVER_AI_RATE_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Server.AIRatePerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.AIRatePerMinute },
	},
	{
		key: "server.session_idle_ttl", typ: kString, env: "ACNEDETECT_SERVER_SESSION_IDLE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Server.SessionIdleTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.SessionIdleTTL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ACNEDETECT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "proxy.base_url", typ: kString, env: "ACNEDETECT_PROXY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.BaseURL },
	},
	{
		key: "proxy.model", typ: kString, env: "ACNEDETECT_PROXY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.Model },
	},
	{
		key: "proxy.openai_api_key", typ: kString, env: apiKeyEnv,
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.OpenAIAPIKey },
	},
	{
		key: "proxy.timeout", typ: kString, env: "ACNEDETECT_PROXY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Proxy.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.Timeout },
	},
	{
		key: "proxy.image_timeout", typ: kString, env: "ACNEDETECT_PROXY_IMAGE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Proxy.ImageTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.ImageTimeout },
	},
	{
		key: "chat.temperature", typ: kFloat, env: "ACNEDETECT_CHAT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Chat.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Chat.Temperature },
	},
	{
		key: "chat.max_tokens", typ: kInt, env: "ACNEDETECT_CHAT_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Chat.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.MaxTokens },
	},
	{
		key: "log.level", typ: kString, env: "ACNEDETECT_LOG_LEVEL",
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
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
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
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
