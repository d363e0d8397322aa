package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
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
		key: "server.port", typ: kInt, env: "TRESSES_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.rate_limit", typ: kInt, env: "TRESSES_SERVER_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimit },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TRESSES_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TRESSES_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "TRESSES_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "conversation.short_term_window", typ: kInt, env: "TRESSES_CONVERSATION_SHORT_TERM_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Conversation.ShortTermWindow = v.(int) },
		extract: func(cfg Config) any { return cfg.Conversation.ShortTermWindow },
	},
	{
		key: "conversation.idle_timeout", typ: kDuration, env: "TRESSES_CONVERSATION_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Conversation.IdleTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Conversation.IdleTimeout },
	},
	{
		key: "followup.delay", typ: kDuration, env: "TRESSES_FOLLOWUP_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Followup.Delay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Followup.Delay },
	},
	{
		key: "followup.durable", typ: kBool, env: "TRESSES_FOLLOWUP_DURABLE",
		apply:   func(cfg *Config, v any) { cfg.Followup.Durable = v.(bool) },
		extract: func(cfg Config) any { return cfg.Followup.Durable },
	},
	{
		key: "knowledge.data_file", typ: kString, env: "TRESSES_KNOWLEDGE_DATA_FILE",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.DataFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Knowledge.DataFile },
	},
}

// parse converts raw text to the key's Go type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err == nil && d < 0 {
			return nil, fmt.Errorf("negative duration %s", raw)
		}
		return d, err
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
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
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
