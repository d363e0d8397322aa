// Package config loads service settings from defaults, a JSON file and
// TRESSES_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"time"
)

// ErrMissingToken is returned by RequireToken when no API token is set.
var ErrMissingToken = errors.New("missing required config: API token. Set it via environment variable TRESSES_API_TOKEN")

type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Log          LogConfig
	API          APIConfig
	Conversation ConversationConfig
	Followup     FollowupConfig
	Knowledge    KnowledgeConfig
}

type ServerConfig struct {
	Port      int
	RateLimit int // requests per minute per client IP; 0 disables
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

type ConversationConfig struct {
	ShortTermWindow int
	IdleTimeout     time.Duration
}

type FollowupConfig struct {
	Delay time.Duration
	// Durable schedules follow-ups through the SQLite job queue so they
	// survive a restart.
	Durable bool
}

type KnowledgeConfig struct {
	// DataFile replaces the embedded knowledge base when set.
	DataFile string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      4100,
			RateLimit: 120,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Conversation: ConversationConfig{
			ShortTermWindow: 10,
			IdleTimeout:     30 * time.Minute,
		},
		Followup: FollowupConfig{
			Delay: 3 * time.Second,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/tresses/config.json and then applies environment
// overrides. Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// RequireToken reports ErrMissingToken when the HTTP API would start
// without authentication.
func (c Config) RequireToken() error {
	if c.API.Token == "" {
		return ErrMissingToken
	}
	return nil
}
