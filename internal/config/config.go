// Package config loads the quail settings file and applies environment
// overrides. The one storage decision it encodes: a configured Redis URL
// selects the remote light backend, otherwise state stays in process memory.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RedisConfig configures the remote light backend. Presence of a URL is the
// selection switch; Options carries driver-specific tuning passed through to
// the adapter.
type RedisConfig struct {
	URL     string         `yaml:"url"`
	Options map[string]any `yaml:"options"`
}

// RedisOptions are the adapter knobs decodable from RedisConfig.Options.
type RedisOptions struct {
	KeyPrefix  string `mapstructure:"key_prefix"`
	LockPrefix string `mapstructure:"lock_prefix"`
}

// DatabaseConfig configures the durable relational store.
type DatabaseConfig struct {
	// DSN of the SQLite database, e.g. "file:quail.db".
	DSN string `yaml:"dsn"`
}

// Duration wraps time.Duration with YAML support for human-readable values
// ("24h", "90s") and bare integers meaning seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SessionConfig tunes light-session behavior.
type SessionConfig struct {
	// TTL after which idle conversational state expires. Zero disables expiry.
	TTL Duration `yaml:"ttl"`

	// EncryptionKey, when set, enables AES-256-GCM encryption of session
	// values at rest. Hex-encoded, 64 hex chars.
	EncryptionKey string `yaml:"encryption_key"`
}

// OpsConfig configures the operational HTTP endpoint.
type OpsConfig struct {
	// Addr to serve /healthz and /metrics on. Empty disables the server.
	Addr string `yaml:"addr"`
}

// Settings is the root configuration document.
type Settings struct {
	Redis    *RedisConfig   `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Ops      OpsConfig      `yaml:"ops"`
	LogLevel string         `yaml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		Database: DatabaseConfig{DSN: "file:quail.db"},
		Session:  SessionConfig{TTL: Duration(24 * time.Hour)},
		Ops:      OpsConfig{Addr: ":9090"},
		LogLevel: "info",
	}
}

// Load reads settings from path (YAML), starting from defaults. A missing
// file is not an error; env overrides may be the whole configuration.
func Load(path string) (Settings, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers QUAIL_* environment variables over the file values.
func applyEnv(cfg *Settings) {
	if v := os.Getenv("QUAIL_REDIS_URL"); v != "" {
		if cfg.Redis == nil {
			cfg.Redis = &RedisConfig{}
		}
		cfg.Redis.URL = v
	}
	if v := os.Getenv("QUAIL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("QUAIL_SESSION_ENCRYPTION_KEY"); v != "" {
		cfg.Session.EncryptionKey = v
	}
	if v := os.Getenv("QUAIL_OPS_ADDR"); v != "" {
		cfg.Ops.Addr = v
	}
	if v := os.Getenv("QUAIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate rejects settings the composition layer cannot act on.
func (s Settings) Validate() error {
	if s.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if s.Redis != nil && s.Redis.URL == "" {
		return fmt.Errorf("redis section present but redis.url is empty")
	}
	if s.Session.EncryptionKey != "" {
		key, err := s.SessionEncryptionKey()
		if err != nil {
			return err
		}
		if len(key) != 32 {
			return fmt.Errorf("session.encryption_key must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}

// RemoteLight reports whether the remote (Redis) light backend is selected.
func (s Settings) RemoteLight() bool {
	return s.Redis != nil && s.Redis.URL != ""
}

// SessionEncryptionKey decodes the hex-encoded key, or returns nil when
// encryption is disabled.
func (s Settings) SessionEncryptionKey() ([]byte, error) {
	if s.Session.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.Session.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("session.encryption_key is not valid hex: %w", err)
	}
	return key, nil
}

// RedisOptions decodes the free-form redis options map.
func (s Settings) RedisOptions() (RedisOptions, error) {
	opts := RedisOptions{
		KeyPrefix:  "quail:session:",
		LockPrefix: "quail:",
	}
	if s.Redis == nil || s.Redis.Options == nil {
		return opts, nil
	}
	if err := mapstructure.Decode(s.Redis.Options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode redis options: %w", err)
	}
	return opts, nil
}
