// Package config loads engine tunables from YAML. Every knob has a
// default; a missing file section means "use the default", never an
// error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sferrors "github.com/rsharan/slotflow/pkg/slotflow/errors"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Retro tunes the retroactive scanner.
type Retro struct {
	// Window is how many recent user turns are replayed.
	Window int `yaml:"window"`

	// MinTurns is the conversation length below which no scan runs.
	MinTurns int `yaml:"min_turns"`

	// Decay multiplies recovered confidence.
	Decay float64 `yaml:"decay"`

	// Timeout bounds each per-field scan attempt.
	Timeout Duration `yaml:"timeout"`
}

// Tiers bounds extraction tier attempts.
type Tiers struct {
	PatternTimeout Duration `yaml:"pattern_timeout"`
	ModelTimeout   Duration `yaml:"model_timeout"`
}

// External tunes outbound calls.
type External struct {
	Timeout        Duration `yaml:"timeout"`
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	MaxElapsed     Duration `yaml:"max_elapsed"`
}

// OpenAI configures the model-backed extraction tier.
type OpenAI struct {
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the key. The
	// key itself never lives in the file.
	APIKeyEnv string `yaml:"api_key_env"`
}

// Redis configures the shared store and distributed lock.
type Redis struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Config is the full engine configuration.
type Config struct {
	// Store selects persistence: "memory", "sqlite", or "redis".
	Store      string `yaml:"store"`
	SQLitePath string `yaml:"sqlite_path"`
	Redis      Redis  `yaml:"redis"`

	// HistoryLimit caps turns kept per conversation.
	HistoryLimit int `yaml:"history_limit"`

	// MinConfidence is the floor for a field to count as complete.
	MinConfidence float64 `yaml:"min_confidence"`

	// FuzzyThreshold is the Jaro-Winkler score at which a value is
	// considered a denylist match. Zero disables fuzzy matching.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// LockTTL bounds distributed lock tenure.
	LockTTL Duration `yaml:"lock_ttl"`

	// Fallback is the reply when a step produced no response.
	Fallback string `yaml:"fallback_response"`

	Retro    Retro    `yaml:"retro"`
	Tiers    Tiers    `yaml:"tiers"`
	External External `yaml:"external"`
	OpenAI   OpenAI   `yaml:"openai"`

	// Required lists the field paths completeness is measured over.
	Required []string `yaml:"required"`

	// Denylists maps category names to rejected values.
	Denylists map[string][]string `yaml:"denylists"`

	// FieldCategories maps field paths to denylist categories.
	FieldCategories map[string]string `yaml:"field_categories"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store:          "memory",
		SQLitePath:     "slotflow.db",
		HistoryLimit:   50,
		MinConfidence:  0.5,
		FuzzyThreshold: 0.88,
		LockTTL:        Duration(30 * time.Second),
		Fallback:       "Sorry, I didn't catch that. Could you rephrase?",
		Retro: Retro{
			Window:   5,
			MinTurns: 2,
			Decay:    0.8,
			Timeout:  Duration(2 * time.Second),
		},
		Tiers: Tiers{
			PatternTimeout: Duration(100 * time.Millisecond),
			ModelTimeout:   Duration(10 * time.Second),
		},
		External: External{
			Timeout:        Duration(5 * time.Second),
			MaxAttempts:    3,
			InitialBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:     Duration(5 * time.Second),
			MaxElapsed:     Duration(15 * time.Second),
		},
		OpenAI: OpenAI{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// Load reads the file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Store {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis store requires redis.addr")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in [0,1], got %v", c.FuzzyThreshold)
	}
	if c.Retro.Decay <= 0 || c.Retro.Decay > 1 {
		return fmt.Errorf("retro.decay must be in (0,1], got %v", c.Retro.Decay)
	}
	if c.External.MaxAttempts < 1 {
		return fmt.Errorf("external.max_attempts must be at least 1")
	}
	return nil
}

// RetryConfig translates the external-call section into a retry
// policy.
func (c Config) RetryConfig() sferrors.RetryConfig {
	return sferrors.RetryConfig{
		MaxAttempts:    c.External.MaxAttempts,
		InitialBackoff: c.External.InitialBackoff.Std(),
		MaxBackoff:     c.External.MaxBackoff.Std(),
		BackoffFactor:  2.0,
		Jitter:         0.1,
		MaxElapsed:     c.External.MaxElapsed.Std(),
	}
}

// APIKey resolves the OpenAI key from the configured environment
// variable. Empty means the model tier is disabled.
func (c Config) APIKey() string {
	if c.OpenAI.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.OpenAI.APIKeyEnv)
}
