// Package config loads service configuration by layering defaults, an
// optional YAML file, and environment variables.
//
// Order of precedence (low -> high):
//  1. defaults
//  2. file (YAML) if TRIAGE_CONFIG is set
//  3. env (prefix TRIAGE_), e.g. TRIAGE_NATS_URL, TRIAGE_REDIS_ADDR
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains process configuration for the triage services.
type Config struct {
	// NATSURL is the NATS server address.
	NATSURL string `koanf:"nats_url"`

	// RedisAddr is the Redis address backing the suspension store.
	// Empty disables suspension enforcement.
	RedisAddr string `koanf:"redis_addr"`

	// PostgresDSN is the Postgres connection string for the resolution
	// audit log. Empty disables auditing.
	PostgresDSN string `koanf:"postgres_dsn"`

	// MigrationsURL is the golang-migrate source URL for the audit schema.
	MigrationsURL string `koanf:"migrations_url"`

	// ModChannelID is the moderator channel receiving report and
	// auto-flag notices.
	ModChannelID string `koanf:"mod_channel_id"`

	// PerspectiveURL and PerspectiveKey configure the toxicity classifier.
	// Empty URL disables text scoring.
	PerspectiveURL string `koanf:"perspective_url"`
	PerspectiveKey string `koanf:"perspective_key"`

	// MemeClassifierURL configures the hateful-meme classifier. Empty
	// disables image scoring.
	MemeClassifierURL string `koanf:"meme_classifier_url"`

	// ScoringTimeout bounds each classifier call.
	ScoringTimeout time.Duration `koanf:"scoring_timeout"`

	// TextThreshold and ImageThreshold are the auto-flag cutoffs.
	TextThreshold  float64 `koanf:"text_threshold"`
	ImageThreshold float64 `koanf:"image_threshold"`

	// MetricsAddr is the Prometheus scrape listen address.
	MetricsAddr string `koanf:"metrics_addr"`

	// GatewayAddr is the WebSocket gateway listen address.
	GatewayAddr string `koanf:"gateway_addr"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		NATSURL:           "nats://localhost:4222",
		RedisAddr:         "localhost:6379",
		MigrationsURL:     "file://migrations",
		ModChannelID:      "",
		PerspectiveURL:    "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze",
		MemeClassifierURL: "",
		ScoringTimeout:    10 * time.Second,
		TextThreshold:     0.8,
		ImageThreshold:    0.5,
		MetricsAddr:       ":9090",
		GatewayAddr:       ":8080",
	}
}

// Load builds a Config by layering defaults, optional file, and env vars.
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TRIAGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Map env keys like TRIAGE_NATS_URL -> nats_url (flat keys).
	envProvider := env.Provider("TRIAGE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "triage_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.NATSURL == "" {
		return nil, errors.New("nats_url must not be empty")
	}
	if cfg.ModChannelID == "" {
		return nil, errors.New("mod_channel_id must not be empty")
	}
	if cfg.TextThreshold <= 0 || cfg.TextThreshold > 1 || cfg.ImageThreshold <= 0 || cfg.ImageThreshold > 1 {
		return nil, errors.New("thresholds must be in (0, 1]")
	}
	return &cfg, nil
}
