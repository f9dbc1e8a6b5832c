package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envOverrides holds the secrets and deploy-specific values that may be
// supplied through the environment instead of the config file. Environment
// values win over file values.
type envOverrides struct {
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	PostgresDSN  string `env:"DATABASE_URL"`
	PublicHost   string `env:"CLAIMVOICE_PUBLIC_HOST"`
	ListenAddr   string `env:"CLAIMVOICE_LISTEN_ADDR"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	applyOverrides(cfg, ov)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies non-empty environment values over the file values.
// OPENAI_API_KEY fills every provider entry that has no key of its own.
func applyOverrides(cfg *Config, ov envOverrides) {
	if ov.OpenAIAPIKey != "" {
		for _, entry := range []*ProviderEntry{
			&cfg.Providers.Model, &cfg.Providers.Extractor, &cfg.Providers.Fraud,
		} {
			if entry.APIKey == "" {
				entry.APIKey = ov.OpenAIAPIKey
			}
		}
	}
	if ov.PostgresDSN != "" {
		cfg.Storage.PostgresDSN = ov.PostgresDSN
	}
	if ov.PublicHost != "" {
		cfg.Server.PublicHost = ov.PublicHost
	}
	if ov.ListenAddr != "" {
		cfg.Server.ListenAddr = ov.ListenAddr
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if h := cfg.Server.PublicHost; h != "" && strings.Contains(h, "://") {
		errs = append(errs, fmt.Errorf("server.public_host %q must be a bare hostname without a scheme", h))
	}

	// Providers
	if cfg.Providers.Model.Name != "" && cfg.Providers.Model.APIKey == "" {
		errs = append(errs, errors.New("providers.model.api_key is required when providers.model is configured"))
	}
	if cfg.Providers.Extractor.Name != "" && cfg.Providers.Extractor.APIKey == "" {
		errs = append(errs, errors.New("providers.extractor.api_key is required when providers.extractor is configured"))
	}
	if cfg.Providers.Model.Name != "" && cfg.Providers.Extractor.Name == "" {
		slog.Warn("providers.extractor is not configured; caller utterances will not update the claim")
	}
	if cfg.Providers.Fraud.Name == "" {
		slog.Warn("providers.fraud is not configured; fraud analysis is disabled")
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; claims will not be persisted")
	}

	// Intake
	if ms := cfg.Intake.SilenceDurationMs; ms < 0 {
		errs = append(errs, fmt.Errorf("intake.silence_duration_ms %d must not be negative", ms))
	}
	if s := cfg.Intake.GoodbyeTimeoutSec; s < 0 {
		errs = append(errs, fmt.Errorf("intake.goodbye_timeout_sec %d must not be negative", s))
	}
	if t := cfg.Intake.CompletenessThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("intake.completeness_threshold %v must be within [0, 1]", t))
	}

	return errors.Join(errs...)
}
