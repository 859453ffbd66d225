package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/krb5test/pkg/realm"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	cfg.Realm.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

var validate = validator.New()

// Validate checks the full configuration: the logging section via struct
// tags and the realm section via its own validation.
func Validate(cfg *Config) error {
	if err := validate.Struct(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := cfg.Realm.Validate(); err != nil {
		return err
	}
	return nil
}

// GetDefaultConfig returns a Config struct with all default values applied:
// a full MIT realm and text logging on stderr.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Realm: realm.DefaultConfig(),
	}
	ApplyDefaults(cfg)
	return cfg
}
