package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Grammar.Dir == "" {
		cfg.Grammar.Dir = "grammars"
	}
	if cfg.Grammar.Language == "" {
		cfg.Grammar.Language = "en"
	}
	if cfg.Match.Clarity == "" {
		cfg.Match.Clarity = ClarityMedium
	}
	if cfg.Match.Labels == "" {
		cfg.Match.Labels = LabelColors
	}
	if cfg.Match.RoleCap == 0 {
		cfg.Match.RoleCap = 4
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Match.Clarity.IsValid() {
		errs = append(errs, fmt.Errorf("match.clarity %q is invalid; valid values: low, medium, high", cfg.Match.Clarity))
	}
	if !cfg.Match.Labels.IsValid() {
		errs = append(errs, fmt.Errorf("match.labels %q is invalid; valid values: colors, numbers", cfg.Match.Labels))
	}
	if n := len(cfg.Match.ClarityGaps); n != 0 && n != 3 {
		errs = append(errs, fmt.Errorf("match.clarity_gaps must list exactly 3 values, got %d", n))
	}
	if n := len(cfg.Match.ChoiceWindows); n != 0 && n != 3 {
		errs = append(errs, fmt.Errorf("match.choice_windows must list exactly 3 values, got %d", n))
	}
	if cfg.Match.SubmitThreshold < 0 || cfg.Match.SubmitThreshold >= 1 {
		errs = append(errs, fmt.Errorf("match.submit_threshold %v must be in [0, 1)", cfg.Match.SubmitThreshold))
	}
	if cfg.Match.ForbiddenCost < 0 {
		errs = append(errs, fmt.Errorf("match.forbidden_cost must not be negative"))
	}
	if cfg.Match.MaxChoices < 0 {
		errs = append(errs, fmt.Errorf("match.max_choices must not be negative"))
	}
	if cfg.Match.RoleCap < 1 {
		errs = append(errs, fmt.Errorf("match.role_cap must be at least 1"))
	}

	return errors.Join(errs...)
}
