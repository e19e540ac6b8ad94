// Package config provides the configuration schema and loader for the
// speakmate voice move server.
package config

import (
	"time"

	"github.com/speakmate/speakmate/internal/resolve"
)

// LogLevel controls log verbosity for the speakmate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LabelMode selects how ambiguity choices are labeled.
type LabelMode string

const (
	// LabelColors labels choices with color names.
	LabelColors LabelMode = "colors"

	// LabelNumbers labels choices with ordinal numbers.
	LabelNumbers LabelMode = "numbers"
)

// IsValid reports whether m is a recognised label mode.
func (m LabelMode) IsValid() bool {
	return m == LabelColors || m == LabelNumbers
}

// ClarityLevel is the configured matching strictness.
type ClarityLevel string

const (
	ClarityLow    ClarityLevel = "low"
	ClarityMedium ClarityLevel = "medium"
	ClarityHigh   ClarityLevel = "high"
)

// IsValid reports whether c is a recognised clarity level.
func (c ClarityLevel) IsValid() bool {
	switch c {
	case ClarityLow, ClarityMedium, ClarityHigh:
		return true
	}
	return false
}

// Level maps the configured name to the resolver's clarity index.
func (c ClarityLevel) Level() resolve.Clarity {
	switch c {
	case ClarityLow:
		return resolve.ClarityLow
	case ClarityHigh:
		return resolve.ClarityHigh
	default:
		return resolve.ClarityMedium
	}
}

// Config is the root configuration structure for speakmate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Grammar GrammarConfig `yaml:"grammar"`
	Match   MatchConfig   `yaml:"match"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// GrammarConfig locates the language grammar resources.
type GrammarConfig struct {
	// Dir is the directory holding per-language grammar YAML files
	// (<language>.yaml).
	Dir string `yaml:"dir"`

	// Language selects the grammar loaded at startup.
	Language string `yaml:"language"`

	// PhoneticThreshold and FuzzyThreshold tune out-of-vocabulary word
	// recovery. Zero keeps the lexicon defaults.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
}

// MatchConfig exposes the tuned decision constants. Every field is optional;
// zero values keep the defaults from [resolve.DefaultTuning]. The defaults
// are load-bearing for existing grammar resources — override deliberately.
type MatchConfig struct {
	Clarity ClarityLevel `yaml:"clarity"`

	SubmitThreshold float64   `yaml:"submit_threshold"`
	ClarityGaps     []float64 `yaml:"clarity_gaps"`
	ChoiceWindows   []float64 `yaml:"choice_windows"`
	TieNudge        float64   `yaml:"tie_nudge"`
	ForbiddenCost   float64   `yaml:"forbidden_cost"`
	MaxChoices      int       `yaml:"max_choices"`

	// TimerSeconds is the ambiguity countdown; 0 disables it. Use a
	// negative value to force-disable while keeping other defaults.
	TimerSeconds float64 `yaml:"timer_seconds"`

	// IdleSeconds puts the controller to sleep after this much silence;
	// 0 disables the idle timeout.
	IdleSeconds float64 `yaml:"idle_seconds"`

	// Labels selects color or ordinal choice labels.
	Labels LabelMode `yaml:"labels"`

	// RoleCap bounds how many same-role origin squares may share a bare
	// role-letter selection phrase.
	RoleCap int `yaml:"role_cap"`
}

// Tuning converts the match settings into the resolver's tuning block,
// filling unset fields from [resolve.DefaultTuning].
func (m MatchConfig) Tuning() resolve.Tuning {
	t := resolve.DefaultTuning()
	if m.SubmitThreshold > 0 {
		t.SubmitThreshold = m.SubmitThreshold
	}
	if len(m.ClarityGaps) == 3 {
		copy(t.ClarityGaps[:], m.ClarityGaps)
	}
	if len(m.ChoiceWindows) == 3 {
		copy(t.ChoiceWindows[:], m.ChoiceWindows)
	}
	if m.TieNudge > 0 {
		t.TieNudge = m.TieNudge
	}
	if m.MaxChoices > 0 {
		t.MaxChoices = m.MaxChoices
	}
	switch {
	case m.TimerSeconds > 0:
		t.Timer = time.Duration(m.TimerSeconds * float64(time.Second))
	case m.TimerSeconds < 0:
		t.Timer = 0
	}
	return t
}

// IdleTimeout returns the idle timeout duration, zero when disabled.
func (m MatchConfig) IdleTimeout() time.Duration {
	if m.IdleSeconds <= 0 {
		return 0
	}
	return time.Duration(m.IdleSeconds * float64(time.Second))
}

// HistoryConfig configures the optional utterance history store.
type HistoryConfig struct {
	// PostgresDSN enables the Postgres-backed utterance log when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}
