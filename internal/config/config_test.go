package config

import (
	"strings"
	"testing"
	"time"

	"github.com/speakmate/speakmate/internal/resolve"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Grammar.Dir != "grammars" || cfg.Grammar.Language != "en" {
		t.Errorf("grammar: got %+v", cfg.Grammar)
	}
	if cfg.Match.Clarity != ClarityMedium {
		t.Errorf("clarity: got %q", cfg.Match.Clarity)
	}
	if cfg.Match.Labels != LabelColors {
		t.Errorf("labels: got %q", cfg.Match.Labels)
	}
	if cfg.Match.RoleCap != 4 {
		t.Errorf("role_cap: got %d", cfg.Match.RoleCap)
	}
}

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	const doc = `
server:
  listen_addr: ":9090"
  log_level: debug
grammar:
  dir: /etc/speakmate/grammars
  language: de
match:
  clarity: high
  labels: numbers
  forbidden_cost: 0.5
  timer_seconds: 5
  idle_seconds: 60
history:
  postgres_dsn: postgres://localhost/speakmate
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server: got %+v", cfg.Server)
	}
	if cfg.Grammar.Language != "de" {
		t.Errorf("language: got %q", cfg.Grammar.Language)
	}
	if cfg.Match.Clarity.Level() != resolve.ClarityHigh {
		t.Errorf("clarity: got %v", cfg.Match.Clarity)
	}
	if cfg.Match.ForbiddenCost != 0.5 {
		t.Errorf("forbidden_cost: got %v", cfg.Match.ForbiddenCost)
	}
	if cfg.History.PostgresDSN == "" {
		t.Error("postgres_dsn not read")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`{serverr: {}}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad log level", `{server: {log_level: loud}}`, "server.log_level"},
		{"bad clarity", `{match: {clarity: extreme}}`, "match.clarity"},
		{"bad labels", `{match: {labels: letters}}`, "match.labels"},
		{"short clarity gaps", `{match: {clarity_gaps: [0.1, 0.2]}}`, "clarity_gaps"},
		{"short choice windows", `{match: {choice_windows: [0.1]}}`, "choice_windows"},
		{"submit threshold out of range", `{match: {submit_threshold: 1.5}}`, "submit_threshold"},
		{"negative forbidden cost", `{match: {forbidden_cost: -1}}`, "forbidden_cost"},
		{"negative max choices", `{match: {max_choices: -1}}`, "max_choices"},
		{"zero role cap", `{match: {role_cap: -2}}`, "role_cap"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromReader(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestMatchConfig_TuningDefaults(t *testing.T) {
	t.Parallel()

	var m MatchConfig
	got := m.Tuning()
	want := resolve.DefaultTuning()
	if got != want {
		t.Errorf("got %+v, want defaults %+v", got, want)
	}
}

func TestMatchConfig_TuningOverrides(t *testing.T) {
	t.Parallel()

	m := MatchConfig{
		SubmitThreshold: 0.5,
		ClarityGaps:     []float64{0.8, 0.6, 0.4},
		ChoiceWindows:   []float64{0.7, 0.5, 0.3},
		TieNudge:        0.02,
		MaxChoices:      3,
		TimerSeconds:    1.5,
	}
	got := m.Tuning()

	if got.SubmitThreshold != 0.5 || got.TieNudge != 0.02 || got.MaxChoices != 3 {
		t.Errorf("got %+v", got)
	}
	if got.ClarityGaps != [3]float64{0.8, 0.6, 0.4} {
		t.Errorf("clarity gaps: got %v", got.ClarityGaps)
	}
	if got.Timer != 1500*time.Millisecond {
		t.Errorf("timer: got %v", got.Timer)
	}
}

func TestMatchConfig_NegativeTimerDisables(t *testing.T) {
	t.Parallel()

	m := MatchConfig{TimerSeconds: -1}
	if got := m.Tuning().Timer; got != 0 {
		t.Errorf("timer: got %v, want 0", got)
	}
}

func TestMatchConfig_IdleTimeout(t *testing.T) {
	t.Parallel()

	if got := (MatchConfig{}).IdleTimeout(); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := (MatchConfig{IdleSeconds: 30}).IdleTimeout(); got != 30*time.Second {
		t.Errorf("got %v, want 30s", got)
	}
}

func TestClarityLevel_Level(t *testing.T) {
	t.Parallel()

	if ClarityLow.Level() != resolve.ClarityLow {
		t.Error("low")
	}
	if ClarityHigh.Level() != resolve.ClarityHigh {
		t.Error("high")
	}
	if ClarityLevel("").Level() != resolve.ClarityMedium {
		t.Error("unset must fall back to medium")
	}
}
