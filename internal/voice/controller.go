// Package voice implements the per-game-view controller that turns recognized
// transcripts into legal chess moves or UI commands.
//
// A Controller owns its lexicon reference, its phrase indices and its session
// state; one Controller is constructed per active game view, with no
// process-wide shared instance. Each transcript is handled to completion
// before the next is accepted — the mutex exists so the transport may call
// Resolve from its reader goroutine and so countdown callbacks can
// re-validate session state, not to support concurrent resolution.
//
// Per-utterance cycle: Idle → {CommandDispatched | ConfirmationResolved |
// MoveAutoSubmitted | AmbiguitySessionActive → (LabelResolved | TimerExpired
// | Cancelled) → Idle} → Idle. No utterance leaves the controller outside
// this cycle; unparseable input degrades to no action, never to an error.
package voice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/speakmate/speakmate/internal/config"
	"github.com/speakmate/speakmate/internal/lexicon"
	"github.com/speakmate/speakmate/internal/match"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/phrase"
	"github.com/speakmate/speakmate/internal/resolve"
	"github.com/speakmate/speakmate/pkg/types"
)

// Mover is the external move-application capability: the visual board (or
// the upstream game client) that applies selections and submitted moves.
type Mover interface {
	// SelectSquare highlights (or clears, when selected is false) the source
	// square on the board.
	SelectSquare(sq types.Square, selected bool)

	// SubmitMove applies the chosen move.
	SubmitMove(m types.Move)
}

// ControllerConfig holds all dependencies for a [Controller].
type ControllerConfig struct {
	// Lexicon is the active language lexicon. Required.
	Lexicon *lexicon.Store

	// Mover receives selections and submitted moves. Required.
	Mover Mover

	// Metrics is optional; nil disables instrumentation.
	Metrics *observe.Metrics

	// OnCommand is invoked for every dispatched UI command, after the
	// controller's own handling. Optional.
	OnCommand func(types.Command)

	// Clarity selects the decision strictness.
	Clarity resolve.Clarity

	// Tuning carries the decision thresholds; zero value means defaults.
	Tuning resolve.Tuning

	// ForbiddenCost overrides the matcher's unlisted-substitution cost.
	// Zero keeps [match.DefaultForbiddenCost].
	ForbiddenCost float64

	// Labels selects color or ordinal choice labels.
	Labels config.LabelMode

	// RoleCap bounds bare role-letter selection phrases.
	RoleCap int

	// IdleTimeout puts the controller to sleep after this much silence.
	// Zero disables the idle timer.
	IdleTimeout time.Duration
}

// Controller resolves transcripts against the current position.
type Controller struct {
	mu      sync.Mutex
	lex     *lexicon.Store
	matcher *match.Matcher
	mover   Mover
	metrics *observe.Metrics
	cfg     ControllerConfig

	pos     types.Position
	havePos bool
	moveIdx phrase.MoveIndex
	sqIdx   phrase.SquareIndex

	// moveKeys and sqKeys are the index keys in sorted order, so that
	// matching is deterministic across runs.
	moveKeys []string
	sqKeys   []string

	selected types.Square
	choices  []types.Choice

	// preferredBound is true when the session's first choice is strictly
	// best and therefore additionally answers to "yes".
	preferredBound bool

	// sessionGen is bumped on every session-state clear; countdown callbacks
	// compare it to detect staleness.
	sessionGen uint64
	moveTimer  resolve.Countdown
	idleTimer  resolve.Countdown
	asleep     bool

	confirmations []confirmation
}

type confirmation struct {
	name string
	fn   func(accepted bool)
}

// New constructs a [Controller]. Lexicon and Mover are required.
func New(cfg ControllerConfig) (*Controller, error) {
	if cfg.Lexicon == nil {
		return nil, fmt.Errorf("voice: lexicon is required")
	}
	if cfg.Mover == nil {
		return nil, fmt.Errorf("voice: mover is required")
	}
	if cfg.Tuning == (resolve.Tuning{}) {
		cfg.Tuning = resolve.DefaultTuning()
	}
	if cfg.Labels == "" {
		cfg.Labels = config.LabelColors
	}
	if cfg.RoleCap <= 0 {
		cfg.RoleCap = 4
	}
	var matchOpts []match.Option
	if cfg.ForbiddenCost > 0 {
		matchOpts = append(matchOpts, match.WithForbiddenCost(cfg.ForbiddenCost))
	}
	return &Controller{
		lex:     cfg.Lexicon,
		matcher: match.New(cfg.Lexicon, matchOpts...),
		mover:   cfg.Mover,
		metrics: cfg.Metrics,
		cfg:     cfg,
	}, nil
}

// SetPosition installs a new board snapshot and rebuilds both indices.
// Any selection, ambiguity session or armed countdown belongs to the old
// position and is cleared synchronously before the rebuild.
func (c *Controller) SetPosition(pos types.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearSessionLocked()
	c.setSelectionLocked("")
	c.pos = pos
	c.havePos = true
	c.rebuildLocked()
}

// rebuildLocked regenerates both indices for the current position and
// selection. Calling this after every position or selection change is what
// keeps the index-consistency invariant.
func (c *Controller) rebuildLocked() {
	c.moveIdx = phrase.BuildMoveIndex(c.pos)
	c.sqIdx = phrase.BuildSquareIndex(c.pos, c.selected, c.cfg.RoleCap)

	c.moveKeys = sortedKeys(c.moveIdx)
	c.sqKeys = make([]string, 0, len(c.sqIdx))
	for k := range c.sqIdx {
		c.sqKeys = append(c.sqKeys, k)
	}
	sort.Strings(c.sqKeys)
}

func sortedKeys(idx phrase.MoveIndex) []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve handles one transcript event and returns the resulting action.
func (c *Controller) Resolve(ctx context.Context, t types.Transcript) types.Action {
	ctx, span := observe.StartSpan(ctx, "voice.resolve")
	defer span.End()
	start := time.Now()

	c.mu.Lock()
	action := c.resolveLocked(ctx, t)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ResolveDuration.Record(ctx, time.Since(start).Seconds())
		c.metrics.RecordUtterance(ctx, actionName(action.Kind))
	}
	observe.Logger(ctx).Debug("transcript resolved",
		"text", t.Text,
		"action", actionName(action.Kind),
	)
	return action
}

func (c *Controller) resolveLocked(ctx context.Context, t types.Transcript) types.Action {
	c.armIdleLocked()

	if strings.TrimSpace(t.Text) == "" {
		return types.Action{}
	}

	if c.asleep {
		return c.resolveAsleepLocked(t)
	}

	// Partials feed only the narrow secondary vocabulary of an armed
	// ambiguity session.
	if t.Kind == types.TranscriptPartial {
		if len(c.choices) == 0 {
			return types.Action{}
		}
		if act, ok := c.resolveLabelLocked(t.Text); ok {
			return act
		}
		if v, ok := c.utteranceValueLocked(t.Text); ok && v == "stop" {
			c.clearSessionLocked()
		}
		return types.Action{}
	}

	// 1. Pending confirmations.
	if act, ok := c.resolveConfirmationLocked(t.Text); ok {
		return act
	}

	// 2. Active ambiguity session: a resolving label wins; anything else
	// clears the session before being processed as a fresh attempt.
	if len(c.choices) > 0 {
		if act, ok := c.resolveLabelLocked(t.Text); ok {
			return act
		}
		c.clearSessionLocked()
	}

	// 3. UI commands, by exact value match.
	if act, ok := c.dispatchCommandLocked(t.Text); ok {
		return act
	}

	// 4. Move matching.
	tokens, ok := c.lex.Tokenize(t.Text)
	if !ok {
		return types.Action{}
	}
	if act, ok := c.resolveMoveLocked(ctx, tokens); ok {
		return act
	}

	// 5. Square selection.
	return c.resolveSquareLocked(tokens)
}

// resolveMoveLocked ranks the utterance against the move index and applies
// the decision policy. Returns ok=false when no candidate survives, letting
// the utterance fall through to square selection.
func (c *Controller) resolveMoveLocked(ctx context.Context, tokens string) (types.Action, bool) {
	cands := c.candidatesLocked(tokens)
	decision, best := resolve.Choose(cands, c.cfg.Clarity, c.cfg.Tuning)

	switch decision {
	case resolve.DecideNone:
		return types.Action{}, false

	case resolve.DecideSubmit:
		c.submitLocked(best.Move)
		return types.Action{Kind: types.ActionMove, Move: best.Move, Cost: best.Cost}, true

	default:
		return c.openSessionLocked(ctx, cands), true
	}
}

// candidatesLocked expands ranked phrase keys into per-move candidates,
// keeping each move's minimum cost.
func (c *Controller) candidatesLocked(tokens string) []resolve.Candidate {
	ranked := c.matcher.Rank(tokens, c.moveKeys, false)

	seen := make(map[types.Move]struct{})
	var cands []resolve.Candidate
	for _, r := range ranked {
		for _, m := range c.moveIdx[r.Key] {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			pawn := false
			if pc, ok := c.pos.PieceAt(m.From); ok {
				pawn = pc.Role == types.RolePawn
			}
			cands = append(cands, resolve.Candidate{Move: m, Cost: r.Cost, Pawn: pawn})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Cost < cands[j].Cost
	})
	return cands
}

// openSessionLocked starts an ambiguity session over the candidates: narrow,
// label, arm the countdown when a preferred candidate exists.
func (c *Controller) openSessionLocked(ctx context.Context, cands []resolve.Candidate) types.Action {
	narrowed := resolve.Ambiguate(cands, c.cfg.Clarity, c.cfg.Tuning)
	if len(narrowed) == 0 {
		return types.Action{}
	}

	// A new session supersedes any selection: the two are mutually
	// exclusive.
	c.setSelectionLocked("")

	labels := c.labelValues()
	c.choices = c.choices[:0]
	for i, cand := range narrowed {
		if i >= len(labels) {
			break
		}
		c.choices = append(c.choices, types.Choice{Label: labels[i], Move: cand.Move, Cost: cand.Cost})
	}
	if c.metrics != nil {
		c.metrics.AmbiguitySessions.Add(ctx, 1)
	}

	c.preferredBound = resolve.Preferred(narrowed)
	if c.preferredBound && c.cfg.Tuning.Timer > 0 {
		preferred := narrowed[0].Move
		gen := c.sessionGen
		c.moveTimer.Arm(c.cfg.Tuning.Timer, func() {
			c.onTimerFired(gen, preferred)
		})
	}

	out := make([]types.Choice, len(c.choices))
	copy(out, c.choices)
	return types.Action{Kind: types.ActionChoices, Choices: out}
}

// onTimerFired auto-submits the preferred candidate unless the session was
// superseded since arming.
func (c *Controller) onTimerFired(gen uint64, preferred types.Move) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.sessionGen || len(c.choices) == 0 {
		return
	}
	c.submitLocked(preferred)
	if c.metrics != nil {
		c.metrics.TimerExpiries.Add(context.Background(), 1)
	}
}

// resolveLabelLocked matches an utterance against the narrow vocabulary of
// the active session: choice labels, "yes" for the preferred candidate, and
// the cancel word. Label matching is partite — labels never cross partitions.
func (c *Controller) resolveLabelLocked(text string) (types.Action, bool) {
	tokens, ok := c.lex.Tokenize(text)
	if !ok {
		return types.Action{}, false
	}

	keys := make([]string, 0, len(c.choices)+2)
	for _, ch := range c.choices {
		keys = append(keys, ch.Label)
	}
	if c.preferredBound {
		keys = append(keys, "yes")
	}
	keys = append(keys, "no")

	best, ok := c.matcher.Best(tokens, keys)
	if !ok {
		return types.Action{}, false
	}

	switch best.Key {
	case "yes":
		ch := c.choices[0]
		c.submitLocked(ch.Move)
		return types.Action{Kind: types.ActionMove, Move: ch.Move, Cost: ch.Cost}, true
	case "no":
		c.clearSessionLocked()
		return types.Action{}, true
	default:
		for _, ch := range c.choices {
			if ch.Label == best.Key {
				c.submitLocked(ch.Move)
				return types.Action{Kind: types.ActionMove, Move: ch.Move, Cost: ch.Cost}, true
			}
		}
		return types.Action{}, false
	}
}

// resolveSquareLocked matches a bare square/piece phrase: with a selection
// active it submits the move to a spoken destination, otherwise it toggles
// the source-square selection.
func (c *Controller) resolveSquareLocked(tokens string) types.Action {
	best, ok := c.matcher.Best(tokens, c.sqKeys)
	if !ok {
		return types.Action{}
	}
	squares := c.sqIdx[best.Key]
	if len(squares) != 1 {
		// An ambiguous piece phrase ("knight" with several knights) is not
		// actionable as a selection.
		return types.Action{}
	}
	sq := squares[0]

	if c.selected != "" {
		if m, ok := c.moveToLocked(sq); ok {
			c.submitLocked(m)
			return types.Action{Kind: types.ActionMove, Move: m, Cost: best.Cost}
		}
		if sq == c.selected {
			c.setSelectionLocked("")
			return types.Action{Kind: types.ActionSelect, Square: sq, Selected: false}
		}
	}
	c.clearSessionLocked()
	c.setSelectionLocked(sq)
	return types.Action{Kind: types.ActionSelect, Square: sq, Selected: true}
}

// moveToLocked finds the legal move from the selected square to dest,
// preferring the queen when several promotions share the coordinates.
func (c *Controller) moveToLocked(dest types.Square) (types.Move, bool) {
	var found types.Move
	ok := false
	for _, m := range c.pos.MovesFrom(c.selected) {
		if m.To != dest {
			continue
		}
		if !ok || m.Promotion == types.RoleQueen {
			found = m
			ok = true
		}
	}
	return found, ok
}

// submitLocked hands a move to the mover and resets all session state.
func (c *Controller) submitLocked(m types.Move) {
	c.clearSessionLocked()
	c.setSelectionLocked("")
	c.mover.SubmitMove(m)
}

// setSelectionLocked changes the selected source square, notifying the mover
// and rebuilding the square index scoped to the new selection.
func (c *Controller) setSelectionLocked(sq types.Square) {
	if c.selected == sq {
		return
	}
	if c.selected != "" {
		c.mover.SelectSquare(c.selected, false)
	}
	c.selected = sq
	if sq != "" {
		c.mover.SelectSquare(sq, true)
	}
	if c.havePos {
		c.sqIdx = phrase.BuildSquareIndex(c.pos, c.selected, c.cfg.RoleCap)
		c.sqKeys = c.sqKeys[:0]
		for k := range c.sqIdx {
			c.sqKeys = append(c.sqKeys, k)
		}
		sort.Strings(c.sqKeys)
	}
}

// clearSessionLocked cancels the ambiguity countdown and drops the choice
// set, atomically from the caller's point of view: the session generation is
// bumped before control returns, so a stale timer callback becomes a no-op.
func (c *Controller) clearSessionLocked() {
	c.sessionGen++
	c.moveTimer.Cancel()
	c.preferredBound = false
	if len(c.choices) > 0 {
		if c.metrics != nil {
			c.metrics.AmbiguitySessions.Add(context.Background(), -1)
		}
		c.choices = nil
	}
}

// armIdleLocked re-arms the idle timer on every utterance. On expiry the
// controller goes to sleep until it hears the wake word.
func (c *Controller) armIdleLocked() {
	if c.cfg.IdleTimeout <= 0 {
		return
	}
	c.idleTimer.Arm(c.cfg.IdleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clearSessionLocked()
		c.setSelectionLocked("")
		c.asleep = true
	})
}

// resolveAsleepLocked handles utterances while asleep: only the wake command
// is heard.
func (c *Controller) resolveAsleepLocked(t types.Transcript) types.Action {
	if t.Kind != types.TranscriptFull {
		return types.Action{}
	}
	v, ok := c.utteranceValueLocked(t.Text)
	if !ok || v != "wake" {
		return types.Action{}
	}
	c.asleep = false
	if c.cfg.OnCommand != nil {
		c.cfg.OnCommand(types.CmdWake)
	}
	return types.Action{Kind: types.ActionCommand, Command: types.CmdWake}
}

// labelValues returns the label value sequence for the configured mode.
func (c *Controller) labelValues() []string {
	if c.cfg.Labels == config.LabelNumbers {
		return []string{"1st", "2nd", "3rd", "4th", "5th"}
	}
	return []string{"green", "blue", "red", "yellow", "orange"}
}

func actionName(k types.ActionKind) string {
	switch k {
	case types.ActionCommand:
		return "command"
	case types.ActionConfirmation:
		return "confirmation"
	case types.ActionMove:
		return "move"
	case types.ActionSelect:
		return "select"
	case types.ActionChoices:
		return "choices"
	default:
		return "none"
	}
}
