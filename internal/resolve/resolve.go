// Package resolve decides what to do with ranked move candidates: submit the
// winner outright, or open a timed disambiguation session with labeled
// choices.
//
// The numeric constants here (submit threshold, clarity gaps, tie nudge,
// choice windows) are empirically tuned against the cost model and existing
// grammar resources. They are exposed as named, overridable configuration —
// their precise interaction with substitution costs is load-bearing, so they
// must not be re-derived.
package resolve

import (
	"time"

	"github.com/speakmate/speakmate/pkg/types"
)

// Clarity is the user-configurable strictness level controlling how decisive
// a top candidate must be before it is auto-submitted. Lower is looser: a
// looser setting demands a larger cost gap before trusting rank 1.
type Clarity int

const (
	ClarityLow Clarity = iota
	ClarityMedium
	ClarityHigh
)

// Tuning holds the decision thresholds. Use [DefaultTuning] and override
// individual fields from configuration.
type Tuning struct {
	// SubmitThreshold is the maximum cost at which a sole candidate is
	// auto-submitted.
	SubmitThreshold float64

	// ClarityGaps, indexed by Clarity, is the rank1/rank2 cost gap beyond
	// which rank 1 is auto-submitted despite competition.
	ClarityGaps [3]float64

	// ChoiceWindows, indexed by Clarity, is the cost window above the best
	// candidate within which choices are kept when a countdown is armed.
	// Stricter clarity keeps a tighter window.
	ChoiceWindows [3]float64

	// TieNudge is added to candidates that lose the pawn-preference
	// tie-break, keeping the ordering deterministic on exact cost ties.
	TieNudge float64

	// MaxChoices caps the number of labeled choices presented.
	MaxChoices int

	// Timer is the ambiguity countdown duration; zero disables the
	// countdown entirely.
	Timer time.Duration
}

// DefaultTuning returns the tuned defaults.
func DefaultTuning() Tuning {
	return Tuning{
		SubmitThreshold: 0.4,
		ClarityGaps:     [3]float64{0.7, 0.5, 0.3},
		ChoiceWindows:   [3]float64{0.6, 0.4, 0.2},
		TieNudge:        0.01,
		MaxChoices:      5,
		Timer:           3 * time.Second,
	}
}

// Candidate is one ranked move with its match cost.
type Candidate struct {
	Move types.Move
	Cost float64

	// Pawn marks pawn moves for the tie-break preference.
	Pawn bool
}

// Decision is the outcome of [Choose].
type Decision int

const (
	// DecideNone: no candidates, no action.
	DecideNone Decision = iota

	// DecideSubmit: auto-submit the returned candidate.
	DecideSubmit

	// DecideAmbiguate: enter ambiguity resolution over the candidate list.
	DecideAmbiguate
)

// Choose applies the decision policy to candidates ranked ascending by cost.
// It is deterministic: identical inputs and clarity always yield the same
// decision.
func Choose(cands []Candidate, clarity Clarity, t Tuning) (Decision, Candidate) {
	switch {
	case len(cands) == 0:
		return DecideNone, Candidate{}
	case len(cands) == 1:
		if cands[0].Cost < t.SubmitThreshold {
			return DecideSubmit, cands[0]
		}
		return DecideAmbiguate, cands[0]
	}

	if gap := cands[1].Cost - cands[0].Cost; gap > t.ClarityGaps[clarityIndex(clarity)] {
		return DecideSubmit, cands[0]
	}
	return DecideAmbiguate, cands[0]
}

func clarityIndex(c Clarity) int {
	if c < ClarityLow || c > ClarityHigh {
		return int(ClarityMedium)
	}
	return int(c)
}

// Ambiguate narrows ranked candidates into the choice set of an ambiguity
// session, in order:
//
//  1. Deduplicate by source+destination pair, ignoring promotion role, so
//     that the four promotion variants of one push collapse into the first
//     (lowest-cost) occurrence; truncate to MaxChoices.
//  2. On an exact cost tie at the top where exactly one tied candidate is a
//     pawn move, promote it to rank 1 and nudge the remaining tied entries
//     by TieNudge.
//  3. When a countdown is configured, keep only candidates within the
//     clarity-dependent cost window of the best.
func Ambiguate(cands []Candidate, clarity Clarity, t Tuning) []Candidate {
	// Step 1: coordinate-pair dedupe + cap.
	type coords struct{ from, to types.Square }
	seen := make(map[coords]struct{}, len(cands))
	choices := make([]Candidate, 0, t.MaxChoices)
	for _, c := range cands {
		key := coords{c.Move.From, c.Move.To}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		choices = append(choices, c)
		if len(choices) == t.MaxChoices {
			break
		}
	}
	if len(choices) == 0 {
		return nil
	}

	// Step 2: pawn preference on exact ties.
	low := choices[0].Cost
	tied := 0
	pawnAt := -1
	for i, c := range choices {
		if c.Cost != low {
			break
		}
		tied++
		if c.Pawn {
			if pawnAt >= 0 {
				pawnAt = -2 // more than one tied pawn move: no preference
			} else if pawnAt == -1 {
				pawnAt = i
			}
		}
	}
	if tied > 1 && pawnAt >= 0 {
		preferred := choices[pawnAt]
		rest := make([]Candidate, 0, len(choices)-1)
		for i, c := range choices {
			if i == pawnAt {
				continue
			}
			if i < tied {
				c.Cost += t.TieNudge
			}
			rest = append(rest, c)
		}
		choices = append([]Candidate{preferred}, rest...)
	}

	// Step 3: clarity window when a countdown will arm.
	if t.Timer > 0 {
		window := t.ChoiceWindows[clarityIndex(clarity)]
		kept := choices[:1]
		for _, c := range choices[1:] {
			if c.Cost-choices[0].Cost <= window {
				kept = append(kept, c)
			}
		}
		choices = kept
	}
	return choices
}

// Preferred reports whether the first choice is strictly better than every
// other (or the sole choice) and therefore eligible for the "yes" label and
// the countdown auto-submit.
func Preferred(choices []Candidate) bool {
	if len(choices) == 0 {
		return false
	}
	return len(choices) == 1 || choices[0].Cost < choices[1].Cost
}
