// Package match scores heard phrases against indexed candidate phrases via
// token-substitution cost.
//
// This is not generic edit distance: the only admissible operation is a
// substitution explicitly listed in the lexicon's substitution table.
// Identical tokens cost 0, a listed substitution costs its configured value,
// and anything else costs a large forbidden default — effectively ruling the
// alignment out, since every decision threshold sits below 1.
package match

import (
	"sort"

	"github.com/speakmate/speakmate/internal/lexicon"
	"github.com/speakmate/speakmate/internal/phrase"
)

const (
	// DefaultForbiddenCost is the cost of any substitution the lexicon does
	// not list. Empirically tuned together with the decision thresholds; do
	// not re-derive.
	DefaultForbiddenCost = 100.0

	// matchableCost is the exclusive upper bound for a usable match.
	matchableCost = 1.0

	// defaultExpansionCap bounds the value→token cross-product per candidate
	// phrase, guarding against pathological grammars with many tokens per
	// value on long phrases.
	defaultExpansionCap = 256
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithForbiddenCost overrides the cost assigned to unlisted substitutions.
func WithForbiddenCost(cost float64) Option {
	return func(m *Matcher) {
		m.forbidden = cost
	}
}

// WithExpansionCap overrides the maximum number of token-string expansions
// considered per candidate phrase.
func WithExpansionCap(cap int) Option {
	return func(m *Matcher) {
		m.expansionCap = cap
	}
}

// Matcher scores token strings against candidate phrase keys using the
// lexicon's substitution table. Safe for concurrent use; it holds no state
// beyond its configuration and the store reference.
type Matcher struct {
	lex          *lexicon.Store
	forbidden    float64
	expansionCap int
}

// New returns a [Matcher] reading substitutions and tags from lex.
func New(lex *lexicon.Store, opts ...Option) *Matcher {
	m := &Matcher{
		lex:          lex,
		forbidden:    DefaultForbiddenCost,
		expansionCap: defaultExpansionCap,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Cost returns the lowest-cost alignment between two token strings.
//
// The alignment is positional: strings of different lengths never align and
// cost the forbidden value. When partite is true, a substitution between two
// tokens whose tag sets are equal is forced to the forbidden cost — labels
// drawn from one partition (colors, ordinals) must never silently cross into
// another.
func (m *Matcher) Cost(heard, candidate string, partite bool) float64 {
	if len(heard) != len(candidate) {
		return m.forbidden
	}

	total := 0.0
	for i := 0; i < len(heard); i++ {
		h, c := string(heard[i]), string(candidate[i])
		if h == c {
			continue
		}
		if partite && tagSetsEqual(m.lex.TagsOfToken(h), m.lex.TagsOfToken(c)) {
			return m.forbidden
		}
		cost, listed := m.lex.SubCost(h, c)
		if !listed {
			return m.forbidden
		}
		total += cost
	}
	return total
}

// tagSetsEqual reports whether a and b contain the same tags (identical sets
// of equal size), regardless of order.
func tagSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, ta := range a {
		found := false
		for _, tb := range b {
			if ta == tb {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Match is one ranked candidate phrase.
type Match struct {
	// Key is the candidate's phrase key as stored in the index.
	Key string

	// Cost is the minimum alignment cost across the candidate's token
	// expansions.
	Cost float64
}

// Rank scores heard (a token string) against every candidate phrase key and
// returns the candidates with cost below 1, sorted ascending by cost. Each
// key's value sequence is expanded lazily into its equivalent token strings
// (values may map to several tokens); the key keeps its minimum cost across
// expansions. Ordering among equal costs follows the input order, so
// identical inputs always rank identically.
func (m *Matcher) Rank(heard string, keys []string, partite bool) []Match {
	var out []Match
	for _, key := range keys {
		best := m.forbidden
		exp := newExpander(m.lex, phrase.SplitKey(key), m.expansionCap)
		for {
			cand, ok := exp.next()
			if !ok {
				break
			}
			if c := m.Cost(heard, cand, partite); c < best {
				best = c
			}
		}
		if best < matchableCost {
			out = append(out, Match{Key: key, Cost: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Cost < out[j].Cost
	})
	return out
}

// Best is Rank restricted to partite matching, returning only the single
// lowest-cost candidate. Used for mutually-exclusive choice labels.
func (m *Matcher) Best(heard string, keys []string) (Match, bool) {
	ranked := m.Rank(heard, keys, true)
	if len(ranked) == 0 {
		return Match{}, false
	}
	return ranked[0], true
}

// expander lazily produces the token-string expansions of a value sequence.
// Each value contributes the set of tokens carrying it; the cross-product is
// walked odometer-style and truncated at cap combinations.
type expander struct {
	alts     [][]string
	counters []int
	produced int
	cap      int
	done     bool
}

func newExpander(lex *lexicon.Store, values []string, cap int) *expander {
	e := &expander{
		alts:     make([][]string, len(values)),
		counters: make([]int, len(values)),
		cap:      cap,
	}
	for i, v := range values {
		e.alts[i] = lex.TokensOfValue(v)
	}
	if len(values) == 0 {
		e.done = true
	}
	return e
}

func (e *expander) next() (string, bool) {
	if e.done || e.produced >= e.cap {
		return "", false
	}

	var b []byte
	for i, c := range e.counters {
		b = append(b, e.alts[i][c]...)
	}
	e.produced++

	// Advance the odometer.
	for i := len(e.counters) - 1; i >= 0; i-- {
		e.counters[i]++
		if e.counters[i] < len(e.alts[i]) {
			return string(b), true
		}
		e.counters[i] = 0
		if i == 0 {
			e.done = true
		}
	}
	return string(b), true
}
