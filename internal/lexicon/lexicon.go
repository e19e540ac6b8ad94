// Package lexicon holds the word/token/value mappings and substitution costs
// for the active language.
//
// A grammar resource is a per-language YAML table of entries. Each entry links
// one input word to a single-character token, a value (a coarser equivalence
// class — synonymous words share a value), a set of category tags, and the
// list of token substitutions the matcher may consider, each with a cost.
//
// The store is rebuilt wholesale on language change: Load builds a complete
// new generation aside and swaps it in only on success, so a failed load
// leaves the prior generation authoritative. Lookups never observe a
// mixed-generation lexicon.
package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Sub is a single allowed token substitution with its cost.
type Sub struct {
	// To is the token the entry's token may be matched against.
	To string `yaml:"to"`

	// Cost is the price of using this substitution during alignment.
	// Decision thresholds are all below 1, so costs at or above 1 make the
	// substitution unusable in practice.
	Cost float64 `yaml:"cost"`
}

// Entry is one lexicon record. Entries are immutable once loaded.
type Entry struct {
	// Word is the recognizer's spelling of the input word.
	Word string `yaml:"word"`

	// Token is the single-character internal code for the word.
	Token string `yaml:"token"`

	// Value is the coarser class the token belongs to. Defaults to Token
	// when absent.
	Value string `yaml:"value"`

	// Tags are category labels (e.g. "file", "rank", "role", "choice").
	Tags []string `yaml:"tags"`

	// Subs lists the substitutions allowed from this entry's token.
	Subs []Sub `yaml:"subs"`
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Grammar is the on-disk shape of a grammar resource.
type Grammar struct {
	Language string  `yaml:"language"`
	Entries  []Entry `yaml:"entries"`
}

// generation is one immutable build of the three lookup maps. The store
// swaps whole generations; a generation is never mutated after construction.
type generation struct {
	language string
	byWord   map[string]*Entry
	byToken  map[string]*Entry
	byValue  map[string][]*Entry

	// words and codes back the phonetic recovery of out-of-vocabulary input.
	words []string
	codes map[string][]string
}

// Store is the lexicon store. All lookup methods are pure reads over the
// current generation; the only mutation is wholesale replacement via Load.
// Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	gen *generation

	phoneticThreshold float64
	fuzzyThreshold    float64
}

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-recovered word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(s *Store) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate is found and recovery falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(s *Store) {
		s.fuzzyThreshold = threshold
	}
}

// New returns an empty [Store]. Call [Store.Load] or [Store.LoadReader]
// before issuing lookups; an empty store resolves nothing.
func New(opts ...Option) *Store {
	s := &Store{
		gen:               emptyGeneration(),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func emptyGeneration() *generation {
	return &generation{
		byWord:  map[string]*Entry{},
		byToken: map[string]*Entry{},
		byValue: map[string][]*Entry{},
		codes:   map[string][]string{},
	}
}

// Load reads the grammar resource at path and replaces the active lexicon.
// On any error the active lexicon is left untouched.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	if err := s.LoadReader(f); err != nil {
		return fmt.Errorf("lexicon: load %q: %w", path, err)
	}
	return nil
}

// LoadReader decodes a grammar resource from r and replaces the active
// lexicon atomically. Useful in tests where grammars are string literals.
func (s *Store) LoadReader(r io.Reader) error {
	var g Grammar
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return fmt.Errorf("lexicon: decode yaml: %w", err)
	}

	gen, err := buildGeneration(&g)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.gen = gen
	s.mu.Unlock()
	return nil
}

// buildGeneration validates the grammar and builds the lookup maps aside.
// It returns a joined error listing every problem found.
func buildGeneration(g *Grammar) (*generation, error) {
	gen := emptyGeneration()
	gen.language = g.Language

	var errs []error
	tokens := make(map[string]struct{}, len(g.Entries))

	for i := range g.Entries {
		e := &g.Entries[i]
		prefix := fmt.Sprintf("lexicon: entries[%d] (%q)", i, e.Word)

		if e.Word == "" {
			errs = append(errs, fmt.Errorf("%s: word is required", prefix))
			continue
		}
		if len(e.Token) != 1 {
			errs = append(errs, fmt.Errorf("%s: token %q must be a single character", prefix, e.Token))
			continue
		}
		if e.Value == "" {
			e.Value = e.Token
		}

		word := normalizeWord(e.Word)
		if _, dup := gen.byWord[word]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate word", prefix))
			continue
		}
		gen.byWord[word] = e
		gen.words = append(gen.words, word)
		gen.codes[word] = phoneticCodes(word)

		if prev, seen := gen.byToken[e.Token]; seen {
			// Synonyms share one token; the first entry for a token is its
			// canonical spelling and owns the substitution list.
			if prev.Value != e.Value {
				errs = append(errs, fmt.Errorf("%s: token %q already bound to value %q", prefix, e.Token, prev.Value))
			}
		} else {
			gen.byToken[e.Token] = e
			tokens[e.Token] = struct{}{}
		}
		gen.byValue[e.Value] = append(gen.byValue[e.Value], e)
	}

	// Substitution targets must be tokens the grammar defines.
	for i := range g.Entries {
		e := &g.Entries[i]
		for _, sub := range e.Subs {
			if _, ok := tokens[sub.To]; !ok {
				errs = append(errs, fmt.Errorf("lexicon: entries[%d] (%q): substitution target %q is not a known token", i, e.Word, sub.To))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return gen, nil
}

// Language returns the language tag of the active generation.
func (s *Store) Language() string {
	return s.current().language
}

func (s *Store) current() *generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// EntryOfWord returns the entry for an exact input word.
func (s *Store) EntryOfWord(word string) (*Entry, bool) {
	e, ok := s.current().byWord[normalizeWord(word)]
	return e, ok
}

// TokenOfWord returns the token for an exact input word.
func (s *Store) TokenOfWord(word string) (string, bool) {
	e, ok := s.EntryOfWord(word)
	if !ok {
		return "", false
	}
	return e.Token, true
}

// EntryOfToken returns the canonical entry for a token.
func (s *Store) EntryOfToken(token string) (*Entry, bool) {
	e, ok := s.current().byToken[token]
	return e, ok
}

// ValueOfToken returns the value class of a token. Missing tokens fall back
// to the token itself, per the value-defaults-to-token rule.
func (s *Store) ValueOfToken(token string) string {
	if e, ok := s.current().byToken[token]; ok {
		return e.Value
	}
	return token
}

// EntriesOfValue returns every entry sharing the given value. Values may be
// shared by multiple entries (e.g. number and color synonyms).
func (s *Store) EntriesOfValue(value string) []*Entry {
	return s.current().byValue[value]
}

// TokensOfValue returns the distinct tokens carrying the given value. A
// value absent from the lexicon falls back to itself as a literal token
// sequence, mirroring the value-defaults-to-token rule.
func (s *Store) TokensOfValue(value string) []string {
	entries := s.current().byValue[value]
	if len(entries) == 0 {
		return []string{value}
	}
	seen := make(map[string]struct{}, len(entries))
	var toks []string
	for _, e := range entries {
		if _, dup := seen[e.Token]; dup {
			continue
		}
		seen[e.Token] = struct{}{}
		toks = append(toks, e.Token)
	}
	return toks
}

// WordOfValue returns the canonical (first-loaded) input word for a value,
// used when expanding indexed phrases back into speakable text.
func (s *Store) WordOfValue(value string) (string, bool) {
	entries := s.current().byValue[value]
	if len(entries) == 0 {
		return "", false
	}
	return entries[0].Word, true
}

// EntriesByTags returns every entry carrying all of the given tags.
func (s *Store) EntriesByTags(tags ...string) []*Entry {
	var out []*Entry
	for _, word := range s.current().words {
		e := s.current().byWord[word]
		all := true
		for _, t := range tags {
			if !e.HasTag(t) {
				all = false
				break
			}
		}
		if all {
			out = append(out, e)
		}
	}
	return out
}

// SubCost returns the configured cost of substituting token from with token
// to, looked up on the canonical entry of from. The second return is false
// when the substitution is not listed.
func (s *Store) SubCost(from, to string) (float64, bool) {
	e, ok := s.current().byToken[from]
	if !ok {
		return 0, false
	}
	for _, sub := range e.Subs {
		if sub.To == to {
			return sub.Cost, true
		}
	}
	return 0, false
}

// TagsOfToken returns the tag set of a token's canonical entry.
func (s *Store) TagsOfToken(token string) []string {
	e, ok := s.current().byToken[token]
	if !ok {
		return nil
	}
	return e.Tags
}

// Tokenize maps an utterance to its token string: each whitespace-separated
// word resolves to one single-character token. Out-of-vocabulary words go
// through phonetic recovery; a word that cannot be recovered fails the whole
// utterance.
func (s *Store) Tokenize(text string) (string, bool) {
	gen := s.current()
	var b strings.Builder
	for _, raw := range strings.Fields(text) {
		word := normalizeWord(raw)
		if word == "" {
			continue
		}
		e, ok := gen.byWord[word]
		if !ok {
			recovered, rok := gen.recoverWord(word, s.phoneticThreshold, s.fuzzyThreshold)
			if !rok {
				return "", false
			}
			e = gen.byWord[recovered]
		}
		b.WriteString(e.Token)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// normalizeWord lowercases a word and strips everything that is not a letter
// or digit. Speech recognizers attach stray punctuation to otherwise valid
// words.
func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
