package lexicon

import (
	"strings"
	"testing"
)

const testGrammar = `
language: en
entries:
  - {word: a, token: a, tags: [file], subs: [{to: "8", cost: 0.4}]}
  - {word: alpha, token: a, tags: [file]}
  - {word: b, token: b, tags: [file], subs: [{to: d, cost: 0.45}]}
  - {word: d, token: d, tags: [file]}
  - {word: "8", token: "8", tags: [rank], subs: [{to: a, cost: 0.4}]}
  - {word: eight, token: "8", tags: [rank]}
  - {word: ate, token: "8", tags: [rank]}
  - {word: queen, token: Q, tags: [role]}
  - {word: knight, token: N, tags: [role]}
  - {word: night, token: N, tags: [role]}
  - {word: takes, token: x, value: x, tags: [marker]}
  - {word: captures, token: x, value: x, tags: [marker]}
  - {word: green, token: G, value: green, tags: [choice]}
  - {word: first, token: F, value: 1st, tags: [choice]}
`

func loadTestStore(t *testing.T, grammar string) *Store {
	t.Helper()
	s := New()
	if err := s.LoadReader(strings.NewReader(grammar)); err != nil {
		t.Fatalf("load grammar: %v", err)
	}
	return s
}

func TestStore_Lookups(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	if s.Language() != "en" {
		t.Errorf("language: got %q, want %q", s.Language(), "en")
	}

	tok, ok := s.TokenOfWord("queen")
	if !ok || tok != "Q" {
		t.Errorf("TokenOfWord(queen): got %q, %v", tok, ok)
	}

	// Synonyms share one token.
	for _, w := range []string{"knight", "night"} {
		tok, ok := s.TokenOfWord(w)
		if !ok || tok != "N" {
			t.Errorf("TokenOfWord(%q): got %q, %v", w, tok, ok)
		}
	}

	if _, ok := s.TokenOfWord("unknown"); ok {
		t.Error("TokenOfWord must miss on an unknown word")
	}
}

func TestStore_WordNormalization(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	// Recognizers attach stray punctuation and casing.
	for _, w := range []string{"Queen", "queen.", "QUEEN,"} {
		tok, ok := s.TokenOfWord(w)
		if !ok || tok != "Q" {
			t.Errorf("TokenOfWord(%q): got %q, %v", w, tok, ok)
		}
	}
}

func TestStore_ValueDefaultsToToken(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	e, ok := s.EntryOfWord("queen")
	if !ok {
		t.Fatal("queen not found")
	}
	if e.Value != "Q" {
		t.Errorf("value: got %q, want token %q", e.Value, "Q")
	}

	// Explicit values are kept.
	e, ok = s.EntryOfWord("green")
	if !ok || e.Value != "green" {
		t.Errorf("green value: got %+v, %v", e, ok)
	}
}

func TestStore_ValueOfTokenFallback(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	if got := s.ValueOfToken("G"); got != "green" {
		t.Errorf("ValueOfToken(G): got %q", got)
	}
	// A token the grammar does not define falls back to itself.
	if got := s.ValueOfToken("z"); got != "z" {
		t.Errorf("ValueOfToken(z): got %q", got)
	}
}

func TestStore_TokensOfValue(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	toks := s.TokensOfValue("x")
	if len(toks) != 1 || toks[0] != "x" {
		t.Errorf("TokensOfValue(x): got %v", toks)
	}

	// Absent values fall back to a literal token sequence.
	toks = s.TokensOfValue("q")
	if len(toks) != 1 || toks[0] != "q" {
		t.Errorf("TokensOfValue(q): got %v", toks)
	}
}

func TestStore_WordOfValue(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	// The first-loaded word is canonical.
	w, ok := s.WordOfValue("N")
	if !ok || w != "knight" {
		t.Errorf("WordOfValue(N): got %q, %v", w, ok)
	}
	if _, ok := s.WordOfValue("missing"); ok {
		t.Error("WordOfValue must miss on an unknown value")
	}
}

func TestStore_SubCost(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	cost, ok := s.SubCost("a", "8")
	if !ok || cost != 0.4 {
		t.Errorf("SubCost(a, 8): got %v, %v", cost, ok)
	}
	if _, ok := s.SubCost("a", "d"); ok {
		t.Error("unlisted substitution must not be found")
	}
	if _, ok := s.SubCost("z", "a"); ok {
		t.Error("unknown source token must not be found")
	}
}

func TestStore_EntriesByTags(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	choices := s.EntriesByTags("choice")
	if len(choices) != 2 {
		t.Fatalf("choice entries: got %d, want 2", len(choices))
	}
	if len(s.EntriesByTags("choice", "rank")) != 0 {
		t.Error("no entry carries both choice and rank")
	}
}

func TestStore_Tokenize(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	toks, ok := s.Tokenize("knight takes a eight")
	if !ok || toks != "Nxa8" {
		t.Errorf("Tokenize: got %q, %v", toks, ok)
	}

	if _, ok := s.Tokenize(""); ok {
		t.Error("empty text must not tokenize")
	}
	if _, ok := s.Tokenize("xyzzy plugh"); ok {
		t.Error("unrecoverable words must fail the whole utterance")
	}
}

func TestStore_TokenizePhoneticRecovery(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	// Misrecognized spellings of in-vocabulary words recover through the
	// Double Metaphone + Jaro-Winkler path.
	toks, ok := s.Tokenize("knight capturs a eight")
	if !ok || toks != "Nxa8" {
		t.Errorf("Tokenize(knight capturs a eight): got %q, %v", toks, ok)
	}
}

func TestStore_LoadReplacesWholesale(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	const german = `
language: de
entries:
  - {word: dame, token: Q, tags: [role]}
  - {word: springer, token: N, tags: [role]}
`
	if err := s.LoadReader(strings.NewReader(german)); err != nil {
		t.Fatalf("load replacement grammar: %v", err)
	}

	if s.Language() != "de" {
		t.Errorf("language: got %q, want %q", s.Language(), "de")
	}
	if tok, ok := s.TokenOfWord("dame"); !ok || tok != "Q" {
		t.Errorf("TokenOfWord(dame): got %q, %v", tok, ok)
	}
	if _, ok := s.TokenOfWord("queen"); ok {
		t.Error("old-language word must not survive a reload")
	}
}

func TestStore_FailedLoadKeepsPriorGeneration(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t, testGrammar)

	bad := `
language: broken
entries:
  - {word: queen, token: QQ}
`
	if err := s.LoadReader(strings.NewReader(bad)); err == nil {
		t.Fatal("expected load error")
	}

	// The prior generation stays authoritative.
	if s.Language() != "en" {
		t.Errorf("language after failed load: got %q, want %q", s.Language(), "en")
	}
	if tok, ok := s.TokenOfWord("queen"); !ok || tok != "Q" {
		t.Errorf("TokenOfWord(queen) after failed load: got %q, %v", tok, ok)
	}
}

func TestBuildGeneration_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		grammar string
		want    string
	}{
		{
			name:    "missing word",
			grammar: `{language: en, entries: [{word: "", token: a}]}`,
			want:    "word is required",
		},
		{
			name:    "multi-character token",
			grammar: `{language: en, entries: [{word: queen, token: QQ}]}`,
			want:    "must be a single character",
		},
		{
			name: "duplicate word",
			grammar: `{language: en, entries: [
				{word: queen, token: Q}, {word: queen, token: D}]}`,
			want: "duplicate word",
		},
		{
			name: "token bound to two values",
			grammar: `{language: en, entries: [
				{word: takes, token: x, value: x},
				{word: cross, token: x, value: cross}]}`,
			want: "already bound to value",
		},
		{
			name: "unknown substitution target",
			grammar: `{language: en, entries: [
				{word: a, token: a, subs: [{to: z, cost: 0.4}]}]}`,
			want: "not a known token",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New()
			err := s.LoadReader(strings.NewReader(tt.grammar))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestStore_UnknownYAMLFieldRejected(t *testing.T) {
	t.Parallel()

	s := New()
	err := s.LoadReader(strings.NewReader(`{language: en, wordz: []}`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}
