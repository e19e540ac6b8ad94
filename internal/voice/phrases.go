package voice

import (
	"sort"
	"strings"

	"github.com/speakmate/speakmate/internal/phrase"
	"github.com/speakmate/speakmate/pkg/types"
)

// PhraseHelp pairs a speakable phrase with a description of what it does.
// Used by help and debugging UIs.
type PhraseHelp struct {
	Phrase string
	Action string
}

// ListAllPhrases expands every indexed value sequence back into its
// constituent input words and returns the full set of currently speakable
// phrases: commands, square selections and move phrases. The result is
// sorted by action, then phrase.
func (c *Controller) ListAllPhrases() []PhraseHelp {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []PhraseHelp

	for _, e := range c.lex.EntriesByTags("command") {
		if cmd, ok := commandsByValue[e.Value]; ok {
			out = append(out, PhraseHelp{Phrase: e.Word, Action: "command " + cmd.String()})
		}
	}

	for _, key := range c.moveKeys {
		moves := c.moveIdx[key]
		targets := make([]string, len(moves))
		for i, m := range moves {
			targets[i] = m.UCI()
		}
		out = append(out, PhraseHelp{
			Phrase: c.speakableLocked(key),
			Action: "move " + strings.Join(targets, " or "),
		})
	}

	for _, key := range c.sqKeys {
		squares := c.sqIdx[key]
		if len(squares) != 1 {
			continue
		}
		out = append(out, PhraseHelp{
			Phrase: c.speakableLocked(key),
			Action: "select " + string(squares[0]),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Phrase < out[j].Phrase
	})
	return out
}

// speakableLocked renders a phrase key as input words, using each value's
// canonical word and falling back to the value itself.
func (c *Controller) speakableLocked(key string) string {
	values := phrase.SplitKey(key)
	words := make([]string, len(values))
	for i, v := range values {
		if w, ok := c.lex.WordOfValue(v); ok {
			words[i] = w
		} else {
			words[i] = v
		}
	}
	return strings.Join(words, " ")
}

// Hints returns a labeled visual marker for each active ambiguity choice,
// for the board UI to render at the choices' destination squares. Empty when
// no session is active.
func (c *Controller) Hints() []types.Hint {
	c.mu.Lock()
	defer c.mu.Unlock()

	hints := make([]types.Hint, 0, len(c.choices))
	for _, ch := range c.choices {
		hints = append(hints, types.Hint{Square: ch.Move.To, Label: ch.Label})
	}
	return hints
}
