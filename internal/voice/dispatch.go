package voice

import (
	"fmt"
	"strings"

	"github.com/speakmate/speakmate/pkg/types"
)

// commandsByValue maps lexicon command values to command kinds.
var commandsByValue = map[string]types.Command{
	"help":         types.CmdHelp,
	"stop":         types.CmdStop,
	"flip":         types.CmdFlip,
	"resign":       types.CmdResign,
	"draw":         types.CmdDraw,
	"rematch":      types.CmdRematch,
	"takeback-yes": types.CmdTakebackYes,
	"takeback-no":  types.CmdTakebackNo,
	"upvote":       types.CmdUpvote,
	"downvote":     types.CmdDownvote,
	"sleep":        types.CmdSleep,
	"wake":         types.CmdWake,
}

// utteranceValueLocked reduces an utterance to a single lexicon value:
// every word must resolve (exactly or phonetically) to the same value.
// This is how multi-word command phrases like "offer draw" or "flip board"
// dispatch — their words are synonyms sharing one command value.
func (c *Controller) utteranceValueLocked(text string) (string, bool) {
	value := ""
	any := false
	for _, w := range strings.Fields(text) {
		e, ok := c.lex.EntryOfWord(w)
		if !ok {
			tok, rok := c.tokenOfRecovered(w)
			if !rok {
				return "", false
			}
			if e, ok = c.lex.EntryOfToken(tok); !ok {
				return "", false
			}
		}
		if any && e.Value != value {
			return "", false
		}
		value = e.Value
		any = true
	}
	return value, any
}

// tokenOfRecovered tokenizes a single word through the lexicon's recovery
// path.
func (c *Controller) tokenOfRecovered(word string) (string, bool) {
	toks, ok := c.lex.Tokenize(word)
	if !ok || len(toks) != 1 {
		return "", false
	}
	return toks, true
}

// dispatchCommandLocked checks the utterance against the fixed command
// vocabulary by exact value match. Dispatch is an exhaustive switch over the
// command kind so that adding a command without handling it fails vet-level
// review, not runtime.
func (c *Controller) dispatchCommandLocked(text string) (types.Action, bool) {
	v, ok := c.utteranceValueLocked(text)
	if !ok {
		return types.Action{}, false
	}
	cmd, ok := commandsByValue[v]
	if !ok {
		return types.Action{}, false
	}

	switch cmd {
	case types.CmdStop:
		// Stop is handled in-controller: clear every piece of transient
		// session state.
		c.clearSessionLocked()
		c.setSelectionLocked("")

	case types.CmdSleep:
		c.clearSessionLocked()
		c.setSelectionLocked("")
		c.asleep = true

	case types.CmdWake:
		c.asleep = false

	case types.CmdHelp, types.CmdFlip, types.CmdResign, types.CmdDraw,
		types.CmdRematch, types.CmdTakebackYes, types.CmdTakebackNo,
		types.CmdUpvote, types.CmdDownvote:
		// Pure UI commands; the hook below is their only effect here.

	default:
		return types.Action{}, false
	}

	if c.cfg.OnCommand != nil {
		c.cfg.OnCommand(cmd)
	}
	return types.Action{Kind: types.ActionCommand, Command: cmd}, true
}

// RegisterConfirmation registers a named yes/no request. A later "yes",
// "no", or the request's own name resolves and removes it, invoking fn with
// the outcome. Registering a name twice replaces the earlier callback.
func (c *Controller) RegisterConfirmation(name string, fn func(accepted bool)) error {
	if name == "" || fn == nil {
		return fmt.Errorf("voice: confirmation requires a name and a callback")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.confirmations {
		if c.confirmations[i].name == name {
			c.confirmations[i].fn = fn
			return nil
		}
	}
	c.confirmations = append(c.confirmations, confirmation{name: name, fn: fn})
	return nil
}

// UnregisterConfirmation removes a pending request without invoking its
// callback.
func (c *Controller) UnregisterConfirmation(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeConfirmationLocked(name)
}

func (c *Controller) removeConfirmationLocked(name string) {
	for i := range c.confirmations {
		if c.confirmations[i].name == name {
			c.confirmations = append(c.confirmations[:i], c.confirmations[i+1:]...)
			return
		}
	}
}

// resolveConfirmationLocked checks the utterance against pending
// confirmation requests before anything else. "yes"/"no" resolves the
// oldest pending request; an utterance equal to a request's name accepts
// that request.
func (c *Controller) resolveConfirmationLocked(text string) (types.Action, bool) {
	if len(c.confirmations) == 0 {
		return types.Action{}, false
	}

	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, pending := range c.confirmations {
		if strings.EqualFold(pending.name, lowered) {
			return c.finishConfirmationLocked(pending.name, true), true
		}
	}

	v, ok := c.utteranceValueLocked(text)
	if !ok {
		return types.Action{}, false
	}
	switch v {
	case "yes":
		return c.finishConfirmationLocked(c.confirmations[0].name, true), true
	case "no":
		return c.finishConfirmationLocked(c.confirmations[0].name, false), true
	}
	return types.Action{}, false
}

func (c *Controller) finishConfirmationLocked(name string, accepted bool) types.Action {
	var fn func(bool)
	for _, pending := range c.confirmations {
		if pending.name == name {
			fn = pending.fn
			break
		}
	}
	c.removeConfirmationLocked(name)
	if fn != nil {
		fn(accepted)
	}
	return types.Action{Kind: types.ActionConfirmation, Request: name, Accepted: accepted}
}
