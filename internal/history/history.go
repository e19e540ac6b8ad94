// Package history provides an optional append-only log of resolved
// utterances, backed by PostgreSQL. It records what was heard and what the
// controller did with it, for grammar tuning and debugging.
//
// The store is entirely optional: when no DSN is configured the server runs
// without it and nothing is recorded.
package history

import (
	"context"
	"time"
)

// Record is one resolved utterance.
type Record struct {
	ID        int64
	SessionID string
	Heard     string
	Action    string

	// Move is the submitted move in UCI form, empty when the action did not
	// submit one.
	Move string

	// Cost is the winning candidate's match cost, zero when no candidate
	// was ranked.
	Cost float64

	CreatedAt time.Time
}

// Store is the utterance log interface.
type Store interface {
	// Log appends one record.
	Log(ctx context.Context, r Record) error

	// Recent returns up to limit records for a session, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]Record, error)
}
