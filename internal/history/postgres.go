package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the utterance log table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS utterances (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    heard      TEXT NOT NULL,
    action     TEXT NOT NULL,
    move       TEXT NOT NULL DEFAULT '',
    cost       DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] using the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// utterances table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Log appends one record.
func (s *PostgresStore) Log(ctx context.Context, r Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO utterances (session_id, heard, action, move, cost) VALUES ($1, $2, $3, $4, $5)`,
		r.SessionID, r.Heard, r.Action, r.Move, r.Cost,
	)
	if err != nil {
		return fmt.Errorf("history: log: %w", err)
	}
	return nil
}

// Recent returns up to limit records for a session, newest first.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, heard, action, move, cost, created_at
		   FROM utterances
		  WHERE session_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Heard, &r.Action, &r.Move, &r.Cost, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
