package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for session operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetSession finds a session by thread id. Returns nil when absent.
func (r *Repository) GetSession(ctx context.Context, threadID string) (*Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx,
		`SELECT thread_id, turn_count, created, modified
		 FROM sessions
		 WHERE thread_id = $1`, threadID).Scan(&s.ThreadID, &s.TurnCount, &s.Created, &s.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to get session %s: %w", repoLogPrefix, threadID, err)
	}
	return &s, nil
}

// ListMessages returns the messages of a thread in append order.
func (r *Repository) ListMessages(ctx context.Context, threadID string) ([]SessionMessage, error) {
	slog.Debug(fmt.Sprintf("%s - ListMessages thread=%s", repoLogPrefix, threadID))

	rows, err := r.pool.Query(ctx,
		`SELECT seq, thread_id, message_id, role, parts, route, created
		 FROM session_messages
		 WHERE thread_id = $1
		 ORDER BY seq`, threadID)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to list messages: %w", repoLogPrefix, err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionMessage, error) {
		var m SessionMessage
		err := row.Scan(&m.Seq, &m.ThreadID, &m.MessageID, &m.Role, &m.Parts, &m.Route, &m.Created)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan messages: %w", repoLogPrefix, err)
	}
	return msgs, nil
}

// AppendMessagesParams holds parameters for AppendMessages.
type AppendMessagesParams struct {
	ThreadID string
	Messages []SessionMessage
	// CountsAsTurn increments the session's turn counter.
	CountsAsTurn bool
}

// AppendMessages upserts the session row and inserts the messages in one transaction.
func (r *Repository) AppendMessages(ctx context.Context, params AppendMessagesParams) error {
	slog.Debug(fmt.Sprintf("%s - AppendMessages thread=%s count=%d", repoLogPrefix, params.ThreadID, len(params.Messages)))

	now := time.Now().UTC()
	turns := 0
	if params.CountsAsTurn {
		turns = 1
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO sessions (thread_id, turn_count, created, modified)
			 VALUES ($1, $2, $3, $3)
			 ON CONFLICT (thread_id) DO UPDATE SET
			   turn_count = sessions.turn_count + $2,
			   modified = $3`,
			params.ThreadID, turns, now)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		batch := &pgx.Batch{}
		for _, m := range params.Messages {
			batch.Queue(
				`INSERT INTO session_messages (thread_id, message_id, role, parts, route, created)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				params.ThreadID, m.MessageID, m.Role, m.Parts, m.Route, now)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%s - failed to append messages to %s: %w", repoLogPrefix, params.ThreadID, err)
	}
	return nil
}

// DeleteSession removes a session and its messages.
func (r *Repository) DeleteSession(ctx context.Context, threadID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("%s - failed to delete session %s: %w", repoLogPrefix, threadID, err)
	}
	return nil
}

// CountSessions returns the number of stored sessions.
func (r *Repository) CountSessions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s - failed to count sessions: %w", repoLogPrefix, err)
	}
	return n, nil
}
