package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/db"
)

const postgresLogPrefix = "session:postgres"

// PostgresStore persists histories through the db repository.
type PostgresStore struct {
	repo *db.Repository
}

// NewPostgresStore creates a store over repo.
func NewPostgresStore(repo *db.Repository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

// Get loads the thread's history in append order.
func (s *PostgresStore) Get(ctx context.Context, threadID string) ([]a2a.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%s - %w", postgresLogPrefix, ErrEmptyThreadID)
	}

	rows, err := s.repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load history: %w", postgresLogPrefix, err)
	}

	out := make([]a2a.Message, 0, len(rows))
	for _, r := range rows {
		var parts []a2a.Part
		if err := json.Unmarshal(r.Parts, &parts); err != nil {
			return nil, fmt.Errorf("%s - message %s has undecodable parts: %w", postgresLogPrefix, r.MessageID, err)
		}
		out = append(out, a2a.Message{ID: r.MessageID, Role: r.Role, Parts: parts})
	}
	return out, nil
}

// Append stores msgs in one transaction.
func (s *PostgresStore) Append(ctx context.Context, threadID string, msgs ...a2a.Message) error {
	return s.append(ctx, threadID, "", msgs)
}

// AppendTurn stores msgs and tags the answer with the route that produced it.
func (s *PostgresStore) AppendTurn(ctx context.Context, threadID, route string, msgs ...a2a.Message) error {
	return s.append(ctx, threadID, route, msgs)
}

func (s *PostgresStore) append(ctx context.Context, threadID, route string, msgs []a2a.Message) error {
	if threadID == "" {
		return fmt.Errorf("%s - %w", postgresLogPrefix, ErrEmptyThreadID)
	}

	rows := make([]db.SessionMessage, 0, len(msgs))
	for _, m := range msgs {
		parts, err := json.Marshal(m.Parts)
		if err != nil {
			return fmt.Errorf("%s - failed to encode parts: %w", postgresLogPrefix, err)
		}
		row := db.SessionMessage{MessageID: m.ID, Role: m.Role, Parts: parts}
		if route != "" && m.Role == a2a.RoleAgent {
			r := route
			row.Route = &r
		}
		rows = append(rows, row)
	}

	err := s.repo.AppendMessages(ctx, db.AppendMessagesParams{
		ThreadID:     threadID,
		Messages:     rows,
		CountsAsTurn: route != "",
	})
	if err != nil {
		return fmt.Errorf("%s - failed to append history: %w", postgresLogPrefix, err)
	}
	return nil
}

// Ping checks the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
