// Package session keeps the per-thread conversation history.
package session

import (
	"context"
	"errors"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

// ErrEmptyThreadID is returned when a store is called without a thread id.
var ErrEmptyThreadID = errors.New("empty thread id")

// Store holds the ordered, append-only history of each thread.
// Get on an unknown thread returns an empty history.
type Store interface {
	Get(ctx context.Context, threadID string) ([]a2a.Message, error)
	Append(ctx context.Context, threadID string, msgs ...a2a.Message) error
}

// TurnAppender is implemented by stores that record which route answered a turn.
type TurnAppender interface {
	AppendTurn(ctx context.Context, threadID, route string, msgs ...a2a.Message) error
}

// Pinger is implemented by stores backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

func cloneMessages(msgs []a2a.Message) []a2a.Message {
	out := make([]a2a.Message, len(msgs))
	for i, m := range msgs {
		out[i] = a2a.Message{ID: m.ID, Role: m.Role, Parts: append([]a2a.Part(nil), m.Parts...)}
	}
	return out
}
