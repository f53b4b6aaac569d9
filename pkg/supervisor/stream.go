package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

// StreamEvent is one server-sent chunk of a streamed turn.
type StreamEvent struct {
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
	ThreadID string `json:"thread_id"`
	Done     bool   `json:"done,omitempty"`

	// Err is the failure behind Error.
	Err error `json:"-"`
}

// ServeStream runs a turn and reports it as events on the returned channel:
// the answer as content, then a done event. A failure is sent as a single
// error event. The channel is closed after the last event.
func (s *Supervisor) ServeStream(ctx context.Context, prompt, threadID string) <-chan StreamEvent {
	if threadID == "" {
		threadID = uuid.NewString()
	}
	out := make(chan StreamEvent, 2)

	go func() {
		defer close(out)

		emit := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		text := strings.TrimSpace(prompt)
		if text == "" {
			err := fmt.Errorf("%s - prompt is empty: %w", logPrefix, a2a.ErrInvalidInput)
			emit(StreamEvent{Error: err.Error(), ThreadID: threadID, Err: err})
			return
		}

		res, err := s.serve(ctx, text, threadID)
		if err != nil {
			emit(StreamEvent{Error: err.Error(), ThreadID: threadID, Err: err})
			return
		}
		if !emit(StreamEvent{Content: res.Response, ThreadID: res.ThreadID}) {
			return
		}
		emit(StreamEvent{ThreadID: res.ThreadID, Done: true})
	}()

	return out
}
