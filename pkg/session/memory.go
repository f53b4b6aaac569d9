package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

const memoryLogPrefix = "session:memory"

// MemoryStore is a process-local Store. Returned histories are copies.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]a2a.Message
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]a2a.Message)}
}

// Get returns a copy of the thread's history.
func (s *MemoryStore) Get(_ context.Context, threadID string) ([]a2a.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%s - %w", memoryLogPrefix, ErrEmptyThreadID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.threads[threadID]), nil
}

// Append adds msgs to the end of the thread's history.
func (s *MemoryStore) Append(_ context.Context, threadID string, msgs ...a2a.Message) error {
	if threadID == "" {
		return fmt.Errorf("%s - %w", memoryLogPrefix, ErrEmptyThreadID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = append(s.threads[threadID], cloneMessages(msgs)...)
	return nil
}

// Len returns the number of known threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
