package agentclient

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/transport"
)

const poolLogPrefix = "agentclient:pool"

// Pool lazily creates one Client per skill and reuses it.
type Pool struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	transport transport.Transport
	opts      Options
}

// NewPool creates an empty pool whose clients share tr.
func NewPool(tr transport.Transport, opts Options) *Pool {
	return &Pool{
		clients:   make(map[string]*Client),
		transport: tr,
		opts:      opts,
	}
}

// Get returns the client for skillID on agent, creating it on first use.
func (p *Pool) Get(agent *registry.AgentDescriptor, skillID string) (*Client, error) {
	if agent == nil || !agent.HasSkill(skillID) {
		return nil, fmt.Errorf("%s - no agent serves skill %q: %w", poolLogPrefix, skillID, a2a.ErrUnknownSkill)
	}

	p.mu.RLock()
	c, ok := p.clients[skillID]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if c, ok := p.clients[skillID]; ok {
		return c, nil
	}

	c = NewClient(p.transport, agent, skillID, p.opts)
	p.clients[skillID] = c
	slog.Info(fmt.Sprintf("%s - Created client for skill %s on agent %s", poolLogPrefix, skillID, agent.ID))
	return c, nil
}

// Len returns the number of clients created so far.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// CloseAll closes every client.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for skillID, c := range p.clients {
		if err := c.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to close client for %s: %v", poolLogPrefix, skillID, err))
		}
		delete(p.clients, skillID)
	}
}
