// Package agentclient provides the per-skill proxy the supervisor uses to
// invoke worker agents.
package agentclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/transport"
)

const logPrefix = "agentclient:client"

// DefaultSenderID identifies the exchange in outgoing envelopes.
const DefaultSenderID = "coffee-exchange-agent"

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// BreakerConfig configures the per-client circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// Options configures clients created by NewClient and Pool.
type Options struct {
	SenderID string
	Breaker  BreakerConfig
}

// Client invokes one skill on one agent.
type Client struct {
	mu        sync.Mutex
	transport transport.Transport
	agent     *registry.AgentDescriptor
	skillID   string
	senderID  string
	state     State
	channel   transport.Channel
	breaker   *gobreaker.CircuitBreaker[*a2a.ResponseEnvelope]
}

// NewClient creates a disconnected client. The channel opens on first use.
func NewClient(tr transport.Transport, agent *registry.AgentDescriptor, skillID string, opts Options) *Client {
	sender := opts.SenderID
	if sender == "" {
		sender = DefaultSenderID
	}

	return &Client{
		transport: tr,
		agent:     agent,
		skillID:   skillID,
		senderID:  sender,
		state:     Disconnected,
		breaker:   newBreaker(agent.ID+":"+skillID, opts.Breaker),
	}
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[*a2a.ResponseEnvelope] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	return gobreaker.NewCircuitBreaker[*a2a.ResponseEnvelope](gobreaker.Settings{
		Name:        "agent:" + name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn(fmt.Sprintf("%s - Breaker %s changed from %s to %s", logPrefix, name, from, to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransportFailure(err)
		},
	})
}

// isTransportFailure reports whether err says the agent could not be reached.
func isTransportFailure(err error) bool {
	return errors.Is(err, a2a.ErrTransportUnavailable) || errors.Is(err, a2a.ErrRemoteTimeout)
}

// SkillID returns the skill this client invokes.
func (c *Client) SkillID() string { return c.skillID }

// Agent returns the descriptor of the target agent.
func (c *Client) Agent() *registry.AgentDescriptor { return c.agent }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BreakerState returns the circuit breaker state for monitoring.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// EnsureConnected opens the transport channel if it is not open yet.
func (c *Client) EnsureConnected(ctx context.Context) error {
	_, err := c.ensureChannel(ctx)
	return err
}

func (c *Client) ensureChannel(ctx context.Context) (transport.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Connected {
		return c.channel, nil
	}

	ch, err := c.transport.Open(ctx, c.agent.Address)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to open channel to %s: %w", logPrefix, c.agent.ID, err)
	}
	c.channel = ch
	c.state = Connected
	slog.Info(fmt.Sprintf("%s - Connected to %s over %s for skill %s", logPrefix, c.agent.ID, c.transport.Name(), c.skillID))
	return ch, nil
}

// disconnect drops ch so the next call reopens it.
func (c *Client) disconnect(ch transport.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != ch {
		return
	}
	_ = c.channel.Close()
	c.channel = nil
	c.state = Disconnected
}

// Invoke sends input to the skill unchanged and returns the first text part of the answer.
func (c *Client) Invoke(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%s - empty input for skill %s: %w", logPrefix, c.skillID, a2a.ErrInvalidInput)
	}

	ch, err := c.ensureChannel(ctx)
	if err != nil {
		return "", err
	}

	msg := a2a.NewTextMessage(a2a.RoleUser, input)
	req := &a2a.RequestEnvelope{
		ID:         uuid.NewString(),
		Method:     a2a.MethodSend,
		SkillID:    c.skillID,
		SenderID:   c.senderID,
		ReceiverID: c.agent.ID,
		Message:    &msg,
	}

	slog.Debug(fmt.Sprintf("%s - Invoking %s on %s (request %s)", logPrefix, c.skillID, c.agent.ID, req.ID))

	resp, err := c.breaker.Execute(func() (*a2a.ResponseEnvelope, error) {
		return ch.Send(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%s - agent %s circuit open: %w: %w", logPrefix, c.agent.ID, a2a.ErrTransportUnavailable, err)
		}
		if errors.Is(err, a2a.ErrTransportUnavailable) {
			c.disconnect(ch)
		}
		return "", err
	}

	return unwrap(resp)
}

func unwrap(resp *a2a.ResponseEnvelope) (string, error) {
	if resp.Error != nil {
		return "", &a2a.RemoteAgentError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	for _, p := range resp.Result.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", fmt.Errorf("%s - response has no text part: %w", logPrefix, a2a.ErrMalformedResponse)
}

// Close closes the channel and returns the client to Disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return nil
	}
	err := c.channel.Close()
	c.channel = nil
	c.state = Disconnected
	return err
}
