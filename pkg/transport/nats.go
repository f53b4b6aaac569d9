package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/commsutil"
)

const natsLogPrefix = "transport:nats"

// NATSTransport sends envelopes as NATS request/reply on the agent topic.
type NATSTransport struct {
	nc      *comms.Conn
	timeout time.Duration
}

// NewNATSTransport creates a brokered transport over an existing connection.
func NewNATSTransport(nc *comms.Conn, timeout time.Duration) *NATSTransport {
	return &NATSTransport{nc: nc, timeout: timeout}
}

// Name returns the policy name.
func (t *NATSTransport) Name() string { return PolicyBrokered }

// Open checks the connection and returns a channel bound to the agent topic.
func (t *NATSTransport) Open(_ context.Context, addr Address) (Channel, error) {
	if addr.Topic == "" {
		return nil, fmt.Errorf("%s - address %s has no topic: %w", natsLogPrefix, addr, a2a.ErrTransportUnavailable)
	}
	if t.nc == nil || t.nc.IsClosed() {
		return nil, fmt.Errorf("%s - connection closed: %w", natsLogPrefix, a2a.ErrTransportUnavailable)
	}
	slog.Debug(fmt.Sprintf("%s - Opened channel to topic %s", natsLogPrefix, addr.Topic))
	return &natsChannel{transport: t, addr: addr}, nil
}

type natsChannel struct {
	mu        sync.Mutex
	transport *NATSTransport
	addr      Address
	closed    bool
}

func (c *natsChannel) Send(ctx context.Context, req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%s - %w: %w", natsLogPrefix, a2a.ErrTransportUnavailable, errChannelClosed)
	}

	payload, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode request: %w", natsLogPrefix, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.transport.timeout)
	defer cancel()

	msg, err := c.transport.nc.RequestWithContext(ctx, c.addr.Topic, payload)
	if err != nil {
		return nil, classify(natsLogPrefix, c.addr, err)
	}

	out, err := commsutil.DecodeResponse(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("%s - bad response on %s: %w", natsLogPrefix, c.addr.Topic, err)
	}
	return out, nil
}

func (c *natsChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
