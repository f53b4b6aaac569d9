package transport

import (
	"context"
	"errors"
	"fmt"
	"net"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

// classify wraps a raw send error with the matching a2a sentinel.
func classify(prefix string, addr Address, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, comms.ErrTimeout):
		return fmt.Errorf("%s - no reply from %s: %w: %w", prefix, addr, a2a.ErrRemoteTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s - request to %s cancelled: %w", prefix, addr, err)
	case errors.Is(err, comms.ErrNoResponders),
		errors.Is(err, comms.ErrConnectionClosed),
		errors.Is(err, comms.ErrConnectionDraining),
		errors.Is(err, comms.ErrDisconnected):
		return fmt.Errorf("%s - %s unreachable: %w: %w", prefix, addr, a2a.ErrTransportUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s - no reply from %s: %w: %w", prefix, addr, a2a.ErrRemoteTimeout, err)
	}
	return fmt.Errorf("%s - %s unreachable: %w: %w", prefix, addr, a2a.ErrTransportUnavailable, err)
}

var errChannelClosed = errors.New("channel closed")
