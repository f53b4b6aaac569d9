// Package transport carries request envelopes to worker agents over a
// pluggable policy: direct HTTP or NATS request/reply.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

const logPrefix = "transport:transport"

// Policy names accepted by New.
const (
	PolicyDirect   = "A2A"
	PolicyBrokered = "NATS"
)

const defaultRequestTimeout = 30 * time.Second

// Address locates a worker agent. URL is used by the direct policy and
// Topic by the brokered policy.
type Address struct {
	URL   string `json:"url"`
	Topic string `json:"topic"`
}

func (a Address) String() string {
	if a.Topic != "" {
		return fmt.Sprintf("%s|%s", a.URL, a.Topic)
	}
	return a.URL
}

// Transport opens channels to worker agents.
type Transport interface {
	Open(ctx context.Context, addr Address) (Channel, error)
	Name() string
}

// Channel sends one request at a time and waits for its response.
type Channel interface {
	Send(ctx context.Context, req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error)
	Close() error
}

// Config selects and configures a transport policy.
type Config struct {
	Policy         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Conn           *comms.Conn
}

// NormalizePolicy maps policy aliases onto PolicyDirect or PolicyBrokered.
func NormalizePolicy(p string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "a2a", "direct", "http":
		return PolicyDirect, nil
	case "nats", "brokered", "":
		return PolicyBrokered, nil
	}
	return "", fmt.Errorf("%s - unknown transport policy %q", logPrefix, p)
}

// New builds the transport selected by cfg.Policy.
func New(cfg Config) (Transport, error) {
	policy, err := NormalizePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	switch policy {
	case PolicyDirect:
		return NewHTTPTransport(cfg.HTTPClient, timeout), nil
	default:
		if cfg.Conn == nil {
			return nil, fmt.Errorf("%s - brokered policy requires a NATS connection", logPrefix)
		}
		return NewNATSTransport(cfg.Conn, timeout), nil
	}
}
