package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/commsutil"
)

const httpLogPrefix = "transport:http"

const maxResponseBytes = 4 << 20

// HTTPTransport posts envelopes straight to the agent URL.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPTransport creates a direct transport. A nil client uses a default one.
func NewHTTPTransport(client *http.Client, timeout time.Duration) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client, timeout: timeout}
}

// Name returns the policy name.
func (t *HTTPTransport) Name() string { return PolicyDirect }

// Open validates the address and returns a channel bound to it.
func (t *HTTPTransport) Open(_ context.Context, addr Address) (Channel, error) {
	u, err := url.Parse(addr.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s - invalid agent url %q: %w", httpLogPrefix, addr.URL, a2a.ErrTransportUnavailable)
	}
	slog.Debug(fmt.Sprintf("%s - Opened channel to %s", httpLogPrefix, addr.URL))
	return &httpChannel{transport: t, addr: addr}, nil
}

type httpChannel struct {
	mu        sync.Mutex
	transport *HTTPTransport
	addr      Address
	closed    bool
}

func (c *httpChannel) Send(ctx context.Context, req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%s - %w: %w", httpLogPrefix, a2a.ErrTransportUnavailable, errChannelClosed)
	}

	payload, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode request: %w", httpLogPrefix, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.transport.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build request: %w: %w", httpLogPrefix, a2a.ErrTransportUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.transport.client.Do(httpReq)
	if err != nil {
		return nil, classify(httpLogPrefix, c.addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(httpLogPrefix, c.addr, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s - %s returned status %d: %w", httpLogPrefix, c.addr, resp.StatusCode, a2a.ErrTransportUnavailable)
	}

	out, err := commsutil.DecodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%s - bad response from %s (status %d): %w", httpLogPrefix, c.addr, resp.StatusCode, err)
	}
	return out, nil
}

func (c *httpChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
