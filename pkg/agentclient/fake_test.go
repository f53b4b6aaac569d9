package agentclient

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/transport"
)

// fakeTransport records opens and answers sends with reply.
type fakeTransport struct {
	opens   atomic.Int32
	sends   atomic.Int32
	openErr error

	mu      sync.Mutex
	lastReq *a2a.RequestEnvelope
	reply   func(req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error)
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Open(_ context.Context, _ transport.Address) (transport.Channel, error) {
	f.opens.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeChannel{t: f}, nil
}

type fakeChannel struct {
	t *fakeTransport
}

func (c *fakeChannel) Send(_ context.Context, req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	c.t.sends.Add(1)
	c.t.mu.Lock()
	c.t.lastReq = req
	reply := c.t.reply
	c.t.mu.Unlock()
	return reply(req)
}

func (c *fakeChannel) Close() error { return nil }

func echoReply(req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	return a2a.ResultResponse(req.ID, "answer: "+req.Message.Text()), nil
}

func testAgents(t interface{ Fatalf(string, ...any) }) *registry.Registry {
	reg, err := registry.New(bootstrap.GetDefaultCatalog(bootstrap.Endpoints{
		WeatherURL: bootstrap.AgentURL("localhost", 9998),
		FarmURL:    bootstrap.AgentURL("localhost", 9999),
	}).Agents)
	if err != nil {
		t.Fatalf("agentclient:fake_test - registry: %v", err)
	}
	return reg
}
