package supervisor

import (
	"context"
	"sync"
	"testing"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/agentclient"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/events"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/routing"
	"github.com/morezero/agent-exchange/pkg/session"
	"github.com/morezero/agent-exchange/pkg/transport"
)

// fakeTransport answers every send with reply and records the requests.
type fakeTransport struct {
	mu    sync.Mutex
	reqs  []*a2a.RequestEnvelope
	reply func(req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error)
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Open(_ context.Context, _ transport.Address) (transport.Channel, error) {
	return &fakeChannel{t: f}, nil
}

func (f *fakeTransport) requests() []*a2a.RequestEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*a2a.RequestEnvelope(nil), f.reqs...)
}

type fakeChannel struct {
	t *fakeTransport
}

func (c *fakeChannel) Send(_ context.Context, req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	c.t.mu.Lock()
	c.t.reqs = append(c.t.reqs, req)
	reply := c.t.reply
	c.t.mu.Unlock()
	return reply(req)
}

func (c *fakeChannel) Close() error { return nil }

func echoReply(req *a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error) {
	return a2a.ResultResponse(req.ID, req.SkillID+": "+req.Message.Text()), nil
}

type transition struct {
	from, to State
}

// harness wires a Supervisor to a fake transport and an in-memory store.
type harness struct {
	sup   *Supervisor
	store *session.MemoryStore
	tr    *fakeTransport

	mu          sync.Mutex
	transitions []transition
	events      []*events.TurnCompletedEvent
}

func newHarness(t *testing.T, reply func(*a2a.RequestEnvelope) (*a2a.ResponseEnvelope, error)) *harness {
	t.Helper()
	reg, err := registry.New(bootstrap.GetDefaultCatalog(bootstrap.Endpoints{
		WeatherURL: bootstrap.AgentURL("localhost", 9998),
		FarmURL:    bootstrap.AgentURL("localhost", 9999),
	}).Agents)
	if err != nil {
		t.Fatalf("supervisor:fake_test - registry: %v", err)
	}

	h := &harness{store: session.NewMemoryStore(), tr: &fakeTransport{reply: reply}}
	sup, err := New(Params{
		Registry:   reg,
		Clients:    agentclient.NewPool(h.tr, agentclient.Options{}),
		Store:      h.store,
		Classifier: routing.NewRuleClassifier(),
		Publisher: events.NewCallbackPublisher(func(_ context.Context, ev *events.TurnCompletedEvent) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, ev)
			return nil
		}),
		OnTransition: func(_ string, from, to State) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.transitions = append(h.transitions, transition{from, to})
		},
	})
	if err != nil {
		t.Fatalf("supervisor:fake_test - New: %v", err)
	}
	h.sup = sup
	return h
}

func (h *harness) recordedTransitions() []transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]transition(nil), h.transitions...)
}

func (h *harness) recordedEvents() []*events.TurnCompletedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*events.TurnCompletedEvent(nil), h.events...)
}

func (h *harness) history(t *testing.T, threadID string) []a2a.Message {
	t.Helper()
	msgs, err := h.store.Get(context.Background(), threadID)
	if err != nil {
		t.Fatalf("supervisor:fake_test - history: %v", err)
	}
	return msgs
}
