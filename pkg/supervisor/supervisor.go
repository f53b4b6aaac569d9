// Package supervisor runs conversation turns: classify the prompt, dispatch it
// to a worker agent or answer locally, then record the exchange on the thread.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/agent-exchange/internal/tracer"
	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/agentclient"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
	"github.com/morezero/agent-exchange/pkg/events"
	"github.com/morezero/agent-exchange/pkg/registry"
	"github.com/morezero/agent-exchange/pkg/routing"
	"github.com/morezero/agent-exchange/pkg/session"
)

const logPrefix = "supervisor:supervisor"

// Resolver maps a skill id to the agent serving it.
type Resolver interface {
	Resolve(skillID string) (*registry.AgentDescriptor, error)
}

// ClientSource hands out the client for a skill on an agent.
type ClientSource interface {
	Get(agent *registry.AgentDescriptor, skillID string) (*agentclient.Client, error)
}

// Params holds the collaborators of a Supervisor.
type Params struct {
	Registry   Resolver
	Clients    ClientSource
	Store      session.Store
	Classifier routing.Classifier
	Locks      *session.ThreadLocks
	Publisher  events.EventPublisher
	// OnTransition, when set, observes every state change.
	OnTransition TransitionFunc
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Response string
	ThreadID string
	Route    string
}

// Supervisor serves turns. It is safe for concurrent use.
type Supervisor struct {
	registry   Resolver
	clients    ClientSource
	store      session.Store
	classifier routing.Classifier
	locks      *session.ThreadLocks
	publisher  events.EventPublisher
	observe    TransitionFunc
}

// New creates a Supervisor. Locks and Publisher default to a fresh lock table and a no-op publisher.
func New(p Params) (*Supervisor, error) {
	switch {
	case p.Registry == nil:
		return nil, fmt.Errorf("%s - registry is required", logPrefix)
	case p.Clients == nil:
		return nil, fmt.Errorf("%s - client source is required", logPrefix)
	case p.Store == nil:
		return nil, fmt.Errorf("%s - session store is required", logPrefix)
	case p.Classifier == nil:
		return nil, fmt.Errorf("%s - classifier is required", logPrefix)
	}
	s := &Supervisor{
		registry:   p.Registry,
		clients:    p.Clients,
		store:      p.Store,
		classifier: p.Classifier,
		locks:      p.Locks,
		publisher:  p.Publisher,
		observe:    p.OnTransition,
	}
	if s.locks == nil {
		s.locks = session.NewThreadLocks()
	}
	if s.publisher == nil {
		s.publisher = &events.NoOpPublisher{}
	}
	return s, nil
}

// Serve runs one turn on threadID. An empty threadID starts a new thread.
// Failures leave the thread history unchanged.
func (s *Supervisor) Serve(ctx context.Context, prompt, threadID string) (*TurnResult, error) {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return nil, fmt.Errorf("%s - prompt is empty: %w", logPrefix, a2a.ErrInvalidInput)
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	return s.serve(ctx, text, threadID)
}

func (s *Supervisor) serve(ctx context.Context, text, threadID string) (res *TurnResult, err error) {
	start := time.Now()
	ctx, span := tracer.StartSpan(ctx, "supervisor.turn")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("thread_id", threadID))

	st := &turnState{threadID: threadID, current: Idle, observe: s.observe}
	defer func() {
		if err != nil {
			st.to(Failed)
			tracer.RecordError(span, err)
			slog.Warn(fmt.Sprintf("%s - Turn on thread %s failed: %v", logPrefix, threadID, err))
		}
	}()

	unlock, err := s.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to lock thread %s: %w", logPrefix, threadID, err)
	}
	defer unlock()

	history, err := s.store.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load history of thread %s: %w", logPrefix, threadID, err)
	}

	st.to(Classifying)
	decision, err := s.classifier.Classify(ctx, text, history)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to classify: %w", logPrefix, err)
	}
	span.SetAttributes(
		tracer.StringAttr("route", decision.Route()),
		tracer.StringAttr("category", string(decision.Category)),
		tracer.IntAttr("history_len", len(history)),
	)

	var answer, agentID string
	switch decision.Kind {
	case routing.Dispatch:
		st.to(Dispatching)
		answer, agentID, err = s.dispatch(ctx, decision)
		if err != nil {
			return nil, err
		}
	default:
		st.to(Answering)
		answer = decision.Text
	}

	turn := []a2a.Message{
		a2a.NewTextMessage(a2a.RoleUser, text),
		a2a.NewTextMessage(a2a.RoleAgent, answer),
	}
	if err := s.record(ctx, threadID, decision.Route(), turn); err != nil {
		return nil, fmt.Errorf("%s - failed to record turn on thread %s: %w", logPrefix, threadID, err)
	}

	st.to(Completed)
	tracer.SetOK(span)

	s.publish(ctx, &events.TurnCompletedEvent{
		ThreadID:   threadID,
		Route:      decision.Route(),
		Category:   string(decision.Category),
		AgentID:    agentID,
		DurationMs: time.Since(start).Milliseconds(),
		HistoryLen: len(history) + len(turn),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})

	return &TurnResult{Response: answer, ThreadID: threadID, Route: decision.Route()}, nil
}

// dispatch sends the decision payload to the agent that serves its skill.
func (s *Supervisor) dispatch(ctx context.Context, d routing.Decision) (string, string, error) {
	agent, err := s.registry.Resolve(d.SkillID)
	if err != nil {
		return "", "", err
	}
	client, err := s.clients.Get(agent, d.SkillID)
	if err != nil {
		return "", "", err
	}

	var answer string
	switch d.SkillID {
	case bootstrap.SkillWeather:
		var out agentclient.WeatherOutput
		out, err = client.GetWeather(ctx, agentclient.WeatherInput{Location: d.Payload})
		answer = out.Report
	case bootstrap.SkillFlavor:
		var out agentclient.FlavorProfileOutput
		out, err = client.EstimateFlavor(ctx, agentclient.FlavorProfileInput{Prompt: d.Payload})
		answer = out.Profile
	default:
		answer, err = client.Invoke(ctx, d.Payload)
	}
	if err != nil {
		return "", "", fmt.Errorf("%s - %s on %s failed: %w", logPrefix, d.SkillID, agent.ID, err)
	}
	return answer, agent.ID, nil
}

func (s *Supervisor) record(ctx context.Context, threadID, route string, turn []a2a.Message) error {
	if ta, ok := s.store.(session.TurnAppender); ok {
		return ta.AppendTurn(ctx, threadID, route, turn...)
	}
	return s.store.Append(ctx, threadID, turn...)
}

func (s *Supervisor) publish(ctx context.Context, event *events.TurnCompletedEvent) {
	if err := s.publisher.PublishTurnCompleted(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - Failed to publish turn event for thread %s: %v", logPrefix, event.ThreadID, err))
	}
}

// History returns the messages recorded on threadID.
func (s *Supervisor) History(ctx context.Context, threadID string) ([]a2a.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%s - %w", logPrefix, session.ErrEmptyThreadID)
	}
	return s.store.Get(ctx, threadID)
}

func logTransition(threadID string, from, to State) {
	slog.Debug(fmt.Sprintf("%s - Thread %s: %s -> %s", logPrefix, threadID, from, to))
}

// IsInvalidInput reports whether err was caused by the prompt itself.
func IsInvalidInput(err error) bool {
	return errors.Is(err, a2a.ErrInvalidInput)
}
