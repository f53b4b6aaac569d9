package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/agent-exchange/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// Subject overrides the base subject (TURN_EVENT_SUBJECT).
	Subject string
}

// CommsPublisher publishes turn events to NATS.
type CommsPublisher struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectTurnCompleted
	if opts != nil && opts.Subject != "" {
		subject = opts.Subject
	}
	return &CommsPublisher{nc: nc, subject: subject}
}

// PublishTurnCompleted publishes to the per-route subject and then the base subject.
func (p *CommsPublisher) PublishTurnCompleted(_ context.Context, event *TurnCompletedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	routeSubject := commsutil.BuildTurnSubject(p.subject, event.Route)
	if err := p.nc.Publish(routeSubject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", commsPublisherLogPrefix, routeSubject, err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", commsPublisherLogPrefix, p.subject, err)
	}

	slog.Debug(fmt.Sprintf("%s - Published turn event for thread %s (route %s)", commsPublisherLogPrefix, event.ThreadID, event.Route))
	return nil
}
