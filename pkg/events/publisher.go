package events

import "context"

// EventPublisher publishes turn events.
type EventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event *TurnCompletedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing.
type NoOpPublisher struct{}

// PublishTurnCompleted is a no-op.
func (p *NoOpPublisher) PublishTurnCompleted(_ context.Context, _ *TurnCompletedEvent) error {
	return nil
}

// CallbackPublisher hands events to a function. Used in tests.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *TurnCompletedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *TurnCompletedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishTurnCompleted calls the callback.
func (p *CallbackPublisher) PublishTurnCompleted(ctx context.Context, event *TurnCompletedEvent) error {
	return p.callback(ctx, event)
}
