// Package routing decides where a turn goes: to a worker agent skill or to a
// locally synthesized answer.
package routing

import (
	"context"

	"github.com/morezero/agent-exchange/pkg/a2a"
)

// Kind says whether a decision dispatches or answers locally.
type Kind int

const (
	Dispatch Kind = iota
	Local
)

func (k Kind) String() string {
	if k == Dispatch {
		return "dispatch"
	}
	return "local"
}

// Category is the classified intent of a turn.
type Category string

const (
	CategorySessionContext Category = "session_context"
	CategoryWeather        Category = "weather"
	CategoryFlavor         Category = "flavor"
	CategoryCapability     Category = "capability"
	CategoryUnknown        Category = "unknown"
)

// Decision is the outcome of classifying one turn.
// Dispatch decisions carry SkillID and Payload; Local decisions carry Text.
type Decision struct {
	Kind     Kind
	Category Category
	SkillID  string
	Payload  string
	Text     string
}

// Route names the destination for logs and events.
func (d Decision) Route() string {
	if d.Kind == Dispatch {
		return d.SkillID
	}
	return string(d.Category)
}

// Classifier maps a turn's text and the thread history to a Decision.
type Classifier interface {
	Classify(ctx context.Context, text string, history []a2a.Message) (Decision, error)
}
