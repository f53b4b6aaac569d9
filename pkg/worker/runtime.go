// Package worker hosts skills behind the request/response envelope contract.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/morezero/agent-exchange/internal/tracer"
	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/bootstrap"
)

const logPrefix = "worker:runtime"

// Skill executes one skill on a text payload.
type Skill interface {
	Execute(ctx context.Context, input string) (string, error)
}

// SkillFunc adapts a function to Skill.
type SkillFunc func(ctx context.Context, input string) (string, error)

// Execute calls f.
func (f SkillFunc) Execute(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Runtime dispatches envelopes to the skills of one agent.
type Runtime struct {
	card   bootstrap.AgentCard
	skills map[string]Skill
}

// NewRuntime creates a runtime for card. Every skill must be advertised by the card.
func NewRuntime(card bootstrap.AgentCard, skills map[string]Skill) (*Runtime, error) {
	if len(skills) == 0 {
		return nil, fmt.Errorf("%s - agent %s has no skills", logPrefix, card.ID)
	}
	advertised := make(map[string]bool, len(card.Skills))
	for _, s := range card.Skills {
		advertised[s.ID] = true
	}
	registered := make(map[string]Skill, len(skills))
	for id, skill := range skills {
		if !advertised[id] {
			return nil, fmt.Errorf("%s - skill %s is not advertised by agent %s", logPrefix, id, card.ID)
		}
		if skill == nil {
			return nil, fmt.Errorf("%s - skill %s has no implementation", logPrefix, id)
		}
		registered[id] = skill
	}
	return &Runtime{card: card, skills: registered}, nil
}

// Card returns the agent card served by the runtime.
func (r *Runtime) Card() bootstrap.AgentCard {
	return r.card
}

// Handle runs the requested skill and always returns a response envelope.
func (r *Runtime) Handle(ctx context.Context, req *a2a.RequestEnvelope) *a2a.ResponseEnvelope {
	if req == nil {
		return a2a.ErrorResponse("", a2a.CodeInvalidRequest, "Request is empty")
	}

	ctx, span := tracer.StartSpan(ctx, "worker.handle")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("agent_id", r.card.ID),
		tracer.StringAttr("skill_id", req.SkillID),
		tracer.StringAttr("request_id", req.ID),
	)

	resp := r.handle(ctx, req)
	if resp.Error != nil {
		tracer.RecordError(span, &a2a.RemoteAgentError{Code: resp.Error.Code, Message: resp.Error.Message})
	} else {
		tracer.SetOK(span)
	}
	return resp
}

func (r *Runtime) handle(ctx context.Context, req *a2a.RequestEnvelope) *a2a.ResponseEnvelope {
	slog.Debug(fmt.Sprintf("%s - method=%s skill=%s id=%s", logPrefix, req.Method, req.SkillID, req.ID))

	if req.Method == a2a.MethodCancel {
		return a2a.ErrorResponse(req.ID, a2a.CodeUnsupportedOperation, r.Cancel(ctx, req.ID).Error())
	}
	if req.Method != "" && req.Method != a2a.MethodSend {
		return a2a.ErrorResponse(req.ID, a2a.CodeInvalidRequest, fmt.Sprintf("Unknown method: %s", req.Method))
	}
	if err := req.Validate(); err != nil {
		return a2a.ErrorResponse(req.ID, a2a.CodeInvalidRequest, "Request must contain a message with text")
	}

	skill, ok := r.lookup(req.SkillID)
	if !ok {
		return a2a.ErrorResponse(req.ID, a2a.CodeInvalidRequest, fmt.Sprintf("Unknown skill: %s", req.SkillID))
	}

	payload := req.Message.Text()
	if strings.TrimSpace(payload) == "" {
		return a2a.ErrorResponse(req.ID, a2a.CodeInvalidInput, "Input is empty")
	}

	out, err := r.execute(ctx, skill, payload)
	if err != nil {
		return skillErrorToResponse(req.ID, err)
	}
	if strings.TrimSpace(out) == "" {
		return a2a.ErrorResponse(req.ID, a2a.CodeComputationFailed, "Skill produced no output")
	}
	return a2a.ResultResponse(req.ID, out)
}

// Cancel is not supported; every call fails with ErrUnsupportedOperation.
func (r *Runtime) Cancel(_ context.Context, taskID string) error {
	return fmt.Errorf("%w: cancel is not supported (task %s)", a2a.ErrUnsupportedOperation, taskID)
}

// lookup resolves the skill id. An empty id selects the only skill of a single-skill agent.
func (r *Runtime) lookup(skillID string) (Skill, bool) {
	if skillID == "" && len(r.skills) == 1 {
		for _, s := range r.skills {
			return s, true
		}
	}
	s, ok := r.skills[skillID]
	return s, ok
}

func (r *Runtime) execute(ctx context.Context, skill Skill, payload string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error(fmt.Sprintf("%s - skill panicked: %v\n%s", logPrefix, rec, debug.Stack()))
			err = fmt.Errorf("%s - skill panicked: %v", logPrefix, rec)
		}
	}()
	return skill.Execute(ctx, payload)
}

func skillErrorToResponse(id string, err error) *a2a.ResponseEnvelope {
	switch {
	case errors.Is(err, a2a.ErrInvalidInput):
		return a2a.ErrorResponse(id, a2a.CodeInvalidInput, callerMessage(err))
	case errors.Is(err, a2a.ErrComputationFailed):
		return a2a.ErrorResponse(id, a2a.CodeComputationFailed, callerMessage(err))
	default:
		slog.Error(fmt.Sprintf("%s - skill failed: %v", logPrefix, err))
		return a2a.ErrorResponse(id, a2a.CodeInternalError, "Internal error")
	}
}
