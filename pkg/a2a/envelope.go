// Package a2a defines the request/response contract carried between the
// exchange supervisor and worker agents, independent of the transport.
package a2a

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Methods.
const (
	MethodSend   = "message/send"
	MethodCancel = "tasks/cancel"
)

// Error codes carried in ErrorDetail.Code.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidInput         = "invalid_input"
	CodeComputationFailed    = "computation_failed"
	CodeInternalError        = "internal_error"
	CodeUnsupportedOperation = "unsupported_operation"
)

// Part is one piece of message content. Only text is supported.
type Part struct {
	Text string `json:"text"`
}

// Message is an immutable conversation entry.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a single-part message with a fresh id.
func NewTextMessage(role, text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  role,
		Parts: []Part{{Text: text}},
	}
}

// Text joins the message's text parts.
func (m Message) Text() string {
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

// IsEmpty reports whether the message has no parts or only blank parts.
func (m *Message) IsEmpty() bool {
	if m == nil {
		return true
	}
	for _, p := range m.Parts {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// RequestEnvelope is the JSON envelope sent to a worker agent.
type RequestEnvelope struct {
	ID         string   `json:"id"`
	Method     string   `json:"method,omitempty"`
	SkillID    string   `json:"skill_id"`
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	Message    *Message `json:"message"`
}

// Validate checks the envelope carries a non-empty message.
func (r *RequestEnvelope) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.Message == nil || len(r.Message.Parts) == 0 || r.Message.IsEmpty() {
		return fmt.Errorf("%w: message has no content", ErrInvalidRequest)
	}
	return nil
}

// Result holds the successful output of a skill.
type Result struct {
	Parts []Part `json:"parts"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseEnvelope is the JSON envelope returned by a worker agent.
// Exactly one of Result and Error is set.
type ResponseEnvelope struct {
	ID     string       `json:"id,omitempty"`
	Result *Result      `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// Validate enforces the result-xor-error invariant.
func (r *ResponseEnvelope) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil response", ErrProtocolError)
	}
	switch {
	case r.Result != nil && r.Error != nil:
		return fmt.Errorf("%w: response carries both result and error", ErrProtocolError)
	case r.Result == nil && r.Error == nil:
		return fmt.Errorf("%w: response carries neither result nor error", ErrProtocolError)
	}
	return nil
}

// ResultResponse builds a successful single-text-part response.
func ResultResponse(id, text string) *ResponseEnvelope {
	return &ResponseEnvelope{ID: id, Result: &Result{Parts: []Part{{Text: text}}}}
}

// ErrorResponse builds an error response.
func ErrorResponse(id, code, message string) *ResponseEnvelope {
	return &ResponseEnvelope{ID: id, Error: &ErrorDetail{Code: code, Message: message}}
}
