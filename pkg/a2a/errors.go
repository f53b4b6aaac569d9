package a2a

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers match with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownSkill         = errors.New("unknown skill")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrRemoteTimeout        = errors.New("remote timeout")
	ErrProtocolError        = errors.New("protocol error")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrComputationFailed    = errors.New("computation failed")
)

// RemoteAgentError is an error reported by a worker agent in its response.
type RemoteAgentError struct {
	Code    string
	Message string
}

func (e *RemoteAgentError) Error() string {
	return fmt.Sprintf("remote agent error (%s): %s", e.Code, e.Message)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
