package worker

import "errors"

// SkillError is a skill failure whose message is safe to return to the caller.
// Kind is a2a.ErrInvalidInput or a2a.ErrComputationFailed.
type SkillError struct {
	Kind    error
	Message string
}

func (e *SkillError) Error() string { return e.Message }

func (e *SkillError) Unwrap() error { return e.Kind }

// Fail returns a SkillError of the given kind.
func Fail(kind error, message string) error {
	return &SkillError{Kind: kind, Message: message}
}

// callerMessage returns the message reported on the wire for err.
func callerMessage(err error) string {
	var se *SkillError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
