package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrOrchestration    = errors.New("orchestration error")
	ErrProtocol         = errors.New("protocol error")
	ErrSessionLifecycle = errors.New("session lifecycle error")
)

// Predeclared failures.
var (
	ErrAgentDidNotAct  = &Error{Kind: ErrOrchestration, Code: "agent_did_not_act", Message: "agent failed to act"}
	ErrSessionClosed   = &Error{Kind: ErrSessionLifecycle, Code: "session_closed", Message: "session closed"}
	ErrSessionNotFound = &Error{Kind: ErrSessionLifecycle, Code: "session_missing", Message: "no active session"}
)

// Error is a classified failure carrying a wire code.
type Error struct {
	Kind    error  `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind and predeclared errors with the same code.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind && t.Code == e.Code
	}
	return false
}

// Payload converts the error to an ERROR notification payload.
func (e *Error) Payload() ErrorPayload {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return ErrorPayload{Code: e.Code, Message: msg}
}

// NewValidationError reports an input the game rules refuse. code is the
// rejection reason.
func NewValidationError(code, msg string) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: msg}
}

// NewProtocolError reports a malformed inbound payload.
func NewProtocolError(msg string, err error) *Error {
	return &Error{Kind: ErrProtocol, Code: "protocol_error", Message: msg, Err: err}
}

// NewOrchestrationError reports a decision-process failure.
func NewOrchestrationError(msg string, err error) *Error {
	return &Error{Kind: ErrOrchestration, Code: "agent_error", Message: msg, Err: err}
}

// AsError classifies any error, defaulting to an orchestration error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewOrchestrationError("agent error", err)
}
