package domain

import "fmt"

// Common domain errors
var (
	ErrNotFound     = NewError("not found", 404)
	ErrInvalidInput = NewError("invalid input", 400)
	ErrInternal     = NewError("internal server error", 500)
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// UnknownPeerError indicates that a call referenced a namespace with no
// connected peer.
type UnknownPeerError struct {
	Namespace string
	Err       *Error
}

// Error returns the error message.
func (e *UnknownPeerError) Error() string {
	return e.Err.Error()
}

// NewUnknownPeerError creates a new UnknownPeerError.
func NewUnknownPeerError(namespace string) *UnknownPeerError {
	return &UnknownPeerError{
		Namespace: namespace,
		Err: NewError(
			fmt.Sprintf("peer %s not connected", namespace),
			404,
		),
	}
}

// PeerCallError wraps a failure of a single tool call on one peer.
type PeerCallError struct {
	Namespace string
	Tool      string
	Err       error
}

// Error returns the error message.
func (e *PeerCallError) Error() string {
	return fmt.Sprintf("call %s on peer %s: %v", e.Tool, e.Namespace, e.Err)
}

// Unwrap returns the underlying error.
func (e *PeerCallError) Unwrap() error {
	return e.Err
}

// NewPeerCallError creates a new PeerCallError.
func NewPeerCallError(namespace, tool string, err error) *PeerCallError {
	return &PeerCallError{
		Namespace: namespace,
		Tool:      tool,
		Err:       err,
	}
}

// SessionNotFoundError indicates that a requested session was not found.
type SessionNotFoundError struct {
	ID  string
	Err *Error
}

// Error returns the error message.
func (e *SessionNotFoundError) Error() string {
	return e.Err.Error()
}

// NewSessionNotFoundError creates a new SessionNotFoundError.
func NewSessionNotFoundError(id string) *SessionNotFoundError {
	return &SessionNotFoundError{
		ID: id,
		Err: NewError(
			fmt.Sprintf("session with ID %s not found", id),
			404,
		),
	}
}

// BadRequestError indicates a sessionless request that does not start a
// session.
type BadRequestError struct {
	Err *Error
}

// Error returns the error message.
func (e *BadRequestError) Error() string {
	return e.Err.Error()
}

// NewBadRequestError creates a new BadRequestError.
func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		Err: NewError(message, 400),
	}
}

// ValidationError indicates that input validation failed.
type ValidationError struct {
	Field   string
	Message string
	Err     *Error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Err.Error()
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err: NewError(
			fmt.Sprintf("validation failed for field %s: %s", field, message),
			400,
		),
	}
}
