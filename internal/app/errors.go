package app

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the HTTP layer can report.
type Kind int

const (
	// KindClientInput covers missing files, bad extensions and unreadable forms.
	KindClientInput Kind = iota + 1
	// KindPayloadTooLarge is a client input error with its own status code.
	KindPayloadTooLarge
	// KindDecode means the upload is not a readable image.
	KindDecode
	// KindModelUnavailable means the model failed to load at startup.
	KindModelUnavailable
	// KindInternal is anything unexpected; details stay in the server log.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindDecode:
		return "decode"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind and the message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError returns err as an *Error, treating anything unclassified as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewError(KindInternal, "Internal server error", err)
}
