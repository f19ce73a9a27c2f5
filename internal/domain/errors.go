package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the controller recovers from.
type ErrorKind string

const (
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindCaptureUnsupported ErrorKind = "capture_unsupported"
	KindNetworkFailure     ErrorKind = "network_failure"
	KindServerRejected     ErrorKind = "server_rejected"
	KindMalformedResponse  ErrorKind = "malformed_response"
	KindCaptureFailed      ErrorKind = "capture_failed"
	KindInvalidDraft       ErrorKind = "invalid_draft"
)

var (
	ErrPermissionDenied   = errors.New("microphone permission denied")
	ErrCaptureUnsupported = errors.New("audio capture not supported")
)

type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NetworkFailure(op string, cause error) *Error {
	return NewError(KindNetworkFailure, op, cause)
}

func ServerRejected(op string, cause error) *Error {
	return NewError(KindServerRejected, op, cause)
}

func MalformedResponse(op string, cause error) *Error {
	return NewError(KindMalformedResponse, op, cause)
}

// KindOf returns the kind of err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrCaptureUnsupported):
		return KindCaptureUnsupported
	}
	return ""
}

// UserMessage is the status line shown for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindPermissionDenied:
		return "Microphone access denied"
	case KindCaptureUnsupported:
		return "Voice recording is not supported on this device"
	case KindNetworkFailure:
		return "Could not reach the server. Please try again."
	case KindServerRejected, KindMalformedResponse:
		return "Error processing audio"
	case KindCaptureFailed:
		return "Failed to stop recording"
	case KindInvalidDraft:
		return "Please fill in all product details"
	default:
		return "Something went wrong"
	}
}
