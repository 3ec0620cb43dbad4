package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by both command-line steps.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAuthentication  = errors.New("authentication failed")
	ErrRemote          = errors.New("remote error")
	ErrInvalidInput    = errors.New("invalid input")
)

// Process exit codes per error class.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitAuthentication  = 3
	ExitRemote          = 4
	ExitInvalidInput    = 5
)

// RemoteError describes a failed Umbrella API call.
// StatusCode is zero when no HTTP response was received.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// NewRemoteError builds a RemoteError for a response status. 401 and 403
// classify as authentication failures, everything else as remote failures.
func NewRemoteError(op string, status int, message string) *RemoteError {
	base := ErrRemote
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		base = ErrAuthentication
	}
	return &RemoteError{Op: op, StatusCode: status, Message: message, Err: base}
}

func (e *RemoteError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && e.Err != ErrRemote && e.Err != ErrAuthentication {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the taxonomy sentinel (or the transport cause) to errors.Is.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	if errors.Is(e.Err, ErrAuthentication) || errors.Is(e.Err, ErrRemote) {
		return []error{e.Err}
	}
	return []error{ErrRemote, e.Err}
}

// ExitCode maps an error onto the process exit code for its class.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidArgument):
		return ExitInvalidArgument
	case errors.Is(err, ErrAuthentication):
		return ExitAuthentication
	case errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, ErrRemote):
		return ExitRemote
	default:
		return ExitFailure
	}
}
