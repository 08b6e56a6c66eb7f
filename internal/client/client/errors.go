package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is matched by every *ValidationError. It is raised
	// before any network call.
	ErrValidation = errors.New("validation error")

	// ErrUnauthenticated means no token is stored; no request was sent.
	ErrUnauthenticated = errors.New("not logged in")

	// ErrSessionExpired means the server answered 401 to an authorized
	// call. The token store has already been cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrServerRejected is matched by every *RejectedError.
	ErrServerRejected = errors.New("server rejected request")

	// ErrNetwork covers transport failures where no usable response arrived.
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse is a 2xx response whose body does not match the
	// endpoint schema. It is a kind of ErrNetwork.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrNetwork)

	// ErrInvalidOperation is returned for requests the client refuses to
	// send, e.g. revoking the current session.
	ErrInvalidOperation = errors.New("invalid operation")
)

// ValidationError names the first local rule a form value broke.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RejectedError is a non-2xx answer (or an explicit negative answer) from
// the server. Detail is shown to the user verbatim.
type RejectedError struct {
	Status int
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s (status %d)", ErrServerRejected, e.Status)
}

func (e *RejectedError) Is(target error) bool { return target == ErrServerRejected }

// InvalidOperation builds an ErrInvalidOperation with a reason.
func InvalidOperation(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, reason)
}

func rejected(status int, detail string) *RejectedError {
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &RejectedError{Status: status, Detail: detail}
}
