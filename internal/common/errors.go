package common

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote API calls. Every *APIError matches exactly one of
// them through errors.Is, so callers can branch without inspecting status codes.
var (
	// ErrUnauthenticated: no token, or the server rejected it (401).
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden: authenticated but not allowed, e.g. not the blog's author (403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: the requested entity does not exist (404).
	ErrNotFound = errors.New("resource not found")

	// ErrValidation: field constraints violated, client-side or server-side (400, 422).
	ErrValidation = errors.New("validation failed")

	// ErrNetwork: no response was received.
	ErrNetwork = errors.New("network unreachable")

	// ErrServer: 5xx, an unexpected status, or an undecodable payload.
	ErrServer = errors.New("server error")
)

// GenericFailureMessage is shown when the server did not supply a message.
const GenericFailureMessage = "operation failed"

type ErrorKind int

const (
	KindServer ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation error"
	case KindNetwork:
		return "network error"
	default:
		return "server error"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrServer
	}
}

// KindForStatus maps an HTTP error status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case 401:
		return KindUnauthenticated
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 400, 422:
		return KindValidation
	default:
		return KindServer
	}
}

// APIError is the normalized failure of a remote call.
type APIError struct {
	Kind ErrorKind
	// Status is zero when no response was received.
	Status  int
	Message string
	// Fields holds per-field messages when the server reported them.
	Fields map[string]string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewUnauthenticatedError is returned by protected calls issued without a token.
func NewUnauthenticatedError() error {
	return &APIError{Kind: KindUnauthenticated, Message: "you must be logged in to perform this action"}
}

// KindOf reports the kind of a remote or validation failure.
func KindOf(err error) (ErrorKind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation, true
	}

	return 0, false
}

// UserMessage returns the text to show for err in a transient notification.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		for _, field := range []string{"title", "content", "image", "name", "email", "password", "token", "user"} {
			if msg, ok := validationErr.Errors[field]; ok {
				return field + " " + msg
			}
		}
		for field, msg := range validationErr.Errors {
			return field + " " + msg
		}
	}

	return GenericFailureMessage
}
