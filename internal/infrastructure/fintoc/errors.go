package fintoc

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is wrapped by every error returned while the client has no API key.
var ErrNotConfigured = errors.New("fintoc api key not configured")

// Kind classifies failures at the client boundary.
type Kind int

const (
	// KindConfiguration means the client has no API key; no request was sent.
	KindConfiguration Kind = iota + 1
	// KindProvider means the provider answered with an unexpected status.
	KindProvider
	// KindTransport means the request never produced a response (timeout, refused connection).
	KindTransport
	// KindDataShape means a successful response lacked a required field or was not valid JSON.
	KindDataShape
	// KindInvalidInput means the caller's arguments were rejected before any request.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProvider:
		return "provider"
	case KindTransport:
		return "transport"
	case KindDataShape:
		return "data_shape"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by Client operations.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int    // provider HTTP status, KindProvider only
	Body       string // truncated provider response body, KindProvider only
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindProvider && e.Body != "":
		return fmt.Sprintf("fintoc %s: provider returned status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Kind == KindProvider:
		return fmt.Sprintf("fintoc %s: provider returned status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fintoc %s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fintoc %s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func providerError(op string, status int, body []byte) *Error {
	return &Error{Kind: KindProvider, Op: op, StatusCode: status, Body: truncate(body)}
}

// KindOf returns the Kind of err, or 0 when err did not come from this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// StatusOf returns the provider status carried by err, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindProvider && StatusOf(err) == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	return KindOf(err) == KindProvider && StatusOf(err) == http.StatusUnauthorized
}

func IsForbidden(err error) bool {
	return KindOf(err) == KindProvider && StatusOf(err) == http.StatusForbidden
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
