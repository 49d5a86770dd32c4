package task

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCancelled is returned when the request token was cancelled.
	ErrCancelled = errors.New("request cancelled")
	// ErrTimeout is returned when the request ceiling elapsed first.
	ErrTimeout = errors.New("request timed out")
	// ErrEmptyResponse describes a successful call with a blank reply.
	ErrEmptyResponse = errors.New("empty response from model")
)

// TransportError wraps a provider or network failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports the ceiling that was exceeded.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Kind classifies a request error.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindTimeout
	KindCancelled
)

// Classify returns the kind of err. Unknown errors count as transport
// failures.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindTransport
	}
}
