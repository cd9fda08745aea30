package upstream

import (
	"errors"
	"fmt"
)

// ErrUpstream matches every *Error via errors.Is.
var ErrUpstream = errors.New("upstream error")

// Kind classifies an upstream failure.
type Kind string

const (
	KindStatus    Kind = "status"
	KindTimeout   Kind = "timeout"
	KindDecode    Kind = "decode"
	KindNoChoices Kind = "no_choices"
	KindTransport Kind = "transport"
)

// Error is a failed completion call. The detail is meant for logs and the
// audit trail, not for end users.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
	case KindTimeout:
		return "upstream request timed out"
	case KindDecode:
		return fmt.Sprintf("decode failure: %v", e.Err)
	case KindNoChoices:
		return "no response choices returned"
	default:
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrUpstream.
func (e *Error) Is(target error) bool { return target == ErrUpstream }
