// Package validate checks inbound chat bodies before they reach the gateway.
package validate

import (
	"encoding/json"
	"errors"
	"unicode/utf8"
)

const (
	// MaxMessageLength is the longest accepted message, in characters.
	MaxMessageLength = 4000

	// ModelInfoCommand asks for the configured model name instead of a completion.
	ModelInfoCommand = "!modelinfo"
)

// Reasons reported to the caller.
const (
	ReasonMissing = "message is required and must be text"
	ReasonTooLong = "message too long"
)

// ErrInvalidInput matches every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError describes why a message was rejected. Reason is safe to
// show to end users.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Body decodes a JSON object and validates its "message" field.
func Body(raw []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return "", &InvalidInputError{Reason: ReasonMissing}
	}
	return Message(body["message"])
}

// Message validates an already decoded message value. The text is returned
// unchanged.
func Message(v any) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &InvalidInputError{Reason: ReasonMissing}
	}
	if utf8.RuneCountInString(s) > MaxMessageLength {
		return "", &InvalidInputError{Reason: ReasonTooLong}
	}
	return s, nil
}
