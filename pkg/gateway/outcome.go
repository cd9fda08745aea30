package gateway

import "time"

// Kind classifies how a chat request ended.
type Kind string

const (
	KindModelInfo       Kind = "model_info"
	KindCacheHit        Kind = "cache_hit"
	KindFresh           Kind = "fresh"
	KindValidationError Kind = "validation_error"
	KindRateLimited     Kind = "rate_limited"
	KindUpstreamError   Kind = "upstream_error"
)

// Outcome is the result of one HandleChat call.
//
// Payload holds the model name for KindModelInfo and the assistant text for
// KindCacheHit and KindFresh. Err is set for the three failure kinds.
type Outcome struct {
	Kind       Kind
	Payload    string
	Err        error
	RetryAfter time.Duration
	RequestID  string
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
