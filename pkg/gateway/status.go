package gateway

import "net/http"

// Messages returned to end users for failures that must not leak detail.
const (
	MessageRateLimited   = "Rate limit exceeded"
	MessageUpstreamError = "Failed to get response from LLM"
)

// StatusCode maps an outcome kind to the HTTP status the boundary returns.
func StatusCode(k Kind) int {
	switch k {
	case KindValidationError:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUpstreamError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func statusFor(o Outcome) int {
	return StatusCode(o.Kind)
}
