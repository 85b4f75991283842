package domain

import "errors"

var (
	// ErrInvalidInput signals a caller error (empty or oversized text). Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable signals a transient embedding provider failure.
	ErrUpstreamUnavailable = errors.New("embedding provider unavailable")
	// ErrUpstreamRateLimited signals a quota rejection from the embedding provider.
	ErrUpstreamRateLimited = errors.New("embedding provider rate limited")
	// ErrIndexUnavailable signals a corpus index backend failure.
	ErrIndexUnavailable = errors.New("corpus index unavailable")
	// ErrAdmissionTimeout signals local saturation: no rate token arrived in time.
	ErrAdmissionTimeout = errors.New("admission timeout")
	// ErrDimensionMismatch signals configuration/version skew between the query
	// vector and the index. Fatal: must reach operators, never silently swallowed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// DegradeReason converts a pipeline error into the annotation recorded on a
// degraded Decision. Downstream consumers use it to tell infra degradation
// apart from a genuine low-confidence classification.
func DegradeReason(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamRateLimited):
		return "upstream_rate_limited"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrAdmissionTimeout):
		return "admission_timeout"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrEmbeddingQuotaExceeded):
		return "embedding_quota_exceeded"
	default:
		return "internal_error"
	}
}
