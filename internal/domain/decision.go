package domain

import "time"

// DecisionLabel is the outcome of evaluating one text.
type DecisionLabel string

const (
	// DecisionDistress means the weighted vote crossed the distress threshold.
	DecisionDistress DecisionLabel = "distress"
	// DecisionNonDistress means the weighted vote crossed the non-distress threshold.
	DecisionNonDistress DecisionLabel = "non_distress"
	// DecisionUncertain means the vote landed between the thresholds, or the
	// pipeline degraded and no vote was possible.
	DecisionUncertain DecisionLabel = "uncertain"
)

// Decision is the result of one evaluate call. The surrounding safety
// workflow always receives a well-formed Decision; infra failures are folded
// into Degraded + ErrorAnnotation instead of propagating.
type Decision struct {
	Label           DecisionLabel `json:"label"`
	Confidence      float64       `json:"confidence"`
	TopMatches      []Match       `json:"top_matches,omitempty"`
	IndexVersion    string        `json:"index_version"`
	Timestamp       time.Time     `json:"timestamp"`
	Degraded        bool          `json:"degraded,omitempty"`
	ErrorAnnotation string        `json:"error_annotation,omitempty"`
}

// DegradedDecision builds the fallback Decision for a failed pipeline run.
// Label is uncertain with zero confidence; the annotation carries the reason.
func DegradedDecision(indexVersion string, err error, now time.Time) Decision {
	return Decision{
		Label:           DecisionUncertain,
		Confidence:      0,
		IndexVersion:    indexVersion,
		Timestamp:       now,
		Degraded:        true,
		ErrorAnnotation: DegradeReason(err),
	}
}
