package detector

import "github.com/kailas-cloud/sentinel/internal/domain"

// Score aggregates top-K matches into a weighted vote.
//
// Each match contributes similarity × weight × sign(label), distress voting
// +1 and non-distress -1. The sum is normalized by Σ|similarity × weight|,
// landing the score in [-1, 1]. Thresholds are inclusive: score ≥ +tau is
// distress, score ≤ -tau is non-distress, anything between is uncertain.
// Confidence is |score|.
//
// Pure and deterministic: identical matches always produce an identical
// result, which cache correctness depends on.
func Score(matches []domain.Match, tau float64) (domain.DecisionLabel, float64) {
	var vote, norm float64
	for _, m := range matches {
		contribution := m.Similarity * m.Weight
		vote += contribution * m.Label.Sign()
		norm += abs(contribution)
	}

	if norm == 0 {
		// Empty corpus or all-zero contributions: no evidence either way.
		return domain.DecisionUncertain, 0
	}

	score := vote / norm
	confidence := abs(score)

	switch {
	case score >= tau:
		return domain.DecisionDistress, confidence
	case score <= -tau:
		return domain.DecisionNonDistress, confidence
	default:
		return domain.DecisionUncertain, confidence
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
