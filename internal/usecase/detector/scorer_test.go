package detector

import (
	"testing"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

func TestScore_EmptyMatches(t *testing.T) {
	label, confidence := Score(nil, 0.3)
	if label != domain.DecisionUncertain || confidence != 0 {
		t.Fatalf("got (%s, %g), want (uncertain, 0)", label, confidence)
	}
}

func TestScore_AllZeroContributions(t *testing.T) {
	matches := []domain.Match{
		distressMatch("a", 0, 1.0),
		benignMatch("b", 0.5, 0),
	}
	label, confidence := Score(matches, 0.3)
	if label != domain.DecisionUncertain || confidence != 0 {
		t.Fatalf("got (%s, %g), want (uncertain, 0)", label, confidence)
	}
}

func TestScore_HopelessTextScenario(t *testing.T) {
	// 3 distress exemplars (0.9/0.85/0.8) vs 2 benign (0.3/0.2), all weight 1.
	matches := []domain.Match{
		distressMatch("d1", 0.9, 1.0),
		distressMatch("d2", 0.85, 1.0),
		distressMatch("d3", 0.8, 1.0),
		benignMatch("n1", 0.3, 1.0),
		benignMatch("n2", 0.2, 1.0),
	}
	label, confidence := Score(matches, 0.3)
	if label != domain.DecisionDistress {
		t.Fatalf("expected distress, got %s", label)
	}
	if confidence <= 0.3 {
		t.Fatalf("expected confidence > 0.3, got %g", confidence)
	}
}

func TestScore_InclusiveUpperBoundary(t *testing.T) {
	// (0.75 - 0.25) / 1.0 = 0.5 exactly in binary floating point.
	matches := []domain.Match{
		distressMatch("d", 0.75, 1.0),
		benignMatch("n", 0.25, 1.0),
	}
	label, confidence := Score(matches, 0.5)
	if label != domain.DecisionDistress {
		t.Fatalf("score exactly +tau must be distress, got %s", label)
	}
	if confidence != 0.5 {
		t.Fatalf("confidence = %g, want 0.5", confidence)
	}
}

func TestScore_InclusiveLowerBoundary(t *testing.T) {
	matches := []domain.Match{
		benignMatch("n", 0.75, 1.0),
		distressMatch("d", 0.25, 1.0),
	}
	label, confidence := Score(matches, 0.5)
	if label != domain.DecisionNonDistress {
		t.Fatalf("score exactly -tau must be non_distress, got %s", label)
	}
	if confidence != 0.5 {
		t.Fatalf("confidence = %g, want 0.5", confidence)
	}
}

func TestScore_BetweenThresholdsIsUncertain(t *testing.T) {
	matches := []domain.Match{
		distressMatch("d", 0.5, 1.0),
		benignMatch("n", 0.4, 1.0),
	}
	label, _ := Score(matches, 0.5)
	if label != domain.DecisionUncertain {
		t.Fatalf("expected uncertain between thresholds, got %s", label)
	}
}

func TestScore_UnanimousBenign(t *testing.T) {
	matches := []domain.Match{
		benignMatch("n1", 0.9, 1.0),
		benignMatch("n2", 0.7, 1.0),
	}
	label, confidence := Score(matches, 0.3)
	if label != domain.DecisionNonDistress {
		t.Fatalf("expected non_distress, got %s", label)
	}
	if confidence != 1 {
		t.Fatalf("unanimous vote confidence = %g, want 1", confidence)
	}
}

func TestScore_WeightDominates(t *testing.T) {
	// A single heavy distress exemplar outvotes two light benign ones.
	matches := []domain.Match{
		distressMatch("d", 0.8, 1.0),
		benignMatch("n1", 0.8, 0.1),
		benignMatch("n2", 0.8, 0.1),
	}
	label, _ := Score(matches, 0.3)
	if label != domain.DecisionDistress {
		t.Fatalf("expected weighted distress vote, got %s", label)
	}
}

func TestScore_Deterministic(t *testing.T) {
	matches := []domain.Match{
		distressMatch("d1", 0.913, 0.7),
		benignMatch("n1", 0.542, 0.9),
		distressMatch("d2", 0.331, 0.4),
	}
	l1, c1 := Score(matches, 0.3)
	for i := 0; i < 100; i++ {
		l2, c2 := Score(matches, 0.3)
		if l1 != l2 || c1 != c2 {
			t.Fatalf("run %d diverged: (%s, %v) != (%s, %v)", i, l2, c2, l1, c1)
		}
	}
}
