package domain

// KeyPrefix namespaces all keys this service writes to the database.
const KeyPrefix = "sentinel:"

// ExemplarLabel classifies a reference exemplar.
type ExemplarLabel string

const (
	// LabelDistress marks an exemplar expressing psychological distress.
	LabelDistress ExemplarLabel = "distress"
	// LabelNonDistress marks a benign exemplar.
	LabelNonDistress ExemplarLabel = "non_distress"
)

// Valid reports whether the label is one of the two recognized values.
func (l ExemplarLabel) Valid() bool {
	return l == LabelDistress || l == LabelNonDistress
}

// Sign returns +1 for distress and -1 for non-distress, the vote direction
// the exemplar contributes during scoring.
func (l ExemplarLabel) Sign() float64 {
	if l == LabelDistress {
		return 1
	}
	return -1
}

// Exemplar is a labeled reference text with its embedding, stored in the
// corpus index. Immutable once indexed except via explicit re-upsert.
// Category is informational severity metadata from curation ("red", "yellow"
// or empty); the scorer ignores it.
type Exemplar struct {
	ID       string
	Text     string
	Vector   []float32
	Label    ExemplarLabel
	Weight   float64
	Category string
}

// Match is a single top-K neighbor returned by the corpus index.
// Similarity is cosine similarity clamped to [0,1]. Transient, never persisted.
type Match struct {
	ExemplarID string        `json:"exemplar_id"`
	Similarity float64       `json:"similarity"`
	Label      ExemplarLabel `json:"label"`
	Weight     float64       `json:"weight"`
	Category   string        `json:"category,omitempty"`
	Text       string        `json:"text,omitempty"`
}
