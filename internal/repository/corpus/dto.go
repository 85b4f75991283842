package corpus

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/sentinel/internal/db"
	"github.com/kailas-cloud/sentinel/internal/domain"
)

func validateExemplar(ex *domain.Exemplar, dimension int) error {
	if ex.ID == "" {
		return fmt.Errorf("exemplar id is required: %w", domain.ErrInvalidInput)
	}
	if !ex.Label.Valid() {
		return fmt.Errorf("exemplar %s has unknown label %q: %w", ex.ID, ex.Label, domain.ErrInvalidInput)
	}
	if ex.Weight <= 0 || ex.Weight > 1 {
		return fmt.Errorf("exemplar %s weight %g outside (0,1]: %w", ex.ID, ex.Weight, domain.ErrInvalidInput)
	}
	if len(ex.Vector) != dimension {
		return fmt.Errorf("exemplar %s vector has %d dimensions, index expects %d: %w",
			ex.ID, len(ex.Vector), dimension, domain.ErrDimensionMismatch)
	}
	return nil
}

func exemplarFields(ex *domain.Exemplar) map[string]string {
	fields := map[string]string{
		"label":  string(ex.Label),
		"weight": strconv.FormatFloat(ex.Weight, 'f', -1, 64),
		"text":   ex.Text,
		"vector": vectorToBytes(ex.Vector),
	}
	if ex.Category != "" {
		fields["category"] = ex.Category
	}
	return fields
}

func matchFromEntry(entry db.SearchEntry, prefix string) (domain.Match, bool) {
	label := domain.ExemplarLabel(entry.Fields["label"])
	if !label.Valid() {
		return domain.Match{}, false
	}

	weight, err := strconv.ParseFloat(entry.Fields["weight"], 64)
	if err != nil || weight <= 0 {
		return domain.Match{}, false
	}

	return domain.Match{
		ExemplarID: strings.TrimPrefix(entry.Key, prefix),
		Similarity: entry.Score,
		Label:      label,
		Weight:     weight,
		Category:   entry.Fields["category"],
		Text:       entry.Fields["text"],
	}, true
}

// vectorToBytes serializes a []float32 as little-endian FLOAT32 hash field bytes.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
