package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes raw input text: Unicode case-folding, whitespace
// collapsed to single spaces, and truncation to maxRunes (0 = no limit).
// Deterministic and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string, maxRunes int) string {
	folded := strings.ToLower(text)
	collapsed := strings.Join(strings.Fields(folded), " ")

	if maxRunes <= 0 {
		return collapsed
	}

	runes := []rune(collapsed)
	if len(runes) <= maxRunes {
		return collapsed
	}
	// Trim after the cut so a trailing space can't survive and break idempotence.
	return strings.TrimSpace(string(runes[:maxRunes]))
}

// Fingerprint hashes normalized text into the cache key.
func Fingerprint(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
