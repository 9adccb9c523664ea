package archive

import (
	"regexp"
	"strings"
)

var (
	addressStrip  = []string{"(", ")", "-", " ", "+", "+1", "."}
	leadingOneExp = regexp.MustCompile(`^1`)
)

// NormalizeAddress canonicalizes a phone-number-like identifier. Malformed
// input is not rejected; it passes through the same deterministic rules.
// The rules repeat until the output is stable, so every leading 1 is removed:
// "11555" becomes "555", not "1555".
func NormalizeAddress(raw string) string {
	out := normalizeOnce(raw)
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(s string) string {
	for _, cut := range addressStrip {
		s = strings.ReplaceAll(s, cut, "")
	}
	s = leadingOneExp.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
