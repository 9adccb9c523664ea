package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "5551234567",
		"555.123.4567":      "5551234567",
		"1-555-123-4567":    "5551234567",
		"15551234567":       "5551234567",
		"  5551234567  ":    "5551234567",
		"5551234567":        "5551234567",
		"+44 20 7946 0958":  "442079460958",
		"11555":             "555",
		"":                  "",
		"()- .":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAddress(in), "input %q", in)
	}
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	inputs := []string{
		"+1 (555) 123-4567", "11555", "1 1 555", "\t1555", "+1+1 555",
		"alice@example.com", "Insert-Address-Token", "1", "111", "",
	}
	for _, in := range inputs {
		once := NormalizeAddress(in)
		assert.Equal(t, once, NormalizeAddress(once), "input %q", in)
	}
}
