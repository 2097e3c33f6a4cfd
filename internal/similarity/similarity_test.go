package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"acme", "acme", 0},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"ab", "ba", 2}, // transposition costs two edits
		{"acme corp", "acme co", 2},
		{"café", "cafe", 1}, // counted in runes, not bytes
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b), "Distance(%q, %q)", tt.a, tt.b)
		assert.Equal(t, tt.want, Distance(tt.b, tt.a), "Distance(%q, %q) symmetric", tt.b, tt.a)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"", "acme", 0},
		{"acme", "", 0},
		{"Acme Ltd", "acme ltd", 100},
		{"  acme  ", "acme", 100},
		{"kitten", "sitting", (1 - 3.0/7.0) * 100},
		{"abcd", "wxyz", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 0.0001, "Ratio(%q, %q)", tt.a, tt.b)
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100, Score("ACME", "acme"))
	assert.Equal(t, 57, Score("kitten", "sitting"))
	assert.Equal(t, 75, Score("acme", "acne"))
	assert.Equal(t, 0, Score("", "x"))
}
