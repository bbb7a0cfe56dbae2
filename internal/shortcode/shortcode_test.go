package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"zero", 0, "0"},
		{"single digit", 5, "5"},
		{"nine", 9, "9"},
		{"ten becomes 'A'", 10, "A"},
		{"thirty-five becomes 'Z'", 35, "Z"},
		{"thirty-six becomes 'a'", 36, "a"},
		{"sixty-one becomes 'z'", 61, "z"},
		{"sixty-two rolls over", 62, "10"},
		{"large value", 3844, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(tt.input))
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 61, 62, 12345, 1 << 47} {
		assert.Equal(t, n, Decode(Encode(n)))
	}
}

func isBase62(s string) bool {
	for _, c := range s {
		ok := (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if !ok {
			return false
		}
	}
	return len(s) > 0
}

func TestGenerateDeterministic(t *testing.T) {
	first := Generate("https://example.com", nil)
	second := Generate("https://example.com", map[string]struct{}{})

	assert.Equal(t, first, second)
	assert.True(t, isBase62(first))
	assert.LessOrEqual(t, len(first), 10)
}

func TestGenerateDistinctURLs(t *testing.T) {
	a := Generate("https://example.com/a", nil)
	b := Generate("https://example.com/b", nil)
	assert.NotEqual(t, a, b)
}

func TestGenerateCollisionResolution(t *testing.T) {
	base := Generate("https://a.test", nil)

	existing := map[string]struct{}{base: {}}
	next := Generate("https://a.test", existing)

	require.NotEqual(t, base, next)
	assert.True(t, isBase62(next))
	assert.True(t, strings.HasPrefix(next, base))

	// Chained collisions keep producing unused codes.
	existing[next] = struct{}{}
	third := Generate("https://a.test", existing)
	_, taken := existing[third]
	assert.False(t, taken)
	assert.True(t, isBase62(third))
}

func TestWithSuffix(t *testing.T) {
	base := Generate("https://a.test", nil)

	assert.Equal(t, base, WithSuffix("https://a.test", 0))
	assert.Equal(t, base+"1", WithSuffix("https://a.test", 1))
	assert.Equal(t, base+"2", WithSuffix("https://a.test", 2))
}
