package coclust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValueEncodingScenario5 checks spec.md §8 scenario 5's two worked
// examples exactly.
func TestValueEncodingScenario5(t *testing.T) {
	decoded, err := DecodeWord("ann{E9}e")
	require.NoError(t, err)
	require.Len(t, decoded, 5)
	assert.Equal(t, []byte{'a', 'n', 'n', 0xE9, 'e'}, decoded)
	assert.Equal(t, "ann{E9}e", EncodeWord(decoded), "re-encoding must return the same literal")

	decoded2, err := DecodeWord("bonjour{{et}")
	require.NoError(t, err)
	assert.Equal(t, "bonjour{et", string(decoded2))
}

// TestValueEncodingRoundTrip checks spec.md §8 R2: word ∘ byte_string = id
// and byte_string ∘ word = id for a variety of byte strings, including
// plain ASCII, literal braces, and raw non-ASCII bytes.
func TestValueEncodingRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("plain ascii value"),
		[]byte("a{b"),
		[]byte("{leading brace"),
		[]byte("trailing brace}"),
		{0x00, 0x01, 0xFF, 0xE9},
		[]byte("mixed{E9}bytes" + string(rune(0xE9))),
		[]byte(""),
	}

	for _, bs := range cases {
		word := EncodeWord(bs)

		back, err := DecodeWord(word)
		require.NoError(t, err)
		assert.Equal(t, bs, back, "byte_string -> word -> byte_string must be id for %q", bs)
	}

	words := []string{
		"ann{E9}e",
		"bonjour{{et}",
		"plain",
		"",
	}

	for _, w := range words {
		bs, err := DecodeWord(w)
		require.NoError(t, err)

		assert.Equal(t, bs, mustDecode(t, EncodeWord(bs)), "word -> byte_string -> word must reach a fixed point")
	}
}

func mustDecode(t *testing.T, word string) []byte {
	t.Helper()

	bs, err := DecodeWord(word)
	require.NoError(t, err)

	return bs
}

func TestDecodeWordRejectsMalformedEscape(t *testing.T) {
	_, err := DecodeWord("bad{zz}")
	assert.Error(t, err)

	_, err = DecodeWord("bad{{unterminated")
	assert.Error(t, err)

	_, err = DecodeWord("bad{E9")
	assert.Error(t, err)
}
