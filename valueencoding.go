package coclust

// valueencoding.go implements spec.md §8 R2's categorical value codec: the
// ANSI-safe "word" text representation a .kdic/report file stores, and the
// raw "byte_string" a categorical value actually is. Grounded on kni.go's
// Encode/Decode naming pair, generalized from record framing to a
// byte-for-byte escape scheme. original_source's KWData/KWTextService.h is
// the closest collaborator named by spec.md §1 for value tokenization, but
// was never pulled into the retrieval pack's file cap, so the escape
// grammar below is derived directly from spec.md §8 scenario 5's two
// worked examples rather than transcribed from original_source.

import (
	"fmt"
	"strconv"
)

// EncodeWord converts a raw byte_string into its word representation: bytes
// outside printable ASCII are hex-escaped as `{XX}`, and a literal `{` is
// escaped as a `{{...}` block that runs until the next byte needing its own
// escape (or end of input), so a decoder can always find the block's end
// without ambiguity.
func EncodeWord(byteString []byte) string {
	var out []byte

	for i := 0; i < len(byteString); {
		c := byteString[i]

		if c == '{' {
			out = append(out, '{', '{')
			i++

			for i < len(byteString) && isPlainWordByte(byteString[i]) {
				out = append(out, byteString[i])
				i++
			}

			out = append(out, '}')

			continue
		}

		if isPlainWordByte(c) {
			out = append(out, c)
			i++

			continue
		}

		out = append(out, []byte(fmt.Sprintf("{%02X}", c))...)
		i++
	}

	return string(out)
}

// DecodeWord converts a word back into its byte_string, the inverse of
// EncodeWord (spec.md §8 R2: `byte_string ∘ word = id`). It errors on a
// malformed escape, since R2 only guarantees the round trip for a "valid
// mixed UTF-8 / hex-escaped sequence".
func DecodeWord(word string) ([]byte, error) {
	var out []byte

	for i := 0; i < len(word); {
		c := word[i]

		if c != '{' {
			out = append(out, c)
			i++

			continue
		}

		if i+1 < len(word) && word[i+1] == '{' {
			i += 2
			out = append(out, '{')

			for i < len(word) && word[i] != '}' {
				out = append(out, word[i])
				i++
			}

			if i >= len(word) {
				return nil, Wrapf(ErrSpec, "word %q: unterminated {{ escape block", word)
			}

			i++ // consume the closing '}'

			continue
		}

		if i+3 >= len(word) || word[i+3] != '}' {
			return nil, Wrapf(ErrSpec, "word %q: malformed escape at byte %d", word, i)
		}

		b, err := strconv.ParseUint(word[i+1:i+3], 16, 8)
		if err != nil {
			return nil, Wrapf(ErrSpec, "word %q: malformed hex escape at byte %d: %v", word, i, err)
		}

		out = append(out, byte(b))
		i += 4
	}

	return out, nil
}

// isPlainWordByte reports whether b can be copied verbatim into a word:
// printable ASCII excluding the two structurally significant brace bytes,
// which always go through an escape (spec.md §8 scenario 5).
func isPlainWordByte(b byte) bool {
	return b >= 0x20 && b <= 0x7E && b != '{' && b != '}'
}
