package results

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// The server writes exports and report logs in whatever encoding the host
// locale dictates: plain UTF-8, UTF-16 LE (the Windows default) or UTF-16
// BE, with or without a BOM. DecodeText always produces something; a
// hopeless input degrades to lossy UTF-8 and fails later at the parse
// stage.
func DecodeText(raw []byte) string {
	if looksUTF16(raw) {
		if text, ok := decodeUTF16(raw); ok {
			return strings.TrimPrefix(text, "\uFEFF")
		}
		// Unpaired surrogates or a truncated tail: strip the NUL padding
		// and salvage whatever valid UTF-8 remains.
		stripped := bytes.ReplaceAll(raw, []byte{0x00}, nil)
		return strings.TrimPrefix(strings.ToValidUTF8(string(stripped), ""), "\uFEFF")
	}
	return strings.TrimPrefix(strings.ToValidUTF8(string(raw), ""), "\uFEFF")
}

// looksUTF16 detects two-byte encodings by NUL density: ASCII-heavy JSON in
// UTF-16 is roughly half NUL bytes, real UTF-8 contains none.
func looksUTF16(raw []byte) bool {
	head := raw
	if len(head) > 100 {
		head = head[:100]
	}
	if !bytes.Contains(head, []byte{0x00}) {
		return false
	}
	return bytes.Count(raw, []byte{0x00}) > len(raw)/3
}

func decodeUTF16(raw []byte) (string, bool) {
	endianness := unicode.LittleEndian
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		raw = raw[2:]
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		raw = raw[2:]
		endianness = unicode.BigEndian
	case zeroCountAt(raw, 0) > zeroCountAt(raw, 1):
		// NULs on even offsets mean the high byte comes first.
		endianness = unicode.BigEndian
	}

	decoder := unicode.UTF16(endianness, unicode.IgnoreBOM).NewDecoder()
	text, err := decoder.Bytes(raw)
	// The decoder substitutes U+FFFD for unpaired surrogates and dangling
	// bytes instead of failing; treat any substitution as a decode failure
	// so such files fall through to the salvage path.
	if err != nil || !utf8.Valid(text) || bytes.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return string(text), true
}

// zeroCountAt counts NUL bytes at offsets of the given parity.
func zeroCountAt(raw []byte, parity int) int {
	count := 0
	for i := parity; i < len(raw); i += 2 {
		if raw[i] == 0x00 {
			count++
		}
	}
	return count
}
