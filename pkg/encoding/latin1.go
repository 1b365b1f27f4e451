// Package encoding provides text and binary layout helpers for the SKD/SKC file formats.
package encoding

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Latin1ToUTF8 converts ISO-8859-1 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Latin1ToUTF8(data []byte) string {
	decoder := charmap.ISO8859_1.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// Latin1Substitute replaces characters that have no Latin-1 form.
const Latin1Substitute = '?'

// UTF8ToLatin1 converts a UTF-8 string to ISO-8859-1 encoded bytes, one byte
// per character. Characters outside Latin-1 and invalid UTF-8 become
// Latin1Substitute.
func UTF8ToLatin1(s string) []byte {
	result := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = Latin1Substitute
		}
		result = append(result, b)
	}
	return result
}

// FixedString converts a fixed-size, null-padded Latin-1 field to a UTF-8 string.
// Everything after the first null byte is ignored.
func FixedString(data []byte) string {
	if nullIdx := bytes.IndexByte(data, 0); nullIdx >= 0 {
		data = data[:nullIdx]
	}
	return Latin1ToUTF8(data)
}

// PutFixedString encodes s as Latin-1 into a size-byte field.
// Longer names are truncated; shorter ones are padded with null bytes.
func PutFixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToLatin1(s))
	return result
}

// CString reads a null-terminated Latin-1 string starting at data[0].
// It returns the decoded string and the number of bytes consumed, terminator included.
func CString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return Latin1ToUTF8(data), len(data)
	}
	return Latin1ToUTF8(data[:end]), end + 1
}
