// Package xor implements the repeating-key XOR transform applied to bundles
// before they are opened. The transform is its own inverse.
package xor

import "unicode/utf8"

// Transform XORs data with key repeated over its length and returns the
// result in a new slice. An empty key leaves the data unchanged.
func Transform(data, key []byte) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// String is Transform with a string key converted by KeyBytes.
func String(data []byte, key string) []byte {
	return Transform(data, KeyBytes(key))
}

// KeyBytes converts a key string to XOR key bytes, one byte per code point
// for code points up to U+00FF. This matches keys given as Latin-1 text, so
// "\u00e9" is the single byte 0xe9. Code points above U+00FF contribute
// their UTF-8 encoding, and bytes that are not valid UTF-8 are used as is.
func KeyBytes(key string) []byte {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); {
		r, size := utf8.DecodeRuneInString(key[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			out = append(out, key[i])
		case r <= 0xff:
			out = append(out, byte(r))
		default:
			out = append(out, key[i:i+size]...)
		}
		i += size
	}
	return out
}
