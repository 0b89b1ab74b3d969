package auth

import (
	"encoding/base64"
	"strings"
)

// Codec converts between raw bytes and the compact token representation:
// three unpadded base64url segments joined by dots. It performs no
// cryptography.
type Codec struct{}

// Encode returns the unpadded base64url form of b.
func (Codec) Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode reverses Encode. Inputs containing padding characters or bytes
// outside the base64url alphabet fail with ErrMalformedEncoding.
func (Codec) Decode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrMalformedEncoding
	}
	return b, nil
}

// Split breaks a compact token into its header, payload, and signature
// segments. Anything other than exactly two dot separators fails with
// ErrMalformedToken.
func (Codec) Split(token string) ([3]string, error) {
	var out [3]string
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return out, ErrMalformedToken
	}
	out[0], out[1], out[2] = parts[0], parts[1], parts[2]
	return out, nil
}
