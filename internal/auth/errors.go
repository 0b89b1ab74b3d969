package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")

	// ErrMalformedEncoding indicates a base64url segment that cannot be decoded.
	ErrMalformedEncoding = errors.New("auth: malformed base64url encoding")

	// ErrMalformedToken indicates a compact token without exactly three segments.
	ErrMalformedToken = errors.New("auth: malformed token")

	// ErrTokenIssuance wraps any encoding or signing failure during token issuance.
	ErrTokenIssuance = errors.New("auth: token issuance failed")
)
