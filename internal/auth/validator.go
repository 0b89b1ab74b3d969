package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RejectCode identifies why a request failed authentication. The values are
// wire-visible: they appear verbatim in 401 response bodies.
type RejectCode string

const (
	RejectTokenMissing   RejectCode = "token_missing"
	RejectTokenMalformed RejectCode = "token_malformed"
	RejectTokenExpired   RejectCode = "token_expired"
	RejectTokenInvalid   RejectCode = "token_invalid"
	RejectUserNotFound   RejectCode = "user_not_found"
	RejectUserDeleted    RejectCode = "user_deleted"
)

// Rejection is the typed reject decision of the validator. ExpiredFor is
// populated only for RejectTokenExpired.
type Rejection struct {
	Code       RejectCode
	Message    string
	ExpiredFor time.Duration
}

func reject(code RejectCode, msg string) *Rejection {
	return &Rejection{Code: code, Message: msg}
}

const bearerPrefix = "Bearer "

// Validator is the request-time gate for bearer tokens. Checks run cheapest
// first: structural parsing, then signature, then claim semantics, and only
// for a structurally trustworthy token the store-backed principal lookup.
// The lookup is what keeps a soft-deleted user's still-unexpired token from
// granting access.
type Validator struct {
	codec  Codec
	signer *Signer
	issuer string
	users  UserStore
	now    func() time.Time
}

// ValidatorOption configures Validator behavior.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source (useful for tests).
func WithValidatorClock(fn func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewValidator constructs a Validator bound to the signing key's public half
// and the principal store.
func NewValidator(signer *Signer, issuerName string, users UserStore, opts ...ValidatorOption) *Validator {
	v := &Validator{
		signer: signer,
		issuer: issuerName,
		users:  users,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full state machine over the raw Authorization header.
// A nil Rejection means the token was accepted and Identity carries the
// authenticated subject. The returned error is reserved for store failures;
// every adversarial or stale input maps to a Rejection instead.
func (v *Validator) Validate(ctx context.Context, authorization string) (Identity, *Rejection, error) {
	header := strings.TrimSpace(authorization)
	if header == "" {
		return Identity{}, reject(RejectTokenMissing, "authentication token is required"), nil
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return Identity{}, reject(RejectTokenMalformed, "authorization header must start with 'Bearer '"), nil
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return Identity{}, reject(RejectTokenMissing, "token must not be empty after 'Bearer '"), nil
	}

	segments, err := v.codec.Split(token)
	if err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token must have three dot-separated segments"), nil
	}
	headerJSON, err := v.codec.Decode(segments[0])
	if err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token header has invalid base64url encoding"), nil
	}
	payloadJSON, err := v.codec.Decode(segments[1])
	if err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token payload has invalid base64url encoding"), nil
	}
	signature, err := v.codec.Decode(segments[2])
	if err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token signature has invalid base64url encoding"), nil
	}

	var hdr Header
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token header is not valid JSON"), nil
	}
	if hdr.Algorithm != "RS256" {
		return Identity{}, reject(RejectTokenInvalid, "unsupported signing algorithm"), nil
	}

	// Signature is checked before any claim is trusted. A mismatch is
	// treated as potentially adversarial, never as a parse problem.
	signingString := segments[0] + "." + segments[1]
	if err := v.signer.Verify([]byte(signingString), signature); err != nil {
		return Identity{}, reject(RejectTokenInvalid, "token signature verification failed"), nil
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Identity{}, reject(RejectTokenMalformed, "token payload is not valid JSON"), nil
	}

	// Every token is time-boxed: a missing or zero exp never passes.
	if claims.ExpiresAt <= 0 {
		return Identity{}, reject(RejectTokenInvalid, "token has no expiry claim"), nil
	}

	// Strict now > exp: a token presented at the exact expiry second is
	// still accepted.
	now := v.now().UTC()
	if now.Unix() > claims.ExpiresAt {
		elapsed := time.Duration(now.Unix()-claims.ExpiresAt) * time.Second
		return Identity{}, &Rejection{
			Code:       RejectTokenExpired,
			Message:    fmt.Sprintf("token expired %d seconds ago, log in again", int64(elapsed.Seconds())),
			ExpiredFor: elapsed,
		}, nil
	}

	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Handle) == "" {
		return Identity{}, reject(RejectTokenInvalid, "token is missing required claims (sub, upn)"), nil
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return Identity{}, reject(RejectTokenInvalid, "unexpected token issuer"), nil
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, reject(RejectTokenInvalid, "token subject is not a valid user id"), nil
	}

	user, err := v.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, reject(RejectUserNotFound, "user bound to this token no longer exists"), nil
		}
		return Identity{}, nil, fmt.Errorf("auth: principal lookup: %w", err)
	}
	if user.Deleted() {
		return Identity{}, reject(RejectUserDeleted, "user account has been deactivated"), nil
	}

	return Identity{UserID: user.ID, Handle: claims.Handle}, nil, nil
}
