package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTokenTTL is the access token lifetime when none is configured.
const DefaultTokenTTL = 3600 * time.Second

// Issuer builds, serializes, and signs access tokens. Issuance is stateless:
// nothing is persisted, and validation later relies only on the signature,
// the claims, and a fresh principal lookup.
type Issuer struct {
	codec  Codec
	signer *Signer
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithTokenTTL overrides the default token lifetime.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. The issuer name ends up in the "iss" claim
// and is checked again at validation time.
func NewIssuer(signer *Signer, issuerName string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		signer: signer,
		issuer: issuerName,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a signed token for the user. The payload is the minimal claim
// set: issuer, subject, principal handle, issued-at, and expiry. Any encoding
// or signing failure is wrapped into ErrTokenIssuance.
func (i *Issuer) Issue(user *User) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)

	header := Header{Algorithm: "RS256", Type: "JWT"}
	claims := Claims{
		Issuer:    i.issuer,
		Subject:   user.ID.String(),
		Handle:    user.Email,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: marshal header: %v", ErrTokenIssuance, err)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: marshal claims: %v", ErrTokenIssuance, err)
	}

	signingString := i.codec.Encode(headerJSON) + "." + i.codec.Encode(payloadJSON)
	sig, err := i.signer.Sign([]byte(signingString))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign: %v", ErrTokenIssuance, err)
	}
	return signingString + "." + i.codec.Encode(sig), exp, nil
}
