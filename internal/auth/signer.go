package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Signer produces and verifies detached RS256 signatures. The private key is
// parsed once at construction and treated as immutable afterwards, so a
// single Signer is safe for concurrent use.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewSigner parses a PEM-wrapped RSA private key (PKCS#8 "PRIVATE KEY" or
// PKCS#1 "RSA PRIVATE KEY"). A parse failure here is a boot-time invariant
// violation: callers must abort startup rather than continue without a key.
func NewSigner(privatePEM string) (*Signer, error) {
	key, err := parseRSAPrivateKey(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse signing key: %w", err)
	}
	return &Signer{privateKey: key, publicKey: &key.PublicKey}, nil
}

// Sign returns the RSA PKCS#1 v1.5 signature over the SHA-256 digest of msg.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
}

// Verify checks sig against msg using the public half of the signing key.
func (s *Signer) Verify(msg, sig []byte) error {
	digest := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA256, digest[:], sig)
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid PEM private key")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("unsupported private key type")
	default:
		return nil, fmt.Errorf("unsupported private key type %s", block.Type)
	}
}
