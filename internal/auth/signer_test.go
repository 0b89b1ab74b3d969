package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestNewSignerAcceptsPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	signer, err := NewSigner(string(pemData))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	msg := []byte("header.payload")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := signer.Verify(msg, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSignerVerifyRejectsTampering(t *testing.T) {
	signer := testSigner(t)
	msg := []byte("header.payload")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := signer.Verify([]byte("header.other"), sig); err == nil {
		t.Fatal("verification must fail for a different message")
	}

	sig[0] ^= 0xff
	if err := signer.Verify(msg, sig); err == nil {
		t.Fatal("verification must fail for a corrupted signature")
	}
}

func TestSignerSignaturesDifferAcrossKeys(t *testing.T) {
	a := testSigner(t)
	b := testSigner(t)
	msg := []byte("header.payload")

	sig, err := a.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := b.Verify(msg, sig); err == nil {
		t.Fatal("a signature must not verify under a different key")
	}
}

func TestNewSignerRejectsBadInput(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ec key: %v", err)
	}
	ecDER, err := x509.MarshalPKCS8PrivateKey(ecKey)
	if err != nil {
		t.Fatalf("marshal ec key: %v", err)
	}
	ecPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ecDER})

	cases := []struct {
		name string
		pem  string
	}{
		{"empty", ""},
		{"not pem", "definitely not a key"},
		{"wrong block type", string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("x")}))},
		{"non-rsa key", string(ecPEM)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSigner(tc.pem); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
