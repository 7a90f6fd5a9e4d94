package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestSignAndVerifyDigest(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("signed info"))
	other := sha256.Sum256([]byte("something else"))

	tests := []struct {
		name   string
		signer crypto.Signer
		sign   func() ([]byte, error)
	}{
		{"rsa", rsaKey, func() ([]byte, error) { return SignDigest(rsaKey, digest[:]) }},
		{"ecdsa", ecKey, func() ([]byte, error) { return SignDigest(ecKey, digest[:]) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := tt.sign()
			if err != nil {
				t.Fatalf("SignDigest() error = %v", err)
			}
			if err := VerifyDigestSignature(tt.signer.Public(), digest[:], sig); err != nil {
				t.Errorf("valid signature rejected: %v", err)
			}

			err = VerifyDigestSignature(tt.signer.Public(), other[:], sig)
			var cryptoErr *CryptoError
			if !errors.As(err, &cryptoErr) || cryptoErr.Code() != ErrCodeSignature {
				t.Errorf("signature over other digest: got %v, want %s", err, ErrCodeSignature)
			}
		})
	}
}

func TestVerifyDigestSignatureInputs(t *testing.T) {
	ecKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	digest := sha256.Sum256([]byte("x"))

	tests := []struct {
		name     string
		key      any
		digest   []byte
		sig      []byte
		wantCode ErrorCode
	}{
		{"short digest", &ecKey.PublicKey, []byte("short"), []byte{1}, ErrCodeValidation},
		{"empty signature", &ecKey.PublicKey, digest[:], nil, ErrCodeSignature},
		{"unsupported key", "key", digest[:], []byte{1}, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyDigestSignature(tt.key, tt.digest, tt.sig)
			var cryptoErr *CryptoError
			if !errors.As(err, &cryptoErr) || cryptoErr.Code() != tt.wantCode {
				t.Errorf("got %v, want code %s", err, tt.wantCode)
			}
		})
	}
}
