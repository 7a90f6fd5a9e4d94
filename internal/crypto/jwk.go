// JWK (JSON Web Key) helpers
//
// the claim service publishes its response signing key at /.well-known/jwks.json,
// eID clients fetch the set and check that the key that signed a response is in it.
// Reference: https://datatracker.ietf.org/doc/html/rfc7517

package crypto

import (
	"context"
	"crypto"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// RSAPublicKeyToJWK converts a RSA public key to JWK format
func RSAPublicKeyToJWK(publicKey *rsa.PublicKey, keyID string) (jwk.Key, error) {
	if publicKey == nil {
		return nil, NewKeyManagementError("public key is nil")
	}
	if keyID == "" {
		return nil, NewKeyManagementError("keyID is required")
	}

	key, err := jwk.Import(publicKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to create JWK from RSA public key")
	}

	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set key ID")
	}

	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set algorithm")
	}

	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, WrapKeyManagementError(err, "failed to set key usage")
	}

	return key, nil
}

// FetchJWKSet fetches a JWK set from a URL
func FetchJWKSet(ctx context.Context, url string) (jwk.Set, error) {
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to fetch JWK set")
	}

	return set, nil
}

// GenerateKeyIDFromRSAKey generates a key ID from an RSA public key using its SHA-256 thumbprint (RFC 7638).
// Returns the first 16 characters of the hex-encoded thumbprint.
func GenerateKeyIDFromRSAKey(publicKey *rsa.PublicKey) (string, error) {
	if publicKey == nil {
		return "", NewKeyManagementError("public key is nil")
	}

	jwkKey, err := jwk.Import(publicKey)
	if err != nil {
		return "", WrapKeyManagementError(err, "failed to import key")
	}

	thumbprint, err := jwkKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", WrapKeyManagementError(err, "failed to generate thumbprint")
	}

	return fmt.Sprintf("%x", thumbprint)[:16], nil
}

// KeySetContainsPublicKey reports whether any key in the set has the same thumbprint as publicKey.
func KeySetContainsPublicKey(set jwk.Set, publicKey crypto.PublicKey) (bool, error) {
	if set == nil {
		return false, NewKeyManagementError("JWK set is nil")
	}

	want, err := jwk.Import(publicKey)
	if err != nil {
		return false, WrapKeyManagementError(err, "failed to import key")
	}
	wantThumb, err := want.Thumbprint(crypto.SHA256)
	if err != nil {
		return false, WrapKeyManagementError(err, "failed to generate thumbprint")
	}

	for i := range set.Len() {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		thumb, err := key.Thumbprint(crypto.SHA256)
		if err != nil {
			continue
		}
		if string(thumb) == string(wantThumb) {
			return true, nil
		}
	}
	return false, nil
}
