package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

func TestRSAPublicKeyToJWK(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := RSAPublicKeyToJWK(nil, "kid"); err == nil {
		t.Error("expected error for nil key")
	}
	if _, err := RSAPublicKeyToJWK(&key.PublicKey, ""); err == nil {
		t.Error("expected error for empty key ID")
	}

	jwkKey, err := RSAPublicKeyToJWK(&key.PublicKey, "kid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kid, ok := jwkKey.KeyID()
	if !ok || kid != "kid-1" {
		t.Errorf("KeyID() = %q, %v", kid, ok)
	}
}

func TestGenerateKeyIDFromRSAKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	first, err := GenerateKeyIDFromRSAKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	second, err := GenerateKeyIDFromRSAKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 16 || first != second {
		t.Errorf("key IDs %q and %q, want identical 16 character IDs", first, second)
	}
}

// publish a key set over HTTP, fetch it and check membership
func TestFetchJWKSetAndContainsKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := SaveRSAPublicKeyToJWKFile(&key.PublicKey, "kid-1", dir, "jwks.json"); err != nil {
		t.Fatalf("SaveRSAPublicKeyToJWKFile() error = %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "jwks.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(body) {
		t.Fatal("saved JWK set is not valid JSON")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	set, err := FetchJWKSet(t.Context(), ts.URL)
	if err != nil {
		t.Fatalf("FetchJWKSet() error = %v", err)
	}

	found, err := KeySetContainsPublicKey(set, &key.PublicKey)
	if err != nil || !found {
		t.Errorf("published key not found in set: %v", err)
	}
	found, err = KeySetContainsPublicKey(set, &stranger.PublicKey)
	if err != nil || found {
		t.Errorf("unpublished key reported as present: %v", err)
	}

	if _, err := KeySetContainsPublicKey(jwk.NewSet(), struct{}{}); err == nil {
		t.Error("expected error for unsupported key type")
	}
}
