package services_test

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card/cardtest"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	eidcrypto "github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/services"
)

func wantCode(t *testing.T, err error, code services.ErrorCode) {
	t.Helper()
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError with code %s, got %v", code, err)
	}
	if svcErr.Code() != code {
		t.Errorf("Code() = %q, want %q", svcErr.Code(), code)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// buildClaim returns a serialized container with one data file and one signature per signer
func buildClaim(t *testing.T, docs *container.DocService, format container.Format, signers map[crypto.Signer]*x509.Certificate) []byte {
	t.Helper()
	c, err := docs.Create(format)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "claim")
	if err := os.WriteFile(path, []byte("JAAN TAMM, 37605030299\nI claim this."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := docs.AddDataFile(c, path, "text/plain", container.ContentEmbeddedBase64); err != nil {
		t.Fatal(err)
	}
	for key, cert := range signers {
		sig, err := docs.PrepareSignature(c, cert, []string{"role"}, container.ProductionPlace{})
		if err != nil {
			t.Fatal(err)
		}
		digest, err := docs.Digest(sig)
		if err != nil {
			t.Fatal(err)
		}
		value, err := eidcrypto.SignDigest(key, digest)
		if err != nil {
			t.Fatal(err)
		}
		if err := docs.SetSignatureValue(sig, value); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := docs.Serialize(c, &buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCheckClaim(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	key1, cert1 := ca.IssueECDSA(t, "TAMM,JAAN,37605030299")
	key2, cert2 := ca.IssueRSA(t, "KASK,MARI,48001010001")
	docs := container.NewDocService()
	checker := services.NewContainerClaimChecker(docs, discardLogger())

	one := buildClaim(t, docs, container.FormatDigiDocXML, map[crypto.Signer]*x509.Certificate{key1: cert1})
	bdoc := buildClaim(t, docs, container.FormatBDOC, map[crypto.Signer]*x509.Certificate{key1: cert1})
	two := buildClaim(t, docs, container.FormatDigiDocXML, map[crypto.Signer]*x509.Certificate{key1: cert1, key2: cert2})
	unsigned := buildClaim(t, docs, container.FormatDigiDocXML, nil)
	tampered := bytes.Replace(one, []byte(`"signatureValue": "`), []byte(`"signatureValue": "AAAA`), 1)

	tests := []struct {
		name     string
		claim    []byte
		mimeType string
		wantCode services.ErrorCode
	}{
		{"valid ddoc", one, "application/x-ddoc", ""},
		{"valid bdoc", bdoc, "application/vnd.bdoc-1.0", ""},
		{"wrong mime type", one, "application/pdf", services.ErrCodeWrongType},
		{"missing upload", nil, "application/x-ddoc", services.ErrCodeWrongType},
		{"format mismatch", one, "application/vnd.bdoc-1.0", services.ErrCodeInvalidClaim},
		{"not a container", []byte("<xml/>"), "application/x-ddoc", services.ErrCodeInvalidClaim},
		{"two signatures", two, "application/x-ddoc", services.ErrCodeInvalidClaim},
		{"no signature", unsigned, "application/x-ddoc", services.ErrCodeInvalidClaim},
		{"tampered signature", tampered, "application/x-ddoc", services.ErrCodeInvalidClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := checker.CheckClaim(tt.claim, tt.mimeType)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("CheckClaim() error = %v", err)
				}
				if len(doc.Signatures) != 1 {
					t.Errorf("got %d signatures", len(doc.Signatures))
				}
				return
			}
			wantCode(t, err, tt.wantCode)
		})
	}
}

func TestCheckClaimTrustedRoots(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	other := cardtest.NewAuthority(t, "Other CA")
	key, cert := ca.IssueECDSA(t, "TAMM,JAAN,37605030299")
	docs := container.NewDocService()
	claim := buildClaim(t, docs, container.FormatDigiDocXML, map[crypto.Signer]*x509.Certificate{key: cert})

	tests := []struct {
		name     string
		root     *x509.Certificate
		wantCode services.ErrorCode
	}{
		{"issuing root", ca.Cert, ""},
		{"unrelated root", other.Cert, services.ErrCodeInvalidClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots := x509.NewCertPool()
			roots.AddCert(tt.root)
			checker := services.NewContainerClaimChecker(docs, discardLogger(), services.WithTrustedRoots(roots))

			_, err := checker.CheckClaim(claim, "application/x-ddoc")
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("CheckClaim() error = %v", err)
				}
				return
			}
			wantCode(t, err, tt.wantCode)
		})
	}
}

func TestCheckClaimSavesDataFiles(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	key, cert := ca.IssueECDSA(t, "TAMM,JAAN,37605030299")
	docs := container.NewDocService()
	signed := buildClaim(t, docs, container.FormatDigiDocXML, map[crypto.Signer]*x509.Certificate{key: cert})
	unsigned := buildClaim(t, docs, container.FormatDigiDocXML, nil)

	dir := t.TempDir()
	checker := services.NewContainerClaimChecker(docs, discardLogger(), services.WithClaimsDir(dir))

	if _, err := checker.CheckClaim(unsigned, "application/x-ddoc"); err == nil {
		t.Fatal("CheckClaim() accepted an unsigned claim")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("rejected claim saved %d files", len(entries))
	}

	if _, err := checker.CheckClaim(signed, "application/x-ddoc"); err != nil {
		t.Fatalf("CheckClaim() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_claim") {
		t.Fatalf("saved files = %v", entries)
	}
	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "JAAN TAMM, 37605030299\nI claim this." {
		t.Errorf("saved content = %q", content)
	}
}

func TestRespond(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	token := cardtest.NewSoftToken(t, ca, "TAMM,JAAN,37605030299")
	serviceKey, serviceCert := ca.IssueRSA(t, "Claim Service")

	docs := container.NewDocService()
	envSvc := envelope.NewEnvService(&cardtest.Opener{Token: token}, discardLogger())
	responder := services.NewContainerResponder(docs, envSvc, discardLogger(),
		services.WithResponseSigner(serviceKey, serviceCert),
		services.WithResponseText("Claim accepted."),
		services.WithResponseStagingDir(t.TempDir()),
	)

	checkDocument := func(t *testing.T, data []byte) {
		t.Helper()
		doc, err := docs.ReadFrom(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if errs := docs.Verify(doc); len(errs) != 0 {
			t.Fatalf("response does not verify: %v", errs)
		}
		if len(doc.DataFiles) != 1 || string(doc.DataFiles[0].Content) != "Claim accepted." || doc.DataFiles[0].Filename != "response" {
			t.Errorf("unexpected response data files")
		}
		if len(doc.Signatures) != 1 {
			t.Fatalf("response has %d signatures", len(doc.Signatures))
		}
		signer, _ := doc.Signatures[0].Certificate()
		if !signer.Equal(serviceCert) {
			t.Error("response not signed by the service key")
		}
	}

	t.Run("encrypted", func(t *testing.T) {
		resp, err := responder.Respond(token.AuthCert, false)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if resp.ContentType != envelope.MIMEType || resp.FileName != "response.cdoc" {
			t.Errorf("ContentType %q FileName %q", resp.ContentType, resp.FileName)
		}

		env, err := envSvc.Parse(bytes.NewReader(resp.Body))
		if err != nil {
			t.Fatal(err)
		}
		if r, _ := envSvc.RecipientOf(env, 0); r != "TAMM,JAAN,37605030299" {
			t.Errorf("recipient = %q", r)
		}
		if err := envSvc.Decrypt(env, 0, 0, cardtest.DefaultPIN1); err != nil {
			t.Fatal(err)
		}
		plain, _ := envSvc.Data(env)
		checkDocument(t, plain)
	})

	t.Run("nocrypt", func(t *testing.T) {
		resp, err := responder.Respond(nil, true)
		if err != nil {
			t.Fatalf("Respond() error = %v", err)
		}
		if resp.ContentType != "application/x-ddoc" || resp.FileName != "response.ddoc" {
			t.Errorf("ContentType %q FileName %q", resp.ContentType, resp.FileName)
		}
		checkDocument(t, resp.Body)
	})

	t.Run("missing recipient", func(t *testing.T) {
		_, err := responder.Respond(nil, false)
		wantCode(t, err, services.ErrCodeMissingRecipient)
	})
}

func TestRespondUnsigned(t *testing.T) {
	docs := container.NewDocService()
	responder := services.NewContainerResponder(docs, envelope.NewEnvService(nil, discardLogger()), discardLogger())

	resp, err := responder.Respond(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := docs.ReadFrom(bytes.NewReader(resp.Body))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Signatures) != 0 || string(doc.DataFiles[0].Content) != "A response." {
		t.Error("expected an unsigned response with the default text")
	}
}

func TestParseRecipientCertificate(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	_, cert := ca.IssueRSA(t, "TAMM,JAAN,37605030299")
	b64 := base64.StdEncoding.EncodeToString(cert.Raw)
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))

	tests := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{"base64 der", b64, false},
		{"base64 der with whitespace", "  " + b64[:40] + "\n" + b64[40:] + "\n", false},
		{"pem", pemText, false},
		{"empty", "  ", true},
		{"not base64", "!!!", true},
		{"not a certificate", base64.StdEncoding.EncodeToString([]byte("hello")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.ParseRecipientCertificate(tt.field)
			if tt.wantErr {
				wantCode(t, err, services.ErrCodeMissingRecipient)
				return
			}
			if err != nil {
				t.Fatalf("ParseRecipientCertificate() error = %v", err)
			}
			if !got.Equal(cert) {
				t.Error("parsed certificate differs")
			}
		})
	}
}

func TestNewServices(t *testing.T) {
	dir := t.TempDir()
	key, err := eidcrypto.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := eidcrypto.CreateSelfSignedCertificate(key, "Claim Service", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := eidcrypto.SaveRSAPrivateKeyToPEMFile(key, dir, "service.key.pem"); err != nil {
		t.Fatal(err)
	}
	if err := eidcrypto.SaveCertificateToPEMFile(cert, dir, "service.cert.pem"); err != nil {
		t.Fatal(err)
	}
	other, err := eidcrypto.CreateSelfSignedCertificate(mustKey(t), "Other", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := eidcrypto.SaveCertificateToPEMFile(other, dir, "other.cert.pem"); err != nil {
		t.Fatal(err)
	}

	cfg := &config.ServerEnvironment{
		SignResponses:   true,
		ResponseText:    "A response.",
		SigningKeyPath:  filepath.Join(dir, "service.key.pem"),
		SigningCertPath: filepath.Join(dir, "service.cert.pem"),
		ClaimsDir:       filepath.Join(dir, "claims"),
	}
	svcs, err := services.NewServices(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	if info, err := os.Stat(cfg.ClaimsDir); err != nil || !info.IsDir() {
		t.Errorf("claims directory not created: %v", err)
	}
	ok, err := eidcrypto.KeySetContainsPublicKey(svcs.KeySet, &key.PublicKey)
	if err != nil || !ok {
		t.Errorf("key set does not contain the signing key: %v", err)
	}

	mismatched := *cfg
	mismatched.SigningCertPath = filepath.Join(dir, "other.cert.pem")
	if _, err := services.NewServices(&mismatched, discardLogger()); err == nil {
		t.Error("expected error for a certificate that does not match the key")
	}
}

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := eidcrypto.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}
