package workflow_test

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/auth"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card/cardtest"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/claim"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	eidcrypto "github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary/notarytest"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/response"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/server"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/services"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/submit"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/workflow"
)

const claimText = "I claim this."

func wantCode(t *testing.T, err error, code workflow.ErrorCode) {
	t.Helper()
	var wfErr *workflow.WorkflowError
	if !errors.As(err, &wfErr) {
		t.Fatalf("expected WorkflowError with code %s, got %v", code, err)
	}
	if wfErr.Code() != code {
		t.Errorf("Code() = %q, want %q", wfErr.Code(), code)
	}
}

// input answers PIN prompts from a Static map and returns line for the claim text
type input struct {
	prompt.Static
	line string
}

func (i input) ReadLine(label string) (string, error) {
	return i.line, nil
}

func allPINs() input {
	return input{
		Static: prompt.Static{
			prompt.PurposeAuthentication: cardtest.DefaultPIN1,
			prompt.PurposeSigning:        cardtest.DefaultPIN2,
			prompt.PurposeDecryption:     cardtest.DefaultPIN1,
		},
		line: claimText,
	}
}

type submitterFunc func(ctx context.Context, url string, claim []byte, mimeType string, cert *x509.Certificate, nocrypt bool) ([]byte, error)

func (f submitterFunc) SubmitClaim(ctx context.Context, url string, claim []byte, mimeType string, cert *x509.Certificate, nocrypt bool) ([]byte, error) {
	return f(ctx, url, claim, mimeType, cert, nocrypt)
}

type testEnv struct {
	serviceURL string
	jwksURL    string
	outputDir  string
	token      *cardtest.SoftToken
	opener     *cardtest.Opener
	notary     *notary.Notary
	docs       *container.DocService
	deps       workflow.Deps
	out        *bytes.Buffer
	errOut     *bytes.Buffer
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	responder := notarytest.NewResponder(t, ca)
	token := cardtest.NewSoftToken(t, ca, "TAMM,JAAN,37605030299")
	serviceKey, serviceCert := ca.IssueRSA(t, "Claim Service")

	issuers := []*x509.Certificate{ca.Cert}
	n := notary.New(issuers, logger, notary.WithResponderURL(responder.URL))

	publicJWK, err := eidcrypto.RSAPublicKeyToJWK(&serviceKey.PublicKey, "service")
	if err != nil {
		t.Fatal(err)
	}
	keySet := jwk.NewSet()
	if err := keySet.AddKey(publicJWK); err != nil {
		t.Fatal(err)
	}
	svcs := &services.Services{
		ClaimChecker: services.NewContainerClaimChecker(container.NewDocService(container.WithIssuers(issuers)), logger),
		Responder: services.NewContainerResponder(
			container.NewDocService(),
			envelope.NewEnvService(nil, logger),
			logger,
			services.WithResponseSigner(serviceKey, serviceCert),
		),
		KeySet: keySet,
	}
	srv := httptest.NewServer(server.NewServer(&config.ServerEnvironment{Environment: "test", MaxRequestSize: 1 << 20}, svcs, logger).Handler())
	t.Cleanup(srv.Close)

	opener := &cardtest.Opener{Token: token}
	docs := container.NewDocService(container.WithConfirmer(n), container.WithIssuers(issuers))
	pins := allPINs()
	return &testEnv{
		serviceURL: srv.URL + "/submit",
		jwksURL:    srv.URL + "/.well-known/jwks.json",
		outputDir:  t.TempDir(),
		token:      token,
		opener:     opener,
		notary:     n,
		docs:       docs,
		deps: workflow.Deps{
			Authenticator: auth.New(opener, pins, n, logger),
			Opener:        opener,
			Claims:        claim.NewWorkflow(docs, opener, container.FormatDigiDocXML, logger, claim.WithStagingDir(t.TempDir())),
			Submitter:     submit.NewClient(logger),
			Envelopes:     envelope.NewEnvService(opener, logger),
			Documents:     docs,
			Input:         pins,
		},
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
}

func (e *testEnv) settings() workflow.Settings {
	return workflow.Settings{ServiceURL: e.serviceURL, OutputDir: e.outputDir}
}

func (e *testEnv) runner(settings workflow.Settings, opts ...workflow.Option) *workflow.Runner {
	opts = append([]workflow.Option{workflow.WithOutput(e.out, e.errOut)}, opts...)
	return workflow.NewRunner(settings, e.deps, slog.New(slog.DiscardHandler), opts...)
}

// savedClaim reads claim.ddoc back from the output directory
func (e *testEnv) savedClaim(t *testing.T) *container.Container {
	t.Helper()
	f, err := os.Open(filepath.Join(e.outputDir, "claim.ddoc"))
	if err != nil {
		t.Fatalf("claim was not saved: %v", err)
	}
	defer f.Close()
	c, err := e.docs.ReadFrom(f)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRunEncrypted(t *testing.T) {
	env := setupTestEnvironment(t)

	text, err := env.runner(env.settings()).Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v (stderr %q)", err, env.errOut)
	}
	if text != "A response." {
		t.Errorf("Run() = %q", text)
	}

	want := strings.Join([]string{
		"Identifying the user...",
		"Ok.",
		"Reading personal data...",
		"Signing the claim...",
		"Ok.",
		"Submitting the claim...",
		"Ok, got a valid response.",
		"Decrypting and processing the response...",
		"Ok.",
		"The service responded:",
		"A response.",
		"",
	}, "\n")
	if env.out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", env.out, want)
	}
	if env.errOut.Len() != 0 {
		t.Errorf("unexpected stderr output %q", env.errOut)
	}

	c := env.savedClaim(t)
	if len(c.DataFiles) != 2 || len(c.Signatures) != 1 {
		t.Fatalf("saved claim has %d files and %d signatures", len(c.DataFiles), len(c.Signatures))
	}
	if got := string(c.DataFiles[0].Content); got != "JAAN TAMM, 37605030299\n"+claimText {
		t.Errorf("claim content = %q", got)
	}
	if !strings.Contains(string(c.DataFiles[1].Content), "Personal code: 47101010033") {
		t.Errorf("personal data file = %q", c.DataFiles[1].Content)
	}

	saved, err := os.ReadFile(filepath.Join(env.outputDir, workflow.ResponseFileName))
	if err != nil {
		t.Fatalf("response was not saved: %v", err)
	}
	if r := response.NewPlain(env.docs, saved); r.Verify() != nil {
		t.Error("saved response does not verify")
	}
	if env.token.DecryptCalls != 1 {
		t.Errorf("card decrypted %d times, want 1", env.token.DecryptCalls)
	}
}

func TestRunNoCrypt(t *testing.T) {
	env := setupTestEnvironment(t)
	settings := env.settings()
	settings.NoCrypt = true

	text, err := env.runner(settings).Run(t.Context())
	if err != nil || text != "A response." {
		t.Fatalf("Run() = %q, %v", text, err)
	}
	if env.token.DecryptCalls != 0 {
		t.Errorf("card decrypted %d times for an unencrypted response", env.token.DecryptCalls)
	}
}

func TestRunCanceled(t *testing.T) {
	tests := []struct {
		name      string
		purpose   prompt.Purpose
		wantClaim bool
	}{
		{"authentication PIN", prompt.PurposeAuthentication, false},
		{"signing PIN", prompt.PurposeSigning, false},
		{"decryption PIN", prompt.PurposeDecryption, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvironment(t)
			pins := allPINs()
			delete(pins.Static, tt.purpose)
			env.deps.Input = pins
			env.deps.Authenticator = auth.New(env.opener, pins, env.notary, slog.New(slog.DiscardHandler))

			text, err := env.runner(env.settings()).Run(t.Context())
			if err != nil || text != "" {
				t.Fatalf("Run() = %q, %v, want a quiet stop", text, err)
			}
			_, statErr := os.Stat(filepath.Join(env.outputDir, "claim.ddoc"))
			if gotClaim := statErr == nil; gotClaim != tt.wantClaim {
				t.Errorf("claim saved = %v, want %v", gotClaim, tt.wantClaim)
			}
		})
	}
}

func TestRunBadResponses(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   workflow.ErrorCode
		wantStderr string
	}{
		{"empty", "", workflow.ErrCodeEmptyResponse, ""},
		{"not an envelope", "<html>", workflow.ErrCodeInvalidResponse, ""},
		{"invalid envelope", "{}", workflow.ErrCodeInvalidResponse, "Could not validate response:\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvironment(t)
			env.deps.Submitter = submitterFunc(func(ctx context.Context, url string, claim []byte, mimeType string, cert *x509.Certificate, nocrypt bool) ([]byte, error) {
				return []byte(tt.body), nil
			})

			_, err := env.runner(env.settings()).Run(t.Context())
			wantCode(t, err, tt.wantCode)
			if !strings.HasPrefix(env.errOut.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want prefix %q", env.errOut, tt.wantStderr)
			}
			if strings.Contains(env.out.String(), "Ok, got a valid response.") {
				t.Error("bad response reported as valid")
			}
		})
	}
}

func TestRunSubmitFailure(t *testing.T) {
	env := setupTestEnvironment(t)
	settings := env.settings()
	settings.ServiceURL = strings.TrimSuffix(env.serviceURL, "/submit") + "/missing"

	_, err := env.runner(settings).Run(t.Context())
	var transportErr *submit.TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != 404 {
		t.Fatalf("expected HTTP 404 TransportError, got %v", err)
	}
}

func TestRunSignerPinning(t *testing.T) {
	otherKey, err := eidcrypto.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatal(err)
	}
	foreign := func(ctx context.Context, url string) (jwk.Set, error) {
		key, err := eidcrypto.RSAPublicKeyToJWK(&otherKey.PublicKey, "other")
		if err != nil {
			return nil, err
		}
		set := jwk.NewSet()
		return set, set.AddKey(key)
	}

	t.Run("service keys", func(t *testing.T) {
		env := setupTestEnvironment(t)
		settings := env.settings()
		settings.ServiceJWKSURL = env.jwksURL

		if text, err := env.runner(settings).Run(t.Context()); err != nil || text != "A response." {
			t.Fatalf("Run() = %q, %v", text, err)
		}
	})

	t.Run("foreign keys", func(t *testing.T) {
		env := setupTestEnvironment(t)
		settings := env.settings()
		settings.ServiceJWKSURL = env.jwksURL

		_, err := env.runner(settings, workflow.WithKeySetFetcher(foreign)).Run(t.Context())
		wantCode(t, err, workflow.ErrCodeResponseFailed)

		var respErr *response.ResponseError
		if !errors.As(err, &respErr) || respErr.Code() != response.ErrCodeSignerNotTrusted {
			t.Errorf("expected signer_not_trusted cause, got %v", err)
		}
	})
}

func TestRunContentFile(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

	tests := []struct {
		name        string
		content     []byte
		wantMIME    string
		wantContent string
	}{
		{"text", []byte("from a file"), "text/plain", "JAAN TAMM, 37605030299\nfrom a file"},
		{"image", png, "image/png", string(png)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvironment(t)

			if _, err := env.runner(env.settings(), workflow.WithContent(tt.content)).Run(t.Context()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			df := env.savedClaim(t).DataFiles[0]
			if df.MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", df.MIMEType, tt.wantMIME)
			}
			if string(df.Content) != tt.wantContent {
				t.Errorf("content = %q", df.Content)
			}
		})
	}
}

func TestReadPersonalData(t *testing.T) {
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	token := cardtest.NewSoftToken(t, ca, "TAMM,JAAN,37605030299")

	pd, err := workflow.ReadPersonalData(&cardtest.Opener{Token: token}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pd.PersonalCode() != "47101010033" {
		t.Errorf("PersonalCode() = %q", pd.PersonalCode())
	}
	if token.CloseCalls != 1 {
		t.Errorf("token closed %d times, want 1", token.CloseCalls)
	}
}
