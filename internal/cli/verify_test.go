package cli

import (
	"bytes"
	"crypto/x509"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card/cardtest"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/claim"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary/notarytest"
)

func TestVerifyContainer(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ca := cardtest.NewAuthority(t, "ESTEID Test CA")
	responder := notarytest.NewResponder(t, ca)
	n := notary.New([]*x509.Certificate{ca.Cert}, logger, notary.WithResponderURL(responder.URL))
	docs := newDocService(&config.ClientEnvironment{BDOCVersion: "1.0"}, n)

	build := func(t *testing.T, sign, tamper bool) []byte {
		t.Helper()
		token := cardtest.NewSoftToken(t, ca, "TAMM,JAAN,37605030299")
		token.TamperSignatures = tamper
		wf := claim.NewWorkflow(docs, &cardtest.Opener{Token: token}, container.FormatDigiDocXML, logger, claim.WithStagingDir(t.TempDir()))

		c, err := wf.Create()
		if err != nil {
			t.Fatal(err)
		}
		if err := wf.AddFile(c, claim.LogicalClaim, []byte("JAAN TAMM, 37605030299\nI claim this.")); err != nil {
			t.Fatal(err)
		}
		if sign {
			if _, err := wf.Sign(t.Context(), c, 0, cardtest.DefaultPIN2); err != nil {
				t.Fatal(err)
			}
		}
		data, err := wf.Serialize(c)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name       string
		sign       bool
		tamper     bool
		wantErr    bool
		wantOut    string
		wantStderr string
	}{
		{"signed", true, false, false, "Verifying signature 1 of 1...OK\n", ""},
		{"unsigned", false, false, false, "No signatures found! Skipping verification.\n", ""},
		{"bad signature", true, true, true, "Verifying signature 1 of 1...FAILED\n", "Could not verify signature S0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			err := verifyContainer(docs, bytes.NewReader(build(t, tt.sign, tt.tamper)), &out, &errOut)

			if tt.wantErr != errors.Is(err, errVerificationFailed) {
				t.Fatalf("verifyContainer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.HasPrefix(out.String(), "Data file D0: claim (text/plain, ") {
				t.Errorf("data file line missing from %q", out.String())
			}
			if !strings.HasSuffix(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want suffix %q", out.String(), tt.wantOut)
			}
			if !strings.HasPrefix(errOut.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want prefix %q", errOut.String(), tt.wantStderr)
			}
		})
	}
}

func TestVerifyContainerRejectsGarbage(t *testing.T) {
	var out, errOut bytes.Buffer
	err := verifyContainer(container.NewDocService(), strings.NewReader("not a container"), &out, &errOut)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if errors.Is(err, errVerificationFailed) {
		t.Error("parse failure reported as a verification failure")
	}
}

func TestVerifyContainerEmptyEntries(t *testing.T) {
	var out, errOut bytes.Buffer
	input := `{"format":"DIGIDOC-XML","version":"1.3","dataFiles":[null],"signatures":[null]}`

	err := verifyContainer(container.NewDocService(), strings.NewReader(input), &out, &errOut)
	if !errors.Is(err, errVerificationFailed) {
		t.Fatalf("verifyContainer() error = %v, want errVerificationFailed", err)
	}
	if out.String() != "Verifying signature 1 of 1...FAILED\n" {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "data file 0 is empty") || !strings.Contains(errOut.String(), "signature 0 is empty") {
		t.Errorf("stderr = %q", errOut.String())
	}
}
