package services

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
)

// ClaimChecker validates submitted claims.
type ClaimChecker interface {
	// CheckClaim parses the claim uploaded with mimeType and verifies its signature.
	// Returns ErrCodeWrongType for unsupported MIME types and ErrCodeInvalidClaim when the claim
	// is malformed or does not carry exactly one valid signature.
	CheckClaim(claim []byte, mimeType string) (*container.Container, error)
}

// ContainerClaimChecker checks claims with a container service
type ContainerClaimChecker struct {
	docs   container.Service
	roots  *x509.CertPool
	dir    string
	logger *slog.Logger
}

// CheckerOption configures a ContainerClaimChecker
type CheckerOption func(*ContainerClaimChecker)

// WithTrustedRoots requires the signer certificate to chain to one of the roots.
func WithTrustedRoots(roots *x509.CertPool) CheckerOption {
	return func(c *ContainerClaimChecker) {
		c.roots = roots
	}
}

// WithClaimsDir saves the data files of every accepted claim under dir.
// Each claim's files share a random prefix: <prefix>_<filename>.
func WithClaimsDir(dir string) CheckerOption {
	return func(c *ContainerClaimChecker) {
		c.dir = dir
	}
}

func NewContainerClaimChecker(docs container.Service, logger *slog.Logger, opts ...CheckerOption) *ContainerClaimChecker {
	c := &ContainerClaimChecker{docs: docs, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ContainerClaimChecker) CheckClaim(claim []byte, mimeType string) (*container.Container, error) {
	format, ok := container.FormatForMIMEType(mimeType)
	if !ok || len(claim) == 0 {
		return nil, NewWrongTypeError("Uploaded file missing or of wrong type!")
	}

	doc, err := c.docs.ReadFrom(bytes.NewReader(claim))
	if err != nil {
		return nil, WrapInvalidClaimError(err, "ERROR")
	}
	if doc.Format != format {
		return nil, NewInvalidClaimError("ERROR: The claim format does not match its content type.")
	}
	if errs := c.docs.Validate(doc); len(errs) > 0 {
		return nil, WrapInvalidClaimError(errors.Join(errs...), "ERROR: The claim is malformed")
	}

	switch len(doc.Signatures) {
	case 0:
		return nil, NewInvalidClaimError("ERROR: The claim is not signed.")
	case 1:
	default:
		return nil, NewInvalidClaimError("ERROR: The claim can have only one signature.")
	}

	if errs := c.docs.VerifySignature(doc, doc.Signatures[0]); len(errs) > 0 {
		return nil, WrapInvalidClaimError(errors.Join(errs...), "ERROR: The signature is invalid")
	}
	if err := c.checkSigner(doc.Signatures[0]); err != nil {
		return nil, err
	}

	for _, df := range doc.DataFiles {
		c.logger.Info("claim data file received",
			slog.String("id", df.ID),
			slog.String("filename", df.Filename),
			slog.Int("bytes", len(df.Content)),
		)
	}
	if c.dir != "" {
		if err := c.extract(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// extract writes the claim's data files to the claims directory
func (c *ContainerClaimChecker) extract(doc *container.Container) error {
	prefix := uuid.New().String()
	for _, df := range doc.DataFiles {
		name := filepath.Base(df.Filename)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			name = df.ID
		}
		path := filepath.Join(c.dir, prefix+"_"+name)
		if err := os.WriteFile(path, df.Content, 0600); err != nil {
			return fmt.Errorf("failed to save claim data file %s: %w", df.ID, err)
		}
		c.logger.Debug("claim data file saved", slog.String("path", path))
	}
	return nil
}

func (c *ContainerClaimChecker) checkSigner(sig *container.Signature) error {
	if c.roots == nil {
		return nil
	}
	cert, err := sig.Certificate()
	if err != nil {
		return WrapInvalidClaimError(err, "ERROR: The signer certificate is invalid")
	}
	if err := crypto.ValidateCertificateChain([]*x509.Certificate{cert}, c.roots); err != nil {
		return WrapInvalidClaimError(err, "ERROR: The signer is not trusted")
	}
	return nil
}

var _ ClaimChecker = (*ContainerClaimChecker)(nil)
