// Package claim builds, signs and checks the claim container submitted to the claim service.
//
// A claim holds at most two data files, the claim text and the holder's personal data file,
// and exactly one signature made with the card's signing key.
package claim

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/h2non/filetype"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/staging"
)

// LogicalName names a data file slot in the claim. It is also the staged file name.
type LogicalName string

const (
	LogicalClaim        LogicalName = "claim"
	LogicalPersonalData LogicalName = "personal"

	TextMIMEType = "text/plain"
)

// DefaultRoles are the signer roles written into claim signatures.
var DefaultRoles = []string{"role"}

// DefaultProductionPlace is the signature production place written into claim signatures.
var DefaultProductionPlace = container.ProductionPlace{
	City:       "city",
	State:      "state",
	Country:    "country",
	PostalCode: "postal",
}

// Claim is a claim container being built.
type Claim struct {
	doc   *container.Container
	files map[LogicalName]bool
}

// Document returns the underlying container.
func (c *Claim) Document() *container.Container {
	return c.doc
}

// MIMEType is the content type used when submitting the claim.
func (c *Claim) MIMEType() string {
	return c.doc.MIMEType()
}

// FileName is the default name for saving the claim, e.g. "claim.ddoc".
func (c *Claim) FileName() string {
	return "claim." + c.doc.Format.Extension()
}

type Workflow struct {
	svc         container.Service
	opener      card.Opener
	format      container.Format
	roles       []string
	place       container.ProductionPlace
	stagingBase string
	logger      *slog.Logger
}

type Option func(*Workflow)

func WithRoles(roles []string) Option {
	return func(w *Workflow) { w.roles = slices.Clone(roles) }
}

func WithProductionPlace(place container.ProductionPlace) Option {
	return func(w *Workflow) { w.place = place }
}

// WithStagingDir sets the parent of the per-file staging directories ("" for the system temp dir).
func WithStagingDir(dir string) Option {
	return func(w *Workflow) { w.stagingBase = dir }
}

func NewWorkflow(svc container.Service, opener card.Opener, format container.Format, logger *slog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		svc:    svc,
		opener: opener,
		format: format,
		roles:  slices.Clone(DefaultRoles),
		place:  DefaultProductionPlace,
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create starts an empty claim in the configured format.
func (w *Workflow) Create() (*Claim, error) {
	doc, err := w.svc.Create(w.format)
	if err != nil {
		return nil, WrapContainerError(err, "failed to create claim container")
	}
	return &Claim{doc: doc, files: make(map[LogicalName]bool)}, nil
}

// AddFile adds content as a text/plain data file under the logical name.
func (w *Workflow) AddFile(c *Claim, name LogicalName, content []byte) error {
	return w.AddFileWithType(c, name, content, TextMIMEType)
}

// AddFileWithType adds content under the logical name with an explicit MIME type.
// Each logical name can be added once.
func (w *Workflow) AddFileWithType(c *Claim, name LogicalName, content []byte, mimeType string) error {
	if name != LogicalClaim && name != LogicalPersonalData {
		return NewContainerError(fmt.Sprintf("unknown logical file %q", name))
	}
	if c.files[name] {
		return NewContainerError(fmt.Sprintf("claim already has a %s file", name))
	}

	dir, err := staging.Acquire(w.stagingBase)
	if err != nil {
		return WrapContainerError(err, "failed to stage data file")
	}
	defer func() {
		if err := dir.Release(); err != nil {
			w.logger.Warn("failed to release staging directory", slog.String("path", dir.Path()), slog.Any("error", err))
		}
	}()

	path, err := dir.WriteFile(string(name), content)
	if err != nil {
		return WrapContainerError(err, "failed to stage data file")
	}

	if _, err := w.svc.AddDataFile(c.doc, path, mimeType, container.ContentEmbeddedBase64); err != nil {
		return WrapContainerError(err, fmt.Sprintf("failed to add %s file", name))
	}
	c.files[name] = true
	return nil
}

// Sign signs the claim with the signing key of the card in terminal tokenIndex.
//
// An empty credential means the holder declined to sign, Sign then returns false and no error.
func (w *Workflow) Sign(ctx context.Context, c *Claim, tokenIndex int, credential string) (bool, error) {
	if credential == "" {
		return false, nil
	}
	if len(c.doc.Signatures) > 0 {
		return false, NewContainerError("claim is already signed")
	}
	return w.SignDocument(ctx, c.doc, tokenIndex, credential)
}

// SignDocument adds a signature made with the card in terminal tokenIndex to any container.
// The signature gets the workflow's roles and production place and an OCSP confirmation.
func (w *Workflow) SignDocument(ctx context.Context, doc *container.Container, tokenIndex int, credential string) (bool, error) {
	if credential == "" {
		return false, nil
	}

	token, err := w.opener.OpenToken(tokenIndex)
	if err != nil {
		return false, fmt.Errorf("failed to open card: %w", err)
	}
	defer token.Close()

	if err := token.VerifyPIN(card.KeySlotSigning, credential); err != nil {
		return false, fmt.Errorf("PIN2 verification failed: %w", err)
	}

	cert, err := token.Certificate(card.KeySlotSigning)
	if err != nil {
		return false, fmt.Errorf("failed to read signing certificate: %w", err)
	}

	sig, err := w.svc.PrepareSignature(doc, cert, w.roles, w.place)
	if err != nil {
		return false, WrapContainerError(err, "failed to prepare signature")
	}

	digest, err := w.svc.Digest(sig)
	if err != nil {
		return false, WrapContainerError(err, "failed to compute signature digest")
	}

	value, err := token.Sign(card.KeySlotSigning, digest)
	if err != nil {
		return false, fmt.Errorf("card failed to sign the claim: %w", err)
	}

	if err := w.svc.SetSignatureValue(sig, value); err != nil {
		return false, WrapContainerError(err, "failed to store signature value")
	}

	if err := w.svc.Confirm(ctx, sig); err != nil {
		return false, WrapContainerError(err, "failed to confirm signature")
	}

	w.logger.Info("container signed",
		slog.String("signer", cert.Subject.CommonName),
		slog.String("signature", sig.ID),
	)
	return true, nil
}

// Verify re-verifies every signature on the claim and collects all errors.
// A claim without signatures verifies.
func (w *Workflow) Verify(c *Claim) (bool, []error) {
	var errs []error
	for _, sig := range c.doc.Signatures {
		sigErrs := w.svc.VerifySignature(c.doc, sig)
		for _, err := range sigErrs {
			w.logger.Debug("signature verification error", slog.String("signature", sig.ID), slog.Any("error", err))
		}
		errs = append(errs, sigErrs...)
	}
	return len(errs) == 0, errs
}

// Serialize returns the wire form of the claim.
func (w *Workflow) Serialize(c *Claim) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.svc.Serialize(c.doc, &buf); err != nil {
		return nil, WrapContainerError(err, "failed to serialize claim")
	}
	return buf.Bytes(), nil
}

// Save writes the serialized claim to path.
func (w *Workflow) Save(c *Claim, path string) error {
	data, err := w.Serialize(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return WrapContainerError(err, "failed to save claim")
	}
	return nil
}

// DetectMIMEType sniffs the type of claim content read from a file. Unrecognised content is text/plain.
func DetectMIMEType(content []byte) string {
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown {
		return TextMIMEType
	}
	return kind.MIME.Value
}
