package container

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/crypto/ocsp"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
)

// maxContainerSize bounds the input accepted by ReadFrom
const maxContainerSize = 10 << 20

// Confirmer obtains revocation evidence for a signer certificate.
type Confirmer interface {
	Confirm(ctx context.Context, cert *x509.Certificate) ([]byte, error)
}

// DocService implements Service over JSON encoded containers.
type DocService struct {
	confirmer           Confirmer
	issuers             []*x509.Certificate
	requireConfirmation bool
	bdocVersion         string
	now                 func() time.Time
}

type Option func(*DocService)

// WithConfirmer sets the source of signature confirmations used by Confirm.
func WithConfirmer(c Confirmer) Option {
	return func(s *DocService) { s.confirmer = c }
}

// WithIssuers sets the CA certificates used to check the signature on embedded OCSP confirmations.
// Without issuers the confirmation status is checked but its signature is not.
func WithIssuers(issuers []*x509.Certificate) Option {
	return func(s *DocService) { s.issuers = issuers }
}

// WithRequiredConfirmation makes Verify reject signatures without a confirmation.
func WithRequiredConfirmation() Option {
	return func(s *DocService) { s.requireConfirmation = true }
}

// WithBDOCVersion sets the version written into new BDOC containers.
func WithBDOCVersion(version string) Option {
	return func(s *DocService) { s.bdocVersion = version }
}

func WithClock(now func() time.Time) Option {
	return func(s *DocService) { s.now = now }
}

func NewDocService(opts ...Option) *DocService {
	s := &DocService{
		bdocVersion: DefaultBDOCVersion,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DocService) Create(format Format) (*Container, error) {
	c := &Container{Format: format}
	switch format {
	case FormatDigiDocXML:
		c.Version = DefaultDigiDocVersion
	case FormatBDOC:
		c.Version = s.bdocVersion
	default:
		return nil, NewContainerError(fmt.Sprintf("unsupported container format %d", int(format)))
	}
	return c, nil
}

// AddDataFile reads the file at path into the container.
// Data files cannot be added once the container has a signature.
func (s *DocService) AddDataFile(c *Container, path, mimeType string, contentType ContentType) (*DataFile, error) {
	if len(c.Signatures) > 0 {
		return nil, NewContainerError("cannot add data files to a signed container")
	}
	if contentType != ContentEmbeddedBase64 {
		return nil, NewContainerError(fmt.Sprintf("unsupported content type %q", contentType))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapContainerError(err, "failed to read data file")
	}

	df := &DataFile{
		ID:              fmt.Sprintf("D%d", len(c.DataFiles)),
		Filename:        filepath.Base(path),
		MIMEType:        mimeType,
		ContentEncoding: contentType,
		Content:         content,
		Digest:          crypto.CalculateSHA256Hex(content),
	}
	c.DataFiles = append(c.DataFiles, df)
	return df, nil
}

// PrepareSignature adds an unvalued signature covering every data file of the container.
func (s *DocService) PrepareSignature(c *Container, cert *x509.Certificate, roles []string, place ProductionPlace) (*Signature, error) {
	if cert == nil {
		return nil, NewContainerError("signer certificate is required")
	}
	if len(c.DataFiles) == 0 {
		return nil, NewContainerError("cannot sign a container without data files")
	}

	digests := make([]DataFileDigest, 0, len(c.DataFiles))
	for _, df := range c.DataFiles {
		digests = append(digests, DataFileDigest{
			ID:       df.ID,
			Filename: df.Filename,
			MIMEType: df.MIMEType,
			Digest:   df.Digest,
		})
	}

	sig := &Signature{
		ID: fmt.Sprintf("S%d", len(c.Signatures)),
		SignedInfo: SignedInfo{
			SigningTime:       s.now().UTC().Truncate(time.Second),
			SignerCertificate: cert.Raw,
			Roles:             slices.Clone(roles),
			ProductionPlace:   place,
			DataFileDigests:   digests,
			DigestMethod:      DigestMethodSHA256,
		},
	}
	c.Signatures = append(c.Signatures, sig)
	return sig, nil
}

// Digest returns the SHA-256 of the canonical JSON form of the signature's signed info.
func (s *DocService) Digest(sig *Signature) ([]byte, error) {
	raw, err := json.Marshal(sig.SignedInfo)
	if err != nil {
		return nil, WrapContainerError(err, "failed to encode signed info")
	}
	canonical, err := crypto.CanonicalizeJSON(raw)
	if err != nil {
		return nil, WrapContainerError(err, "failed to canonicalize signed info")
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}

// SetSignatureValue stores the value produced by the signer. A value can only be set once.
func (s *DocService) SetSignatureValue(sig *Signature, value []byte) error {
	if len(sig.SignatureValue) > 0 {
		return NewContainerError(fmt.Sprintf("signature %s already has a value", sig.ID))
	}
	if len(value) == 0 {
		return NewContainerError("empty signature value")
	}
	sig.SignatureValue = slices.Clone(value)
	return nil
}

// Confirm attaches the OCSP response for the signer certificate.
func (s *DocService) Confirm(ctx context.Context, sig *Signature) error {
	if s.confirmer == nil {
		return NewContainerError("no confirmation source configured")
	}
	if len(sig.SignatureValue) == 0 {
		return NewContainerError(fmt.Sprintf("signature %s has no value to confirm", sig.ID))
	}
	cert, err := sig.Certificate()
	if err != nil {
		return err
	}
	der, err := s.confirmer.Confirm(ctx, cert)
	if err != nil {
		return WrapContainerError(err, "failed to obtain signature confirmation")
	}
	sig.Confirmation = der
	return nil
}

// Validate checks the container structure without checking any signature.
func (s *DocService) Validate(c *Container) []error {
	var errs error

	if c.Format != FormatDigiDocXML && c.Format != FormatBDOC {
		errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("unknown container format %d", int(c.Format))))
	}
	if c.Version == "" {
		errs = multierr.Append(errs, NewInvalidError("container version missing"))
	}

	ids := make(map[string]bool)
	for i, df := range c.DataFiles {
		if df == nil {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("data file %d is empty", i)))
			continue
		}
		if df.ID == "" || ids[df.ID] {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("data file %d has a missing or duplicate id %q", i, df.ID)))
		}
		ids[df.ID] = true
		if df.Filename == "" {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("data file %s has no filename", df.ID)))
		}
		if df.ContentEncoding != ContentEmbeddedBase64 {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("data file %s has unsupported content encoding %q", df.ID, df.ContentEncoding)))
		}
		if !crypto.VerifyChecksum(df.Content, df.Digest) {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("data file %s digest does not match its content", df.ID)))
		}
	}

	for i, sig := range c.Signatures {
		if sig == nil {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("signature %d is empty", i)))
			continue
		}
		if sig.ID == "" || ids[sig.ID] {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("signature %d has a missing or duplicate id %q", i, sig.ID)))
		}
		ids[sig.ID] = true
		if sig.SignedInfo.DigestMethod != DigestMethodSHA256 {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("signature %s uses unsupported digest method %q", sig.ID, sig.SignedInfo.DigestMethod)))
		}
		if _, err := sig.Certificate(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return multierr.Errors(errs)
}

// Verify checks every signature in the container. A container without signatures verifies.
// A failing signature does not stop the remaining ones from being checked.
func (s *DocService) Verify(c *Container) []error {
	var errs []error
	for i, sig := range c.Signatures {
		if sig == nil {
			errs = append(errs, NewSignatureError(fmt.Sprintf("signature %d is empty", i)))
			continue
		}
		errs = append(errs, s.VerifySignature(c, sig)...)
	}
	return errs
}

// VerifySignature checks one signature: data file coverage, the signature value and the confirmation.
func (s *DocService) VerifySignature(c *Container, sig *Signature) []error {
	if sig == nil {
		return []error{NewSignatureError("empty signature")}
	}

	var errs error

	cert, err := sig.Certificate()
	if err != nil {
		return []error{err}
	}

	covered := make(map[string]DataFileDigest, len(sig.SignedInfo.DataFileDigests))
	for _, d := range sig.SignedInfo.DataFileDigests {
		covered[d.ID] = d
	}
	for i, df := range c.DataFiles {
		if df == nil {
			errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("data file %d is empty", i)))
			continue
		}
		d, ok := covered[df.ID]
		if !ok {
			errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("signature %s does not cover data file %s", sig.ID, df.ID)))
			continue
		}
		if !crypto.VerifyChecksum(df.Content, d.Digest) {
			errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("data file %s was modified after signature %s", df.ID, sig.ID)))
		}
		if df.Filename != d.Filename || df.MIMEType != d.MIMEType {
			errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("data file %s was renamed or retyped after signature %s", df.ID, sig.ID)))
		}
		delete(covered, df.ID)
	}
	for id := range covered {
		errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("signature %s references missing data file %s", sig.ID, id)))
	}

	if len(sig.SignatureValue) == 0 {
		errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("signature %s has no value", sig.ID)))
	} else {
		digest, err := s.Digest(sig)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if err := crypto.VerifyDigestSignature(cert.PublicKey, digest, sig.SignatureValue); err != nil {
			errs = multierr.Append(errs, WrapSignatureError(err, fmt.Sprintf("signature %s value does not verify", sig.ID)))
		}
	}

	switch {
	case len(sig.Confirmation) > 0:
		if err := s.verifyConfirmation(sig, cert); err != nil {
			errs = multierr.Append(errs, err)
		}
	case s.requireConfirmation:
		errs = multierr.Append(errs, NewSignatureError(fmt.Sprintf("signature %s has no confirmation", sig.ID)))
	}

	return multierr.Errors(errs)
}

func (s *DocService) verifyConfirmation(sig *Signature, cert *x509.Certificate) error {
	var issuer *x509.Certificate
	if len(s.issuers) > 0 {
		found, err := crypto.FindIssuer(cert, s.issuers)
		if err != nil {
			return WrapSignatureError(err, fmt.Sprintf("cannot check confirmation of signature %s", sig.ID))
		}
		issuer = found
	}

	resp, err := ocsp.ParseResponse(sig.Confirmation, issuer)
	if err != nil {
		return WrapSignatureError(err, fmt.Sprintf("invalid confirmation on signature %s", sig.ID))
	}
	if resp.SerialNumber == nil || resp.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		return NewSignatureError(fmt.Sprintf("confirmation on signature %s is for another certificate", sig.ID))
	}
	if resp.Status != ocsp.Good {
		return NewSignatureError(fmt.Sprintf("confirmation on signature %s does not report the certificate as good", sig.ID))
	}
	return nil
}

func (s *DocService) Serialize(c *Container, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return WrapContainerError(err, "failed to serialize container")
	}
	return nil
}

// ReadFrom parses a serialized container. Unknown fields are rejected.
func (s *DocService) ReadFrom(r io.Reader) (*Container, error) {
	dec := json.NewDecoder(io.LimitReader(r, maxContainerSize))
	dec.DisallowUnknownFields()

	var c Container
	if err := dec.Decode(&c); err != nil {
		return nil, WrapInvalidError(err, "failed to parse container")
	}
	return &c, nil
}

var _ Service = (*DocService)(nil)
