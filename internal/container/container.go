// Package container holds signed document containers: data files plus the signatures over them.
//
// Workflows depend on the Service interface. DocService is the implementation used by the
// client and the claim service, it stores containers as JSON with the signed info of each
// signature canonicalized (RFC 8785) before digesting.
package container

import (
	"context"
	"crypto/x509"
	"io"
	"time"
)

// ContentType is how a data file's content is carried in the container.
type ContentType string

const (
	ContentEmbeddedBase64 ContentType = "EMBEDDED_BASE64"
)

// DigestMethodSHA256 is the only digest method written and accepted.
const DigestMethodSHA256 = "sha256"

type DataFile struct {
	ID              string      `json:"id"`
	Filename        string      `json:"filename"`
	MIMEType        string      `json:"mimeType"`
	ContentEncoding ContentType `json:"contentEncoding"`

	// Content is base64 encoded by encoding/json
	Content []byte `json:"content"`

	// Digest is the hex SHA-256 of Content
	Digest string `json:"digest"`
}

// ProductionPlace is where the signer claims to have signed.
type ProductionPlace struct {
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// DataFileDigest binds a signature to one data file: its content digest and the
// name and type it is presented with.
type DataFileDigest struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Digest   string `json:"digest"`
}

// SignedInfo is the part of a signature covered by the signature value.
type SignedInfo struct {
	SigningTime       time.Time        `json:"signingTime"`
	SignerCertificate []byte           `json:"signerCertificate"`
	Roles             []string         `json:"roles,omitempty"`
	ProductionPlace   ProductionPlace  `json:"productionPlace"`
	DataFileDigests   []DataFileDigest `json:"dataFileDigests"`
	DigestMethod      string           `json:"digestMethod"`
}

type Signature struct {
	ID             string     `json:"id"`
	SignedInfo     SignedInfo `json:"signedInfo"`
	SignatureValue []byte     `json:"signatureValue,omitempty"`

	// Confirmation is the DER OCSP response for the signer certificate
	Confirmation []byte `json:"confirmation,omitempty"`
}

// Certificate parses the signer certificate.
func (s *Signature) Certificate() (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(s.SignedInfo.SignerCertificate)
	if err != nil {
		return nil, WrapInvalidError(err, "invalid signer certificate in signature "+s.ID)
	}
	return cert, nil
}

type Container struct {
	Format     Format       `json:"format"`
	Version    string       `json:"version"`
	DataFiles  []*DataFile  `json:"dataFiles"`
	Signatures []*Signature `json:"signatures"`
}

// MIMEType is the content type the container is sent with.
func (c *Container) MIMEType() string {
	return c.Format.MIMEType(c.Version)
}

// Service is the set of signature container operations the workflows use.
//
// Validate, Verify and VerifySignature return every problem found, an empty result means success.
type Service interface {
	Create(format Format) (*Container, error)
	AddDataFile(c *Container, path, mimeType string, contentType ContentType) (*DataFile, error)
	PrepareSignature(c *Container, cert *x509.Certificate, roles []string, place ProductionPlace) (*Signature, error)
	Digest(sig *Signature) ([]byte, error)
	SetSignatureValue(sig *Signature, value []byte) error
	Confirm(ctx context.Context, sig *Signature) error
	Validate(c *Container) []error
	Verify(c *Container) []error
	VerifySignature(c *Container, sig *Signature) []error
	Serialize(c *Container, w io.Writer) error
	ReadFrom(r io.Reader) (*Container, error)
}
