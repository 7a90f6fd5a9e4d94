package services

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	eidcrypto "github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/staging"
)

// ResponseFileName is the data file name of the response text
const ResponseFileName = "response"

// ResponseRole and ResponseProductionPlace are written into response signatures
var (
	ResponseRole            = []string{"role"}
	ResponseProductionPlace = container.ProductionPlace{City: "city", State: "county", PostalCode: "zip", Country: "country"}
)

// Responder builds the response to an accepted claim.
type Responder interface {
	// Respond returns the serialized response and its content type. The response is encrypted for
	// recipient unless nocrypt is set, in which case recipient may be nil.
	Respond(recipient *x509.Certificate, nocrypt bool) (*Response, error)
}

// Response is a built response ready to send
type Response struct {
	ID          uuid.UUID
	Body        []byte
	ContentType string
	FileName    string
}

// Encryptor encrypts response documents for a recipient
type Encryptor interface {
	Encrypt(plaintext []byte, mimeType string, recipients []*x509.Certificate) (*envelope.EncryptedData, error)
	Serialize(env *envelope.EncryptedData, w io.Writer) error
}

type ContainerResponder struct {
	docs        container.Service
	encryptor   Encryptor
	signer      crypto.Signer
	signerCert  *x509.Certificate
	text        string
	stagingBase string
	logger      *slog.Logger
}

type ResponderOption func(*ContainerResponder)

// WithResponseSigner signs responses with key. Responses are unsigned without it.
func WithResponseSigner(key crypto.Signer, cert *x509.Certificate) ResponderOption {
	return func(r *ContainerResponder) {
		r.signer = key
		r.signerCert = cert
	}
}

func WithResponseText(text string) ResponderOption {
	return func(r *ContainerResponder) { r.text = text }
}

func WithResponseStagingDir(dir string) ResponderOption {
	return func(r *ContainerResponder) { r.stagingBase = dir }
}

func NewContainerResponder(docs container.Service, encryptor Encryptor, logger *slog.Logger, opts ...ResponderOption) *ContainerResponder {
	r := &ContainerResponder{
		docs:      docs,
		encryptor: encryptor,
		text:      "A response.",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ContainerResponder) Respond(recipient *x509.Certificate, nocrypt bool) (*Response, error) {
	if !nocrypt && recipient == nil {
		return nil, NewMissingRecipientError("No recipient certificate specified!")
	}

	doc, err := r.document()
	if err != nil {
		return nil, err
	}

	resp := &Response{ID: uuid.New()}
	if nocrypt {
		resp.Body = doc
		resp.ContentType = container.FormatDigiDocXML.MIMEType("")
		resp.FileName = ResponseFileName + "." + container.FormatDigiDocXML.Extension()
	} else {
		env, err := r.encryptor.Encrypt(doc, container.FormatDigiDocXML.MIMEType(""), []*x509.Certificate{recipient})
		if err != nil {
			return nil, WrapResponseError(err, "Error encrypting response")
		}
		var buf bytes.Buffer
		if err := r.encryptor.Serialize(env, &buf); err != nil {
			return nil, WrapResponseError(err, "Error encrypting response")
		}
		resp.Body = buf.Bytes()
		resp.ContentType = envelope.MIMEType
		resp.FileName = ResponseFileName + ".cdoc"
	}

	attrs := []any{
		slog.String("response_id", resp.ID.String()),
		slog.Bool("encrypted", !nocrypt),
		slog.Bool("signed", r.signer != nil),
	}
	if recipient != nil {
		attrs = append(attrs, slog.String("recipient", recipient.Subject.CommonName))
	}
	r.logger.Info("response created", attrs...)
	return resp, nil
}

// document builds the serialized DIGIDOC-XML response document
func (r *ContainerResponder) document() ([]byte, error) {
	doc, err := r.docs.Create(container.FormatDigiDocXML)
	if err != nil {
		return nil, WrapResponseError(err, "Error creating response")
	}

	dir, err := staging.Acquire(r.stagingBase)
	if err != nil {
		return nil, WrapResponseError(err, "Error creating response")
	}
	defer func() {
		if err := dir.Release(); err != nil {
			r.logger.Warn("failed to release staging directory", slog.Any("error", err))
		}
	}()

	path, err := dir.WriteFile(ResponseFileName, []byte(r.text))
	if err != nil {
		return nil, WrapResponseError(err, "Error creating response")
	}
	if _, err := r.docs.AddDataFile(doc, path, "text/plain", container.ContentEmbeddedBase64); err != nil {
		return nil, WrapResponseError(err, "Error creating response")
	}

	if r.signer != nil {
		if err := r.sign(doc); err != nil {
			return nil, WrapResponseError(err, "Error signing response")
		}
	}

	var buf bytes.Buffer
	if err := r.docs.Serialize(doc, &buf); err != nil {
		return nil, WrapResponseError(err, "Error creating response")
	}
	return buf.Bytes(), nil
}

func (r *ContainerResponder) sign(doc *container.Container) error {
	sig, err := r.docs.PrepareSignature(doc, r.signerCert, ResponseRole, ResponseProductionPlace)
	if err != nil {
		return err
	}
	digest, err := r.docs.Digest(sig)
	if err != nil {
		return err
	}
	value, err := eidcrypto.SignDigest(r.signer, digest)
	if err != nil {
		return err
	}
	return r.docs.SetSignatureValue(sig, value)
}

// ParseRecipientCertificate decodes the "cert" form field: base64 DER, or PEM.
func ParseRecipientCertificate(field string) (*x509.Certificate, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, NewMissingRecipientError("No recipient certificate specified!")
	}

	var der []byte
	if block, _ := pem.Decode([]byte(field)); block != nil {
		der = block.Bytes
	} else {
		// clients may wrap the base64 text
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(field), ""))
		if err != nil {
			return nil, WrapMissingRecipientError(err, "recipient certificate is not base64")
		}
		der = decoded
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, WrapMissingRecipientError(err, "recipient certificate cannot be parsed")
	}
	return cert, nil
}

var _ Responder = (*ContainerResponder)(nil)
