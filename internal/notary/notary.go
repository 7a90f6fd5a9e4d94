// Package notary checks certificate revocation status over OCSP (RFC 6960).
//
// The same OCSP exchange serves two purposes: it gates authentication (CheckCertificate)
// and it produces the confirmation embedded in a signature container (Confirm).
package notary

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxResponseSize bounds the OCSP response body
	maxResponseSize = 1 << 20

	contentTypeRequest  = "application/ocsp-request"
	contentTypeResponse = "application/ocsp-response"
)

// Notary queries an OCSP responder for certificates issued by one of a known set of issuers.
type Notary struct {
	issuers      []*x509.Certificate
	responderURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

type Option func(*Notary)

// WithResponderURL overrides the responder named in the certificate's AIA extension.
func WithResponderURL(url string) Option {
	return func(n *Notary) { n.responderURL = url }
}

// WithHTTPClient sets the client used to reach the responder.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notary) { n.httpClient = c }
}

// New creates a Notary. issuers are the CA certificates the checked certificates may be issued by.
func New(issuers []*x509.Certificate, logger *slog.Logger, opts ...Option) *Notary {
	n := &Notary{
		issuers:    issuers,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewFromFile creates a Notary with the issuers loaded from a PEM bundle.
func NewFromFile(issuersPath string, logger *slog.Logger, opts ...Option) (*Notary, error) {
	issuers, err := crypto.ReadCertChainFromPEMFile(issuersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OCSP issuer certificates: %w", err)
	}
	return New(issuers, logger, opts...), nil
}

// Issuers returns the issuer certificates known to the notary.
func (n *Notary) Issuers() []*x509.Certificate {
	return n.issuers
}

// Query sends an OCSP request for cert and returns the parsed response and its DER encoding.
// Any response status is returned without error, the caller decides what is acceptable.
func (n *Notary) Query(ctx context.Context, cert *x509.Certificate) (*ocsp.Response, []byte, error) {
	issuer, err := crypto.FindIssuer(cert, n.issuers)
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "cannot build OCSP request")
	}

	url := n.responderURL
	if url == "" {
		if len(cert.OCSPServer) == 0 {
			return nil, nil, NewUnavailableError("no OCSP responder configured and certificate names none")
		}
		url = cert.OCSPServer[0]
	}

	reqBytes, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{})
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "failed to create OCSP request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", contentTypeRequest)
	req.Header.Set("Accept", contentTypeResponse)

	n.logger.Debug("sending OCSP request",
		slog.String("responder", url),
		slog.String("serial", cert.SerialNumber.String()),
	)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "OCSP responder unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, NewUnavailableError(fmt.Sprintf("OCSP responder returned HTTP %d", resp.StatusCode))
	}

	der, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "failed to read OCSP response")
	}

	parsed, err := ocsp.ParseResponseForCert(der, cert, issuer)
	if err != nil {
		return nil, nil, WrapUnavailableError(err, "invalid OCSP response")
	}

	return parsed, der, nil
}

// CheckCertificate succeeds only when the responder reports the certificate as good.
func (n *Notary) CheckCertificate(ctx context.Context, cert *x509.Certificate) error {
	_, _, err := n.confirm(ctx, cert)
	return err
}

// Confirm returns the DER OCSP response for a good certificate, for embedding as a signature confirmation.
func (n *Notary) Confirm(ctx context.Context, cert *x509.Certificate) ([]byte, error) {
	_, der, err := n.confirm(ctx, cert)
	return der, err
}

func (n *Notary) confirm(ctx context.Context, cert *x509.Certificate) (*ocsp.Response, []byte, error) {
	resp, der, err := n.Query(ctx, cert)
	if err != nil {
		return nil, nil, err
	}

	if resp.Status != ocsp.Good {
		n.logger.Warn("certificate not reported as good",
			slog.String("subject", cert.Subject.CommonName),
			slog.String("status", StatusString(resp.Status)),
		)
		return nil, nil, NewRevokedError(fmt.Sprintf("certificate status is %s", StatusString(resp.Status)))
	}

	return resp, der, nil
}

// StatusString names an OCSP certificate status.
func StatusString(status int) string {
	switch status {
	case ocsp.Good:
		return "good"
	case ocsp.Revoked:
		return "revoked"
	case ocsp.Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", status)
	}
}
