package submit

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// maxResponseSize limits how much of a response (or error body) is read into memory
	maxResponseSize = 10 << 20
	maxErrorBody    = 4 << 10
)

type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a submission client. Timeouts come from the context passed to Post,
// the default HTTP client sets none.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends the parts to url and returns the response body on 200 OK.
// The caller must close the body.
func (c *Client) Post(ctx context.Context, url string, parts []Part) (io.ReadCloser, error) {
	boundary, err := NewBoundary()
	if err != nil {
		return nil, WrapTransportError(err, "failed to generate multipart boundary")
	}

	var body bytes.Buffer
	if err := Encode(&body, boundary, parts); err != nil {
		return nil, WrapTransportError(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, WrapTransportError(err, "failed to create request")
	}
	req.Header.Set("Content-Type", FormDataContentType(boundary))

	// #nosec G107 -- the service URL comes from the client configuration
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapTransportError(err, "failed to call claim service")
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("claim service rejected request",
			slog.Int("status", resp.StatusCode),
			slog.String("url", url),
		)
		return nil, NewStatusError(resp.StatusCode, string(bytes.TrimSpace(msg)))
	}

	return resp.Body, nil
}

// SubmitClaim posts a signed claim and the holder's authentication certificate.
// With nocrypt the service is asked for an unencrypted response and cert may be nil.
func (c *Client) SubmitClaim(ctx context.Context, url string, claim []byte, mimeType string, cert *x509.Certificate, nocrypt bool) ([]byte, error) {
	var parts []Part
	if nocrypt {
		parts = append(parts, Part{Name: "nocrypt", Content: []byte{1}})
	}
	if cert != nil {
		// base64 DER without PEM armour is what the service expects
		parts = append(parts, Part{Name: "cert", Content: []byte(base64.StdEncoding.EncodeToString(cert.Raw))})
	}
	parts = append(parts, Part{Name: "claim", Filename: "claim", ContentType: mimeType, Content: claim})

	body, err := c.Post(ctx, url, parts)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxResponseSize+1))
	if err != nil {
		return nil, WrapTransportError(err, "failed to read response")
	}
	if len(data) > maxResponseSize {
		return nil, NewTransportError(fmt.Sprintf("response is larger than %d bytes", maxResponseSize))
	}
	c.logger.Debug("claim submitted", slog.Int("response_bytes", len(data)))
	return data, nil
}
