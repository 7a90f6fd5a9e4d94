// Package workflow runs the client round trip.
//
// The card holder is authenticated, a claim with their text and the card's personal data file is
// signed with the signing key, the claim is submitted to the claim service and the (normally
// encrypted) response is decrypted with the card, verified and shown.
//
// Progress is written to the output writer and problems the user has to see to the error writer.
// A declined PIN prompt ends the run without an error.
package workflow

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/auth"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/claim"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/response"
)

// ResponseFileName is the name the decrypted response is saved under.
const ResponseFileName = "response.ddoc"

// Authenticator proves the card holder's identity and returns the authentication certificate.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenIndex int) (*x509.Certificate, error)
}

// Submitter posts a claim to the claim service.
type Submitter interface {
	SubmitClaim(ctx context.Context, url string, claim []byte, mimeType string, cert *x509.Certificate, nocrypt bool) ([]byte, error)
}

// Input asks the user for PINs and the claim text.
type Input interface {
	prompt.Prompter
	ReadLine(label string) (string, error)
}

// KeySetFetcher retrieves the claim service's published keys.
type KeySetFetcher func(ctx context.Context, url string) (jwk.Set, error)

// Settings are the per-run parameters, normally taken from config.ClientEnvironment.
type Settings struct {
	ServiceURL    string
	TokenIndex    int
	SubmitTimeout time.Duration
	NoCrypt       bool

	// ServiceJWKSURL enables response signer pinning when set
	ServiceJWKSURL string

	// OutputDir receives the claim and response files ("" is the working directory)
	OutputDir string
}

// Deps are the components a Runner drives.
type Deps struct {
	Authenticator Authenticator
	Opener        card.Opener
	Claims        *claim.Workflow
	Submitter     Submitter
	Envelopes     envelope.Service
	Documents     container.Service
	Input         Input
}

// Runner runs one claim round trip at a time. It is not safe for concurrent use.
type Runner struct {
	settings Settings
	deps     Deps
	logger   *slog.Logger

	out      io.Writer
	errOut   io.Writer
	content  []byte
	fetchSet KeySetFetcher
}

type Option func(*Runner)

// WithOutput sets the progress and error writers (default os.Stdout and os.Stderr).
func WithOutput(out, errOut io.Writer) Option {
	return func(r *Runner) {
		r.out = out
		r.errOut = errOut
	}
}

// WithContent uses content as the claim body instead of asking for a line of text.
// The MIME type is sniffed from the content.
func WithContent(content []byte) Option {
	return func(r *Runner) { r.content = content }
}

// WithKeySetFetcher replaces the JWK set fetch used for signer pinning.
func WithKeySetFetcher(f KeySetFetcher) Option {
	return func(r *Runner) { r.fetchSet = f }
}

func NewRunner(settings Settings, deps Deps, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		deps:     deps,
		logger:   logger,
		out:      os.Stdout,
		errOut:   os.Stderr,
		fetchSet: crypto.FetchJWKSet,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs the round trip and returns the service's response text.
//
// It returns "", nil when the user cancels a PIN prompt.
func (r *Runner) Run(ctx context.Context) (string, error) {
	r.println("Identifying the user...")
	cert, err := r.deps.Authenticator.Authenticate(ctx, r.settings.TokenIndex)
	if err != nil {
		return r.canceledOr(err)
	}
	r.println("Ok.")

	cn := auth.SubjectCN(cert)
	content, mimeType, err := r.claimContent(auth.DisplayName(cn))
	if err != nil {
		return r.canceledOr(err)
	}

	r.println("Reading personal data...")
	c, err := r.createClaim(content, mimeType)
	if err != nil {
		return "", err
	}

	r.println("Signing the claim...")
	pin, err := r.deps.Input.PromptFor(prompt.PurposeSigning)
	if err != nil {
		return r.canceledOr(err)
	}
	signed, err := r.deps.Claims.Sign(ctx, c, r.settings.TokenIndex, pin)
	if err != nil {
		return "", err
	}
	if !signed {
		return "", nil
	}
	if ok, errs := r.deps.Claims.Verify(c); !ok {
		for _, e := range errs {
			r.eprintln(e.Error())
		}
		return "", NewSigningFailedError()
	}
	r.println("Ok.")

	if err := r.deps.Claims.Save(c, r.outputPath(c.FileName())); err != nil {
		return "", err
	}

	r.println("Submitting the claim...")
	body, err := r.submit(ctx, c, cert)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", NewEmptyResponseError()
	}

	resp, err := r.openResponse(body)
	if err != nil {
		return "", err
	}
	r.println("Ok, got a valid response.")

	r.println("Decrypting and processing the response...")
	if resp.State() == response.StateEncrypted {
		if err := r.decrypt(resp, cn); err != nil {
			return r.canceledOr(err)
		}
	}

	// saved before verification so a failing response can be inspected
	if err := os.WriteFile(r.outputPath(ResponseFileName), resp.Plaintext(), 0644); err != nil {
		return "", fmt.Errorf("failed to save response: %w", err)
	}

	if err := resp.Verify(); err != nil {
		r.printErrorSet(err)
		return "", WrapResponseFailedError(err, "Response signature verification failed")
	}
	if err := r.checkSigner(ctx, resp); err != nil {
		return "", err
	}

	text, err := resp.Content()
	if err != nil {
		return "", WrapResponseFailedError(err, "Could not read the response")
	}
	if text == "" {
		return "", NewEmptyResponseError()
	}
	r.println("Ok.")

	r.println("The service responded:")
	r.println(text)
	return text, nil
}

// claimContent returns the claim body. Typed text, and text read from a file, is prefixed with the
// holder's name on its own line.
func (r *Runner) claimContent(displayName string) ([]byte, string, error) {
	if r.content != nil {
		mimeType := claim.DetectMIMEType(r.content)
		if mimeType != claim.TextMIMEType {
			return r.content, mimeType, nil
		}
		return []byte(displayName + "\n" + string(r.content)), mimeType, nil
	}

	line, err := r.deps.Input.ReadLine("Enter claim content: ")
	if err != nil {
		return nil, "", err
	}
	return []byte(displayName + "\n" + line), claim.TextMIMEType, nil
}

func (r *Runner) createClaim(content []byte, mimeType string) (*claim.Claim, error) {
	c, err := r.deps.Claims.Create()
	if err != nil {
		return nil, err
	}
	if err := r.deps.Claims.AddFileWithType(c, claim.LogicalClaim, content, mimeType); err != nil {
		return nil, err
	}

	personal, err := ReadPersonalData(r.deps.Opener, r.settings.TokenIndex)
	if err != nil {
		return nil, err
	}
	if err := r.deps.Claims.AddFile(c, claim.LogicalPersonalData, []byte(personal.String())); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadPersonalData opens the token in terminal tokenIndex and reads its personal data file.
func ReadPersonalData(opener card.Opener, tokenIndex int) (*card.PersonalData, error) {
	token, err := opener.OpenToken(tokenIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to open card: %w", err)
	}
	defer token.Close()

	personal, err := token.PersonalData()
	if err != nil {
		return nil, fmt.Errorf("failed to read personal data: %w", err)
	}
	return personal, nil
}

func (r *Runner) submit(ctx context.Context, c *claim.Claim, cert *x509.Certificate) ([]byte, error) {
	data, err := r.deps.Claims.Serialize(c)
	if err != nil {
		return nil, err
	}

	if r.settings.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.SubmitTimeout)
		defer cancel()
	}

	body, err := r.deps.Submitter.SubmitClaim(ctx, r.settings.ServiceURL, data, c.MIMEType(), cert, r.settings.NoCrypt)
	if err != nil {
		return nil, fmt.Errorf("failed to submit the claim: %w", err)
	}
	r.logger.Debug("claim submitted",
		slog.String("url", r.settings.ServiceURL),
		slog.Bool("nocrypt", r.settings.NoCrypt),
		slog.Int("response_bytes", len(body)),
	)
	return body, nil
}

// openResponse parses the service reply. With nocrypt the reply is the signed document itself.
func (r *Runner) openResponse(body []byte) (*response.Response, error) {
	if r.settings.NoCrypt {
		return response.NewPlain(r.deps.Documents, body), nil
	}

	env, err := r.deps.Envelopes.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, WrapInvalidResponseError(err)
	}
	if errs := r.deps.Envelopes.ValidateEnvelope(env); len(errs) > 0 {
		r.eprintln("Could not validate response:")
		for _, e := range errs {
			r.eprintln(e.Error())
		}
		return nil, NewInvalidResponseError()
	}
	return response.New(r.deps.Envelopes, r.deps.Documents, env), nil
}

// decrypt finds the key addressed to the holder's CN and decrypts it with PIN1.
func (r *Runner) decrypt(resp *response.Response, cn string) error {
	keyIndex, err := resp.FindKey(cn)
	if err != nil {
		return err
	}
	pin, err := r.deps.Input.PromptFor(prompt.PurposeDecryption)
	if err != nil {
		return err
	}
	if err := resp.Decrypt(keyIndex, r.settings.TokenIndex, pin); err != nil {
		return err
	}
	return nil
}

func (r *Runner) checkSigner(ctx context.Context, resp *response.Response) error {
	if r.settings.ServiceJWKSURL == "" {
		return nil
	}
	set, err := r.fetchSet(ctx, r.settings.ServiceJWKSURL)
	if err != nil {
		return WrapResponseFailedError(err, "Could not fetch the service keys")
	}
	if err := resp.SignerMatchesKeySet(set); err != nil {
		return WrapResponseFailedError(err, "Response signer is not trusted")
	}
	return nil
}

// canceledOr turns a declined prompt into a quiet stop.
func (r *Runner) canceledOr(err error) (string, error) {
	if errors.Is(err, prompt.ErrCanceled) {
		r.logger.Debug("canceled by the user")
		return "", nil
	}
	return "", err
}

func (r *Runner) printErrorSet(err error) {
	var respErr *response.ResponseError
	if !errors.As(err, &respErr) {
		return
	}
	for _, e := range respErr.Errors {
		r.eprintln(e.Error())
	}
}

func (r *Runner) outputPath(name string) string {
	return filepath.Join(r.settings.OutputDir, name)
}

func (r *Runner) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *Runner) eprintln(s string) {
	fmt.Fprintln(r.errOut, s)
}
