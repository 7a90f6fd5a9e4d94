// Package auth proves that the card holder has the private key of the authentication certificate.
//
// The card signs a fresh random nonce, the signature is checked against the certificate read from
// the same card, and the certificate's revocation status is confirmed over OCSP.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"log/slog"
	"time"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
)

// NonceLength is the number of random bytes signed per attempt.
const NonceLength = 64

// RevocationChecker confirms a certificate has not been revoked.
type RevocationChecker interface {
	CheckCertificate(ctx context.Context, cert *x509.Certificate) error
}

// Authenticator runs the challenge-response check against a card.
// It is not safe for concurrent use.
type Authenticator struct {
	opener   card.Opener
	prompter prompt.Prompter
	checker  RevocationChecker
	logger   *slog.Logger
	now      func() time.Time

	state State
}

type Option func(*Authenticator)

// WithClock sets the time source used for the certificate validity check.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func New(opener card.Opener, prompter prompt.Prompter, checker RevocationChecker, logger *slog.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{
		opener:   opener,
		prompter: prompter,
		checker:  checker,
		logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the state reached by the last Authenticate call.
func (a *Authenticator) State() State {
	return a.state
}

func (a *Authenticator) advance(next State) {
	if !isValidStateTransition(a.state, next) {
		// a bug in this package, not a runtime condition
		panic(fmt.Sprintf("auth: invalid state transition %s -> %s", a.state, next))
	}
	a.logger.Debug("authentication state", slog.String("from", string(a.state)), slog.String("to", string(next)))
	a.state = next
}

// Authenticate returns the authentication certificate of the card in terminal tokenIndex
// once the holder has proven possession of its key and the certificate is confirmed good.
//
// If the holder cancels the PIN prompt, the returned error matches prompt.ErrCanceled.
func (a *Authenticator) Authenticate(ctx context.Context, tokenIndex int) (*x509.Certificate, error) {
	a.state = StateIdle

	if err := a.opener.WaitForCard(tokenIndex); err != nil {
		a.advance(StateCardUnavailable)
		return nil, fmt.Errorf("card not available: %w", err)
	}

	token, err := a.opener.OpenToken(tokenIndex)
	if err != nil {
		a.advance(StateCardUnavailable)
		return nil, fmt.Errorf("failed to open card: %w", err)
	}
	defer token.Close()
	a.advance(StateCardReady)

	pin, err := a.prompter.PromptFor(prompt.PurposeAuthentication)
	if err != nil {
		return nil, fmt.Errorf("PIN1 entry: %w", err)
	}
	if err := token.VerifyPIN(card.KeySlotAuthentication, pin); err != nil {
		a.advance(StateCardUnavailable)
		return nil, fmt.Errorf("PIN1 verification failed: %w", err)
	}

	cert, err := token.Certificate(card.KeySlotAuthentication)
	if err != nil {
		a.advance(StateCardUnavailable)
		return nil, fmt.Errorf("failed to read authentication certificate: %w", err)
	}
	a.advance(StateCertificateFetched)

	switch validity := crypto.CheckValidityWindow(cert, a.now()); validity {
	case crypto.Expired:
		a.advance(StateCertificateExpired)
		return nil, NewCertificateInvalidError(fmt.Sprintf("authentication certificate expired on %s", cert.NotAfter.Format(time.DateOnly)))
	case crypto.NotYetValid:
		a.advance(StateCertificateNotYetValid)
		return nil, NewCertificateInvalidError(fmt.Sprintf("authentication certificate not valid before %s", cert.NotBefore.Format(time.DateOnly)))
	}
	a.advance(StateCertificateLocallyValid)

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(nonce)

	signature, err := token.Sign(card.KeySlotAuthentication, digest[:])
	if err != nil {
		a.advance(StateCardUnavailable)
		return nil, fmt.Errorf("card failed to sign the challenge: %w", err)
	}
	a.advance(StateNonceSigned)

	if err := crypto.VerifyDigestSignature(cert.PublicKey, digest[:], signature); err != nil {
		a.advance(StateSignatureInvalid)
		return nil, WrapSignatureInvalidError(err, "signed nonce did not verify")
	}
	a.advance(StateSignatureVerified)

	if err := a.checker.CheckCertificate(ctx, cert); err != nil {
		a.advance(StateRevocationCheckFailed)
		return nil, WrapRevocationCheckFailedError(err, "certificate status check failed")
	}
	a.advance(StateAuthenticated)

	a.logger.Info("card holder authenticated",
		slog.String("subject", SubjectCN(cert)),
		slog.Int("token_index", tokenIndex),
	)
	return cert, nil
}

// GenerateNonce returns NonceLength bytes from crypto/rand.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
