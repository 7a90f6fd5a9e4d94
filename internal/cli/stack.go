package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/auth"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/claim"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/submit"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/workflow"
)

// clientStack holds the components built from the client configuration
type clientStack struct {
	cfg     *config.ClientEnvironment
	logger  *slog.Logger
	driver  card.Driver
	readers *card.Readers
	notary  *notary.Notary
	docs    *container.DocService
	console *prompt.Console
}

func newClientStack(cfg *config.ClientEnvironment, logger *slog.Logger) (*clientStack, error) {
	n, err := notary.NewFromFile(cfg.IssuerCertsPath, logger,
		notary.WithResponderURL(cfg.OCSPResponderURL),
		notary.WithHTTPClient(&http.Client{Timeout: cfg.OCSPTimeout}),
	)
	if err != nil {
		return nil, err
	}

	driver, err := card.NewPCSCDriver()
	if err != nil {
		return nil, err
	}
	transport := card.NewTransport(driver, logger,
		card.WithDefaultTimeout(cfg.CardTimeout),
		card.WithGetResponseChaining(cfg.GetResponseChaining),
	)

	return &clientStack{
		cfg:     cfg,
		logger:  logger,
		driver:  driver,
		readers: card.NewReaders(transport, cfg.CardEncoding, logger),
		notary:  n,
		docs:    newDocService(cfg, n),
		console: prompt.NewConsole(os.Stdin, os.Stdout),
	}, nil
}

// newDocService returns the container service used for claims and responses.
// Responses carry no OCSP confirmation so one is not required.
func newDocService(cfg *config.ClientEnvironment, n *notary.Notary) *container.DocService {
	opts := []container.Option{container.WithBDOCVersion(cfg.BDOCVersion)}
	if n != nil {
		opts = append(opts, container.WithConfirmer(n), container.WithIssuers(n.Issuers()))
	}
	return container.NewDocService(opts...)
}

func (s *clientStack) authenticator() *auth.Authenticator {
	return auth.New(s.readers, s.console, s.notary, s.logger)
}

func (s *clientStack) deps() workflow.Deps {
	claims := claim.NewWorkflow(s.docs, s.readers, s.cfg.Format(), s.logger,
		claim.WithRoles([]string{s.cfg.SignerRole}),
		claim.WithProductionPlace(s.cfg.ProductionPlace()),
	)
	return workflow.Deps{
		Authenticator: s.authenticator(),
		Opener:        s.readers,
		Claims:        claims,
		Submitter:     submit.NewClient(s.logger),
		Envelopes:     envelope.NewEnvService(s.readers, s.logger),
		Documents:     s.docs,
		Input:         s.console,
	}
}

func (s *clientStack) Close() {
	if err := s.driver.Release(); err != nil {
		s.logger.Warn("failed to release PC/SC context", slog.String("error", err.Error()))
	}
}

func (s *clientStack) waitForCard(index int) error {
	if err := s.readers.WaitForCard(index); err != nil {
		return fmt.Errorf("no card in terminal %d: %w", index, err)
	}
	return nil
}
