package services

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
)

// Services aggregates the services used by the claim service handlers.
type Services struct {
	ClaimChecker ClaimChecker
	Responder    Responder

	// KeySet publishes the response signing key
	KeySet jwk.Set
}

// NewServices creates service implementations based on configuration.
// This is the single entry point for initializing the claim service.
func NewServices(cfg *config.ServerEnvironment, logger *slog.Logger) (*Services, error) {
	key, err := crypto.ReadRSAPrivateKeyFromPEMFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	cert, err := crypto.ReadCertificateFromPEMFile(cfg.SigningCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing certificate: %w", err)
	}
	if err := crypto.PublicKeyMatches(cert, &key.PublicKey); err != nil {
		return nil, fmt.Errorf("signing certificate %s does not match SIGNING_KEY_PATH: %w", cfg.SigningCertPath, err)
	}

	keyID, err := crypto.GenerateKeyIDFromRSAKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key ID: %w", err)
	}
	publicJWK, err := crypto.RSAPublicKeyToJWK(&key.PublicKey, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}
	keySet := jwk.NewSet()
	if err := keySet.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to create JWK set: %w", err)
	}

	var claimOpts []container.Option
	var checkerOpts []CheckerOption
	if cfg.IssuerCertsPath != "" {
		issuers, err := crypto.ReadCertChainFromPEMFile(cfg.IssuerCertsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load issuer certificates: %w", err)
		}
		claimOpts = append(claimOpts, container.WithIssuers(issuers))

		roots, err := crypto.LoadCertPool(cfg.IssuerCertsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load issuer certificates: %w", err)
		}
		checkerOpts = append(checkerOpts, WithTrustedRoots(roots))
	}
	if cfg.ClaimsDir != "" {
		if err := os.MkdirAll(cfg.ClaimsDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create claims directory: %w", err)
		}
		checkerOpts = append(checkerOpts, WithClaimsDir(cfg.ClaimsDir))
	}
	if cfg.RequireConfirmation {
		claimOpts = append(claimOpts, container.WithRequiredConfirmation())
	}

	responderOpts := []ResponderOption{WithResponseText(cfg.ResponseText)}
	if cfg.SignResponses {
		responderOpts = append(responderOpts, WithResponseSigner(key, cert))
	}

	return &Services{
		ClaimChecker: NewContainerClaimChecker(container.NewDocService(claimOpts...), logger, checkerOpts...),
		Responder: NewContainerResponder(
			container.NewDocService(),
			envelope.NewEnvService(nil, logger),
			logger,
			responderOpts...,
		),
		KeySet: keySet,
	}, nil
}
