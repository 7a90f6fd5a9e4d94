package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/logger"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/server"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/services"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/version"
)

func main() {
	cmd := &cobra.Command{
		Use:   "claim-service",
		Short: "Claim handling service",
		Long: `claim-service accepts claims signed with an Estonian ID card on POST /submit,
checks the claim's signature and answers with a signed response encrypted for the
card holder's authentication certificate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.Int64("MAX_REQUEST_SIZE", cfg.MaxRequestSize),
		slog.Bool("SIGN_RESPONSES", cfg.SignResponses),
		slog.String("ISSUER_CERTS_PATH", cfg.IssuerCertsPath),
		slog.Bool("REQUIRE_CONFIRMATION", cfg.RequireConfirmation),
		slog.String("CLAIMS_DIR", cfg.ClaimsDir),
		slog.String("SIGNING_CERT_PATH", cfg.SigningCertPath),
	)

	svcs, err := services.NewServices(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to create services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// start the server
	if err := server.NewServer(cfg, svcs, appLogger).Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
