package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/config"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/logger"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/version"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/workflow"
)

var (
	cfg       *config.ClientEnvironment
	appLogger *slog.Logger

	cfgFile     string
	contentFile string
)

var rootCmd = &cobra.Command{
	Use:               "eid-client [url]",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Submit a claim signed with an Estonian ID card",
	Long: `eid-client authenticates the ID card holder, signs a claim with the card's signing key,
submits it to the claim handling service and shows the decrypted and verified response.

The claim and the response are saved to the current directory as claim.ddoc (or claim.bdoc)
and response.ddoc.

Configuration is read from the environment, after loading the dotenv file given with --cfg
(default ` + config.DefaultConfigFile + ` when it exists).`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewClientConfig(cfgFile)
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		return nil
	},
	RunE: runClaim,
}

func runClaim(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.ServiceURL = args[0]
	}

	var opts []workflow.Option
	if contentFile != "" {
		content, err := os.ReadFile(contentFile)
		if err != nil {
			return fmt.Errorf("failed to read claim content: %w", err)
		}
		opts = append(opts, workflow.WithContent(content))
	}

	stack, err := newClientStack(cfg, appLogger)
	if err != nil {
		return err
	}
	defer stack.Close()

	appLogger.Debug("submitting claim",
		slog.String("CLAIM_SERVICE_URL", cfg.ServiceURL),
		slog.String("CLAIM_FORMAT", cfg.ClaimFormat),
		slog.Int("TOKEN_INDEX", cfg.TokenIndex),
		slog.Bool("NO_CRYPT", cfg.NoCrypt),
	)

	opts = append(opts, workflow.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	runner := workflow.NewRunner(workflow.Settings{
		ServiceURL:     cfg.ServiceURL,
		TokenIndex:     cfg.TokenIndex,
		SubmitTimeout:  cfg.SubmitTimeout,
		NoCrypt:        cfg.NoCrypt,
		ServiceJWKSURL: cfg.ServiceJWKSURL,
	}, stack.deps(), appLogger, opts...)

	_, err = runner.Run(cmd.Context())
	return err
}

// Execute runs the client. Errors are reported on stderr and the process still exits 0.
func Execute(ctx context.Context) {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "cfg", "", "dotenv configuration file")
	rootCmd.Flags().StringVar(&contentFile, "content-file", "", "read the claim content from a file instead of the terminal")

	rootCmd.AddCommand(readersCmd)
	rootCmd.AddCommand(personalDataCmd)
	rootCmd.AddCommand(authenticateCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(decryptCmd)
}
