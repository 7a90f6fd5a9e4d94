package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/auth"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate",
	Short: "Authenticate the card holder",
	Long: `Have the card sign a random nonce with the authentication key, verify the signature
against the card's authentication certificate and check the certificate over OCSP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newClientStack(cfg, appLogger)
		if err != nil {
			return err
		}
		defer stack.Close()

		authenticator := stack.authenticator()
		cert, err := authenticator.Authenticate(cmd.Context(), cfg.TokenIndex)
		if errors.Is(err, prompt.ErrCanceled) {
			return nil
		}
		if err != nil {
			appLogger.Debug("authentication failed", slog.String("state", string(authenticator.State())))
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Successfully authenticated %s.\n", auth.DisplayName(auth.SubjectCN(cert)))
		return nil
	},
}
