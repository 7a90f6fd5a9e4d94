package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/workflow"
)

var personalDataCmd = &cobra.Command{
	Use:   "personal-data",
	Short: "Print the personal data file of the card",
	Long:  `Read the 16 record personal data file from the card in terminal TOKEN_INDEX. No PIN is needed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newClientStack(cfg, appLogger)
		if err != nil {
			return err
		}
		defer stack.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Reading personal data...")
		if err := stack.waitForCard(cfg.TokenIndex); err != nil {
			return err
		}

		personal, err := workflow.ReadPersonalData(stack.readers, cfg.TokenIndex)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, personal.String())
		return nil
	},
}
