package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var readersCmd = &cobra.Command{
	Use:   "readers",
	Short: "List the attached card readers",
	Long:  `List the PC/SC card readers in the order TOKEN_INDEX refers to them`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := newClientStack(cfg, appLogger)
		if err != nil {
			return err
		}
		defer stack.Close()

		terminals, err := stack.readers.Terminals()
		if err != nil {
			return err
		}
		appLogger.Debug("Readers command", slog.Int("count", len(terminals)))

		for _, t := range terminals {
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", t.Index, t.Name)
		}
		return nil
	},
}
