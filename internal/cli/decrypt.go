package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/auth"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/response"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <in.cdoc> <out>",
	Short: "Decrypt an encrypted document with the card",
	Long: `Decrypt an encrypted document addressed to the card holder and save the plaintext.

The key encrypted for the card's authentication certificate is unwrapped on the card after PIN1
is entered.

Example:
  eid-client decrypt response.cdoc response.ddoc`,
	Args: cobra.ExactArgs(2),
	RunE: runDecrypt,
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	stack, err := newClientStack(cfg, appLogger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.waitForCard(cfg.TokenIndex); err != nil {
		return err
	}
	envelopes := envelope.NewEnvService(stack.readers, appLogger)
	return decryptFile(envelopes, stack.readers, stack.console, f, args[1], cfg.TokenIndex, cmd.OutOrStdout())
}

func decryptFile(envelopes envelope.Service, opener card.Opener, prompter prompt.Prompter, r io.Reader, outPath string, tokenIndex int, out io.Writer) error {
	env, err := envelopes.Parse(r)
	if err != nil {
		return err
	}
	if errs := envelopes.ValidateEnvelope(env); len(errs) > 0 {
		return errors.Join(errs...)
	}

	recipient, err := recipientOf(opener, tokenIndex)
	if err != nil {
		return err
	}
	keyIndex, err := response.FindKeyFor(envelopes, env, recipient)
	if err != nil {
		return err
	}

	pin, err := prompter.PromptFor(prompt.PurposeDecryption)
	if errors.Is(err, prompt.ErrCanceled) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := envelopes.Decrypt(env, keyIndex, tokenIndex, pin); err != nil {
		return err
	}

	data, err := envelopes.Data(env)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return err
	}
	fmt.Fprintf(out, "Decrypted %d bytes into %s.\n", len(data), outPath)
	return nil
}

// recipientOf reads the CN of the authentication certificate on the card in terminal tokenIndex
func recipientOf(opener card.Opener, tokenIndex int) (string, error) {
	token, err := opener.OpenToken(tokenIndex)
	if err != nil {
		return "", fmt.Errorf("failed to open card: %w", err)
	}
	defer token.Close()

	cert, err := token.Certificate(card.KeySlotAuthentication)
	if err != nil {
		return "", fmt.Errorf("failed to read authentication certificate: %w", err)
	}
	return auth.SubjectCN(cert), nil
}
