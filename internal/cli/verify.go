package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/notary"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a saved claim or response container",
	Long: `Validate a signature container and verify each of its signatures.

Every problem found is printed, the command does not stop at the first one.
OCSP confirmations are checked against the issuers in ISSUER_CERTS_PATH.

Example:
  eid-client verify claim.ddoc`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := notary.NewFromFile(cfg.IssuerCertsPath, appLogger)
	if err != nil {
		return err
	}
	return verifyContainer(newDocService(cfg, n), f, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

var errVerificationFailed = errors.New("verification failed")

func verifyContainer(docs container.Service, r io.Reader, out, errOut io.Writer) error {
	c, err := docs.ReadFrom(r)
	if err != nil {
		return err
	}

	failed := false
	for _, err := range docs.Validate(c) {
		fmt.Fprintln(errOut, err)
		failed = true
	}

	for _, df := range c.DataFiles {
		if df == nil {
			continue
		}
		fmt.Fprintf(out, "Data file %s: %s (%s, %d bytes)\n", df.ID, df.Filename, df.MIMEType, len(df.Content))
	}

	if len(c.Signatures) == 0 {
		fmt.Fprintln(out, "No signatures found! Skipping verification.")
	}
	for i, sig := range c.Signatures {
		fmt.Fprintf(out, "Verifying signature %d of %d...", i+1, len(c.Signatures))
		if sig == nil {
			// already reported by Validate
			fmt.Fprintln(out, "FAILED")
			failed = true
			continue
		}
		errs := docs.VerifySignature(c, sig)
		if len(errs) == 0 {
			fmt.Fprintln(out, "OK")
			continue
		}
		fmt.Fprintln(out, "FAILED")
		failed = true
		fmt.Fprintln(errOut, "Could not verify signature "+sig.ID)
		for _, err := range errs {
			fmt.Fprintln(errOut, err)
		}
	}

	if failed {
		return errVerificationFailed
	}
	return nil
}
