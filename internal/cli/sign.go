package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/claim"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/prompt"
)

// defaultSignMIMEType is used for input files given without a MIME type
const defaultSignMIMEType = "application/octet-stream"

var signCmd = &cobra.Command{
	Use:   "sign <file[:mimetype]>... <out>",
	Short: "Sign files into a new container",
	Long: `Add the input files to a new signature container and sign it with the card's signing key.

The container format follows the output file extension: .bdoc creates a BDOC container,
anything else a DIGIDOC-XML container. Files given without a MIME type are added as
` + defaultSignMIMEType + `.

Example:
  eid-client sign letter.txt:text/plain photo.jpg:image/jpeg signed.bdoc`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSign,
}

func runSign(cmd *cobra.Command, args []string) error {
	stack, err := newClientStack(cfg, appLogger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.waitForCard(cfg.TokenIndex); err != nil {
		return err
	}
	pin, err := stack.console.PromptFor(prompt.PurposeSigning)
	if errors.Is(err, prompt.ErrCanceled) {
		return nil
	}
	if err != nil {
		return err
	}

	signer := claim.NewWorkflow(stack.docs, stack.readers, cfg.Format(), appLogger,
		claim.WithRoles([]string{cfg.SignerRole}),
		claim.WithProductionPlace(cfg.ProductionPlace()),
	)
	return signFiles(cmd.Context(), stack.docs, signer, args[:len(args)-1], args[len(args)-1], cfg.TokenIndex, pin, cmd.OutOrStdout())
}

// documentSigner adds a card signature to a container
type documentSigner interface {
	SignDocument(ctx context.Context, doc *container.Container, tokenIndex int, credential string) (bool, error)
}

func signFiles(ctx context.Context, docs container.Service, signer documentSigner, inputs []string, outPath string, tokenIndex int, credential string, out io.Writer) error {
	doc, err := docs.Create(formatForPath(outPath))
	if err != nil {
		return err
	}

	for _, input := range inputs {
		path, mimeType, ok := strings.Cut(input, ":")
		if !ok || mimeType == "" {
			mimeType = defaultSignMIMEType
		}
		if _, err := docs.AddDataFile(doc, path, mimeType, container.ContentEmbeddedBase64); err != nil {
			return err
		}
	}

	signed, err := signer.SignDocument(ctx, doc, tokenIndex, credential)
	if err != nil {
		return err
	}
	if !signed {
		return nil
	}

	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := docs.Serialize(doc, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed %d file(s) into %s (%s).\n", len(doc.DataFiles), outPath, doc.Format)
	return nil
}

// formatForPath picks the container format from the file extension, DIGIDOC-XML by default
func formatForPath(path string) container.Format {
	if container.FormatBDOC.Extension() == strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
		return container.FormatBDOC
	}
	return container.FormatDigiDocXML
}
