// keygen generates the claim service's response signing key, its certificate and the public JWK set.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	eidcrypto "github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/version"
)

// file naming convention - name.key.pem, name.cert.pem and name.public.jwk
const (
	privateKeyFileNameFormat  = "%s.key.pem"
	certificateFileNameFormat = "%s.cert.pem"
	publicKeyFileNameFormat   = "%s.public.jwk"
)

var (
	name       string
	commonName string
	outputDir  string
	rsaSize    int
	validDays  int
	kid        string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "keygen",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "Key generator for the claim service",
		Long:              "Generate the RSA key and self-signed certificate the claim service signs responses with, and the JWK set clients pin the signer to",
	}

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new signing key",
		Long:  "Generate a new RSA key pair with a self-signed certificate. Use the files for SIGNING_KEY_PATH and SIGNING_CERT_PATH.",
		RunE:  runGenerate,
	}

	generateCmd.Flags().StringVarP(&name, "name", "n", "claim-service", "File name prefix")
	generateCmd.Flags().StringVarP(&commonName, "cn", "c", "Claim Service", "Certificate subject common name")
	generateCmd.Flags().StringVarP(&outputDir, "outputdir", "o", "", "Output directory for generated keys [required]")
	generateCmd.Flags().IntVarP(&rsaSize, "size", "s", 4096, "RSA key size in bits (2048 or 4096, default: 4096)")
	generateCmd.Flags().IntVarP(&validDays, "days", "d", 365, "Certificate validity in days")
	generateCmd.Flags().StringVarP(&kid, "kid", "k", "", "Key ID (default: auto-generated from thumbprint)")
	generateCmd.MarkFlagRequired("outputdir")

	rootCmd.AddCommand(generateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if rsaSize != 2048 && rsaSize != 4096 {
		return fmt.Errorf("invalid RSA key size: %d (must be 2048 or 4096)", rsaSize)
	}
	if validDays < 1 {
		return fmt.Errorf("invalid validity: %d days", validDays)
	}

	// make the directory if it doesn't exist
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	fmt.Printf("Generating %d-bit RSA key pair for %q\n", rsaSize, commonName)

	privateKey, err := eidcrypto.GenerateRSAKeyPair(rsaSize)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	// Generate key ID from thumbprint if not provided
	keyID := kid
	if keyID == "" {
		keyID, err = eidcrypto.GenerateKeyIDFromRSAKey(&privateKey.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to generate key ID: %w", err)
		}
	}

	cert, err := eidcrypto.CreateSelfSignedCertificate(privateKey, commonName, time.Duration(validDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	keyFile := fmt.Sprintf(privateKeyFileNameFormat, name)
	if err := eidcrypto.SaveRSAPrivateKeyToPEMFile(privateKey, outputDir, keyFile); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}
	fmt.Printf("✓ Private key: %s\n", filepath.Join(outputDir, keyFile))

	certFile := fmt.Sprintf(certificateFileNameFormat, name)
	if err := eidcrypto.SaveCertificateToPEMFile(cert, outputDir, certFile); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	fmt.Printf("✓ Certificate: %s (valid until %s)\n", filepath.Join(outputDir, certFile), cert.NotAfter.Format(time.DateOnly))

	jwkFile := fmt.Sprintf(publicKeyFileNameFormat, name)
	if err := eidcrypto.SaveRSAPublicKeyToJWKFile(&privateKey.PublicKey, keyID, outputDir, jwkFile); err != nil {
		return fmt.Errorf("failed to save public key: %w", err)
	}
	fmt.Printf("✓ Public JWK:  %s (kid: %s)\n", filepath.Join(outputDir, jwkFile), keyID)

	return nil
}
