package crypto

// certificates.go - helpers for loading, validating and matching X.509 certificates.
// The card certificates are checked against their validity window before any network call is made,
// OCSP issuers are selected from a PEM bundle.

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Validity is the result of checking a certificate against its validity window.
type Validity int

const (
	Valid Validity = iota
	NotYetValid
	Expired
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case NotYetValid:
		return "not yet valid"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("Validity(%d)", int(v))
	}
}

// CheckValidityWindow reports where now falls relative to the certificate's NotBefore/NotAfter.
func CheckValidityWindow(cert *x509.Certificate, now time.Time) Validity {
	if now.Before(cert.NotBefore) {
		return NotYetValid
	}
	if now.After(cert.NotAfter) {
		return Expired
	}
	return Valid
}

// ParseCertificateChain parses one or more X.509 certificates from PEM-encoded data.
// The certificates are returned in the order they appear in the PEM data.
// Blocks that are not certificates are skipped.
func ParseCertificateChain(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	var block *pem.Block
	remaining := pemData

	for {
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, WrapCertificateError(err, "failed to parse certificate")
		}

		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, NewValidationError("no certificates found in PEM data")
	}

	return certs, nil
}

// ReadCertChainFromPEMFile loads a certificate bundle from a PEM file.
//
// Parameters:
//   - path: The file path (e.g., "./certs/issuers.pem")
func ReadCertChainFromPEMFile(path string) ([]*x509.Certificate, error) {
	dir := filepath.Dir(path)
	filename := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, WrapValidationError(err, fmt.Sprintf("failed to open directory %s", dir))
	}
	defer root.Close()

	pemData, err := root.ReadFile(filename)
	if err != nil {
		return nil, WrapValidationError(err, fmt.Sprintf("failed to read %s", path))
	}

	return ParseCertificateChain(pemData)
}

// LoadCertPool loads the certificates in a PEM file into a cert pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, NewValidationError("empty certificate bundle path")
	}

	certs, err := ReadCertChainFromPEMFile(path)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}

	return pool, nil
}

// FindIssuer returns the certificate in candidates whose key signed cert.
// Candidates whose subject does not match the certificate's issuer are skipped.
func FindIssuer(cert *x509.Certificate, candidates []*x509.Certificate) (*x509.Certificate, error) {
	for _, candidate := range candidates {
		if !bytes.Equal(candidate.RawSubject, cert.RawIssuer) {
			continue
		}
		if err := cert.CheckSignatureFrom(candidate); err == nil {
			return candidate, nil
		}
	}
	return nil, NewCertificateError(fmt.Sprintf("no issuer found for %q", cert.Subject.CommonName))
}

// ValidateCertificateChain validates an X.509 certificate chain against a set of trusted root CAs.
//
// Parameters:
//   - certChain: Certificate chain (leaf first, root last)
//   - roots: Root CA pool (nil = system roots)
func ValidateCertificateChain(certChain []*x509.Certificate, roots *x509.CertPool) error {
	if len(certChain) == 0 {
		return NewValidationError("empty certificate chain")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certChain[1:] {
		intermediates.AddCert(cert)
	}

	verifyOpts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   time.Now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	chains, err := certChain[0].Verify(verifyOpts)
	if err != nil {
		return WrapCertificateError(err, "certificate chain validation failed")
	}
	if len(chains) == 0 {
		return NewCertificateError("no valid certificate chains found")
	}

	return nil
}

// PublicKeyMatches checks that the certificate carries the given public key.
// RSA and ECDSA keys are supported.
func PublicKeyMatches(cert *x509.Certificate, publicKey any) error {
	if cert == nil {
		return NewValidationError("nil certificate")
	}

	switch key := publicKey.(type) {
	case *rsa.PublicKey:
		certKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return NewCertificateError(fmt.Sprintf("certificate contains %T key, but expected *rsa.PublicKey", cert.PublicKey))
		}
		if !key.Equal(certKey) {
			return NewCertificateError("certificate public key does not match provided RSA key")
		}

	case *ecdsa.PublicKey:
		certKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return NewCertificateError(fmt.Sprintf("certificate contains %T key, but expected *ecdsa.PublicKey", cert.PublicKey))
		}
		if !key.Equal(certKey) {
			return NewCertificateError("certificate public key does not match provided ECDSA key")
		}

	default:
		return NewValidationError(fmt.Sprintf("unsupported public key type: %T (expected *rsa.PublicKey or *ecdsa.PublicKey)", publicKey))
	}

	return nil
}
