// this file contains functions to generate and store the claim service's signing key and certificate
//
// PEM private keys are in PKCS#8 format (https://datatracker.ietf.org/doc/html/rfc5208)
// the public key is also published as a JWK set so eID clients can pin the response signer

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size
// minimum key size is 2048 bits - key size must be a multiple of 256
func GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, NewKeyManagementError("key size must be at least 2048 bits")
	}

	if bits%256 != 0 {
		return nil, NewKeyManagementError("key size should be a multiple of 256")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to generate key pair")
	}

	return privateKey, nil
}

// CreateSelfSignedCertificate issues a self-signed certificate for the key.
// The subject CN is the identity the claim service signs its responses under.
func CreateSelfSignedCertificate(privateKey *rsa.PrivateKey, commonName string, validFor time.Duration) (*x509.Certificate, error) {
	if privateKey == nil {
		return nil, NewKeyManagementError("private key is nil")
	}
	if commonName == "" {
		return nil, NewValidationError("common name is required")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to generate serial number")
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to create certificate")
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, WrapCertificateError(err, "failed to parse generated certificate")
	}
	return cert, nil
}

// SaveRSAPrivateKeyToPEMFile saves an RSA private key to a PEM file in PKCS#8 format
// note the key is not encrypted
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "service.pem")
func SaveRSAPrivateKeyToPEMFile(privateKey *rsa.PrivateKey, baseDir, filename string) error {
	privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return WrapKeyManagementError(err, "failed to marshal private key")
	}

	return writePEMFile(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}, baseDir, filename, 0600)
}

// SaveCertificateToPEMFile saves a certificate to a PEM file
func SaveCertificateToPEMFile(cert *x509.Certificate, baseDir, filename string) error {
	if cert == nil {
		return NewValidationError("certificate is nil")
	}
	return writePEMFile(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}, baseDir, filename, 0644)
}

func writePEMFile(block *pem.Block, baseDir, filename string, perm os.FileMode) error {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return WrapKeyManagementError(err, fmt.Sprintf("failed to open root directory %s", baseDir))
	}
	defer root.Close()

	file, err := root.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return WrapKeyManagementError(err, "failed to create file")
	}
	defer file.Close()

	if err := pem.Encode(file, block); err != nil {
		return WrapKeyManagementError(err, "failed to encode PEM")
	}

	return nil
}

// ReadRSAPrivateKeyFromPEMFile loads an RSA private key from a PKCS#8 PEM file
//
// Parameters:
//   - path: The file path (e.g., "./keys/service.pem")
func ReadRSAPrivateKeyFromPEMFile(path string) (*rsa.PrivateKey, error) {
	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, WrapKeyManagementError(err, fmt.Sprintf("failed to open directory for %s", path))
	}
	defer root.Close()

	pemData, err := root.ReadFile(filepath.Base(path))
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to read file")
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, NewValidationError("failed to decode PEM block")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, NewValidationError(fmt.Sprintf("PEM block is not a private key (type: %s)", block.Type))
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to parse PKCS#8 private key")
	}

	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, NewKeyManagementError("key is not an RSA private key")
	}

	return privateKey, nil
}

// ReadCertificateFromPEMFile loads the first certificate from a PEM file
func ReadCertificateFromPEMFile(path string) (*x509.Certificate, error) {
	certs, err := ReadCertChainFromPEMFile(path)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// SaveRSAPublicKeyToJWKFile saves an RSA public key as a single-key JWK set
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "jwks.json")
func SaveRSAPublicKeyToJWKFile(publicKey *rsa.PublicKey, keyID, baseDir, filename string) error {
	jwkKey, err := RSAPublicKeyToJWK(publicKey, keyID)
	if err != nil {
		return err
	}

	jwkSet := jwk.NewSet()
	if err := jwkSet.AddKey(jwkKey); err != nil {
		return WrapKeyManagementError(err, "failed to add key to JWK set")
	}

	jsonBytes, err := json.MarshalIndent(jwkSet, "", "  ")
	if err != nil {
		return WrapKeyManagementError(err, "failed to marshal JWK set")
	}

	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return WrapKeyManagementError(err, fmt.Sprintf("failed to open root directory %s", baseDir))
	}
	defer root.Close()

	if err := root.WriteFile(filename, jsonBytes, 0644); err != nil {
		return WrapKeyManagementError(err, "failed to write file")
	}

	return nil
}
