// Package envelope encrypts documents for ID card holders and decrypts them with the card.
//
// The body is encrypted with a random AES-256-GCM content key. The content key is encrypted
// (RSA PKCS#1 v1.5) for each recipient's authentication certificate, so only the card holding
// the matching private key can open the envelope.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"go.uber.org/multierr"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
)

const (
	KeyTransportRSA15 = "rsa-1_5"
	BodyAES256GCM     = "aes-256-gcm"

	// MIMEType is the content type encrypted envelopes are sent with
	MIMEType = "application/x-cdoc"

	contentKeySize  = 32
	maxEnvelopeSize = 10 << 20
)

// EncryptedKey is the content key encrypted for one recipient.
type EncryptedKey struct {
	// Recipient is the subject CN of the recipient certificate
	Recipient        string `json:"recipient"`
	KeyName          string `json:"keyName,omitempty"`
	EncryptionMethod string `json:"encryptionMethod"`
	CipherValue      []byte `json:"cipherValue"`
}

type EncryptedData struct {
	EncryptionMethod string         `json:"encryptionMethod"`
	MIMEType         string         `json:"mimeType"`
	Keys             []EncryptedKey `json:"keys"`
	IV               []byte         `json:"iv"`
	CipherValue      []byte         `json:"cipherValue"`

	plaintext []byte
	decrypted bool
}

// Service is the set of envelope operations the response workflow uses.
type Service interface {
	Parse(r io.Reader) (*EncryptedData, error)
	KeyCount(env *EncryptedData) int
	RecipientOf(env *EncryptedData, keyIndex int) (string, error)

	// Decrypt unwraps the content key at keyIndex with the card in terminal tokenIndex.
	Decrypt(env *EncryptedData, keyIndex, tokenIndex int, credential string) error

	// Data returns the plaintext after a successful Decrypt.
	Data(env *EncryptedData) ([]byte, error)
	ValidateEnvelope(env *EncryptedData) []error
}

// EnvService implements Service with card-side key unwrapping.
type EnvService struct {
	opener card.Opener
	logger *slog.Logger
}

// NewEnvService creates an EnvService. opener may be nil for services that only encrypt.
func NewEnvService(opener card.Opener, logger *slog.Logger) *EnvService {
	return &EnvService{opener: opener, logger: logger}
}

// Encrypt encrypts plaintext for every recipient certificate. Recipients must hold RSA keys.
func (s *EnvService) Encrypt(plaintext []byte, mimeType string, recipients []*x509.Certificate) (*EncryptedData, error) {
	if len(recipients) == 0 {
		return nil, NewEncryptionError("no recipients")
	}

	cek := make([]byte, contentKeySize)
	if _, err := rand.Read(cek); err != nil {
		return nil, WrapEncryptionError(err, "failed to generate content key")
	}

	env := &EncryptedData{
		EncryptionMethod: BodyAES256GCM,
		MIMEType:         mimeType,
	}

	for _, cert := range recipients {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, NewEncryptionError(fmt.Sprintf("recipient %q has a %T key, only RSA is supported", cert.Subject.CommonName, cert.PublicKey))
		}
		wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
		if err != nil {
			return nil, WrapEncryptionError(err, "failed to encrypt content key")
		}
		env.Keys = append(env.Keys, EncryptedKey{
			Recipient:        cert.Subject.CommonName,
			KeyName:          cert.SerialNumber.Text(16),
			EncryptionMethod: KeyTransportRSA15,
			CipherValue:      wrapped,
		})
	}

	gcm, err := newGCM(cek)
	if err != nil {
		return nil, WrapEncryptionError(err, "failed to initialise cipher")
	}
	env.IV = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(env.IV); err != nil {
		return nil, WrapEncryptionError(err, "failed to generate IV")
	}
	env.CipherValue = gcm.Seal(nil, env.IV, plaintext, nil)

	return env, nil
}

// Serialize writes the envelope as JSON.
func (s *EnvService) Serialize(env *EncryptedData, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return WrapInvalidError(err, "failed to serialize envelope")
	}
	return nil
}

func (s *EnvService) Parse(r io.Reader) (*EncryptedData, error) {
	dec := json.NewDecoder(io.LimitReader(r, maxEnvelopeSize))
	dec.DisallowUnknownFields()

	var env EncryptedData
	if err := dec.Decode(&env); err != nil {
		return nil, WrapInvalidError(err, "failed to parse envelope")
	}
	return &env, nil
}

func (s *EnvService) KeyCount(env *EncryptedData) int {
	return len(env.Keys)
}

func (s *EnvService) RecipientOf(env *EncryptedData, keyIndex int) (string, error) {
	if keyIndex < 0 || keyIndex >= len(env.Keys) {
		return "", NewKeyIndexError(fmt.Sprintf("key index %d out of range, envelope has %d keys", keyIndex, len(env.Keys)))
	}
	return env.Keys[keyIndex].Recipient, nil
}

// ValidateEnvelope checks the envelope structure and returns every problem found.
func (s *EnvService) ValidateEnvelope(env *EncryptedData) []error {
	var errs error

	if env.EncryptionMethod != BodyAES256GCM {
		errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("unsupported encryption method %q", env.EncryptionMethod)))
	}
	if len(env.CipherValue) == 0 {
		errs = multierr.Append(errs, NewInvalidError("envelope has no encrypted content"))
	}
	if len(env.IV) == 0 {
		errs = multierr.Append(errs, NewInvalidError("envelope has no IV"))
	}
	if len(env.Keys) == 0 {
		errs = multierr.Append(errs, NewInvalidError("envelope has no recipient keys"))
	}
	for i, key := range env.Keys {
		if key.Recipient == "" {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("key %d has no recipient", i)))
		}
		if key.EncryptionMethod != KeyTransportRSA15 {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("key %d uses unsupported method %q", i, key.EncryptionMethod)))
		}
		if len(key.CipherValue) == 0 {
			errs = multierr.Append(errs, NewInvalidError(fmt.Sprintf("key %d has no encrypted key", i)))
		}
	}

	return multierr.Errors(errs)
}

// Decrypt opens the token, verifies PIN1 and lets the card decrypt the content key.
// The card session is closed before Decrypt returns.
func (s *EnvService) Decrypt(env *EncryptedData, keyIndex, tokenIndex int, credential string) error {
	if s.opener == nil {
		return NewDecryptionError("no card access configured")
	}
	if _, err := s.RecipientOf(env, keyIndex); err != nil {
		return err
	}
	if env.EncryptionMethod != BodyAES256GCM {
		return NewInvalidError(fmt.Sprintf("unsupported encryption method %q", env.EncryptionMethod))
	}

	token, err := s.opener.OpenToken(tokenIndex)
	if err != nil {
		return WrapDecryptionError(err, "failed to open card")
	}
	defer token.Close()

	if err := token.VerifyPIN(card.KeySlotAuthentication, credential); err != nil {
		return WrapDecryptionError(err, "PIN1 verification failed")
	}

	cek, err := token.Decrypt(env.Keys[keyIndex].CipherValue)
	if err != nil {
		return WrapDecryptionError(err, "card failed to decrypt the content key")
	}
	if len(cek) != contentKeySize {
		return NewDecryptionError(fmt.Sprintf("content key is %d bytes, want %d", len(cek), contentKeySize))
	}

	gcm, err := newGCM(cek)
	if err != nil {
		return WrapDecryptionError(err, "failed to initialise cipher")
	}
	if len(env.IV) != gcm.NonceSize() {
		return NewInvalidError(fmt.Sprintf("IV is %d bytes, want %d", len(env.IV), gcm.NonceSize()))
	}
	plaintext, err := gcm.Open(nil, env.IV, env.CipherValue, nil)
	if err != nil {
		return WrapDecryptionError(err, "encrypted content failed authentication")
	}

	env.plaintext = plaintext
	env.decrypted = true
	s.logger.Debug("envelope decrypted",
		slog.Int("key_index", keyIndex),
		slog.Int("bytes", len(plaintext)),
	)
	return nil
}

func (s *EnvService) Data(env *EncryptedData) ([]byte, error) {
	if !env.decrypted {
		return nil, NewDecryptionError("envelope has not been decrypted")
	}
	return slices.Clone(env.plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var _ Service = (*EnvService)(nil)
