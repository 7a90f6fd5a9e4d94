package card

// token.go exposes the cryptographic functions of the EstEID application.
//
// A Token wraps one card session. The authentication key is unlocked with PIN1 and
// is used for challenge signing and for decrypting session keys, the signing key is
// unlocked with PIN2 and is used for document signatures.

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"log/slog"
	"math/big"
)

// KeySlot selects one of the two key pairs on the card.
type KeySlot int

const (
	KeySlotAuthentication KeySlot = iota
	KeySlotSigning
)

func (k KeySlot) String() string {
	switch k {
	case KeySlotAuthentication:
		return "authentication"
	case KeySlotSigning:
		return "signing"
	default:
		return fmt.Sprintf("keyslot(%d)", int(k))
	}
}

func (k KeySlot) pinReference() byte {
	if k == KeySlotSigning {
		return 0x02
	}
	return 0x01
}

func (k KeySlot) certificateFile() FileID {
	if k == KeySlotSigning {
		return FileSignCert
	}
	return FileAuthCert
}

// sha256DigestInfoPrefix is the DER DigestInfo header for a SHA-256 digest (RFC 8017 9.2)
var sha256DigestInfoPrefix = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
}

// Token is the set of card operations used by the authentication, signing and decryption workflows.
type Token interface {
	PersonalData() (*PersonalData, error)
	Certificate(slot KeySlot) (*x509.Certificate, error)
	VerifyPIN(slot KeySlot, pin string) error

	// Sign signs a SHA-256 digest with the key in slot.
	// RSA signatures are PKCS#1 v1.5, ECDSA signatures are ASN.1 DER encoded.
	Sign(slot KeySlot, digest []byte) ([]byte, error)

	// Decrypt decrypts a PKCS#1 v1.5 encrypted key with the authentication key.
	Decrypt(ciphertext []byte) ([]byte, error)

	Close() error
}

// Opener gives access to the token in a terminal.
type Opener interface {
	WaitForCard(index int) error
	OpenToken(index int) (Token, error)
}

// Readers opens EstEID tokens through a Transport.
type Readers struct {
	transport *Transport
	encoding  string
	logger    *slog.Logger
}

// NewReaders returns an Opener for the terminals of transport.
// encoding is the character set of the personal data file ("" for the default).
func NewReaders(transport *Transport, encoding string, logger *slog.Logger) *Readers {
	if encoding == "" {
		encoding = DefaultPersonalDataEncoding
	}
	return &Readers{transport: transport, encoding: encoding, logger: logger}
}

func (r *Readers) Terminals() ([]Terminal, error) {
	return r.transport.Terminals()
}

func (r *Readers) WaitForCard(index int) error {
	return r.transport.WaitForCard(index, 0)
}

func (r *Readers) OpenToken(index int) (Token, error) {
	session, err := r.transport.Connect(index)
	if err != nil {
		return nil, err
	}
	return NewEstEID(session, r.encoding, r.logger), nil
}

// EstEID is a Token backed by a card session.
type EstEID struct {
	session  *Session
	encoding string
	logger   *slog.Logger

	personalData *PersonalData
	certificates map[KeySlot]*x509.Certificate
}

func NewEstEID(session *Session, encoding string, logger *slog.Logger) *EstEID {
	return &EstEID{
		session:      session,
		encoding:     encoding,
		logger:       logger,
		certificates: make(map[KeySlot]*x509.Certificate),
	}
}

// PersonalData reads and decodes the personal data file. The result is cached for the session.
func (e *EstEID) PersonalData() (*PersonalData, error) {
	if e.personalData != nil {
		return e.personalData, nil
	}

	records, err := ReadPersonalDataRecords(e.session)
	if err != nil {
		return nil, err
	}
	pd, err := DecodePersonalData(records, e.encoding)
	if err != nil {
		return nil, err
	}
	e.personalData = pd
	return pd, nil
}

func (e *EstEID) Certificate(slot KeySlot) (*x509.Certificate, error) {
	if cert, ok := e.certificates[slot]; ok {
		return cert, nil
	}

	if err := SelectMasterFile(e.session); err != nil {
		return nil, err
	}
	if err := SelectDirectory(e.session, FilePersonalDataDir); err != nil {
		return nil, err
	}
	der, err := ReadTransparentFile(e.session, slot.certificateFile())
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, WrapDecodingError(err, fmt.Sprintf("failed to parse %s certificate", slot))
	}

	e.logger.Debug("certificate read from card",
		slog.String("slot", slot.String()),
		slog.String("subject", cert.Subject.String()))

	e.certificates[slot] = cert
	return cert, nil
}

func (e *EstEID) VerifyPIN(slot KeySlot, pin string) error {
	if pin == "" {
		return NewProtocolError(fmt.Sprintf("empty PIN for %s key", slot))
	}
	if _, err := e.session.Transmit(verifyPINCommand(slot.pinReference(), []byte(pin))); err != nil {
		return fmt.Errorf("verify PIN for %s key: %w", slot, err)
	}
	return nil
}

func (e *EstEID) Sign(slot KeySlot, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, NewProtocolError(fmt.Sprintf("expected a 32 byte SHA-256 digest, got %d bytes", len(digest)))
	}

	cert, err := e.Certificate(slot)
	if err != nil {
		return nil, err
	}

	var input []byte
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey:
		input = append(append([]byte{}, sha256DigestInfoPrefix...), digest...)
	case *ecdsa.PublicKey:
		input = digest
	default:
		return nil, NewProtocolError(fmt.Sprintf("unsupported %s key type %T", slot, cert.PublicKey))
	}

	if _, err := e.session.Transmit(restoreSecurityEnvCommand()); err != nil {
		return nil, err
	}

	var cmd Command
	if slot == KeySlotSigning {
		cmd = computeSignatureCommand(input)
	} else {
		cmd = internalAuthenticateCommand(input)
	}

	resp, err := e.session.Transmit(cmd)
	if err != nil {
		return nil, err
	}

	if _, ok := cert.PublicKey.(*ecdsa.PublicKey); ok {
		return rawECDSAToASN1(resp.Data)
	}
	return resp.Data, nil
}

func (e *EstEID) Decrypt(ciphertext []byte) ([]byte, error) {
	if _, err := e.session.Transmit(restoreSecurityEnvCommand()); err != nil {
		return nil, err
	}
	resp, err := e.session.Transmit(decipherCommand(ciphertext))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (e *EstEID) Close() error {
	return e.session.Close()
}

// rawECDSAToASN1 converts the r||s signature returned by the card to ASN.1 DER.
func rawECDSAToASN1(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, NewProtocolError(fmt.Sprintf("malformed ECDSA signature of %d bytes", len(raw)))
	}
	half := len(raw) / 2
	sig := struct {
		R, S *big.Int
	}{
		R: new(big.Int).SetBytes(raw[:half]),
		S: new(big.Int).SetBytes(raw[half:]),
	}
	der, err := asn1.Marshal(sig)
	if err != nil {
		return nil, WrapProtocolError(err, "failed to encode ECDSA signature")
	}
	return der, nil
}
