package cardtest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"testing"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/card"
)

const (
	DefaultPIN1 = "0090"
	DefaultPIN2 = "01497"
)

// SoftToken implements card.Token with software keys.
type SoftToken struct {
	AuthKey  *rsa.PrivateKey
	AuthCert *x509.Certificate
	SignKey  crypto.Signer
	SignCert *x509.Certificate
	PIN1     string
	PIN2     string
	Personal *card.PersonalData

	// TamperSignatures flips a bit in every signature produced
	TamperSignatures bool

	SignCalls    int
	DecryptCalls int
	CloseCalls   int

	verified map[card.KeySlot]bool
}

// NewSoftToken creates a token holding an RSA authentication key and an ECDSA signing key,
// both certified by ca for the subject CN.
func NewSoftToken(t testing.TB, ca *Authority, cn string) *SoftToken {
	t.Helper()

	authKey, authCert := ca.IssueRSA(t, cn)
	signKey, signCert := ca.IssueECDSA(t, cn)

	pd, err := card.DecodePersonalData(PersonalDataRecords("MÄNNIK", "MARI-LIIS", "47101010033"), card.DefaultPersonalDataEncoding)
	if err != nil {
		t.Fatalf("failed to build personal data: %v", err)
	}

	return &SoftToken{
		AuthKey:  authKey,
		AuthCert: authCert,
		SignKey:  signKey,
		SignCert: signCert,
		PIN1:     DefaultPIN1,
		PIN2:     DefaultPIN2,
		Personal: pd,
		verified: make(map[card.KeySlot]bool),
	}
}

func (s *SoftToken) PersonalData() (*card.PersonalData, error) {
	return s.Personal, nil
}

func (s *SoftToken) Certificate(slot card.KeySlot) (*x509.Certificate, error) {
	if slot == card.KeySlotSigning {
		return s.SignCert, nil
	}
	return s.AuthCert, nil
}

func (s *SoftToken) VerifyPIN(slot card.KeySlot, pin string) error {
	want := s.PIN1
	if slot == card.KeySlotSigning {
		want = s.PIN2
	}
	if pin != want {
		return card.WrapProtocolError(&card.StatusError{Command: "VERIFY", SW: 0x63C2}, "card rejected command")
	}
	if s.verified == nil {
		s.verified = make(map[card.KeySlot]bool)
	}
	s.verified[slot] = true
	return nil
}

func (s *SoftToken) Sign(slot card.KeySlot, digest []byte) ([]byte, error) {
	if !s.verified[slot] {
		return nil, card.WrapProtocolError(&card.StatusError{Command: "SIGN", SW: 0x6982}, "card rejected command")
	}
	s.SignCalls++

	var signer crypto.Signer = s.AuthKey
	if slot == card.KeySlotSigning {
		signer = s.SignKey
	}
	sig, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("soft token sign: %w", err)
	}
	if s.TamperSignatures {
		sig[len(sig)-1] ^= 0x01
	}
	return sig, nil
}

func (s *SoftToken) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.verified[card.KeySlotAuthentication] {
		return nil, card.WrapProtocolError(&card.StatusError{Command: "PSO DECIPHER", SW: 0x6982}, "card rejected command")
	}
	s.DecryptCalls++
	return rsa.DecryptPKCS1v15(rand.Reader, s.AuthKey, ciphertext)
}

func (s *SoftToken) Close() error {
	s.CloseCalls++
	s.verified = make(map[card.KeySlot]bool)
	return nil
}

// Opener implements card.Opener for a single SoftToken.
type Opener struct {
	Token   *SoftToken
	WaitErr error
	OpenErr error

	Waits int
	Opens int
}

func (o *Opener) WaitForCard(index int) error {
	o.Waits++
	return o.WaitErr
}

func (o *Opener) OpenToken(index int) (card.Token, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	o.Opens++
	return o.Token, nil
}

// PersonalDataRecords returns 16 space padded records with the given name and code.
func PersonalDataRecords(surname, givenName, personalCode string) [][]byte {
	values := []string{
		surname, givenName, "", "N", "EST", "01.01.1971", personalCode, "AS0012345",
		"01.01.2030", "EESTI / EST", "01.01.2025", "", "", "", "", "",
	}
	records := make([][]byte, len(values))
	for i, v := range values {
		records[i] = Latin1Padded(v, 10)
	}
	return records
}

// Latin1Padded encodes s as ISO-8859-1 followed by pad spaces. Runes above 0xFF are replaced with '?'.
func Latin1Padded(s string, pad int) []byte {
	b := make([]byte, 0, len(s)+pad)
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		b = append(b, byte(r))
	}
	for range pad {
		b = append(b, ' ')
	}
	return b
}
