// Package response decrypts and verifies the claim service's response.
//
// A response moves Encrypted -> Decrypted -> Verified. Responses requested without
// encryption start out Decrypted.
package response

import (
	"bytes"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/container"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/envelope"
)

// FindKeyFor returns the index of the envelope key whose recipient is exactly recipient.
func FindKeyFor(svc envelope.Service, env *envelope.EncryptedData, recipient string) (int, error) {
	for i := range svc.KeyCount(env) {
		name, err := svc.RecipientOf(env, i)
		if err != nil {
			return -1, err
		}
		if name == recipient {
			return i, nil
		}
	}
	return -1, NewNoMatchingKeyError(recipient)
}

type Response struct {
	envSvc envelope.Service
	docSvc container.Service
	env    *envelope.EncryptedData

	state     State
	plaintext []byte
	doc       *container.Container
}

// New wraps an encrypted response envelope.
func New(envSvc envelope.Service, docSvc container.Service, env *envelope.EncryptedData) *Response {
	return &Response{envSvc: envSvc, docSvc: docSvc, env: env, state: StateEncrypted}
}

// NewPlain wraps a response the service sent without encryption.
func NewPlain(docSvc container.Service, plaintext []byte) *Response {
	return &Response{docSvc: docSvc, plaintext: plaintext, state: StateDecrypted}
}

// FindKey returns the index of the envelope key addressed to recipient.
func (r *Response) FindKey(recipient string) (int, error) {
	if r.env == nil {
		return -1, NewNoMatchingKeyError(recipient)
	}
	return FindKeyFor(r.envSvc, r.env, recipient)
}

func (r *Response) State() State {
	return r.state
}

func (r *Response) advance(to State) {
	if !isValidStateTransition(r.state, to) {
		panic(fmt.Sprintf("invalid response state transition %s -> %s", r.state, to))
	}
	r.state = to
}

// Decrypt decrypts the envelope key at keyIndex with the card in terminal tokenIndex.
// Once the response is decrypted further calls do nothing.
func (r *Response) Decrypt(keyIndex, tokenIndex int, credential string) error {
	if r.state != StateEncrypted {
		return nil
	}

	if err := r.envSvc.Decrypt(r.env, keyIndex, tokenIndex, credential); err != nil {
		return WrapDecryptionError(err, "failed to decrypt response")
	}
	data, err := r.envSvc.Data(r.env)
	if err != nil {
		return WrapDecryptionError(err, "failed to read decrypted response")
	}

	r.plaintext = data
	r.advance(StateDecrypted)
	return nil
}

// Verify parses the decrypted document, validates its structure and verifies its signatures.
func (r *Response) Verify() error {
	switch r.state {
	case StateEncrypted:
		return NewAlreadyEncryptedError("response must be decrypted before it can be verified")
	case StateVerified:
		return nil
	}

	doc, err := r.docSvc.ReadFrom(bytes.NewReader(r.plaintext))
	if err != nil {
		return WrapValidationFailedError(err, "failed to parse response document")
	}
	if errs := r.docSvc.Validate(doc); len(errs) > 0 {
		return NewValidationFailedError(errs)
	}
	if errs := r.docSvc.Verify(doc); len(errs) > 0 {
		return NewVerificationFailedError(errs)
	}

	r.doc = doc
	r.advance(StateVerified)
	return nil
}

// Content returns the text of the single data file in a verified response.
func (r *Response) Content() (string, error) {
	if r.state != StateVerified {
		return "", NewNotVerifiedError("response has not been verified")
	}
	if n := len(r.doc.DataFiles); n != 1 {
		return "", NewUnexpectedContentShapeError(fmt.Sprintf("response has %d data files, want 1", n))
	}
	return string(r.doc.DataFiles[0].Content), nil
}

// Document returns the verified response document, or nil before Verify succeeds.
func (r *Response) Document() *container.Container {
	return r.doc
}

// Plaintext returns the decrypted response bytes, or nil while still encrypted.
func (r *Response) Plaintext() []byte {
	return r.plaintext
}

// SignerMatchesKeySet checks that every signature on the verified response was made
// with a key published in set.
func (r *Response) SignerMatchesKeySet(set jwk.Set) error {
	if r.state != StateVerified {
		return NewNotVerifiedError("response has not been verified")
	}
	if len(r.doc.Signatures) == 0 {
		return NewSignerNotTrustedError("response is not signed")
	}
	for _, sig := range r.doc.Signatures {
		cert, err := sig.Certificate()
		if err != nil {
			return WrapSignerNotTrustedError(err, fmt.Sprintf("signature %s", sig.ID))
		}
		ok, err := crypto.KeySetContainsPublicKey(set, cert.PublicKey)
		if err != nil {
			return WrapSignerNotTrustedError(err, fmt.Sprintf("signature %s", sig.ID))
		}
		if !ok {
			return NewSignerNotTrustedError(fmt.Sprintf("signature %s was made by %q, whose key is not in the service key set", sig.ID, cert.Subject.CommonName))
		}
	}
	return nil
}
