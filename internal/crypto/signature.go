package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// VerifyDigestSignature checks a signature made over a SHA-256 digest.
//
// RSA signatures are PKCS#1 v1.5 over a SHA-256 DigestInfo, ECDSA signatures are ASN.1 DER.
// This matches what the ID card returns for both key slots.
func VerifyDigestSignature(publicKey crypto.PublicKey, digest, signature []byte) error {
	if len(digest) != sha256.Size {
		return NewValidationError(fmt.Sprintf("digest must be %d bytes, got %d", sha256.Size, len(digest)))
	}
	if len(signature) == 0 {
		return NewSignatureError("empty signature")
	}

	switch key := publicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest, signature); err != nil {
			return WrapSignatureError(err, "RSA signature verification failed")
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(key, digest, signature) {
			return NewSignatureError("ECDSA signature verification failed")
		}
	default:
		return NewValidationError(fmt.Sprintf("unsupported public key type: %T", publicKey))
	}

	return nil
}

// SignDigest signs a SHA-256 digest with a software key, producing the same encoding
// VerifyDigestSignature accepts. Used by the claim service to sign its responses.
func SignDigest(signer crypto.Signer, digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, NewValidationError(fmt.Sprintf("digest must be %d bytes, got %d", sha256.Size, len(digest)))
	}

	sig, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	if err != nil {
		return nil, WrapKeyManagementError(err, "failed to sign digest")
	}
	return sig, nil
}
