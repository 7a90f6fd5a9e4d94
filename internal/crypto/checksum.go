// this file contains the SHA-256 helpers used for data file digests in signature containers

package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// CalculateSHA256Hex calculates the SHA-256 checksum of data and returns it as a hex string
func CalculateSHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CalculateSHA256FromReader calculates the SHA-256 checksum of everything read from r
func CalculateSHA256FromReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to read contents: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyChecksum verifies that data matches the expected SHA-256 checksum
func VerifyChecksum(data []byte, expectedChecksum string) bool {
	checksum := CalculateSHA256Hex(data)
	return subtle.ConstantTimeCompare([]byte(checksum), []byte(expectedChecksum)) == 1
}
