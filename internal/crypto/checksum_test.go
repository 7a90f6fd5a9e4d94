package crypto

import (
	"errors"
	"strings"
	"testing"
)

var testData = []byte("hello world")
var expectedChecksum = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestCalculateSHA256Hex(t *testing.T) {
	if got := CalculateSHA256Hex(testData); got != expectedChecksum {
		t.Errorf("CalculateSHA256Hex() = %v, want %v", got, expectedChecksum)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestCalculateSHA256FromReader(t *testing.T) {
	result, err := CalculateSHA256FromReader(strings.NewReader(string(testData)))
	if err != nil {
		t.Fatalf("CalculateSHA256FromReader() error = %v", err)
	}
	if result != expectedChecksum {
		t.Errorf("CalculateSHA256FromReader() = %v, want %v", result, expectedChecksum)
	}

	if _, err := CalculateSHA256FromReader(failingReader{}); err == nil {
		t.Error("expected error from failing reader, got nil")
	}
}

func TestVerifyChecksum(t *testing.T) {
	if !VerifyChecksum(testData, expectedChecksum) {
		t.Error("VerifyChecksum() should return true for valid checksum")
	}
	if VerifyChecksum(testData, strings.Repeat("0", 64)) {
		t.Error("VerifyChecksum() should return false for invalid checksum")
	}
}
