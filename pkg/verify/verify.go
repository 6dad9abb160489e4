package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm is the hash used to verify artifacts. Only SHA-256 is accepted.
const Algorithm = "sha256"

// MismatchError reports an artifact whose hash differs from the expected one.
type MismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// ComputeChecksum computes the SHA-256 of a file as lowercase hex
func ComputeChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", errors.Wrap(err, "failed to compute checksum")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies that a file matches the expected checksum and
// returns the computed value.
func VerifyChecksum(filePath, expectedHash string) (string, error) {
	computedHash, err := ComputeChecksum(filePath)
	if err != nil {
		return "", err
	}

	// Compare case-insensitively
	if !strings.EqualFold(computedHash, strings.TrimSpace(expectedHash)) {
		return computedHash, &MismatchError{File: filePath, Expected: expectedHash, Actual: computedHash}
	}

	return computedHash, nil
}
