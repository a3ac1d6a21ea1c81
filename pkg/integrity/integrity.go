// Package integrity detects tampering by hashing the running program and
// comparing it with the hash a task record expects.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmptyHash is returned when the expected hash is blank.
var ErrEmptyHash = errors.New("integrity: empty expected hash")

// Digest returns the lowercase hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("integrity: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("integrity: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Guard hashes one program file.
type Guard struct {
	// Path of the file to hash. Empty means the running executable.
	Path string
}

// Target resolves the file the guard hashes.
func (g Guard) Target() (string, error) {
	if g.Path != "" {
		return g.Path, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: locate executable: %w", err)
	}
	return exe, nil
}

// Digest hashes the target file.
func (g Guard) Digest() (string, error) {
	p, err := g.Target()
	if err != nil {
		return "", err
	}
	return Digest(p)
}

// Verify hashes the target and compares it with expected. Hex case and
// surrounding whitespace in expected are ignored. The computed digest is
// returned in all cases where hashing succeeded, so callers can report it.
func (g Guard) Verify(expected string) (ok bool, actual string, err error) {
	actual, err = g.Digest()
	if err != nil {
		return false, "", err
	}
	exp := strings.ToLower(strings.TrimSpace(expected))
	if exp == "" {
		return false, actual, ErrEmptyHash
	}
	return Equal(exp, actual), actual, nil
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
