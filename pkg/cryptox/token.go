package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// ResetTokenSize is the number of random bytes in a password reset token (256 bits).
	ResetTokenSize = 32

	codeMin   = 100000
	codeRange = 900000
)

// GenerateToken returns size cryptographically random bytes, hex encoded.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// GenerateResetToken returns a 64 character hex token suitable for a reset link.
func GenerateResetToken() (string, error) {
	return GenerateToken(ResetTokenSize)
}

// GenerateVerificationCode returns a six digit decimal code drawn uniformly
// from [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// hex encoded. Stored in place of the token so a database read does not
// yield a usable secret.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
