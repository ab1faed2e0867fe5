package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateSessionSecret returns n random bytes encoded as unpadded base64url.
func GenerateSessionSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSessionSecret returns a SHA-256 hash of the session secret, hex-encoded.
// Used for storing and comparing session secrets without storing the raw value.
func HashSessionSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
