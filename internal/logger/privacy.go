package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const maskedSecret = "[MASKED]"

var hashSalt = defaultHashSalt()

func defaultHashSalt() string {
	// In production, set LOG_HASH_SALT.
	if salt := os.Getenv("LOG_HASH_SALT"); salt != "" {
		return salt
	}
	return "default-salt-change-in-production"
}

// InitHashSalt overrides the salt used by HashUserID. Empty keeps the current one.
func InitHashSalt(salt string) {
	if salt != "" {
		hashSalt = salt
	}
}

// HashUserID creates a privacy-preserving hash of a user ID.
// This allows tracking user actions without exposing actual user IDs.
func HashUserID(userID string) string {
	if userID == "" {
		return "<anonymous>"
	}
	hash := sha256.Sum256([]byte(userID + ":" + hashSalt))
	// Return first 8 characters for readability
	return hex.EncodeToString(hash[:])[:8]
}

// MaskSecret keeps the first two and last four characters of a secret.
func MaskSecret(secret string) string {
	if len(secret) <= 6 {
		return "****"
	}
	return secret[:2] + "****" + secret[len(secret)-4:]
}

// MaskURL replaces every occurrence of secret in rawURL.
func MaskURL(rawURL, secret string) string {
	if secret == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, secret, maskedSecret)
}
