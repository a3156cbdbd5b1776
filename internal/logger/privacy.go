package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// MinHashSaltLength is the shortest LOG_HASH_SALT accepted in production.
const MinHashSaltLength = 32

var hashSalt = "default-salt-change-in-production"

// InitHashSalt sets the salt used by the hashing helpers.
func InitHashSalt(salt string) error {
	if len(salt) < MinHashSaltLength {
		return errors.New("log hash salt must be at least 32 characters")
	}
	hashSalt = salt
	return nil
}

// HashUserID creates a privacy-preserving hash of a user ID.
func HashUserID(userID int64) string {
	return hashInt(userID)
}

// HashChatID creates a privacy-preserving hash of a chat ID.
func HashChatID(chatID int64) string {
	return hashInt(chatID)
}

func hashInt(v int64) string {
	data := fmt.Sprintf("%d:%s", v, hashSalt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeLabel redacts an expense label but keeps its shape for debugging.
func SanitizeLabel(label string) string {
	if label == "" {
		return "<empty>"
	}
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(strings.Fields(label)), len(label))
}
