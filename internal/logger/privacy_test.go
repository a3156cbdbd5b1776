package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashUserID(t *testing.T) {
	t.Run("produces consistent hash for same user ID", func(t *testing.T) {
		require.Equal(t, HashUserID(12345), HashUserID(12345))
	})

	t.Run("produces different hashes for different user IDs", func(t *testing.T) {
		require.NotEqual(t, HashUserID(12345), HashUserID(67890))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashUserID(12345), 8)
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashUserID(12345)
		require.NoError(t, InitHashSalt("another-salt-that-is-long-enough-for-use"))
		require.NotEqual(t, hash1, HashUserID(12345))
	})
}

func TestHashChatID(t *testing.T) {
	require.Equal(t, HashChatID(777), HashChatID(777))
	require.NotEqual(t, HashChatID(777), HashChatID(778))
}

func TestInitHashSalt(t *testing.T) {
	originalSalt := hashSalt
	defer func() { hashSalt = originalSalt }()

	require.Error(t, InitHashSalt(""))
	require.Error(t, InitHashSalt("short"))
	require.Equal(t, originalSalt, hashSalt)

	valid := "this-is-a-valid-salt-with-at-least-32-characters"
	require.NoError(t, InitHashSalt(valid))
	require.Equal(t, valid, hashSalt)
}

func TestSanitizeLabel(t *testing.T) {
	require.Equal(t, "<empty>", SanitizeLabel(""))

	result := SanitizeLabel("water bill building B")
	require.Contains(t, result, "4 words")
	require.Contains(t, result, "21 chars")
	require.NotContains(t, result, "water")
}
