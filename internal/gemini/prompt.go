package gemini

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// MaxDescriptionLength caps expense labels embedded in prompts.
const MaxDescriptionLength = models.MaxLabelLength

// MaxCategoryNameLength caps category names embedded in prompts.
const MaxCategoryNameLength = 50

const maxReasoningLength = 500

var promptReplacer = strings.NewReplacer(`"`, `'`, "`", "'", "\x00", "")

// SanitizeForPrompt makes user text safe to quote inside a prompt: quotes
// become apostrophes, NUL bytes go, whitespace runs collapse to one space and
// the result is cut to maxLength bytes.
func SanitizeForPrompt(input string, maxLength int) string {
	return collapse(promptReplacer.Replace(input), maxLength)
}

// SanitizeCategoryName sanitizes a category name for a prompt.
func SanitizeCategoryName(name string) string {
	return SanitizeForPrompt(name, MaxCategoryNameLength)
}

func sanitizeDescription(description string) string {
	return SanitizeForPrompt(description, MaxDescriptionLength)
}

// sanitizeReasoning flattens model reasoning before it is logged or shown.
func sanitizeReasoning(reasoning string) string {
	return collapse(reasoning, maxReasoningLength)
}

// collapse joins the fields of s with single spaces and cuts the result to
// at most max bytes without splitting a rune.
func collapse(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

// extractJSON returns the outermost {...} of text. Models sometimes wrap
// JSON in prose even in JSON mode.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// hashDescription identifies a label in logs without revealing it.
func hashDescription(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:8])
}
