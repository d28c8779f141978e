package services

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// MaxMessageLength caps a single chat turn.
const MaxMessageLength = 4000

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrUnsafeMessage  = errors.New("message rejected by content safety rules")
)

// Known prompt-injection shapes. Matched case-insensitively against the
// normalized message; kept deliberately narrow to avoid false positives on
// ordinary conversation.
var promptInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(your|the)\s+(system\s+)?(prompt|instructions|rules)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?(developer|jailbreak|dan)\s+mode`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+system\s+prompt`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+have|there\s+are)\s+no\s+(rules|restrictions|guidelines)`),
}

// NormalizeMessage trims the text and strips control characters (keeping
// newlines and tabs).
func NormalizeMessage(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// ValidateMessage normalizes an inbound chat turn and applies the content
// safety rules. The same checks run in the connection handler and again in
// the task worker. Returns the cleaned text.
func ValidateMessage(text string) (string, error) {
	cleaned := NormalizeMessage(text)
	if cleaned == "" {
		return "", ErrEmptyMessage
	}
	if len(cleaned) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	for _, pattern := range promptInjectionPatterns {
		if pattern.MatchString(cleaned) {
			return "", ErrUnsafeMessage
		}
	}
	return cleaned, nil
}
