package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	controlRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCurrency validates an ISO 4217 style currency code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("currency must be a 3 letter uppercase code: %s", code)
	}
	return nil
}

// ValidateLabel trims a display label and checks its length in characters
func ValidateLabel(label string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(SanitizeString(label))
	if trimmed == "" {
		return "", fmt.Errorf("label is required")
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("label must be at most %d characters", maxLen)
	}
	return trimmed, nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
