package auth

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeUsername trims and NFC-normalizes a username so that visually
// identical names compare equal regardless of how the client composed them.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
