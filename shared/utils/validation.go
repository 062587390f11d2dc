package utils

import (
	"regexp"
	"strings"
)

// emailPattern is deliberately loose: one "@", no spaces, a dot in the domain
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether s looks like an email address
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an address for comparisons
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
