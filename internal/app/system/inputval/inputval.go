// Package inputval validates raw request input before it reaches
// stores or the database.
package inputval

import (
	"net/url"
	"strings"
)

// Auth methods accepted at registration and login.
var allowedAuthMethods = []string{"internal", "google"}

// IsValidAuthMethod reports whether method is a supported auth method.
// Comparison is case-insensitive and ignores surrounding whitespace.
func IsValidAuthMethod(method string) bool {
	m := strings.ToLower(strings.TrimSpace(method))
	for _, allowed := range allowedAuthMethods {
		if m == allowed {
			return true
		}
	}
	return false
}

// AllowedAuthMethodsList returns the supported auth methods for
// error messages.
func AllowedAuthMethodsList() []string {
	out := make([]string, len(allowedAuthMethods))
	copy(out, allowedAuthMethods)
	return out
}

// IsValidEmail checks the practical shape of an email address: one @,
// non-empty local and domain parts, no whitespace, and no leading,
// trailing, or doubled dots on either side. Single-label domains pass,
// which keeps dev setups like user@localhost working.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || strings.ContainsAny(email, " \t<>") {
		return false
	}
	at := strings.Count(email, "@")
	if at != 1 {
		return false
	}
	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]
	return validDotted(local) && validDotted(domain)
}

func validDotted(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return !strings.Contains(s, "..")
}

// IsValidHTTPURL reports whether s parses as an absolute http or https
// URL with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID reports whether s is a 24-character hex string after
// trimming whitespace.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 24 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// IsValidPassword reports whether a password meets the length floor.
func IsValidPassword(pw string) bool {
	return len(pw) >= MinPasswordLength
}
