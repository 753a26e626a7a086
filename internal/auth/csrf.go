package auth

import (
	"crypto/subtle"
	"fmt"
)

// Names of the double-submit CSRF cookie and the header that must echo it.
const (
	CSRFCookieName = "XSRF-TOKEN"
	CSRFHeaderName = "X-XSRF-TOKEN"
)

// NewCSRFToken returns a random token for the CSRF cookie.
func NewCSRFToken() (string, error) {
	tok, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return tok, nil
}

// CSRFMatch reports whether the header value matches the cookie value.
// Empty values never match.
func CSRFMatch(cookie, header string) bool {
	if cookie == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}
