package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SecureToken returns a cryptographically random, URL-safe token built
// from length random bytes (so the encoded string is slightly longer).
func SecureToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// SanitizeInput strips control characters and collapses runs of
// whitespace in user-supplied text. This is input hygiene only, not a
// security boundary.
func SanitizeInput(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t' || r == ' ':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
		case r < 0x20 || r == 0x7f:
			// drop other control characters
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}
