package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// idBytes gives 192 bits of entropy per session ID, above the 128-bit
// floor required for unguessable identifiers.
const idBytes = 24

// Session is one server-issued credential row. ExpiresAt is set to
// CreatedAt plus the configured TTL at creation and is only ever moved
// forward while the session is active.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	IPAddress    string
	UserAgent    string
	Active       bool
}

// NewID returns a fresh unguessable session identifier, base64url encoded.
func NewID() (string, error) {
	raw := make([]byte, idBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
