package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// codeGenerationLength is the number of random bytes behind every code and token.
const codeGenerationLength = 32

// AuthorizationCode is a short-lived, single-use credential binding a
// resource owner's consent to a client and redirect URI.
type AuthorizationCode struct {
	Code        string    `json:"code"`
	Nickname    string    `json:"nickname"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Scope       string    `json:"scope,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (ac *AuthorizationCode) Expired(now time.Time) bool {
	return !ac.ExpiresAt.IsZero() && !now.Before(ac.ExpiresAt)
}

// BearerToken is an opaque access token. Nickname is nil for tokens issued
// through the client-credentials grant, which represent the client itself.
type BearerToken struct {
	Token    string    `json:"token"`
	Nickname *string   `json:"nickname,omitempty"`
	ClientID string    `json:"client_id"`
	Scope    string    `json:"scope,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// Generator produces opaque, unguessable code and token values.
type Generator func() (string, error)

// GenerateOpaque returns a random base64url string built from
// codeGenerationLength bytes of crypto/rand output.
func GenerateOpaque() (string, error) {
	b := make([]byte, codeGenerationLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
