package clients

import (
	"crypto/subtle"
	"errors"
)

// ErrNotFound is returned by repositories when no client has the requested ID.
var ErrNotFound = errors.New("client not found")

// Client is a registered OAuth2 client application. Clients are immutable
// once issued; creation and secret rotation happen outside the flow.
type Client struct {
	ID           string   `json:"client_id"`
	Secret       string   `json:"client_secret"`
	Description  string   `json:"description,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
}

// HasRedirectURI reports whether uri is byte-for-byte equal to one of the
// client's registered redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// SecretMatches compares the presented secret with the client's shared secret.
// The comparison is exact and runs in constant time for equal-length inputs.
func (c *Client) SecretMatches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) == 1
}
