package oauthmodel

import (
	"net/url"
)

// Token endpoint form keys.
const (
	KeyGrantType    = "grant_type"
	KeyCode         = "code"
	KeyClientSecret = "client_secret"
)

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the form body sent to the /oauth2/token endpoint.
// Supports two grant types: authorization_code and client_credentials.
type TokenRequest struct {
	// GrantType selects the grant handler.
	// Required: Yes
	// Example: "authorization_code"
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes (for all grant types)
	ClientID string

	// ClientSecret is the shared secret of the client.
	// Required: Yes (for all grant types)
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (only for authorization_code grant)
	// Usage: Exchanged once for a token, then becomes invalid
	Code string

	// RedirectURI must equal the redirect_uri the code was issued for.
	// Required: Yes (only for authorization_code grant)
	RedirectURI string

	present map[string]bool
}

// TokenRequestFromValues reads a token request from a form body, remembering
// which fields were actually sent so that required-field checks can tell an
// absent field from an empty one.
func TokenRequestFromValues(values url.Values) TokenRequest {
	tr := TokenRequest{
		GrantType:    GrantType(values.Get(KeyGrantType)),
		ClientID:     values.Get(KeyClientID),
		ClientSecret: values.Get(KeyClientSecret),
		Code:         values.Get(KeyCode),
		RedirectURI:  values.Get(KeyRedirectURI),
		present:      make(map[string]bool),
	}
	for _, key := range []string{KeyGrantType, KeyClientID, KeyClientSecret, KeyCode, KeyRedirectURI} {
		if _, ok := values[key]; ok {
			tr.present[key] = true
		}
	}
	return tr
}

// Require returns a hard error naming the first key that was not supplied.
// A request built directly rather than from a form counts a field as
// supplied when it is non-empty.
func (tr TokenRequest) Require(keys ...string) error {
	for _, key := range keys {
		if !tr.has(key) {
			return Hard(key + " parameter required")
		}
	}
	return nil
}

func (tr TokenRequest) has(key string) bool {
	if tr.present != nil {
		return tr.present[key]
	}
	switch key {
	case KeyGrantType:
		return tr.GrantType != ""
	case KeyClientID:
		return tr.ClientID != ""
	case KeyClientSecret:
		return tr.ClientSecret != ""
	case KeyCode:
		return tr.Code != ""
	case KeyRedirectURI:
		return tr.RedirectURI != ""
	}
	return false
}
