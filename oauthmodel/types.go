package oauthmodel

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Used in: Authorization Code Flow (the only flow this server supports)
	// Returns an authorization code that must be exchanged for a token at the token endpoint.
	// Example: /oauth2/authz?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for a bearer token.
	// Used in: Standard Authorization Code Flow
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token bound to the resource owner who approved the code
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Used in: Backend service authentication (no resource owner)
	// Token request includes: client_id, client_secret
	// Returns: access_token with no nickname attached
	ClientCredentialsGrant GrantType = "client_credentials"
)

// ErrorCode is the short machine-readable reason carried by an OAuth 2.0
// error, either in a redirect query string or in a token endpoint JSON body.
type ErrorCode string

const (
	// Redirectable codes (RFC 6749 section 4.1.2.1)
	ErrCodeInvalidRequest          ErrorCode = "invalid_request"
	ErrCodeUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrCodeInvalidScope            ErrorCode = "invalid_scope"
	ErrCodeAccessDenied            ErrorCode = "access_denied"
	ErrCodeServerError             ErrorCode = "server_error"

	// Token endpoint codes (RFC 6749 section 5.2)
	ErrCodeInvalidClient        ErrorCode = "invalid_client"
	ErrCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrCodeSlowDown             ErrorCode = "slow_down"
)

// DefaultScopes returns the scope set a server accepts when none is configured.
func DefaultScopes() []string {
	return []string{"read", "writeown", "writeall"}
}
