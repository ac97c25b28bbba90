package oauthmodel

// TokenResponse represents the response from an OAuth2 token request.
// Returned from the /oauth2/token endpoint for both grant types.
type TokenResponse struct {
	// AccessToken is the opaque bearer token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token (always "Bearer").
	TokenType string `json:"token_type,omitempty"`
}

// BearerTokenType is the only token type issued.
const BearerTokenType = "Bearer"

// ErrorResponse is the JSON body returned by the token endpoint on failure.
type ErrorResponse struct {
	Error            ErrorCode `json:"error"`
	ErrorDescription string    `json:"error_description,omitempty"`
}
