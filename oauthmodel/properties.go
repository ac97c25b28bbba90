package oauthmodel

import (
	"net/url"
	"strings"
)

// Property keys recognised by the authorization and authentication endpoints.
// Anything else in the query string or form body is ignored.
const (
	KeyClientID     = "client_id"
	KeyRedirectURI  = "redirect_uri"
	KeyResponseType = "response_type"
	KeyState        = "state"
	KeyScope        = "scope"
)

var propertyKeys = []string{KeyClientID, KeyRedirectURI, KeyResponseType, KeyState, KeyScope}

// Properties holds the whitelisted OAuth2 request parameters of one browser
// exchange. They are received as query parameters on GET and as form fields
// on POST, and are never persisted.
type Properties struct {
	// ClientID identifies the application requesting authorization.
	// Required: Yes
	// Example: "web-app-client"
	// Validated against: clients.Client.ID in the repository
	ClientID string

	// RedirectURI is where the authorization response will be sent.
	// Required: Yes
	// Example: "https://myapp.com/callback"
	// Security: Must exactly match a pre-registered URI to prevent open redirects.
	// Until it has been matched, no error may be redirected to it.
	RedirectURI string

	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes
	// Example: "code" (only supported value)
	ResponseType ResponseType

	// State is an opaque value used by the client to maintain state between request and callback.
	// Required: Recommended (CSRF protection on the client side)
	// Echoed back unchanged on every redirect, including error redirects.
	State string

	// Scope specifies the permissions being requested.
	// Required: No
	// Example: "read" or "read writeown"
	// Validated against: the scope set the server was configured with
	Scope string
}

// PropertiesFromValues picks the OAuth2 properties out of a query string or
// form body. Only the first value of each key is used.
func PropertiesFromValues(values url.Values) Properties {
	return Properties{
		ClientID:     values.Get(KeyClientID),
		RedirectURI:  values.Get(KeyRedirectURI),
		ResponseType: ResponseType(values.Get(KeyResponseType)),
		State:        values.Get(KeyState),
		Scope:        values.Get(KeyScope),
	}
}

// Values converts the properties back into url.Values, omitting empty ones.
func (p Properties) Values() url.Values {
	v := url.Values{}
	for _, key := range propertyKeys {
		if value := p.get(key); value != "" {
			v.Set(key, value)
		}
	}
	return v
}

// Encode returns the properties as a query string suitable for forwarding the
// flow between the authorization and authentication endpoints.
func (p Properties) Encode() string {
	return p.Values().Encode()
}

// Scopes splits the space-delimited scope parameter.
func (p Properties) Scopes() []string {
	return strings.Fields(p.Scope)
}

func (p Properties) get(key string) string {
	switch key {
	case KeyClientID:
		return p.ClientID
	case KeyRedirectURI:
		return p.RedirectURI
	case KeyResponseType:
		return string(p.ResponseType)
	case KeyState:
		return p.State
	case KeyScope:
		return p.Scope
	}
	return ""
}
