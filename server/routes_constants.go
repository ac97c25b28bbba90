package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 browser endpoints
	RouteOAuth2Authorize    = "/oauth2/authz"
	RouteOAuth2Authenticate = "/oauth2/authc"

	// OAuth2 back-channel endpoints
	RouteOAuth2Token = "/oauth2/token"
	RouteWellKnownAS = "/.well-known/oauth-authorization-server"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
