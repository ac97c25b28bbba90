package auth

// Reasons reported by hard errors and retry messages shown on the login form.
const (
	NoClientIDMsg         = "no client_id parameter"
	NoRedirectURIMsg      = "no redirect_uri parameter"
	UnknownClientMsg      = "unknown client_id"
	ClientLookupFailedMsg = "client lookup failed"
	InvalidRedirectURIMsg = "invalid redirect_uri for this client"
	UnexpectedLoginMsg    = "unexpected login state"
	RedirectLoopMsg       = "redirect loop detected"

	RedirectURIMismatchMsg  = "redirect_uri doesn't match"
	ClientSecretMismatchMsg = "client_secret doesn't match"
	CodeClientMismatchMsg   = "code was not issued to this client"
	InvalidCodeMsg          = "invalid authorization code"

	CredentialsRequiredMsg = "nickname and password are required."
	NoCredentialMatchMsg   = "No match for that nickname and password."
)
