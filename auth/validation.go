package auth

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-authz-server/clients"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
)

// Verifier validates the properties of an authorization-flow request against
// the registered client.
//
// Errors are classified in two phases. Until the redirect_uri has been matched
// against the client's registered URIs every failure is a hard error, because
// an unverified redirect_uri could be used as an open redirect. After the
// match, failures are redirect errors.
type Verifier struct {
	clients clients.Repo
	scopes  map[string]struct{}
}

// NewVerifier creates a Verifier that accepts the given scope set.
func NewVerifier(clientRepo clients.Repo, scopes []string) *Verifier {
	allowed := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		allowed[s] = struct{}{}
	}
	return &Verifier{clients: clientRepo, scopes: allowed}
}

// Verify returns the client the request belongs to, or a *oauthmodel.HardError
// or *oauthmodel.RedirectError.
func (v *Verifier) Verify(ctx context.Context, props oauthmodel.Properties) (*clients.Client, error) {
	if props.ClientID == "" {
		return nil, oauthmodel.Hard(NoClientIDMsg)
	}
	if props.RedirectURI == "" {
		return nil, oauthmodel.Hard(NoRedirectURIMsg)
	}

	client, err := v.clients.Get(ctx, props.ClientID)
	if err != nil {
		// If there's a problem getting the client, don't bounce the user back
		if errors.Is(err, clients.ErrNotFound) {
			return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeInvalidClient, UnknownClientMsg, err)
		}
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, ClientLookupFailedMsg, err)
	}

	if !client.HasRedirectURI(props.RedirectURI) {
		return nil, oauthmodel.Hard(InvalidRedirectURIMsg)
	}

	// From here on, errors are redirected
	if props.ResponseType != oauthmodel.CodeResponseType {
		return nil, oauthmodel.Redirect(oauthmodel.ErrCodeUnsupportedResponseType)
	}
	if !v.ScopeAllowed(props.Scope) {
		return nil, oauthmodel.Redirect(oauthmodel.ErrCodeInvalidScope)
	}

	return client, nil
}

// ScopeAllowed reports whether every space-delimited item of scope is in the
// configured scope set. An empty scope is allowed.
func (v *Verifier) ScopeAllowed(scope string) bool {
	for _, s := range (oauthmodel.Properties{Scope: scope}).Scopes() {
		if _, ok := v.scopes[s]; !ok {
			return false
		}
	}
	return true
}

// Scopes returns the configured scope set in no particular order.
func (v *Verifier) Scopes() []string {
	list := make([]string, 0, len(v.scopes))
	for s := range v.scopes {
		list = append(list, s)
	}
	return list
}
