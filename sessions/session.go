package sessions

import (
	"context"
	"time"
)

// Principal is the display identity of whoever is signed in to a browser
// session. It may be a local account or a remote (federated) identity.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Session stores the authorization flow state of one browser.
// Sessions are short-lived and track the state between
// /oauth2/authz, /oauth2/authc and the consent decision.
type Session struct {
	ID        string     `json:"id"`                    // Unique session identifier (UUID)
	Principal *Principal `json:"principal,omitempty"`   // Set after successful authentication
	Nickname  string     `json:"nickname,omitempty"`    // Local account nickname; empty for remote principals
	AuthcErr  string     `json:"authc_error,omitempty"` // Retry message shown on the next login render
	FlowState string     `json:"flow_state,omitempty"`  // Position in the authorize/authenticate redirect chain
	Bounces   int        `json:"bounces,omitempty"`     // Redirects between authz and authc without progress
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Authenticated reports whether a principal is attached to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.Principal != nil
}

// Local reports whether the principal is a local account that can be
// checked against stored credentials.
func (s *Session) Local() bool {
	return s.Authenticated() && s.Nickname != ""
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clear removes the principal and any in-progress flow state.
func (s *Session) Clear() {
	s.Principal = nil
	s.Nickname = ""
	s.AuthcErr = ""
	s.FlowState = ""
	s.Bounces = 0
}

type Repo interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Upsert(ctx context.Context, session *Session) error
	Delete(ctx context.Context, sessionID string) error
}
