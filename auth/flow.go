package auth

import (
	"fmt"

	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/jrsteele09/go-authz-server/sessions"
)

// FlowState is the position of a browser session in the
// authorize -> authenticate -> authorize -> consent redirect chain.
type FlowState string

const (
	FlowIdle           FlowState = ""               // No flow in progress
	FlowAuthenticating FlowState = "authenticating" // Sent to the login form
	FlowAuthenticated  FlowState = "authenticated"  // Principal established, heading back to authorize
	FlowConsenting     FlowState = "consenting"     // Consent prompt rendered
)

// FlowEvent is something an endpoint observed or did that moves the flow.
type FlowEvent string

const (
	EventNeedLogin       FlowEvent = "need_login"       // authorize saw no principal and bounced to authenticate
	EventAlreadyLoggedIn FlowEvent = "already_logged_in" // authenticate saw a principal and bounced to authorize
	EventLoginShown      FlowEvent = "login_shown"      // login form rendered
	EventLoginRetry      FlowEvent = "login_retry"      // login rejected, form shown again
	EventLoginSucceeded  FlowEvent = "login_succeeded"  // credentials accepted
	EventConsentShown    FlowEvent = "consent_shown"    // consent prompt rendered
	EventDecided         FlowEvent = "decided"          // resource owner approved or denied
)

// DefaultMaxBounces bounds consecutive authorize<->authenticate redirects.
const DefaultMaxBounces = 3

type transition struct {
	next   FlowState
	bounce bool // a redirect that makes no progress
}

// flowTransitions is the transition table. The FlowIdle row accepts every
// event; an event that is not listed for the current state starts a new flow
// and is looked up in the FlowIdle row instead.
var flowTransitions = map[FlowState]map[FlowEvent]transition{
	FlowIdle: {
		EventNeedLogin:       {next: FlowAuthenticating, bounce: true},
		EventAlreadyLoggedIn: {next: FlowAuthenticated, bounce: true},
		EventLoginShown:      {next: FlowAuthenticating},
		EventLoginRetry:      {next: FlowAuthenticating},
		EventLoginSucceeded:  {next: FlowAuthenticated},
		EventConsentShown:    {next: FlowConsenting},
		EventDecided:         {next: FlowIdle},
	},
	FlowAuthenticating: {
		EventNeedLogin:       {next: FlowAuthenticating, bounce: true},
		EventAlreadyLoggedIn: {next: FlowAuthenticated, bounce: true},
		EventLoginShown:      {next: FlowAuthenticating},
		EventLoginRetry:      {next: FlowAuthenticating},
		EventLoginSucceeded:  {next: FlowAuthenticated},
	},
	FlowAuthenticated: {
		EventNeedLogin:       {next: FlowAuthenticating, bounce: true},
		EventAlreadyLoggedIn: {next: FlowAuthenticated, bounce: true},
		EventConsentShown:    {next: FlowConsenting},
		EventDecided:         {next: FlowIdle},
	},
	FlowConsenting: {
		EventNeedLogin:       {next: FlowAuthenticating, bounce: true},
		EventAlreadyLoggedIn: {next: FlowAuthenticated, bounce: true},
		EventConsentShown:    {next: FlowConsenting},
		EventDecided:         {next: FlowIdle},
	},
}

// Flow applies events to the flow state held in a session.
type Flow struct {
	maxBounces int
}

// NewFlow creates a Flow that allows at most maxBounces consecutive
// redirects without progress.
func NewFlow(maxBounces int) Flow {
	if maxBounces <= 0 {
		maxBounces = DefaultMaxBounces
	}
	return Flow{maxBounces: maxBounces}
}

// Apply moves the session along the transition table. Bounce transitions
// increment the session's bounce counter, every other transition resets it.
// Exceeding the bound is a hard error: the session state is inconsistent and
// following the redirect would loop forever.
func (f Flow) Apply(sess *sessions.Session, event FlowEvent) error {
	t, ok := lookupTransition(FlowState(sess.FlowState), event)
	if !ok {
		return oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, UnexpectedLoginMsg, fmt.Errorf("no transition for %q", event))
	}
	if t.bounce {
		sess.Bounces++
		if sess.Bounces > f.maxBounces {
			sess.FlowState = string(FlowIdle)
			sess.Bounces = 0
			return oauthmodel.Hard(RedirectLoopMsg)
		}
	} else {
		sess.Bounces = 0
	}
	sess.FlowState = string(t.next)
	return nil
}

func lookupTransition(current FlowState, event FlowEvent) (transition, bool) {
	if row, ok := flowTransitions[current]; ok {
		if t, ok := row[event]; ok {
			return t, true
		}
	}
	t, ok := flowTransitions[FlowIdle][event]
	return t, ok
}
