package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authz-server/clients"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default locations of the browser endpoints and the names of the views they render.
const (
	DefaultAuthorizePath    = "/oauth2/authz"
	DefaultAuthenticatePath = "/oauth2/authc"

	AuthorizeView    = "oauth2-authorize"
	AuthenticateView = "oauth2-authenticate"

	DefaultCodeTTL = 10 * time.Minute
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Clients     clients.Repo            // Registered OAuth2 clients
	Codes       token.CodeRepo          // Authorization codes awaiting redemption
	Tokens      token.BearerRepo        // Issued bearer tokens
	Sessions    sessions.Repo           // Browser sessions
	Credentials users.CredentialChecker // Nickname/password verification
}

// Recorder receives flow and token outcomes, typically for metrics.
type Recorder interface {
	FlowStep(endpoint, outcome string)
	TokenIssued(grant oauthmodel.GrantType)
	TokenRejected(grant oauthmodel.GrantType, code oauthmodel.ErrorCode)
}

type noopRecorder struct{}

func (noopRecorder) FlowStep(string, string)                                  {}
func (noopRecorder) TokenIssued(oauthmodel.GrantType)                         {}
func (noopRecorder) TokenRejected(oauthmodel.GrantType, oauthmodel.ErrorCode) {}

// AuthorizationService implements the authorization, authentication, consent
// and token endpoints independently of any HTTP framework.
type AuthorizationService struct {
	repos         Repos
	verifier      *Verifier
	flow          Flow
	scopes        []string
	codeTTL       time.Duration
	maxBounces    int
	authorizePath string
	authcPath     string
	generate      token.Generator
	recorder      Recorder
	logger        zerolog.Logger
	nowTime       func() time.Time // injectable for testing
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithScopes replaces the accepted scope set.
func WithScopes(scopes []string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.scopes = scopes
	}
}

// WithCodeTTL sets how long an authorization code stays redeemable.
func WithCodeTTL(ttl time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.codeTTL = ttl
	}
}

// WithMaxBounces bounds consecutive authorize<->authenticate redirects.
func WithMaxBounces(n int) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.maxBounces = n
	}
}

// WithTokenGenerator replaces the generator used for codes and bearer tokens.
func WithTokenGenerator(gen token.Generator) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.generate = gen
	}
}

func WithRecorder(r Recorder) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.recorder = r
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// WithRoutes sets the paths the browser is sent to between endpoints.
func WithRoutes(authorizePath, authenticatePath string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.authorizePath = authorizePath
		as.authcPath = authenticatePath
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewAuthorizationService(repos Repos, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Codes == nil {
		return nil, errors.New("[NewAuthorizationService] Codes repo is required")
	}
	if repos.Tokens == nil {
		return nil, errors.New("[NewAuthorizationService] Tokens repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Credentials == nil {
		return nil, errors.New("[NewAuthorizationService] Credentials checker is required")
	}

	as := &AuthorizationService{
		repos:         repos,
		scopes:        oauthmodel.DefaultScopes(),
		codeTTL:       DefaultCodeTTL,
		maxBounces:    DefaultMaxBounces,
		authorizePath: DefaultAuthorizePath,
		authcPath:     DefaultAuthenticatePath,
		generate:      token.GenerateOpaque,
		recorder:      noopRecorder{},
		logger:        log.Logger,
		nowTime:       time.Now,
	}

	for _, opt := range options {
		opt(as)
	}

	if len(as.scopes) == 0 {
		return nil, errors.New("[NewAuthorizationService] at least one scope is required")
	}
	if as.codeTTL <= 0 {
		return nil, errors.Errorf("[NewAuthorizationService] invalid code TTL %s", as.codeTTL)
	}
	as.verifier = NewVerifier(repos.Clients, as.scopes)
	as.flow = NewFlow(as.maxBounces)
	return as, nil
}

// Scopes returns the accepted scope set.
func (as *AuthorizationService) Scopes() []string {
	return append([]string(nil), as.scopes...)
}

// OutcomeKind says what the HTTP layer should do with an Outcome.
type OutcomeKind int

const (
	OutcomeRedirect OutcomeKind = iota
	OutcomeRender
)

// Outcome is the successful result of a browser endpoint: either a redirect
// (which may carry a redirect error to the client) or a view to render.
type Outcome struct {
	Kind     OutcomeKind
	Status   int    // HTTP status for redirects (302 or 303)
	Location string // Redirect target
	View     string // View name for renders
	Data     *ViewData
}

// ViewData is the property bag handed to the view renderer.
type ViewData struct {
	Client     *clients.Client
	Properties oauthmodel.Properties
	Principal  *sessions.Principal
	Scopes     []string
	Error      string
}

// Authorize handles GET on the authorization endpoint. Hard errors are
// returned; everything else, including redirect errors, is an Outcome.
func (as *AuthorizationService) Authorize(ctx context.Context, props oauthmodel.Properties, sess *sessions.Session) (*Outcome, error) {
	client, err := as.verifier.Verify(ctx, props)
	if err != nil {
		return as.failFlow("authorize", props, err, http.StatusFound)
	}

	if !sess.Authenticated() {
		if err := as.advance(ctx, sess, EventNeedLogin); err != nil {
			as.recorder.FlowStep("authorize", "loop")
			return nil, err
		}
		as.recorder.FlowStep("authorize", "login_required")
		return redirectOutcome(http.StatusFound, withQuery(as.authcPath, props)), nil
	}

	if !sess.Local() {
		as.logger.Info().Str("client_id", client.ID).Str("principal", sess.Principal.ID).Msg("Rejecting remote principal")
		sess.Clear()
		if err := as.advance(ctx, sess, EventDecided); err != nil {
			return nil, err
		}
		return as.failFlow("authorize", props, oauthmodel.Redirect(oauthmodel.ErrCodeInvalidRequest), http.StatusFound)
	}

	if err := as.advance(ctx, sess, EventConsentShown); err != nil {
		return nil, err
	}
	as.recorder.FlowStep("authorize", "consent_prompt")
	return &Outcome{
		Kind: OutcomeRender,
		View: AuthorizeView,
		Data: &ViewData{
			Client:     client,
			Properties: props,
			Principal:  sess.Principal,
			Scopes:     props.Scopes(),
		},
	}, nil
}

// AuthenticatePage handles GET on the authentication endpoint.
func (as *AuthorizationService) AuthenticatePage(ctx context.Context, props oauthmodel.Properties, sess *sessions.Session) (*Outcome, error) {
	if sess.Authenticated() {
		if err := as.advance(ctx, sess, EventAlreadyLoggedIn); err != nil {
			as.recorder.FlowStep("authenticate", "loop")
			return nil, err
		}
		return redirectOutcome(http.StatusFound, withQuery(as.authorizePath, props)), nil
	}

	client, err := as.verifier.Verify(ctx, props)
	if err != nil {
		return nil, hardOnly(err)
	}

	message := sess.AuthcErr
	sess.AuthcErr = ""
	if err := as.advance(ctx, sess, EventLoginShown); err != nil {
		return nil, err
	}
	as.recorder.FlowStep("authenticate", "login_form")
	return &Outcome{
		Kind: OutcomeRender,
		View: AuthenticateView,
		Data: &ViewData{
			Client:     client,
			Properties: props,
			Error:      message,
		},
	}, nil
}

// Authenticate handles POST on the authentication endpoint. On success the
// session gets a new ID; callers must re-issue the session cookie when
// sess.ID changes.
func (as *AuthorizationService) Authenticate(ctx context.Context, props oauthmodel.Properties, nickname, password string, sess *sessions.Session) (*Outcome, error) {
	if sess.Authenticated() {
		if err := as.advance(ctx, sess, EventAlreadyLoggedIn); err != nil {
			return nil, err
		}
		return redirectOutcome(http.StatusSeeOther, withQuery(as.authorizePath, props)), nil
	}

	if _, err := as.verifier.Verify(ctx, props); err != nil {
		return nil, hardOnly(err)
	}

	if nickname == "" || password == "" {
		return as.retryLogin(ctx, props, sess, CredentialsRequiredMsg)
	}

	user, err := as.repos.Credentials.Check(ctx, nickname, password)
	if err != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "credential check failed", err)
	}
	if user == nil {
		as.recorder.FlowStep("authenticate", "bad_credentials")
		return as.retryLogin(ctx, props, sess, NoCredentialMatchMsg)
	}

	// A fresh session ID on login stops a planted session being promoted
	if sess.ID != "" {
		if err := as.repos.Sessions.Delete(ctx, sess.ID); err != nil {
			as.logger.Warn().Err(err).Msg("Failed to drop pre-login session")
		}
	}
	sess.ID = uuid.NewString()
	sess.Principal = principalFor(user)
	sess.Nickname = user.Nickname
	sess.AuthcErr = ""
	if err := as.advance(ctx, sess, EventLoginSucceeded); err != nil {
		return nil, err
	}

	as.recorder.FlowStep("authenticate", "authenticated")
	return redirectOutcome(http.StatusSeeOther, withQuery(as.authorizePath, props)), nil
}

// Consent handles POST on the authorization endpoint: the resource owner's
// approve or deny decision.
func (as *AuthorizationService) Consent(ctx context.Context, props oauthmodel.Properties, denied bool, sess *sessions.Session) (*Outcome, error) {
	if _, err := as.verifier.Verify(ctx, props); err != nil {
		return nil, hardOnly(err)
	}

	if !sess.Local() {
		return nil, oauthmodel.Hard(UnexpectedLoginMsg)
	}

	if err := as.advance(ctx, sess, EventDecided); err != nil {
		return nil, err
	}

	if denied {
		as.logger.Info().Str("client_id", props.ClientID).Str("nickname", sess.Nickname).Msg("Access denied by resource owner")
		return as.failFlow("consent", props, oauthmodel.Redirect(oauthmodel.ErrCodeAccessDenied), http.StatusSeeOther)
	}

	code, err := as.issueCode(ctx, props, sess.Nickname)
	if err != nil {
		as.logger.Error().Err(err).Str("client_id", props.ClientID).Msg("Failed to create authorization code")
		return as.failFlow("consent", props, oauthmodel.Redirect(oauthmodel.ErrCodeServerError), http.StatusSeeOther)
	}

	params := url.Values{}
	params.Set(oauthmodel.KeyCode, code.Code)
	if props.State != "" {
		params.Set(oauthmodel.KeyState, props.State)
	}
	location, err := appendQuery(props.RedirectURI, params)
	if err != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "invalid redirect_uri", err)
	}
	as.recorder.FlowStep("consent", "approved")
	return redirectOutcome(http.StatusSeeOther, location), nil
}

func (as *AuthorizationService) issueCode(ctx context.Context, props oauthmodel.Properties, nickname string) (*token.AuthorizationCode, error) {
	value, err := as.generate()
	if err != nil {
		return nil, errors.Wrap(err, "[issueCode] generate")
	}
	now := as.nowTime()
	code := &token.AuthorizationCode{
		Code:        value,
		Nickname:    nickname,
		ClientID:    props.ClientID,
		RedirectURI: props.RedirectURI,
		Scope:       props.Scope,
		IssuedAt:    now,
		ExpiresAt:   now.Add(as.codeTTL),
	}
	if err := as.repos.Codes.Create(ctx, code); err != nil {
		return nil, errors.Wrap(err, "[issueCode] create")
	}
	return code, nil
}

func (as *AuthorizationService) retryLogin(ctx context.Context, props oauthmodel.Properties, sess *sessions.Session, message string) (*Outcome, error) {
	sess.AuthcErr = message
	if err := as.advance(ctx, sess, EventLoginRetry); err != nil {
		return nil, err
	}
	return redirectOutcome(http.StatusSeeOther, withQuery(as.authcPath, props)), nil
}

// advance applies event to the session's flow and persists the session
// before the caller responds.
func (as *AuthorizationService) advance(ctx context.Context, sess *sessions.Session, event FlowEvent) error {
	if sess == nil {
		return oauthmodel.Hard(UnexpectedLoginMsg)
	}
	flowErr := as.flow.Apply(sess, event)
	if err := as.repos.Sessions.Upsert(ctx, sess); err != nil {
		return oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "failed to save session", err)
	}
	if flowErr != nil {
		as.logger.Warn().Str("session_id", sess.ID).Str("event", string(event)).Msg("Redirect loop detected")
	}
	return flowErr
}

// failFlow turns a verification error into either a redirect to the client
// or a hard error.
func (as *AuthorizationService) failFlow(endpoint string, props oauthmodel.Properties, err error, status int) (*Outcome, error) {
	hard, redirect := oauthmodel.Classify(err)
	if hard != nil {
		as.recorder.FlowStep(endpoint, "hard_error")
		return nil, hard
	}

	as.logger.Info().Str("client_id", props.ClientID).Str("error", string(redirect.Code)).Msg("Couldn't verify props")
	params := url.Values{}
	params.Set("error", string(redirect.Code))
	if props.State != "" {
		params.Set(oauthmodel.KeyState, props.State)
	}
	location, perr := appendQuery(props.RedirectURI, params)
	if perr != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "invalid redirect_uri", perr)
	}
	as.recorder.FlowStep(endpoint, string(redirect.Code))
	return redirectOutcome(status, location), nil
}

// hardOnly reports any verification failure as a hard error. Used where the
// properties were already verified earlier in the flow, so a redirect error
// means the request was altered in between.
func hardOnly(err error) error {
	hard, redirect := oauthmodel.Classify(err)
	if hard != nil {
		return hard
	}
	return oauthmodel.HardWrap(redirect.Code, "invalid request properties", redirect)
}

func principalFor(user *users.User) *sessions.Principal {
	p := &sessions.Principal{ID: user.ID, DisplayName: user.DisplayName}
	if p.ID == "" {
		p.ID = user.Nickname
	}
	if p.DisplayName == "" {
		p.DisplayName = user.Nickname
	}
	return p
}

func redirectOutcome(status int, location string) *Outcome {
	return &Outcome{Kind: OutcomeRedirect, Status: status, Location: location}
}

func withQuery(path string, props oauthmodel.Properties) string {
	query := props.Encode()
	if query == "" {
		return path
	}
	return path + "?" + query
}

// appendQuery adds params after the query the registered URI already carries.
// The registered portion is kept byte for byte.
func appendQuery(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if extra := params.Encode(); u.RawQuery == "" {
		u.RawQuery = extra
	} else {
		u.RawQuery += "&" + extra
	}
	return u.String(), nil
}
