package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authz-server/auth"
	"github.com/jrsteele09/go-authz-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-authz-server/clients/fakerepo"
	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/jrsteele09/go-authz-server/sessions"
	tokenfakerepo "github.com/jrsteele09/go-authz-server/token/repofake"
	"github.com/jrsteele09/go-authz-server/users"
	fakeuserrepo "github.com/jrsteele09/go-authz-server/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
	testRedirectURI  = "http://localhost:3000/callback"
	testState        = "random-state-value"
	testNickname     = "alice"
	testPassword     = "correct"
	testDisplayName  = "Alice Liddell"
)

// testFixture holds all test dependencies
type testFixture struct {
	clientRepo  *fakeclientrepo.FakeClientRepo
	userRepo    *fakeuserrepo.FakeUserRepo
	codeRepo    *tokenfakerepo.FakeCodeRepo
	bearerRepo  *tokenfakerepo.FakeBearerRepo
	sessionRepo *sessions.InMemoryRepo
	service     *auth.AuthorizationService
	now         time.Time
}

// setupTestFixture creates a new test fixture with a registered client and a local user
func setupTestFixture(t *testing.T, options ...auth.AuthorizationServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		clientRepo:  fakeclientrepo.NewFakeClientRepo(),
		userRepo:    fakeuserrepo.NewFakeUserRepo(),
		codeRepo:    tokenfakerepo.NewFakeCodeRepo(),
		bearerRepo:  tokenfakerepo.NewFakeBearerRepo(),
		sessionRepo: sessions.NewInMemoryRepo(),
		now:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	ctx := context.Background()
	require.NoError(t, f.clientRepo.Upsert(ctx, &clients.Client{
		ID:           testClientID,
		Secret:       testClientSecret,
		RedirectURIs: []string{testRedirectURI},
	}))

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(ctx, &users.User{
		Nickname:     testNickname,
		DisplayName:  testDisplayName,
		PasswordHash: hash,
	}))

	repos := auth.Repos{
		Clients:     f.clientRepo,
		Codes:       f.codeRepo,
		Tokens:      f.bearerRepo,
		Sessions:    f.sessionRepo,
		Credentials: users.NewPasswordChecker(f.userRepo),
	}

	opts := append([]auth.AuthorizationServiceOption{
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithLogger(zerolog.Nop()),
	}, options...)
	f.service, err = auth.NewAuthorizationService(repos, opts...)
	require.NoError(t, err)
	return f
}

func validProps() oauthmodel.Properties {
	return oauthmodel.Properties{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ResponseType: oauthmodel.CodeResponseType,
		State:        testState,
		Scope:        "read",
	}
}

// newSession stores and returns an anonymous browser session
func (f *testFixture) newSession(t *testing.T) *sessions.Session {
	t.Helper()
	sess := &sessions.Session{ID: uuid.NewString(), CreatedAt: f.now}
	require.NoError(t, f.sessionRepo.Upsert(context.Background(), sess))
	return sess
}

// loggedInSession stores and returns a session with a local principal attached
func (f *testFixture) loggedInSession(t *testing.T) *sessions.Session {
	t.Helper()
	sess := f.newSession(t)
	sess.Principal = &sessions.Principal{ID: testNickname, DisplayName: testDisplayName}
	sess.Nickname = testNickname
	require.NoError(t, f.sessionRepo.Upsert(context.Background(), sess))
	return sess
}

// approve runs a consent approval and returns the issued authorization code
func (f *testFixture) approve(t *testing.T) string {
	t.Helper()
	outcome, err := f.service.Consent(context.Background(), validProps(), false, f.loggedInSession(t))
	require.NoError(t, err)
	return requireLocation(t, outcome).Query().Get("code")
}

func requireHard(t *testing.T, err error, code oauthmodel.ErrorCode, reason string) *oauthmodel.HardError {
	t.Helper()
	var hard *oauthmodel.HardError
	require.ErrorAs(t, err, &hard)
	if code != "" {
		require.Equal(t, code, hard.Code)
	}
	if reason != "" {
		require.Equal(t, reason, hard.Reason)
	}
	return hard
}

func requireLocation(t *testing.T, outcome *auth.Outcome) *url.URL {
	t.Helper()
	require.NotNil(t, outcome)
	require.Equal(t, auth.OutcomeRedirect, outcome.Kind)
	u, err := url.Parse(outcome.Location)
	require.NoError(t, err)
	return u
}

func requireRedirectsToClient(t *testing.T, outcome *auth.Outcome, status int) url.Values {
	t.Helper()
	u := requireLocation(t, outcome)
	require.Equal(t, status, outcome.Status)
	require.Equal(t, "http", u.Scheme)
	require.Equal(t, "localhost:3000", u.Host)
	require.Equal(t, "/callback", u.Path)
	return u.Query()
}

func TestNewAuthorizationService_RequiresRepos(t *testing.T) {
	_, err := auth.NewAuthorizationService(auth.Repos{})
	require.Error(t, err)

	f := setupTestFixture(t)
	repos := auth.Repos{
		Clients:     f.clientRepo,
		Codes:       f.codeRepo,
		Tokens:      f.bearerRepo,
		Sessions:    f.sessionRepo,
		Credentials: users.NewPasswordChecker(f.userRepo),
	}
	_, err = auth.NewAuthorizationService(repos, auth.WithScopes(nil))
	require.Error(t, err)
	_, err = auth.NewAuthorizationService(repos, auth.WithCodeTTL(0))
	require.Error(t, err)
}

func TestAuthorize_MissingClientIDOrRedirectURI(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name   string
		mutate func(p *oauthmodel.Properties)
		reason string
	}{
		{"no client_id", func(p *oauthmodel.Properties) { p.ClientID = "" }, auth.NoClientIDMsg},
		{"no redirect_uri", func(p *oauthmodel.Properties) { p.RedirectURI = "" }, auth.NoRedirectURIMsg},
		{"neither", func(p *oauthmodel.Properties) { p.ClientID, p.RedirectURI = "", "" }, auth.NoClientIDMsg},
		{"no client_id with bad response_type", func(p *oauthmodel.Properties) {
			p.ClientID = ""
			p.ResponseType = "token"
		}, auth.NoClientIDMsg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := validProps()
			tt.mutate(&props)
			outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
			require.Nil(t, outcome)
			requireHard(t, err, oauthmodel.ErrCodeInvalidRequest, tt.reason)
		})
	}
}

func TestAuthorize_UnregisteredRedirectURINeverRedirects(t *testing.T) {
	f := setupTestFixture(t)

	for _, uri := range []string{
		"https://attacker.example/steal",
		testRedirectURI + "/",
		testRedirectURI + "?x=1",
		"HTTP://localhost:3000/callback",
	} {
		t.Run(uri, func(t *testing.T) {
			props := validProps()
			props.RedirectURI = uri
			// Would be a redirect error if the URI were trusted
			props.ResponseType = "token"

			outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
			require.Nil(t, outcome)
			requireHard(t, err, oauthmodel.ErrCodeInvalidRequest, auth.InvalidRedirectURIMsg)
		})
	}
}

func TestAuthorize_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.ClientID = "nobody"

	outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeInvalidClient, auth.UnknownClientMsg)
}

func TestAuthorize_ClientLookupFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.clientRepo.GetErr = errors.New("connection refused")

	outcome, err := f.service.Authorize(context.Background(), validProps(), f.newSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeServerError, auth.ClientLookupFailedMsg)
}

func TestAuthorize_UnsupportedResponseTypeRedirectsWithState(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.ResponseType = "token"
	props.State = "s p a c e & amp"

	outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusFound)
	assert.Equal(t, "unsupported_response_type", q.Get("error"))
	assert.Equal(t, props.State, q.Get("state"))
}

func TestAuthorize_InvalidScopeRedirects(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.Scope = "read admin"

	outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusFound)
	assert.Equal(t, "invalid_scope", q.Get("error"))
	assert.Equal(t, testState, q.Get("state"))
}

func TestAuthorize_RedirectErrorWithoutStateOmitsIt(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.ResponseType = ""
	props.State = ""

	outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusFound)
	assert.Equal(t, "unsupported_response_type", q.Get("error"))
	_, hasState := q["state"]
	assert.False(t, hasState)
}

func TestAuthorize_UnauthenticatedRedirectsToAuthc(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()

	outcome, err := f.service.Authorize(context.Background(), props, f.newSession(t))
	require.NoError(t, err)

	u := requireLocation(t, outcome)
	assert.Equal(t, http.StatusFound, outcome.Status)
	assert.Equal(t, auth.DefaultAuthenticatePath, u.Path)
	assert.Equal(t, props.Values(), u.Query())
}

func TestAuthorize_RemotePrincipalIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	sess := f.newSession(t)
	sess.Principal = &sessions.Principal{ID: "github:42", DisplayName: "octocat"}

	outcome, err := f.service.Authorize(context.Background(), validProps(), sess)
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusFound)
	assert.Equal(t, "invalid_request", q.Get("error"))
	assert.Equal(t, testState, q.Get("state"))

	stored, err := f.sessionRepo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())

	// The next attempt asks for a local login instead
	outcome, err = f.service.Authorize(context.Background(), validProps(), stored)
	require.NoError(t, err)
	assert.Equal(t, auth.OutcomeRedirect, outcome.Kind)
	assert.True(t, strings.HasPrefix(outcome.Location, auth.DefaultAuthenticatePath+"?"), outcome.Location)
}

func TestAuthorize_LocalPrincipalRendersConsent(t *testing.T) {
	f := setupTestFixture(t)
	sess := f.loggedInSession(t)
	props := validProps()
	props.Scope = "read writeown"

	outcome, err := f.service.Authorize(context.Background(), props, sess)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeRender, outcome.Kind)
	require.Equal(t, auth.AuthorizeView, outcome.View)
	require.NotNil(t, outcome.Data)
	assert.Equal(t, testClientID, outcome.Data.Client.ID)
	assert.Equal(t, props, outcome.Data.Properties)
	assert.Equal(t, testDisplayName, outcome.Data.Principal.DisplayName)
	assert.Equal(t, []string{"read", "writeown"}, outcome.Data.Scopes)
}

func TestAuthorize_RedirectLoopIsBounded(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxBounces(3))
	sess := f.newSession(t)

	for i := 0; i < 3; i++ {
		_, err := f.service.Authorize(context.Background(), validProps(), sess)
		require.NoError(t, err, "bounce %d", i+1)
	}
	_, err := f.service.Authorize(context.Background(), validProps(), sess)
	requireHard(t, err, "", auth.RedirectLoopMsg)
}

func TestAuthorize_LoginFormResetsBounces(t *testing.T) {
	f := setupTestFixture(t, auth.WithMaxBounces(1))
	sess := f.newSession(t)

	for i := 0; i < 5; i++ {
		_, err := f.service.Authorize(context.Background(), validProps(), sess)
		require.NoError(t, err)
		outcome, err := f.service.AuthenticatePage(context.Background(), validProps(), sess)
		require.NoError(t, err)
		require.Equal(t, auth.OutcomeRender, outcome.Kind)
	}
}

func TestAuthenticatePage_RendersLoginAndConsumesMessage(t *testing.T) {
	f := setupTestFixture(t)
	sess := f.newSession(t)
	sess.AuthcErr = auth.NoCredentialMatchMsg

	outcome, err := f.service.AuthenticatePage(context.Background(), validProps(), sess)
	require.NoError(t, err)
	require.Equal(t, auth.OutcomeRender, outcome.Kind)
	require.Equal(t, auth.AuthenticateView, outcome.View)
	assert.Equal(t, auth.NoCredentialMatchMsg, outcome.Data.Error)
	assert.Equal(t, testClientID, outcome.Data.Client.ID)

	stored, err := f.sessionRepo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AuthcErr)

	outcome, err = f.service.AuthenticatePage(context.Background(), validProps(), sess)
	require.NoError(t, err)
	assert.Empty(t, outcome.Data.Error)
}

func TestAuthenticatePage_AlreadyAuthenticatedRedirectsToAuthz(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()

	outcome, err := f.service.AuthenticatePage(context.Background(), props, f.loggedInSession(t))
	require.NoError(t, err)
	u := requireLocation(t, outcome)
	assert.Equal(t, http.StatusFound, outcome.Status)
	assert.Equal(t, auth.DefaultAuthorizePath, u.Path)
	assert.Equal(t, props.Values(), u.Query())
}

func TestAuthenticatePage_VerificationErrorsAreHard(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.Scope = "everything"

	outcome, err := f.service.AuthenticatePage(context.Background(), props, f.newSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeInvalidScope, "")
}

func TestAuthenticate_Success(t *testing.T) {
	f := setupTestFixture(t)
	sess := f.newSession(t)
	oldID := sess.ID
	props := validProps()

	outcome, err := f.service.Authenticate(context.Background(), props, testNickname, testPassword, sess)
	require.NoError(t, err)

	u := requireLocation(t, outcome)
	assert.Equal(t, http.StatusSeeOther, outcome.Status)
	assert.Equal(t, auth.DefaultAuthorizePath, u.Path)
	assert.Equal(t, props.Values(), u.Query())

	require.True(t, sess.Local())
	assert.Equal(t, testNickname, sess.Nickname)
	assert.Equal(t, testDisplayName, sess.Principal.DisplayName)
	assert.NotEqual(t, oldID, sess.ID)

	stored, err := f.sessionRepo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Local())

	_, err = f.sessionRepo.Get(context.Background(), oldID)
	assert.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestAuthenticate_Retry(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name     string
		nickname string
		password string
		message  string
	}{
		{"missing nickname", "", testPassword, auth.CredentialsRequiredMsg},
		{"missing password", testNickname, "", auth.CredentialsRequiredMsg},
		{"wrong password", testNickname, "Correct", auth.NoCredentialMatchMsg},
		{"unknown nickname", "bob", testPassword, auth.NoCredentialMatchMsg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := f.newSession(t)
			outcome, err := f.service.Authenticate(context.Background(), validProps(), tt.nickname, tt.password, sess)
			require.NoError(t, err)

			u := requireLocation(t, outcome)
			assert.Equal(t, http.StatusSeeOther, outcome.Status)
			assert.Equal(t, auth.DefaultAuthenticatePath, u.Path)
			assert.Equal(t, validProps().Values(), u.Query())
			assert.False(t, sess.Authenticated())

			page, err := f.service.AuthenticatePage(context.Background(), validProps(), sess)
			require.NoError(t, err)
			assert.Equal(t, tt.message, page.Data.Error)
		})
	}
}

func TestAuthenticate_CredentialCheckFailureIsHard(t *testing.T) {
	f := setupTestFixture(t)
	f.userRepo.GetErr = errors.New("db down")

	outcome, err := f.service.Authenticate(context.Background(), validProps(), testNickname, testPassword, f.newSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeServerError, "")
}

func TestAuthenticate_TamperedPropsAreHard(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.RedirectURI = "https://attacker.example/"

	outcome, err := f.service.Authenticate(context.Background(), props, testNickname, testPassword, f.newSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeInvalidRequest, auth.InvalidRedirectURIMsg)
}

func TestConsent_Denied(t *testing.T) {
	f := setupTestFixture(t)

	outcome, err := f.service.Consent(context.Background(), validProps(), true, f.loggedInSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusSeeOther)
	assert.Equal(t, "access_denied", q.Get("error"))
	assert.Equal(t, testState, q.Get("state"))
	assert.Equal(t, 0, f.codeRepo.Len())
}

func TestConsent_ApprovedIssuesCode(t *testing.T) {
	f := setupTestFixture(t)

	outcome, err := f.service.Consent(context.Background(), validProps(), false, f.loggedInSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusSeeOther)
	code := q.Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, testState, q.Get("state"))
	assert.Empty(t, q.Get("error"))

	ac, err := f.codeRepo.Claim(context.Background(), code, f.now)
	require.NoError(t, err)
	assert.Equal(t, testNickname, ac.Nickname)
	assert.Equal(t, testClientID, ac.ClientID)
	assert.Equal(t, testRedirectURI, ac.RedirectURI)
	assert.Equal(t, "read", ac.Scope)
	assert.Equal(t, f.now, ac.IssuedAt)
	assert.Equal(t, f.now.Add(auth.DefaultCodeTTL), ac.ExpiresAt)
}

func TestConsent_RequiresLocalPrincipal(t *testing.T) {
	f := setupTestFixture(t)

	remote := f.newSession(t)
	remote.Principal = &sessions.Principal{ID: "github:42"}

	for name, sess := range map[string]*sessions.Session{
		"anonymous": f.newSession(t),
		"remote":    remote,
		"nil":       nil,
	} {
		t.Run(name, func(t *testing.T) {
			outcome, err := f.service.Consent(context.Background(), validProps(), false, sess)
			require.Nil(t, outcome)
			requireHard(t, err, oauthmodel.ErrCodeInvalidRequest, auth.UnexpectedLoginMsg)
		})
	}
	assert.Equal(t, 0, f.codeRepo.Len())
}

func TestConsent_CodeRepoFailureRedirectsServerError(t *testing.T) {
	f := setupTestFixture(t)
	f.codeRepo.CreateErr = errors.New("disk full")

	outcome, err := f.service.Consent(context.Background(), validProps(), false, f.loggedInSession(t))
	require.NoError(t, err)

	q := requireRedirectsToClient(t, outcome, http.StatusSeeOther)
	assert.Equal(t, "server_error", q.Get("error"))
	assert.Equal(t, testState, q.Get("state"))
}

func TestConsent_GeneratorFailureRedirectsServerError(t *testing.T) {
	f := setupTestFixture(t, auth.WithTokenGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	outcome, err := f.service.Consent(context.Background(), validProps(), false, f.loggedInSession(t))
	require.NoError(t, err)
	q := requireRedirectsToClient(t, outcome, http.StatusSeeOther)
	assert.Equal(t, "server_error", q.Get("error"))
}

func TestConsent_VerificationErrorsAreHard(t *testing.T) {
	f := setupTestFixture(t)
	props := validProps()
	props.ResponseType = "token"

	outcome, err := f.service.Consent(context.Background(), props, false, f.loggedInSession(t))
	require.Nil(t, outcome)
	requireHard(t, err, oauthmodel.ErrCodeUnsupportedResponseType, "")
}

func TestConsent_KeepsRegisteredQuery(t *testing.T) {
	f := setupTestFixture(t)
	const registered = "https://app.example/cb?tenant=blue"
	require.NoError(t, f.clientRepo.Upsert(context.Background(), &clients.Client{
		ID:           "with-query",
		Secret:       "s",
		RedirectURIs: []string{registered},
	}))
	props := validProps()
	props.ClientID = "with-query"
	props.RedirectURI = registered

	outcome, err := f.service.Consent(context.Background(), props, false, f.loggedInSession(t))
	require.NoError(t, err)
	u := requireLocation(t, outcome)
	assert.Equal(t, "app.example", u.Host)
	assert.Equal(t, "blue", u.Query().Get("tenant"))
	assert.NotEmpty(t, u.Query().Get("code"))
}

func TestConsent_RegisteredQueryIsNotRewritten(t *testing.T) {
	f := setupTestFixture(t)
	const registered = "https://app.example/cb?z=1&a=%7Ex&state=fixed"
	require.NoError(t, f.clientRepo.Upsert(context.Background(), &clients.Client{
		ID:           "with-query",
		Secret:       "s",
		RedirectURIs: []string{registered},
	}))
	props := validProps()
	props.ClientID = "with-query"
	props.RedirectURI = registered

	outcome, err := f.service.Consent(context.Background(), props, false, f.loggedInSession(t))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(outcome.Location, registered+"&"), outcome.Location)

	q := requireLocation(t, outcome).Query()
	assert.Equal(t, []string{"fixed", testState}, q["state"])
	assert.NotEmpty(t, q.Get("code"))

	outcome, err = f.service.Consent(context.Background(), props, true, f.loggedInSession(t))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(outcome.Location, registered+"&"), outcome.Location)
	assert.Equal(t, "access_denied", requireLocation(t, outcome).Query().Get("error"))
}

func TestFullBrowserFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	sess := f.newSession(t)
	props := validProps()

	outcome, err := f.service.Authorize(ctx, props, sess)
	require.NoError(t, err)
	require.Equal(t, auth.DefaultAuthenticatePath, requireLocation(t, outcome).Path)

	outcome, err = f.service.AuthenticatePage(ctx, props, sess)
	require.NoError(t, err)
	require.Equal(t, auth.AuthenticateView, outcome.View)

	outcome, err = f.service.Authenticate(ctx, props, testNickname, testPassword, sess)
	require.NoError(t, err)
	require.Equal(t, auth.DefaultAuthorizePath, requireLocation(t, outcome).Path)

	outcome, err = f.service.Authorize(ctx, props, sess)
	require.NoError(t, err)
	require.Equal(t, auth.AuthorizeView, outcome.View)

	outcome, err = f.service.Consent(ctx, props, false, sess)
	require.NoError(t, err)
	code := requireRedirectsToClient(t, outcome, http.StatusSeeOther).Get("code")

	resp, err := f.service.Token(ctx, oauthmodel.TokenRequest{
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, auth.FlowIdle, auth.FlowState(sess.FlowState))
	assert.Zero(t, sess.Bounces)
}
