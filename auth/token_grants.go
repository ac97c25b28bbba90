package auth

import (
	"context"

	"github.com/jrsteele09/go-authz-server/clients"
	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Token handles POST on the token endpoint, dispatching on grant_type. Every
// failure is a *oauthmodel.HardError; nothing on this endpoint is redirected.
func (as *AuthorizationService) Token(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	var (
		resp *oauthmodel.TokenResponse
		err  error
	)
	switch req.GrantType {
	case oauthmodel.AuthorizationCodeGrant:
		resp, err = as.authorizationCodeGrant(ctx, req)
	case oauthmodel.ClientCredentialsGrant:
		resp, err = as.clientCredentialsGrant(ctx, req)
	default:
		err = oauthmodel.Hardf(oauthmodel.ErrCodeUnsupportedGrantType, "unrecognized grant_type: %q", req.GrantType)
	}

	if err != nil {
		hard, _ := oauthmodel.Classify(err)
		as.recorder.TokenRejected(req.GrantType, hard.Code)
		if hard.Code == oauthmodel.ErrCodeServerError {
			as.logger.Error().Err(err).Str("grant_type", string(req.GrantType)).Msg("Token request failed")
		}
		return nil, hard
	}
	as.recorder.TokenIssued(req.GrantType)
	return resp, nil
}

func (as *AuthorizationService) authorizationCodeGrant(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if err := req.Require(
		oauthmodel.KeyGrantType,
		oauthmodel.KeyCode,
		oauthmodel.KeyRedirectURI,
		oauthmodel.KeyClientID,
		oauthmodel.KeyClientSecret,
	); err != nil {
		return nil, err
	}

	var (
		code   *token.AuthorizationCode
		client *clients.Client
		g      errgroup.Group
	)
	g.Go(func() error {
		claimed, err := as.repos.Codes.Claim(ctx, req.Code, as.nowTime())
		if err != nil {
			return codeClaimError(err)
		}
		code = claimed
		return nil
	})
	g.Go(func() error {
		c, err := as.lookupClient(ctx, req.ClientID)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err := g.Wait(); err != nil {
		if code != nil {
			as.releaseCode(ctx, req.Code)
		}
		return nil, err
	}

	if err := validateCodeRedemption(code, client, req); err != nil {
		as.releaseCode(ctx, req.Code)
		return nil, err
	}

	nickname := code.Nickname
	bearer, err := as.issueBearer(ctx, client.ID, &nickname, code.Scope)
	if err != nil {
		as.releaseCode(ctx, req.Code)
		return nil, err
	}

	// The token exists, so the code is burnt whatever happens next
	if err := as.repos.Codes.Delete(context.WithoutCancel(ctx), code.Code); err != nil {
		as.logger.Warn().Err(err).Str("client_id", client.ID).Msg("Failed to delete redeemed authorization code")
	}

	return &oauthmodel.TokenResponse{AccessToken: bearer.Token, TokenType: oauthmodel.BearerTokenType}, nil
}

func (as *AuthorizationService) clientCredentialsGrant(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if err := req.Require(oauthmodel.KeyGrantType, oauthmodel.KeyClientID, oauthmodel.KeyClientSecret); err != nil {
		return nil, err
	}

	client, err := as.lookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.SecretMatches(req.ClientSecret) {
		return nil, oauthmodel.Hardf(oauthmodel.ErrCodeInvalidClient, ClientSecretMismatchMsg)
	}

	bearer, err := as.issueBearer(ctx, client.ID, nil, "")
	if err != nil {
		return nil, err
	}
	return &oauthmodel.TokenResponse{AccessToken: bearer.Token, TokenType: oauthmodel.BearerTokenType}, nil
}

func validateCodeRedemption(code *token.AuthorizationCode, client *clients.Client, req oauthmodel.TokenRequest) error {
	if code.Code != req.Code {
		return oauthmodel.Hardf(oauthmodel.ErrCodeInvalidGrant, InvalidCodeMsg)
	}
	if code.RedirectURI != req.RedirectURI {
		return oauthmodel.Hardf(oauthmodel.ErrCodeInvalidGrant, RedirectURIMismatchMsg)
	}
	if !client.SecretMatches(req.ClientSecret) {
		return oauthmodel.Hardf(oauthmodel.ErrCodeInvalidClient, ClientSecretMismatchMsg)
	}
	if code.ClientID != client.ID {
		return oauthmodel.Hardf(oauthmodel.ErrCodeInvalidGrant, CodeClientMismatchMsg)
	}
	return nil
}

func (as *AuthorizationService) lookupClient(ctx context.Context, clientID string) (*clients.Client, error) {
	client, err := as.repos.Clients.Get(ctx, clientID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeInvalidClient, UnknownClientMsg, err)
	}
	if err != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, ClientLookupFailedMsg, err)
	}
	return client, nil
}

func (as *AuthorizationService) issueBearer(ctx context.Context, clientID string, nickname *string, scope string) (*token.BearerToken, error) {
	value, err := as.generate()
	if err != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "token generation failed", err)
	}
	bearer := &token.BearerToken{
		Token:    value,
		Nickname: nickname,
		ClientID: clientID,
		Scope:    scope,
		IssuedAt: as.nowTime(),
	}
	if err := as.repos.Tokens.Create(ctx, bearer); err != nil {
		return nil, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "token creation failed", errors.Wrap(err, "[issueBearer]"))
	}
	return bearer, nil
}

// releaseCode puts a claimed code back into circulation so the client can retry.
func (as *AuthorizationService) releaseCode(ctx context.Context, code string) {
	if err := as.repos.Codes.Release(context.WithoutCancel(ctx), code); err != nil {
		as.logger.Warn().Err(err).Msg("Failed to release authorization code")
	}
}

func codeClaimError(err error) error {
	switch {
	case errors.Is(err, autherrors.ErrNotFound),
		errors.Is(err, autherrors.ErrCodeAlreadyClaimed),
		errors.Is(err, autherrors.ErrCodeExpired):
		return oauthmodel.HardWrap(oauthmodel.ErrCodeInvalidGrant, InvalidCodeMsg, err)
	default:
		return oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "code lookup failed", err)
	}
}
