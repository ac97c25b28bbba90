package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-authz-server/clients"
	"github.com/jrsteele09/go-authz-server/internal/config"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem registers the configured clients and local accounts.
// Clients are always overwritten so secret and redirect URI changes in the
// configuration take effect; existing accounts are left alone.
func (s *Server) InitialiseSystem(ctx context.Context, cfg config.Config) error {
	baseURL := cfg.GetBaseURL()

	for _, c := range cfg.GetClients() {
		client := c
		if err := s.repos.Clients.Upsert(ctx, &client); err != nil {
			return fmt.Errorf("[server InitialiseSystem] failed to register client %s: %w", client.ID, err)
		}
		log.Info().Str("client_id", client.ID).Strs("redirect_uris", client.RedirectURIs).Msg("Registered client")
	}

	stale, err := staleClients(ctx, s.repos.Clients, cfg.GetClients())
	if err != nil {
		return fmt.Errorf("[server InitialiseSystem] failed to list clients: %w", err)
	}
	for _, id := range stale {
		log.Warn().Str("client_id", id).Msg("Registered client is not in the configuration and can still obtain tokens")
	}

	created := 0
	for _, u := range cfg.GetUsers() {
		ok, err := s.createUser(ctx, u)
		if err != nil {
			return fmt.Errorf("[server InitialiseSystem] failed to create user %s: %w", u.Nickname, err)
		}
		if ok {
			created++
		}
	}

	log.Info().
		Int("clients", len(cfg.GetClients())).
		Int("users_created", created).
		Str("authorization_endpoint", baseURL+RouteOAuth2Authorize).
		Str("token_endpoint", baseURL+RouteOAuth2Token).
		Str("metadata", baseURL+RouteWellKnownAS).
		Msg("System initialised")
	return nil
}

// staleClients returns the IDs of stored clients missing from configured,
// left behind by an earlier configuration of a persistent store.
func staleClients(ctx context.Context, repo clients.Repo, configured []clients.Client) ([]string, error) {
	registered, err := repo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(configured))
	for _, c := range configured {
		known[c.ID] = struct{}{}
	}
	var stale []string
	for _, c := range registered {
		if _, ok := known[c.ID]; !ok {
			stale = append(stale, c.ID)
		}
	}
	return stale, nil
}

// createUser stores a bootstrap account unless the nickname is taken.
func (s *Server) createUser(ctx context.Context, u config.BootstrapUser) (bool, error) {
	existing, err := s.repos.Users.GetByNickname(ctx, u.Nickname)
	if err == nil && existing != nil {
		log.Debug().Str("nickname", u.Nickname).Msg("User already exists")
		return false, nil
	}
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return false, err
	}

	hash := u.PasswordHash
	if hash == "" {
		if hash, err = users.HashPassword(u.Password); err != nil {
			return false, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	user := &users.User{
		Nickname:     u.Nickname,
		DisplayName:  u.DisplayName,
		PasswordHash: hash,
		DateJoined:   s.now().UTC().Truncate(time.Second),
	}
	if err := s.repos.Users.Upsert(ctx, user); err != nil {
		return false, err
	}
	log.Info().Str("nickname", user.Nickname).Msg("Created user")
	return true, nil
}
