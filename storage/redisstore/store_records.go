package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jrsteele09/go-authz-server/clients"
	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/redis/go-redis/v9"
)

// -----------------------
// clients.Repo
// -----------------------

func (s ClientStore) Upsert(ctx context.Context, client *clients.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("client id is required")
	}
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(keyTypeClient, client.ID), data, 0)
		pipe.SAdd(ctx, s.keyPrefix+keyTypeClientIndex, client.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store client: %w", err)
	}
	return nil
}

func (s ClientStore) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	var client clients.Client
	if err := s.getJSON(ctx, s.key(keyTypeClient, clientID), &client); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, clients.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// List returns clients ordered by ID.
func (s ClientStore) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	ids, err := s.client.SMembers(ctx, s.keyPrefix+keyTypeClientIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	list := make([]*clients.Client, 0, end-offset)
	for _, id := range ids[offset:end] {
		client, err := s.Get(ctx, id)
		if errors.Is(err, clients.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, client)
	}
	return list, nil
}

// -----------------------
// users.UserRepo
// -----------------------

// storedUser keeps the password hash, which users.User never serialises.
type storedUser struct {
	users.User
	PasswordHash string `json:"password_hash"`
}

func (s UserStore) Upsert(ctx context.Context, user *users.User) error {
	if user == nil || user.Nickname == "" {
		return fmt.Errorf("user nickname is required")
	}
	data, err := json.Marshal(storedUser{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return s.client.Set(ctx, s.key(keyTypeUser, user.Nickname), data, 0).Err()
}

func (s UserStore) GetByNickname(ctx context.Context, nickname string) (*users.User, error) {
	var stored storedUser
	if err := s.getJSON(ctx, s.key(keyTypeUser, nickname), &stored); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user := stored.User
	user.PasswordHash = stored.PasswordHash
	return &user, nil
}

// -----------------------
// token.CodeRepo
// -----------------------

// Create stores the code with a TTL equal to its lifetime.
func (s CodeStore) Create(ctx context.Context, code *token.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return autherrors.ErrInvalidRecord
	}
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}
	var ttl time.Duration
	if !code.ExpiresAt.IsZero() {
		ttl = code.ExpiresAt.Sub(code.IssuedAt)
	}
	ok, err := s.client.SetNX(ctx, s.key(keyTypeCode, code.Code), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	if !ok {
		return autherrors.ErrAlreadyExists
	}
	return nil
}

// Claim renames the code key to its claimed key. RENAMENX is atomic, so only
// one of several concurrent claims can move the key.
func (s CodeStore) Claim(ctx context.Context, code string, now time.Time) (*token.AuthorizationCode, error) {
	codeKey := s.key(keyTypeCode, code)
	claimedKey := s.key(keyTypeClaimedCode, code)

	moved, err := s.client.RenameNX(ctx, codeKey, claimedKey).Result()
	if isNoSuchKey(err) {
		claimed, err := s.client.Exists(ctx, claimedKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check claimed code: %w", err)
		}
		if claimed > 0 {
			return nil, autherrors.ErrCodeAlreadyClaimed
		}
		return nil, autherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim authorization code: %w", err)
	}
	if !moved {
		return nil, autherrors.ErrCodeAlreadyClaimed
	}

	var ac token.AuthorizationCode
	if err := s.getJSON(ctx, claimedKey, &ac); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherrors.ErrCodeExpired
		}
		return nil, fmt.Errorf("failed to read claimed code: %w", err)
	}
	if ac.Expired(now) {
		_ = s.client.Del(ctx, claimedKey).Err()
		return nil, autherrors.ErrCodeExpired
	}
	return &ac, nil
}

func (s CodeStore) Release(ctx context.Context, code string) error {
	codeKey := s.key(keyTypeCode, code)
	moved, err := s.client.RenameNX(ctx, s.key(keyTypeClaimedCode, code), codeKey).Result()
	if isNoSuchKey(err) {
		exists, err := s.client.Exists(ctx, codeKey).Result()
		if err != nil {
			return fmt.Errorf("failed to check authorization code: %w", err)
		}
		if exists > 0 {
			return autherrors.ErrCodeNotClaimed
		}
		return autherrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to release authorization code: %w", err)
	}
	if !moved {
		return autherrors.ErrCodeNotClaimed
	}
	return nil
}

func (s CodeStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx, s.key(keyTypeCode, code), s.key(keyTypeClaimedCode, code)).Err()
}

// -----------------------
// token.BearerRepo
// -----------------------

func (s TokenStore) Create(ctx context.Context, bt *token.BearerToken) error {
	if bt == nil || bt.Token == "" {
		return autherrors.ErrInvalidRecord
	}
	data, err := json.Marshal(bt)
	if err != nil {
		return fmt.Errorf("failed to marshal bearer token: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(keyTypeToken, bt.Token), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store bearer token: %w", err)
	}
	if !ok {
		return autherrors.ErrAlreadyExists
	}
	return nil
}

func (s TokenStore) Get(ctx context.Context, value string) (*token.BearerToken, error) {
	var bt token.BearerToken
	if err := s.getJSON(ctx, s.key(keyTypeToken, value), &bt); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bearer token: %w", err)
	}
	return &bt, nil
}

// -----------------------
// sessions.Repo
// -----------------------

// Upsert stores the session until its expiry. A session that has already
// expired is removed instead.
func (s SessionStore) Upsert(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("sessionID is required")
	}
	key := s.key(keyTypeSession, session.ID)
	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.client.Del(ctx, key).Err()
		}
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s SessionStore) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	var session sessions.Session
	if err := s.getJSON(ctx, s.key(keyTypeSession, sessionID), &session); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.Expired(s.now()) {
		_ = s.client.Del(ctx, s.key(keyTypeSession, sessionID)).Err()
		return nil, autherrors.ErrSessionExpired
	}
	return &session, nil
}

func (s SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(keyTypeSession, sessionID)).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
