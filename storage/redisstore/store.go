// Package redisstore provides Redis-backed persistence for clients, users,
// authorization codes, bearer tokens and browser sessions.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-authz-server/clients"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix    = "authz:"
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Key types
const (
	keyTypeClient      = "client"
	keyTypeClientIndex = "clients"
	keyTypeUser        = "user"
	keyTypeCode        = "code"
	keyTypeClaimedCode = "claimed_code"
	keyTypeToken       = "token"
	keyTypeSession     = "session"
)

// Config holds the connection settings for a single Redis server.
type Config struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store wraps a Redis client. The repository interfaces are served by the
// views returned from Clients, Users, Codes, Tokens and Sessions.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

type (
	ClientStore  struct{ *Store }
	UserStore    struct{ *Store }
	CodeStore    struct{ *Store }
	TokenStore   struct{ *Store }
	SessionStore struct{ *Store }
)

var (
	_ clients.Repo     = ClientStore{}
	_ users.UserRepo   = UserStore{}
	_ token.CodeRepo   = CodeStore{}
	_ token.BearerRepo = TokenStore{}
	_ sessions.Repo    = SessionStore{}
)

func (s *Store) Clients() ClientStore   { return ClientStore{s} }
func (s *Store) Users() UserStore       { return UserStore{s} }
func (s *Store) Codes() CodeStore       { return CodeStore{s} }
func (s *Store) Tokens() TokenStore     { return TokenStore{s} }
func (s *Store) Sessions() SessionStore { return SessionStore{s} }

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client, e.g. one connected to miniredis in tests.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// key namespaces are disjoint: no key of one type is a valid key of another,
// whatever id holds.
func (s *Store) key(keyType, id string) string {
	return s.keyPrefix + keyType + ":" + id
}

// isNoSuchKey matches the error RENAME returns when the source key is absent.
func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such key")
}
