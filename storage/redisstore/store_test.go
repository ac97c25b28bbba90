package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-authz-server/clients"
	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/jrsteele09/go-authz-server/token"
	"github.com/jrsteele09/go-authz-server/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "test:"), mr
}

func newCode(value string, issued time.Time) *token.AuthorizationCode {
	return &token.AuthorizationCode{
		Code:        value,
		Nickname:    "alice",
		ClientID:    "client-1",
		RedirectURI: "http://localhost:3000/callback",
		Scope:       "read",
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(10 * time.Minute),
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	store, err := New(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, DefaultKeyPrefix, store.keyPrefix)
}

func TestClients(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := store.Clients()

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, clients.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, &clients.Client{ID: "b", Secret: "s", RedirectURIs: []string{"https://b.example/cb"}}))
	require.NoError(t, repo.Upsert(ctx, &clients.Client{ID: "a", Secret: "s"}))

	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://b.example/cb"}, got.RedirectURIs)
	assert.Equal(t, "s", got.Secret)

	list, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestUsersKeepPasswordHash(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash, err := users.HashPassword("correct")
	require.NoError(t, err)
	require.NoError(t, store.Users().Upsert(ctx, &users.User{ID: "u1", Nickname: "alice", PasswordHash: hash}))

	got, err := store.Users().GetByNickname(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, hash, got.PasswordHash)

	_, err = store.Users().GetByNickname(ctx, "bob")
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestCodeClaimLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := store.Codes()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newCode("code-1", now)))
	require.ErrorIs(t, repo.Create(ctx, newCode("code-1", now)), autherrors.ErrAlreadyExists)

	ac, err := repo.Claim(ctx, "code-1", now)
	require.NoError(t, err)
	assert.Equal(t, "alice", ac.Nickname)

	_, err = repo.Claim(ctx, "code-1", now)
	require.ErrorIs(t, err, autherrors.ErrCodeAlreadyClaimed)

	require.NoError(t, repo.Release(ctx, "code-1"))
	require.ErrorIs(t, repo.Release(ctx, "code-1"), autherrors.ErrCodeNotClaimed)

	_, err = repo.Claim(ctx, "code-1", now)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "code-1"))

	_, err = repo.Claim(ctx, "code-1", now)
	require.ErrorIs(t, err, autherrors.ErrNotFound)
	require.ErrorIs(t, repo.Release(ctx, "code-1"), autherrors.ErrNotFound)
}

func TestClaimedKeysCannotBeAddressedAsCodes(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	repo := store.Codes()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newCode("abc", now)))
	_, err := repo.Claim(ctx, "abc", now)
	require.NoError(t, err)

	for _, alias := range []string{"claimed:abc", ":claimed:abc", "../claimed_code:abc"} {
		_, err = repo.Claim(ctx, alias, now)
		require.ErrorIs(t, err, autherrors.ErrNotFound, alias)
		require.ErrorIs(t, repo.Release(ctx, alias), autherrors.ErrNotFound, alias)
		require.NoError(t, repo.Delete(ctx, alias))
	}
	assert.True(t, mr.Exists("test:claimed_code:abc"))

	require.NoError(t, repo.Release(ctx, "abc"))
	ac, err := repo.Claim(ctx, "abc", now)
	require.NoError(t, err)
	assert.Equal(t, "abc", ac.Code)
}

func TestCodeExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	repo := store.Codes()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newCode("by-clock", now)))
	_, err := repo.Claim(ctx, "by-clock", now.Add(10*time.Minute))
	require.ErrorIs(t, err, autherrors.ErrCodeExpired)

	require.NoError(t, repo.Create(ctx, newCode("by-ttl", now)))
	mr.FastForward(11 * time.Minute)
	_, err = repo.Claim(ctx, "by-ttl", now)
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestCodeConcurrentClaims(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Codes().Create(ctx, newCode("code-1", now)))

	const attempts = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Codes().Claim(ctx, "code-1", now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestBearerTokens(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := store.Tokens()

	nickname := "alice"
	require.NoError(t, repo.Create(ctx, &token.BearerToken{Token: "t1", Nickname: &nickname, ClientID: "c"}))
	require.NoError(t, repo.Create(ctx, &token.BearerToken{Token: "t2", ClientID: "c"}))
	require.ErrorIs(t, repo.Create(ctx, &token.BearerToken{Token: "t1"}), autherrors.ErrAlreadyExists)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.Nickname)
	assert.Equal(t, "alice", *got.Nickname)

	got, err = repo.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Nil(t, got.Nickname)

	_, err = repo.Get(ctx, "t3")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestSessions(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	repo := store.Sessions()
	now := time.Now().UTC()

	sess := &sessions.Session{
		ID:        "s1",
		Principal: &sessions.Principal{ID: "alice", DisplayName: "Alice"},
		Nickname:  "alice",
		FlowState: "authenticated",
		Bounces:   1,
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, repo.Upsert(ctx, sess))
	assert.True(t, mr.TTL("test:session:s1") > 0)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Local())
	assert.Equal(t, 1, got.Bounces)
	assert.Equal(t, "authenticated", got.FlowState)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestSessionExpiry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	repo := store.Sessions()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, repo.Upsert(ctx, &sessions.Session{ID: "s1", ExpiresAt: now.Add(time.Minute)}))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := repo.Get(ctx, "s1")
	require.ErrorIs(t, err, autherrors.ErrSessionExpired)

	// Saving an already expired session drops it
	require.NoError(t, repo.Upsert(ctx, &sessions.Session{ID: "s2", ExpiresAt: now}))
	_, err = repo.Get(ctx, "s2")
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}
