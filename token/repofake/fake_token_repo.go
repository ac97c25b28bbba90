package tokenfakerepo

import (
	"context"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/token"
)

var (
	_ token.CodeRepo   = (*FakeCodeRepo)(nil)
	_ token.BearerRepo = (*FakeBearerRepo)(nil)
)

type codeEntry struct {
	code    token.AuthorizationCode
	claimed bool
}

// FakeCodeRepo is an in-memory CodeRepo. Claims are serialised by the repo lock.
type FakeCodeRepo struct {
	codes map[string]*codeEntry
	lock  sync.Mutex

	// CreateErr, when set, is returned from every Create call.
	CreateErr error
}

func NewFakeCodeRepo() *FakeCodeRepo {
	return &FakeCodeRepo{
		codes: make(map[string]*codeEntry),
	}
}

func (r *FakeCodeRepo) Create(_ context.Context, code *token.AuthorizationCode) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if code == nil || code.Code == "" {
		return autherrors.ErrInvalidRecord
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.codes[code.Code]; ok {
		return autherrors.ErrAlreadyExists
	}
	r.codes[code.Code] = &codeEntry{code: *code}
	return nil
}

func (r *FakeCodeRepo) Claim(_ context.Context, code string, now time.Time) (*token.AuthorizationCode, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.codes[code]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	if entry.claimed {
		return nil, autherrors.ErrCodeAlreadyClaimed
	}
	if entry.code.Expired(now) {
		delete(r.codes, code)
		return nil, autherrors.ErrCodeExpired
	}
	entry.claimed = true
	ac := entry.code
	return &ac, nil
}

func (r *FakeCodeRepo) Release(_ context.Context, code string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.codes[code]
	if !ok {
		return autherrors.ErrNotFound
	}
	if !entry.claimed {
		return autherrors.ErrCodeNotClaimed
	}
	entry.claimed = false
	return nil
}

func (r *FakeCodeRepo) Delete(_ context.Context, code string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.codes, code)
	return nil
}

// Sweep drops every unclaimed code that has expired at now and returns how
// many were removed.
func (r *FakeCodeRepo) Sweep(now time.Time) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	removed := 0
	for k, entry := range r.codes {
		if !entry.claimed && entry.code.Expired(now) {
			delete(r.codes, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored codes, claimed or not.
func (r *FakeCodeRepo) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.codes)
}

// FakeBearerRepo is an in-memory BearerRepo.
type FakeBearerRepo struct {
	tokens map[string]*token.BearerToken
	lock   sync.RWMutex

	// CreateErr, when set, is returned from every Create call.
	CreateErr error
}

func NewFakeBearerRepo() *FakeBearerRepo {
	return &FakeBearerRepo{
		tokens: make(map[string]*token.BearerToken),
	}
}

func (r *FakeBearerRepo) Create(_ context.Context, bt *token.BearerToken) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if bt == nil || bt.Token == "" {
		return autherrors.ErrInvalidRecord
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.tokens[bt.Token]; ok {
		return autherrors.ErrAlreadyExists
	}
	stored := *bt
	r.tokens[bt.Token] = &stored
	return nil
}

func (r *FakeBearerRepo) Get(_ context.Context, value string) (*token.BearerToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	bt, ok := r.tokens[value]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	b := *bt
	return &b, nil
}

// Len returns the number of issued tokens.
func (r *FakeBearerRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tokens)
}
