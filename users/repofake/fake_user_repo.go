package fakeuserrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authz-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]*users.User // nickname to user
	lock  sync.RWMutex

	// GetErr, when set, is returned from every GetByNickname call.
	GetErr error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]*users.User),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	if user == nil || user.Nickname == "" {
		return errors.New("user nickname is required")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.Nickname] = &stored
	return nil
}

func (ur *FakeUserRepo) GetByNickname(_ context.Context, nickname string) (*users.User, error) {
	if ur.GetErr != nil {
		return nil, ur.GetErr
	}
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	user, ok := ur.users[nickname]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := *user
	return &u, nil
}
