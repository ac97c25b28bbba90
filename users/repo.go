package users

import "context"

type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	GetByNickname(ctx context.Context, nickname string) (*User, error)
}
