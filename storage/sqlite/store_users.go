package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authz-server/users"
)

// Upsert creates or replaces a user keyed by nickname. A missing ID is generated.
func (s UserStore) Upsert(ctx context.Context, user *users.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if user == nil || strings.TrimSpace(user.Nickname) == "" {
		return fmt.Errorf("user nickname is required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (nickname, id, display_name, password_hash, date_joined)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(nickname) DO UPDATE SET
    id = excluded.id,
    display_name = excluded.display_name,
    password_hash = excluded.password_hash,
    date_joined = excluded.date_joined`,
		user.Nickname, user.ID, user.DisplayName, user.PasswordHash, formatTime(user.DateJoined),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetByNickname returns the user or users.ErrNotFound.
func (s UserStore) GetByNickname(ctx context.Context, nickname string) (*users.User, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var (
		user   users.User
		joined string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT nickname, id, display_name, password_hash, date_joined FROM users WHERE nickname = ?`, nickname,
	).Scan(&user.Nickname, &user.ID, &user.DisplayName, &user.PasswordHash, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.DateJoined, err = parseTime(joined); err != nil {
		return nil, fmt.Errorf("parse date_joined: %w", err)
	}
	return &user, nil
}
