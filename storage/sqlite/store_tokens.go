package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/token"
)

// Create stores a bearer token. Tokens are never updated.
func (s TokenStore) Create(ctx context.Context, bt *token.BearerToken) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if bt == nil || bt.Token == "" {
		return autherrors.ErrInvalidRecord
	}
	var nickname sql.NullString
	if bt.Nickname != nil {
		nickname = sql.NullString{String: *bt.Nickname, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO bearer_tokens (token, nickname, client_id, scope, issued_at) VALUES (?, ?, ?, ?, ?)`,
		bt.Token, nickname, bt.ClientID, bt.Scope, formatTime(bt.IssuedAt),
	)
	if isUniqueViolation(err) {
		return autherrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert bearer token: %w", err)
	}
	return nil
}

// Get looks a token up by value.
func (s TokenStore) Get(ctx context.Context, value string) (*token.BearerToken, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var (
		bt       token.BearerToken
		nickname sql.NullString
		issuedAt string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT token, nickname, client_id, scope, issued_at FROM bearer_tokens WHERE token = ?`, value,
	).Scan(&bt.Token, &nickname, &bt.ClientID, &bt.Scope, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bearer token: %w", err)
	}
	if nickname.Valid {
		bt.Nickname = &nickname.String
	}
	if bt.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	return &bt, nil
}
