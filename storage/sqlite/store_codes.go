package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/token"
)

// Create stores a new, unclaimed authorization code.
func (s CodeStore) Create(ctx context.Context, code *token.AuthorizationCode) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if code == nil || code.Code == "" {
		return autherrors.ErrInvalidRecord
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO authorization_codes (code, nickname, client_id, redirect_uri, scope, issued_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.Code, code.Nickname, code.ClientID, code.RedirectURI, code.Scope,
		formatTime(code.IssuedAt), unixNanos(code.ExpiresAt),
	)
	if isUniqueViolation(err) {
		return autherrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert authorization code: %w", err)
	}
	return nil
}

// Claim marks the code redeemed with a single conditional update, so of two
// concurrent claims only one sees a changed row.
func (s CodeStore) Claim(ctx context.Context, code string, now time.Time) (*token.AuthorizationCode, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
UPDATE authorization_codes SET claimed = 1
WHERE code = ? AND claimed = 0 AND (expires_at = 0 OR expires_at > ?)
RETURNING code, nickname, client_id, redirect_uri, scope, issued_at, expires_at`,
		code, now.UnixNano(),
	)
	ac, err := scanCode(row)
	if err == nil {
		return ac, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim authorization code: %w", err)
	}

	// Nothing updated: work out why
	var claimed int
	var expiresAt int64
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT claimed, expires_at FROM authorization_codes WHERE code = ?`, code,
	).Scan(&claimed, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, autherrors.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("inspect authorization code: %w", err)
	case claimed != 0:
		return nil, autherrors.ErrCodeAlreadyClaimed
	default:
		if _, err := s.sqlDB.ExecContext(ctx,
			`DELETE FROM authorization_codes WHERE code = ? AND claimed = 0`, code); err != nil {
			return nil, fmt.Errorf("delete expired authorization code: %w", err)
		}
		return nil, autherrors.ErrCodeExpired
	}
}

// Release returns a claimed code to circulation.
func (s CodeStore) Release(ctx context.Context, code string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE authorization_codes SET claimed = 0 WHERE code = ? AND claimed = 1`, code)
	if err != nil {
		return fmt.Errorf("release authorization code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release authorization code: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM authorization_codes WHERE code = ?`, code).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return autherrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("inspect authorization code: %w", err)
		}
		return autherrors.ErrCodeNotClaimed
	}
	return nil
}

// Delete removes the code. Deleting an absent code is not an error.
func (s CodeStore) Delete(ctx context.Context, code string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM authorization_codes WHERE code = ?`, code); err != nil {
		return fmt.Errorf("delete authorization code: %w", err)
	}
	return nil
}

// Sweep removes unclaimed codes that have expired at now.
func (s CodeStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE claimed = 0 AND expires_at != 0 AND expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep authorization codes: %w", err)
	}
	return res.RowsAffected()
}

func scanCode(row scanner) (*token.AuthorizationCode, error) {
	var (
		ac        token.AuthorizationCode
		issuedAt  string
		expiresAt int64
	)
	if err := row.Scan(&ac.Code, &ac.Nickname, &ac.ClientID, &ac.RedirectURI, &ac.Scope, &issuedAt, &expiresAt); err != nil {
		return nil, err
	}
	var err error
	if ac.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	ac.ExpiresAt = fromUnixNanos(expiresAt)
	return &ac, nil
}
