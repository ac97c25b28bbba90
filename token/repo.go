package token

import (
	"context"
	"time"
)

// CodeRepo stores authorization codes.
//
// Redemption is a three step protocol: Claim atomically takes the code out of
// circulation, then the caller either Deletes it (token issued) or Releases it
// (redemption failed, the code stays valid). Two concurrent Claims of the same
// code can never both succeed.
type CodeRepo interface {
	Create(ctx context.Context, code *AuthorizationCode) error
	Claim(ctx context.Context, code string, now time.Time) (*AuthorizationCode, error)
	Release(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// BearerRepo stores issued bearer tokens.
type BearerRepo interface {
	Create(ctx context.Context, token *BearerToken) error
	Get(ctx context.Context, token string) (*BearerToken, error)
}
