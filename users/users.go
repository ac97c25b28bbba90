package users

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned by repositories when no user has the requested nickname.
var ErrNotFound = errors.New("user not found")

// User is a local account: a resource owner who can authenticate with a
// nickname and password.
type User struct {
	ID           string    `json:"id,omitempty"`           // Unique identifier for the user
	Nickname     string    `json:"nickname"`               // Login name, unique
	DisplayName  string    `json:"display_name,omitempty"` // Name shown on the consent screen
	PasswordHash string    `json:"-"`                      // Hashed version of the user's password - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"`  // Date and time when the user registered
}

// CredentialChecker verifies a nickname and password pair. A nil user with a
// nil error means the credentials did not match.
type CredentialChecker interface {
	Check(ctx context.Context, nickname, password string) (*User, error)
}

// PasswordChecker checks credentials against bcrypt hashes held in a UserRepo.
type PasswordChecker struct {
	repo UserRepo
}

var _ CredentialChecker = (*PasswordChecker)(nil)

func NewPasswordChecker(repo UserRepo) *PasswordChecker {
	return &PasswordChecker{repo: repo}
}

// Check returns the matching user, or nil when the nickname is unknown or the
// password is wrong. Repository failures other than a miss are returned.
func (pc *PasswordChecker) Check(ctx context.Context, nickname, password string) (*User, error) {
	user, err := pc.repo.GetByNickname(ctx, nickname)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
