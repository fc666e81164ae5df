package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side identity record behind a login. Logout deletes
// it, which kills the matching token before its own expiry.
type Session struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store is a key-value session store with explicit expiry. The production
// implementation is redis; tests use the in-memory one.
type Store interface {
	Create(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// New mints a session with a fresh opaque id.
func New(userID, username, role string) Session {
	return Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Role:     role,
	}
}
