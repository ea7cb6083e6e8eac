package domain

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// UserDirectory resolves the current email of an account and vice versa.
// The token manager consumes it to bind redemptions to accounts; the full
// user aggregate lives outside this service.
type UserDirectory interface {
	// EmailByID returns the user's current email, or ErrUserNotFound
	EmailByID(ctx context.Context, id ulid.ULID) (string, error)

	// IDByEmail resolves an email to a user id, case-insensitively,
	// or ErrUserNotFound
	IDByEmail(ctx context.Context, email string) (ulid.ULID, error)
}
