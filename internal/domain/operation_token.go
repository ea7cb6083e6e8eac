package domain

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// OperationType scopes an operation token to exactly one sensitive operation
type OperationType string

const (
	OperationEmailVerification OperationType = "email_verification"
	OperationPasswordReset     OperationType = "password_reset"
	OperationPasswordChange    OperationType = "password_change"
	OperationEmailChange       OperationType = "email_change"
	OperationAccountRecovery   OperationType = "account_recovery"
	OperationSensitiveAction   OperationType = "sensitive_action"
)

// OperationClaims is the signed payload of an operation token
type OperationClaims struct {
	Email     string        `json:"email"`
	Operation OperationType `json:"operation_type"`
	jwt.RegisteredClaims
}

// UsedOperationToken is the ledger record written when a token is redeemed.
// A jti appears at most once, ever; the row is created only at redemption.
type UsedOperationToken struct {
	JTI       string        `json:"jti"`
	UserID    *ulid.ULID    `json:"user_id,omitempty"`
	Operation OperationType `json:"operation_type"`
	Email     string        `json:"email"`
	UsedAt    time.Time     `json:"used_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// UsedOperationTokenLedger records redeemed token ids. Insert must be an
// unconditional insert backed by a uniqueness constraint so that at most one
// of two concurrent redemptions of the same jti succeeds.
type UsedOperationTokenLedger interface {
	// Insert records a redemption, failing with ErrTokenAlreadyUsed when the
	// jti was recorded before.
	Insert(ctx context.Context, token *UsedOperationToken) error

	// Exists reports whether the jti has already been redeemed
	Exists(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes up to limit ledger rows whose token expiry
	// passed before the cutoff, returning the number of rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// OperationTokenService issues and redeems single-use operation tokens
type OperationTokenService interface {
	// Generate signs a short-lived token binding the lowercased email to the
	// operation type. Nothing is persisted at issuance.
	Generate(email string, operation OperationType) (string, error)

	// Verify validates the token for the expected operation and spends it in
	// the ledger, returning the verified email.
	Verify(ctx context.Context, token string, expected OperationType) (string, error)

	// VerifyForUser additionally requires the token's email to match the
	// given user's current email, for authenticated redemption paths.
	VerifyForUser(ctx context.Context, token string, expected OperationType, userID ulid.ULID) (string, error)
}
