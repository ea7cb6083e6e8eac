package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// IssuedCode is the result of creating a verification code. The code value
// is handed to the caller for delivery and never logged.
type IssuedCode struct {
	ID        ulid.ULID `json:"id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerificationService orchestrates the lifecycle of verification codes
type VerificationService interface {
	// Create issues a new code for the user and type, superseding any prior
	// active code. Fails with *RateLimitedError or ErrQuotaExceeded when the
	// per-type creation limits are hit.
	Create(ctx context.Context, userID ulid.ULID, codeType VerificationType) (*IssuedCode, error)

	// Verify consumes the code when it matches the active one, otherwise
	// burns an attempt against it. Returns the consumed code id on success.
	Verify(ctx context.Context, userID ulid.ULID, code string, codeType VerificationType) (ulid.ULID, error)

	// Cleanup deletes used and long-expired codes in bounded batches,
	// returning the total number of rows removed.
	Cleanup(ctx context.Context) (int64, error)
}

// CodeGenerator produces fixed-length one-time codes from a secure random source
type CodeGenerator interface {
	Generate(length int, alphabet CodeAlphabet) (string, error)
}
