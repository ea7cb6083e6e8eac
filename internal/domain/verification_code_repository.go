package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// VerificationCodeRepository defines the store operations for verification codes.
//
// ConsumeExact and RegisterFailedAttempt must be atomic: concurrent callers
// may never both observe the same pre-update attempts value. InUserTypeLock
// serializes the whole create sequence per (user, type).
type VerificationCodeRepository interface {
	// InUserTypeLock runs fn inside a transaction holding an exclusive lock
	// on the (userID, codeType) pair. The repository passed to fn is bound
	// to that transaction.
	InUserTypeLock(ctx context.Context, userID ulid.ULID, codeType VerificationType, fn func(VerificationCodeRepository) error) error

	// Insert stores a new verification code row
	Insert(ctx context.Context, code *VerificationCode) error

	// LatestCreatedAt returns the creation time of the most recent code for
	// the user and type, in any state. ok is false when no row exists.
	LatestCreatedAt(ctx context.Context, userID ulid.ULID, codeType VerificationType) (createdAt time.Time, ok bool, err error)

	// CountCreatedSince counts codes created for the user and type at or
	// after the given instant, in any state.
	CountCreatedSince(ctx context.Context, userID ulid.ULID, codeType VerificationType, since time.Time) (int, error)

	// SupersedeActive marks every active code for the user and type as used
	SupersedeActive(ctx context.Context, userID ulid.ULID, codeType VerificationType, now time.Time) error

	// ActiveCodeExists reports whether any user currently holds an active
	// code with this value for the given type.
	ActiveCodeExists(ctx context.Context, codeType VerificationType, code string, now time.Time) (bool, error)

	// ConsumeExact atomically consumes the active code matching (userID,
	// codeType, code): increments attempts, marks it used and returns its id.
	// ok is false when no active row matches.
	ConsumeExact(ctx context.Context, userID ulid.ULID, codeType VerificationType, code string, now time.Time) (id ulid.ULID, ok bool, err error)

	// FindByUserTypeAndCode returns the newest row matching (userID,
	// codeType, code) in any state, or nil when none exists.
	FindByUserTypeAndCode(ctx context.Context, userID ulid.ULID, codeType VerificationType, code string) (*VerificationCode, error)

	// RegisterFailedAttempt atomically increments the attempt counter of the
	// currently active code for the user and type, locking it when the cap
	// is reached. ok is false when no active code exists.
	RegisterFailedAttempt(ctx context.Context, userID ulid.ULID, codeType VerificationType, now time.Time) (attempts, maxAttempts int, ok bool, err error)

	// DeleteTerminalBatch deletes up to limit rows that are used or expired
	// before the cutoff, returning the number of rows removed.
	DeleteTerminalBatch(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
