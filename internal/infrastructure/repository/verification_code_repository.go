package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/database"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// VerificationCodeRepository persists verification codes in PostgreSQL.
// The mutating queries are single statements so attempt accounting and
// consumption stay atomic without application-level read-modify-write.
type VerificationCodeRepository struct {
	db     database.Querier
	pg     *database.Postgres
	logger *zap.Logger
}

func NewVerificationCodeRepository(pg *database.Postgres, logger *zap.Logger) *VerificationCodeRepository {
	return &VerificationCodeRepository{
		db:     pg,
		pg:     pg,
		logger: logger,
	}
}

// InUserTypeLock serializes the create sequence per (user, type) with a
// transaction-scoped advisory lock.
func (r *VerificationCodeRepository) InUserTypeLock(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, fn func(domain.VerificationCodeRepository) error) error {
	if r.pg == nil {
		// Already transaction-bound; the lock is held.
		return fn(r)
	}
	return r.pg.RunInKeyLock(ctx, userID.String(), string(codeType), func(tx pgx.Tx) error {
		return fn(&VerificationCodeRepository{db: tx, logger: r.logger})
	})
}

func (r *VerificationCodeRepository) Insert(ctx context.Context, code *domain.VerificationCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO verification_codes (id, user_id, verification_type, code, created_at, expires_at, attempts, max_attempts, is_used, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, code.ID.String(), code.UserID.String(), code.Type, code.Code,
		code.CreatedAt, code.ExpiresAt, code.Attempts, code.MaxAttempts, code.IsUsed, code.UsedAt)
	if err != nil {
		r.logger.Error("failed to insert verification code", zap.Error(err))
	}
	return err
}

func (r *VerificationCodeRepository) LatestCreatedAt(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType) (time.Time, bool, error) {
	var createdAt time.Time
	err := r.db.QueryRow(ctx, `
		SELECT created_at
		FROM verification_codes
		WHERE user_id = $1 AND verification_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID.String(), codeType).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		r.logger.Error("failed to load latest code creation time", zap.Error(err))
		return time.Time{}, false, err
	}
	return createdAt, true, nil
}

func (r *VerificationCodeRepository) CountCreatedSince(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE user_id = $1 AND verification_type = $2 AND created_at >= $3
	`, userID.String(), codeType, since).Scan(&count)
	if err != nil {
		r.logger.Error("failed to count recent verification codes", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *VerificationCodeRepository) SupersedeActive(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE verification_codes
		SET is_used = TRUE, used_at = $3
		WHERE user_id = $1 AND verification_type = $2 AND is_used = FALSE AND expires_at > $3
	`, userID.String(), codeType, now)
	if err != nil {
		r.logger.Error("failed to supersede active verification codes", zap.Error(err))
	}
	return err
}

func (r *VerificationCodeRepository) ActiveCodeExists(ctx context.Context, codeType domain.VerificationType, code string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM verification_codes
			WHERE verification_type = $1 AND code = $2 AND is_used = FALSE AND expires_at > $3
		)
	`, codeType, code, now).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check active code uniqueness", zap.Error(err))
		return false, err
	}
	return exists, nil
}

// ConsumeExact is a single compare-and-set statement: only a row that is
// still unused and unexpired at execution time can be consumed, so a second
// submission of the same code can never succeed.
func (r *VerificationCodeRepository) ConsumeExact(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, code string, now time.Time) (ulid.ULID, bool, error) {
	var id ulid.ULID
	err := r.db.QueryRow(ctx, `
		UPDATE verification_codes
		SET attempts = attempts + 1, is_used = TRUE, used_at = $4
		WHERE user_id = $1 AND verification_type = $2 AND code = $3
		  AND is_used = FALSE AND expires_at > $4
		RETURNING id
	`, userID.String(), codeType, code, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, false, nil
	}
	if err != nil {
		r.logger.Error("failed to consume verification code", zap.Error(err))
		return ulid.ULID{}, false, err
	}
	return id, true, nil
}

func (r *VerificationCodeRepository) FindByUserTypeAndCode(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, code string) (*domain.VerificationCode, error) {
	verificationCode := &domain.VerificationCode{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, verification_type, code, created_at, expires_at, attempts, max_attempts, is_used, used_at
		FROM verification_codes
		WHERE user_id = $1 AND verification_type = $2 AND code = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID.String(), codeType, code).Scan(
		&verificationCode.ID,
		&verificationCode.UserID,
		&verificationCode.Type,
		&verificationCode.Code,
		&verificationCode.CreatedAt,
		&verificationCode.ExpiresAt,
		&verificationCode.Attempts,
		&verificationCode.MaxAttempts,
		&verificationCode.IsUsed,
		&verificationCode.UsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to find verification code", zap.Error(err))
		return nil, err
	}
	return verificationCode, nil
}

// RegisterFailedAttempt increments the attempt counter of the active code in
// one statement, locking the row when the cap is reached. The row lock taken
// by UPDATE makes concurrent wrong guesses serialize instead of both reading
// the same counter value.
func (r *VerificationCodeRepository) RegisterFailedAttempt(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType, now time.Time) (int, int, bool, error) {
	var attempts, maxAttempts int
	err := r.db.QueryRow(ctx, `
		UPDATE verification_codes
		SET attempts = attempts + 1,
		    is_used  = CASE WHEN attempts + 1 >= max_attempts THEN TRUE ELSE is_used END,
		    used_at  = CASE WHEN attempts + 1 >= max_attempts THEN $3 ELSE used_at END
		WHERE id = (
			SELECT id FROM verification_codes
			WHERE user_id = $1 AND verification_type = $2 AND is_used = FALSE AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING attempts, max_attempts
	`, userID.String(), codeType, now).Scan(&attempts, &maxAttempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		r.logger.Error("failed to register verification attempt", zap.Error(err))
		return 0, 0, false, err
	}
	return attempts, maxAttempts, true, nil
}

// DeleteTerminalBatch only ever removes rows that can no longer transition,
// so it is safe to run concurrently with live traffic.
func (r *VerificationCodeRepository) DeleteTerminalBatch(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM verification_codes
		WHERE id IN (
			SELECT id FROM verification_codes
			WHERE expires_at <= $1 OR is_used = TRUE
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		r.logger.Error("failed to delete terminal verification codes", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
