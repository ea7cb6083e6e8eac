package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/database"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// UsedTokenRepository is the persisted ledger of redeemed operation tokens.
// Redemption is an unconditional insert against the jti primary key, never
// check-then-insert, so two concurrent redemptions cannot both succeed.
type UsedTokenRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewUsedTokenRepository(db *database.Postgres, logger *zap.Logger) *UsedTokenRepository {
	return &UsedTokenRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UsedTokenRepository) Insert(ctx context.Context, token *domain.UsedOperationToken) error {
	var userID *string
	if token.UserID != nil {
		s := token.UserID.String()
		userID = &s
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO used_operation_tokens (jti, user_id, operation_type, email, used_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.JTI, userID, token.Operation, token.Email, token.UsedAt, token.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrTokenAlreadyUsed
		}
		r.logger.Error("failed to record used operation token", zap.Error(err))
		return err
	}
	return nil
}

func (r *UsedTokenRepository) Exists(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM used_operation_tokens WHERE jti = $1)
	`, jti).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to look up used operation token", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func (r *UsedTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM used_operation_tokens
		WHERE jti IN (
			SELECT jti FROM used_operation_tokens
			WHERE expires_at <= $1
			LIMIT $2
		)
	`, cutoff, limit)
	if err != nil {
		r.logger.Error("failed to delete expired used tokens", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
