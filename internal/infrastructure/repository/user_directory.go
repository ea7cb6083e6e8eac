package repository

import (
	"context"
	"errors"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/database"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// UserDirectory resolves account emails for token binding. It reads the
// users table owned by the account service; nothing here writes to it.
type UserDirectory struct {
	db     *database.Postgres
	logger *zap.Logger
}

func NewUserDirectory(db *database.Postgres, logger *zap.Logger) *UserDirectory {
	return &UserDirectory{
		db:     db,
		logger: logger,
	}
}

func (d *UserDirectory) EmailByID(ctx context.Context, id ulid.ULID) (string, error) {
	var email string
	err := d.db.QueryRow(ctx, `
		SELECT email FROM users WHERE id = $1
	`, id.String()).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		d.logger.Error("failed to resolve user email", zap.Error(err))
		return "", err
	}
	return email, nil
}

func (d *UserDirectory) IDByEmail(ctx context.Context, email string) (ulid.ULID, error) {
	var id ulid.ULID
	err := d.db.QueryRow(ctx, `
		SELECT id FROM users WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, domain.ErrUserNotFound
	}
	if err != nil {
		d.logger.Error("failed to resolve user id", zap.Error(err))
		return ulid.ULID{}, err
	}
	return id, nil
}
