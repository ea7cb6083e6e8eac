package application

import (
	"context"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/config"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// maxCollisionRerolls bounds how often Create re-draws a code that collides
// with another active code of the same type.
const maxCollisionRerolls = 5

// VerificationService implements domain.VerificationService. All timestamps
// are UTC; every creation and verification runs as one atomic unit against
// the repository (see the repository contract).
type VerificationService struct {
	codes     domain.VerificationCodeRepository
	generator domain.CodeGenerator
	config    *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewVerificationService(codes domain.VerificationCodeRepository, generator domain.CodeGenerator, cfg *config.Config, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		codes:     codes,
		generator: generator,
		config:    cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new code for the user and type. The rate check, quota
// check, supersession and insert run under a per-(user, type) lock so two
// concurrent requests can never both create an active code.
func (s *VerificationService) Create(ctx context.Context, userID ulid.ULID, codeType domain.VerificationType) (*domain.IssuedCode, error) {
	policy, ok := s.config.Policy(codeType)
	if !ok {
		return nil, domain.ErrUnsupportedVerificationType
	}

	var issued *domain.IssuedCode
	err := s.codes.InUserTypeLock(ctx, userID, codeType, func(codes domain.VerificationCodeRepository) error {
		now := s.now()

		lastCreated, exists, err := codes.LatestCreatedAt(ctx, userID, codeType)
		if err != nil {
			return domain.ErrInternal
		}
		if exists {
			if elapsed := now.Sub(lastCreated); elapsed < policy.RateLimit {
				return &domain.RateLimitedError{RetryAfter: policy.RateLimit - elapsed}
			}
		}

		if policy.HourlyLimit > 0 {
			count, err := codes.CountCreatedSince(ctx, userID, codeType, now.Add(-time.Hour))
			if err != nil {
				return domain.ErrInternal
			}
			if count >= policy.HourlyLimit {
				return domain.ErrQuotaExceeded
			}
		}

		if err := codes.SupersedeActive(ctx, userID, codeType, now); err != nil {
			return domain.ErrInternal
		}

		code, err := s.generateUnique(ctx, codes, codeType, policy, now)
		if err != nil {
			return err
		}

		verificationCode := domain.NewVerificationCode(userID, code, codeType, now, policy.Expiration, policy.MaxAttempts)
		if err := codes.Insert(ctx, verificationCode); err != nil {
			return domain.ErrInternal
		}

		issued = &domain.IssuedCode{
			ID:        verificationCode.ID,
			Code:      verificationCode.Code,
			ExpiresAt: verificationCode.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification code created",
		zap.String("user_id", userID.String()),
		zap.String("verification_type", string(codeType)),
		zap.Time("expires_at", issued.ExpiresAt))
	return issued, nil
}

// generateUnique draws codes until one does not collide with any currently
// active code of the same type, across all users.
func (s *VerificationService) generateUnique(ctx context.Context, codes domain.VerificationCodeRepository, codeType domain.VerificationType, policy config.CodePolicy, now time.Time) (string, error) {
	for i := 0; i < maxCollisionRerolls; i++ {
		code, err := s.generator.Generate(policy.CodeLength, policy.CodeAlphabet)
		if err != nil {
			s.logger.Error("failed to generate verification code", zap.Error(err))
			return "", domain.ErrInternal
		}
		exists, err := codes.ActiveCodeExists(ctx, codeType, code, now)
		if err != nil {
			return "", domain.ErrInternal
		}
		if !exists {
			return code, nil
		}
	}
	s.logger.Error("verification code space exhausted",
		zap.String("verification_type", string(codeType)),
		zap.Int("rerolls", maxCollisionRerolls))
	return "", domain.ErrInternal
}

// Verify consumes the matching active code or burns an attempt against the
// currently active one. The decision order is: exact active match, then
// terminal states of the submitted code, then attempt accounting.
func (s *VerificationService) Verify(ctx context.Context, userID ulid.ULID, code string, codeType domain.VerificationType) (ulid.ULID, error) {
	if _, ok := s.config.Policy(codeType); !ok {
		return ulid.ULID{}, domain.ErrUnsupportedVerificationType
	}
	now := s.now()

	id, consumed, err := s.codes.ConsumeExact(ctx, userID, codeType, code, now)
	if err != nil {
		return ulid.ULID{}, domain.ErrInternal
	}
	if consumed {
		s.logger.Info("verification code consumed",
			zap.String("user_id", userID.String()),
			zap.String("verification_type", string(codeType)))
		return id, nil
	}

	// The submitted code exists but is no longer consumable: report the most
	// specific terminal state.
	existing, err := s.codes.FindByUserTypeAndCode(ctx, userID, codeType, code)
	if err != nil {
		return ulid.ULID{}, domain.ErrInternal
	}
	if existing != nil {
		switch {
		case existing.IsLocked():
			return ulid.ULID{}, domain.ErrMaxAttemptsExceeded
		case existing.IsUsed:
			return ulid.ULID{}, domain.ErrCodeAlreadyUsed
		case existing.IsExpired(now):
			return ulid.ULID{}, domain.ErrCodeExpired
		}
	}

	// Wrong code: burn an attempt against whatever code is currently active.
	attempts, maxAttempts, active, err := s.codes.RegisterFailedAttempt(ctx, userID, codeType, now)
	if err != nil {
		return ulid.ULID{}, domain.ErrInternal
	}
	if !active {
		return ulid.ULID{}, &domain.InvalidCodeError{}
	}
	if attempts >= maxAttempts {
		s.logger.Warn("verification code locked",
			zap.String("user_id", userID.String()),
			zap.String("verification_type", string(codeType)),
			zap.Int("attempts", attempts))
		return ulid.ULID{}, domain.ErrMaxAttemptsExceeded
	}
	remaining := maxAttempts - attempts
	return ulid.ULID{}, &domain.InvalidCodeError{AttemptsRemaining: &remaining}
}

// Cleanup deletes used and long-expired codes in bounded batches. Each batch
// commits independently, so an interrupted sweep resumes on the next pass.
func (s *VerificationService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.CleanupRetention)
	batchSize := s.config.CleanupBatchSize

	var total int64
	for {
		deleted, err := s.codes.DeleteTerminalBatch(ctx, cutoff, batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < int64(batchSize) {
			break
		}
	}
	if total > 0 {
		s.logger.Info("verification codes purged", zap.Int64("deleted", total))
	}
	return total, nil
}
