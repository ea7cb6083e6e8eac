package domain

import (
	"context"
	"time"
)

// EmailSender delivers an issued code to the account's address. Transport
// lives outside this service; callers of VerificationService.Create are
// responsible for invoking it.
type EmailSender interface {
	SendVerificationCode(ctx context.Context, email, code string, codeType VerificationType, expiresAt time.Time) error
}

// PasswordHasher is the external hash/verify contract consumed by the
// operations this subsystem gates
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

// BreachChecker is the external k-anonymity lookup collaborator used by
// password-change flows. Implementations live outside this service.
type BreachChecker interface {
	// IsBreached reports whether the password appears in a known breach corpus
	IsBreached(ctx context.Context, password string) (bool, error)
}
