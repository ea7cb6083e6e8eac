package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// VerificationType categorizes the account operation a code gates
type VerificationType string

const (
	EmailVerification VerificationType = "email_verification"
	TwoFactorAuth     VerificationType = "two_factor_auth"
	PasswordReset     VerificationType = "password_reset"
	PasswordChange    VerificationType = "password_change"
	EmailChange       VerificationType = "email_change"
	AccountRecovery   VerificationType = "account_recovery"
	SensitiveAction   VerificationType = "sensitive_action"
)

// VerificationTypes lists every supported verification type
var VerificationTypes = []VerificationType{
	EmailVerification,
	TwoFactorAuth,
	PasswordReset,
	PasswordChange,
	EmailChange,
	AccountRecovery,
	SensitiveAction,
}

// Valid reports whether the type is one of the supported verification types
func (t VerificationType) Valid() bool {
	for _, vt := range VerificationTypes {
		if t == vt {
			return true
		}
	}
	return false
}

// CodeAlphabet selects the character set a code is drawn from
type CodeAlphabet string

const (
	AlphabetNumeric      CodeAlphabet = "numeric"
	AlphabetAlphanumeric CodeAlphabet = "alphanumeric"
)

// VerificationCode represents a short-lived one-time code bound to a user
// and a verification type. At most one row per (user, type) is active at a
// time; creation supersedes any prior active row.
type VerificationCode struct {
	ID          ulid.ULID        `json:"id"`
	UserID      ulid.ULID        `json:"user_id"`
	Type        VerificationType `json:"verification_type"`
	Code        string           `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	IsUsed      bool             `json:"is_used"`
	UsedAt      *time.Time       `json:"used_at,omitempty"`
}

// NewVerificationCode creates a new verification code expiring at
// now+expiresIn. The caller supplies the clock.
func NewVerificationCode(userID ulid.ULID, code string, codeType VerificationType, now time.Time, expiresIn time.Duration, maxAttempts int) *VerificationCode {
	return &VerificationCode{
		ID:          ulid.Make(),
		UserID:      userID,
		Type:        codeType,
		Code:        code,
		CreatedAt:   now,
		ExpiresAt:   now.Add(expiresIn),
		Attempts:    0,
		MaxAttempts: maxAttempts,
		IsUsed:      false,
	}
}

// IsExpired checks if the verification code is expired at the given instant
func (vc *VerificationCode) IsExpired(at time.Time) bool {
	return !vc.ExpiresAt.After(at)
}

// IsLocked reports whether the code was terminated by the attempt cap
func (vc *VerificationCode) IsLocked() bool {
	return vc.IsUsed && vc.Attempts >= vc.MaxAttempts
}

// IsActive reports whether the code can still be consumed at the given instant
func (vc *VerificationCode) IsActive(at time.Time) bool {
	return !vc.IsUsed && !vc.IsExpired(at)
}
