package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded is returned when the hourly creation quota for a
	// (user, type) pair is exhausted
	ErrQuotaExceeded = errors.New("verification code hourly quota exceeded")

	// ErrCodeExpired is returned when the submitted code exists but its
	// validity window has passed
	ErrCodeExpired = errors.New("verification code expired")

	// ErrCodeAlreadyUsed is returned when the submitted code was consumed
	// or superseded before
	ErrCodeAlreadyUsed = errors.New("verification code already used")

	// ErrMaxAttemptsExceeded is returned when the attempt cap for the active
	// code has been reached
	ErrMaxAttemptsExceeded = errors.New("verification code attempts exceeded")

	// ErrUnsupportedVerificationType is returned for types with no configured policy
	ErrUnsupportedVerificationType = errors.New("unsupported verification type")

	// ErrInvalidToken is returned when an operation token fails structural
	// or cryptographic validation
	ErrInvalidToken = errors.New("invalid operation token")

	// ErrTokenExpired is returned when an operation token is past its expiry
	ErrTokenExpired = errors.New("operation token expired")

	// ErrWrongOperationType is returned when a token is redeemed against a
	// different operation than it was minted for
	ErrWrongOperationType = errors.New("operation token scoped to a different operation")

	// ErrTokenAlreadyUsed is returned when the token's jti is already in the ledger
	ErrTokenAlreadyUsed = errors.New("operation token already used")

	// ErrTokenUserMismatch is returned when an authenticated redemption
	// presents a token minted for another account's email
	ErrTokenUserMismatch = errors.New("operation token issued for another account")

	// ErrUserNotFound is returned when the user directory cannot resolve an account
	ErrUserNotFound = errors.New("user not found")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = errors.New("internal server error")
)

// RateLimitedError is returned when a code is requested again before the
// per-type rate window has elapsed
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("verification code rate limited, retry in %ds", int(e.RetryAfter.Seconds()))
}

// InvalidCodeError is returned when the submitted code does not match the
// active one. AttemptsRemaining is nil when no code is active at all.
type InvalidCodeError struct {
	AttemptsRemaining *int
}

func (e *InvalidCodeError) Error() string {
	if e.AttemptsRemaining == nil {
		return "invalid verification code"
	}
	return fmt.Sprintf("invalid verification code, %d attempts remaining", *e.AttemptsRemaining)
}
