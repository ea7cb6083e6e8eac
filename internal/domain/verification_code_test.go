package domain

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestNewVerificationCode(t *testing.T) {
	userID := ulid.Make()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	vc := NewVerificationCode(userID, "483920", EmailVerification, now, 15*time.Minute, 3)

	assert.Equal(t, userID, vc.UserID)
	assert.Equal(t, "483920", vc.Code)
	assert.Equal(t, EmailVerification, vc.Type)
	assert.Equal(t, 0, vc.Attempts)
	assert.Equal(t, 3, vc.MaxAttempts)
	assert.False(t, vc.IsUsed)
	assert.Nil(t, vc.UsedAt)
	assert.Equal(t, now, vc.CreatedAt)
	assert.Equal(t, now.Add(15*time.Minute), vc.ExpiresAt)
}

func TestVerificationCode_States(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh code is active", func(t *testing.T) {
		vc := &VerificationCode{ExpiresAt: now.Add(time.Minute), MaxAttempts: 3}
		assert.True(t, vc.IsActive(now))
		assert.False(t, vc.IsExpired(now))
		assert.False(t, vc.IsLocked())
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		vc := &VerificationCode{ExpiresAt: now}
		assert.True(t, vc.IsExpired(now))
		assert.False(t, vc.IsActive(now))

		vc.ExpiresAt = now.Add(time.Nanosecond)
		assert.False(t, vc.IsExpired(now))
	})

	t.Run("used code is inactive but not locked below the cap", func(t *testing.T) {
		vc := &VerificationCode{ExpiresAt: now.Add(time.Minute), Attempts: 1, MaxAttempts: 3, IsUsed: true}
		assert.False(t, vc.IsActive(now))
		assert.False(t, vc.IsLocked())
	})

	t.Run("locked when used with attempts at the cap", func(t *testing.T) {
		vc := &VerificationCode{ExpiresAt: now.Add(time.Minute), Attempts: 3, MaxAttempts: 3, IsUsed: true}
		assert.True(t, vc.IsLocked())
	})
}

func TestVerificationType_Valid(t *testing.T) {
	for _, vt := range VerificationTypes {
		assert.True(t, vt.Valid(), "%s should be valid", vt)
	}
	assert.False(t, VerificationType("carrier_pigeon").Valid())
	assert.False(t, VerificationType("").Valid())
}
