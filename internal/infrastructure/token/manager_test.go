package token

import (
	"context"
	"testing"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/config"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockLedger is a mock implementation of UsedOperationTokenLedger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Insert(ctx context.Context, token *domain.UsedOperationToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockLedger) Exists(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserDirectory is a mock implementation of UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) EmailByID(ctx context.Context, id ulid.ULID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockUserDirectory) IDByEmail(ctx context.Context, email string) (ulid.ULID, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(ulid.ULID), args.Error(1)
}

func managerConfig() *config.Config {
	return &config.Config{
		TokenSecret: "unit-test-secret",
		TokenIssuer: "zentropy-operations",
		TokenTTL:    10 * time.Minute,
	}
}

func newTestManager(t *testing.T, ledger domain.UsedOperationTokenLedger, users domain.UserDirectory) *Manager {
	t.Helper()
	m, err := NewManager(managerConfig(), ledger, users, zap.NewNop())
	assert.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		cfg := managerConfig()
		cfg.TokenSecret = ""
		_, err := NewManager(cfg, nil, nil, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestManager_Verify(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("round trip lowercases the email and spends the token", func(t *testing.T) {
		ledger := new(MockLedger)
		users := new(MockUserDirectory)
		m := newTestManager(t, ledger, users)

		signed, err := m.Generate("Alice@Example.COM", domain.OperationPasswordReset)
		assert.NoError(t, err)
		assert.NotEmpty(t, signed)

		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)
		users.On("IDByEmail", ctx, "alice@example.com").Return(userID, nil)
		ledger.On("Insert", ctx, mock.MatchedBy(func(tok *domain.UsedOperationToken) bool {
			return tok.Email == "alice@example.com" &&
				tok.Operation == domain.OperationPasswordReset &&
				tok.UserID != nil && *tok.UserID == userID &&
				tok.JTI != ""
		})).Return(nil)

		email, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.NoError(t, err)
		assert.Equal(t, "alice@example.com", email)
		ledger.AssertExpectations(t)
	})

	t.Run("unknown email still spends the token", func(t *testing.T) {
		ledger := new(MockLedger)
		users := new(MockUserDirectory)
		m := newTestManager(t, ledger, users)

		signed, _ := m.Generate("ghost@example.com", domain.OperationPasswordReset)

		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)
		users.On("IDByEmail", ctx, "ghost@example.com").Return(ulid.ULID{}, domain.ErrUserNotFound)
		ledger.On("Insert", ctx, mock.MatchedBy(func(tok *domain.UsedOperationToken) bool {
			return tok.UserID == nil && tok.Email == "ghost@example.com"
		})).Return(nil)

		email, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.NoError(t, err)
		assert.Equal(t, "ghost@example.com", email)
		ledger.AssertExpectations(t)
	})

	t.Run("wrong operation scope", func(t *testing.T) {
		ledger := new(MockLedger)
		m := newTestManager(t, ledger, nil)

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)

		_, err := m.Verify(ctx, signed, domain.OperationEmailChange)
		assert.ErrorIs(t, err, domain.ErrWrongOperationType)
		ledger.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	})

	t.Run("expired token", func(t *testing.T) {
		m := newTestManager(t, nil, nil)
		issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return issuedAt }

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)

		m.now = func() time.Time { return issuedAt.Add(11 * time.Minute) }
		_, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrTokenExpired)
	})

	t.Run("tampered token", func(t *testing.T) {
		m := newTestManager(t, nil, nil)

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)
		tampered := signed[:len(signed)-2] + "xx"

		_, err := m.Verify(ctx, tampered, domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		other := managerConfig()
		other.TokenSecret = "some-other-secret"
		foreign, err := NewManager(other, nil, nil, zap.NewNop())
		assert.NoError(t, err)
		signed, _ := foreign.Generate("alice@example.com", domain.OperationPasswordReset)

		m := newTestManager(t, nil, nil)
		_, err = m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		m := newTestManager(t, nil, nil)
		_, err := m.Verify(ctx, "not.a.jwt", domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("already redeemed jti", func(t *testing.T) {
		ledger := new(MockLedger)
		m := newTestManager(t, ledger, nil)

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)

		ledger.On("Exists", ctx, mock.Anything).Return(true, nil)
		_, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrTokenAlreadyUsed)
		ledger.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("concurrent redemption loses the insert race", func(t *testing.T) {
		ledger := new(MockLedger)
		m := newTestManager(t, ledger, nil)

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)

		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)
		ledger.On("Insert", ctx, mock.Anything).Return(domain.ErrTokenAlreadyUsed)

		_, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
		assert.ErrorIs(t, err, domain.ErrTokenAlreadyUsed)
	})

	t.Run("nil ledger leaves tokens replayable", func(t *testing.T) {
		m := newTestManager(t, nil, nil)

		signed, _ := m.Generate("alice@example.com", domain.OperationPasswordReset)

		for i := 0; i < 2; i++ {
			email, err := m.Verify(ctx, signed, domain.OperationPasswordReset)
			assert.NoError(t, err)
			assert.Equal(t, "alice@example.com", email)
		}
	})
}

func TestManager_VerifyForUser(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()

	t.Run("matches the account email case-insensitively", func(t *testing.T) {
		ledger := new(MockLedger)
		users := new(MockUserDirectory)
		m := newTestManager(t, ledger, users)

		signed, _ := m.Generate("Alice@Example.com", domain.OperationEmailChange)

		users.On("EmailByID", ctx, userID).Return("ALICE@example.com", nil)
		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)
		ledger.On("Insert", ctx, mock.MatchedBy(func(tok *domain.UsedOperationToken) bool {
			return tok.UserID != nil && *tok.UserID == userID
		})).Return(nil)

		email, err := m.VerifyForUser(ctx, signed, domain.OperationEmailChange, userID)
		assert.NoError(t, err)
		assert.Equal(t, "alice@example.com", email)
	})

	t.Run("token minted for another account", func(t *testing.T) {
		ledger := new(MockLedger)
		users := new(MockUserDirectory)
		m := newTestManager(t, ledger, users)

		signed, _ := m.Generate("mallory@example.com", domain.OperationEmailChange)

		users.On("EmailByID", ctx, userID).Return("alice@example.com", nil)
		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)

		_, err := m.VerifyForUser(ctx, signed, domain.OperationEmailChange, userID)
		assert.ErrorIs(t, err, domain.ErrTokenUserMismatch)
		ledger.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		ledger := new(MockLedger)
		users := new(MockUserDirectory)
		m := newTestManager(t, ledger, users)

		signed, _ := m.Generate("alice@example.com", domain.OperationEmailChange)

		users.On("EmailByID", ctx, userID).Return("", domain.ErrUserNotFound)
		ledger.On("Exists", ctx, mock.Anything).Return(false, nil)

		_, err := m.VerifyForUser(ctx, signed, domain.OperationEmailChange, userID)
		assert.ErrorIs(t, err, domain.ErrTokenUserMismatch)
	})
}
