package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Manager implements domain.OperationTokenService with HMAC-signed JWTs.
// Tokens carry no server state at issuance; single-use is enforced by the
// ledger insert at redemption time. With a nil ledger tokens are only
// signature- and expiry-checked, which leaves them replayable until expiry.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	ledger domain.UsedOperationTokenLedger
	users  domain.UserDirectory
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(cfg *config.Config, ledger domain.UsedOperationTokenLedger, users domain.UserDirectory, logger *zap.Logger) (*Manager, error) {
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("operation token secret is not configured")
	}
	return &Manager{
		secret: []byte(cfg.TokenSecret),
		issuer: cfg.TokenIssuer,
		ttl:    cfg.TokenTTL,
		ledger: ledger,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Generate signs a token binding the lowercased email to one operation type
func (m *Manager) Generate(email string, operation domain.OperationType) (string, error) {
	now := m.now()
	claims := &domain.OperationClaims{
		Email:     strings.ToLower(email),
		Operation: operation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		m.logger.Error("failed to sign operation token",
			zap.Error(err),
			zap.String("operation_type", string(operation)))
		return "", domain.ErrInternal
	}
	return signed, nil
}

// Verify validates and spends a token on the unauthenticated redemption
// path. The account binding check is intentionally skipped here; anonymous
// flows such as password reset run before login.
func (m *Manager) Verify(ctx context.Context, tokenString string, expected domain.OperationType) (string, error) {
	claims, err := m.validate(ctx, tokenString, expected)
	if err != nil {
		return "", err
	}

	var userID *ulid.ULID
	if m.users != nil {
		if id, err := m.users.IDByEmail(ctx, claims.Email); err == nil {
			userID = &id
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInternal
		}
	}

	if err := m.spend(ctx, claims, userID); err != nil {
		return "", err
	}
	return claims.Email, nil
}

// VerifyForUser validates and spends a token on the authenticated redemption
// path, additionally requiring the token's email to match the user's current
// email, case-insensitively.
func (m *Manager) VerifyForUser(ctx context.Context, tokenString string, expected domain.OperationType, userID ulid.ULID) (string, error) {
	claims, err := m.validate(ctx, tokenString, expected)
	if err != nil {
		return "", err
	}

	if m.users == nil {
		return "", domain.ErrInternal
	}
	currentEmail, err := m.users.EmailByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrTokenUserMismatch
		}
		return "", domain.ErrInternal
	}
	if !strings.EqualFold(currentEmail, claims.Email) {
		m.logger.Warn("operation token email mismatch",
			zap.String("user_id", userID.String()),
			zap.String("operation_type", string(expected)))
		return "", domain.ErrTokenUserMismatch
	}

	if err := m.spend(ctx, claims, &userID); err != nil {
		return "", err
	}
	return claims.Email, nil
}

// validate performs the stateless checks: signature, required claims,
// expiry, operation scope, and the ledger lookup.
func (m *Manager) validate(ctx context.Context, tokenString string, expected domain.OperationType) (*domain.OperationClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &domain.OperationClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*domain.OperationClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.ID == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil || claims.Email == "" {
		return nil, domain.ErrInvalidToken
	}

	if claims.Operation != expected {
		return nil, domain.ErrWrongOperationType
	}

	if m.ledger != nil {
		used, err := m.ledger.Exists(ctx, claims.ID)
		if err != nil {
			return nil, domain.ErrInternal
		}
		if used {
			return nil, domain.ErrTokenAlreadyUsed
		}
	}
	return claims, nil
}

// spend writes the ledger row for the jti. The insert is what makes the
// token single-use: a duplicate jti fails on the primary key, so of two
// concurrent redemptions at most one returns success.
func (m *Manager) spend(ctx context.Context, claims *domain.OperationClaims, userID *ulid.ULID) error {
	if m.ledger == nil {
		return nil
	}
	err := m.ledger.Insert(ctx, &domain.UsedOperationToken{
		JTI:       claims.ID,
		UserID:    userID,
		Operation: claims.Operation,
		Email:     claims.Email,
		UsedAt:    m.now(),
		ExpiresAt: claims.ExpiresAt.Time,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTokenAlreadyUsed) {
			return domain.ErrTokenAlreadyUsed
		}
		m.logger.Error("failed to spend operation token", zap.Error(err))
		return domain.ErrInternal
	}
	return nil
}
