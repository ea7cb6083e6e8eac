package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/domain"
	"github.com/joho/godotenv"
)

// CodePolicy is the fixed-shape per-type configuration for verification codes
type CodePolicy struct {
	CodeLength   int
	CodeAlphabet domain.CodeAlphabet
	Expiration   time.Duration
	MaxAttempts  int
	RateLimit    time.Duration
	// HourlyLimit caps creations per trailing hour; 0 disables the quota
	HourlyLimit int
}

// Config holds the application configuration. It is built once at startup
// and never mutated; reloading means constructing a new Config and new
// services around it.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Operation token configuration
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	// Cleanup configuration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
	CleanupBatchSize int

	// Per-type verification code policies
	Policies map[domain.VerificationType]CodePolicy
}

// DefaultPolicies returns the documented per-type defaults
func DefaultPolicies() map[domain.VerificationType]CodePolicy {
	return map[domain.VerificationType]CodePolicy{
		domain.EmailVerification: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   15 * time.Minute,
			MaxAttempts:  3,
			RateLimit:    time.Minute,
			HourlyLimit:  6,
		},
		domain.TwoFactorAuth: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   5 * time.Minute,
			MaxAttempts:  3,
			RateLimit:    time.Minute,
			HourlyLimit:  10,
		},
		domain.PasswordReset: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   30 * time.Minute,
			MaxAttempts:  5,
			RateLimit:    2 * time.Minute,
			HourlyLimit:  5,
		},
		domain.PasswordChange: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   15 * time.Minute,
			MaxAttempts:  3,
			RateLimit:    time.Minute,
			HourlyLimit:  5,
		},
		domain.EmailChange: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   15 * time.Minute,
			MaxAttempts:  3,
			RateLimit:    time.Minute,
			HourlyLimit:  5,
		},
		domain.AccountRecovery: {
			CodeLength:   8,
			CodeAlphabet: domain.AlphabetAlphanumeric,
			Expiration:   30 * time.Minute,
			MaxAttempts:  3,
			RateLimit:    2 * time.Minute,
			HourlyLimit:  3,
		},
		domain.SensitiveAction: {
			CodeLength:   6,
			CodeAlphabet: domain.AlphabetNumeric,
			Expiration:   10 * time.Minute,
			MaxAttempts:  2,
			RateLimit:    time.Minute,
			HourlyLimit:  6,
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("OPERATION_TOKEN_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATION_TOKEN_TTL: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(getEnv("CLEANUP_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_INTERVAL: %w", err)
	}

	cleanupRetention, err := time.ParseDuration(getEnv("CLEANUP_RETENTION", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLEANUP_RETENTION: %w", err)
	}

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "owner"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "verifications"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		TokenSecret: getEnv("OPERATION_TOKEN_SECRET", ""),
		TokenIssuer: getEnv("OPERATION_TOKEN_ISSUER", "zentropy-operations"),
		TokenTTL:    tokenTTL,

		CleanupInterval:  cleanupInterval,
		CleanupRetention: cleanupRetention,
		CleanupBatchSize: getEnvInt("CLEANUP_BATCH_SIZE", 500),

		Policies: DefaultPolicies(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Policy returns the code policy for the given verification type
func (c *Config) Policy(codeType domain.VerificationType) (CodePolicy, bool) {
	p, ok := c.Policies[codeType]
	return p, ok
}

// Validate checks that every configured policy is usable
func (c *Config) Validate() error {
	if c.TokenTTL <= 0 {
		return fmt.Errorf("operation token ttl must be positive")
	}
	if c.CleanupBatchSize <= 0 {
		return fmt.Errorf("cleanup batch size must be positive")
	}
	if c.CleanupRetention < 0 {
		return fmt.Errorf("cleanup retention must not be negative")
	}
	for codeType, p := range c.Policies {
		if !codeType.Valid() {
			return fmt.Errorf("policy for unknown verification type %q", codeType)
		}
		if p.CodeLength < 4 || p.CodeLength > 8 {
			return fmt.Errorf("%s: code length must be between 4 and 8, got %d", codeType, p.CodeLength)
		}
		if p.CodeAlphabet != domain.AlphabetNumeric && p.CodeAlphabet != domain.AlphabetAlphanumeric {
			return fmt.Errorf("%s: unknown code alphabet %q", codeType, p.CodeAlphabet)
		}
		if p.Expiration <= 0 {
			return fmt.Errorf("%s: expiration must be positive", codeType)
		}
		if p.MaxAttempts <= 0 {
			return fmt.Errorf("%s: max attempts must be positive", codeType)
		}
		if p.RateLimit <= 0 {
			return fmt.Errorf("%s: rate limit must be positive", codeType)
		}
		if p.HourlyLimit < 0 {
			return fmt.Errorf("%s: hourly limit must not be negative", codeType)
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
