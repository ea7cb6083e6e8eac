package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ApexAZ/zentropy-sub001/internal/application"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/codegen"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/config"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/database"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/repository"
	"github.com/ApexAZ/zentropy-sub001/internal/infrastructure/token"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create database connection
	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize services
	codeRepo := repository.NewVerificationCodeRepository(db, logger)
	ledger := repository.NewUsedTokenRepository(db, logger)
	users := repository.NewUserDirectory(db, logger)
	generator := codegen.NewGenerator(logger)

	verificationService := application.NewVerificationService(codeRepo, generator, cfg, logger)

	// Token redemption is driven by the embedding application; constructing
	// the manager here makes a missing token secret fail at boot instead of
	// at the first redemption.
	if _, err := token.NewManager(cfg, ledger, users, logger); err != nil {
		logger.Fatal("Failed to initialize operation token manager", zap.Error(err))
	}

	// The cleanup sweep is the only background work; requests run entirely
	// within their own transactions.
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Verification service started",
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Duration("cleanup_retention", cfg.CleanupRetention))

	for {
		select {
		case <-ticker.C:
			runCleanup(ctx, verificationService, ledger, cfg, logger)
		case <-quit:
			logger.Info("Shutting down")
			return
		}
	}
}

// runCleanup sweeps terminal verification codes and expired ledger rows.
// Failures are logged and retried on the next tick.
func runCleanup(ctx context.Context, svc *application.VerificationService, ledger *repository.UsedTokenRepository, cfg *config.Config, logger *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := svc.Cleanup(sweepCtx); err != nil {
		logger.Error("Verification code cleanup failed", zap.Error(err))
	}

	cutoff := time.Now().UTC().Add(-cfg.CleanupRetention)
	for {
		deleted, err := ledger.DeleteExpired(sweepCtx, cutoff, cfg.CleanupBatchSize)
		if err != nil {
			logger.Error("Used token cleanup failed", zap.Error(err))
			return
		}
		if deleted < int64(cfg.CleanupBatchSize) {
			return
		}
	}
}
