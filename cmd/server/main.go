package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-transfer-service/config"
	"wallet-transfer-service/internal/adapter/notify"
	pgStorage "wallet-transfer-service/internal/adapter/storage/postgres"
	redisStorage "wallet-transfer-service/internal/adapter/storage/redis"
	"wallet-transfer-service/internal/core/ports"
	"wallet-transfer-service/internal/service"
	"wallet-transfer-service/pkg/logger"

	"github.com/rs/zerolog"
)

// driftSweepInterval is how often the background reconciliation pass runs.
const driftSweepInterval = 15 * time.Minute

// app is the assembled service graph. Transport adapters attach to these
// ports; the binary itself only drives the background sweeps.
type app struct {
	Transfers ports.TransferService
	Wallets   ports.WalletService
	Ledger    ports.LedgerRepository
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("Starting wallet transfer service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	challengeRepo := pgStorage.NewChallengeRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis-backed attempt limiter
	limiter := redisStorage.NewAttemptLimiter(rdb)

	// Initialize core services
	hashSvc := service.NewPinHashService()
	auditSvc := service.NewAuditService(auditRepo, log)
	sink := notify.NewLogSink(logger.Component(log, "notify"))

	// Initialize business services
	challengeSvc := service.NewChallengeService(challengeRepo, sink, auditSvc, limiter, cfg.OTP, logger.Component(log, "challenge"))
	a := &app{
		Transfers: service.NewTransferService(
			userRepo,
			walletRepo,
			ledgerRepo,
			challengeSvc,
			hashSvc,
			auditSvc,
			limiter,
			transactor,
			cfg.Pin,
			logger.Component(log, "transfer"),
		),
		Wallets: service.NewWalletService(userRepo, walletRepo, ledgerRepo, hashSvc, transactor, logger.Component(log, "wallet")),
		Ledger:  ledgerRepo,
	}

	// Dependencies must be reachable before accepting work
	checkers := []ports.HealthChecker{
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
	}
	for _, c := range checkers {
		if err := c.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("dependency", c.Name()).Msg("Dependency unhealthy at startup")
		}
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go driftSweep(sweepCtx, a, logger.Component(log, "reconcile"))

	log.Info().Msg("Transfer core ready")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")
}

// driftSweep periodically reconciles every wallet against its ledger and
// reports drift. Transfers keep flowing while it runs.
func driftSweep(ctx context.Context, a *app, log zerolog.Logger) {
	ticker := time.NewTicker(driftSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		walletIDs, err := a.Ledger.ListWalletIDs(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to list wallets for sweep")
			continue
		}

		var drifted int
		for _, id := range walletIDs {
			report, err := a.Wallets.Reconcile(ctx, id)
			if err != nil {
				log.Error().Err(err).Str("wallet_id", id.String()).Msg("reconcile failed")
				continue
			}
			if !report.Consistent {
				drifted++
			}
		}
		log.Info().Int("wallets", len(walletIDs)).Int("drifted", drifted).Msg("drift sweep complete")
	}
}
