package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"wallet-transfer-service/config"
	pgStorage "wallet-transfer-service/internal/adapter/storage/postgres"
	"wallet-transfer-service/internal/service"
	"wallet-transfer-service/pkg/logger"
)

// reconcile walks every wallet that appears in the ledger and compares its
// stored balance against the signed sum of its entries. Exits non-zero when
// any wallet has drifted, so it can gate a cron alert.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	walletSvc := service.NewWalletService(userRepo, walletRepo, ledgerRepo, service.NewPinHashService(), transactor, log)

	walletIDs, err := ledgerRepo.ListWalletIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list wallets")
	}

	var drifted int
	for _, id := range walletIDs {
		report, err := walletSvc.Reconcile(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("wallet_id", id.String()).Msg("reconcile failed")
			drifted++
			continue
		}
		if !report.Consistent {
			drifted++
			log.Error().
				Str("wallet_id", id.String()).
				Str("balance", report.Balance.String()).
				Str("ledger_sum", report.LedgerSum.String()).
				Msg("DRIFT")
		}
	}

	log.Info().Int("wallets", len(walletIDs)).Int("drifted", drifted).Msg("reconciliation complete")
	if drifted > 0 {
		os.Exit(2)
	}
}
