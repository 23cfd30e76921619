package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	amqpad "github.com/himmu2625/baithkaGhar-sub031/internal/adapters/amqp"
	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/observability"
	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/ota"
	"github.com/himmu2625/baithkaGhar-sub031/internal/app"
	"github.com/himmu2625/baithkaGhar-sub031/internal/rate"
	"github.com/himmu2625/baithkaGhar-sub031/internal/shared"
	mysqlrepo "github.com/himmu2625/baithkaGhar-sub031/internal/storage/mysql"
)

// syncd keeps every auto-sync channel fresh: each tick it finds properties
// whose cadence elapsed and runs a full coordinator pass for them.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "syncd")

	log.Info().
		Dur("interval", cfg.ReconcileEvery).
		Int("workers", cfg.SyncWorkers).
		Int("horizon_days", cfg.HorizonDays).
		Msg("sync daemon starting")

	observability.Serve(observability.InitRegistry())

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	alerts := amqpad.New(cfg.AMQPURL)
	defer alerts.Close()

	engine := rate.New(rate.Config{
		MaxCombinedMultiplier: cfg.MaxCombinedMultiplier,
		MinPriceFraction:      cfg.MinPriceFraction,
	})
	ledger := app.NewLedgerService(repo)
	coord := app.NewSyncCoordinator(repo, ledger, engine, ota.Factory(int(cfg.PartnerRPS)), alerts, app.CoordinatorConfig{
		AdapterTimeout: cfg.AdapterTimeout,
		MaxRetries:     cfg.MaxRetries,
		PauseThreshold: cfg.PauseThreshold,
		HorizonDays:    cfg.HorizonDays,
		MaxParallel:    cfg.SyncWorkers,
	})

	job := app.NewReconciliationJob(repo, coord, alerts, cfg.SyncWorkers, cfg.FailThreshold)
	job.Run(ctx, cfg.ReconcileEvery)

	log.Info().Msg("sync daemon stopped")
}
