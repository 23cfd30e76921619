package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	amqpad "github.com/himmu2625/baithkaGhar-sub031/internal/adapters/amqp"
	server "github.com/himmu2625/baithkaGhar-sub031/internal/adapters/http_server"
	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/observability"
	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/ota"
	redisad "github.com/himmu2625/baithkaGhar-sub031/internal/adapters/redis"
	"github.com/himmu2625/baithkaGhar-sub031/internal/app"
	"github.com/himmu2625/baithkaGhar-sub031/internal/rate"
	"github.com/himmu2625/baithkaGhar-sub031/internal/shared"
	mysqlrepo "github.com/himmu2625/baithkaGhar-sub031/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	reg := observability.InitRegistry()
	observability.Serve(reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	alerts := amqpad.New(cfg.AMQPURL)
	defer alerts.Close()

	engine := rate.New(rate.Config{
		MaxCombinedMultiplier: cfg.MaxCombinedMultiplier,
		MinPriceFraction:      cfg.MinPriceFraction,
	})
	ledger := app.NewLedgerService(repo)
	status := app.NewStatusService(repo, ledger, engine, cache, cfg.CacheTTL)
	coord := app.NewSyncCoordinator(repo, ledger, engine, ota.Factory(int(cfg.PartnerRPS)), alerts, app.CoordinatorConfig{
		AdapterTimeout: cfg.AdapterTimeout,
		MaxRetries:     cfg.MaxRetries,
		PauseThreshold: cfg.PauseThreshold,
		HorizonDays:    cfg.HorizonDays,
		MaxParallel:    cfg.SyncWorkers,
	})

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Coord: coord, Status: status, Store: repo}, cfg.JWTSecret)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
