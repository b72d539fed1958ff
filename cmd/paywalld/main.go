package main

import (
	"context"
	"log"

	"github.com/robfig/cron"

	paywall402 "github.com/paywall402/paywall402"
	"github.com/paywall402/paywall402/config"
	"github.com/paywall402/paywall402/logger"
	"github.com/paywall402/paywall402/metrics"
	"github.com/paywall402/paywall402/server"
	"github.com/paywall402/paywall402/storage"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal("cannot load config: ", err)
	}

	coreCfg, err := cfg.CoreConfig()
	if err != nil {
		log.Fatal("invalid config: ", err)
	}

	zlog := logger.NewZapLogger(cfg.LogLevel)

	store, err := storage.NewPostgresPersister(cfg.DSN)
	if err != nil {
		log.Fatal("cannot connect to database: ", err)
	}
	defer func() { _ = store.Close() }()

	paywall, err := paywall402.New(coreCfg, store,
		paywall402.WithLogger(zlog),
		paywall402.WithMetrics(metrics.NewPrometheusRecorder()),
	)
	if err != nil {
		log.Fatal("cannot initialize paywall: ", err)
	}
	defer paywall.Close()

	// Periodic sweep of expired listings.
	sweeper := cron.New()
	err = sweeper.AddFunc(cfg.SweepSchedule, func() {
		if _, err := paywall.SweepExpired(context.Background()); err != nil {
			zlog.Error("expiry sweep failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		log.Fatal("invalid sweep schedule: ", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(paywall, zlog)
	zlog.Info("starting paywall server", map[string]any{"addr": cfg.ListenAddr})
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		log.Fatal("could not start server: ", err)
	}
}
