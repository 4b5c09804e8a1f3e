package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csickelco/newbie-sub000/internal/config"
	"github.com/csickelco/newbie-sub000/internal/db"
	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/metrics"
	"github.com/csickelco/newbie-sub000/internal/publish"
	"github.com/csickelco/newbie-sub000/internal/report"
	"github.com/csickelco/newbie-sub000/internal/server"
	"github.com/csickelco/newbie-sub000/internal/store"
)

func main() {
	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "newbie api stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.WithPing())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		return err
	}

	location, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return err
	}

	m := metrics.NewManager()
	events := store.New(pool, store.WithObserver(m), store.WithTimeout(cfg.StoreTimeout()))

	publisher, err := publish.New(publish.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaSummaryTopic}, logger.Named("publish"))
	if err != nil {
		return err
	}
	publisher.Start(ctx)

	summaries := report.NewService(events, events,
		report.WithDefaultLocation(location),
		report.WithRecorder(m),
		report.WithPublisher(publisher),
		report.WithLogger(logger.Named("report")),
	)

	app := server.New(cfg, summaries, events, m)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "newbie api listening", logger.String("addr", "http://localhost:"+cfg.AppPort), logger.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "graceful shutdown failed", logger.Error(err))
	}
	if err := publisher.Stop(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "summary publisher did not drain", logger.Error(err))
	}
	return nil
}
