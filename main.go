package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cli/browser"
	"github.com/gohealthy/config"
	"github.com/gohealthy/downloader"
	"github.com/gohealthy/healthstore"
	"github.com/gohealthy/server"
	"github.com/gohealthy/viewmodel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logFile, err := server.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logFile.Close()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to create health store", zap.Error(err))
		return err
	}

	loop := viewmodel.NewLoop()
	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("ui loop stopped", zap.Error(err))
		}
	}()

	vm := viewmodel.New(ctx, store, loop, logger,
		viewmodel.WithCalendar(cfg.Calendar),
		viewmodel.WithMetrics(viewmodel.NewMetrics(prometheus.DefaultRegisterer)))
	binding := server.Bind(vm)
	defer binding.Close()

	srv := server.New(server.Config{
		Port:          cfg.Port,
		SettleTimeout: cfg.SettleTimeout,
		Language:      cfg.Language,
	}, vm, binding, logger)

	if cfg.OpenBrowser {
		if err := browser.OpenURL(srv.URL()); err != nil {
			logger.Warn("could not open browser", zap.Error(err))
		}
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newStore(cfg *config.Config, logger *zap.Logger) (viewmodel.HealthStore, error) {
	if cfg.Source == config.SourceFitbit {
		logger.Info("using fitbit data", zap.String("data_dir", cfg.DataDir))
		d, err := downloader.New(downloader.Config{
			ClientID:     cfg.Fitbit.ClientID,
			ClientSecret: cfg.Fitbit.ClientSecret,
			RedirectPort: cfg.Fitbit.RedirectPort,
			DataDir:      cfg.DataDir,
			Timeout:      cfg.Fitbit.Timeout,
			Location:     cfg.Calendar.Location,
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	logger.Info("using demo data", zap.Int("days", cfg.DemoDays))
	store := healthstore.New(healthstore.WithLatency(cfg.DemoLatency))
	now := time.Now().In(cfg.Calendar.Location)
	store.Seed(now, cfg.DemoDays, rand.New(rand.NewSource(now.UnixNano())))
	return store, nil
}
