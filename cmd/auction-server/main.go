package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/slotauction/auction"
	"github.com/cloudx-io/slotauction/broadcast"
	"github.com/cloudx-io/slotauction/config"
	"github.com/cloudx-io/slotauction/core"
	"github.com/cloudx-io/slotauction/logging"
	"github.com/cloudx-io/slotauction/server"
	"github.com/cloudx-io/slotauction/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("default_jwt_secret_in_use")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(store.Config{
		Driver:      cfg.Store.Driver,
		BoltPath:    cfg.Store.BoltPath,
		PostgresDSN: cfg.Store.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = repo.Close() }()

	scorer, err := core.ScorerFor(cfg.Auction.ScoringMode)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Auction.Location)
	if err != nil {
		return fmt.Errorf("invalid auction location: %w", err)
	}
	sched, err := auction.NewCronScheduler(cfg.Auction.TickInterval, loc)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(logger)
	defer hub.Close()

	coefficients := cfg.Auction.Coefficients()
	engine, err := auction.NewEngine(auction.Options{
		Scorer:              scorer,
		Sink:                hub,
		Store:               repo,
		Logger:              logger,
		DefaultK:            cfg.Auction.DefaultK,
		DefaultCoefficients: &coefficients,
		NotifyBids:          cfg.Auction.NotifyBids,
		BidLogWorkers:       cfg.Auction.BidLogWorkers,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("bid_log_flush_incomplete", zap.Error(err))
		}
	}()

	if err := engine.Restore(ctx); err != nil {
		return err
	}
	engine.Tick(ctx, time.Now())

	srv := server.New(server.Options{
		Engine: engine,
		Hub:    hub,
		Server: cfg.Server,
		Auth:   cfg.Auth,
		Logger: logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx, sched)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
