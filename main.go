package main

import (
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"golang.org/x/sync/errgroup"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/facebook"
	"github.com/cyderes/facebook-auto-poster/internal/log"
	"github.com/cyderes/facebook-auto-poster/internal/poster"
	"github.com/cyderes/facebook-auto-poster/internal/server"
	"github.com/cyderes/facebook-auto-poster/internal/source"
	"github.com/cyderes/facebook-auto-poster/internal/storage"
)

type args struct {
	Once     bool `arg:"--once" help:"run a single posting pass and exit"`
	DryRun   bool `arg:"--dry-run" help:"compose posts without publishing or saving state"`
	NoServer bool `arg:"--no-server" help:"do not start the status HTTP server"`
}

func (args) Description() string {
	return "Posts newly booked arrest records to a Facebook page"
}

func main() {
	var cli args
	arg.MustParse(&cli)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal("Failed to load configuration: ", err)
	}
	if cli.DryRun {
		cfg.Poster.DryRun = true
	}
	if cli.NoServer {
		cfg.Server.Enabled = false
	}

	logger, closeLog, err := log.New(cfg.Log)
	if err != nil {
		stdlog.Fatal("Failed to initialize logger: ", err)
	}
	defer closeLog()

	if raw, err := json.Marshal(cfg); err == nil {
		logger.WithField("config", string(raw)).Info("Facebook Auto Poster starting")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	svc := poster.NewService(
		cfg.Poster,
		source.NewClient(cfg.Source, logger),
		facebook.NewPublisher(cfg.Facebook, logger),
		store,
		logger,
	)

	if cli.Once {
		if _, err := svc.RunOnce(ctx); err != nil {
			logger.WithError(err).Error("Poster run failed")
			store.Close()
			closeLog()
			os.Exit(1)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting poster scheduler")
		return svc.Start(gctx)
	})

	if cfg.Server.Enabled {
		httpServer := server.NewServer(cfg.Server, store, svc, logger)

		g.Go(func() error {
			logger.Infof("Starting HTTP server on port %d", cfg.Server.Port)
			return httpServer.Start()
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Facebook Auto Poster stopped with error")
	}
	logger.Info("Shutdown complete")
}
