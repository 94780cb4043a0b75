package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/kv"
	"github.com/p-n-ai/finedu/internal/platform/config"
	"github.com/p-n-ai/finedu/internal/service"
	"github.com/p-n-ai/finedu/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := service.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := run(ctx, svc); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run serves HTTP, runs the catalog worker and the initial reconciliation,
// and watches the seed file when enabled. It returns once ctx is done and
// everything has stopped.
func run(ctx context.Context, svc *service.Service) error {
	cfg := svc.Config

	var ready web.HealthChecker
	if hc, ok := svc.Store.(kv.HealthChecker); ok {
		ready = hc
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: web.New(web.Config{
			App:     svc.App,
			Ready:   ready,
			Metrics: svc.Metrics,
			Logger:  svc.Logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No write timeout: course generation and the snapshot stream are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.Catalog.Run(gctx)
	})

	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		// Requests are served while the first pass runs. Cached courses are
		// loaded at construction and on-demand ids never collide with seed ids.
		// A failed pass is shown to the user; it never stops the process.
		if err := svc.App.Reconcile(gctx); err != nil {
			slog.Error("initial reconciliation failed", "error", err)
		}
		return nil
	})

	if cfg.Catalog.WatchSeeds {
		g.Go(func() error {
			return svc.Curriculum.Watch(gctx, func(topics []curriculum.Topic) {
				svc.ReloadSeeds(gctx, topics)
			})
		})
	}

	return g.Wait()
}
