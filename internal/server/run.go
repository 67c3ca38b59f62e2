// Package server runs the card HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nongjianweihao/share-car/internal/api"
	"github.com/nongjianweihao/share-car/internal/config"
	"github.com/nongjianweihao/share-car/internal/factory"
	"github.com/nongjianweihao/share-car/internal/health"
	"github.com/nongjianweihao/share-car/internal/logger"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/state"
	"github.com/nongjianweihao/share-car/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Run starts the card service and blocks until SIGINT/SIGTERM or a fatal error.
func Run() error {
	log := logger.New("share-car")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log = log.Level(cfg.Level())

	ctx, stop := newServerContext()
	defer stop()
	return Serve(ctx, cfg, log, nil)
}

// Serve runs the service with cfg until ctx is cancelled. When ready is
// non-nil it receives the bound address once the listener is open.
func Serve(ctx context.Context, cfg *config.Config, log zerolog.Logger, ready func(addr string)) error {
	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("storage_driver", cfg.StorageDriver).
		Str("storage_key", cfg.StorageKey).
		Int("http_port", cfg.HTTPPort).
		Msg("Card service starting")

	backend, err := factory.NewStorage(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Storage backend unavailable")
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("storage close failed")
		}
	}()

	repoOpts := []repository.Option{repository.WithKey(cfg.StorageKey), repository.WithLogger(log)}
	if !cfg.Seed {
		repoOpts = append(repoOpts, repository.WithSeed(nil))
	}
	repo := repository.New(backend, repoOpts...)
	store := state.New(repo, state.WithLogger(log))

	// Fail fast: the first health check and load happen before we accept traffic
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	storageChecker := health.NewStorageHealthChecker(backend, cfg.StorageDriver, log, probeTimeout)
	if !storageChecker.Check(ctx) {
		return fmt.Errorf("startup aborted: %s storage is not healthy", cfg.StorageDriver)
	}
	if err := store.Initialize(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("initial card load failed")
		return err
	}
	svcHealth := health.NewServiceHealthChecker(log, storageChecker)
	svcHealth.Evaluate()

	router := api.NewRouter(repo, store, svcHealth, log)
	server := newHTTPServer(ctx, cfg, router)
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", server.Addr, err)
	}

	if cfg.Watch {
		stopWatch, err := store.ListenToExternalChanges(ctx, backend)
		switch {
		case errors.Is(err, sqlite.ErrWatchUnsupported):
			log.Warn().Msg("external change watch unavailable for in-memory sqlite")
		case err != nil:
			_ = ln.Close()
			return fmt.Errorf("watch storage: %w", err)
		default:
			defer stopWatch()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	g.Go(func() error {
		storageChecker.Start(gctx, interval)
		return nil
	})
	g.Go(func() error {
		svcHealth.Start(gctx, interval)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")
		if ready != nil {
			ready(ln.Addr().String())
		}
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Stack().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	})

	return g.Wait()
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
