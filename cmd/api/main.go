package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"geoattend/internal/config"
	"geoattend/internal/logging"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/server"
	"geoattend/internal/store"
	"geoattend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("error", true, os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel, !cfg.Production(), os.Stderr)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// run serves until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg config.App, log zerolog.Logger) error {
	health := map[string]server.HealthCheck{}

	var repo store.Repository
	switch cfg.StoreBackend {
	case "memory":
		repo = store.NewMemory()
		log.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repo = store.NewPostgres(db.Client)
		health["db"] = func(ctx context.Context) bool { return db.Client.PingContext(ctx) == nil }
		log.Info().Msg("database connection established")
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case "memory":
		mem := queue.NewInMemory(256)
		q = mem
		go func() {
			if _, err := worker.NewAuditor(mem, repo, log).Run(ctx); err != nil {
				log.Error().Err(err).Msg("in-process worker failed")
			}
		}()
	default:
		rdb := store.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb.Client, cfg.QueueKey)
		health["redis"] = rdb.Healthy
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(server.Options{
		Repo:            repo,
		Queue:           q,
		Metrics:         metrics.New(reg),
		Log:             log,
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health:          health,
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}
