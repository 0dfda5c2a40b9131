package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/medconnect/internal/account"
	"github.com/hackgods/medconnect/internal/api"
	"github.com/hackgods/medconnect/internal/appointment"
	"github.com/hackgods/medconnect/internal/beds"
	"github.com/hackgods/medconnect/internal/config"
	"github.com/hackgods/medconnect/internal/db"
	"github.com/hackgods/medconnect/internal/diagnosis"
	"github.com/hackgods/medconnect/internal/kv"
	"github.com/hackgods/medconnect/internal/logging"
	redisclient "github.com/hackgods/medconnect/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "api-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("sweep_interval", cfg.SweepInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres keeps the audit trail; without it events are dropped.
	var (
		pgPool *pgxpool.Pool
		events appointment.EventRepository = appointment.NopEventRepository{}
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.Migrate(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			log.Fatal("postgres setup error", zap.Error(err))
		}
		defer pgPool.Close()
		events = appointment.NewPgEventRepository(pgPool)
		log.Info("connected to Postgres")
	} else {
		log.Warn("POSTGRES_DSN not set, event log disabled")
	}

	// Redis holds users and sessions; without it they live in memory.
	var (
		rdb   *redis.Client
		store kv.Store
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.ClientConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		store = redisclient.NewStore(rdb, cfg.RedisKeyPrefix)
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		store = kv.NewMemoryStore()
		log.Warn("REDIS_ADDR not set, users and sessions kept in memory")
	}

	clock := clockwork.NewRealClock()
	inv := beds.NewInventory(diagnosis.Hospitals, beds.DefaultCapacity)
	ledger := appointment.NewLedger(inv, events, clock, log.Named("ledger"))
	registry := account.NewRegistry(store, log.Named("account"))

	sweeper := appointment.NewSweeper(ledger, clock, cfg.SweepInterval, log.Named("sweeper"))
	stopSweeper := sweeper.Start(rootCtx)
	defer stopSweeper()

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Ledger:   ledger,
			Registry: registry,
			PgPool:   pgPool,
			Redis:    rdb,
			Logger:   log.Named("http"),
			Env:      cfg.Env,
			Version:  version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		log.Error("http server error", zap.Error(err))
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
}
