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

	"go.uber.org/zap"

	"github.com/hackgods/healing-scheduler/internal/api"
	"github.com/hackgods/healing-scheduler/internal/config"
	"github.com/hackgods/healing-scheduler/internal/db"
	"github.com/hackgods/healing-scheduler/internal/locker"
	"github.com/hackgods/healing-scheduler/internal/logger"
	"github.com/hackgods/healing-scheduler/internal/metrics"
	redisclient "github.com/hackgods/healing-scheduler/internal/redis"
	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.IsProd(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("storage", cfg.StorageDriver),
		zap.String("lock", cfg.LockDriver),
		zap.String("timezone", cfg.Timezone.String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		rules    scheduling.RuleRepository
		bookings scheduling.BookingRepository
		deps     []api.Dependency
	)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		cancelPg()
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		defer pgPool.Close()
		log.Info("connected to Postgres")

		if cfg.AutoMigrate {
			if err := db.Migrate(rootCtx, pgPool); err != nil {
				return err
			}
			log.Info("schema applied")
		}

		rules = scheduling.NewPgRuleRepository(pgPool)
		bookings = scheduling.NewPgBookingRepository(pgPool)
		deps = append(deps, api.Dependency{Name: "postgres", Critical: true, Ping: pgPool.Ping})

	default:
		store := scheduling.NewMemoryStore()
		rules, bookings = store, store
		log.Warn("using in-memory storage, data is lost on restart")
	}

	var staffLocker scheduling.Locker
	switch cfg.LockDriver {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

		staffLocker = redisclient.NewRedisStaffLocker(rdb, cfg.LockTTL, cfg.LockWait, log)
		deps = append(deps, api.Dependency{
			Name: "redis",
			// without redis every booking write fails to lock
			Critical: true,
			Ping:     redisclient.Pinger(rdb),
		})

	default:
		staffLocker = locker.NewLocal(cfg.LockWait)
	}

	engine := scheduling.NewEngine(rules, bookings, scheduling.EngineConfig{
		Location:               cfg.Timezone,
		StepMinutes:            cfg.SlotStepMinutes,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		MaxRangeDays:           cfg.MaxRangeDays,
		MinNotice:              cfg.MinNotice,
		MonthlyMode:            scheduling.MonthlyMode(cfg.MonthlyMode),
	}, log.Named("engine"))

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New("healing_scheduler")
	}

	router := api.NewRouter(api.RouterConfig{
		Engine:             engine,
		Bookings:           scheduling.NewBookingService(bookings, engine.Detector(), staffLocker, log.Named("bookings")),
		Rules:              scheduling.NewRuleService(rules, log.Named("rules")),
		Logger:             log.Named("http"),
		Metrics:            m,
		MetricsPath:        cfg.MetricsPath,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		Dependencies:       deps,
		Env:                cfg.Env,
		Version:            version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("api-server stopped")
	return nil
}
