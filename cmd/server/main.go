package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/backend/internal/cache"
	"taskhub/backend/internal/config"
	"taskhub/backend/internal/database"
	"taskhub/backend/internal/logger"
	"taskhub/backend/internal/server"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.Log.Level, cfg.Log.Format, cfg.IsProduction())
	slog.SetDefault(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openDatabase(cfg)
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := pool.Migrate(); err != nil {
			appLogger.Error("migrate database failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	redisClient := connectRedis(ctx, cfg, appLogger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := server.New(server.Dependencies{
		Config: cfg,
		DB:     pool.DB,
		Redis:  redisClient,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error("init server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	app.Start(ctx)

	httpServer := app.HTTPServer()
	go func() {
		appLogger.Info("api server listening",
			slog.String("addr", httpServer.Addr),
			slog.String("environment", cfg.Server.Environment),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server run failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down api server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	app.Stop()
}

func openDatabase(cfg *config.Config) (*database.DatabasePool, error) {
	poolConfig := &database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormlogger.Warn,
	}
	if cfg.Database.Driver == database.DriverSQLite {
		poolConfig.DSN = cfg.Database.SQLitePath
	}
	if !cfg.IsProduction() {
		poolConfig.LogLevel = gormlogger.Info
	}
	return database.NewDatabasePool(poolConfig)
}

// connectRedis returns nil when Redis cannot be reached; the server then runs
// without the cache and the activity worker.
func connectRedis(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) *redis.Client {
	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	if err := redisCache.Health(ctx); err != nil {
		appLogger.Warn("redis unavailable, running without cache and worker",
			slog.String("addr", cfg.GetRedisAddr()),
			slog.String("error", err.Error()),
		)
		_ = redisCache.Close()
		return nil
	}
	return redisCache.Client()
}
