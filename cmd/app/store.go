package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-timer-api/internal/config"
	"github.com/BuzzLyutic/task-timer-api/internal/repo"
	"github.com/BuzzLyutic/task-timer-api/internal/repo/memory"
	"github.com/BuzzLyutic/task-timer-api/internal/repo/sqlite"
)

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Repository, func(), error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		return store, func() { store.Close() }, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil

	default:
		pool, err := connectPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the Database!")
		return repo.NewTaskRepo(pool), pool.Close, nil
	}
}

func connectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем новое соединение к БД
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil { // Пытаемся пингануть БД
		pool.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", err)
	}
	return pool, nil
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch cfg.DBDriver {
	case config.DriverSQLite:
		// Open уже выполняет AutoMigrate
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	case config.DriverMemory:
		logger.Info("Nothing to migrate for in-memory storage")
		return nil
	default:
		pool, err := connectPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repo.Migrate(ctx, pool); err != nil {
			return err
		}
	}
	logger.Info("Migrations applied", zap.String("db_driver", cfg.DBDriver))
	return nil
}
