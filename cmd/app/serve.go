package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/task-timer-api/internal/clock"
	"github.com/BuzzLyutic/task-timer-api/internal/config"
	"github.com/BuzzLyutic/task-timer-api/internal/handler"
	"github.com/BuzzLyutic/task-timer-api/internal/operation"
	"github.com/BuzzLyutic/task-timer-api/internal/reqlog"
	"github.com/BuzzLyutic/task-timer-api/internal/service"
	"github.com/BuzzLyutic/task-timer-api/internal/worker"
)

func runServe(ctx context.Context, configPath string) error {
	// Загрузка конфигурации
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Подключаем логгер
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Подключаем хранилище
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Журнал запросов: синхронно в zap, асинхронно в БД через пул
	diag := reqlog.NewZapDiagnostics(nil)
	pool := worker.NewPool(store, logger, cfg.LogWorkers, cfg.LogQueueSize, reqlog.PersistFailureReporter(diag))
	pool.Start(context.Background())
	defer pool.Stop() // после остановки сервера дописываем очередь

	tasks := service.NewTaskService(store, clock.System{})
	ops := operation.NewFacade(tasks, reqlog.New(logger, pool, diag), cfg.DefaultUserID)
	taskHandler := handler.NewTaskHandler(ops, logger)

	srv := &http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(taskHandler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { // Graceful shutdown
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", zap.Error(err))
		return err
	}
	logger.Info("Server stopped successfully!")
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	zcfg.OutputPaths = []string{cfg.LogFile}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
