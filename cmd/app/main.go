package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/ai"
	"github.com/BuzzLyutic/taskboard/internal/cache"
	"github.com/BuzzLyutic/taskboard/internal/config"
	"github.com/BuzzLyutic/taskboard/internal/handler"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// Хранилище: Postgres, если задан DATABASE_URL, иначе в памяти
	var (
		tasks   repo.TaskRepository
		imports repo.ImportQueue
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to Database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("Failed to ping the Database", zap.Error(err))
		}
		logger.Info("Successfully connected to the Database!")
		tasks = repo.NewTaskRepo(pool)
		imports = repo.NewImportRepo(pool)
	} else {
		mem := repo.NewMemoryRepo()
		tasks, imports = mem, mem
		logger.Warn("DATABASE_URL is empty, tasks are kept in memory")
	}

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		c, err := cache.Connect(ctx, cfg.RedisAddr, "taskboard:", cfg.CacheTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer c.Close()
		opts = append(opts, service.WithCache(c))
		logger.Info("List cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}
	svc := service.NewTaskService(tasks, opts...)

	assistant := ai.NewClient(ai.Config{
		APIKey:  cfg.AI.APIKey,
		URL:     cfg.AI.URL,
		Model:   cfg.AI.Model,
		SiteURL: cfg.AI.SiteURL,
		Timeout: cfg.AI.Timeout,
	}, logger)
	if cfg.AI.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY is empty, AI endpoints will fail")
	}

	// Воркеры импорта документов
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var pool *worker.Pool
	if cfg.WorkerCount > 0 {
		pool = worker.NewPool(imports, assistant, svc, logger, cfg.WorkerCount)
		pool.Start(workerCtx)
	}

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(handler.Deps{
			Tasks:          svc,
			Assistant:      assistant,
			Imports:        imports,
			Owner:          cfg.DefaultOwner,
			RequestTimeout: cfg.RequestTimeout,
			Logger:         logger,
		}),
		ReadTimeout: 10 * time.Second,
		// AI calls may take up to AI_TIMEOUT
		WriteTimeout: cfg.AI.Timeout + 5*time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	if pool != nil {
		pool.Stop()
	}
	logger.Info("Server stopped successfully!")
}
