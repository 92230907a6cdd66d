package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"codecourt/internal/api"
	"codecourt/internal/app/judge"
	"codecourt/internal/app/service"
	"codecourt/internal/app/worker"
	"codecourt/internal/common/security"
	"codecourt/internal/domain/repository"
	"codecourt/internal/engine"
	"codecourt/internal/platform/config"
	"codecourt/internal/platform/database"
	"codecourt/internal/platform/logger"
	"codecourt/internal/platform/queue"
)

func main() {
	cfg := config.Load()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	security.InitJWT(cfg.JWTKey)

	db, err := database.Connect(cfg.DBConnStr)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rdb, err := queue.Connect(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	submissionRepo := repository.NewPgSubmissionRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	leaderboardRepo := repository.NewPgLeaderboardRepository(db)

	problemService := service.NewProblemService(problemRepo, db,
		cfg.DefaultTimeLimitMs, cfg.DefaultMemoryLimitKb, log)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo,
		rdb, cfg.QueueName, db, log)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, db, log)

	engineClient := engine.NewClient(cfg.EngineURL, cfg.EngineAuthToken, cfg.EnginePollInterval, log)
	runner := judge.NewRunner(engineClient, cfg.CaseMaxRetries, 250*time.Millisecond, cfg.EngineCallTimeout, log)

	pipeline := worker.NewPipeline(rdb, submissionRepo, runner, worker.Config{
		QueueName:               cfg.QueueName,
		Workers:                 cfg.WorkerCount,
		Attempts:                cfg.PipelineAttempts,
		RevealHiddenDiagnostics: cfg.RevealHiddenDiagnostics,
	}, log)
	pipeline.Subscribe(leaderboardService)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		pipeline.Start(workerCtx)
	}()

	router := api.NewRouter(problemService, submissionService, leaderboardService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-stop

	log.Info("shutting down")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("workers did not drain before shutdown deadline")
	}

	log.Info("stopped")
}
