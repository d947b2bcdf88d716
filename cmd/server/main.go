package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/quizmine/quizmine-backend/internal/config"
	"github.com/quizmine/quizmine-backend/internal/database"
	"github.com/quizmine/quizmine-backend/internal/handler"
	"github.com/quizmine/quizmine-backend/internal/logger"
	"github.com/quizmine/quizmine-backend/internal/mail"
	"github.com/quizmine/quizmine-backend/internal/repository"
	"github.com/quizmine/quizmine-backend/internal/router"
	"github.com/quizmine/quizmine-backend/internal/service"
	"github.com/quizmine/quizmine-backend/internal/session"
	"github.com/quizmine/quizmine-backend/internal/timesync"
	"github.com/quizmine/quizmine-backend/internal/validator"
	"github.com/quizmine/quizmine-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizMine Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Synchronize Clock ─────────────────────────────────────────────
	// All session timing flows through this clock. Without a configured
	// upstream the local wall clock is authoritative.
	var clock timesync.Clock = timesync.System()
	if cfg.TimesyncURL != "" {
		syncCtx, syncCancel := context.WithTimeout(ctx, 10*time.Second)
		synced, err := timesync.Sync(syncCtx, nil, cfg.TimesyncURL, cfg.TimesyncProbe)
		syncCancel()
		if err != nil {
			log.Warn().Err(err).Msg("Clock sync failed, using local time")
		} else {
			log.Info().Dur("offset", synced.Offset()).Msg("Clock synchronized")
		}
		clock = synced
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	tutorRepo := repository.NewTutorRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, tutorRepo)
	testService := service.NewTestService(testRepo, rdb, log)
	participantService := service.NewParticipantService(participantRepo, testService, rdb, clock, log)
	gradingService := service.NewGradingService(testService, rdb, clock, log)
	resultService := service.NewResultService(resultRepo, rdb, log)

	sessionStore := session.NewStore()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService, tutorRepo),
		Test:   handler.NewTestHandler(testService, participantService, resultService),
		Invite: handler.NewInviteHandler(participantService, gradingService, resultService),
		Take:   handler.NewTakeHandler(participantService, gradingService, sessionStore, clock, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	mailer := mail.NewLogMailer(cfg.MailFrom, log)
	resultWorker := worker.NewResultWorker(resultRepo, participantRepo, rdb, log)
	mailWorker := worker.NewMailWorker(mailer, participantRepo, rdb, log)

	go resultWorker.Start(workerCtx)
	go mailWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every open test into Redis BEFORE accepting traffic, so the
	// first invite of the day never lazy-loads under load.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, clock, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
