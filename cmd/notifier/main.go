package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/config"
	"github.com/stemsi/untis-notifier/internal/database"
	"github.com/stemsi/untis-notifier/internal/handler"
	"github.com/stemsi/untis-notifier/internal/logger"
	"github.com/stemsi/untis-notifier/internal/notifier"
	"github.com/stemsi/untis-notifier/internal/repository"
	"github.com/stemsi/untis-notifier/internal/router"
	"github.com/stemsi/untis-notifier/internal/service"
	"github.com/stemsi/untis-notifier/internal/untis"
	"github.com/stemsi/untis-notifier/internal/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code for the first error that ends the run.
func run() int {
	mode := flag.String("mode", "", "Run mode: once or scheduled (overrides RUN_MODE)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return apperr.ExitCode(err)
	}
	if *mode != "" {
		cfg.RunMode = *mode
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return apperr.ExitCode(err)
		}
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log, logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return apperr.ExitCode(apperr.New(apperr.ErrConfig, "logger.Setup", err))
	}
	defer logFile.Close()

	log.Info().
		Str("mode", cfg.RunMode).
		Str("school", cfg.Untis.School).
		Int("class_id", cfg.Untis.ClassID).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Untis notifier")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	var locker service.RunLocker
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		return fail(log, apperr.New(apperr.ErrStorage, "database.NewRedisClient", err))
	}
	if rdb != nil {
		defer rdb.Close()
		locker = repository.NewRunLockRepository(rdb)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	cache := repository.NewCacheRepository(cfg.CacheDir)
	client := untis.NewClientFromConfig(cfg, log)
	composer := service.NewComposerService(cache, cfg.Untis.ClassID, log)
	telegram := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, nil, cfg.HTTPTimeout, log)
	pipeline := service.NewPipelineService(client, cache, composer, telegram, locker, service.PipelineOptions{
		ClassID:         cfg.Untis.ClassID,
		ChatID:          cfg.Telegram.ChatID,
		SkipEmptyDigest: cfg.SkipEmptyDigest,
		LockKey:         config.CacheKey.RunLockKey(cfg.Untis.School, cfg.Untis.ClassID),
		LockTTL:         cfg.RunLockTTL,
	}, log)

	if cfg.RunMode == config.RunModeOnce {
		report, err := pipeline.RunOnce(ctx, time.Now())
		if err != nil {
			return fail(log, err)
		}
		log.Info().
			Str("run_id", report.RunID).
			Bool("delivered", report.Delivered).
			Msg("Shutting down")
		return 0
	}

	calendar := service.NewCalendarService(cache, cfg.Untis.ClassID, time.Local)
	runScheduled(ctx, cfg, pipeline, calendar, log)
	return 0
}

func runScheduled(ctx context.Context, cfg *config.Config, pipeline *service.PipelineService, calendar *service.CalendarService, log zerolog.Logger) {
	tracker := service.NewStatusTracker(time.Now())

	// ─── Start Status Server ──────────────────────────────────────────
	var srv *http.Server
	if cfg.StatusAddr != "" {
		handlers := &router.Handlers{
			Status:   handler.NewStatusHandler(tracker),
			Calendar: handler.NewCalendarHandler(calendar, log),
		}
		srv = &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           router.SetupRouter(handlers, cfg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.StatusAddr).Msg("Status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Status server error")
			}
		}()
	}

	// ─── Run Worker Until Signal ──────────────────────────────────────
	worker.NewScheduleWorker(pipeline, tracker, log).Start(ctx)

	log.Info().Msg("Shutting down gracefully...")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}

	log.Info().Msg("Shutdown complete")
}

// fail logs err once and maps it to an exit code.
func fail(log zerolog.Logger, err error) int {
	code := apperr.CodeOf(err)
	log.Error().
		Err(err).
		Str("code", string(code)).
		Msg(apperr.GetMessage(code))
	return apperr.ExitCode(err)
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
