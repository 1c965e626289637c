package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/config"
	"github.com/stemsi/untis-notifier/internal/logger"
	"github.com/stemsi/untis-notifier/internal/model"
	"github.com/stemsi/untis-notifier/internal/repository"
	"github.com/stemsi/untis-notifier/internal/service"
	"github.com/stemsi/untis-notifier/internal/untis"
	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Read()

	if cfg.Untis.Password == "" && cfg.Untis.Username != "" {
		fmt.Printf("WebUntis password for %s: ", cfg.Untis.Username)
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after password input
		if err != nil {
			fmt.Println("Error reading password")
			return apperr.ExitCode(apperr.New(apperr.ErrConfig, "term.ReadPassword", err))
		}
		cfg.Untis.Password = string(bytePassword)
	}

	if err := cfg.ValidateLogin(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return apperr.ExitCode(err)
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	// Console only; the helper should not write into the notifier's log file.
	log, logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFormat, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return apperr.ExitCode(apperr.New(apperr.ErrConfig, "logger.Setup", err))
	}
	defer logFile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ─── Fetch Subjects ────────────────────────────────────────────────
	client := untis.NewClientFromConfig(cfg, log)
	session, err := client.Authenticate(ctx)
	if err != nil {
		return fail(log, err)
	}
	subjects, err := session.GetSubjects(ctx)
	_ = session.Logout(context.WithoutCancel(ctx)) // advisory, logged by the client
	if err != nil {
		return fail(log, err)
	}

	// ─── Merge Into teachers.json ──────────────────────────────────────
	cache := repository.NewCacheRepository(cfg.CacheDir)
	teachers, err := cache.LoadTeachers()
	if err != nil {
		if !repository.IsNotExist(err) {
			return fail(log, err)
		}
		teachers = model.TeacherLookup{}
	}

	merged, added := service.MergeTeacherTemplate(teachers, subjects)
	if len(added) == 0 {
		fmt.Printf("\n%s already lists all %d subjects.\n", cache.Path(config.CacheFile.Teachers), len(subjects))
		return 0
	}
	if err := cache.SaveTeachers(merged); err != nil {
		return fail(log, err)
	}

	fmt.Printf("\nAdded %d subject(s) to %s:\n", len(added), cache.Path(config.CacheFile.Teachers))
	for _, code := range added {
		fmt.Printf("  %s\n", code)
	}
	fmt.Println("Fill in the teacher names before the next notifier run.")
	return 0
}

func fail(log zerolog.Logger, err error) int {
	code := apperr.CodeOf(err)
	log.Error().Err(err).Str("code", string(code)).Msg(apperr.GetMessage(code))
	return apperr.ExitCode(err)
}
