package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/model"
	"github.com/stemsi/untis-notifier/internal/repository"
	"github.com/stemsi/untis-notifier/internal/untis"
)

// Notifier delivers a composed digest to a chat.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// RunLocker serializes runs across processes.
type RunLocker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

// RunReport summarizes one fetch-compose-notify cycle.
type RunReport struct {
	RunID            string     `json:"run_id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       time.Time  `json:"finished_at"`
	Mode             model.Mode `json:"mode"`
	Subjects         int        `json:"subjects"`
	Entries          int        `json:"entries"`
	NewCancellations int        `json:"new_cancellations"`
	Lines            int        `json:"lines"`
	Faults           int        `json:"faults"`
	Message          string     `json:"message,omitempty"`
	Delivered        bool       `json:"delivered"`
	Skipped          string     `json:"skipped,omitempty"`
	ErrorCode        string     `json:"error_code,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// PipelineOptions configures a PipelineService.
type PipelineOptions struct {
	ClassID         int
	ChatID          string
	SkipEmptyDigest bool
	LockKey         string
	LockTTL         time.Duration
}

// PipelineService runs the sequential chain: authenticate, fetch, persist,
// logout, compose, notify.
type PipelineService struct {
	client   *untis.Client
	cache    *repository.CacheRepository
	composer *ComposerService
	notifier Notifier
	locker   RunLocker
	opts     PipelineOptions
	log      zerolog.Logger
}

// NewPipelineService creates a PipelineService. locker may be nil.
func NewPipelineService(
	client *untis.Client,
	cache *repository.CacheRepository,
	composer *ComposerService,
	notifier Notifier,
	locker RunLocker,
	opts PipelineOptions,
	log zerolog.Logger,
) *PipelineService {
	return &PipelineService{
		client:   client,
		cache:    cache,
		composer: composer,
		notifier: notifier,
		locker:   locker,
		opts:     opts,
		log:      log.With().Str("component", "pipeline_service").Logger(),
	}
}

// RunOnce executes one cycle for the local time now. Fetch failures abort
// before the cache is touched. Logout failures and lookup faults are only
// logged. A delivery failure is returned after everything else is done.
func (s *PipelineService) RunOnce(ctx context.Context, now time.Time) (report RunReport, err error) {
	report = RunReport{RunID: uuid.New().String(), StartedAt: now}
	log := s.log.With().Str("run_id", report.RunID).Logger()

	defer func() {
		report.FinishedAt = time.Now()
		if err != nil {
			report.ErrorCode = string(apperr.CodeOf(err))
			report.Error = err.Error()
		}
	}()

	if s.locker != nil {
		if err := s.locker.Acquire(ctx, s.opts.LockKey, report.RunID, s.opts.LockTTL); err != nil {
			return report, err
		}
		defer func() {
			if rerr := s.locker.Release(context.WithoutCancel(ctx), s.opts.LockKey, report.RunID); rerr != nil {
				log.Warn().Err(rerr).Msg("Failed to release run lock")
			}
		}()
	}

	// ─── Fetch ─────────────────────────────────────────────────────────
	sess, err := s.client.Authenticate(ctx)
	if err != nil {
		return report, err
	}
	logout := func() {
		if lerr := sess.Logout(context.WithoutCancel(ctx)); lerr != nil {
			log.Warn().Err(lerr).Msg("Logout failed, continuing")
		}
	}

	subjects, err := sess.GetSubjects(ctx)
	if err != nil {
		logout()
		return report, err
	}
	report.Subjects = len(subjects)
	log.Info().Int("count", len(subjects)).Msg("Subjects fetched")

	start := startOfDay(now)
	end := start.AddDate(0, 0, 1)
	entries, err := sess.GetTimetable(ctx, start, end)
	if err != nil {
		logout()
		return report, err
	}
	report.Entries = len(entries)
	log.Info().
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Int("count", len(entries)).
		Msg("Timetable fetched")

	// ─── Persist ───────────────────────────────────────────────────────
	previous, perr := s.cache.LoadTimetable()
	if perr != nil && !repository.IsNotExist(perr) {
		log.Warn().Err(perr).Msg("Previous timetable unreadable, diff skipped")
	}

	if err := s.cache.SaveFetch(subjects, entries); err != nil {
		logout()
		return report, err
	}
	log.Info().Msg("Files written")

	logout()

	fresh := NewlyCancelled(s.opts.ClassID, previous, entries)
	report.NewCancellations = len(fresh)
	if len(fresh) > 0 {
		log.Info().Int("count", len(fresh)).Msg("New cancellations since last fetch")
	}

	// ─── Compose ───────────────────────────────────────────────────────
	comp, err := s.composer.Compose(now)
	if err != nil {
		return report, err
	}
	report.Mode = comp.Mode
	report.Lines = comp.Lines
	report.Faults = len(comp.Faults)
	report.Message = comp.Text

	if comp.Text == "" {
		report.Skipped = "outside announcement window"
		log.Info().Msg("Nothing to announce")
		return report, nil
	}
	if s.opts.SkipEmptyDigest && comp.Lines == 0 {
		report.Skipped = "no cancellations"
		log.Info().Msg("No cancellations, digest skipped")
		return report, nil
	}

	// ─── Notify ────────────────────────────────────────────────────────
	if err := s.notifier.SendMessage(ctx, s.opts.ChatID, comp.Text); err != nil {
		log.Error().Err(err).Msg("Message not delivered")
		return report, err
	}
	report.Delivered = true
	log.Info().Int("lines", comp.Lines).Msg("Message sent")

	return report, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
