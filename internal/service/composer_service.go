package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/model"
	"github.com/stemsi/untis-notifier/internal/repository"
)

// Composition is a composed digest. An empty Text means "do not notify".
type Composition struct {
	Mode   model.Mode
	Text   string
	Lines  int
	Faults []error
}

// ComposeMessage builds the cancellation digest for classID.
// Entries whose lookups fail are skipped and reported in Faults.
func ComposeMessage(mode model.Mode, classID int, entries []model.TimetableEntry, subjects []model.Subject, teachers model.TeacherLookup) Composition {
	comp := Composition{Mode: mode}
	if mode == model.ModeNone {
		return comp
	}

	var b strings.Builder
	b.WriteString(mode.Header())

	for _, entry := range entries {
		if !entry.HasClass(classID) || !entry.IsCancelled() {
			continue
		}

		line, err := composeLine(entry, subjects, teachers)
		if err != nil {
			comp.Faults = append(comp.Faults, err)
			continue
		}
		b.WriteString(line)
		comp.Lines++
	}

	comp.Text = b.String()
	return comp
}

func composeLine(entry model.TimetableEntry, subjects []model.Subject, teachers model.TeacherLookup) (string, error) {
	const op = "compose"

	ids := entry.SubjectIDs()
	if len(ids) == 0 {
		return "", apperr.Errorf(apperr.ErrLookup, op, "entry %d has no subject", entry.ID)
	}
	subjectID := ids[0]

	period, ok := model.PeriodOf(entry.StartTime)
	if !ok {
		return "", apperr.Errorf(apperr.ErrLookup, op, "entry %d starts at unknown time %d", entry.ID, entry.StartTime)
	}

	subject, ok := findSubject(subjects, subjectID)
	if !ok {
		return "", apperr.Errorf(apperr.ErrLookup, op, "entry %d references unknown subject %d", entry.ID, subjectID)
	}

	// An empty name is a template entry nobody filled in yet.
	teacher, ok := teachers[subject.Name]
	if !ok || teacher == "" {
		return "", apperr.Errorf(apperr.ErrLookup, op, "no teacher for subject %q", subject.Name)
	}

	return fmt.Sprintf("%s in der %d. Stunde bei %s\n", subject.Name, period, teacher), nil
}

// findSubject returns the first subject with the given id.
func findSubject(subjects []model.Subject, id int) (model.Subject, bool) {
	for _, s := range subjects {
		if s.ID == id {
			return s, true
		}
	}
	return model.Subject{}, false
}

// ComposerService composes the digest from the cached files.
type ComposerService struct {
	cache   *repository.CacheRepository
	classID int
	log     zerolog.Logger
}

func NewComposerService(cache *repository.CacheRepository, classID int, log zerolog.Logger) *ComposerService {
	return &ComposerService{
		cache:   cache,
		classID: classID,
		log:     log.With().Str("component", "composer_service").Logger(),
	}
}

// Compose reads timetable, subjects and teachers back from the cache and
// builds the digest due at now. Outside the announcement window nothing is read.
func (s *ComposerService) Compose(now time.Time) (Composition, error) {
	mode := ModeAt(now)
	if mode == model.ModeNone {
		s.log.Debug().Time("now", now).Msg("Outside announcement window")
		return Composition{Mode: mode}, nil
	}

	entries, err := s.cache.LoadTimetable()
	if err != nil {
		return Composition{}, err
	}
	subjects, err := s.cache.LoadSubjects()
	if err != nil {
		return Composition{}, err
	}
	teachers, err := s.cache.LoadTeachers()
	if err != nil {
		return Composition{}, err
	}

	comp := ComposeMessage(mode, s.classID, entries, subjects, teachers)
	for _, fault := range comp.Faults {
		s.log.Warn().Err(fault).Msg("Skipping timetable entry")
	}

	s.log.Info().
		Str("mode", string(comp.Mode)).
		Int("lines", comp.Lines).
		Int("faults", len(comp.Faults)).
		Msg("Message composed")

	return comp, nil
}
