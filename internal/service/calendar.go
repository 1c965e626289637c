package service

import (
	"fmt"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stemsi/untis-notifier/internal/model"
)

const calendarProductID = "-//untis-notifier//Entfall//DE"

// lessonTime turns a YYYYMMDD date and an HHMM time into a time in loc.
func lessonTime(date, hhmm int, loc *time.Location) time.Time {
	return time.Date(date/10000, time.Month(date/100%100), date%100, hhmm/100, hhmm%100, 0, 0, loc)
}

// CancellationCalendar builds an iCalendar feed with one event per cancelled
// lesson of classID. Unlike the digest, entries with unknown subjects or
// teachers are kept with whatever is known.
func CancellationCalendar(classID int, entries []model.TimetableEntry, subjects []model.Subject, teachers model.TeacherLookup, loc *time.Location, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(fmt.Sprintf("Entfall Klasse %d", classID))

	cancelled := make([]model.TimetableEntry, 0, len(entries))
	for _, e := range entries {
		if e.HasClass(classID) && e.IsCancelled() {
			cancelled = append(cancelled, e)
		}
	}
	sort.SliceStable(cancelled, func(i, j int) bool {
		if cancelled[i].Date != cancelled[j].Date {
			return cancelled[i].Date < cancelled[j].Date
		}
		return cancelled[i].StartTime < cancelled[j].StartTime
	})

	for _, e := range cancelled {
		event := cal.AddEvent(fmt.Sprintf("untis-%d-%d-%d@untis-notifier", classID, e.Date, e.ID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(lessonTime(e.Date, e.StartTime, loc))
		event.SetEndAt(lessonTime(e.Date, e.EndTime, loc))

		name := "Unterricht"
		if ids := e.SubjectIDs(); len(ids) > 0 {
			if s, ok := findSubject(subjects, ids[0]); ok {
				name = s.Name
			}
		}
		event.SetSummary(name + " entfällt")

		desc := ""
		if period, ok := model.PeriodOf(e.StartTime); ok {
			desc = fmt.Sprintf("%d. Stunde", period)
		}
		if teacher := teachers[name]; teacher != "" {
			if desc != "" {
				desc += " "
			}
			desc += "bei " + teacher
		}
		if desc != "" {
			event.SetDescription(desc)
		}
	}

	return cal
}

// CalendarService renders the cached timetable as an iCalendar feed.
type CalendarService struct {
	cache   CacheReader
	classID int
	loc     *time.Location
}

// CacheReader is the read side of the cache used by the calendar feed.
type CacheReader interface {
	LoadSubjects() ([]model.Subject, error)
	LoadTimetable() ([]model.TimetableEntry, error)
	LoadTeachers() (model.TeacherLookup, error)
}

func NewCalendarService(cache CacheReader, classID int, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarService{cache: cache, classID: classID, loc: loc}
}

// Feed serializes the cancellations of the last fetch. A missing teachers
// file only drops teacher names.
func (s *CalendarService) Feed(now time.Time) (string, error) {
	entries, err := s.cache.LoadTimetable()
	if err != nil {
		return "", err
	}
	subjects, err := s.cache.LoadSubjects()
	if err != nil {
		return "", err
	}
	teachers, err := s.cache.LoadTeachers()
	if err != nil {
		teachers = model.TeacherLookup{}
	}

	return CancellationCalendar(s.classID, entries, subjects, teachers, s.loc, now).Serialize(), nil
}
