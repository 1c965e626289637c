package service

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stemsi/untis-notifier/internal/model"
)

func lesson(id, date, start, end, class, subject int, code string) model.TimetableEntry {
	return model.TimetableEntry{
		ID:        id,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Classes:   []model.ElementRef{{ID: class}},
		Subjects:  []model.ElementRef{{ID: subject}},
		Code:      code,
	}
}

func TestCancellationCalendar(t *testing.T) {
	entries := []model.TimetableEntry{
		lesson(1, 20261021, 940, 1025, 500, 10, model.CodeCancelled),
		lesson(2, 20261021, 750, 835, 500, 11, model.CodeCancelled),
		lesson(3, 20261021, 840, 925, 500, 10, ""),
		lesson(4, 20261021, 1030, 1115, 999, 10, model.CodeCancelled),
		lesson(5, 20261022, 750, 835, 500, 42, model.CodeCancelled),
	}
	subjects := []model.Subject{{ID: 10, Name: "M"}, {ID: 11, Name: "D"}}
	teachers := model.TeacherLookup{"M": "Müller"}

	cal := CancellationCalendar(500, entries, subjects, teachers, time.UTC, time.Date(2026, 10, 21, 6, 0, 0, 0, time.UTC))

	events := cal.Events()
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	summaries := []string{
		events[0].GetProperty(ics.ComponentPropertySummary).Value,
		events[1].GetProperty(ics.ComponentPropertySummary).Value,
		events[2].GetProperty(ics.ComponentPropertySummary).Value,
	}
	want := []string{"D entfällt", "M entfällt", "Unterricht entfällt"}
	for i := range want {
		if summaries[i] != want[i] {
			t.Errorf("event %d summary = %q, want %q", i, summaries[i], want[i])
		}
	}

	if got := events[1].GetProperty(ics.ComponentPropertyDescription).Value; got != "3. Stunde bei Müller" {
		t.Errorf("description = %q", got)
	}
	if got := events[0].GetProperty(ics.ComponentPropertyDtStart).Value; got != "20261021T075000Z" {
		t.Errorf("DTSTART = %q", got)
	}

	out := cal.Serialize()
	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "PRODID:"+calendarProductID) {
		t.Errorf("serialized calendar missing header:\n%s", out)
	}
}

func TestLessonTime(t *testing.T) {
	got := lessonTime(20261018, 1335, time.UTC)
	want := time.Date(2026, 10, 18, 13, 35, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("lessonTime() = %v, want %v", got, want)
	}
}
