package service

import (
	"github.com/stemsi/untis-notifier/internal/model"
)

type lessonKey struct {
	date, start, subject int
}

func keyOf(e model.TimetableEntry) lessonKey {
	k := lessonKey{date: e.Date, start: e.StartTime}
	if ids := e.SubjectIDs(); len(ids) > 0 {
		k.subject = ids[0]
	}
	return k
}

// NewlyCancelled returns the cancelled entries of classID in current that
// were not already cancelled in previous.
func NewlyCancelled(classID int, previous, current []model.TimetableEntry) []model.TimetableEntry {
	seen := make(map[lessonKey]bool)
	for _, e := range previous {
		if e.HasClass(classID) && e.IsCancelled() {
			seen[keyOf(e)] = true
		}
	}

	var fresh []model.TimetableEntry
	for _, e := range current {
		if e.HasClass(classID) && e.IsCancelled() && !seen[keyOf(e)] {
			fresh = append(fresh, e)
		}
	}
	return fresh
}
