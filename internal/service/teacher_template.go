package service

import (
	"sort"

	"github.com/stemsi/untis-notifier/internal/model"
)

// MergeTeacherTemplate adds every subject name missing from teachers with an
// empty teacher so the lookup file can be completed by hand. Existing entries
// are never overwritten. It returns the merged lookup and the added codes in
// sorted order.
func MergeTeacherTemplate(teachers model.TeacherLookup, subjects []model.Subject) (model.TeacherLookup, []string) {
	merged := make(model.TeacherLookup, len(teachers)+len(subjects))
	for code, name := range teachers {
		merged[code] = name
	}

	var added []string
	for _, s := range subjects {
		if s.Name == "" {
			continue
		}
		if _, ok := merged[s.Name]; ok {
			continue
		}
		merged[s.Name] = ""
		added = append(added, s.Name)
	}
	sort.Strings(added)
	return merged, added
}
