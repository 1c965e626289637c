package model

// CodeCancelled marks a timetable entry whose lesson does not take place.
const CodeCancelled = "cancelled"

// ElementRef references a class, subject, teacher or room by id.
type ElementRef struct {
	ID int `json:"id"`
}

// TimetableEntry is one lesson of the WebUntis getTimetable result.
// StartTime and EndTime are HHMM-encoded (750 is 07:50).
type TimetableEntry struct {
	ID         int          `json:"id"`
	Date       int          `json:"date"`
	StartTime  int          `json:"startTime"`
	EndTime    int          `json:"endTime"`
	Classes    []ElementRef `json:"kl"`
	Subjects   []ElementRef `json:"su"`
	Teachers   []ElementRef `json:"te,omitempty"`
	Rooms      []ElementRef `json:"ro,omitempty"`
	LessonType string       `json:"lstype,omitempty"`
	Code       string       `json:"code,omitempty"`
}

func (e TimetableEntry) ClassIDs() []int {
	return refIDs(e.Classes)
}

func (e TimetableEntry) SubjectIDs() []int {
	return refIDs(e.Subjects)
}

// HasClass reports whether classID appears anywhere in the entry's class list.
func (e TimetableEntry) HasClass(classID int) bool {
	for _, c := range e.Classes {
		if c.ID == classID {
			return true
		}
	}
	return false
}

func (e TimetableEntry) IsCancelled() bool {
	return e.Code == CodeCancelled
}

func refIDs(refs []ElementRef) []int {
	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// PeriodTable maps a lesson start time to the period number shown to pupils.
var PeriodTable = map[int]int{
	750:  1,
	840:  2,
	940:  3,
	1030: 4,
	1130: 5,
	1220: 6,
	1335: 7,
	1415: 8,
	1505: 9,
	1545: 10,
	1625: 11,
	1705: 12,
}

// PeriodOf resolves the period number for an HHMM start time.
func PeriodOf(startTime int) (int, bool) {
	p, ok := PeriodTable[startTime]
	return p, ok
}
