package model

// Subject is one record of the WebUntis getSubjects result.
// Name is the short code (e.g. "MA1"), not a display name.
type Subject struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LongName      string `json:"longName,omitempty"`
	AlternateName string `json:"alternateName,omitempty"`
	Active        bool   `json:"active"`
}

// TeacherLookup maps a subject code to the display name of its teacher.
// It is maintained by hand in teachers.json.
type TeacherLookup map[string]string
