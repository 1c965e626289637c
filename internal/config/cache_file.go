package config

// CacheFileStruct names the flat JSON files shared between the fetch and
// compose steps.
type CacheFileStruct struct {
	Subjects  string
	Timetable string
	Teachers  string
}

var CacheFile = &CacheFileStruct{
	Subjects:  "subjects.json",
	Timetable: "timetable.json",
	Teachers:  "teachers.json",
}
