package domain

// Course is the canonical representation of a Moodle course inside this service.
// The moodle provider maps into this model and the importer maps from it.
type Course struct {
	ID          int64 // moodle course id
	URL         string
	ShortName   string
	FullName    string
	CategoryID  int64
	Description string
	Format      string // "topics", "weeks", "singleactivity", ...

	// Unix seconds, as returned by the moodle API. Zero means unset.
	TimeCreated int64
	TimeUpdated int64
	StartTime   int64
	EndTime     int64

	Language string

	// Program is nil for courses whose format has no module structure.
	// Module order is significant and is preserved on insert.
	Program []Module
	Users   []User
}

// Module is one section of a course program.
type Module struct {
	Title       string
	Description string
	Lessons     []Lesson
}

// Lesson is one activity inside a module. Lessons are numbered 1..k within their module.
type Lesson struct {
	Title       string
	Description string
}

// HasModules reports whether the course was fetched with a program.
func (c Course) HasModules() bool {
	return len(c.Program) > 0
}

// LessonCount is the total number of lessons across all modules.
func (c Course) LessonCount() int {
	n := 0
	for _, m := range c.Program {
		n += len(m.Lessons)
	}
	return n
}
