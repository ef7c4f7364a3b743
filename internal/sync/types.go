package sync

import (
	"time"

	"moodle-sync/internal/store"
)

// Status of one course in a run.
type Status string

const (
	StatusImported Status = "imported"
	StatusFailed   Status = "failed"
	// StatusPlanned is used by dry runs, nothing was written.
	StatusPlanned Status = "planned"
)

// Outcome is the report line of one course.
type Outcome struct {
	CourseID    int64 // moodle id
	ShortName   string
	Name        string
	Status      Status
	TargetID    int64 // course id on the platform
	CreatorID   int64
	UsersNew    int
	UsersReused int
	Modules     int
	Lessons     int
	Class       store.Class
	Err         error
	Duration    time.Duration
}

// Summary describes a run. Outcomes are in import order and only cover courses
// the run reached.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

func (s Summary) Count(st Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == st {
			n++
		}
	}
	return n
}
