package importer

import (
	"fmt"

	"moodle-sync/internal/store"
)

// ErrNoTeacher is returned when no participant of a course holds the teacher
// role. It is an integrity error: the course is skipped, the run goes on.
var ErrNoTeacher = fmt.Errorf("%w: no teacher among course participants", store.ErrIntegrity)

// Stage names the step of an import that failed.
type Stage string

const (
	StageBegin      Stage = "begin"
	StageUsers      Stage = "users"
	StageTeacher    Stage = "teacher"
	StageCourse     Stage = "course"
	StageSubdomain  Stage = "subdomain"
	StageModules    Stage = "modules"
	StageLessons    Stage = "lessons"
	StageEnrolments Stage = "enrolments"
	StageCommit     Stage = "commit"
)

// StageError reports which step of a course import failed. The transaction has
// been rolled back by the time it is returned.
type StageError struct {
	Stage    Stage
	CourseID int64 // moodle course id
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("import course %d: %s: %v", e.CourseID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the progress of one import.
type State int

const (
	StatePending State = iota
	StateUsersReconciled
	StateTeacherResolved
	StateCourseInserted
	StateProgramInserted
	StateEnrolmentsInserted
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUsersReconciled:
		return "users_reconciled"
	case StateTeacherResolved:
		return "teacher_resolved"
	case StateCourseInserted:
		return "course_inserted"
	case StateProgramInserted:
		return "program_inserted"
	case StateEnrolmentsInserted:
		return "enrolments_inserted"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
