package moodle

import "fmt"

// Course is one entry of core_course_get_courses.
type Course struct {
	ID           int64  `json:"id"`
	ShortName    string `json:"shortname"`
	FullName     string `json:"fullname"`
	CategoryID   int64  `json:"categoryid"`
	Summary      string `json:"summary"`
	Format       string `json:"format"`
	TimeCreated  int64  `json:"timecreated"`
	TimeModified int64  `json:"timemodified"`
	Lang         string `json:"lang"`
	StartDate    int64  `json:"startdate"`
	EndDate      int64  `json:"enddate"`
}

// Section is one entry of core_course_get_contents.
type Section struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	Summary string     `json:"summary"`
	Modules []Activity `json:"modules"`
}

// Activity is a course module (lesson) inside a section.
type Activity struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	ModName string `json:"modname"`
}

// EnrolledUser is one entry of core_enrol_get_enrolled_users.
type EnrolledUser struct {
	ID          int64  `json:"id"`
	UserName    string `json:"username"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	FullName    string `json:"fullname"`
	Description string `json:"description"`
	Email       string `json:"email"`
	Roles       []Role `json:"roles"`
}

type Role struct {
	RoleID    int64  `json:"roleid"`
	ShortName string `json:"shortname"`
}

// APIError is the exception object moodle returns with status 200.
type APIError struct {
	Function  string `json:"-"`
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moodle %s: %s (%s)", e.Function, e.Message, e.ErrorCode)
}
