package domain

// User is a course participant as reported by moodle.
// Email is the natural key used to match users against the target platform.
type User struct {
	ID          int64 // moodle user id
	UserName    string
	FirstName   string
	LastName    string
	FullName    string
	Description string
	Email       string
	Img         string
	IsTeacher   bool
}

// Role returns the auth_assignment item name for the user.
func (u User) Role() string {
	if u.IsTeacher {
		return RoleTeacher
	}
	return RoleStudent
}

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// ExistsUser is a user previously imported into the target platform.
type ExistsUser struct {
	ID    int64  `db:"id"`
	Email string `db:"email"`
}
