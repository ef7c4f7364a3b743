package mappers

import (
	"time"

	"moodle-sync/internal/domain"
)

// CourseType is the fixed value of course.type for imported courses.
const CourseType = "course"

// CourseRow is one row of the target course table.
type CourseRow struct {
	Name        string
	Type        string
	Lang        string
	StartAt     string // dd.mm.yyyy, empty when moodle has no start date
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Src         string
	CreatorID   int64
	IsPublic    bool
	Alias       string
	IsModules   bool
}

// CourseColumns lists the course columns in the order of CourseRow.Values.
var CourseColumns = []string{
	"name", "type", "lang", "start_at", "description", "created_at", "updated_at",
	"src", "creator_id", "is_public", "alias", "is_modules",
}

// ToCourseRow maps a moodle course to its target row. Epoch values are
// interpreted in loc.
func ToCourseRow(c domain.Course, src string, creatorID int64, loc *time.Location) CourseRow {
	return CourseRow{
		Name:        c.FullName,
		Type:        CourseType,
		Lang:        c.Language,
		StartAt:     FormatStartDate(c.StartTime, loc),
		Description: c.Description,
		CreatedAt:   EpochTime(c.TimeCreated, loc),
		UpdatedAt:   EpochTime(c.TimeUpdated, loc),
		Src:         src,
		CreatorID:   creatorID,
		IsPublic:    true,
		Alias:       Transliterate(c.FullName),
		IsModules:   c.HasModules(),
	}
}

func (r CourseRow) Values() []any {
	return []any{
		r.Name, r.Type, r.Lang, r.StartAt, r.Description, r.CreatedAt, r.UpdatedAt,
		r.Src, r.CreatorID, r.IsPublic, r.Alias, r.IsModules,
	}
}

// FormatStartDate renders a unix timestamp as day.month.year.
func FormatStartDate(ts int64, loc *time.Location) string {
	if ts == 0 {
		return ""
	}
	return EpochTime(ts, loc).Format("02.01.2006")
}

// EpochTime converts unix seconds to a time in loc (local time when loc is nil).
func EpochTime(ts int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc)
}
