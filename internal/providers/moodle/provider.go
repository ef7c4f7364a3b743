package moodle

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"moodle-sync/internal/concurrency"
	"moodle-sync/internal/domain"
	"moodle-sync/internal/providers"
)

var (
	DefaultSkipShortNames     = []string{"STUDY"}
	DefaultExcludedFirstNames = []string{"Администратор"}
	DefaultModularFormats     = []string{"topics", "weeks"}
)

// siteFormat marks the front page pseudo-course.
const siteFormat = "site"

// Provider adapts the moodle client to providers.CourseProvider.
type Provider struct {
	C       *Client
	Workers int

	// Nil slices fall back to the defaults above.
	SkipShortNames     []string
	ExcludedFirstNames []string
	ModularFormats     []string

	Log logrus.FieldLogger
}

func (p Provider) Name() string { return "moodle" }

// ListCourses fetches all courses and, in parallel, the program and the users of
// each. Any failed request fails the whole listing.
func (p Provider) ListCourses(ctx context.Context) ([]domain.Course, error) {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	raw, err := p.C.Courses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", providers.ErrExtraction, err)
	}

	skip := orDefault(p.SkipShortNames, DefaultSkipShortNames)
	kept := make([]Course, 0, len(raw))
	for _, c := range raw {
		if c.Format == siteFormat || slices.Contains(skip, c.ShortName) {
			log.WithFields(logrus.Fields{"course_id": c.ID, "shortname": c.ShortName}).Debug("course skipped")
			continue
		}
		kept = append(kept, c)
	}

	courses, err := concurrency.ProcessParallel(ctx, kept, concurrency.ParallelOptions{MaxWorkers: p.Workers},
		func(ctx context.Context, _ int, c Course) (domain.Course, error) {
			return p.course(ctx, c)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", providers.ErrExtraction, err)
	}

	log.WithFields(logrus.Fields{"listed": len(raw), "kept": len(courses)}).Info("moodle courses fetched")
	return courses, nil
}

func (p Provider) course(ctx context.Context, c Course) (domain.Course, error) {
	out := domain.Course{
		ID:          c.ID,
		URL:         p.C.CourseURL(c.ID),
		ShortName:   c.ShortName,
		FullName:    c.FullName,
		CategoryID:  c.CategoryID,
		Description: c.Summary,
		Format:      c.Format,
		TimeCreated: c.TimeCreated,
		TimeUpdated: c.TimeModified,
		StartTime:   c.StartDate,
		EndTime:     c.EndDate,
		Language:    c.Lang,
	}

	if slices.Contains(orDefault(p.ModularFormats, DefaultModularFormats), c.Format) {
		sections, err := p.C.Contents(ctx, c.ID)
		if err != nil {
			return domain.Course{}, err
		}
		out.Program = toProgram(sections)
	}

	users, err := p.C.EnrolledUsers(ctx, c.ID)
	if err != nil {
		return domain.Course{}, err
	}
	out.Users = p.toUsers(users)
	return out, nil
}

func toProgram(sections []Section) []domain.Module {
	program := make([]domain.Module, 0, len(sections))
	for _, s := range sections {
		lessons := make([]domain.Lesson, 0, len(s.Modules))
		for _, a := range s.Modules {
			// the API has no per-activity description
			lessons = append(lessons, domain.Lesson{Title: a.Name})
		}
		program = append(program, domain.Module{Title: s.Name, Description: s.Summary, Lessons: lessons})
	}
	return program
}

// toUsers keeps participants that hold a role in the course. The enrolment
// listing also returns users without one, they are not part of the course.
func (p Provider) toUsers(in []EnrolledUser) []domain.User {
	excluded := orDefault(p.ExcludedFirstNames, DefaultExcludedFirstNames)
	out := make([]domain.User, 0, len(in))
	for _, u := range in {
		if len(u.Roles) == 0 || slices.Contains(excluded, u.FirstName) {
			continue
		}
		out = append(out, domain.User{
			ID:          u.ID,
			UserName:    u.UserName,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			FullName:    u.FullName,
			Description: u.Description,
			Email:       u.Email,
			IsTeacher:   isTeacher(u.Roles),
		})
	}
	return out
}

// isTeacher matches "teacher" and "editingteacher".
func isTeacher(roles []Role) bool {
	for _, r := range roles {
		if strings.Contains(r.ShortName, "teacher") {
			return true
		}
	}
	return false
}

func orDefault(v, def []string) []string {
	if v == nil {
		return def
	}
	return v
}
