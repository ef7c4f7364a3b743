// Package providers defines where courses come from.
package providers

import (
	"context"
	"errors"

	"moodle-sync/internal/domain"
)

// ErrExtraction wraps every failure to read courses from a source. A run that
// sees it imports nothing.
var ErrExtraction = errors.New("extraction failed")

type CourseProvider interface {
	Name() string
	// ListCourses returns every course with its program and participants.
	ListCourses(ctx context.Context) ([]domain.Course, error)
}
