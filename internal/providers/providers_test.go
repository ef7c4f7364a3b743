package providers

import (
	"context"
	"testing"

	"moodle-sync/internal/domain"
)

// MockProvider is a CourseProvider backed by functions.
type MockProvider struct {
	NameFunc        func() string
	ListCoursesFunc func(ctx context.Context) ([]domain.Course, error)
}

func (m *MockProvider) Name() string { return m.NameFunc() }

func (m *MockProvider) ListCourses(ctx context.Context) ([]domain.Course, error) {
	return m.ListCoursesFunc(ctx)
}

func TestMockProviderImplementsCourseProvider(t *testing.T) {
	var p CourseProvider = &MockProvider{
		NameFunc: func() string { return "mock" },
		ListCoursesFunc: func(ctx context.Context) ([]domain.Course, error) {
			return []domain.Course{{ID: 123, FullName: "Mock Course"}}, nil
		},
	}

	if p.Name() != "mock" {
		t.Errorf("Expected name to be 'mock', got %q", p.Name())
	}

	courses, err := p.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(courses) != 1 || courses[0].ID != 123 {
		t.Errorf("Unexpected courses: %+v", courses)
	}
}
