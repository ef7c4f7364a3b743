package mappers

import (
	"testing"
	"time"

	"moodle-sync/internal/domain"
)

func TestTransliterate(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"привет мир", "privet-mir"},
		{"Основы Go", "osnovy-go"},
		{"Щука и ёж", "schuka-i-ezh"},
		{"Объявление", "obyavlenie"},
		{"Café déjà vu", "cafe-deja-vu"},
		{"  Go: 101  ", "go-101"},
		{"C++ / Rust", "c-rust"},
		{"", ""},
	}

	for _, tc := range testCases {
		result := Transliterate(tc.input)
		if result != tc.expected {
			t.Errorf("Transliterate(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestFormatStartDate(t *testing.T) {
	loc := time.UTC
	ts := time.Date(2023, time.September, 4, 10, 0, 0, 0, loc).Unix()

	if got := FormatStartDate(ts, loc); got != "04.09.2023" {
		t.Errorf("FormatStartDate() = %q, want %q", got, "04.09.2023")
	}
	if got := FormatStartDate(0, loc); got != "" {
		t.Errorf("FormatStartDate(0) = %q, want empty", got)
	}
}

func TestToCourseRow(t *testing.T) {
	loc := time.UTC
	created := time.Date(2022, time.January, 2, 3, 4, 5, 0, loc)
	course := domain.Course{
		ID:          12,
		FullName:    "Курс Go",
		Description: "desc",
		Language:    "ru",
		TimeCreated: created.Unix(),
		TimeUpdated: created.Add(time.Hour).Unix(),
		StartTime:   created.Unix(),
		Program:     []domain.Module{{Title: "m"}},
	}

	row := ToCourseRow(course, "moodle", 99, loc)

	if row.Name != "Курс Go" || row.Type != CourseType || row.Lang != "ru" {
		t.Errorf("unexpected identity fields: %+v", row)
	}
	if row.StartAt != "02.01.2022" {
		t.Errorf("Expected StartAt to be 02.01.2022, got %q", row.StartAt)
	}
	if !row.CreatedAt.Equal(created) || !row.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("unexpected timestamps: %v %v", row.CreatedAt, row.UpdatedAt)
	}
	if row.CreatorID != 99 || !row.IsPublic || !row.IsModules {
		t.Errorf("unexpected flags: %+v", row)
	}
	if row.Alias != "kurs-go" {
		t.Errorf("Expected Alias to be kurs-go, got %q", row.Alias)
	}
	if len(row.Values()) != len(CourseColumns) {
		t.Errorf("Values() has %d items, CourseColumns has %d", len(row.Values()), len(CourseColumns))
	}
}

func TestToCourseRowWithoutProgram(t *testing.T) {
	row := ToCourseRow(domain.Course{FullName: "x"}, "moodle", 1, time.UTC)
	if row.IsModules {
		t.Error("Expected IsModules to be false without program")
	}
	if row.StartAt != "" {
		t.Errorf("Expected empty StartAt, got %q", row.StartAt)
	}
}
