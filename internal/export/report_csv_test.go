package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moodle-sync/internal/store"
	runsync "moodle-sync/internal/sync"
)

func sampleSummary() runsync.Summary {
	return runsync.Summary{
		RunID: "run-1",
		Outcomes: []runsync.Outcome{
			{
				CourseID: 2, ShortName: "go", Name: "Go, basics", Status: runsync.StatusImported,
				TargetID: 200, CreatorID: 5, UsersNew: 3, UsersReused: 1, Modules: 2, Lessons: 4,
				Duration: 1500 * time.Millisecond,
			},
			{
				CourseID: 3, Name: "Broken", Status: runsync.StatusFailed,
				Class: store.ClassIntegrity, Err: errors.New("import course 3: teacher:\nno teacher"),
			},
		},
	}
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReportCSV(&buf, sampleSummary()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.Contains(buf.String(), "\r\n") {
		t.Error("Expected CRLF line endings")
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(reportHeader, ",") {
		t.Errorf("Unexpected header %v", records[0])
	}

	ok := records[1]
	if ok[0] != "run-1" || ok[1] != "2" || ok[3] != "Go, basics" || ok[4] != "imported" || ok[5] != "200" {
		t.Errorf("Unexpected imported row %v", ok)
	}
	if ok[12] != "" || ok[13] != "1500" {
		t.Errorf("Unexpected error/duration columns %v", ok)
	}

	failed := records[2]
	if failed[4] != "failed" || failed[5] != "" || failed[11] != "integrity" {
		t.Errorf("Unexpected failed row %v", failed)
	}
	if failed[12] != "import course 3: teacher: no teacher" {
		t.Errorf("Expected single-line error, got %q", failed[12])
	}
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.csv")

	if err := WriteReportFile(path, sampleSummary()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected report file, got %v", err)
	}
	if !strings.HasPrefix(string(raw), "RUN_ID,MOODLE_COURSE_ID") {
		t.Errorf("Unexpected file content %q", raw)
	}
}
