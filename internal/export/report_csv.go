// Package export writes run reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	runsync "moodle-sync/internal/sync"
)

// Keep header order EXACT, downstream sheets read columns by position.
var reportHeader = []string{
	"RUN_ID",
	"MOODLE_COURSE_ID",
	"SHORTNAME",
	"COURSE_NAME",
	"STATUS",
	"TARGET_COURSE_ID",
	"CREATOR_ID",
	"USERS_NEW",
	"USERS_REUSED",
	"MODULES",
	"LESSONS",
	"ERROR_CLASS",
	"ERROR",
	"DURATION_MS",
}

// WriteReportCSV writes one line per outcome of sum.
func WriteReportCSV(w io.Writer, sum runsync.Summary) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, o := range sum.Outcomes {
		if err := cw.Write(toReportRow(sum.RunID, o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportFile writes the report to path, creating parent directories.
func WriteReportFile(path string, sum runsync.Summary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: mkdir %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteReportCSV(f, sum); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return f.Close()
}

func toReportRow(runID string, o runsync.Outcome) []string {
	class, msg := "", ""
	if o.Err != nil {
		class = o.Class.String()
		msg = oneLine(o.Err.Error())
	}

	return []string{
		runID,
		strconv.FormatInt(o.CourseID, 10),
		o.ShortName,
		o.Name,
		string(o.Status),
		idOrEmpty(o.TargetID),
		idOrEmpty(o.CreatorID),
		strconv.Itoa(o.UsersNew),
		strconv.Itoa(o.UsersReused),
		strconv.Itoa(o.Modules),
		strconv.Itoa(o.Lessons),
		class,
		msg,
		strconv.FormatInt(o.Duration.Milliseconds(), 10),
	}
}

func idOrEmpty(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
