package main

import (
	"bytes"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodle-sync/internal/config"
)

func fakeMoodle(t *testing.T) *httptest.Server {
	t.Helper()
	responses := map[string]string{
		"core_course_get_courses": `[
			{"id":1,"shortname":"site","fullname":"Front","format":"site"},
			{"id":2,"shortname":"go","fullname":"Основы Go","format":"topics","startdate":1725235200},
			{"id":3,"shortname":"quiz","fullname":"Quiz only","format":"singleactivity"}]`,
		"core_course_get_contents:2": `[{"name":"Intro","modules":[{"name":"Hello"},{"name":"Tooling"}]}]`,
		"core_enrol_get_enrolled_users:2": `[
			{"id":10,"username":"teach","firstname":"Ivan","email":"t@example.com","roles":[{"shortname":"editingteacher"}]},
			{"id":11,"username":"stud","firstname":"Anna","email":"s@example.com","roles":[{"shortname":"student"}]}]`,
		"core_enrol_get_enrolled_users:3": `[
			{"id":11,"username":"stud","firstname":"Anna","email":"s@example.com","roles":[{"shortname":"student"}]}]`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		key := r.PostForm.Get("wsfunction")
		if id := r.PostForm.Get("courseid"); id != "" {
			key += ":" + id
		}
		body, ok := responses[key]
		if !ok {
			http.Error(w, "unexpected "+key, http.StatusBadRequest)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	srv := fakeMoodle(t)

	t.Setenv("MOODLE_URL", srv.URL)
	t.Setenv("MOODLE_TOKEN", "tok")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", filepath.Join(dir, "platform.db"))
	t.Setenv("DB_TIMEZONE", "UTC")
	t.Setenv("IMPORT_BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "debug")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMigrateAndSync(t *testing.T) {
	dir := setupEnv(t)

	out, _, err := run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 1 migration(s)")

	out, _, err = run(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "applied")

	report := filepath.Join(dir, "out", "report.csv")
	_, logs, err := run(t, "sync", "--report", report)
	require.NoError(t, err)
	assert.Contains(t, logs, "run finished")

	f, err := os.Open(report)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "2", records[1][1])
	assert.Equal(t, "imported", records[1][4])
	assert.Equal(t, "3", records[2][1])
	// the quiz course has only a student
	assert.Equal(t, "failed", records[2][4])
	assert.Equal(t, "integrity", records[2][11])
}

func TestSyncDryRunNeedsNoDatabase(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_NAME", "")

	_, logs, err := run(t, "sync", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, logs, "planned=2")
}

func TestSyncReportsMissingConfig(t *testing.T) {
	t.Setenv("MOODLE_TOKEN", "")
	t.Setenv("MOODLE_URL", "")

	_, _, err := run(t, "sync")
	require.Error(t, err)
	var mk *config.MissingKeysError
	require.ErrorAs(t, err, &mk)
	assert.Contains(t, mk.Keys, "moodle.token")
}

func TestSyncSFTPNeedsReport(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "sync", "--sftp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sftp")
}

func TestCoursesCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := run(t, "courses")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Основы Go")
	assert.NotContains(t, out, "Front")
}

func TestStoreOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Host = "db"
	cfg.Database.Name = "platform"
	cfg.Database.Timezone = "UTC"
	cfg.Database.LockTimeout = time.Minute

	opts, err := storeOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", opts.Driver)
	assert.Equal(t, "db", opts.Host)
	assert.Equal(t, 500, opts.BatchSize)
	assert.Equal(t, time.Minute, opts.LockTimeout)
	assert.Equal(t, "UTC", opts.Location.String())

	cfg.Database.Timezone = "Nowhere/Else"
	_, err = storeOptions(cfg)
	assert.Error(t, err)
}
