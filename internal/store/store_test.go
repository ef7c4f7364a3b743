package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodle-sync/internal/idrange"
)

// newTestDB opens an in-memory sqlite database with the import schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, Options{Driver: "sqlite", Name: ":memory:", BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := NewMigrator(db)
	require.NoError(t, err)
	_, err = m.Up(ctx)
	require.NoError(t, err)
	return db
}

func insertTestCourse(t *testing.T, tx *Tx) int64 {
	t.Helper()
	ctx := context.Background()

	userID, err := tx.InsertOne(ctx, "user",
		[]string{"username", "auth_key", "password_hash", "email", "created_at", "updated_at"},
		"teacher", "k", "h", "t@example.com", "2024-01-01 00:00:00", "2024-01-01 00:00:00")
	require.NoError(t, err)

	courseID, err := tx.InsertOne(ctx, "course",
		[]string{"name", "type", "created_at", "updated_at", "creator_id"},
		"Course", "course", "2024-01-01 00:00:00", "2024-01-01 00:00:00", userID)
	require.NoError(t, err)
	return courseID
}

func moduleRows(courseID int64, names ...string) [][]any {
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{n, courseID})
	}
	return rows
}

func namesByID(t *testing.T, db *DB, ids []int64) []string {
	t.Helper()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		var name string
		require.NoError(t, db.X().Get(&name, `SELECT name FROM course_module WHERE id = ?`, id))
		out = append(out, name)
	}
	return out
}

func TestInsertReturningIDsKeepsRowOrder(t *testing.T) {
	db := newTestDB(t)
	names := []string{"m1", "m2", "m3", "m4", "m5"}

	var ids []int64
	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		courseID := insertTestCourse(t, tx)
		var err error
		ids, err = tx.InsertReturningIDs(context.Background(), "course_module", []string{"name", "course_id"}, moduleRows(courseID, names...))
		return err
	})
	require.NoError(t, err)

	require.Len(t, ids, 5)
	assert.Equal(t, names, namesByID(t, db, ids))
}

func TestInsertReconstructedIDsKeepRowOrder(t *testing.T) {
	db := newTestDB(t)
	// sqlite without RETURNING reports the last rowid of the statement
	db.dialect.Returning = false
	db.dialect.Anchor = idrange.AnchorLast

	names := []string{"a", "b", "c"}
	var ids []int64
	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		courseID := insertTestCourse(t, tx)
		var err error
		ids, err = tx.InsertReturningIDs(context.Background(), "course_module", []string{"name", "course_id"}, moduleRows(courseID, names...))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, names, namesByID(t, db, ids))
}

func TestWithImportTxRollsBack(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")

	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		insertTestCourse(t, tx)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.X().Get(&n, `SELECT COUNT(*) FROM course`))
	assert.Equal(t, 0, n)
	require.NoError(t, db.X().Get(&n, `SELECT COUNT(*) FROM "user"`))
	assert.Equal(t, 0, n)
}

func TestForeignKeyViolationIsIntegrity(t *testing.T) {
	db := newTestDB(t)

	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRows(context.Background(), "course_lesson",
			[]string{"module_id", "name", "description", "order"},
			[][]any{{999, "orphan", "", 1}})
	})
	require.Error(t, err)
	assert.Equal(t, ClassIntegrity, Classify(err))
}

func TestInsertRejectsShortRow(t *testing.T) {
	db := newTestDB(t)

	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRows(context.Background(), "course_module", []string{"name", "course_id"}, [][]any{{"only name"}})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row has 1 values, expected 2")
}

func TestTxIn(t *testing.T) {
	db := newTestDB(t)

	err := db.WithImportTx(context.Background(), func(tx *Tx) error {
		q, args, err := tx.In(`SELECT id FROM course WHERE id IN (?) AND src = ?`, []int64{1, 2, 3}, "moodle")
		require.NoError(t, err)
		assert.Equal(t, `SELECT id FROM course WHERE id IN (?, ?, ?) AND src = ?`, q)
		assert.Equal(t, []any{int64(1), int64(2), int64(3), "moodle"}, args)
		return nil
	})
	require.NoError(t, err)
}

func TestChunks(t *testing.T) {
	testCases := []struct {
		n, size  int
		expected []Chunk
	}{
		{0, 10, nil},
		{3, 10, []Chunk{{0, 3}}},
		{5, 2, []Chunk{{0, 2}, {2, 4}, {4, 5}}},
		{4, 2, []Chunk{{0, 2}, {2, 4}}},
		{3, 0, []Chunk{{0, 3}}},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Chunks(tc.n, tc.size), "Chunks(%d, %d)", tc.n, tc.size)
	}
}

func TestMigratorStatusAndDown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m, err := NewMigrator(db)
	require.NoError(t, err)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st, 1)
	assert.Equal(t, int64(1), st[0].Version)
	assert.True(t, st[0].Applied)

	v, err := m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = db.X().Exec(`SELECT 1 FROM course`)
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
