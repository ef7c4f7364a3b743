package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"moodle-sync/internal/idrange"
)

var (
	// ErrIntegrity marks failures that reject one course but leave the run healthy.
	ErrIntegrity = errors.New("integrity violation")
	// ErrLockTimeout is returned when the import lock could not be taken in time.
	ErrLockTimeout = errors.New("store: import lock not acquired")
	// ErrCommit wraps a failed COMMIT.
	ErrCommit = errors.New("store: commit failed")
)

// Class groups database errors by how a run should react to them.
type Class int

const (
	ClassOther Class = iota
	// ClassConnectivity: the connection could not be opened or was lost.
	ClassConnectivity
	// ClassIntegrity: a constraint or a data invariant rejected the course.
	ClassIntegrity
)

func (c Class) String() string {
	switch c {
	case ClassConnectivity:
		return "connectivity"
	case ClassIntegrity:
		return "integrity"
	default:
		return "other"
	}
}

// Classify inspects err (and everything it wraps) for known driver errors.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	if errors.Is(err, ErrIntegrity) || errors.Is(err, idrange.ErrInvalidRange) {
		return ClassIntegrity
	}
	if errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ClassConnectivity
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, 1062, 1364, 1406, 1451, 1452, 1366, 3819:
			return ClassIntegrity
		case 1205, 2006, 2013:
			return ClassConnectivity
		}
		return ClassOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return ClassIntegrity
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "55P03":
			return ClassConnectivity
		}
		return ClassOther
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH:
			return ClassIntegrity
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
			return ClassConnectivity
		}
		return ClassOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnectivity
	}
	return ClassOther
}
