// Package store owns the connection to the target platform database: opening it,
// the per-course import transaction, and bulk inserts that recover generated ids.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver(SQLite.DriverName, sqlx.QUESTION)
}

// Options configures Open.
type Options struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	// Name is the schema name, or the database file for sqlite (":memory:" allowed).
	Name string

	// BatchSize caps the number of rows per INSERT statement.
	BatchSize int
	// IDStep is the server's auto-increment increment.
	IDStep int64

	LockName    string
	LockTimeout time.Duration

	MaxOpenConns int
	Location     *time.Location
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.IDStep <= 0 {
		o.IDStep = 1
	}
	if o.LockName == "" {
		o.LockName = "moodle-sync.import"
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 30 * time.Second
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// DB wraps the connection pool together with its dialect.
type DB struct {
	conn    *sqlx.DB
	dialect Dialect
	opts    Options
}

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*DB, error) {
	opts = opts.withDefaults()

	d, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := buildDSN(d, opts)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		// one connection: sqlite serializes writers and ":memory:" is per connection
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping %s: %w", d.Name, err)
	}

	return &DB{conn: conn, dialect: d, opts: opts}, nil
}

func buildDSN(d Dialect, o Options) (string, error) {
	switch d.Name {
	case MySQL.Name:
		cfg := mysql.NewConfig()
		cfg.User = o.User
		cfg.Passwd = o.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(portOr(o.Port, 3306)))
		cfg.DBName = o.Name
		cfg.ParseTime = true
		cfg.Loc = o.Location
		return cfg.FormatDSN(), nil
	case Postgres.Name:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(o.User, o.Password),
			Host:   net.JoinHostPort(o.Host, strconv.Itoa(portOr(o.Port, 5432))),
			Path:   "/" + o.Name,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
		return u.String(), nil
	case SQLite.Name:
		if o.Name == "" {
			return "", errors.New("store: sqlite needs a database path")
		}
		return "file:" + o.Name + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	}
	return "", fmt.Errorf("store: no dsn for dialect %s", d.Name)
}

func portOr(p, def int) int {
	if p <= 0 {
		return def
	}
	return p
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// SQL exposes the pool for migrations and read-only inspection.
func (db *DB) SQL() *sql.DB { return db.conn.DB }

// X exposes the sqlx handle.
func (db *DB) X() *sqlx.DB { return db.conn }

// WithImportTx runs fn inside one transaction on a pinned connection while holding
// the cross-process import lock. The transaction is committed when fn returns nil
// and rolled back otherwise.
//
// Ids of multi-row inserts are reconstructed arithmetically on MySQL, so every
// importer instance must go through this lock.
func (db *DB) WithImportTx(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := db.conn.Connx(ctx)
	if err != nil {
		return fmt.Errorf("store: acquire connection: %w", err)
	}
	defer conn.Close()

	release, err := db.lock(ctx, conn)
	if err != nil {
		return err
	}
	defer release()

	sqlTx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	tx := &Tx{Tx: sqlTx, dialect: db.dialect, batchSize: db.opts.BatchSize, idStep: db.opts.IDStep}

	if db.dialect.Name == Postgres.Name {
		if err := db.lockPostgres(ctx, tx); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
	}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("store: rollback: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}
	return nil
}

// lock takes the session-level MySQL named lock on the pinned connection.
// Postgres locks inside the transaction and sqlite serializes writers itself.
func (db *DB) lock(ctx context.Context, conn *sqlx.Conn) (func(), error) {
	if db.dialect.Name != MySQL.Name {
		return func() {}, nil
	}

	secs := int(math.Ceil(db.opts.LockTimeout.Seconds()))
	var got sql.NullInt64
	if err := conn.QueryRowxContext(ctx, "SELECT GET_LOCK(?, ?)", db.opts.LockName, secs).Scan(&got); err != nil {
		return nil, fmt.Errorf("store: get lock %q: %w", db.opts.LockName, err)
	}
	if !got.Valid || got.Int64 != 1 {
		return nil, fmt.Errorf("%w: %q after %s", ErrLockTimeout, db.opts.LockName, db.opts.LockTimeout)
	}

	return func() {
		// ctx may already be canceled; the lock must still be released
		_, _ = conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", db.opts.LockName)
	}, nil
}

func (db *DB) lockPostgres(ctx context.Context, tx *Tx) error {
	ms := db.opts.LockTimeout.Milliseconds()
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
		return fmt.Errorf("store: set lock timeout: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", db.opts.LockName); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrLockTimeout, db.opts.LockName, err)
	}
	return nil
}
