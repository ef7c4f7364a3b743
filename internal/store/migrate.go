package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrations for a local copy of the target schema. The production schema is
// owned by the target platform; these exist for development and tests.
//
//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema for the connection's dialect.
type Migrator struct {
	p *goose.Provider
}

// NewMigrator prepares a goose provider for db.
func NewMigrator(db *DB) (*Migrator, error) {
	var gd goose.Dialect
	switch db.dialect.Name {
	case MySQL.Name:
		gd = goose.DialectMySQL
	case Postgres.Name:
		gd = goose.DialectPostgres
	case SQLite.Name:
		gd = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("store: no migrations for dialect %s", db.dialect.Name)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+db.dialect.Name)
	if err != nil {
		return nil, fmt.Errorf("store: migrations for %s: %w", db.dialect.Name, err)
	}
	p, err := goose.NewProvider(gd, db.SQL(), sub)
	if err != nil {
		return nil, fmt.Errorf("store: goose provider: %w", err)
	}
	return &Migrator{p: p}, nil
}

// Up applies all pending migrations and returns the applied versions.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	res, err := m.p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: migrate up: %w", err)
	}
	versions := make([]int64, 0, len(res))
	for _, r := range res {
		versions = append(versions, r.Source.Version)
	}
	return versions, nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	res, err := m.p.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: migrate down: %w", err)
	}
	return res.Source.Version, nil
}

// MigrationState is one row of Status.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	st, err := m.p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: migrate status: %w", err)
	}
	out := make([]MigrationState, 0, len(st))
	for _, s := range st {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
