package store

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"moodle-sync/internal/idrange"
)

// Dialect describes how one SQL backend quotes identifiers, binds parameters
// and reports generated ids.
type Dialect struct {
	Name       string
	DriverName string

	// Returning is true when INSERT ... RETURNING id is available. Without it,
	// ids of a multi-row insert are reconstructed from LastInsertId.
	Returning bool
	// Anchor is the row LastInsertId refers to after a multi-row insert.
	Anchor idrange.Anchor

	placeholder sq.PlaceholderFormat
	quote       string
}

var (
	MySQL = Dialect{
		Name:        "mysql",
		DriverName:  "mysql",
		Anchor:      idrange.AnchorFirst,
		placeholder: sq.Question,
		quote:       "`",
	}
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		Returning:   true,
		Anchor:      idrange.AnchorLast,
		placeholder: sq.Question,
		quote:       `"`,
	}
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		Returning:   true,
		Anchor:      idrange.AnchorFirst,
		placeholder: sq.Dollar,
		quote:       `"`,
	}
)

// DialectFor resolves a configured driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("store: unsupported driver %q", name)
	}
}

// Quote quotes an identifier. Table and column names such as user and order
// are reserved words in some backends.
func (d Dialect) Quote(ident string) string {
	return d.quote + strings.ReplaceAll(ident, d.quote, d.quote+d.quote) + d.quote
}

func (d Dialect) quoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, s := range idents {
		out[i] = d.Quote(s)
	}
	return out
}

// insert builds a multi-row INSERT for rows.
func (d Dialect) insert(table string, columns []string, rows [][]any, returning bool) (string, []any, error) {
	b := sq.Insert(d.Quote(table)).
		Columns(d.quoteAll(columns)...).
		PlaceholderFormat(d.placeholder)
	for _, r := range rows {
		if len(r) != len(columns) {
			return "", nil, fmt.Errorf("store: insert into %s: row has %d values, expected %d", table, len(r), len(columns))
		}
		b = b.Values(r...)
	}
	if returning {
		b = b.Suffix("RETURNING " + d.Quote("id"))
	}
	return b.ToSql()
}
