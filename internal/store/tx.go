package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"moodle-sync/internal/idrange"
)

// Tx is an import transaction bound to its dialect.
type Tx struct {
	*sqlx.Tx
	dialect   Dialect
	batchSize int
	idStep    int64
}

// BatchSize is the maximum number of rows or IN-list values per statement.
func (tx *Tx) BatchSize() int { return tx.batchSize }

// Q quotes an identifier for the current dialect.
func (tx *Tx) Q(ident string) string { return tx.dialect.Quote(ident) }

// In expands slice arguments of query (written with ? placeholders) and rebinds
// it for the dialect.
func (tx *Tx) In(query string, args ...any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return tx.Rebind(q), a, nil
}

// InsertOne inserts a single row and returns its id.
func (tx *Tx) InsertOne(ctx context.Context, table string, columns []string, values ...any) (int64, error) {
	ids, err := tx.insertChunk(ctx, table, columns, [][]any{values})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertReturningIDs inserts rows and returns the generated id of every row, in
// row order. Rows are sent in chunks of the configured batch size.
func (tx *Tx) InsertReturningIDs(ctx context.Context, table string, columns []string, rows [][]any) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, c := range Chunks(len(rows), tx.batchSize) {
		got, err := tx.insertChunk(ctx, table, columns, rows[c.Start:c.End])
		if err != nil {
			return nil, err
		}
		ids = append(ids, got...)
	}
	return ids, nil
}

// InsertRows inserts rows without recovering ids.
func (tx *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	for _, c := range Chunks(len(rows), tx.batchSize) {
		query, args, err := tx.dialect.insert(table, columns, rows[c.Start:c.End], false)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

func (tx *Tx) insertChunk(ctx context.Context, table string, columns []string, rows [][]any) ([]int64, error) {
	if len(rows) == 0 {
		return []int64{}, nil
	}
	if tx.dialect.Returning {
		return tx.insertReturning(ctx, table, columns, rows)
	}

	query, args, err := tx.dialect.insert(table, columns, rows, false)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: rows affected: %w", table, err)
	}
	if affected != int64(len(rows)) {
		return nil, fmt.Errorf("%w: insert into %s affected %d rows, expected %d", idrange.ErrInvalidRange, table, affected, len(rows))
	}
	ref, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: last insert id: %w", table, err)
	}
	ids, err := idrange.Reconstruct(tx.dialect.Anchor, ref, len(rows), tx.idStep)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return ids, nil
}

func (tx *Tx) insertReturning(ctx context.Context, table string, columns []string, rows [][]any) ([]int64, error) {
	query, args, err := tx.dialect.insert(table, columns, rows, true)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("%w: insert into %s returned %d ids for %d rows", idrange.ErrInvalidRange, table, len(ids), len(rows))
	}
	return idrange.Sorted(ids), nil
}

// Chunk is a half-open index range [Start, End).
type Chunk struct {
	Start, End int
}

// Chunks splits n items into consecutive ranges of at most size items.
func Chunks(n, size int) []Chunk {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([]Chunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, Chunk{Start: start, End: end})
	}
	return out
}
