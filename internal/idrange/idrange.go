// Package idrange recovers the identifiers assigned by an auto-increment column
// to the rows of one multi-row INSERT.
//
// The driver reports a single id for the statement (MySQL reports the first one,
// SQLite's last_insert_rowid reports the last one). The remaining ids are derived
// arithmetically, which is only correct while the table's auto-increment hands
// out one contiguous block per statement. Callers must keep a single writer on
// the affected tables; a violation is not detectable here and silently assigns
// wrong ids.
package idrange

import (
	"errors"
	"fmt"
	"sort"
)

// Anchor tells which row of the batch the reference id belongs to.
type Anchor int

const (
	// AnchorFirst: the reference id is the id of the first inserted row.
	AnchorFirst Anchor = iota
	// AnchorLast: the reference id is the id of the last inserted row.
	AnchorLast
)

func (a Anchor) String() string {
	switch a {
	case AnchorFirst:
		return "first"
	case AnchorLast:
		return "last"
	default:
		return fmt.Sprintf("anchor(%d)", int(a))
	}
}

var ErrInvalidRange = errors.New("idrange: invalid range")

// Reconstruct returns the n ids of a batch in insertion order.
// step is the auto-increment increment (1 unless the server is configured otherwise).
func Reconstruct(anchor Anchor, ref int64, n int, step int64) ([]int64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative row count %d", ErrInvalidRange, n)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %d", ErrInvalidRange, step)
	}
	if n == 0 {
		return []int64{}, nil
	}

	first := ref
	if anchor == AnchorLast {
		first = ref - int64(n-1)*step
	}
	if first <= 0 {
		return nil, fmt.Errorf("%w: reference id %d (%s) cannot cover %d rows", ErrInvalidRange, ref, anchor, n)
	}

	ids := make([]int64, n)
	for i := range ids {
		ids[i] = first + int64(i)*step
	}
	return ids, nil
}

// Sorted returns a sorted copy of ids. RETURNING clauses do not promise row order,
// but ids generated by one statement increase with insertion order.
func Sorted(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Zip pairs each row with its id. It fails when the counts differ.
func Zip[T any](rows []T, ids []int64) ([]Assigned[T], error) {
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("%w: %d rows but %d ids", ErrInvalidRange, len(rows), len(ids))
	}
	out := make([]Assigned[T], len(rows))
	for i := range rows {
		out[i] = Assigned[T]{ID: ids[i], Row: rows[i]}
	}
	return out, nil
}

// Assigned is a row together with its generated id.
type Assigned[T any] struct {
	ID  int64
	Row T
}
