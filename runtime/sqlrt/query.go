package sqlrt

import (
	"database/sql"
	"iter"
)

// Query is a bound statement in sql mode. Because database/sql owns the row
// buffer and the lib/pq wire format is text, the staging representation R is
// already owned; the duality with pgx mode is in the execution model, not
// the decode path. Bind and MapQuery are pure; the terminal operations
// block.
type Query[R, T any] struct {
	client  GenericClient
	stmt    *Stmt
	args    []any
	extract func(*sql.Rows) (R, error)
	mapper  func(R) T
}

// NewQuery is called by generated Bind functions.
func NewQuery[R, T any](c GenericClient, stmt *Stmt, args []any, extract func(*sql.Rows) (R, error), mapper func(R) T) Query[R, T] {
	return Query[R, T]{client: c, stmt: stmt, args: args, extract: extract, mapper: mapper}
}

// MapQuery returns a new Query with the mapping function replaced.
func MapQuery[R, T, U any](q Query[R, T], f func(R) U) Query[R, U] {
	return Query[R, U]{client: q.client, stmt: q.stmt, args: q.args, extract: q.extract, mapper: f}
}

func (q Query[R, T]) run() (*sql.Rows, error) {
	st, err := q.stmt.Prepare(q.client)
	if err != nil {
		return nil, err
	}
	return st.Query(q.args...)
}

func (q Query[R, T]) row(rows *sql.Rows) (T, error) {
	var zero T
	r, err := q.extract(rows)
	if err != nil {
		return zero, err
	}
	return q.mapper(r), nil
}

// One executes the query expecting exactly one row.
func (q Query[R, T]) One() (T, error) {
	var zero T
	rows, err := q.run()
	if err != nil {
		return zero, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, ErrNoRows
	}
	v, err := q.row(rows)
	if err != nil {
		return zero, err
	}
	if rows.Next() {
		return zero, ErrTooManyRows
	}
	return v, rows.Err()
}

// Opt executes the query expecting zero or one row; nil means zero.
func (q Query[R, T]) Opt() (*T, error) {
	rows, err := q.run()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	v, err := q.row(rows)
	if err != nil {
		return nil, err
	}
	if rows.Next() {
		return nil, ErrTooManyRows
	}
	return &v, rows.Err()
}

// All executes the query and collects every row in server-returned order.
func (q Query[R, T]) All() ([]T, error) {
	var out []T
	rows, err := q.run()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := q.row(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Iter executes the query and returns a lazy, single-consumption sequence.
// Abandoning the sequence before exhaustion closes the rows; it cannot be
// restarted.
func (q Query[R, T]) Iter() iter.Seq2[T, error] {
	consumed := false
	return func(yield func(T, error) bool) {
		if consumed {
			return
		}
		consumed = true
		var zero T
		rows, err := q.run()
		if err != nil {
			yield(zero, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			v, err := q.row(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}
