package pgxrt

import (
	"context"
	"iter"

	"github.com/jackc/pgx/v5"
)

// Query is a bound statement: positional arguments, a row-decode function
// producing the borrowed staging value R, and a mapping function from R to
// the result type T. Bind and MapQuery are pure; only the four terminal
// operations perform I/O.
//
// R is a borrowed representation: extract returns views into the row buffer
// that are valid only until the next row is fetched, so map must materialize
// whatever it keeps. The generated default mapper is the row's materialize
// conversion.
type Query[R, T any] struct {
	client  GenericClient
	stmt    *Stmt
	args    []any
	extract func(pgx.Rows) (R, error)
	mapper  func(R) T
}

// NewQuery is called by generated Bind functions.
func NewQuery[R, T any](c GenericClient, stmt *Stmt, args []any, extract func(pgx.Rows) (R, error), mapper func(R) T) Query[R, T] {
	return Query[R, T]{client: c, stmt: stmt, args: args, extract: extract, mapper: mapper}
}

// MapQuery returns a new Query with the mapping function replaced. It is a
// free function because Go methods cannot introduce type parameters.
func MapQuery[R, T, U any](q Query[R, T], f func(R) U) Query[R, U] {
	return Query[R, U]{client: q.client, stmt: q.stmt, args: q.args, extract: q.extract, mapper: f}
}

func (q Query[R, T]) run(ctx context.Context) (pgx.Rows, error) {
	name, err := q.stmt.Prepare(ctx, q.client)
	if err != nil {
		return nil, err
	}
	return q.client.Query(ctx, name, q.args...)
}

func (q Query[R, T]) row(rows pgx.Rows) (T, error) {
	var zero T
	r, err := q.extract(rows)
	if err != nil {
		return zero, err
	}
	return q.mapper(r), nil
}

// One executes the query expecting exactly one row.
func (q Query[R, T]) One(ctx context.Context) (T, error) {
	var zero T
	rows, err := q.run(ctx)
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
func (q Query[R, T]) Opt(ctx context.Context) (*T, error) {
	rows, err := q.run(ctx)
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
func (q Query[R, T]) All(ctx context.Context) ([]T, error) {
	var out []T
	rows, err := q.run(ctx)
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

// Iter executes the query and returns a lazy, single-consumption sequence of
// mapped rows. The sequence is finite and not restartable: once consumed (or
// abandoned, which is the only cancellation mechanism) it yields nothing
// further. A decode failure is yielded as the final element and stops
// iteration without invalidating rows already yielded.
func (q Query[R, T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	consumed := false
	return func(yield func(T, error) bool) {
		if consumed {
			return
		}
		consumed = true
		var zero T
		rows, err := q.run(ctx)
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
