// Package pgxrt is the companion runtime for generated code in pgx mode.
// Generated statement holders and Bind functions reference it; application
// code normally touches only the terminal operations on Query.
package pgxrt

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Row-cardinality errors surfaced by One and Opt. Retrying is the caller's
// decision; generated code never retries.
var (
	ErrNoRows      = errors.New("pgxrt: no rows in result set")
	ErrTooManyRows = errors.New("pgxrt: more than one row in result set")
)

// GenericClient is the call contract generated code assumes. *pgx.Conn and
// pgx.Tx satisfy it. Pool users check out a connection first; the statement
// cache is per connection.
type GenericClient interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Stmt is the lazily-prepared statement cell inside a generated statement
// holder. The first Bind (or Execute) against a client prepares the
// statement and memoizes its name; later uses reuse it. The cell dies with
// its holder and is never otherwise invalidated, so a holder must not be
// shared across clients.
type Stmt struct {
	sql  string
	name string
}

// NewStmt wraps raw SQL in an unprepared cell.
func NewStmt(sql string) *Stmt { return &Stmt{sql: sql} }

// Prepare returns the prepared statement name, preparing on first use.
func (s *Stmt) Prepare(ctx context.Context, c GenericClient) (string, error) {
	if s.name != "" {
		return s.name, nil
	}
	name := stmtName(s.sql)
	if _, err := c.Prepare(ctx, name, s.sql); err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	s.name = name
	return s.name, nil
}

func stmtName(sql string) string {
	h := fnv.New64a()
	h.Write([]byte(sql))
	return fmt.Sprintf("cornucopia_%x", h.Sum64())
}

// Execute prepares (if needed) and runs a statement that returns no rows,
// reporting the number of rows affected. Generated Bind functions for
// row-less queries delegate here.
func Execute(ctx context.Context, c GenericClient, s *Stmt, args []any) (int64, error) {
	name, err := s.Prepare(ctx, c)
	if err != nil {
		return 0, err
	}
	tag, err := c.Exec(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
