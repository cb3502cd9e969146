// Package sqlrt is the companion runtime for generated code in sql mode:
// blocking execution over database/sql, typically with the lib/pq driver.
// It mirrors pgxrt with synchronous calls and no suspension points.
package sqlrt

import (
	"database/sql"
	"errors"
	"fmt"
)

// Row-cardinality errors surfaced by One and Opt.
var (
	ErrNoRows      = errors.New("sqlrt: no rows in result set")
	ErrTooManyRows = errors.New("sqlrt: more than one row in result set")
)

// GenericClient is the call contract generated code assumes. *sql.DB,
// *sql.Tx and *sql.Conn all satisfy it.
type GenericClient interface {
	Prepare(query string) (*sql.Stmt, error)
}

// Stmt lazily prepares and memoizes a *sql.Stmt. The cell is written once
// per holder and reused across Binds; closing the prepared statement is tied
// to discarding the holder.
type Stmt struct {
	sql      string
	prepared *sql.Stmt
}

// NewStmt wraps raw SQL in an unprepared cell.
func NewStmt(sql string) *Stmt { return &Stmt{sql: sql} }

// Prepare returns the prepared statement, preparing on first use.
func (s *Stmt) Prepare(c GenericClient) (*sql.Stmt, error) {
	if s.prepared != nil {
		return s.prepared, nil
	}
	st, err := c.Prepare(s.sql)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	s.prepared = st
	return st, nil
}

// Close releases the cached prepared statement, if any.
func (s *Stmt) Close() error {
	if s.prepared == nil {
		return nil
	}
	st := s.prepared
	s.prepared = nil
	return st.Close()
}

// Execute prepares (if needed) and runs a statement that returns no rows.
func Execute(c GenericClient, s *Stmt, args []any) (int64, error) {
	st, err := s.Prepare(c)
	if err != nil {
		return 0, err
	}
	res, err := st.Exec(args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
