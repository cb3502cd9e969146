// Package ir defines the resolved intermediate representation consumed by the
// code generator.
//
// A Preparation is produced by the query/catalog inference stage (outside this
// module) and handed to pkg/codegen whole. It is fully typed: every query has
// its row and parameter shapes resolved against the catalog, every field
// carries its base type and nullability, and custom database types carry
// their schema-qualified source names. The generator only reads it.
package ir

import "fmt"

// Preparation is the root of the IR: all custom types grouped by schema plus
// all query modules, in the order the inference stage produced them.
type Preparation struct {
	Types   []SchemaTypes
	Modules []Module
}

// SchemaTypes holds the custom types declared in one database schema.
type SchemaTypes struct {
	Schema string
	Types  []*CustomType
}

// Module groups the queries declared in one query file, together with the row
// and parameter shapes they share. Queries, Rows and Params are independently
// ordered; queries reference rows and params by index.
type Module struct {
	Name    string
	Queries []Query
	Rows    []Item
	Params  []Item
}

// Row returns the row shape referenced by a query, or an error when the
// reference is dangling. A dangling reference is a bug in the inference
// stage, not a runtime condition; generation aborts on it.
func (m *Module) Row(q *Query) (*Item, error) {
	if q.Row == nil {
		return nil, nil
	}
	if q.Row.Index < 0 || q.Row.Index >= len(m.Rows) {
		return nil, fmt.Errorf("module %s: query %s references row %d of %d", m.Name, q.Name, q.Row.Index, len(m.Rows))
	}
	return &m.Rows[q.Row.Index], nil
}

// Param returns the parameter shape referenced by a query, or an error when
// the reference is dangling.
func (m *Module) Param(q *Query) (*Item, error) {
	if q.Param == nil {
		return nil, nil
	}
	if q.Param.Index < 0 || q.Param.Index >= len(m.Params) {
		return nil, fmt.Errorf("module %s: query %s references param %d of %d", m.Name, q.Name, q.Param.Index, len(m.Params))
	}
	return &m.Params[q.Param.Index], nil
}

// Query is one prepared statement: its literal SQL plus optional references
// to a row shape and a parameter shape.
type Query struct {
	Name string
	SQL  string

	// Row is nil for statements that return no rows (INSERT, UPDATE, ...).
	Row *RowRef

	// Param is nil for statements that take no parameters.
	Param *ParamRef
}

// RowRef points a query at a row shape in the enclosing module.
// Columns[i] is the result-column position holding row field i; the SELECT
// list order need not match the shape's declared field order.
type RowRef struct {
	Index   int
	Columns []int
}

// ParamRef points a query at a parameter shape in the enclosing module.
// Order[i] is the declared field index bound to positional argument $(i+1).
// The inference stage computes it, including the tie-break when one name is
// referenced more than once in the SQL text.
type ParamRef struct {
	Index int
	Order []int
}

// Item is a row or parameter shape.
type Item struct {
	Name   string
	Fields []Field

	// IsNamed is set when the shape needs a generated struct. Single-column
	// rows and single-parameter shapes bind to the bare field type instead.
	IsNamed bool

	// IsCopy is set when every field is trivially copyable, which collapses
	// the borrowed and owned representations into one.
	IsCopy bool

	// IsRef is set on parameter shapes containing reference-like fields.
	// Only those shapes offer the generic capability-bounded bind surface.
	IsRef bool
}

// Field is one column of an Item or one member of a composite type.
type Field struct {
	Name string
	Type *Type

	// IsNullable marks the field itself optional.
	IsNullable bool

	// IsInnerNullable marks nested optionality: a nullable element inside a
	// non-nullable container (e.g. text[] with null elements).
	IsInnerNullable bool
}

// CustomType is a user-defined database type: an enum or a composite.
type CustomType struct {
	// Schema and PgName identify the type on the wire ("public",
	// "custom_composite"). PgName is what the server reports during type
	// negotiation and must be emitted verbatim into accepts predicates.
	Schema string
	PgName string

	// Name is the generated Go type name, after the configured remap table.
	Name string

	// IsCopy composites skip the borrowed dual entirely.
	IsCopy bool

	// IsParams composites are usable directly as parameter input; no
	// separate ...Params struct is generated for them.
	IsParams bool

	// Exactly one of Variants (enum) or Fields (composite) is non-empty.
	Variants []string
	Fields   []Field
}

// IsEnum reports whether the type is an enum.
func (t *CustomType) IsEnum() bool { return len(t.Variants) > 0 }
