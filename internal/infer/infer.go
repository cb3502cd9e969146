// Package infer builds the typed ir.Preparation for a set of scanned query
// modules by preparing every query against a live connection. The server
// does all SQL understanding: preparation reports parameter and result
// types, and pgcat hydrates anything user-defined. Nullability comes from
// the query annotations; the wire protocol does not carry it.
package infer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duarten/cornucopia/internal/pgcat"
	"github.com/duarten/cornucopia/internal/queries"
	"github.com/duarten/cornucopia/pkg/ir"
)

// Prepare infers the full IR for the given modules.
func Prepare(ctx context.Context, conn *pgx.Conn, mods []*queries.Module) (*ir.Preparation, error) {
	cat := pgcat.New(conn)
	prep := &ir.Preparation{}
	for _, m := range mods {
		mod, err := module(ctx, conn, cat, m)
		if err != nil {
			return nil, err
		}
		prep.Modules = append(prep.Modules, *mod)
	}
	prep.Types = cat.CustomTypes()
	return prep, nil
}

func module(ctx context.Context, conn *pgx.Conn, cat *pgcat.Catalog, src *queries.Module) (*ir.Module, error) {
	mod := &ir.Module{Name: src.Name}
	rowIndex := map[string]int{}
	seen := map[string]bool{}

	for i := range src.Queries {
		q := &src.Queries[i]
		if seen[q.Name] {
			return nil, fmt.Errorf("module %s: query %s declared twice", src.Name, q.Name)
		}
		seen[q.Name] = true

		sd, err := conn.Prepare(ctx, src.Name+"_"+q.Name, q.SQL)
		if err != nil {
			return nil, fmt.Errorf("module %s: preparing %s: %w", src.Name, q.Name, err)
		}

		out := ir.Query{Name: q.Name, SQL: q.SQL}

		if len(sd.ParamOIDs) > 0 {
			if len(sd.ParamOIDs) != len(q.Order) {
				return nil, fmt.Errorf("module %s: query %s: server reports %d parameters, annotation binds %d",
					src.Name, q.Name, len(sd.ParamOIDs), len(q.Order))
			}
			item, err := paramItem(ctx, cat, q, sd.ParamOIDs)
			if err != nil {
				return nil, fmt.Errorf("module %s: query %s: %w", src.Name, q.Name, err)
			}
			mod.Params = append(mod.Params, *item)
			out.Param = &ir.ParamRef{Index: len(mod.Params) - 1, Order: q.Order}
		}

		if len(sd.Fields) > 0 {
			ref, err := rowRef(ctx, cat, mod, rowIndex, q, sd)
			if err != nil {
				return nil, fmt.Errorf("module %s: query %s: %w", src.Name, q.Name, err)
			}
			out.Row = ref
		} else if q.RowName != "" || len(q.NullableCols) > 0 {
			return nil, fmt.Errorf("module %s: query %s: row annotation on a statement returning no rows", src.Name, q.Name)
		}

		mod.Queries = append(mod.Queries, out)
	}
	return mod, nil
}

func paramItem(ctx context.Context, cat *pgcat.Catalog, q *queries.Query, oids []uint32) (*ir.Item, error) {
	item := &ir.Item{Name: goName(q.Name) + "Params", IsNamed: len(q.Params) > 1}
	// The OID of a declared parameter is read off its first placeholder.
	byDeclared := make([]uint32, len(q.Params))
	for pos, d := range q.Order {
		if byDeclared[d] == 0 {
			byDeclared[d] = oids[pos]
		}
	}
	for d, name := range q.Params {
		t, err := cat.TypeOf(ctx, byDeclared[d])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		item.Fields = append(item.Fields, ir.Field{Name: name, Type: t, IsNullable: q.NullableParams[name]})
		if !t.IsCopy() {
			item.IsRef = true
		}
	}
	return item, nil
}

func rowRef(ctx context.Context, cat *pgcat.Catalog, mod *ir.Module, rowIndex map[string]int, q *queries.Query, sd *pgconn.StatementDescription) (*ir.RowRef, error) {
	cols := make([]ir.Field, len(sd.Fields))
	names := map[string]int{}
	for i, fd := range sd.Fields {
		t, err := cat.TypeOf(ctx, fd.DataTypeOID)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", fd.Name, err)
		}
		name := fd.Name
		if _, dup := names[name]; dup {
			return nil, fmt.Errorf("duplicate column name %s; alias it in the select list", name)
		}
		names[name] = i
		cols[i] = ir.Field{Name: name, Type: t, IsNullable: q.NullableCols[name]}
	}
	for name := range q.NullableCols {
		if _, ok := names[name]; !ok {
			return nil, fmt.Errorf("nullable mark on unknown column %s", name)
		}
	}

	if q.RowName != "" {
		if idx, ok := rowIndex[q.RowName]; ok {
			return sharedRowRef(mod, idx, cols, names, q.RowName)
		}
	}

	name := q.RowName
	if name == "" {
		name = goName(q.Name) + "Row"
	}
	item := ir.Item{Name: name, Fields: cols, IsNamed: q.RowName != "" || len(cols) > 1}
	item.IsCopy = copyable(cols)
	mod.Rows = append(mod.Rows, item)
	idx := len(mod.Rows) - 1
	if q.RowName != "" {
		rowIndex[q.RowName] = idx
	}
	columns := make([]int, len(cols))
	for i := range columns {
		columns[i] = i
	}
	return &ir.RowRef{Index: idx, Columns: columns}, nil
}

// sharedRowRef maps this query's select list onto an existing named row
// shape; the lists may order columns differently but must agree on names
// and types.
func sharedRowRef(mod *ir.Module, idx int, cols []ir.Field, names map[string]int, rowName string) (*ir.RowRef, error) {
	item := &mod.Rows[idx]
	if len(cols) != len(item.Fields) {
		return nil, fmt.Errorf("row %s has %d fields, this query selects %d columns", rowName, len(item.Fields), len(cols))
	}
	columns := make([]int, len(item.Fields))
	for i := range item.Fields {
		f := &item.Fields[i]
		j, ok := names[f.Name]
		if !ok {
			return nil, fmt.Errorf("row %s needs column %s, not selected here", rowName, f.Name)
		}
		if !typeEq(f.Type, cols[j].Type) || f.IsNullable != cols[j].IsNullable {
			return nil, fmt.Errorf("row %s: column %s differs in type or nullability between queries", rowName, f.Name)
		}
		columns[i] = j
	}
	return &ir.RowRef{Index: idx, Columns: columns}, nil
}

func copyable(fields []ir.Field) bool {
	for i := range fields {
		if !fields[i].Type.IsCopy() {
			return false
		}
	}
	return true
}

func typeEq(a, b *ir.Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	if a.Kind == ir.KindArray {
		return typeEq(a.Elem, b.Elem)
	}
	return a.Custom == b.Custom && a.PgName == b.PgName
}

func goName(s string) string {
	var b strings.Builder
	up := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
			up = true
		case up:
			b.WriteRune(unicode.ToUpper(r))
			up = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
