package codegen

import (
	"fmt"
	"strings"

	"github.com/duarten/cornucopia/pkg/ir"
)

// Query-level emission: per-module parameter and row shapes, then one
// statement holder per query with its Bind (row queries) or Execute
// (row-less queries) entry point. Generated names carry the module as a
// prefix so several modules can share one package.

func itemName(m *ir.Module, item *ir.Item) string {
	return camel(m.Name) + camel(item.Name)
}

func itemBrwName(m *ir.Module, item *ir.Item) string {
	return unexported(itemName(m, item)) + "Borrowed"
}

func queryName(m *ir.Module, q *ir.Query) string {
	return camel(m.Name) + camel(q.Name)
}

// paramsStruct emits the parameter shape of one named params item. Unnamed
// shapes bind their single field directly and get no struct.
func (g *generator) paramsStruct(m *ir.Module, item *ir.Item) {
	if !item.IsNamed {
		return
	}
	name := itemName(m, item)
	g.pf("// %s holds the parameters shared by the queries binding it.\n", name)
	g.pf("type %s struct {\n", name)
	for i := range item.Fields {
		f := &item.Fields[i]
		g.pf("\t%s %s\n", camel(f.Name), g.fieldParam(f))
	}
	g.pf("}\n\n")
}

// rowStructs emits the owned struct of one named row shape and, in pgx mode,
// its borrowed dual with the materializing conversion.
func (g *generator) rowStructs(m *ir.Module, item *ir.Item) {
	if !item.IsNamed {
		return
	}
	name := itemName(m, item)
	g.pf("// %s is one result row.\n", name)
	g.pf("type %s struct {\n", name)
	for i := range item.Fields {
		f := &item.Fields[i]
		g.pf("\t%s %s%s\n", camel(f.Name), g.fieldOwn(f), g.jsonTag(f.Name))
	}
	g.pf("}\n\n")

	if g.cfg.Mode != ModePgx || item.IsCopy {
		return
	}
	brw := itemBrwName(m, item)
	g.pf("// %s views its variable-width columns directly in the row buffer;\n", brw)
	g.pf("// it is only valid within the decode-and-map step that produced it.\n")
	g.pf("type %s struct {\n", brw)
	for i := range item.Fields {
		f := &item.Fields[i]
		g.pf("\t%s %s\n", camel(f.Name), g.fieldBrw(f))
	}
	g.pf("}\n\n")

	var w strings.Builder
	n := 0
	for i := range item.Fields {
		f := &item.Fields[i]
		g.fieldOwnAssign(&w, f, "v."+camel(f.Name), "o."+camel(f.Name), "\t", &n)
	}
	g.pf("func (v %s) owned() %s {\n", brw, name)
	g.pf("\tvar o %s\n", name)
	g.pf("%s", w.String())
	g.pf("\treturn o\n}\n\n")
}

// query emits the statement holder and entry point for one query. It
// validates the cross-references the IR carries; a violation aborts
// generation.
func (g *generator) query(m *ir.Module, q *ir.Query) error {
	row, err := m.Row(q)
	if err != nil {
		return err
	}
	param, err := m.Param(q)
	if err != nil {
		return err
	}
	if err := g.checkQuery(m, q, row, param); err != nil {
		return err
	}

	name := queryName(m, q)
	rt := g.runtimePkg()
	sqlConst := unexported(name) + "SQL"
	if strings.Contains(q.SQL, "`") {
		g.pf("const %s = %q\n\n", sqlConst, q.SQL)
	} else {
		g.pf("const %s = `%s`\n\n", sqlConst, q.SQL)
	}

	g.pf("// %sStmt is the %s statement of module %s.\n", name, q.Name, m.Name)
	g.pf("type %sStmt struct {\n\tstmt *%s.Stmt\n}\n\n", name, rt)
	g.pf("// %s returns a fresh statement holder; preparation happens on first use\n", name)
	g.pf("// against a client and is memoized per holder.\n")
	g.pf("func %s() *%sStmt {\n\treturn &%sStmt{stmt: %s.NewStmt(%s)}\n}\n\n", name, name, name, rt, sqlConst)
	if g.cfg.Mode == ModeSQL {
		g.pf("// Close releases the prepared statement, if any.\n")
		g.pf("func (s *%sStmt) Close() error { return s.stmt.Close() }\n\n", name)
	}

	// Resolve the bind argument surface.
	var bounds boundSet
	var sigArgs []string
	var argNames []string
	if param != nil {
		if param.IsNamed {
			sigArgs = append(sigArgs, "params "+itemName(m, param))
			for i := range param.Fields {
				argNames = append(argNames, "params."+camel(param.Fields[i].Name))
			}
		} else {
			f := &param.Fields[0]
			an := unexported(camel(f.Name))
			ty := g.fieldParam(f)
			if g.cfg.Mode == ModePgx && param.IsRef {
				ty = g.fieldErgo(f, &bounds)
			}
			sigArgs = append(sigArgs, an+" "+ty)
			argNames = append(argNames, an)
		}
	}
	args := g.argList(q, param, argNames)

	if row == nil {
		g.execEntry(name, rt, sigArgs, args, &bounds)
		return nil
	}

	brwT, ownT := g.rowTypes(m, row)
	extract := unexported(name) + "Extract"
	g.extractor(q, row, brwT, extract)
	mapper := g.mapper(m, q, row, brwT, ownT)

	queryT := fmt.Sprintf("%s.Query[%s, %s]", rt, brwT, ownT)
	if len(bounds.bounds) > 0 {
		g.pf("// %sBind supplies the arguments and returns the executable query. It is a\n", name)
		g.pf("// free function because Go methods cannot introduce type parameters.\n")
		g.pf("func %sBind%s(s *%sStmt, client %s.GenericClient, %s) %s {\n",
			name, bounds.decl(), name, rt, strings.Join(sigArgs, ", "), queryT)
	} else {
		g.pf("// Bind supplies the arguments and returns the executable query. The default\n")
		g.pf("// mapping materializes owned rows; remap with %s.MapQuery.\n", rt)
		recv := fmt.Sprintf("func (s *%sStmt) Bind(client %s.GenericClient", name, rt)
		if len(sigArgs) > 0 {
			recv += ", " + strings.Join(sigArgs, ", ")
		}
		g.pf("%s) %s {\n", recv, queryT)
	}
	g.pf("\treturn %s.NewQuery(client, s.stmt, %s, %s, %s)\n}\n\n", rt, args, extract, mapper)
	return nil
}

// execEntry emits the Execute entry point of a row-less query.
func (g *generator) execEntry(name, rt string, sigArgs []string, args string, bounds *boundSet) {
	ctxArg := ""
	ctxPass := ""
	if g.cfg.Mode == ModePgx {
		g.use("context")
		ctxArg = "ctx context.Context, "
		ctxPass = "ctx, "
	}
	if len(bounds.bounds) > 0 {
		g.pf("// %sExecute runs the statement and reports rows affected. It is a free\n", name)
		g.pf("// function because Go methods cannot introduce type parameters.\n")
		g.pf("func %sExecute%s(%ss *%sStmt, client %s.GenericClient, %s) (int64, error) {\n",
			name, bounds.decl(), ctxArg, name, rt, strings.Join(sigArgs, ", "))
		g.pf("\treturn %s.Execute(%sclient, s.stmt, %s)\n}\n\n", rt, ctxPass, args)
		return
	}
	g.pf("// Execute runs the statement and reports rows affected.\n")
	recv := fmt.Sprintf("func (s *%sStmt) Execute(%sclient %s.GenericClient", name, ctxArg, rt)
	if len(sigArgs) > 0 {
		recv += ", " + strings.Join(sigArgs, ", ")
	}
	g.pf("%s) (int64, error) {\n", recv)
	g.pf("\treturn %s.Execute(%sclient, s.stmt, %s)\n}\n\n", rt, ctxPass, args)
}

// argList renders the positional argument slice in placeholder order.
func (g *generator) argList(q *ir.Query, param *ir.Item, argNames []string) string {
	if param == nil {
		return "nil"
	}
	parts := make([]string, len(q.Param.Order))
	for i, fi := range q.Param.Order {
		expr := argNames[fi]
		if g.cfg.Mode == ModeSQL && param.Fields[fi].Type.Kind == ir.KindArray {
			g.use(pkgPq)
			expr = "pq.Array(" + expr + ")"
		}
		parts[i] = expr
	}
	return "[]any{" + strings.Join(parts, ", ") + "}"
}

// rowTypes resolves the staging and result types of a row shape.
func (g *generator) rowTypes(m *ir.Module, row *ir.Item) (brw, own string) {
	if !row.IsNamed {
		f := &row.Fields[0]
		return g.fieldBrw(f), g.fieldOwn(f)
	}
	own = itemName(m, row)
	if g.cfg.Mode == ModePgx && !row.IsCopy {
		return itemBrwName(m, row), own
	}
	return own, own
}

// extractor emits the per-query row decode function. The column mapping is
// per query: the SELECT list order need not match the shape's field order.
func (g *generator) extractor(q *ir.Query, row *ir.Item, brwT, name string) {
	cols := q.Row.Columns
	if g.cfg.Mode == ModeSQL {
		g.use("database/sql")
		g.pf("func %s(rows *sql.Rows) (%s, error) {\n", name, brwT)
		g.pf("\tvar v %s\n", brwT)
		dests := make([]string, len(cols))
		for i, c := range cols {
			f := &row.Fields[i]
			dst := "&v." + camel(f.Name)
			if !row.IsNamed {
				dst = "&v"
			}
			if f.Type.Kind == ir.KindArray {
				g.use(pkgPq)
				dst = "pq.Array(" + dst + ")"
			}
			dests[c] = dst
		}
		g.pf("\tif err := rows.Scan(%s); err != nil {\n\t\treturn v, err\n\t}\n", strings.Join(dests, ", "))
		g.pf("\treturn v, nil\n}\n\n")
		return
	}

	g.use(pkgPgx)
	g.use(pkgWire)
	g.use("fmt")
	g.pf("func %s(rows pgx.Rows) (%s, error) {\n", name, brwT)
	g.pf("\tvar v %s\n", brwT)
	g.pf("\traw := rows.RawValues()\n")
	g.pf("\tif len(raw) != %d {\n", len(cols))
	g.pf("\t\treturn v, fmt.Errorf(\"expected %d columns, got %%d\", len(raw))\n\t}\n", len(cols))
	var w strings.Builder
	n := 0
	for i, c := range cols {
		f := &row.Fields[i]
		dst := "v." + camel(f.Name)
		if !row.IsNamed {
			dst = "v"
		}
		payload := fmt.Sprintf("raw[%d]", c)
		null := fmt.Sprintf("wire.IsNull(raw[%d])", c)
		g.fieldScan(&w, f, payload, null, dst, "\t", "return v, ", &n, false)
	}
	g.pf("%s", w.String())
	g.pf("\treturn v, nil\n}\n\n")
}

// mapper returns the default staging-to-owned mapping expression for a row
// query, emitting a helper function when the conversion has a body.
func (g *generator) mapper(m *ir.Module, q *ir.Query, row *ir.Item, brwT, ownT string) string {
	if brwT == ownT {
		return fmt.Sprintf("func(v %s) %s { return v }", brwT, ownT)
	}
	if row.IsNamed {
		return brwT + ".owned"
	}
	f := &row.Fields[0]
	name := unexported(queryName(m, q)) + "Map"
	g.pf("func %s(v %s) (o %s) {\n", name, brwT, ownT)
	var w strings.Builder
	n := 0
	g.fieldOwnAssign(&w, f, "v", "o", "\t", &n)
	g.pf("%s", w.String())
	g.pf("\treturn o\n}\n\n")
	return name
}

// checkQuery validates a query's cross-references and mode restrictions.
func (g *generator) checkQuery(m *ir.Module, q *ir.Query, row, param *ir.Item) error {
	if row != nil {
		if !row.IsNamed && len(row.Fields) != 1 {
			return fmt.Errorf("module %s: query %s: unnamed row with %d fields", m.Name, q.Name, len(row.Fields))
		}
		if len(q.Row.Columns) != len(row.Fields) {
			return fmt.Errorf("module %s: query %s: %d column positions for %d row fields", m.Name, q.Name, len(q.Row.Columns), len(row.Fields))
		}
		seen := make([]bool, len(q.Row.Columns))
		for _, c := range q.Row.Columns {
			if c < 0 || c >= len(seen) || seen[c] {
				return fmt.Errorf("module %s: query %s: invalid column position %d", m.Name, q.Name, c)
			}
			seen[c] = true
		}
		if err := g.modeCheck(m, q, row); err != nil {
			return err
		}
	}
	if param != nil {
		if !param.IsNamed && len(param.Fields) != 1 {
			return fmt.Errorf("module %s: query %s: unnamed params with %d fields", m.Name, q.Name, len(param.Fields))
		}
		for _, fi := range q.Param.Order {
			if fi < 0 || fi >= len(param.Fields) {
				return fmt.Errorf("module %s: query %s: placeholder bound to field %d of %d", m.Name, q.Name, fi, len(param.Fields))
			}
		}
		if err := g.modeCheck(m, q, param); err != nil {
			return err
		}
	}
	return nil
}

// modeCheck rejects shapes the blocking runtime cannot move: composites need
// the binary codecs, and lib/pq arrays cannot express column-level or
// element-level nulls.
func (g *generator) modeCheck(m *ir.Module, q *ir.Query, item *ir.Item) error {
	if g.cfg.Mode != ModeSQL {
		return nil
	}
	for i := range item.Fields {
		f := &item.Fields[i]
		if hasComposite(f.Type) {
			return fmt.Errorf("module %s: query %s: field %s: composite types require pgx mode", m.Name, q.Name, f.Name)
		}
		if f.Type.Kind == ir.KindArray && (f.IsNullable || f.IsInnerNullable) {
			return fmt.Errorf("module %s: query %s: field %s: nullable arrays require pgx mode", m.Name, q.Name, f.Name)
		}
	}
	return nil
}

func hasComposite(t *ir.Type) bool {
	switch t.Kind {
	case ir.KindComposite:
		return true
	case ir.KindArray:
		return hasComposite(t.Elem)
	}
	return false
}
