package codegen

import (
	"fmt"
	"strings"

	"github.com/duarten/cornucopia/pkg/ir"
)

// Import paths referenced by emitted code.
const (
	pkgWire   = "github.com/duarten/cornucopia/runtime/wire"
	pkgPgxrt  = "github.com/duarten/cornucopia/runtime/pgxrt"
	pkgSqlrt  = "github.com/duarten/cornucopia/runtime/sqlrt"
	pkgPgx    = "github.com/jackc/pgx/v5"
	pkgPgtype = "github.com/jackc/pgx/v5/pgtype"
	pkgPq     = "github.com/lib/pq"
)

// typeName resolves a custom type's emitted name through the config remap
// table.
func (g *generator) typeName(ct *ir.CustomType) string {
	if n, ok := g.cfg.TypeNames[ct.Schema+"."+ct.PgName]; ok {
		return n
	}
	return ct.Name
}

func (g *generator) borrowedName(ct *ir.CustomType) string {
	return unexported(g.typeName(ct)) + "Borrowed"
}

func (g *generator) paramsName(ct *ir.CustomType) string {
	return g.typeName(ct) + "Params"
}

// Each field resolves to one of four representations. All four share the
// same nullability wrapping, applied by the field* methods below, so they
// stay mutually consistent for a given field.

// ownType is the independently-lifetimed representation, safe to store.
func (g *generator) ownType(t *ir.Type, innerNull bool) string {
	switch t.Kind {
	case ir.KindBool:
		return "bool"
	case ir.KindInt2:
		return "int16"
	case ir.KindInt4:
		return "int32"
	case ir.KindInt8:
		return "int64"
	case ir.KindFloat4:
		return "float32"
	case ir.KindFloat8:
		return "float64"
	case ir.KindText:
		return "string"
	case ir.KindBytea:
		return "[]byte"
	case ir.KindTimestamp, ir.KindTimestamptz, ir.KindDate:
		g.use("time")
		return "time.Time"
	case ir.KindUUID:
		g.use(pkgPgtype)
		return "pgtype.UUID"
	case ir.KindJSON:
		g.use("encoding/json")
		return "json.RawMessage"
	case ir.KindEnum, ir.KindComposite:
		return g.typeName(t.Custom)
	case ir.KindArray:
		elem := g.ownType(t.Elem, false)
		if innerNull {
			elem = "*" + elem
		}
		return "[]" + elem
	}
	panic(fmt.Sprintf("codegen: unhandled kind %d", t.Kind))
}

// brwType is the non-owning view into the decode buffer. It only exists in
// pgx mode, where raw binary row values are addressable; in sql mode the
// driver owns the buffer and the borrowed representation collapses into the
// owned one. Arrays always decode owned: the Go slice allocation dominates
// either way.
func (g *generator) brwType(t *ir.Type, innerNull bool) string {
	if g.cfg.Mode == ModeSQL {
		return g.ownType(t, innerNull)
	}
	switch t.Kind {
	case ir.KindText, ir.KindBytea, ir.KindJSON:
		return "[]byte"
	case ir.KindComposite:
		if !t.Custom.IsCopy {
			return g.borrowedName(t.Custom)
		}
	}
	return g.ownType(t, innerNull)
}

// paramType is the concrete shape accepted when sending a value outward.
func (g *generator) paramType(t *ir.Type, innerNull bool) string {
	switch t.Kind {
	case ir.KindComposite:
		ct := t.Custom
		if ct.IsCopy || ct.IsParams {
			return g.typeName(ct)
		}
		return g.paramsName(ct)
	case ir.KindArray:
		elem := g.paramType(t.Elem, false)
		if innerNull {
			elem = "*" + elem
		}
		return "[]" + elem
	default:
		return g.ownType(t, innerNull)
	}
}

// ergoType is the caller-facing generic representation: fields whose values
// have several convertible input shapes get a type parameter bounded by a
// capability set, recorded in b; everything else falls back to the concrete
// parameter type.
func (g *generator) ergoType(t *ir.Type, innerNull bool, b *boundSet) string {
	switch t.Kind {
	case ir.KindText:
		g.use(pkgWire)
		return b.add("wire.TextLike")
	case ir.KindBytea:
		g.use(pkgWire)
		return b.add("wire.BytesLike")
	case ir.KindJSON:
		g.use(pkgWire)
		return b.add("wire.JSONLike")
	default:
		return g.paramType(t, innerNull)
	}
}

// wrapNull applies the optional container: one pointer level, identical for
// every representation.
func wrapNull(t string, nullable bool) string {
	if nullable {
		return "*" + t
	}
	return t
}

func (g *generator) fieldOwn(f *ir.Field) string {
	return wrapNull(g.ownType(f.Type, f.IsInnerNullable), f.IsNullable)
}

func (g *generator) fieldBrw(f *ir.Field) string {
	return wrapNull(g.brwType(f.Type, f.IsInnerNullable), f.IsNullable)
}

func (g *generator) fieldParam(f *ir.Field) string {
	return wrapNull(g.paramType(f.Type, f.IsInnerNullable), f.IsNullable)
}

func (g *generator) fieldErgo(f *ir.Field, b *boundSet) string {
	return wrapNull(g.ergoType(f.Type, f.IsInnerNullable, b), f.IsNullable)
}

// boundSet is the bound accumulator for one emission call: pass one resolves
// representations and records capability bounds through add; pass two reads
// the deduplicated list back through decl/args. Nothing escapes the call.
type boundSet struct {
	bounds []string
}

// add records a required capability bound and returns the generic type
// parameter standing for it. Bounds are deduplicated preserving first
// appearance: two fields with the same capability share one parameter.
func (b *boundSet) add(bound string) string {
	for i, x := range b.bounds {
		if x == bound {
			return typeParam(i)
		}
	}
	b.bounds = append(b.bounds, bound)
	return typeParam(len(b.bounds) - 1)
}

func typeParam(i int) string { return fmt.Sprintf("T%d", i+1) }

// decl renders the type parameter list with bounds, "[T1 wire.TextLike]",
// or "" when no field needed a generic.
func (b *boundSet) decl() string {
	if len(b.bounds) == 0 {
		return ""
	}
	parts := make([]string, len(b.bounds))
	for i, bound := range b.bounds {
		parts[i] = typeParam(i) + " " + bound
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// args renders the bare parameter list, "[T1, T2]", or "".
func (b *boundSet) args() string {
	if len(b.bounds) == 0 {
		return ""
	}
	parts := make([]string, len(b.bounds))
	for i := range b.bounds {
		parts[i] = typeParam(i)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
