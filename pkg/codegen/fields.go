package codegen

import (
	"fmt"
	"strings"

	"github.com/duarten/cornucopia/pkg/ir"
)

// Field-level emission. These helpers produce the statement sequences that
// move one value across the wire boundary: binary payload to borrowed
// representation, borrowed to owned, and Go value to binary payload. They
// are shared by the composite codecs and the row extractors so the two ends
// can never disagree on a field's layout.

// line writes one indented line of generated code.
func line(w *strings.Builder, indent, format string, args ...any) {
	w.WriteString(indent)
	fmt.Fprintf(w, format, args...)
	w.WriteString("\n")
}

func nextVar(n *int) string {
	v := fmt.Sprintf("x%d", *n)
	*n++
	return v
}

// scanStmts emits statements decoding payload into a fresh variable and
// returns that variable's name. The variable has the borrowed representation
// of t, or the owned one when owned is set (array elements and sql-free
// contexts materialize immediately). ret is the statement prefix returning
// the enclosing function's error, e.g. "return v, ".
func (g *generator) scanStmts(w *strings.Builder, t *ir.Type, innerNull bool, payload, indent, ret string, n *int, owned bool) string {
	g.use(pkgWire)
	v := nextVar(n)
	scalar := func(fn string) string {
		line(w, indent, "%s, err := wire.%s(%s)", v, fn, payload)
		line(w, indent, "if err != nil {")
		line(w, indent, "\t%serr", ret)
		line(w, indent, "}")
		return v
	}
	switch t.Kind {
	case ir.KindBool:
		return scalar("ScanBool")
	case ir.KindInt2:
		return scalar("ScanInt16")
	case ir.KindInt4:
		return scalar("ScanInt32")
	case ir.KindInt8:
		return scalar("ScanInt64")
	case ir.KindFloat4:
		return scalar("ScanFloat32")
	case ir.KindFloat8:
		return scalar("ScanFloat64")
	case ir.KindTimestamp, ir.KindTimestamptz:
		return scalar("ScanTimestamp")
	case ir.KindDate:
		return scalar("ScanDate")
	case ir.KindUUID:
		g.use(pkgPgtype)
		raw := scalar("ScanUUID")
		uv := nextVar(n)
		line(w, indent, "%s := pgtype.UUID{Bytes: %s, Valid: true}", uv, raw)
		return uv
	case ir.KindText:
		if owned {
			line(w, indent, "%s := string(%s)", v, payload)
		} else {
			line(w, indent, "%s := wire.ScanTextView(%s)", v, payload)
		}
		return v
	case ir.KindBytea:
		if owned {
			line(w, indent, "%s := append([]byte(nil), %s...)", v, payload)
		} else {
			line(w, indent, "%s := wire.ScanTextView(%s)", v, payload)
		}
		return v
	case ir.KindJSON:
		if owned {
			g.use("encoding/json")
			line(w, indent, "%s := json.RawMessage(append([]byte(nil), wire.ScanJSONView(%s)...))", v, payload)
		} else {
			line(w, indent, "%s := wire.ScanJSONView(%s)", v, payload)
		}
		return v
	case ir.KindEnum:
		line(w, indent, "%s, err := scan%s(%s)", v, g.typeName(t.Custom), payload)
		line(w, indent, "if err != nil {")
		line(w, indent, "\t%serr", ret)
		line(w, indent, "}")
		return v
	case ir.KindComposite:
		ct := t.Custom
		line(w, indent, "%s, err := scan%s(%s)", v, g.typeName(ct), payload)
		line(w, indent, "if err != nil {")
		line(w, indent, "\t%serr", ret)
		line(w, indent, "}")
		if owned && !ct.IsCopy {
			ov := nextVar(n)
			line(w, indent, "%s := %s.owned()", ov, v)
			return ov
		}
		return v
	case ir.KindArray:
		// Arrays decode owned regardless of context.
		elem := g.ownType(t.Elem, false)
		line(w, indent, "var %s []%s", v, wrapNull(elem, innerNull))
		line(w, indent, "if err := wire.ScanArray(%s, func(p []byte, null bool) error {", payload)
		inner := indent + "\t"
		line(w, inner, "if null {")
		if innerNull {
			line(w, inner, "\t%s = append(%s, nil)", v, v)
			line(w, inner, "\treturn nil")
		} else {
			line(w, inner, "\treturn wire.ErrUnexpectedNull")
		}
		line(w, inner, "}")
		ev := g.scanStmts(w, t.Elem, false, "p", inner, "return ", n, true)
		if innerNull {
			line(w, inner, "%s = append(%s, &%s)", v, v, ev)
		} else {
			line(w, inner, "%s = append(%s, %s)", v, v, ev)
		}
		line(w, inner, "return nil")
		line(w, indent, "}); err != nil {")
		line(w, indent, "\t%serr", ret)
		line(w, indent, "}")
		return v
	}
	panic(fmt.Sprintf("codegen: unhandled kind %d", t.Kind))
}

// fieldScan emits the decode of one field payload into dst, honoring the
// field's nullability. payload and null are the expressions delivering the
// raw value and its null flag.
func (g *generator) fieldScan(w *strings.Builder, f *ir.Field, payload, null, dst, indent, ret string, n *int, owned bool) {
	if !f.IsNullable {
		line(w, indent, "if %s {", null)
		g.use("fmt")
		line(w, indent, "\t%sfmt.Errorf(\"field %s: %%w\", wire.ErrUnexpectedNull)", ret, f.Name)
		line(w, indent, "}")
		v := g.scanStmts(w, f.Type, f.IsInnerNullable, payload, indent, ret, n, owned)
		line(w, indent, "%s = %s", dst, v)
		return
	}
	line(w, indent, "if !%s {", null)
	v := g.scanStmts(w, f.Type, f.IsInnerNullable, payload, indent+"\t", ret, n, owned)
	line(w, indent, "\t%s = &%s", dst, v)
	line(w, indent, "}")
}

// ownExpr returns the expression materializing a borrowed value as owned, or
// src unchanged when the two representations coincide.
func (g *generator) ownExpr(t *ir.Type, src string) string {
	switch t.Kind {
	case ir.KindText:
		return "string(" + src + ")"
	case ir.KindBytea:
		return "append([]byte(nil), " + src + "...)"
	case ir.KindJSON:
		g.use("encoding/json")
		return "json.RawMessage(append([]byte(nil), " + src + "...))"
	case ir.KindComposite:
		if !t.Custom.IsCopy {
			return src + ".owned()"
		}
	}
	return src
}

// fieldOwnAssign emits the owned-materialization of one borrowed field.
func (g *generator) fieldOwnAssign(w *strings.Builder, f *ir.Field, src, dst, indent string, n *int) {
	expr := g.ownExpr(f.Type, src)
	if !f.IsNullable {
		line(w, indent, "%s = %s", dst, expr)
		return
	}
	if expr == src {
		// Copyable pointee, sharing it is safe.
		line(w, indent, "%s = %s", dst, src)
		return
	}
	expr = g.ownExpr(f.Type, "*"+src)
	line(w, indent, "if %s != nil {", src)
	v := nextVar(n)
	line(w, indent, "\t%s := %s", v, expr)
	line(w, indent, "\t%s = &%s", dst, v)
	line(w, indent, "}")
}

// appendExpr returns the buf-growing expression encoding one non-null scalar
// value, or "" for kinds that need statement-form encoding (composites and
// arrays). oidExpr yields the destination's server-reported OID; only json
// needs it, to pick between the json and jsonb payload formats.
func (g *generator) appendExpr(t *ir.Type, val, oidExpr string) string {
	switch t.Kind {
	case ir.KindBool:
		return fmt.Sprintf("wire.AppendBool(buf, %s)", val)
	case ir.KindInt2:
		return fmt.Sprintf("wire.AppendInt16(buf, %s)", val)
	case ir.KindInt4:
		return fmt.Sprintf("wire.AppendInt32(buf, %s)", val)
	case ir.KindInt8:
		return fmt.Sprintf("wire.AppendInt64(buf, %s)", val)
	case ir.KindFloat4:
		return fmt.Sprintf("wire.AppendFloat32(buf, %s)", val)
	case ir.KindFloat8:
		return fmt.Sprintf("wire.AppendFloat64(buf, %s)", val)
	case ir.KindText:
		return fmt.Sprintf("wire.AppendText(buf, %s)", val)
	case ir.KindBytea:
		return fmt.Sprintf("wire.AppendBytea(buf, %s)", val)
	case ir.KindJSON:
		return fmt.Sprintf("wire.AppendJSON(buf, %s, %s)", oidExpr, val)
	case ir.KindTimestamp, ir.KindTimestamptz:
		return fmt.Sprintf("wire.AppendTimestamp(buf, %s)", val)
	case ir.KindDate:
		return fmt.Sprintf("wire.AppendDate(buf, %s)", val)
	case ir.KindUUID:
		return fmt.Sprintf("wire.AppendUUID(buf, %s.Bytes)", val)
	case ir.KindEnum:
		return fmt.Sprintf("wire.AppendText(buf, string(%s))", val)
	}
	return ""
}

// encodeField emits the body of one field-encoder case arm: null handling
// followed by a return of the grown buffer. val is the field value
// expression, tyExpr the expression yielding the field's server-reported
// *wire.Type, repr the representation resolver matching val's shape.
func (g *generator) encodeField(w *strings.Builder, f *ir.Field, val, tyExpr, indent string, repr func(*ir.Type, bool) string) {
	if f.IsNullable {
		line(w, indent, "if %s == nil {", val)
		line(w, indent, "\treturn buf, true, nil")
		line(w, indent, "}")
		val = "(*" + val + ")"
	}
	if expr := g.appendExpr(f.Type, val, tyExpr+".OID"); expr != "" {
		line(w, indent, "return %s, false, nil", expr)
		return
	}
	switch f.Type.Kind {
	case ir.KindComposite:
		line(w, indent, "out, err := %s.encodeComposite(%s, buf)", val, tyExpr)
		line(w, indent, "return out, false, err")
	case ir.KindArray:
		elem := f.Type.Elem
		et := wrapNull(repr(elem, false), f.IsInnerNullable)
		line(w, indent, "out, err := wire.AppendArray(buf, %s.Elem.OID, %s, func(buf []byte, e %s) ([]byte, bool, error) {", tyExpr, val, et)
		inner := indent + "\t"
		ev := "e"
		if f.IsInnerNullable {
			line(w, inner, "if e == nil {")
			line(w, inner, "\treturn buf, true, nil")
			line(w, inner, "}")
			ev = "(*e)"
		}
		if expr := g.appendExpr(elem, ev, tyExpr+".Elem.OID"); expr != "" {
			line(w, inner, "return %s, false, nil", expr)
		} else {
			line(w, inner, "out, err := %s.encodeComposite(%s.Elem, buf)", ev, tyExpr)
			line(w, inner, "return out, false, err")
		}
		line(w, indent, "})")
		line(w, indent, "return out, false, err")
	default:
		panic(fmt.Sprintf("codegen: unhandled kind %d", f.Type.Kind))
	}
}

// acceptExpr returns the accepts-predicate expression for a type, suitable
// as a FieldAccept.Accepts value.
func (g *generator) acceptExpr(t *ir.Type) string {
	g.use(pkgWire)
	switch t.Kind {
	case ir.KindBool:
		return "wire.AcceptsBool"
	case ir.KindInt2:
		return "wire.AcceptsInt2"
	case ir.KindInt4:
		return "wire.AcceptsInt4"
	case ir.KindInt8:
		return "wire.AcceptsInt8"
	case ir.KindFloat4:
		return "wire.AcceptsFloat4"
	case ir.KindFloat8:
		return "wire.AcceptsFloat8"
	case ir.KindText:
		return "wire.AcceptsText"
	case ir.KindBytea:
		return "wire.AcceptsBytea"
	case ir.KindTimestamp, ir.KindTimestamptz:
		return "wire.AcceptsTimestamp"
	case ir.KindDate:
		return "wire.AcceptsDate"
	case ir.KindUUID:
		return "wire.AcceptsUUID"
	case ir.KindJSON:
		return "wire.AcceptsJSON"
	case ir.KindEnum, ir.KindComposite:
		return "accepts" + g.typeName(t.Custom)
	case ir.KindArray:
		return fmt.Sprintf("func(t *wire.Type) bool { return wire.AcceptsArray(t, %s) }", g.acceptExpr(t.Elem))
	}
	panic(fmt.Sprintf("codegen: unhandled kind %d", t.Kind))
}
