package codegen

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/duarten/cornucopia/pkg/ir"
)

//go:embed templates/composite_codec.go.tpl
var compositeCodecSrc string

var compositeCodecTpl = template.Must(template.New("composite_codec").Parse(compositeCodecSrc))

type codecData struct {
	Name       string
	LowerName  string
	ParamsName string
	PgName     string
	HasParams  bool
	IsCopy     bool
}

// customType emits the Go rendition of one database enum or composite.
func (g *generator) customType(ct *ir.CustomType) {
	if ct.IsEnum() {
		g.enum(ct)
		return
	}
	g.composite(ct)
}

func (g *generator) enum(ct *ir.CustomType) {
	name := g.typeName(ct)
	g.pf("// %s maps the Postgres enum %s.%s.\n", name, ct.Schema, ct.PgName)
	g.pf("type %s string\n\n", name)
	g.pf("const (\n")
	for _, v := range ct.Variants {
		g.pf("\t%s%s %s = %q\n", name, camel(v), name, v)
	}
	g.pf(")\n\n")

	if g.cfg.Mode != ModePgx {
		return
	}
	g.use(pkgWire)
	g.use("fmt")
	g.pf("// scan%s validates a wire label against the closed variant set.\n", name)
	g.pf("func scan%s(src []byte) (%s, error) {\n", name, name)
	g.pf("\tswitch v := %s(src); v {\n\tcase ", name)
	consts := make([]string, len(ct.Variants))
	for i, v := range ct.Variants {
		consts[i] = name + camel(v)
	}
	g.pf("%s:\n", strings.Join(consts, ", "))
	g.pf("\t\treturn v, nil\n\t}\n")
	g.pf("\treturn \"\", fmt.Errorf(\"invalid %s label %%q\", src)\n}\n\n", ct.PgName)

	g.pf("func accepts%s(t *wire.Type) bool {\n", name)
	g.pf("\treturn wire.AcceptEnum(t, %q)\n}\n\n", ct.PgName)
}

func (g *generator) composite(ct *ir.CustomType) {
	name := g.typeName(ct)

	g.pf("// %s mirrors the Postgres composite type %s.%s.\n", name, ct.Schema, ct.PgName)
	g.pf("type %s struct {\n", name)
	for i := range ct.Fields {
		f := &ct.Fields[i]
		g.pf("\t%s %s%s\n", camel(f.Name), g.fieldOwn(f), g.jsonTag(f.Name))
	}
	g.pf("}\n\n")

	if g.cfg.Mode != ModePgx {
		// Blocking mode cannot transmit composites; the struct is still
		// emitted so shapes shared with a non-blocking sibling line up.
		return
	}
	g.use(pkgWire)

	hasParams := !ct.IsCopy && !ct.IsParams
	if hasParams {
		g.pf("// %s is the parameter-position shape of %s: nested non-copy\n", g.paramsName(ct), name)
		g.pf("// composites are given in their parameter form.\n")
		g.pf("type %s struct {\n", g.paramsName(ct))
		for i := range ct.Fields {
			f := &ct.Fields[i]
			g.pf("\t%s %s\n", camel(f.Name), g.fieldParam(f))
		}
		g.pf("}\n\n")
	}

	if !ct.IsCopy {
		brw := g.borrowedName(ct)
		g.pf("// %s views its variable-width fields directly in the decode buffer;\n", brw)
		g.pf("// it is only valid within the decode-and-map step that produced it.\n")
		g.pf("type %s struct {\n", brw)
		for i := range ct.Fields {
			f := &ct.Fields[i]
			g.pf("\t%s %s\n", camel(f.Name), g.fieldBrw(f))
		}
		g.pf("}\n\n")

		var w strings.Builder
		n := 0
		for i := range ct.Fields {
			f := &ct.Fields[i]
			g.fieldOwnAssign(&w, f, "v."+camel(f.Name), "o."+camel(f.Name), "\t", &n)
		}
		g.pf("func (v %s) owned() %s {\n", brw, name)
		g.pf("\tvar o %s\n", name)
		g.pf("%s", w.String())
		g.pf("\treturn o\n}\n\n")
	}

	g.encodeMethod(ct, name, g.ownType)
	if hasParams {
		g.encodeMethod(ct, g.paramsName(ct), g.paramType)
	}

	g.pf("func accepts%s(t *wire.Type) bool {\n", name)
	g.pf("\treturn wire.AcceptComposite(t, %q, []wire.FieldAccept{\n", ct.PgName)
	for i := range ct.Fields {
		f := &ct.Fields[i]
		g.pf("\t\t{Name: %q, Accepts: %s},\n", f.Name, g.acceptExpr(f.Type))
	}
	g.pf("\t})\n}\n\n")

	g.scanComposite(ct, name)

	data := codecData{
		Name:      name,
		LowerName: unexported(name),
		PgName:    ct.Schema + "." + ct.PgName,
		HasParams: hasParams,
		IsCopy:    ct.IsCopy,
	}
	if hasParams {
		data.ParamsName = g.paramsName(ct)
	}
	g.use(pkgPgtype)
	g.use("fmt")
	g.use("database/sql/driver")
	if err := compositeCodecTpl.Execute(&g.body, data); err != nil {
		// The template is static and the data struct total; execution
		// cannot fail at runtime.
		panic(err)
	}
	g.pf("\n")
}

// encodeMethod emits encodeComposite on one of the two sendable shapes. The
// bodies differ only where a nested non-copy composite changes type, which
// repr resolves.
func (g *generator) encodeMethod(ct *ir.CustomType, recv string, repr func(*ir.Type, bool) string) {
	g.pf("// encodeComposite writes v in the binary composite layout, following the\n")
	g.pf("// server-reported field order in t.\n")
	g.pf("func (v %s) encodeComposite(t *wire.Type, buf []byte) ([]byte, error) {\n", recv)
	g.pf("\treturn wire.AppendComposite(buf, t, func(f wire.Field, buf []byte) ([]byte, bool, error) {\n")
	g.pf("\t\tswitch f.Name {\n")
	var w strings.Builder
	for i := range ct.Fields {
		f := &ct.Fields[i]
		line(&w, "\t\t", "case %q:", f.Name)
		g.encodeField(&w, f, "v."+camel(f.Name), "f.Type", "\t\t\t", repr)
	}
	g.pf("%s", w.String())
	g.pf("\t\t}\n")
	g.pf("\t\treturn nil, false, wire.ErrUnknownField\n")
	g.pf("\t})\n}\n\n")
}

// scanComposite emits the payload decoder. Non-copy composites decode to the
// borrowed view; copy composites decode straight to the owned struct.
func (g *generator) scanComposite(ct *ir.CustomType, name string) {
	ret := name
	if !ct.IsCopy {
		ret = g.borrowedName(ct)
	}
	g.pf("func scan%s(src []byte) (%s, error) {\n", name, ret)
	g.pf("\tvar v %s\n", ret)
	g.pf("\tsc, err := wire.NewCompositeScanner(src, %d)\n", len(ct.Fields))
	g.pf("\tif err != nil {\n\t\treturn v, err\n\t}\n")
	var w strings.Builder
	n := 0
	for i := range ct.Fields {
		f := &ct.Fields[i]
		p, null := fmt.Sprintf("p%d", i), fmt.Sprintf("null%d", i)
		line(&w, "\t", "%s, %s, err := sc.Next()", p, null)
		line(&w, "\t", "if err != nil {")
		line(&w, "\t", "\treturn v, err")
		line(&w, "\t", "}")
		g.fieldScan(&w, f, p, null, "v."+camel(f.Name), "\t", "return v, ", &n, ct.IsCopy)
	}
	g.pf("%s", w.String())
	g.pf("\treturn v, nil\n}\n\n")
}

// jsonTag returns the serialization tag for one owned struct field, or ""
// when tags are disabled.
func (g *generator) jsonTag(pgName string) string {
	if !g.cfg.Serialize {
		return ""
	}
	return fmt.Sprintf(" `json:%q`", pgName)
}

// registerTypes emits the per-schema registration routine wiring the
// generated codecs into a connection's type map.
func (g *generator) registerTypes(st *ir.SchemaTypes) {
	g.use("context")
	g.use("fmt")
	g.use(pkgPgx)
	g.use(pkgWire)
	for _, ct := range st.Types {
		if !ct.IsEnum() {
			g.use(pkgPgtype)
			break
		}
	}

	fn := "RegisterTypes" + camel(st.Schema)
	g.pf("// %s loads schema %q's custom types from the server and installs\n", fn, st.Schema)
	g.pf("// their codecs on conn's type map. It must run once per connection, before\n")
	g.pf("// the first query touching these types.\n")
	g.pf("func %s(ctx context.Context, conn *pgx.Conn) error {\n", fn)
	g.pf("\ttm := conn.TypeMap()\n")
	for i, ct := range st.Types {
		qual := ct.Schema + "." + ct.PgName
		name := g.typeName(ct)
		t := fmt.Sprintf("t%d", i)
		g.pf("\t%s, err := conn.LoadType(ctx, %q)\n", t, qual)
		g.pf("\tif err != nil {\n\t\treturn fmt.Errorf(\"loading %s: %%w\", err)\n\t}\n", qual)
		g.use("errors")
		g.pf("\tif !accepts%s(wire.FromPgtype(%s)) {\n", name, t)
		g.pf("\t\treturn errors.New(\"server type %s is incompatible with %s\")\n\t}\n", qual, name)
		if ct.IsEnum() {
			g.pf("\ttm.RegisterType(%s)\n", t)
		} else {
			g.pf("\ttm.RegisterType(&pgtype.Type{Name: %s.Name, OID: %s.OID, Codec: %sCodec{typ: wire.FromPgtype(%s)}})\n", t, t, unexported(name), t)
		}
		// The array type rides on the element registration.
		ta := fmt.Sprintf("ta%d", i)
		g.pf("\t%s, err := conn.LoadType(ctx, %q)\n", ta, ct.Schema+"._"+ct.PgName)
		g.pf("\tif err != nil {\n\t\treturn fmt.Errorf(\"loading %s: %%w\", err)\n\t}\n", ct.Schema+"._"+ct.PgName)
		g.pf("\ttm.RegisterType(%s)\n", ta)
	}
	g.pf("\treturn nil\n}\n\n")
}
