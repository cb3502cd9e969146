// Package codegen is the emission engine: it turns a resolved ir.Preparation
// into Go source implementing typed query builders and wire codecs for
// custom database types.
//
// The engine is a deterministic, side-effect-free mapping from IR to text.
// It assumes the IR is valid; dangling references abort generation. All
// runtime behavior lives in the generated text and the runtime/* packages it
// references.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"sort"
	"strings"

	"github.com/duarten/cornucopia/pkg/ir"
)

// Header is the machine-generated marker every emitted file starts with.
const Header = "// Code generated by cornucopia. DO NOT EDIT."

// Generate emits the complete source text for one execution mode: a types
// section per schema followed by a queries section per module.
func Generate(w io.Writer, prep *ir.Preparation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	g := &generator{cfg: cfg, imports: map[string]bool{}}

	for _, st := range prep.Types {
		g.pf("// Types for schema %q.\n\n", st.Schema)
		for _, ct := range st.Types {
			g.customType(ct)
		}
		if cfg.Mode == ModePgx && len(st.Types) > 0 {
			g.registerTypes(&st)
		}
	}
	for i := range prep.Modules {
		m := &prep.Modules[i]
		g.pf("// Queries for module %q.\n\n", m.Name)
		for j := range m.Params {
			g.paramsStruct(m, &m.Params[j])
		}
		for j := range m.Rows {
			g.rowStructs(m, &m.Rows[j])
		}
		for j := range m.Queries {
			if err := g.query(m, &m.Queries[j]); err != nil {
				return err
			}
		}
	}

	return g.flush(w)
}

type generator struct {
	cfg     *Config
	body    bytes.Buffer
	imports map[string]bool
}

// pf appends formatted text to the body.
func (g *generator) pf(format string, args ...any) {
	fmt.Fprintf(&g.body, format, args...)
}

// use records an import needed by emitted code.
func (g *generator) use(path string) { g.imports[path] = true }

// flush assembles header, package clause, import block and body.
func (g *generator) flush(w io.Writer) error {
	var out bytes.Buffer
	out.WriteString(Header + "\n\n")
	fmt.Fprintf(&out, "package %s\n\n", g.cfg.Package)

	if len(g.imports) > 0 {
		std, ext := []string{}, []string{}
		for path := range g.imports {
			if strings.Contains(path, ".") {
				ext = append(ext, path)
			} else {
				std = append(std, path)
			}
		}
		sort.Strings(std)
		sort.Strings(ext)
		out.WriteString("import (\n")
		for _, p := range std {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		if len(std) > 0 && len(ext) > 0 {
			out.WriteString("\n")
		}
		for _, p := range ext {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		out.WriteString(")\n\n")
	}

	out.Write(g.body.Bytes())
	src, err := format.Source(out.Bytes())
	if err != nil {
		// Malformed output is an emitter bug; surface it with the text.
		return fmt.Errorf("formatting generated code: %w\n%s", err, out.Bytes())
	}
	_, err = w.Write(src)
	return err
}

// runtimePkg returns the companion runtime selector for the active mode and
// records its import.
func (g *generator) runtimePkg() string {
	if g.cfg.Mode == ModeSQL {
		g.use(pkgSqlrt)
		return "sqlrt"
	}
	g.use(pkgPgxrt)
	return "pgxrt"
}
