// Package pgcat hydrates ir types from a live connection. Built-in scalars
// resolve locally by OID; everything else is looked up in pg_type once and
// cached, so a preparation run touches the catalog at most once per distinct
// custom type.
package pgcat

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/duarten/cornucopia/pkg/ir"
)

// goName derives the exported Go name of a catalog identifier. The generator
// can still remap it through configuration.
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

// Catalog resolves type OIDs reported by the server during preparation.
type Catalog struct {
	conn    *pgx.Conn
	types   map[uint32]*ir.Type
	customs []*ir.CustomType
}

func New(conn *pgx.Conn) *Catalog {
	return &Catalog{conn: conn, types: map[uint32]*ir.Type{}}
}

// CustomTypes returns every enum and composite touched so far, grouped by
// schema in first-use order.
func (c *Catalog) CustomTypes() []ir.SchemaTypes {
	var out []ir.SchemaTypes
	idx := map[string]int{}
	for _, ct := range c.customs {
		i, ok := idx[ct.Schema]
		if !ok {
			i = len(out)
			idx[ct.Schema] = i
			out = append(out, ir.SchemaTypes{Schema: ct.Schema})
		}
		out[i].Types = append(out[i].Types, ct)
	}
	return out
}

// TypeOf resolves one type OID.
func (c *Catalog) TypeOf(ctx context.Context, oid uint32) (*ir.Type, error) {
	if t := builtin(oid); t != nil {
		return t, nil
	}
	if t, ok := c.types[oid]; ok {
		return t, nil
	}
	return c.load(ctx, oid)
}

// builtin maps the scalar and array OIDs the generator supports natively.
func builtin(oid uint32) *ir.Type {
	switch oid {
	case pgtype.BoolOID:
		return ir.TypeBool
	case pgtype.Int2OID:
		return ir.TypeInt2
	case pgtype.Int4OID:
		return ir.TypeInt4
	case pgtype.Int8OID:
		return ir.TypeInt8
	case pgtype.Float4OID:
		return ir.TypeFloat4
	case pgtype.Float8OID:
		return ir.TypeFloat8
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID:
		return ir.TypeText
	case pgtype.ByteaOID:
		return ir.TypeBytea
	case pgtype.TimestampOID:
		return ir.TypeTimestamp
	case pgtype.TimestamptzOID:
		return ir.TypeTimestamptz
	case pgtype.DateOID:
		return ir.TypeDate
	case pgtype.UUIDOID:
		return ir.TypeUUID
	case pgtype.JSONOID, pgtype.JSONBOID:
		return ir.TypeJSON
	case pgtype.BoolArrayOID:
		return ir.ArrayOf(ir.TypeBool)
	case pgtype.Int2ArrayOID:
		return ir.ArrayOf(ir.TypeInt2)
	case pgtype.Int4ArrayOID:
		return ir.ArrayOf(ir.TypeInt4)
	case pgtype.Int8ArrayOID:
		return ir.ArrayOf(ir.TypeInt8)
	case pgtype.Float4ArrayOID:
		return ir.ArrayOf(ir.TypeFloat4)
	case pgtype.Float8ArrayOID:
		return ir.ArrayOf(ir.TypeFloat8)
	case pgtype.TextArrayOID, pgtype.VarcharArrayOID, pgtype.BPCharArrayOID:
		return ir.ArrayOf(ir.TypeText)
	case pgtype.ByteaArrayOID:
		return ir.ArrayOf(ir.TypeBytea)
	case pgtype.TimestampArrayOID:
		return ir.ArrayOf(ir.TypeTimestamp)
	case pgtype.TimestamptzArrayOID:
		return ir.ArrayOf(ir.TypeTimestamptz)
	case pgtype.DateArrayOID:
		return ir.ArrayOf(ir.TypeDate)
	case pgtype.UUIDArrayOID:
		return ir.ArrayOf(ir.TypeUUID)
	case pgtype.JSONArrayOID, pgtype.JSONBArrayOID:
		return ir.ArrayOf(ir.TypeJSON)
	}
	return nil
}

const typeQuery = `
SELECT t.typname, n.nspname, t.typtype::text, t.typcategory::text, t.typelem, t.typrelid, t.typbasetype
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE t.oid = $1`

func (c *Catalog) load(ctx context.Context, oid uint32) (*ir.Type, error) {
	var (
		name, schema, kind, category string
		elem, relid, base            uint32
	)
	err := c.conn.QueryRow(ctx, typeQuery, oid).Scan(&name, &schema, &kind, &category, &elem, &relid, &base)
	if err != nil {
		return nil, fmt.Errorf("looking up type oid %d: %w", oid, err)
	}

	switch kind {
	case "d":
		// Domains dissolve into their base type.
		t, err := c.TypeOf(ctx, base)
		if err != nil {
			return nil, err
		}
		c.types[oid] = t
		return t, nil
	case "b":
		// typelem alone does not make an array: point and int2vector set it
		// too, and must not resolve as slices of their accessor type.
		if category == "A" && elem != 0 {
			et, err := c.TypeOf(ctx, elem)
			if err != nil {
				return nil, err
			}
			t := ir.ArrayOf(et)
			c.types[oid] = t
			return t, nil
		}
		return nil, fmt.Errorf("unsupported base type %s.%s (oid %d)", schema, name, oid)
	case "e":
		return c.loadEnum(ctx, oid, schema, name)
	case "c":
		return c.loadComposite(ctx, oid, relid, schema, name)
	}
	return nil, fmt.Errorf("unsupported type %s.%s of kind %q", schema, name, kind)
}

func (c *Catalog) loadEnum(ctx context.Context, oid uint32, schema, name string) (*ir.Type, error) {
	rows, err := c.conn.Query(ctx, `SELECT enumlabel FROM pg_enum WHERE enumtypid = $1 ORDER BY enumsortorder`, oid)
	if err != nil {
		return nil, fmt.Errorf("loading enum %s.%s: %w", schema, name, err)
	}
	variants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("loading enum %s.%s: %w", schema, name, err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("enum %s.%s has no variants", schema, name)
	}
	ct := &ir.CustomType{Schema: schema, PgName: name, Name: goName(name), IsCopy: true, Variants: variants}
	c.customs = append(c.customs, ct)
	t := ir.TypeOf(ct)
	c.types[oid] = t
	return t, nil
}

func (c *Catalog) loadComposite(ctx context.Context, oid, relid uint32, schema, name string) (*ir.Type, error) {
	// Register before descending so self-references terminate.
	ct := &ir.CustomType{Schema: schema, PgName: name, Name: goName(name)}
	t := ir.TypeOf(ct)
	c.types[oid] = t

	rows, err := c.conn.Query(ctx, `
SELECT a.attname, a.atttypid
FROM pg_attribute a
WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`, relid)
	if err != nil {
		return nil, fmt.Errorf("loading composite %s.%s: %w", schema, name, err)
	}
	type attr struct {
		Name string
		OID  uint32
	}
	attrs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[attr])
	if err != nil {
		return nil, fmt.Errorf("loading composite %s.%s: %w", schema, name, err)
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("composite %s.%s has no attributes", schema, name)
	}

	copyable := true
	for _, a := range attrs {
		ft, err := c.TypeOf(ctx, a.OID)
		if err != nil {
			return nil, fmt.Errorf("composite %s.%s: field %s: %w", schema, name, a.Name, err)
		}
		if !ft.IsCopy() {
			copyable = false
		}
		ct.Fields = append(ct.Fields, ir.Field{Name: a.Name, Type: ft})
	}
	ct.IsCopy = copyable
	c.customs = append(c.customs, ct)
	return t, nil
}
