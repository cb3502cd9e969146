// Package wire implements the PostgreSQL binary encoding for values exchanged
// with the server, in particular the composite-type layout:
//
//	int32 field_count
//	per field: int32 type_oid, int32 length_or_-1, payload_bytes
//
// Generated code drives this package: pkg/codegen emits per-type encode,
// decode and accepts routines that call into the builders and scanners here.
// Field order on the wire follows the type as the server reports it, which
// the server negotiates per connection and which need not match declaration
// order; decoding follows the statically-known declaration order. Every byte
// position matters, so nothing here is approximated.
package wire

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Sentinel errors surfaced by generated encode/decode routines.
var (
	// ErrFieldCount is returned when a composite payload reports a field
	// count different from the statically-known one.
	ErrFieldCount = errors.New("wire: composite field count mismatch")

	// ErrTooLarge is returned when a single encoded field exceeds the 31-bit
	// signed length the protocol can express.
	ErrTooLarge = errors.New("wire: value too large to transmit")

	// ErrUnknownField is returned when the server reports a composite field
	// the generated type does not declare.
	ErrUnknownField = errors.New("wire: unknown composite field")

	// ErrShortPayload is returned when a payload ends before its declared
	// length.
	ErrShortPayload = errors.New("wire: short payload")

	// ErrUnexpectedNull is returned when a null arrives in a position the
	// statically-known type declared non-nullable.
	ErrUnexpectedNull = errors.New("wire: unexpected null")
)

// nullLen is the -1 length marker as written on the wire.
const nullLen = ^uint32(0)

// Type describes a database type as negotiated with a live server: its OID,
// its reported name and schema, and, for composites, the field descriptors in
// server-reported order.
type Type struct {
	OID    uint32
	Name   string
	Schema string
	Fields []Field

	// Elem is set for array types.
	Elem *Type
}

// Field is one member of a composite Type.
type Field struct {
	Name string
	Type *Type
}

// FromPgtype adapts a type loaded through pgx (for example with
// pgx.Conn.LoadType) into the descriptor form generated code consumes.
func FromPgtype(t *pgtype.Type) *Type {
	if t == nil {
		return nil
	}
	w := &Type{OID: t.OID, Name: t.Name}
	switch c := t.Codec.(type) {
	case *pgtype.CompositeCodec:
		for _, f := range c.Fields {
			w.Fields = append(w.Fields, Field{Name: f.Name, Type: FromPgtype(f.Type)})
		}
	case *pgtype.ArrayCodec:
		w.Elem = FromPgtype(c.ElementType)
	}
	return w
}

// IsNull reports whether a raw column value is the SQL null. pgx surfaces
// null columns as nil slices in RawValues.
func IsNull(src []byte) bool { return src == nil }

func shortErr(want int, got int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", ErrShortPayload, want, got)
}
