package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FieldEncoder appends one field's payload to buf. It receives the
// server-reported descriptor for the field it must encode and returns the
// grown buffer, or null=true (and buf unchanged) for a SQL null. Returning
// ErrUnknownField for an unrecognized name is how generated encoders reject
// descriptors they were not compiled against.
type FieldEncoder func(f Field, buf []byte) (out []byte, null bool, err error)

// AppendComposite appends the binary composite encoding of a value to buf.
// Fields are written in the order the server reported them in ty, not in
// declaration order: enc is called once per descriptor and dispatches on the
// field name. Each field gets its type OID, a backfilled signed length, and
// its payload; nulls get length -1 and no payload.
func AppendComposite(buf []byte, ty *Type, enc FieldEncoder) ([]byte, error) {
	buf = AppendInt32(buf, int32(len(ty.Fields)))
	for _, f := range ty.Fields {
		buf = AppendUint32(buf, f.Type.OID)
		lenPos := len(buf)
		buf = append(buf, 0, 0, 0, 0)
		out, null, err := enc(f, buf)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", f.Name, err)
		}
		if null {
			binary.BigEndian.PutUint32(out[lenPos:], nullLen)
			buf = out
			continue
		}
		n := len(out) - lenPos - 4
		if n > math.MaxInt32 {
			return nil, fmt.Errorf("field %q: %w", f.Name, ErrTooLarge)
		}
		binary.BigEndian.PutUint32(out[lenPos:], uint32(int32(n)))
		buf = out
	}
	return buf, nil
}

// CompositeScanner walks a binary composite payload in the statically-known
// field order. The per-field type OID written by the encoder is skipped
// unvalidated; the accepts predicate already vetted the type before any
// value crossed the wire.
type CompositeScanner struct {
	src []byte
}

// NewCompositeScanner validates the leading field count against the
// statically-known count and positions the scanner on the first field.
func NewCompositeScanner(src []byte, fieldCount int) (CompositeScanner, error) {
	if len(src) < 4 {
		return CompositeScanner{}, shortErr(4, len(src))
	}
	n := int32(binary.BigEndian.Uint32(src))
	if int(n) != fieldCount {
		return CompositeScanner{}, fmt.Errorf("%w: payload has %d, type has %d", ErrFieldCount, n, fieldCount)
	}
	return CompositeScanner{src: src[4:]}, nil
}

// Next consumes one field and returns its payload as a view into the source
// buffer, or null=true for the -1 length marker. The payload slice stays
// valid only as long as the source buffer does.
func (s *CompositeScanner) Next() (payload []byte, null bool, err error) {
	if len(s.src) < 8 {
		return nil, false, shortErr(8, len(s.src))
	}
	// Skip the 4-byte OID, read the signed length.
	n := int32(binary.BigEndian.Uint32(s.src[4:]))
	s.src = s.src[8:]
	if n == -1 {
		return nil, true, nil
	}
	if n < 0 || int(n) > len(s.src) {
		return nil, false, shortErr(int(n), len(s.src))
	}
	payload = s.src[:n:n]
	s.src = s.src[n:]
	return payload, false, nil
}

// FieldAccept pairs a statically-known field name with the accepts predicate
// of its statically-known type.
type FieldAccept struct {
	Name    string
	Accepts func(*Type) bool
}

// AcceptComposite reports whether a server-reported destination type is
// wire-compatible with a statically-known composite: the reported name must
// match exactly and the reported field set must match the static one by name
// and count, order-independent, with each sub-type accepted recursively.
func AcceptComposite(ty *Type, name string, fields []FieldAccept) bool {
	if ty == nil || ty.Name != name || len(ty.Fields) != len(fields) {
		return false
	}
	// Each reported field consumes one static field, so a duplicated reported
	// name cannot mask a missing one.
	matched := make([]bool, len(fields))
	for _, f := range ty.Fields {
		ok := false
		for i := range fields {
			if fields[i].Name == f.Name && !matched[i] {
				matched[i] = true
				ok = fields[i].Accepts(f.Type)
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// AcceptEnum reports whether a server-reported destination type is the named
// enum. Enum compatibility is by name only; the closed variant set is
// enforced when labels are decoded.
func AcceptEnum(ty *Type, name string) bool {
	return ty != nil && ty.Name == name
}
