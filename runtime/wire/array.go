package wire

import (
	"encoding/binary"
	"fmt"
)

// One-dimensional array support, enough for the array-typed columns and
// parameters the generator maps. The binary layout is:
//
//	int32 ndims, int32 has_nulls, int32 elem_oid,
//	per dim: int32 length, int32 lower_bound,
//	per elem: int32 length_or_-1, payload_bytes

// AppendArray appends the binary encoding of a one-dimensional array. enc
// appends one element payload, with the same null convention as
// FieldEncoder.
func AppendArray[T any](buf []byte, elemOID uint32, vals []T, enc func(buf []byte, v T) (out []byte, null bool, err error)) ([]byte, error) {
	if len(vals) == 0 {
		buf = AppendInt32(buf, 0)
		buf = AppendInt32(buf, 0)
		return AppendUint32(buf, elemOID), nil
	}
	buf = AppendInt32(buf, 1)
	nullsPos := len(buf)
	buf = AppendInt32(buf, 0)
	buf = AppendUint32(buf, elemOID)
	buf = AppendInt32(buf, int32(len(vals)))
	buf = AppendInt32(buf, 1)
	for i, v := range vals {
		lenPos := len(buf)
		buf = append(buf, 0, 0, 0, 0)
		out, null, err := enc(buf, v)
		if err != nil {
			return nil, fmt.Errorf("encoding element %d: %w", i, err)
		}
		if null {
			binary.BigEndian.PutUint32(out[lenPos:], nullLen)
			binary.BigEndian.PutUint32(out[nullsPos:], 1)
			buf = out
			continue
		}
		binary.BigEndian.PutUint32(out[lenPos:], uint32(int32(len(out)-lenPos-4)))
		buf = out
	}
	return buf, nil
}

// ScanArray decodes a one-dimensional array, calling scan once per element
// payload. Null elements are delivered as (nil, true).
func ScanArray(src []byte, scan func(payload []byte, null bool) error) error {
	if len(src) < 12 {
		return shortErr(12, len(src))
	}
	ndims := int32(binary.BigEndian.Uint32(src))
	if ndims == 0 {
		return nil
	}
	if ndims != 1 {
		return fmt.Errorf("wire: %d-dimensional array not supported", ndims)
	}
	if len(src) < 20 {
		return shortErr(20, len(src))
	}
	n := int32(binary.BigEndian.Uint32(src[12:]))
	rest := src[20:]
	for i := int32(0); i < n; i++ {
		if len(rest) < 4 {
			return shortErr(4, len(rest))
		}
		l := int32(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if l == -1 {
			if err := scan(nil, true); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			continue
		}
		if l < 0 || int(l) > len(rest) {
			return shortErr(int(l), len(rest))
		}
		if err := scan(rest[:l:l], false); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		rest = rest[l:]
	}
	return nil
}

// AcceptsArray reports whether t is an array whose element type satisfies
// elem.
func AcceptsArray(t *Type, elem func(*Type) bool) bool {
	return t != nil && t.Elem != nil && elem(t.Elem)
}
