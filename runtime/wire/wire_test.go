package wire_test

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/duarten/cornucopia/runtime/wire"
)

// compositeType builds the descriptor for a three-field composite the way a
// live server would report it.
func compositeType(fieldOrder ...string) *wire.Type {
	byName := map[string]wire.Field{
		"such_cool": {Name: "such_cool", Type: &wire.Type{OID: pgtype.Int4OID, Name: "int4"}},
		"wow":       {Name: "wow", Type: &wire.Type{OID: pgtype.TextOID, Name: "text"}},
		"nice":      {Name: "nice", Type: &wire.Type{OID: 16385, Name: "spongebob_character"}},
	}
	t := &wire.Type{OID: 16386, Name: "custom_composite", Schema: "public"}
	for _, n := range fieldOrder {
		t.Fields = append(t.Fields, byName[n])
	}
	return t
}

// encodeExample dispatches on field name the way generated encoders do.
func encodeExample(f wire.Field, buf []byte) ([]byte, bool, error) {
	switch f.Name {
	case "such_cool":
		return wire.AppendInt32(buf, 42), false, nil
	case "wow":
		return wire.AppendText(buf, "hi"), false, nil
	case "nice":
		return wire.AppendText(buf, "Patrick"), false, nil
	}
	return nil, false, wire.ErrUnknownField
}

func TestAppendCompositeRoundTrip(t *testing.T) {
	ty := compositeType("such_cool", "wow", "nice")
	buf, err := wire.AppendComposite(nil, ty, encodeExample)
	require.NoError(t, err)

	sc, err := wire.NewCompositeScanner(buf, 3)
	require.NoError(t, err)

	p, null, err := sc.Next()
	require.NoError(t, err)
	require.False(t, null)
	got, err := wire.ScanInt32(p)
	require.NoError(t, err)
	require.Equal(t, int32(42), got)

	p, null, err = sc.Next()
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, "hi", string(wire.ScanTextView(p)))

	p, null, err = sc.Next()
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, "Patrick", string(wire.ScanTextView(p)))
}

func TestAppendCompositeFollowsServerOrder(t *testing.T) {
	// The server may report attributes in an order that differs from the
	// declaration the generator saw; the payload must follow the server.
	ty := compositeType("wow", "nice", "such_cool")
	buf, err := wire.AppendComposite(nil, ty, encodeExample)
	require.NoError(t, err)

	require.Equal(t, int32(3), int32(binary.BigEndian.Uint32(buf)))
	// First field on the wire is "wow": its OID, then length 2, then "hi".
	require.Equal(t, uint32(pgtype.TextOID), binary.BigEndian.Uint32(buf[4:]))
	require.Equal(t, int32(2), int32(binary.BigEndian.Uint32(buf[8:])))
	require.Equal(t, "hi", string(buf[12:14]))
}

func TestAppendCompositeNull(t *testing.T) {
	ty := compositeType("wow")
	buf, err := wire.AppendComposite(nil, ty, func(f wire.Field, buf []byte) ([]byte, bool, error) {
		return buf, true, nil
	})
	require.NoError(t, err)

	// Count, OID, then the -1 length marker and nothing else.
	require.Len(t, buf, 12)
	require.Equal(t, int32(-1), int32(binary.BigEndian.Uint32(buf[8:])))

	sc, err := wire.NewCompositeScanner(buf, 1)
	require.NoError(t, err)
	p, null, err := sc.Next()
	require.NoError(t, err)
	require.True(t, null)
	require.Nil(t, p)
}

func TestAppendCompositeUnknownField(t *testing.T) {
	ty := compositeType("such_cool")
	ty.Fields[0].Name = "renamed_on_server"
	_, err := wire.AppendComposite(nil, ty, encodeExample)
	require.ErrorIs(t, err, wire.ErrUnknownField)
}

func TestCompositeScannerFieldCount(t *testing.T) {
	ty := compositeType("such_cool", "wow")
	buf, err := wire.AppendComposite(nil, ty, encodeExample)
	require.NoError(t, err)

	_, err = wire.NewCompositeScanner(buf, 3)
	require.ErrorIs(t, err, wire.ErrFieldCount)
}

func TestCompositeScannerTruncated(t *testing.T) {
	ty := compositeType("such_cool", "wow")
	buf, err := wire.AppendComposite(nil, ty, encodeExample)
	require.NoError(t, err)

	sc, err := wire.NewCompositeScanner(buf[:len(buf)-1], 2)
	require.NoError(t, err)
	_, _, err = sc.Next()
	require.NoError(t, err)
	_, _, err = sc.Next()
	require.ErrorIs(t, err, wire.ErrShortPayload)

	_, err = wire.NewCompositeScanner([]byte{0, 0}, 2)
	require.ErrorIs(t, err, wire.ErrShortPayload)
}

func TestAcceptComposite(t *testing.T) {
	fields := []wire.FieldAccept{
		{Name: "such_cool", Accepts: wire.AcceptsInt4},
		{Name: "wow", Accepts: wire.AcceptsText},
		{Name: "nice", Accepts: func(t *wire.Type) bool { return wire.AcceptEnum(t, "spongebob_character") }},
	}

	t.Run("declaration order", func(t *testing.T) {
		require.True(t, wire.AcceptComposite(compositeType("such_cool", "wow", "nice"), "custom_composite", fields))
	})

	t.Run("server order is irrelevant", func(t *testing.T) {
		require.True(t, wire.AcceptComposite(compositeType("nice", "such_cool", "wow"), "custom_composite", fields))
	})

	t.Run("name mismatch", func(t *testing.T) {
		require.False(t, wire.AcceptComposite(compositeType("such_cool", "wow", "nice"), "other_composite", fields))
	})

	t.Run("missing field", func(t *testing.T) {
		require.False(t, wire.AcceptComposite(compositeType("such_cool", "wow"), "custom_composite", fields))
	})

	t.Run("duplicated reported name", func(t *testing.T) {
		// Same count, but "such_cool" twice and no "wow".
		ty := compositeType("such_cool", "such_cool", "nice")
		require.False(t, wire.AcceptComposite(ty, "custom_composite", fields))
	})

	t.Run("renamed field", func(t *testing.T) {
		ty := compositeType("such_cool", "wow", "nice")
		ty.Fields[1].Name = "amaze"
		require.False(t, wire.AcceptComposite(ty, "custom_composite", fields))
	})

	t.Run("retyped field", func(t *testing.T) {
		ty := compositeType("such_cool", "wow", "nice")
		ty.Fields[0].Type = &wire.Type{OID: pgtype.Int8OID, Name: "int8"}
		require.False(t, wire.AcceptComposite(ty, "custom_composite", fields))
	})

	t.Run("nil type", func(t *testing.T) {
		require.False(t, wire.AcceptComposite(nil, "custom_composite", fields))
	})
}

func TestScalarRoundTrips(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		v, err := wire.ScanBool(wire.AppendBool(nil, true))
		require.NoError(t, err)
		require.True(t, v)
	})

	t.Run("int16", func(t *testing.T) {
		v, err := wire.ScanInt16(wire.AppendInt16(nil, -7))
		require.NoError(t, err)
		require.Equal(t, int16(-7), v)
	})

	t.Run("int32", func(t *testing.T) {
		v, err := wire.ScanInt32(wire.AppendInt32(nil, -70000))
		require.NoError(t, err)
		require.Equal(t, int32(-70000), v)
	})

	t.Run("int64", func(t *testing.T) {
		v, err := wire.ScanInt64(wire.AppendInt64(nil, 1<<40))
		require.NoError(t, err)
		require.Equal(t, int64(1<<40), v)
	})

	t.Run("float64", func(t *testing.T) {
		v, err := wire.ScanFloat64(wire.AppendFloat64(nil, 3.5))
		require.NoError(t, err)
		require.Equal(t, 3.5, v)
	})

	t.Run("uuid", func(t *testing.T) {
		in := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
		v, err := wire.ScanUUID(wire.AppendUUID(nil, in))
		require.NoError(t, err)
		require.Equal(t, in, v)
	})

	t.Run("timestamp keeps microseconds", func(t *testing.T) {
		in := time.Date(2021, 7, 8, 9, 10, 11, 123456000, time.UTC)
		v, err := wire.ScanTimestamp(wire.AppendTimestamp(nil, in))
		require.NoError(t, err)
		require.True(t, in.Equal(v))
	})

	t.Run("date before the epoch", func(t *testing.T) {
		in := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)
		v, err := wire.ScanDate(wire.AppendDate(nil, in))
		require.NoError(t, err)
		require.True(t, in.Equal(v))
	})

	t.Run("strict lengths", func(t *testing.T) {
		_, err := wire.ScanInt32([]byte{0, 0, 0, 0, 0})
		require.ErrorIs(t, err, wire.ErrShortPayload)
		_, err = wire.ScanBool(nil)
		require.ErrorIs(t, err, wire.ErrShortPayload)
		_, err = wire.ScanUUID([]byte{1, 2, 3})
		require.ErrorIs(t, err, wire.ErrShortPayload)
	})
}

func TestJSONPayloads(t *testing.T) {
	doc := []byte(`{"a":1}`)

	t.Run("jsonb carries the version header", func(t *testing.T) {
		buf := wire.AppendJSON(nil, pgtype.JSONBOID, doc)
		require.Equal(t, append([]byte{1}, doc...), buf)
		view := wire.ScanJSONView(buf)
		require.True(t, json.Valid(view))
		require.Equal(t, doc, view)
	})

	t.Run("json is the bare text", func(t *testing.T) {
		buf := wire.AppendJSON(nil, pgtype.JSONOID, doc)
		require.Equal(t, doc, buf)
		require.Equal(t, doc, wire.ScanJSONView(buf))
	})

	t.Run("server-formatted jsonb round-trips byte-exact", func(t *testing.T) {
		fromServer := []byte{0x01, 0x7b, 0x22, 0x61, 0x22, 0x3a, 0x31, 0x7d}
		view := wire.ScanJSONView(fromServer)
		require.True(t, json.Valid(view))
		require.Equal(t, fromServer, wire.AppendJSON(nil, pgtype.JSONBOID, view))
	})
}

func TestArrayRoundTrip(t *testing.T) {
	vals := []int32{4, 8, 15}
	buf, err := wire.AppendArray(nil, pgtype.Int4OID, vals, func(buf []byte, v int32) ([]byte, bool, error) {
		return wire.AppendInt32(buf, v), false, nil
	})
	require.NoError(t, err)

	var got []int32
	err = wire.ScanArray(buf, func(p []byte, null bool) error {
		require.False(t, null)
		v, err := wire.ScanInt32(p)
		if err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestArrayWithNulls(t *testing.T) {
	vals := []*int32{ptr(int32(1)), nil, ptr(int32(3))}
	buf, err := wire.AppendArray(nil, pgtype.Int4OID, vals, func(buf []byte, v *int32) ([]byte, bool, error) {
		if v == nil {
			return buf, true, nil
		}
		return wire.AppendInt32(buf, *v), false, nil
	})
	require.NoError(t, err)

	// has_nulls is set and the second element carries the -1 marker with no
	// payload: header (20) + elem 1 (4+4) + marker (4) puts it at offset 28.
	require.Equal(t, int32(1), int32(binary.BigEndian.Uint32(buf[4:])))
	require.Equal(t, int32(-1), int32(binary.BigEndian.Uint32(buf[28:])))

	var got []*int32
	err = wire.ScanArray(buf, func(p []byte, null bool) error {
		if null {
			got = append(got, nil)
			return nil
		}
		v, err := wire.ScanInt32(p)
		if err != nil {
			return err
		}
		got = append(got, &v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestEmptyArray(t *testing.T) {
	buf, err := wire.AppendArray(nil, pgtype.TextOID, nil, func(buf []byte, v string) ([]byte, bool, error) {
		return wire.AppendText(buf, v), false, nil
	})
	require.NoError(t, err)

	called := false
	err = wire.ScanArray(buf, func([]byte, bool) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestMultiDimensionalArrayRejected(t *testing.T) {
	buf := binary.BigEndian.AppendUint32(nil, 2)
	buf = binary.BigEndian.AppendUint32(buf, 0)
	buf = binary.BigEndian.AppendUint32(buf, pgtype.Int4OID)
	err := wire.ScanArray(buf, func([]byte, bool) error { return nil })
	require.Error(t, err)
	require.False(t, errors.Is(err, wire.ErrShortPayload))
}

func TestFromPgtype(t *testing.T) {
	inner := &pgtype.Type{Name: "int4", OID: pgtype.Int4OID, Codec: pgtype.Int4Codec{}}
	comp := &pgtype.Type{
		Name: "custom_composite",
		OID:  16386,
		Codec: &pgtype.CompositeCodec{Fields: []pgtype.CompositeCodecField{
			{Name: "such_cool", Type: inner},
		}},
	}

	got := wire.FromPgtype(comp)
	require.Equal(t, "custom_composite", got.Name)
	require.Len(t, got.Fields, 1)
	require.Equal(t, "such_cool", got.Fields[0].Name)
	require.Equal(t, uint32(pgtype.Int4OID), got.Fields[0].Type.OID)

	arr := &pgtype.Type{Name: "_custom_composite", OID: 16387, Codec: &pgtype.ArrayCodec{ElementType: comp}}
	gotArr := wire.FromPgtype(arr)
	require.NotNil(t, gotArr.Elem)
	require.Equal(t, "custom_composite", gotArr.Elem.Name)
	require.True(t, wire.AcceptsArray(gotArr, func(t *wire.Type) bool { return t.Name == "custom_composite" }))

	require.Nil(t, wire.FromPgtype(nil))
}

func ptr[T any](v T) *T { return &v }
