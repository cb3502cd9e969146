package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Postgres timestamps count microseconds from 2000-01-01, dates count days.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Append* helpers grow buf with the binary encoding of one scalar.

func AppendUint32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

func AppendInt16(buf []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(buf, uint16(v))
}

func AppendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func AppendInt64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func AppendFloat32(buf []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
}

func AppendFloat64(buf []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
}

func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// AppendText appends the payload of a text value. It is also the encoding of
// enum labels and, via TextLike, accepts owned and borrowed inputs alike.
func AppendText[T TextLike](buf []byte, v T) []byte {
	return append(buf, v...)
}

func AppendBytea[T BytesLike](buf []byte, v T) []byte {
	return append(buf, v...)
}

// jsonb binary payloads open with a one-byte format version; json payloads
// are the bare text.
const jsonbVersion = 1

// AppendJSON appends a json value's payload, adding the version header when
// the destination type is jsonb. oid is the server-reported type OID.
func AppendJSON[T BytesLike](buf []byte, oid uint32, v T) []byte {
	if oid == pgtype.JSONBOID {
		buf = append(buf, jsonbVersion)
	}
	return append(buf, v...)
}

// ScanJSONView returns a view of the JSON text, stripping the jsonb version
// header when present. JSON text never opens with byte 0x01, so the header
// is unambiguous and the OID is not needed.
func ScanJSONView(src []byte) []byte {
	if len(src) > 0 && src[0] == jsonbVersion {
		return src[1:]
	}
	return src
}

func AppendUUID(buf []byte, v [16]byte) []byte {
	return append(buf, v[:]...)
}

func AppendTimestamp(buf []byte, v time.Time) []byte {
	return AppendInt64(buf, v.Sub(pgEpoch).Microseconds())
}

func AppendDate(buf []byte, v time.Time) []byte {
	days := v.Truncate(24*time.Hour).Sub(pgEpoch) / (24 * time.Hour)
	return AppendInt32(buf, int32(days))
}

// Scan* helpers decode one scalar from a field payload. Length checks are
// exact: a scalar payload with trailing bytes is as corrupt as a short one.

func ScanInt16(src []byte) (int16, error) {
	if len(src) != 2 {
		return 0, shortErr(2, len(src))
	}
	return int16(binary.BigEndian.Uint16(src)), nil
}

func ScanInt32(src []byte) (int32, error) {
	if len(src) != 4 {
		return 0, shortErr(4, len(src))
	}
	return int32(binary.BigEndian.Uint32(src)), nil
}

func ScanInt64(src []byte) (int64, error) {
	if len(src) != 8 {
		return 0, shortErr(8, len(src))
	}
	return int64(binary.BigEndian.Uint64(src)), nil
}

func ScanFloat32(src []byte) (float32, error) {
	if len(src) != 4 {
		return 0, shortErr(4, len(src))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(src)), nil
}

func ScanFloat64(src []byte) (float64, error) {
	if len(src) != 8 {
		return 0, shortErr(8, len(src))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
}

func ScanBool(src []byte) (bool, error) {
	if len(src) != 1 {
		return false, shortErr(1, len(src))
	}
	return src[0] != 0, nil
}

// ScanTextView returns the payload itself: a borrowed view into the decode
// buffer, valid only within the decode-and-map step. Materializing it into a
// string is the one sanctioned copy.
func ScanTextView(src []byte) []byte { return src }

func ScanUUID(src []byte) ([16]byte, error) {
	var v [16]byte
	if len(src) != 16 {
		return v, shortErr(16, len(src))
	}
	copy(v[:], src)
	return v, nil
}

func ScanTimestamp(src []byte) (time.Time, error) {
	us, err := ScanInt64(src)
	if err != nil {
		return time.Time{}, err
	}
	return pgEpoch.Add(time.Duration(us) * time.Microsecond), nil
}

func ScanDate(src []byte) (time.Time, error) {
	days, err := ScanInt32(src)
	if err != nil {
		return time.Time{}, err
	}
	return pgEpoch.AddDate(0, 0, int(days)), nil
}

// Accepts predicates for the built-in scalars, by negotiated OID. Generated
// composite accepts predicates dispatch to these for scalar sub-fields.

func AcceptsBool(t *Type) bool   { return t != nil && t.OID == pgtype.BoolOID }
func AcceptsInt2(t *Type) bool   { return t != nil && t.OID == pgtype.Int2OID }
func AcceptsInt4(t *Type) bool   { return t != nil && t.OID == pgtype.Int4OID }
func AcceptsInt8(t *Type) bool   { return t != nil && t.OID == pgtype.Int8OID }
func AcceptsFloat4(t *Type) bool { return t != nil && t.OID == pgtype.Float4OID }
func AcceptsFloat8(t *Type) bool { return t != nil && t.OID == pgtype.Float8OID }
func AcceptsBytea(t *Type) bool  { return t != nil && t.OID == pgtype.ByteaOID }
func AcceptsUUID(t *Type) bool   { return t != nil && t.OID == pgtype.UUIDOID }

func AcceptsText(t *Type) bool {
	return t != nil && (t.OID == pgtype.TextOID || t.OID == pgtype.VarcharOID || t.OID == pgtype.BPCharOID)
}

func AcceptsTimestamp(t *Type) bool {
	return t != nil && (t.OID == pgtype.TimestampOID || t.OID == pgtype.TimestamptzOID)
}

func AcceptsDate(t *Type) bool { return t != nil && t.OID == pgtype.DateOID }

func AcceptsJSON(t *Type) bool {
	return t != nil && (t.OID == pgtype.JSONOID || t.OID == pgtype.JSONBOID)
}
