package ir

// Kind enumerates the resolved base types the generator knows how to map.
type Kind int

const (
	KindBool Kind = iota
	KindInt2
	KindInt4
	KindInt8
	KindFloat4
	KindFloat8
	KindText
	KindBytea
	KindTimestamp
	KindTimestamptz
	KindDate
	KindUUID
	KindJSON
	KindEnum
	KindComposite
	KindArray
)

// Type is a resolved catalog type. Scalars stand alone; arrays carry their
// element type; enum and composite kinds reference the custom type they were
// declared as.
type Type struct {
	Kind   Kind
	PgName string

	// Elem is the element type of KindArray.
	Elem *Type

	// Custom backs KindEnum and KindComposite.
	Custom *CustomType
}

// Scalar built-in types, shared across Preparations.
var (
	TypeBool        = &Type{Kind: KindBool, PgName: "bool"}
	TypeInt2        = &Type{Kind: KindInt2, PgName: "int2"}
	TypeInt4        = &Type{Kind: KindInt4, PgName: "int4"}
	TypeInt8        = &Type{Kind: KindInt8, PgName: "int8"}
	TypeFloat4      = &Type{Kind: KindFloat4, PgName: "float4"}
	TypeFloat8      = &Type{Kind: KindFloat8, PgName: "float8"}
	TypeText        = &Type{Kind: KindText, PgName: "text"}
	TypeBytea       = &Type{Kind: KindBytea, PgName: "bytea"}
	TypeTimestamp   = &Type{Kind: KindTimestamp, PgName: "timestamp"}
	TypeTimestamptz = &Type{Kind: KindTimestamptz, PgName: "timestamptz"}
	TypeDate        = &Type{Kind: KindDate, PgName: "date"}
	TypeUUID        = &Type{Kind: KindUUID, PgName: "uuid"}
	TypeJSON        = &Type{Kind: KindJSON, PgName: "jsonb"}
)

// ArrayOf returns the one-dimensional array type over elem.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, PgName: "_" + elem.PgName, Elem: elem}
}

// TypeOf returns the reference type for a custom enum or composite.
func TypeOf(ct *CustomType) *Type {
	k := KindComposite
	if ct.IsEnum() {
		k = KindEnum
	}
	return &Type{Kind: k, PgName: ct.PgName, Custom: ct}
}

// IsCopy reports whether values of the type are trivially copyable: no
// backing buffer to borrow from, so the owned and borrowed representations
// coincide.
func (t *Type) IsCopy() bool {
	switch t.Kind {
	case KindText, KindBytea, KindJSON, KindArray:
		return false
	case KindComposite:
		return t.Custom.IsCopy
	default:
		return true
	}
}
