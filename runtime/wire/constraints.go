package wire

// Capability bounds for the ergonomic generic parameters emitted by
// pkg/codegen. A call site may pass an owned value, a borrowed view, or any
// convertible named type; the generated Bind signature carries one type
// parameter per distinct bound.

// TextLike is anything encodable as a text payload.
type TextLike interface {
	~string | ~[]byte
}

// BytesLike is anything encodable as a bytea payload.
type BytesLike interface {
	~[]byte | ~string
}

// JSONLike is anything encodable as a json/jsonb payload. json.RawMessage
// satisfies it.
type JSONLike interface {
	~[]byte | ~string
}
