package codegen

// Mode selects the execution model of the generated code. It is a single
// flag threaded through every emission routine: it changes the companion
// runtime package, the client handle, and where context threading occurs;
// the emitted logical structure is otherwise identical.
type Mode int

const (
	// ModePgx emits non-blocking code over pgx/v5: context on every
	// prepare/execute/fetch, zero-copy row decoding from raw binary values.
	ModePgx Mode = iota

	// ModeSQL emits blocking code over database/sql (lib/pq): synchronous
	// calls, owned decoding through the driver.
	ModeSQL
)

func (m Mode) String() string {
	if m == ModeSQL {
		return "sql"
	}
	return "pgx"
}

// Config is the generation-time configuration the CLI hands to Generate.
type Config struct {
	// Package is the package name of the emitted file.
	Package string

	// Mode selects blocking or non-blocking emission. Callers wanting both
	// run Generate twice into sibling packages.
	Mode Mode

	// Serialize adds JSON struct tags to owned row and type structs.
	Serialize bool

	// TypeNames remaps generated custom type names, keyed by
	// "schema.pgname". Unmapped types keep the name the IR carries.
	TypeNames map[string]string
}

// DefaultConfig returns the defaults the CLI starts from.
func DefaultConfig() *Config {
	return &Config{Package: "cornucopia", Mode: ModePgx}
}
