// Package generate drives the end-to-end pipeline: scan query files, prepare
// them against a database, and emit the typed client packages.
package generate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/duarten/cornucopia/internal/infer"
	"github.com/duarten/cornucopia/internal/pgdb"
	"github.com/duarten/cornucopia/internal/queries"
	"github.com/duarten/cornucopia/pkg/codegen"
	"github.com/duarten/cornucopia/pkg/ir"
)

// Options configures a generation run.
type Options struct {
	// Queries is the directory holding annotated .sql query files.
	Queries string
	// Destination is the directory the generated packages are written under.
	Destination string
	// Package is the base name of the generated package(s).
	Package string
	// Modes selects the renditions to emit. With more than one mode the
	// package name gets a per-mode suffix and each rendition becomes a
	// sibling package.
	Modes []codegen.Mode
	// Serialize adds JSON tags to the generated row and type structs.
	Serialize bool
	// TypeNames remaps "schema.type" to custom Go type names.
	TypeNames map[string]string
}

// Live runs generation against an existing database reachable at dsn.
func Live(ctx context.Context, dsn string, opts Options) error {
	mods, err := LoadModules(opts.Queries)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	prep, err := infer.Prepare(ctx, conn, mods)
	if err != nil {
		return err
	}
	return Emit(prep, opts)
}

// Schema runs generation against an ephemeral database seeded with the given
// schema files.
func Schema(ctx context.Context, schemaFiles []string, opts Options) error {
	mods, err := LoadModules(opts.Queries)
	if err != nil {
		return err
	}

	container, err := pgdb.Start(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	conn, err := pgx.Connect(ctx, container.DSN())
	if err != nil {
		return fmt.Errorf("connecting to ephemeral database: %w", err)
	}
	defer conn.Close(ctx)

	if err := pgdb.Apply(ctx, conn, schemaFiles); err != nil {
		return err
	}

	prep, err := infer.Prepare(ctx, conn, mods)
	if err != nil {
		return err
	}
	return Emit(prep, opts)
}

// LoadModules scans dir for .sql files and parses each into a query module.
func LoadModules(dir string) ([]*queries.Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading queries directory: %w", err)
	}

	var mods []*queries.Module
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading query file: %w", err)
		}
		mod, err := queries.ParseFile(path, string(src))
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("no .sql files found in %s", dir)
	}
	return mods, nil
}

// Emit writes the generated package(s) under opts.Destination. Each mode gets
// its own package directory with a single queries.go file.
func Emit(prep *ir.Preparation, opts Options) error {
	suffixed := len(opts.Modes) > 1
	for _, mode := range opts.Modes {
		pkg := opts.Package
		if suffixed {
			pkg += mode.String()
		}

		var buf bytes.Buffer
		cfg := &codegen.Config{
			Package:   pkg,
			Mode:      mode,
			Serialize: opts.Serialize,
			TypeNames: opts.TypeNames,
		}
		if err := codegen.Generate(&buf, prep, cfg); err != nil {
			return err
		}

		dir := filepath.Join(opts.Destination, pkg)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		path := filepath.Join(dir, "queries.go")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}
