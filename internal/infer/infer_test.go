package infer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duarten/cornucopia/internal/infer"
	"github.com/duarten/cornucopia/internal/pgdb"
	"github.com/duarten/cornucopia/internal/queries"
	"github.com/duarten/cornucopia/pkg/ir"
)

const testSchema = `
CREATE TYPE spongebob_character AS ENUM ('Bob', 'Patrick', 'Squidward');

CREATE TYPE custom_composite AS (
    wow text,
    such_cool integer,
    nice spongebob_character
);

CREATE TABLE authors (
    id serial PRIMARY KEY,
    name text NOT NULL,
    age integer,
    favorite custom_composite
);
`

const testQueries = `--! insert_author (name, age?)
insert into authors (name, age) values (:name, :age);

--! authors : Author(age?)
select name, age from authors;

--! authors_by_name (name) : Author(age?)
select age, name from authors where name = :name;

--! favorites
select favorite from authors;

--! names_by_age (ages)
select name from authors where age = any(:ages);
`

// startDatabase brings up an ephemeral server and applies the test schema.
func startDatabase(t *testing.T) *pgx.Conn {
	t.Helper()
	ctx := context.Background()

	container, err := pgdb.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	conn, err := pgx.Connect(ctx, container.DSN())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	schemaPath := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))
	require.NoError(t, pgdb.Apply(ctx, conn, []string{schemaPath}))

	return conn
}

func TestPrepareAgainstDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	conn := startDatabase(t)

	src, err := queries.ParseFile("authors.sql", testQueries)
	require.NoError(t, err)

	prep, err := infer.Prepare(ctx, conn, []*queries.Module{src})
	require.NoError(t, err)

	// Custom types hydrate in first-use order; the enum is reached while
	// descending into the composite's fields.
	require.Len(t, prep.Types, 1)
	st := prep.Types[0]
	assert.Equal(t, "public", st.Schema)
	require.Len(t, st.Types, 2)

	enum := st.Types[0]
	assert.Equal(t, "spongebob_character", enum.PgName)
	assert.Equal(t, "SpongebobCharacter", enum.Name)
	assert.True(t, enum.IsEnum())
	assert.True(t, enum.IsCopy)
	assert.Equal(t, []string{"Bob", "Patrick", "Squidward"}, enum.Variants)

	comp := st.Types[1]
	assert.Equal(t, "custom_composite", comp.PgName)
	assert.Equal(t, "CustomComposite", comp.Name)
	assert.False(t, comp.IsEnum())
	assert.False(t, comp.IsCopy) // wow is text
	require.Len(t, comp.Fields, 3)
	assert.Equal(t, "wow", comp.Fields[0].Name)
	assert.Equal(t, ir.KindText, comp.Fields[0].Type.Kind)
	assert.Equal(t, "such_cool", comp.Fields[1].Name)
	assert.Equal(t, ir.KindInt4, comp.Fields[1].Type.Kind)
	assert.Equal(t, "nice", comp.Fields[2].Name)
	assert.Equal(t, ir.KindEnum, comp.Fields[2].Type.Kind)
	assert.Same(t, enum, comp.Fields[2].Type.Custom)

	require.Len(t, prep.Modules, 1)
	mod := prep.Modules[0]
	assert.Equal(t, "authors", mod.Name)
	require.Len(t, mod.Queries, 5)

	// insert_author: two parameters, no rows.
	ins := mod.Queries[0]
	assert.Nil(t, ins.Row)
	require.NotNil(t, ins.Param)
	assert.Equal(t, []int{0, 1}, ins.Param.Order)
	params, err := mod.Param(&ins)
	require.NoError(t, err)
	assert.Equal(t, "InsertAuthorParams", params.Name)
	assert.True(t, params.IsNamed)
	assert.True(t, params.IsRef) // name is text
	require.Len(t, params.Fields, 2)
	assert.Equal(t, ir.KindText, params.Fields[0].Type.Kind)
	assert.False(t, params.Fields[0].IsNullable)
	assert.Equal(t, ir.KindInt4, params.Fields[1].Type.Kind)
	assert.True(t, params.Fields[1].IsNullable)

	// authors: declares the shared Author row in select-list order.
	authors := mod.Queries[1]
	require.NotNil(t, authors.Row)
	assert.Equal(t, []int{0, 1}, authors.Row.Columns)
	row, err := mod.Row(&authors)
	require.NoError(t, err)
	assert.Equal(t, "Author", row.Name)
	assert.True(t, row.IsNamed)
	assert.False(t, row.IsCopy)
	require.Len(t, row.Fields, 2)
	assert.Equal(t, "name", row.Fields[0].Name)
	assert.False(t, row.Fields[0].IsNullable)
	assert.Equal(t, "age", row.Fields[1].Name)
	assert.True(t, row.Fields[1].IsNullable)

	// authors_by_name selects the same row with the columns permuted.
	byName := mod.Queries[2]
	require.NotNil(t, byName.Row)
	assert.Equal(t, authors.Row.Index, byName.Row.Index)
	assert.Equal(t, []int{1, 0}, byName.Row.Columns)

	// favorites: single unannotated composite column.
	favs := mod.Queries[3]
	require.NotNil(t, favs.Row)
	row, err = mod.Row(&favs)
	require.NoError(t, err)
	assert.Equal(t, "FavoritesRow", row.Name)
	assert.False(t, row.IsNamed)
	require.Len(t, row.Fields, 1)
	assert.Equal(t, ir.KindComposite, row.Fields[0].Type.Kind)
	assert.Same(t, comp, row.Fields[0].Type.Custom)

	// names_by_age: array parameter.
	byAge := mod.Queries[4]
	params, err = mod.Param(&byAge)
	require.NoError(t, err)
	assert.False(t, params.IsNamed)
	require.Len(t, params.Fields, 1)
	assert.Equal(t, ir.KindArray, params.Fields[0].Type.Kind)
	assert.Equal(t, ir.KindInt4, params.Fields[0].Type.Elem.Kind)
}

func TestPrepareReportsBadSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	conn := startDatabase(t)

	src, err := queries.ParseFile("broken.sql", "--! broken\nselect nope from authors;\n")
	require.NoError(t, err)

	_, err = infer.Prepare(ctx, conn, []*queries.Module{src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preparing broken")
}

func TestPrepareRejectsPseudoArrayTypes(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	conn := startDatabase(t)

	// point sets typelem without being an array; it must error instead of
	// resolving as a float8 slice.
	src, err := queries.ParseFile("geo.sql", "--! spots\nselect point '(1,2)' as spot from authors;\n")
	require.NoError(t, err)

	_, err = infer.Prepare(ctx, conn, []*queries.Module{src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported base type")
	assert.Contains(t, err.Error(), "point")
}

func TestPrepareRejectsParamCountMismatch(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	conn := startDatabase(t)

	// $2 never appears as a :param, so the annotation binds fewer
	// parameters than the server reports.
	src, err := queries.ParseFile("authors.sql",
		"--! lookup (name)\nselect name from authors where name = :name and age = $2;\n")
	require.NoError(t, err)

	_, err = infer.Prepare(ctx, conn, []*queries.Module{src})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server reports 2 parameters")
}
