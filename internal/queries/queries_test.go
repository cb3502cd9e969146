package queries_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duarten/cornucopia/internal/queries"
)

func TestParseFile(t *testing.T) {
	src := `
--! list_authors : Author(age?)
SELECT name, age FROM authors;

--! insert_book (title, year?)
INSERT INTO books (title, year) VALUES (:title, :year);
`
	m, err := queries.ParseFile("queries/books.sql", src)
	require.NoError(t, err)
	require.Equal(t, "books", m.Name)
	require.Len(t, m.Queries, 2)

	list := m.Queries[0]
	require.Equal(t, "list_authors", list.Name)
	require.Equal(t, "SELECT name, age FROM authors", list.SQL)
	require.Equal(t, "Author", list.RowName)
	require.True(t, list.NullableCols["age"])
	require.Empty(t, list.Params)

	ins := m.Queries[1]
	require.Equal(t, []string{"title", "year"}, ins.Params)
	require.Equal(t, "INSERT INTO books (title, year) VALUES ($1, $2)", ins.SQL)
	require.Equal(t, []int{0, 1}, ins.Order)
	require.True(t, ins.NullableParams["year"])
	require.False(t, ins.NullableParams["title"])
}

func TestPlaceholderRewrite(t *testing.T) {
	t.Run("declared order differs from reference order", func(t *testing.T) {
		src := `--! find (a, b)
SELECT * FROM t WHERE b = :b AND a = :a;`
		m, err := queries.ParseFile("m.sql", src)
		require.NoError(t, err)
		q := m.Queries[0]
		require.Equal(t, "SELECT * FROM t WHERE b = $1 AND a = $2", q.SQL)
		// $1 binds b (declared index 1), $2 binds a (declared index 0).
		require.Equal(t, []int{1, 0}, q.Order)
	})

	t.Run("repeated references share one position", func(t *testing.T) {
		src := `--! search (needle)
SELECT * FROM t WHERE a = :needle OR b = :needle;`
		m, err := queries.ParseFile("m.sql", src)
		require.NoError(t, err)
		q := m.Queries[0]
		require.Equal(t, "SELECT * FROM t WHERE a = $1 OR b = $1", q.SQL)
		require.Equal(t, []int{0}, q.Order)
	})

	t.Run("casts and strings are untouched", func(t *testing.T) {
		src := `--! when (at)
SELECT ':not_a_param', x::timestamptz FROM t WHERE at = :at;`
		m, err := queries.ParseFile("m.sql", src)
		require.NoError(t, err)
		q := m.Queries[0]
		require.Equal(t, `SELECT ':not_a_param', x::timestamptz FROM t WHERE at = $1`, q.SQL)
	})

	t.Run("undeclared placeholder", func(t *testing.T) {
		src := `--! broken (a)
SELECT * FROM t WHERE a = :a AND b = :b;`
		_, err := queries.ParseFile("m.sql", src)
		require.ErrorContains(t, err, ":b")
	})

	t.Run("unreferenced parameter", func(t *testing.T) {
		src := `--! broken (a, b)
SELECT * FROM t WHERE a = :a;`
		_, err := queries.ParseFile("m.sql", src)
		require.ErrorContains(t, err, "never referenced")
	})
}

func TestParseFileErrors(t *testing.T) {
	t.Run("sql before any annotation", func(t *testing.T) {
		_, err := queries.ParseFile("m.sql", "SELECT 1;")
		require.ErrorContains(t, err, "outside a query annotation")
	})

	t.Run("missing semicolon", func(t *testing.T) {
		_, err := queries.ParseFile("m.sql", "--! q\nSELECT 1")
		require.ErrorContains(t, err, "terminating semicolon")
	})

	t.Run("annotation inside a query body", func(t *testing.T) {
		_, err := queries.ParseFile("m.sql", "--! q\nSELECT 1\n--! r\nSELECT 2;")
		require.ErrorContains(t, err, "terminating semicolon")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := queries.ParseFile("m.sql", "-- just a comment\n")
		require.ErrorContains(t, err, "no queries")
	})
}

func TestMultiLineQuery(t *testing.T) {
	src := strings.Join([]string{
		"--! stats",
		"SELECT count(*),",
		"       max(age) -- trailing note",
		"FROM authors;",
	}, "\n")
	m, err := queries.ParseFile("m.sql", src)
	require.NoError(t, err)
	require.Contains(t, m.Queries[0].SQL, "max(age)")
	require.NotContains(t, m.Queries[0].SQL, ";")
}
