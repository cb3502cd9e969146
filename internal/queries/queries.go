// Package queries reads annotated query files. One file is one module; each
// query starts with an annotation comment and runs to the terminating
// semicolon:
//
//	--! authors_by_year (year) : Author(age?)
//	SELECT name, age FROM authors WHERE year = :year;
//
// The annotation names the query, optionally lists its parameters (a ?
// suffix marks one nullable), and optionally names the row shape and marks
// nullable columns. Named placeholders (:ident) are rewritten to positional
// $n arguments, reusing one position when a name is referenced more than
// once; everything else in the SQL text is passed to the server verbatim.
package queries

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Module is the scanned form of one query file.
type Module struct {
	Name    string
	Queries []Query
}

// Query is one scanned query, with its SQL already rewritten to positional
// placeholders.
type Query struct {
	Name string
	SQL  string

	// Params lists declared parameter names in declaration order. When the
	// annotation carries no list, declaration order is first appearance in
	// the SQL text.
	Params         []string
	NullableParams map[string]bool

	// Order maps each positional placeholder $(i+1) to the declared index
	// of the parameter bound there.
	Order []int

	// RowName is the annotated row shape name, or "" for a query-derived
	// one. NullableCols marks annotated nullable columns by name.
	RowName      string
	NullableCols map[string]bool
}

// ParseFile scans one query file. The module name is the file stem.
func ParseFile(path, src string) (*Module, error) {
	m := &Module{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	lines := strings.Split(src, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "--!") {
			if line != "" && !strings.HasPrefix(line, "--") {
				return nil, fmt.Errorf("%s:%d: SQL outside a query annotation", path, i+1)
			}
			i++
			continue
		}
		q, err := parseAnnotation(strings.TrimPrefix(line, "--!"))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		i++
		var sql strings.Builder
		done := false
		for i < len(lines) && !done {
			l := lines[i]
			if t := strings.TrimSpace(l); strings.HasPrefix(t, "--!") {
				return nil, fmt.Errorf("%s:%d: query %s has no terminating semicolon", path, i+1, q.Name)
			}
			if idx := terminator(l); idx >= 0 {
				l = l[:idx]
				done = true
			}
			if sql.Len() > 0 {
				sql.WriteString("\n")
			}
			sql.WriteString(l)
			i++
		}
		if !done {
			return nil, fmt.Errorf("%s: query %s has no terminating semicolon", path, q.Name)
		}
		if err := q.rewrite(strings.TrimSpace(sql.String())); err != nil {
			return nil, fmt.Errorf("%s: query %s: %w", path, q.Name, err)
		}
		m.Queries = append(m.Queries, *q)
	}
	if len(m.Queries) == 0 {
		return nil, fmt.Errorf("%s: no queries", path)
	}
	return m, nil
}

// parseAnnotation reads `name [(params)] [: [RowName] [(cols)]]`.
func parseAnnotation(s string) (*Query, error) {
	q := &Query{NullableParams: map[string]bool{}, NullableCols: map[string]bool{}}
	s = strings.TrimSpace(s)

	rest := s
	if i := strings.Index(rest, ":"); i >= 0 {
		rowSpec := strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
		name, cols, err := splitSpec(rowSpec)
		if err != nil {
			return nil, err
		}
		q.RowName = name
		for _, c := range cols {
			n, nullable := cutNullable(c)
			if nullable {
				q.NullableCols[n] = true
			} else {
				return nil, fmt.Errorf("row column %q without ? mark has no effect", n)
			}
		}
	}

	name, params, err := splitSpec(rest)
	if err != nil {
		return nil, err
	}
	if name == "" || !isIdent(name) {
		return nil, fmt.Errorf("invalid query name %q", name)
	}
	q.Name = name
	for _, p := range params {
		n, nullable := cutNullable(p)
		if !isIdent(n) {
			return nil, fmt.Errorf("invalid parameter name %q", n)
		}
		q.Params = append(q.Params, n)
		if nullable {
			q.NullableParams[n] = true
		}
	}
	return q, nil
}

// splitSpec splits `ident (a, b)` into the ident and the list; both parts
// are optional.
func splitSpec(s string) (string, []string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, nil
	}
	open := strings.Index(s, "(")
	if open < 0 {
		return s, nil, nil
	}
	name := strings.TrimSpace(s[:open])
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("unterminated list in %q", s)
	}
	inner := s[open+1 : len(s)-1]
	var items []string
	for _, part := range strings.Split(inner, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return name, items, nil
}

func cutNullable(s string) (string, bool) {
	if strings.HasSuffix(s, "?") {
		return strings.TrimSpace(strings.TrimSuffix(s, "?")), true
	}
	return s, false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// terminator finds the statement-ending semicolon outside strings, quoted
// identifiers, and comments, or -1.
func terminator(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ';':
			return i
		case '\'', '"':
			q := line[i]
			for i++; i < len(line) && line[i] != q; i++ {
			}
		case '-':
			if i+1 < len(line) && line[i+1] == '-' {
				return -1
			}
		}
	}
	return -1
}

// rewrite replaces :name placeholders with positional arguments and fills
// Order. Casts (::) and text inside strings, quoted identifiers and comments
// are left alone.
func (q *Query) rewrite(sql string) error {
	positions := map[string]int{}
	var out strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(sql) && sql[j] != c {
				j++
			}
			if j < len(sql) {
				j++
			}
			out.WriteString(sql[i:j])
			i = j
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				j = len(sql) - i
			}
			out.WriteString(sql[i : i+j])
			i += j
		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			out.WriteString("::")
			i += 2
		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isIdentByte(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			pos, ok := positions[name]
			if !ok {
				pos = len(positions)
				positions[name] = pos
			}
			fmt.Fprintf(&out, "$%d", pos+1)
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	q.SQL = out.String()

	if len(q.Params) == 0 {
		// Declaration order defaults to first appearance.
		q.Params = make([]string, len(positions))
		for name, pos := range positions {
			q.Params[pos] = name
		}
	}
	declared := map[string]int{}
	for d, name := range q.Params {
		if _, dup := declared[name]; dup {
			return fmt.Errorf("parameter %s declared twice", name)
		}
		declared[name] = d
	}
	for name := range q.NullableParams {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("nullable mark on undeclared parameter %s", name)
		}
	}
	q.Order = make([]int, len(positions))
	for name, pos := range positions {
		d, ok := declared[name]
		if !ok {
			return fmt.Errorf("placeholder :%s is not a declared parameter", name)
		}
		q.Order[pos] = d
	}
	for name, d := range declared {
		if _, used := positions[name]; !used {
			return fmt.Errorf("parameter %s (position %d) is never referenced", name, d+1)
		}
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}
