package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arkframe/record/dialect"
)

// Builder is the shared low-level writer for all statement builders. It
// accumulates the statement text and its arguments, and renders parameter
// placeholders according to the configured dialect.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

// SetDialect configures the dialect of the statement.
func (b *Builder) SetDialect(name string) { b.dialect = name }

// Dialect returns the dialect of the statement.
func (b *Builder) Dialect() string { return b.dialect }

// Quote quotes the given identifier for the configured dialect.
func (b *Builder) Quote(ident string) string {
	if b.dialect == dialect.MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// Arg appends an argument and writes its placeholder.
func (b *Builder) Arg(v any) {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteByte('?')
}

// WriteString writes raw text to the statement.
func (b *Builder) WriteString(s string) { b.sb.WriteString(s) }

// WriteIdent writes a quoted identifier to the statement.
func (b *Builder) WriteIdent(ident string) { b.sb.WriteString(b.Quote(ident)) }

// String returns the accumulated statement text.
func (b *Builder) String() string { return b.sb.String() }

// Predicate is a node in the boolean expression tree of a WHERE clause.
// Predicates are assembled at runtime, which makes it possible to synthesize
// filters for types that are only discovered through reflection.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new empty predicate.
func P() *Predicate { return &Predicate{} }

// Append adds a raw build step to the predicate.
func (p *Predicate) Append(fn func(*Builder)) *Predicate {
	p.fns = append(p.fns, fn)
	return p
}

func (p *Predicate) build(b *Builder) {
	for _, fn := range p.fns {
		fn(b)
	}
}

// EQ returns a column = value predicate.
func EQ(col string, v any) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteIdent(col)
		b.WriteString(" = ")
		b.Arg(v)
	})
}

// NEQ returns a column <> value predicate.
func NEQ(col string, v any) *Predicate { return binary(col, "<>", v) }

// GT returns a column > value predicate.
func GT(col string, v any) *Predicate { return binary(col, ">", v) }

// GTE returns a column >= value predicate.
func GTE(col string, v any) *Predicate { return binary(col, ">=", v) }

// LT returns a column < value predicate.
func LT(col string, v any) *Predicate { return binary(col, "<", v) }

// LTE returns a column <= value predicate.
func LTE(col string, v any) *Predicate { return binary(col, "<=", v) }

func binary(col, op string, v any) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteIdent(col)
		b.WriteString(" " + op + " ")
		b.Arg(v)
	})
}

// IsNull returns a column IS NULL predicate.
func IsNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteIdent(col)
		b.WriteString(" IS NULL")
	})
}

// NotNull returns a column IS NOT NULL predicate.
func NotNull(col string) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteIdent(col)
		b.WriteString(" IS NOT NULL")
	})
}

// In returns a column IN (...) predicate. An empty value list renders the
// always-false predicate.
func In(col string, vs ...any) *Predicate {
	return P().Append(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.WriteIdent(col)
		b.WriteString(" IN (")
		for i, v := range vs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteString(")")
	})
}

// And combines the given predicates with AND.
func And(ps ...*Predicate) *Predicate {
	return P().Append(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString("(")
			p.build(b)
			b.WriteString(")")
		}
	})
}

// Or combines the given predicates with OR.
func Or(ps ...*Predicate) *Predicate {
	return P().Append(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" OR ")
			}
			b.WriteString("(")
			p.build(b)
			b.WriteString(")")
		}
	})
}

// Not negates the given predicate.
func Not(p *Predicate) *Predicate {
	return P().Append(func(b *Builder) {
		b.WriteString("NOT (")
		p.build(b)
		b.WriteString(")")
	})
}

// Selector builds a SELECT statement.
type Selector struct {
	dialect string
	columns []string
	from    string
	where   *Predicate
	orderBy []string
	limit   *int
	offset  *int
}

// Select returns a new Selector for the given columns. An empty column list
// renders "*".
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// SetDialect configures the dialect of the statement.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.from = table
	return s
}

// C returns the column name as referenced by this selector. It exists so
// predicate closures can resolve column names against the selector they are
// applied to.
func (s *Selector) C(column string) string { return column }

// Where appends the given predicate to the WHERE clause, AND-ed with any
// predicate already present.
func (s *Selector) Where(p *Predicate) *Selector {
	if s.where != nil {
		s.where = And(s.where, p)
	} else {
		s.where = p
	}
	return s
}

// OrderBy appends the given columns to the ORDER BY clause.
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.orderBy = append(s.orderBy, columns...)
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Query returns the statement text and its arguments.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	b.WriteString("SELECT ")
	if len(s.columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteIdent(c)
	}
	b.WriteString(" FROM ")
	b.WriteIdent(s.from)
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.build(b)
	}
	for i, c := range s.orderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteIdent(c)
	}
	if s.limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*s.offset))
	}
	return b.String(), b.args
}

// Inserter builds an INSERT statement.
type Inserter struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning []string
}

// Insert returns a new Inserter for the given table.
func Insert(table string) *Inserter {
	return &Inserter{table: table}
}

// SetDialect configures the dialect of the statement.
func (i *Inserter) SetDialect(name string) *Inserter {
	i.dialect = name
	return i
}

// Columns sets the insert columns.
func (i *Inserter) Columns(columns ...string) *Inserter {
	i.columns = append(i.columns, columns...)
	return i
}

// Values sets the values of the inserted row.
func (i *Inserter) Values(values ...any) *Inserter {
	i.values = append(i.values, values...)
	return i
}

// Returning adds a RETURNING clause. Only honored on Postgres.
func (i *Inserter) Returning(columns ...string) *Inserter {
	i.returning = append(i.returning, columns...)
	return i
}

// Query returns the statement text and its arguments.
func (i *Inserter) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.WriteString("INSERT INTO ")
	b.WriteIdent(i.table)
	b.WriteString(" (")
	for n, c := range i.columns {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteIdent(c)
	}
	b.WriteString(") VALUES (")
	for n, v := range i.values {
		if n > 0 {
			b.WriteString(", ")
		}
		b.Arg(v)
	}
	b.WriteString(")")
	if len(i.returning) > 0 && i.dialect == dialect.Postgres {
		b.WriteString(" RETURNING ")
		for n, c := range i.returning {
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteIdent(c)
		}
	}
	return b.String(), b.args
}

// Updater builds an UPDATE statement.
type Updater struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns a new Updater for the given table.
func Update(table string) *Updater {
	return &Updater{table: table}
}

// SetDialect configures the dialect of the statement.
func (u *Updater) SetDialect(name string) *Updater {
	u.dialect = name
	return u
}

// Set adds a column assignment.
func (u *Updater) Set(column string, v any) *Updater {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where sets the WHERE clause, AND-ed with any predicate already present.
func (u *Updater) Where(p *Predicate) *Updater {
	if u.where != nil {
		u.where = And(u.where, p)
	} else {
		u.where = p
	}
	return u
}

// Query returns the statement text and its arguments.
func (u *Updater) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.WriteString("UPDATE ")
	b.WriteIdent(u.table)
	b.WriteString(" SET ")
	for n, c := range u.columns {
		if n > 0 {
			b.WriteString(", ")
		}
		b.WriteIdent(c)
		b.WriteString(" = ")
		b.Arg(u.values[n])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.build(b)
	}
	return b.String(), b.args
}

// Deleter builds a DELETE statement.
type Deleter struct {
	dialect string
	table   string
	where   *Predicate
}

// Delete returns a new Deleter for the given table.
func Delete(table string) *Deleter {
	return &Deleter{table: table}
}

// SetDialect configures the dialect of the statement.
func (d *Deleter) SetDialect(name string) *Deleter {
	d.dialect = name
	return d
}

// Where sets the WHERE clause, AND-ed with any predicate already present.
func (d *Deleter) Where(p *Predicate) *Deleter {
	if d.where != nil {
		d.where = And(d.where, p)
	} else {
		d.where = p
	}
	return d
}

// Query returns the statement text and its arguments.
func (d *Deleter) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.WriteString("DELETE FROM ")
	b.WriteIdent(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.build(b)
	}
	return b.String(), b.args
}

// ScanValues scans all rows into a slice of value slices, one per row.
// Column order follows the result set.
func ScanValues(rows *Rows, n int) ([][]any, error) {
	var out [][]any
	for rows.Next() {
		row := make([]any, n)
		ptrs := make([]any, n)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Predicate) String() string {
	b := &Builder{}
	p.build(b)
	return fmt.Sprintf("%s %v", b.String(), b.args)
}
