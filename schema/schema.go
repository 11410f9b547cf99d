// Package schema derives physical schema metadata for registered entity
// types and applies the engine's naming, timestamp and soft-delete
// conventions to it.
//
// A Registry is built once, at application start, from the set of declared
// entity types. Everything the configurator decides — table names, column
// names, default expressions, the soft-delete filter — is decided here and
// never recomputed.
package schema

import (
	"fmt"
	"reflect"
	"time"

	"github.com/arkframe/record/dialect/sql"
	"github.com/arkframe/record/model"
	"github.com/arkframe/record/naming"
)

// Options are the convention switches read once at registry build time.
type Options struct {
	// SnakeCaseTables derives table names with snake_case.
	SnakeCaseTables bool
	// SnakeCaseColumns renames every column of every registered type to
	// snake_case, model-derived or not.
	SnakeCaseColumns bool
	// PluralTables pluralizes table names.
	PluralTables bool
	// Timestamps maintains created_at/updated_at on model-derived types
	// and marks their columns with a database-side now default.
	Timestamps bool
	// SoftDelete attaches an always-applied "deleted_at IS NULL" filter
	// to every model-derived type.
	SoftDelete bool
	// Callbacks enables the lifecycle callback protocol around commits.
	Callbacks bool
}

// DefaultOptions returns the conventions with every switch enabled.
func DefaultOptions() Options {
	return Options{
		SnakeCaseTables:  true,
		SnakeCaseColumns: true,
		PluralTables:     true,
		Timestamps:       true,
		SoftDelete:       true,
		Callbacks:        true,
	}
}

// TableNamer lets an entity type override its derived table name.
type TableNamer interface {
	TableName() string
}

// Column describes one persisted struct field.
type Column struct {
	// Name is the physical column name.
	Name string
	// Field is the Go field name.
	Field string
	// Index is the reflect field index path into the struct, through
	// embedded fields.
	Index []int
	// Type is the Go type of the field.
	Type reflect.Type
	// Nullable reports whether the field is a pointer type.
	Nullable bool
	// PK marks the surrogate-key column.
	PK bool
	// DefaultExpr is a database-side default expression, if any.
	DefaultExpr string
}

// Table holds the configured schema of one registered entity type.
type Table struct {
	// Name is the physical table name.
	Name string
	// Type is the entity struct type.
	Type reflect.Type
	// Model reports whether the type embeds model.Model.
	Model bool
	// Columns are the persisted columns, in field declaration order.
	Columns []Column

	pk      *Column
	softCol string
	filter  func(*sql.Selector)
}

// PK returns the primary-key column, or nil if the type has none.
func (t *Table) PK() *Column { return t.pk }

// Column returns the column mapped to the given Go field name.
func (t *Table) Column(field string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Field == field {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the physical column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// SoftDeleteColumn returns the physical name of the soft-delete column, or
// the empty string when soft deletes are not configured for the type.
func (t *Table) SoftDeleteColumn() string { return t.softCol }

// HasFilter reports whether an always-applied query filter is registered
// for the type.
func (t *Table) HasFilter() bool { return t.filter != nil }

// ApplyFilters applies the registered query filters to the selector.
func (t *Table) ApplyFilters(s *sql.Selector) {
	if t.filter != nil {
		t.filter(s)
	}
}

// Registry maps registered entity types to their configured tables.
type Registry struct {
	opts   Options
	tables map[reflect.Type]*Table
	order  []*Table
}

// Options returns the convention options the registry was built with.
func (r *Registry) Options() Options { return r.opts }

// Tables returns the configured tables in registration order.
func (r *Registry) Tables() []*Table { return r.order }

// Table returns the configured table for v's dynamic type.
func (r *Registry) Table(v any) (*Table, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil, fmt.Errorf("schema: cannot resolve table for nil value")
	}
	tbl, ok := r.tables[t]
	if !ok {
		return nil, fmt.Errorf("schema: type %s is not registered", t)
	}
	return tbl, nil
}

// TableOf returns the configured table for the given struct type.
func (r *Registry) TableOf(t reflect.Type) (*Table, bool) {
	tbl, ok := r.tables[t]
	return tbl, ok
}

// Build configures a Registry for the given entity types. Each value is a
// sample of a persisted type (typically a nil-able pointer or zero struct);
// registration order is preserved. Conventions are applied once per type,
// here, and never again.
func Build(opts Options, types ...any) (*Registry, error) {
	r := &Registry{
		opts:   opts,
		tables: make(map[reflect.Type]*Table, len(types)),
	}
	for _, v := range types {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("schema: register %T: entity types must be structs", v)
		}
		if _, ok := r.tables[t]; ok {
			return nil, fmt.Errorf("schema: type %s registered twice", t)
		}
		tbl, err := configure(opts, t, v)
		if err != nil {
			return nil, err
		}
		r.tables[t] = tbl
		r.order = append(r.order, tbl)
	}
	return r, nil
}

// MustBuild is like Build but panics on error. Intended for package-level
// registry construction.
func MustBuild(opts Options, types ...any) *Registry {
	r, err := Build(opts, types...)
	if err != nil {
		panic(err)
	}
	return r
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	timePtrType = reflect.TypeOf((*time.Time)(nil))
	bytesType   = reflect.TypeOf([]byte(nil))
)

func configure(opts Options, t reflect.Type, sample any) (*Table, error) {
	tbl := &Table{
		Type:  t,
		Model: model.IsModelType(t),
	}

	// Table naming.
	name := t.Name()
	if namer, ok := sample.(TableNamer); ok {
		tbl.Name = namer.TableName()
	} else {
		if opts.SnakeCaseTables {
			name = naming.Snake(name)
		}
		if opts.PluralTables {
			name = naming.Pluralize(name)
		}
		tbl.Name = name
	}

	// Column naming runs for every registered type, not only model types.
	collectColumns(opts, t, nil, tbl)
	if len(tbl.Columns) == 0 {
		return nil, fmt.Errorf("schema: type %s has no persistable fields", t)
	}
	for i := range tbl.Columns {
		if tbl.Columns[i].PK {
			tbl.pk = &tbl.Columns[i]
			break
		}
	}

	// Database-side now defaults are a fallback only; the session applies
	// the real values at commit time.
	if opts.Timestamps && tbl.Model {
		for i := range tbl.Columns {
			switch tbl.Columns[i].Field {
			case "CreatedAt", "UpdatedAt":
				tbl.Columns[i].DefaultExpr = "CURRENT_TIMESTAMP"
			}
		}
	}

	// Soft-delete filter synthesis. The predicate is assembled from the
	// runtime-discovered column name; no typed, compile-time filter exists
	// for types only known through reflection.
	if opts.SoftDelete && tbl.Model {
		if c, ok := tbl.Column("DeletedAt"); ok {
			col := c.Name
			tbl.softCol = col
			tbl.filter = func(s *sql.Selector) {
				s.Where(sql.IsNull(s.C(col)))
			}
		}
	}
	return tbl, nil
}

// collectColumns flattens the struct's exported fields, descending into
// embedded structs, and maps each persistable field to a column.
func collectColumns(opts Options, t reflect.Type, index []int, tbl *Table) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		path := append(append([]int(nil), index...), i)
		ft := f.Type
		if f.Anonymous {
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType {
				collectColumns(opts, ft, path, tbl)
				continue
			}
		}
		if !persistable(ft) {
			continue
		}
		name := f.Name
		if opts.SnakeCaseColumns {
			name = naming.ColumnName(name)
		}
		tbl.Columns = append(tbl.Columns, Column{
			Name:     name,
			Field:    f.Name,
			Index:    path,
			Type:     ft,
			Nullable: ft.Kind() == reflect.Pointer,
			PK:       f.Name == "ID",
		})
	}
}

func persistable(t reflect.Type) bool {
	switch t {
	case timeType, timePtrType, bytesType:
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
