// Package sqlstore persists tracked entity batches through a dialect.Driver.
//
// It is the SQL implementation of the record.Store boundary: Flush applies
// a batch of Added/Modified/Deleted entries inside one transaction, and
// Query executes the statements the session builds. Statement generation
// beyond this package (dialect quirks, pooling, isolation) is delegated to
// database/sql and the loaded driver.
package sqlstore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/arkframe/record"
	"github.com/arkframe/record/dialect"
	"github.com/arkframe/record/dialect/sql"
	"github.com/arkframe/record/schema"
)

// Store implements record.Store over a dialect.Driver.
type Store struct {
	drv dialect.Driver
	reg *schema.Registry
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for soft-delete marking.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store flushing through drv using the table metadata in reg.
func New(drv dialect.Driver, reg *schema.Registry, opts ...Option) *Store {
	s := &Store{drv: drv, reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialect implements record.Store.
func (s *Store) Dialect() string { return s.drv.Dialect() }

// Query implements record.Store.
func (s *Store) Query(ctx context.Context, query string, args []any) ([][]any, error) {
	var rows sql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return sql.ScanValues(&rows, len(cols))
}

// Flush implements record.Store. The batch is applied inside a single
// transaction: a failing statement rolls every previous one back and the
// original error propagates unchanged.
func (s *Store) Flush(ctx context.Context, entries []*record.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.State {
		case record.Added:
			err = s.insert(ctx, tx, e.Entity)
		case record.Modified:
			err = s.update(ctx, tx, e.Entity)
		case record.Deleted:
			err = s.delete(ctx, tx, e.Entity)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				return &record.RollbackError{Cause: err, Err: rerr}
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) insert(ctx context.Context, tx dialect.Tx, entity any) error {
	tbl, err := s.reg.Table(entity)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(entity).Elem()
	ins := sql.Insert(tbl.Name).SetDialect(s.Dialect())
	pk := tbl.PK()
	writeback := false
	for _, c := range tbl.Columns {
		if pk != nil && c.Name == pk.Name && rv.FieldByIndex(c.Index).IsZero() {
			// Let the database generate the key.
			writeback = true
			continue
		}
		ins.Columns(c.Name).Values(fieldValue(rv, c))
	}
	if !writeback || pk == nil {
		query, args := ins.Query()
		return tx.Exec(ctx, query, args, nil)
	}
	// Postgres has no LastInsertId; read the key back with RETURNING.
	if s.Dialect() == dialect.Postgres {
		query, args := ins.Returning(pk.Name).Query()
		var rows sql.Rows
		if err := tx.Query(ctx, query, args, &rows); err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return fmt.Errorf("sqlstore: insert into %s returned no key", tbl.Name)
		}
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		setID(rv, pk, id)
		return rows.Err()
	}
	query, args := ins.Query()
	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	setID(rv, pk, id)
	return nil
}

func (s *Store) update(ctx context.Context, tx dialect.Tx, entity any) error {
	tbl, err := s.reg.Table(entity)
	if err != nil {
		return err
	}
	pk := tbl.PK()
	if pk == nil {
		return fmt.Errorf("sqlstore: cannot update %s without a primary key", tbl.Name)
	}
	rv := reflect.ValueOf(entity).Elem()
	if rv.FieldByIndex(pk.Index).IsZero() {
		return fmt.Errorf("sqlstore: cannot update unsaved %s entity", tbl.Name)
	}
	upd := sql.Update(tbl.Name).SetDialect(s.Dialect())
	for _, c := range tbl.Columns {
		if c.Name == pk.Name {
			continue
		}
		upd.Set(c.Name, fieldValue(rv, c))
	}
	query, args := upd.Where(sql.EQ(pk.Name, fieldValue(rv, *pk))).Query()
	return tx.Exec(ctx, query, args, nil)
}

// delete soft-deletes when the type carries a soft-delete column, and
// issues a hard DELETE otherwise.
func (s *Store) delete(ctx context.Context, tx dialect.Tx, entity any) error {
	tbl, err := s.reg.Table(entity)
	if err != nil {
		return err
	}
	pk := tbl.PK()
	if pk == nil {
		return fmt.Errorf("sqlstore: cannot delete %s without a primary key", tbl.Name)
	}
	rv := reflect.ValueOf(entity).Elem()
	if rv.FieldByIndex(pk.Index).IsZero() {
		return fmt.Errorf("sqlstore: cannot delete unsaved %s entity", tbl.Name)
	}
	id := fieldValue(rv, *pk)
	if col := tbl.SoftDeleteColumn(); col != "" {
		now := s.now()
		if c, ok := tbl.Column("DeletedAt"); ok {
			f := rv.FieldByIndex(c.Index)
			if f.Kind() == reflect.Pointer && f.CanSet() {
				f.Set(reflect.ValueOf(&now))
			}
		}
		query, args := sql.Update(tbl.Name).
			SetDialect(s.Dialect()).
			Set(col, now).
			Where(sql.EQ(pk.Name, id)).
			Query()
		return tx.Exec(ctx, query, args, nil)
	}
	query, args := sql.Delete(tbl.Name).
		SetDialect(s.Dialect()).
		Where(sql.EQ(pk.Name, id)).
		Query()
	return tx.Exec(ctx, query, args, nil)
}

// fieldValue reads a column's value from the entity, flattening nil
// pointers to SQL NULL.
func fieldValue(rv reflect.Value, c schema.Column) any {
	f := rv.FieldByIndex(c.Index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return nil
		}
		return f.Elem().Interface()
	}
	return f.Interface()
}

func setID(rv reflect.Value, pk *schema.Column, id int64) {
	f := rv.FieldByIndex(pk.Index)
	if f.CanSet() && f.Kind() == reflect.Int64 {
		f.SetInt(id)
	}
}

// CreateTables creates the tables of every registered type, in registration
// order, skipping tables that already exist. It covers test and bootstrap
// scenarios; production schema management belongs to a migration tool.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, tbl := range s.reg.Tables() {
		stmt, err := s.createStmt(tbl)
		if err != nil {
			return err
		}
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("sqlstore: creating table %s: %w", tbl.Name, err)
		}
	}
	return nil
}

func (s *Store) createStmt(tbl *schema.Table) (string, error) {
	quote := func(ident string) string {
		if s.Dialect() == dialect.MySQL {
			return "`" + ident + "`"
		}
		return `"` + ident + `"`
	}
	var defs []string
	for _, c := range tbl.Columns {
		typ, err := s.columnType(c)
		if err != nil {
			return "", fmt.Errorf("sqlstore: table %s: %w", tbl.Name, err)
		}
		def := quote(c.Name) + " " + typ
		if c.PK {
			defs = append(defs, def)
			continue
		}
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.DefaultExpr != "" {
			def += " DEFAULT " + c.DefaultExpr
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(tbl.Name), strings.Join(defs, ", ")), nil
}

func (s *Store) columnType(c schema.Column) (string, error) {
	t := c.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if c.PK && t.Kind() == reflect.Int64 {
		switch s.Dialect() {
		case dialect.Postgres:
			return "BIGSERIAL PRIMARY KEY", nil
		case dialect.MySQL:
			return "BIGINT AUTO_INCREMENT PRIMARY KEY", nil
		default:
			return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
		}
	}
	if t == reflect.TypeOf(time.Time{}) {
		return "TIMESTAMP", nil
	}
	if t == reflect.TypeOf([]byte(nil)) || t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		if s.Dialect() == dialect.Postgres {
			return "BYTEA", nil
		}
		return "BLOB", nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return "BOOLEAN", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "BIGINT", nil
	case reflect.Float32, reflect.Float64:
		if s.Dialect() == dialect.MySQL {
			return "DOUBLE", nil
		}
		return "DOUBLE PRECISION", nil
	case reflect.String:
		return "TEXT", nil
	}
	return "", fmt.Errorf("unsupported column type %s", c.Type)
}

var _ record.Store = (*Store)(nil)
