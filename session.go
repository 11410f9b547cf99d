package record

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arkframe/record/dialect/sql"
	"github.com/arkframe/record/model"
	"github.com/arkframe/record/schema"
)

// Store is the persistence runtime the session rides on. Flush must persist
// the batch atomically: either every entry's write is applied, or none is.
// Errors from both methods propagate to callers unchanged.
type Store interface {
	// Dialect returns the SQL dialect the store speaks.
	Dialect() string
	// Flush atomically persists the pending entries. On success it writes
	// generated keys back into Added entities.
	Flush(ctx context.Context, entries []*Entry) error
	// Query executes a row-returning statement and returns the raw row
	// values in result-set order.
	Query(ctx context.Context, query string, args []any) ([][]any, error)
}

// Session owns a change tracker over a schema registry and orchestrates the
// lifecycle protocol around every commit. Sessions are not safe for
// concurrent use; create one per request or unit of work. The type caches
// consulted during commits are process-wide and shared by all sessions.
type Session struct {
	store    Store
	registry *schema.Registry
	tracker  *tracker
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCache configures a query cache for the session's read path.
func WithCache(c Cache) SessionOption {
	return func(s *Session) { s.cache = c }
}

// WithCacheTTL sets the TTL for cached query results. Zero means no expiry.
func WithCacheTTL(ttl time.Duration) SessionOption {
	return func(s *Session) { s.cacheTTL = ttl }
}

// WithClock overrides the time source used for timestamp application.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns a Session over the given store and registry.
func NewSession(store Store, registry *schema.Registry, opts ...SessionOption) *Session {
	s := &Session{
		store:    store,
		registry: registry,
		tracker:  newTracker(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the schema registry the session operates on.
func (s *Session) Registry() *schema.Registry { return s.registry }

// Add registers v for insert on the next Save.
func (s *Session) Add(v any) error {
	return s.register(v, Added)
}

// Update registers v for update on the next Save. An entity already pending
// insert stays pending insert; re-registering a replacement value for a
// tracked identity swaps the entity reference.
func (s *Session) Update(v any) error {
	return s.register(v, Modified)
}

// Delete registers v for deletion on the next Save. For model-derived types
// with soft deletes enabled the store marks the row deleted instead of
// removing it. Deleting an entity pending insert detaches it.
func (s *Session) Delete(v any) error {
	return s.register(v, Deleted)
}

// Attach tracks v as Unchanged, e.g. an entity materialized elsewhere.
func (s *Session) Attach(v any) error {
	return s.register(v, Unchanged)
}

func (s *Session) register(v any, state EntryState) error {
	if _, err := s.registry.Table(v); err != nil {
		return err
	}
	return s.tracker.register(v, state)
}

// Entries returns the tracked entries in registration order. Exposed for
// stores and diagnostics; mutating the returned entries is undefined.
func (s *Session) Entries() []*Entry { return s.tracker.all() }

// Save commits all pending changes. It is the synchronous form of
// SaveContext and behaves identically.
func (s *Session) Save() error {
	return s.SaveContext(context.Background())
}

// SaveContext commits all pending changes: it applies timestamps, runs the
// before-callback sequences, flushes the batch atomically through the
// store, resets the tracker, and runs the after-callback sequences from the
// pre-flush snapshot. Any error from a before-callback or from the flush
// propagates unchanged and leaves the store without a single write from
// this attempt. The context is passed through to callbacks and the store.
func (s *Session) SaveContext(ctx context.Context) error {
	pending := s.tracker.pending()
	if len(pending) == 0 {
		return nil
	}
	opts := s.registry.Options()
	if opts.Timestamps {
		s.applyTimestamps(pending)
	}
	var snap []snapshotEntry
	if opts.Callbacks {
		// The snapshot must be taken before the flush: a successful flush
		// resets every entry to Unchanged, destroying the state needed to
		// pick the correct after-sequence.
		snap = snapshot(pending)
		if err := runBefore(ctx, snap); err != nil {
			return err
		}
	}
	if err := s.store.Flush(ctx, pending); err != nil {
		return err
	}
	s.tracker.reset()
	s.invalidate(ctx, pending)
	if opts.Callbacks {
		return runAfter(ctx, snap)
	}
	return nil
}

// applyTimestamps stamps CreatedAt/UpdatedAt on Added entries and UpdatedAt
// on Modified entries. One instant is used for the whole commit. Entries of
// non-model types are skipped before any field reflection happens, and a
// missing or mistyped field is a no-op, not an error.
func (s *Session) applyTimestamps(entries []*Entry) {
	now := s.now()
	for _, e := range entries {
		if !model.IsModel(e.Entity) {
			continue
		}
		rv := reflect.ValueOf(e.Entity).Elem()
		switch e.State {
		case Added:
			setTimeField(rv, "CreatedAt", now)
			setTimeField(rv, "UpdatedAt", now)
		case Modified:
			setTimeField(rv, "UpdatedAt", now)
		}
	}
}

var timeType = reflect.TypeOf(time.Time{})

func setTimeField(rv reflect.Value, name string, now time.Time) {
	f := rv.FieldByName(name)
	if !f.IsValid() || !f.CanSet() || f.Type() != timeType {
		return
	}
	f.Set(reflect.ValueOf(now))
}

// invalidate drops cached query results for every table touched by the
// committed batch.
func (s *Session) invalidate(ctx context.Context, entries []*Entry) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		tbl, err := s.registry.Table(e.Entity)
		if err != nil {
			continue
		}
		if _, ok := seen[tbl.Name]; ok {
			continue
		}
		seen[tbl.Name] = struct{}{}
		_ = s.cache.DeletePrefix(ctx, tbl.Name+":")
	}
}

type skipSoftDeleteKey struct{}

// SkipSoftDeleted returns a context that disables the soft-delete filter
// for reads performed with it.
func SkipSoftDeleted(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipSoftDeleteKey{}, true)
}

func softDeleteSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipSoftDeleteKey{}).(bool)
	return skip
}

// Find executes a query for the table of dest's element type and appends
// every matching entity to dest, which must be a pointer to a slice of
// struct pointers. The soft-delete filter of the type, if any, is applied
// unless the context was derived with SkipSoftDeleted. Results are tracked
// as Unchanged.
func (s *Session) Find(ctx context.Context, dest any, preds ...func(*sql.Selector)) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return NewEntityError("find destination must be a pointer to a slice of struct pointers", dest)
	}
	elem := rv.Elem().Type().Elem()
	if elem.Kind() != reflect.Pointer || elem.Elem().Kind() != reflect.Struct {
		return NewEntityError("find destination must be a pointer to a slice of struct pointers", dest)
	}
	tbl, ok := s.registry.TableOf(elem.Elem())
	if !ok {
		return NewEntityError("type is not registered", dest)
	}
	rows, err := s.query(ctx, tbl, nil, preds)
	if err != nil {
		return err
	}
	slice := rv.Elem()
	for _, row := range rows {
		ev := reflect.New(elem.Elem())
		if err := materialize(tbl, row, ev.Elem()); err != nil {
			return err
		}
		if err := s.tracker.register(ev.Interface(), Unchanged); err != nil {
			return err
		}
		slice = reflect.Append(slice, ev)
	}
	rv.Elem().Set(slice)
	return nil
}

// First executes a query limited to one row and scans it into dest, a
// struct pointer. It returns a NotFoundError when no row matches.
func (s *Session) First(ctx context.Context, dest any, preds ...func(*sql.Selector)) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return NewEntityError("first destination must be a struct pointer", dest)
	}
	tbl, ok := s.registry.TableOf(rv.Elem().Type())
	if !ok {
		return NewEntityError("type is not registered", dest)
	}
	limit := func(sel *sql.Selector) { sel.Limit(1) }
	rows, err := s.query(ctx, tbl, limit, preds)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return NewNotFoundError(tbl.Name)
	}
	if err := materialize(tbl, rows[0], rv.Elem()); err != nil {
		return err
	}
	return s.tracker.register(dest, Unchanged)
}

// query builds the SELECT for the table, consults the cache, and falls back
// to the store.
func (s *Session) query(ctx context.Context, tbl *schema.Table, extra func(*sql.Selector), preds []func(*sql.Selector)) ([][]any, error) {
	sel := sql.Select(tbl.ColumnNames()...).
		SetDialect(s.store.Dialect()).
		From(tbl.Name)
	if !softDeleteSkipped(ctx) {
		tbl.ApplyFilters(sel)
	}
	for _, p := range preds {
		p(sel)
	}
	if extra != nil {
		extra(sel)
	}
	query, args := sel.Query()

	var key string
	if s.cache != nil {
		key = fmt.Sprintf("%s:%s:%v", tbl.Name, query, args)
		if b, err := s.cache.Get(ctx, key); err == nil && b != nil {
			var rows [][]any
			if err := msgpack.Unmarshal(b, &rows); err == nil {
				return rows, nil
			}
		}
	}
	rows, err := s.store.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := msgpack.Marshal(rows); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cacheTTL)
		}
	}
	return rows, nil
}

// materialize copies one raw row into the fields of rv, column by column.
func materialize(tbl *schema.Table, row []any, rv reflect.Value) error {
	if len(row) != len(tbl.Columns) {
		return fmt.Errorf("record: scanning %s: expected %d columns, got %d", tbl.Name, len(tbl.Columns), len(row))
	}
	for i := range tbl.Columns {
		f := rv.FieldByIndex(tbl.Columns[i].Index)
		if err := assign(f, row[i]); err != nil {
			return fmt.Errorf("record: scanning %s.%s: %w", tbl.Name, tbl.Columns[i].Name, err)
		}
	}
	return nil
}

// assign coerces a raw driver or cache value into a struct field. Drivers
// disagree on wire types (sqlite has no boolean, cached integers shrink to
// their encoded width), so assignment is by kind, not by exact type.
func assign(f reflect.Value, raw any) error {
	if raw == nil {
		f.SetZero()
		return nil
	}
	if f.Kind() == reflect.Pointer {
		p := reflect.New(f.Type().Elem())
		if err := assign(p.Elem(), raw); err != nil {
			return err
		}
		f.Set(p)
		return nil
	}
	rawv := reflect.ValueOf(raw)
	if rawv.Type() == f.Type() {
		f.Set(rawv)
		return nil
	}
	switch {
	case f.Type() == timeType:
		return assignTime(f, raw)
	case f.Kind() == reflect.Bool:
		switch {
		case rawv.Kind() == reflect.Bool:
			f.SetBool(rawv.Bool())
		case rawv.CanInt():
			f.SetBool(rawv.Int() != 0)
		case rawv.CanUint():
			f.SetBool(rawv.Uint() != 0)
		default:
			return fmt.Errorf("cannot assign %T to bool", raw)
		}
	case f.CanInt():
		switch {
		case rawv.CanInt():
			f.SetInt(rawv.Int())
		case rawv.CanUint():
			f.SetInt(int64(rawv.Uint()))
		case rawv.CanFloat():
			f.SetInt(int64(rawv.Float()))
		default:
			return fmt.Errorf("cannot assign %T to %s", raw, f.Type())
		}
	case f.CanUint():
		switch {
		case rawv.CanInt():
			f.SetUint(uint64(rawv.Int()))
		case rawv.CanUint():
			f.SetUint(rawv.Uint())
		default:
			return fmt.Errorf("cannot assign %T to %s", raw, f.Type())
		}
	case f.CanFloat():
		switch {
		case rawv.CanFloat():
			f.SetFloat(rawv.Float())
		case rawv.CanInt():
			f.SetFloat(float64(rawv.Int()))
		default:
			return fmt.Errorf("cannot assign %T to %s", raw, f.Type())
		}
	case f.Kind() == reflect.String:
		switch v := raw.(type) {
		case string:
			f.SetString(v)
		case []byte:
			f.SetString(string(v))
		default:
			return fmt.Errorf("cannot assign %T to string", raw)
		}
	case f.Type() == reflect.TypeOf([]byte(nil)):
		switch v := raw.(type) {
		case []byte:
			f.SetBytes(append([]byte(nil), v...))
		case string:
			f.SetBytes([]byte(v))
		default:
			return fmt.Errorf("cannot assign %T to []byte", raw)
		}
	default:
		return fmt.Errorf("cannot assign %T to %s", raw, f.Type())
	}
	return nil
}

// timeFormats are tried in order when a driver returns times as text.
var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func assignTime(f reflect.Value, raw any) error {
	var s string
	switch v := raw.(type) {
	case time.Time:
		f.Set(reflect.ValueOf(v))
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot assign %T to time.Time", raw)
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			f.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}
