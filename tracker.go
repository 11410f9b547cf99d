package record

import (
	"reflect"
)

// EntryState is the lifecycle state of a tracked entity at commit time.
type EntryState uint8

// The four tracked-entry states. Every successfully committed entry is
// reset to Unchanged by the commit itself; Deleted entries are detached.
const (
	Unchanged EntryState = iota
	Added
	Modified
	Deleted
)

// String returns the state name.
func (s EntryState) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Entry associates a tracked entity with its lifecycle state. Exactly one
// entry exists per tracked instance identity at any time.
type Entry struct {
	// Entity is a pointer to the tracked struct.
	Entity any
	// State is the entry's lifecycle state.
	State EntryState
}

// trackKey identifies a tracked instance: by (type, ID) once the entity has
// a surrogate key, by pointer identity before. Registering a replacement
// value under the same key swaps the entity reference inside the existing
// entry, which is what makes copy-and-replace updates work.
type trackKey struct {
	typ reflect.Type
	id  int64
	ptr uintptr
}

type tracker struct {
	entries []*Entry
	index   map[trackKey]*Entry
}

func newTracker() *tracker {
	return &tracker{index: make(map[trackKey]*Entry)}
}

func keyOf(v any) (trackKey, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return trackKey{}, false
	}
	k := trackKey{typ: rv.Elem().Type()}
	if id := entityID(rv.Elem()); id != 0 {
		k.id = id
	} else {
		k.ptr = rv.Pointer()
	}
	return k, true
}

// entityID reads the int64 ID field of a struct value, returning 0 when the
// field is absent or of another kind.
func entityID(rv reflect.Value) int64 {
	f := rv.FieldByName("ID")
	if !f.IsValid() || f.Kind() != reflect.Int64 {
		return 0
	}
	return f.Int()
}

// register tracks v under the given state, applying the state transition
// rules for already-tracked identities.
func (t *tracker) register(v any, state EntryState) error {
	k, ok := keyOf(v)
	if !ok {
		return NewEntityError("entities must be non-nil struct pointers", v)
	}
	e, tracked := t.index[k]
	if !tracked {
		if state == Deleted {
			// Deleting an untracked entity is allowed as long as it has
			// an identity to delete by.
			if k.id == 0 {
				return ErrUntracked
			}
		}
		e = &Entry{Entity: v, State: state}
		t.entries = append(t.entries, e)
		t.index[k] = e
		return nil
	}
	if state == Unchanged {
		// Attaching over an already-tracked identity keeps the tracked
		// value and its pending state.
		return nil
	}
	e.Entity = v
	switch {
	case state == Deleted && e.State == Added:
		// Never persisted; detach instead of deleting.
		t.detach(k, e)
	case state == Modified && e.State == Added:
		// An entity pending insert stays pending insert.
	default:
		e.State = state
	}
	return nil
}

func (t *tracker) detach(k trackKey, e *Entry) {
	delete(t.index, k)
	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// pending returns the tracked entries whose state is not Unchanged, in
// registration order.
func (t *tracker) pending() []*Entry {
	var out []*Entry
	for _, e := range t.entries {
		if e.State != Unchanged {
			out = append(out, e)
		}
	}
	return out
}

// all returns every tracked entry in registration order.
func (t *tracker) all() []*Entry {
	return append([]*Entry(nil), t.entries...)
}

// reset runs after a successful commit: every surviving entry becomes
// Unchanged, Deleted entries are detached, and the identity index is
// rebuilt so entities that gained an ID during the flush are re-keyed.
func (t *tracker) reset() {
	kept := t.entries[:0]
	t.index = make(map[trackKey]*Entry, len(t.entries))
	for _, e := range t.entries {
		if e.State == Deleted {
			continue
		}
		e.State = Unchanged
		if k, ok := keyOf(e.Entity); ok {
			t.index[k] = e
		}
		kept = append(kept, e)
	}
	t.entries = kept
}
