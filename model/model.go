// Package model defines the base entity type, the lifecycle capability
// interfaces, and the reflection caches that classify runtime types.
//
// A domain type opts into the engine by embedding Model (directly or through
// any chain of embedded structs):
//
//	type User struct {
//	    model.Model
//	    Name  string
//	    Email string
//	}
//
// Lifecycle behavior is opted into per type by implementing any of the eight
// capability interfaces (BeforeSaver, AfterCreator, ...) on the pointer
// receiver. Both classification and capability detection are computed at most
// once per concrete type for the life of the process.
package model

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// Model is the base entity marker. Every type the engine manages must embed
// it transitively. It carries the surrogate key, the bookkeeping timestamps,
// and the soft-delete marker; it has no behavior of its own.
type Model struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// The eight lifecycle capability interfaces. A type implements any subset of
// them; the engine invokes the matching methods around every commit in which
// the entity participates. Any returned error from a before-method aborts
// the commit before the write reaches the store.
type (
	// BeforeSaver runs before every insert or update of the entity.
	BeforeSaver interface {
		BeforeSave(ctx context.Context) error
	}
	// AfterSaver runs after every committed insert or update.
	AfterSaver interface {
		AfterSave(ctx context.Context) error
	}
	// BeforeCreator runs before an insert, after BeforeSave.
	BeforeCreator interface {
		BeforeCreate(ctx context.Context) error
	}
	// AfterCreator runs after a committed insert, before AfterSave.
	AfterCreator interface {
		AfterCreate(ctx context.Context) error
	}
	// BeforeUpdater runs before an update, after BeforeSave.
	BeforeUpdater interface {
		BeforeUpdate(ctx context.Context) error
	}
	// AfterUpdater runs after a committed update, before AfterSave.
	AfterUpdater interface {
		AfterUpdate(ctx context.Context) error
	}
	// BeforeDestroyer runs before a delete. Save callbacks do not run for
	// deletes.
	BeforeDestroyer interface {
		BeforeDestroy(ctx context.Context) error
	}
	// AfterDestroyer runs after a committed delete.
	AfterDestroyer interface {
		AfterDestroy(ctx context.Context) error
	}
)

// Capability is a bitmask of the lifecycle interfaces a type implements.
type Capability uint16

// One bit per capability interface.
const (
	CapBeforeSave Capability = 1 << iota
	CapAfterSave
	CapBeforeCreate
	CapAfterCreate
	CapBeforeUpdate
	CapAfterUpdate
	CapBeforeDestroy
	CapAfterDestroy
)

// Has reports whether all bits in c are set in the mask.
func (m Capability) Has(c Capability) bool { return m&c == c }

var capabilityIfaces = [...]struct {
	cap   Capability
	iface reflect.Type
}{
	{CapBeforeSave, reflect.TypeOf((*BeforeSaver)(nil)).Elem()},
	{CapAfterSave, reflect.TypeOf((*AfterSaver)(nil)).Elem()},
	{CapBeforeCreate, reflect.TypeOf((*BeforeCreator)(nil)).Elem()},
	{CapAfterCreate, reflect.TypeOf((*AfterCreator)(nil)).Elem()},
	{CapBeforeUpdate, reflect.TypeOf((*BeforeUpdater)(nil)).Elem()},
	{CapAfterUpdate, reflect.TypeOf((*AfterUpdater)(nil)).Elem()},
	{CapBeforeDestroy, reflect.TypeOf((*BeforeDestroyer)(nil)).Elem()},
	{CapAfterDestroy, reflect.TypeOf((*AfterDestroyer)(nil)).Elem()},
}

var (
	modelType = reflect.TypeOf(Model{})

	// Process-wide, write-once-per-key caches. Types never gain or lose
	// embeds or methods at runtime, so entries are never invalidated.
	classifyCache   sync.Map // reflect.Type -> bool
	capabilityCache sync.Map // reflect.Type -> Capability
)

// IsModelType reports whether t (or its pointer element) transitively embeds
// Model. The result is computed once per concrete type and cached for the
// life of the process; it is safe for concurrent use.
func IsModelType(t reflect.Type) bool {
	t = indirect(t)
	if t == nil {
		return false
	}
	if v, ok := classifyCache.Load(t); ok {
		return v.(bool)
	}
	ok := embedsModel(t)
	classifyCache.Store(t, ok)
	return ok
}

// IsModel reports whether v's dynamic type transitively embeds Model.
func IsModel(v any) bool {
	if v == nil {
		return false
	}
	return IsModelType(reflect.TypeOf(v))
}

// CapabilityOf returns the capability bitmask for t (or its pointer
// element). Interface checks run against the pointer type, so methods
// declared on either value or pointer receivers are detected. Computed once
// per concrete type; safe for concurrent use.
func CapabilityOf(t reflect.Type) Capability {
	t = indirect(t)
	if t == nil {
		return 0
	}
	if v, ok := capabilityCache.Load(t); ok {
		return v.(Capability)
	}
	var mask Capability
	pt := reflect.PointerTo(t)
	for _, c := range capabilityIfaces {
		if pt.Implements(c.iface) {
			mask |= c.cap
		}
	}
	capabilityCache.Store(t, mask)
	return mask
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// embedsModel walks the embedded-field chain of t looking for Model.
func embedsModel(t reflect.Type) bool {
	if t == modelType {
		return true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && embedsModel(ft) {
			return true
		}
	}
	return false
}
