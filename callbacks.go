package record

import (
	"context"
	"reflect"

	"github.com/arkframe/record/model"
)

// snapshotEntry captures (entity reference, state) before the flush. The
// commit resets every tracked entry to Unchanged on success, so the
// post-commit sequence must be driven from this snapshot, never from the
// live tracker.
type snapshotEntry struct {
	entity any
	state  EntryState
	flags  model.Capability
}

// snapshot captures the model-derived entries pending a write. Non-model
// entries never participate in callbacks, even while tracked.
func snapshot(entries []*Entry) []snapshotEntry {
	snap := make([]snapshotEntry, 0, len(entries))
	for _, e := range entries {
		if e.State == Unchanged || !model.IsModel(e.Entity) {
			continue
		}
		snap = append(snap, snapshotEntry{
			entity: e.Entity,
			state:  e.State,
			flags:  model.CapabilityOf(reflect.TypeOf(e.Entity)),
		})
	}
	return snap
}

// runBefore executes the pre-commit sequence for every snapshot entry:
// Added entities get BeforeSave then BeforeCreate, Modified get BeforeSave
// then BeforeUpdate, Deleted get BeforeDestroy. The first error halts the
// entity's sequence and every entity after it, and propagates unchanged so
// the commit is aborted before the store sees a single write.
func runBefore(ctx context.Context, snap []snapshotEntry) error {
	for _, e := range snap {
		switch e.state {
		case Added:
			if e.flags.Has(model.CapBeforeSave) {
				if err := e.entity.(model.BeforeSaver).BeforeSave(ctx); err != nil {
					return err
				}
			}
			if e.flags.Has(model.CapBeforeCreate) {
				if err := e.entity.(model.BeforeCreator).BeforeCreate(ctx); err != nil {
					return err
				}
			}
		case Modified:
			if e.flags.Has(model.CapBeforeSave) {
				if err := e.entity.(model.BeforeSaver).BeforeSave(ctx); err != nil {
					return err
				}
			}
			if e.flags.Has(model.CapBeforeUpdate) {
				if err := e.entity.(model.BeforeUpdater).BeforeUpdate(ctx); err != nil {
					return err
				}
			}
		case Deleted:
			if e.flags.Has(model.CapBeforeDestroy) {
				if err := e.entity.(model.BeforeDestroyer).BeforeDestroy(ctx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// runAfter executes the post-commit sequence from the snapshot: AfterCreate
// then AfterSave for Added, AfterUpdate then AfterSave for Modified,
// AfterDestroy for Deleted. It only ever runs after a successful flush; an
// error is returned to the caller but the write has already persisted.
func runAfter(ctx context.Context, snap []snapshotEntry) error {
	for _, e := range snap {
		switch e.state {
		case Added:
			if e.flags.Has(model.CapAfterCreate) {
				if err := e.entity.(model.AfterCreator).AfterCreate(ctx); err != nil {
					return err
				}
			}
			if e.flags.Has(model.CapAfterSave) {
				if err := e.entity.(model.AfterSaver).AfterSave(ctx); err != nil {
					return err
				}
			}
		case Modified:
			if e.flags.Has(model.CapAfterUpdate) {
				if err := e.entity.(model.AfterUpdater).AfterUpdate(ctx); err != nil {
					return err
				}
			}
			if e.flags.Has(model.CapAfterSave) {
				if err := e.entity.(model.AfterSaver).AfterSave(ctx); err != nil {
					return err
				}
			}
		case Deleted:
			if e.flags.Has(model.CapAfterDestroy) {
				if err := e.entity.(model.AfterDestroyer).AfterDestroy(ctx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
