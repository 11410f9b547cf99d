// Package record implements a convention-over-configuration model engine on
// top of a tracked-entity persistence runtime.
//
// Domain types embed record.Model and are registered once, at application
// start, into a schema.Registry that applies the naming, timestamp and
// soft-delete conventions. A Session tracks entity changes and, on Save,
// runs the two-phase lifecycle callback protocol around the store's atomic
// flush:
//
//	reg := schema.MustBuild(record.DefaultOptions(), &User{}, &Post{})
//	store := sqlstore.New(drv, reg)
//	sess := record.NewSession(store, reg)
//
//	u := &User{Name: "ariel"}
//	if err := sess.Add(u); err != nil { ... }
//	if err := sess.SaveContext(ctx); err != nil { ... }
//
// Lifecycle behavior is opted into per type by implementing any of the
// eight capability interfaces in the model package (model.BeforeSaver,
// model.AfterCreator, ...). Soft-deleted rows are filtered out of every
// read transparently; SkipSoftDeleted derives a context that reads them.
package record

import (
	"github.com/arkframe/record/model"
	"github.com/arkframe/record/schema"
)

type (
	// Model is the base entity marker every managed type must embed.
	// It is an alias of model.Model.
	Model = model.Model

	// Options are the convention switches. Alias of schema.Options.
	Options = schema.Options
)

// DefaultOptions returns the conventions with every switch enabled.
func DefaultOptions() Options { return schema.DefaultOptions() }
