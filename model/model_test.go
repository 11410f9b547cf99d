package model

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type User struct {
	Model
	Name string
}

// Audited embeds Model one level deep.
type Audited struct {
	Model
	By string
}

type Invoice struct {
	Audited
	Total int64
}

// Attachment is persisted but is not a model type.
type Attachment struct {
	ID   int64
	Path string
}

type hooked struct {
	Model
}

func (h *hooked) BeforeSave(context.Context) error    { return nil }
func (h *hooked) AfterSave(context.Context) error     { return nil }
func (h *hooked) BeforeCreate(context.Context) error  { return nil }
func (h *hooked) AfterCreate(context.Context) error   { return nil }
func (h *hooked) BeforeUpdate(context.Context) error  { return nil }
func (h *hooked) AfterUpdate(context.Context) error   { return nil }
func (h *hooked) BeforeDestroy(context.Context) error { return nil }
func (h *hooked) AfterDestroy(context.Context) error  { return nil }

type saveOnly struct {
	Model
}

func (s *saveOnly) BeforeSave(context.Context) error { return nil }
func (s *saveOnly) AfterSave(context.Context) error  { return nil }

func TestIsModelType(t *testing.T) {
	t.Parallel()

	assert.True(t, IsModelType(reflect.TypeOf(User{})))
	assert.True(t, IsModelType(reflect.TypeOf(&User{})))
	// Transitive embedding is recognized at any depth.
	assert.True(t, IsModelType(reflect.TypeOf(Invoice{})))
	assert.False(t, IsModelType(reflect.TypeOf(Attachment{})))
	assert.False(t, IsModelType(reflect.TypeOf("")))
	assert.False(t, IsModelType(nil))

	assert.True(t, IsModel(&User{}))
	assert.False(t, IsModel(&Attachment{}))
	assert.False(t, IsModel(nil))
}

func TestCapabilityOf(t *testing.T) {
	t.Parallel()

	all := CapBeforeSave | CapAfterSave | CapBeforeCreate | CapAfterCreate |
		CapBeforeUpdate | CapAfterUpdate | CapBeforeDestroy | CapAfterDestroy

	assert.Equal(t, all, CapabilityOf(reflect.TypeOf(&hooked{})))
	assert.Equal(t, CapBeforeSave|CapAfterSave, CapabilityOf(reflect.TypeOf(&saveOnly{})))
	assert.Equal(t, Capability(0), CapabilityOf(reflect.TypeOf(&User{})))
	assert.Equal(t, Capability(0), CapabilityOf(nil))

	flags := CapabilityOf(reflect.TypeOf(&saveOnly{}))
	assert.True(t, flags.Has(CapBeforeSave))
	assert.False(t, flags.Has(CapBeforeCreate))
	assert.False(t, flags.Has(CapBeforeSave|CapBeforeCreate))
}

// The two caches are shared across sessions and must tolerate concurrent
// first use of the same types.
func TestCachesConcurrent(t *testing.T) {
	t.Parallel()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			assert.True(t, IsModelType(reflect.TypeOf(Invoice{})))
			assert.False(t, IsModelType(reflect.TypeOf(Attachment{})))
			assert.True(t, CapabilityOf(reflect.TypeOf(&hooked{})).Has(CapAfterDestroy))
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
