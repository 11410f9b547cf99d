package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkframe/record/dialect/sql"
	"github.com/arkframe/record/model"
)

type BlogPost struct {
	model.Model
	Title    string
	Body     string
	AuthorID int64
	Draft    bool
}

type Category struct {
	model.Model
	Name string
}

// SchemaMigration is persisted but is not a model type.
type SchemaMigration struct {
	ID      int64
	Version string
}

type renamed struct {
	model.Model
	Title string
}

func (renamed) TableName() string { return "legacy_titles" }

func TestBuildTableNaming(t *testing.T) {
	t.Parallel()

	r, err := Build(DefaultOptions(), &BlogPost{}, &Category{}, &SchemaMigration{})
	require.NoError(t, err)

	post, err := r.Table(&BlogPost{})
	require.NoError(t, err)
	assert.Equal(t, "blog_posts", post.Name)
	assert.True(t, post.Model)

	cat, err := r.Table(&Category{})
	require.NoError(t, err)
	assert.Equal(t, "categories", cat.Name)

	mig, err := r.Table(&SchemaMigration{})
	require.NoError(t, err)
	assert.Equal(t, "schema_migrations", mig.Name)
	assert.False(t, mig.Model)
}

func TestBuildNamingDisabled(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.SnakeCaseTables = false
	opts.SnakeCaseColumns = false
	opts.PluralTables = false
	r, err := Build(opts, &BlogPost{})
	require.NoError(t, err)

	tbl, err := r.Table(&BlogPost{})
	require.NoError(t, err)
	assert.Equal(t, "BlogPost", tbl.Name)
	c, ok := tbl.Column("AuthorID")
	require.True(t, ok)
	assert.Equal(t, "AuthorID", c.Name)
}

func TestBuildColumns(t *testing.T) {
	t.Parallel()

	r, err := Build(DefaultOptions(), &BlogPost{}, &SchemaMigration{})
	require.NoError(t, err)

	tbl, err := r.Table(&BlogPost{})
	require.NoError(t, err)
	// Embedded model fields are flattened into columns.
	assert.Equal(t,
		[]string{"id", "created_at", "updated_at", "deleted_at", "title", "body", "author_id", "draft"},
		tbl.ColumnNames(),
	)
	require.NotNil(t, tbl.PK())
	assert.Equal(t, "id", tbl.PK().Name)

	c, ok := tbl.Column("DeletedAt")
	require.True(t, ok)
	assert.True(t, c.Nullable)

	// Auxiliary types get snake_case columns too.
	mig, err := r.Table(&SchemaMigration{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "version"}, mig.ColumnNames())
}

func TestTimestampDefaults(t *testing.T) {
	t.Parallel()

	r, err := Build(DefaultOptions(), &BlogPost{}, &SchemaMigration{})
	require.NoError(t, err)

	tbl, _ := r.Table(&BlogPost{})
	created, ok := tbl.Column("CreatedAt")
	require.True(t, ok)
	assert.Equal(t, "CURRENT_TIMESTAMP", created.DefaultExpr)
	updated, ok := tbl.Column("UpdatedAt")
	require.True(t, ok)
	assert.Equal(t, "CURRENT_TIMESTAMP", updated.DefaultExpr)

	// Non-model types never get timestamp defaults.
	mig, _ := r.Table(&SchemaMigration{})
	for _, c := range mig.Columns {
		assert.Empty(t, c.DefaultExpr)
	}

	// And neither does anyone with the switch off.
	opts := DefaultOptions()
	opts.Timestamps = false
	r, err = Build(opts, &BlogPost{})
	require.NoError(t, err)
	tbl, _ = r.Table(&BlogPost{})
	created, _ = tbl.Column("CreatedAt")
	assert.Empty(t, created.DefaultExpr)
}

func TestSoftDeleteFilter(t *testing.T) {
	t.Parallel()

	r, err := Build(DefaultOptions(), &BlogPost{}, &SchemaMigration{})
	require.NoError(t, err)

	tbl, _ := r.Table(&BlogPost{})
	require.True(t, tbl.HasFilter())
	assert.Equal(t, "deleted_at", tbl.SoftDeleteColumn())

	s := sql.Select("id").From(tbl.Name)
	tbl.ApplyFilters(s)
	query, args := s.Query()
	assert.Equal(t, `SELECT "id" FROM "blog_posts" WHERE "deleted_at" IS NULL`, query)
	assert.Empty(t, args)

	// Non-model types never get the filter.
	mig, _ := r.Table(&SchemaMigration{})
	assert.False(t, mig.HasFilter())

	opts := DefaultOptions()
	opts.SoftDelete = false
	r, err = Build(opts, &BlogPost{})
	require.NoError(t, err)
	tbl, _ = r.Table(&BlogPost{})
	assert.False(t, tbl.HasFilter())
	assert.Empty(t, tbl.SoftDeleteColumn())
}

func TestTableNamer(t *testing.T) {
	t.Parallel()

	r, err := Build(DefaultOptions(), renamed{})
	require.NoError(t, err)
	tbl, err := r.Table(renamed{})
	require.NoError(t, err)
	assert.Equal(t, "legacy_titles", tbl.Name)
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	_, err := Build(DefaultOptions(), 42)
	assert.ErrorContains(t, err, "must be structs")

	_, err = Build(DefaultOptions(), &BlogPost{}, &BlogPost{})
	assert.ErrorContains(t, err, "registered twice")

	r, err := Build(DefaultOptions(), &BlogPost{})
	require.NoError(t, err)
	_, err = r.Table(&Category{})
	assert.ErrorContains(t, err, "not registered")
}
