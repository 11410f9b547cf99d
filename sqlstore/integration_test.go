package sqlstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Drivers under test. SQLite runs everywhere; Postgres and MySQL only
	// when their DSN environment variables point at a live server.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/arkframe/record"
	"github.com/arkframe/record/dialect"
	"github.com/arkframe/record/dialect/sql"
	"github.com/arkframe/record/schema"
	"github.com/arkframe/record/sqlstore"
)

// openSQLite opens a private shared-cache in-memory database. The unique
// name keeps parallel tests from seeing each other's tables.
func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	drv, err := sql.Open(dialect.SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	// Hold a connection open so the in-memory database outlives pool churn.
	drv.DB().SetMaxIdleConns(1)
	return drv
}

func openEnv(t *testing.T, dlct, env string) *sql.Driver {
	t.Helper()
	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("set %s to run %s integration tests", env, dlct)
	}
	drv, err := sql.Open(dlct, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func TestIntegrationSQLite(t *testing.T) {
	runIntegration(t, openSQLite(t))
}

func TestIntegrationPostgres(t *testing.T) {
	runIntegration(t, openEnv(t, dialect.Postgres, "RECORD_POSTGRES_DSN"))
}

func TestIntegrationMySQL(t *testing.T) {
	runIntegration(t, openEnv(t, dialect.MySQL, "RECORD_MYSQL_DSN"))
}

func runIntegration(t *testing.T, drv *sql.Driver) {
	ctx := context.Background()
	reg, err := schema.Build(schema.DefaultOptions(), &Post{}, &Counter{})
	require.NoError(t, err)
	store := sqlstore.New(drv, reg)
	require.NoError(t, store.CreateTables(ctx))

	sess := record.NewSession(store, reg)

	t.Run("InsertAssignsKeys", func(t *testing.T) {
		first := &Post{Title: "first", Views: 1}
		second := &Post{Title: "second", Views: 2}
		require.NoError(t, sess.Add(first))
		require.NoError(t, sess.Add(second))
		require.NoError(t, sess.SaveContext(ctx))

		assert.NotZero(t, first.ID)
		assert.NotZero(t, second.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.False(t, first.CreatedAt.IsZero())
	})

	t.Run("FindAndFirst", func(t *testing.T) {
		var posts []*Post
		require.NoError(t, sess.Find(ctx, &posts))
		assert.Len(t, posts, 2)

		var got Post
		require.NoError(t, sess.First(ctx, &got, sql.FieldEQ("title", "second")))
		assert.Equal(t, "second", got.Title)
		assert.EqualValues(t, 2, got.Views)
	})

	t.Run("Update", func(t *testing.T) {
		var got Post
		require.NoError(t, sess.First(ctx, &got, sql.FieldEQ("title", "first")))
		got.Views = 11
		require.NoError(t, sess.Update(&got))
		require.NoError(t, sess.SaveContext(ctx))

		reread := record.NewSession(store, reg)
		var check Post
		require.NoError(t, reread.First(ctx, &check, sql.FieldEQ("title", "first")))
		assert.EqualValues(t, 11, check.Views)
		assert.True(t, check.UpdatedAt.After(check.CreatedAt) || check.UpdatedAt.Equal(check.CreatedAt))
	})

	t.Run("SoftDelete", func(t *testing.T) {
		var doomed Post
		require.NoError(t, sess.First(ctx, &doomed, sql.FieldEQ("title", "second")))
		require.NoError(t, sess.Delete(&doomed))
		require.NoError(t, sess.SaveContext(ctx))
		require.NotNil(t, doomed.DeletedAt)

		// Default reads hide the marked row.
		fresh := record.NewSession(store, reg)
		var posts []*Post
		require.NoError(t, fresh.Find(ctx, &posts))
		require.Len(t, posts, 1)
		assert.Equal(t, "first", posts[0].Title)

		// The row is still there for readers that opt out of the filter.
		posts = nil
		require.NoError(t, fresh.Find(record.SkipSoftDeleted(ctx), &posts))
		assert.Len(t, posts, 2)

		var gone Post
		err := fresh.First(ctx, &gone, sql.FieldEQ("title", "second"))
		assert.True(t, record.IsNotFound(err))
	})

	t.Run("HardDelete", func(t *testing.T) {
		c := &Counter{N: 1}
		require.NoError(t, sess.Add(c))
		require.NoError(t, sess.SaveContext(ctx))
		require.NotZero(t, c.ID)

		require.NoError(t, sess.Delete(c))
		require.NoError(t, sess.SaveContext(ctx))

		fresh := record.NewSession(store, reg)
		var counters []*Counter
		require.NoError(t, fresh.Find(ctx, &counters))
		assert.Empty(t, counters)
	})

	t.Run("NotFound", func(t *testing.T) {
		var missing Post
		err := sess.First(ctx, &missing, sql.FieldEQ("title", "no such post"))
		require.Error(t, err)
		assert.True(t, record.IsNotFound(err))
	})

	t.Run("CachedReads", func(t *testing.T) {
		cached := record.NewSession(store, reg,
			record.WithCache(record.NewMemoryCache()),
			record.WithCacheTTL(time.Minute))
		var posts []*Post
		require.NoError(t, cached.Find(ctx, &posts))
		before := len(posts)

		p := &Post{Title: "invalidates"}
		require.NoError(t, cached.Add(p))
		require.NoError(t, cached.SaveContext(ctx))

		posts = nil
		require.NoError(t, cached.Find(ctx, &posts))
		assert.Len(t, posts, before+1)
	})
}
