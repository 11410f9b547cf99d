package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arkframe/record/dialect"
)

func TestSelector(t *testing.T) {
	t.Parallel()

	query, args := Select("id", "name").
		From("users").
		Where(EQ("name", "a8m")).
		OrderBy("id").
		Limit(10).
		Query()
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "name" = ? ORDER BY "id" LIMIT 10`, query)
	assert.Equal(t, []any{"a8m"}, args)

	query, args = Select().
		SetDialect(dialect.Postgres).
		From("users").
		Where(And(EQ("name", "a8m"), IsNull("deleted_at"))).
		Query()
	assert.Equal(t, `SELECT * FROM "users" WHERE ("name" = $1) AND ("deleted_at" IS NULL)`, query)
	assert.Equal(t, []any{"a8m"}, args)

	query, _ = Select("id").
		SetDialect(dialect.MySQL).
		From("users").
		Where(NotNull("email")).
		Offset(5).
		Query()
	assert.Equal(t, "SELECT `id` FROM `users` WHERE `email` IS NOT NULL OFFSET 5", query)
}

func TestSelectorWhereChaining(t *testing.T) {
	t.Parallel()

	// Consecutive Where calls are AND-ed.
	query, args := Select("id").
		From("users").
		Where(IsNull("deleted_at")).
		Where(EQ("name", "nati")).
		Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("deleted_at" IS NULL) AND ("name" = ?)`, query)
	assert.Equal(t, []any{"nati"}, args)
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	query, args := Select().From("pets").Where(Or(GT("age", 1), LTE("age", 10))).Query()
	assert.Equal(t, `SELECT * FROM "pets" WHERE ("age" > ?) OR ("age" <= ?)`, query)
	assert.Equal(t, []any{1, 10}, args)

	query, args = Select().From("pets").Where(Not(In("id", 1, 2, 3))).Query()
	assert.Equal(t, `SELECT * FROM "pets" WHERE NOT ("id" IN (?, ?, ?))`, query)
	assert.Equal(t, []any{1, 2, 3}, args)

	// Empty IN list renders an always-false predicate.
	query, args = Select().From("pets").Where(In("id")).Query()
	assert.Equal(t, `SELECT * FROM "pets" WHERE FALSE`, query)
	assert.Empty(t, args)
}

func TestInserter(t *testing.T) {
	t.Parallel()

	query, args := Insert("users").
		Columns("name", "email").
		Values("alex", "alex@mail.io").
		Query()
	assert.Equal(t, `INSERT INTO "users" ("name", "email") VALUES (?, ?)`, query)
	assert.Equal(t, []any{"alex", "alex@mail.io"}, args)

	// RETURNING is a Postgres-only clause.
	query, _ = Insert("users").
		SetDialect(dialect.Postgres).
		Columns("name").
		Values("alex").
		Returning("id").
		Query()
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`, query)

	query, _ = Insert("users").
		SetDialect(dialect.SQLite).
		Columns("name").
		Values("alex").
		Returning("id").
		Query()
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (?)`, query)
}

func TestUpdater(t *testing.T) {
	t.Parallel()

	query, args := Update("users").
		Set("name", "mashraki").
		Set("age", 30).
		Where(EQ("id", int64(7))).
		Query()
	assert.Equal(t, `UPDATE "users" SET "name" = ?, "age" = ? WHERE "id" = ?`, query)
	assert.Equal(t, []any{"mashraki", 30, int64(7)}, args)
}

func TestDeleter(t *testing.T) {
	t.Parallel()

	query, args := Delete("users").Where(EQ("id", int64(3))).Query()
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = ?`, query)
	assert.Equal(t, []any{int64(3)}, args)
}

type userPredicate func(*Selector)

func TestTypedFields(t *testing.T) {
	t.Parallel()

	var (
		name = StringField[userPredicate]("name")
		age  = Int64Field[userPredicate]("age")
	)
	s := Select("id").From("users")
	name.EQ("a8m")(s)
	age.GTE(18)(s)
	query, args := s.Query()
	assert.Equal(t, `SELECT "id" FROM "users" WHERE ("name" = ?) AND ("age" >= ?)`, query)
	assert.Equal(t, []any{"a8m", int64(18)}, args)
	assert.Equal(t, "name", name.Name())
}
