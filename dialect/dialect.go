// Package dialect abstracts the SQL backend the record engine rides on.
//
// The engine itself never builds dialect-specific SQL beyond parameter
// placeholders; everything below the Driver interface (pooling, transaction
// isolation, the wire protocol) belongs to database/sql and the loaded
// driver.
package dialect

import (
	"context"

	"go.uber.org/zap"
)

// Supported dialect names. The name doubles as the database/sql driver name
// used when opening a connection.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two database operations every backend must provide.
// The args parameter is expected to be a []any, and v a backend-specific
// destination (e.g. *sql.Rows for Query, *sql.Result for Exec) or nil.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal surface the engine requires from a database backend.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transactional ExecQuerier.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Debug wraps a driver with one that logs every statement through the given
// zap logger at debug level. Intended for development and tests.
func Debug(d Driver, logger *zap.Logger) Driver {
	return &debugDriver{Driver: d, log: logger}
}

type debugDriver struct {
	Driver
	log *zap.Logger
}

func (d *debugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.Debug("driver.Exec", zap.String("query", query), zap.Any("args", args))
	return d.Driver.Exec(ctx, query, args, v)
}

func (d *debugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.Debug("driver.Query", zap.String("query", query), zap.Any("args", args))
	return d.Driver.Query(ctx, query, args, v)
}

func (d *debugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.log.Debug("driver.Tx started")
	return &debugTx{Tx: tx, log: d.log}, nil
}

type debugTx struct {
	Tx
	log *zap.Logger
}

func (t *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	t.log.Debug("tx.Exec", zap.String("query", query), zap.Any("args", args))
	return t.Tx.Exec(ctx, query, args, v)
}

func (t *debugTx) Query(ctx context.Context, query string, args, v any) error {
	t.log.Debug("tx.Query", zap.String("query", query), zap.Any("args", args))
	return t.Tx.Query(ctx, query, args, v)
}

func (t *debugTx) Commit() error {
	t.log.Debug("tx.Commit")
	return t.Tx.Commit()
}

func (t *debugTx) Rollback() error {
	t.log.Debug("tx.Rollback")
	return t.Tx.Rollback()
}
