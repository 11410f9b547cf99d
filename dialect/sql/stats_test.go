package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkframe/record/dialect"
)

// statsFake fails statements whose text contains "boom" and sleeps for
// delay otherwise.
type statsFake struct {
	delay time.Duration
}

func (f *statsFake) Exec(_ context.Context, query string, _, _ any) error {
	return f.run(query)
}

func (f *statsFake) Query(_ context.Context, query string, _, _ any) error {
	return f.run(query)
}

func (f *statsFake) run(query string) error {
	time.Sleep(f.delay)
	if query == "boom" {
		return errors.New("boom")
	}
	return nil
}

func (f *statsFake) Tx(context.Context) (dialect.Tx, error) { return nil, errors.New("unused") }
func (f *statsFake) Close() error                           { return nil }
func (f *statsFake) Dialect() string                        { return dialect.SQLite }

func TestStatsDriverCounters(t *testing.T) {
	t.Parallel()

	drv := WithStats(&statsFake{}, 0, nil)
	ctx := context.Background()

	require.NoError(t, drv.Exec(ctx, "UPDATE t SET n = 1", []any{}, nil))
	require.NoError(t, drv.Query(ctx, "SELECT 1", []any{}, nil))
	require.NoError(t, drv.Query(ctx, "SELECT 2", []any{}, nil))
	require.Error(t, drv.Exec(ctx, "boom", []any{}, nil))

	s := drv.Stats()
	assert.EqualValues(t, 2, s.Execs)
	assert.EqualValues(t, 2, s.Queries)
	assert.EqualValues(t, 1, s.Errors)
	assert.EqualValues(t, 0, s.Slow)
	assert.Greater(t, s.Duration, time.Duration(0))
	assert.Contains(t, s.String(), "queries=2")
}

func TestStatsDriverSlowLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	drv := WithStats(&statsFake{delay: 5 * time.Millisecond}, time.Millisecond, zap.New(core))

	require.NoError(t, drv.Query(context.Background(), "SELECT pg_sleep(1)", []any{}, nil))

	assert.EqualValues(t, 1, drv.Stats().Slow)
	entries := logs.FilterMessage("slow statement").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT pg_sleep(1)", entries[0].ContextMap()["query"])
}

func TestStatsReset(t *testing.T) {
	t.Parallel()

	drv := WithStats(&statsFake{}, 0, nil)
	require.NoError(t, drv.Exec(context.Background(), "SELECT 1", []any{}, nil))
	require.EqualValues(t, 1, drv.Stats().Execs)

	drv.ResetStats()
	s := drv.Stats()
	assert.EqualValues(t, 0, s.Execs)
	assert.EqualValues(t, 0, s.Duration)
}
