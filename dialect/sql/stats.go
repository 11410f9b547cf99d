package sql

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arkframe/record/dialect"
)

// QueryStats holds cumulative statement execution statistics.
type QueryStats struct {
	// Queries is the number of row-returning statements executed.
	Queries atomic.Int64
	// Execs is the number of non-row statements executed.
	Execs atomic.Int64
	// Duration is the total time spent in the driver, in nanoseconds.
	Duration atomic.Int64
	// Slow is the number of statements exceeding the slow threshold.
	Slow atomic.Int64
	// Errors is the number of failed statements.
	Errors atomic.Int64
}

// Snapshot returns a point-in-time copy of the statistics.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.Queries.Load(),
		Execs:    s.Execs.Load(),
		Duration: time.Duration(s.Duration.Load()),
		Slow:     s.Slow.Load(),
		Errors:   s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.Queries.Store(0)
	s.Execs.Store(0)
	s.Duration.Store(0)
	s.Slow.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Slow, s.Errors)
}

// StatsDriver wraps a dialect.Driver with statement statistics collection
// and slow-statement logging.
type StatsDriver struct {
	dialect.Driver
	stats     QueryStats
	threshold time.Duration
	log       *zap.Logger
}

// WithStats wraps the given driver with a StatsDriver. Statements slower
// than threshold are logged as warnings through logger; a zero threshold
// disables slow-statement detection.
func WithStats(d dialect.Driver, threshold time.Duration, logger *zap.Logger) *StatsDriver {
	return &StatsDriver{Driver: d, threshold: threshold, log: logger}
}

// Stats returns a snapshot of the collected statistics.
func (d *StatsDriver) Stats() StatsSnapshot { return d.stats.Snapshot() }

// ResetStats resets the collected statistics to zero.
func (d *StatsDriver) ResetStats() { d.stats.Reset() }

// Exec implements the dialect.Exec method.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.observe(ctx, &d.stats.Execs, query, start, err)
	return err
}

// Query implements the dialect.Query method.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.observe(ctx, &d.stats.Queries, query, start, err)
	return err
}

func (d *StatsDriver) observe(_ context.Context, counter *atomic.Int64, query string, start time.Time, err error) {
	elapsed := time.Since(start)
	counter.Add(1)
	d.stats.Duration.Add(int64(elapsed))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	if d.threshold > 0 && elapsed >= d.threshold {
		d.stats.Slow.Add(1)
		if d.log != nil {
			d.log.Warn("slow statement",
				zap.String("query", query),
				zap.Duration("elapsed", elapsed),
			)
		}
	}
}

var _ dialect.Driver = (*StatsDriver)(nil)
