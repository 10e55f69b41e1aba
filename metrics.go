package reroaring

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see package metrics/prometheus.
type MetricsCollector interface {
	// RecordCommand is called after each command. name is the upper-case
	// command name, err is nil if successful.
	RecordCommand(name string, write bool, duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or load. op is
	// "save" or "load", size is the stored snapshot size in bytes.
	RecordSnapshot(op string, size int64, duration time.Duration, err error)

	// RecordRecovery is called after the append-only log was replayed on
	// open.
	RecordRecovery(entries int, duration time.Duration, err error)

	// RecordRewrite is called after each append-only log rewrite.
	RecordRewrite(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommand(string, bool, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSnapshot(string, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordRewrite(time.Duration, error)                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CommandCount      atomic.Int64
	CommandErrors     atomic.Int64
	CommandTotalNanos atomic.Int64
	WriteCount        atomic.Int64
	SnapshotSaves     atomic.Int64
	SnapshotLoads     atomic.Int64
	SnapshotErrors    atomic.Int64
	SnapshotBytes     atomic.Int64
	RecoveredEntries  atomic.Int64
	RecoveryErrors    atomic.Int64
	RewriteCount      atomic.Int64
	RewriteErrors     atomic.Int64

	perCommand sync.Map // name -> *atomic.Int64
}

// RecordCommand implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommand(name string, write bool, duration time.Duration, err error) {
	b.CommandCount.Add(1)
	b.CommandTotalNanos.Add(duration.Nanoseconds())
	if write {
		b.WriteCount.Add(1)
	}
	if err != nil {
		b.CommandErrors.Add(1)
	}
	c, _ := b.perCommand.LoadOrStore(strings.ToUpper(name), new(atomic.Int64))
	c.(*atomic.Int64).Add(1)
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, size int64, _ time.Duration, err error) {
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	switch op {
	case "save":
		b.SnapshotSaves.Add(1)
	case "load":
		b.SnapshotLoads.Add(1)
	}
	b.SnapshotBytes.Add(size)
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(entries int, _ time.Duration, err error) {
	b.RecoveredEntries.Add(int64(entries))
	if err != nil {
		b.RecoveryErrors.Add(1)
	}
}

// RecordRewrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRewrite(_ time.Duration, err error) {
	b.RewriteCount.Add(1)
	if err != nil {
		b.RewriteErrors.Add(1)
	}
}

// CommandCalls returns how often the named command ran.
func (b *BasicMetricsCollector) CommandCalls(name string) int64 {
	c, ok := b.perCommand.Load(strings.ToUpper(name))
	if !ok {
		return 0
	}
	return c.(*atomic.Int64).Load()
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CommandCount:     b.CommandCount.Load(),
		CommandErrors:    b.CommandErrors.Load(),
		CommandAvgNanos:  b.getAvgCommandNanos(),
		WriteCount:       b.WriteCount.Load(),
		SnapshotSaves:    b.SnapshotSaves.Load(),
		SnapshotLoads:    b.SnapshotLoads.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotBytes:    b.SnapshotBytes.Load(),
		RecoveredEntries: b.RecoveredEntries.Load(),
		RecoveryErrors:   b.RecoveryErrors.Load(),
		RewriteCount:     b.RewriteCount.Load(),
		RewriteErrors:    b.RewriteErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCommandNanos() int64 {
	count := b.CommandCount.Load()
	if count == 0 {
		return 0
	}
	return b.CommandTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CommandCount     int64
	CommandErrors    int64
	CommandAvgNanos  int64
	WriteCount       int64
	SnapshotSaves    int64
	SnapshotLoads    int64
	SnapshotErrors   int64
	SnapshotBytes    int64
	RecoveredEntries int64
	RecoveryErrors   int64
	RewriteCount     int64
	RewriteErrors    int64
}
