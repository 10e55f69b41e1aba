package reroaring

import (
	"log/slog"

	"github.com/hupe1980/reroaring/aof"
	"github.com/hupe1980/reroaring/blobstore"
	"github.com/hupe1980/reroaring/command"
	"github.com/hupe1980/reroaring/persistence"
	"github.com/hupe1980/reroaring/resource"
)

type options struct {
	shards           int
	registry         *command.Registry
	metricsCollector MetricsCollector
	logger           *Logger
	aofPath          string
	aofOptions       []func(*aof.Options)
	snapshotStore    blobstore.Store
	snapshotOptions  []func(*persistence.Options)
	resourceConfig   resource.Config
	rewriteChunk     int
	autoRewrite      bool
}

// Option configures Open.
type Option func(*options)

// WithShards sets the number of keyspace shards. Commands on keys in
// different shards run in parallel. Values <= 0 select
// keyspace.DefaultShards.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithRegistry replaces the command table. Defaults to command.Default().
func WithRegistry(r *command.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithAOF enables the append-only command log in directory path.
// Every command that changes the keyspace is appended before its reply is
// returned, and the log is replayed on Open.
//
// Example:
//
//	db, _ := reroaring.Open(ctx,
//	    reroaring.WithAOF("./data", func(o *aof.Options) {
//	        o.DurabilityMode = aof.DurabilitySync
//	    }),
//	)
func WithAOF(path string, optFns ...func(*aof.Options)) Option {
	return func(o *options) {
		o.aofPath = path
		o.aofOptions = optFns
	}
}

// WithAutoRewrite toggles background AOF rewrites once the log crosses the
// aof.Options AutoRewriteOps or AutoRewriteMB thresholds. Enabled by
// default.
func WithAutoRewrite(enabled bool) Option {
	return func(o *options) {
		o.autoRewrite = enabled
	}
}

// WithRewriteChunk sets the number of values per APPENDINTARRAY entry
// written by an AOF rewrite.
func WithRewriteChunk(n int) Option {
	return func(o *options) {
		o.rewriteChunk = n
	}
}

// WithSnapshotStore enables snapshots in store. Open restores the newest
// readable snapshot before replaying the AOF.
//
// Example with S3:
//
//	store, _ := s3.New(ctx, "my-bucket", "reroaring/")
//	db, _ := reroaring.Open(ctx, reroaring.WithSnapshotStore(store))
func WithSnapshotStore(store blobstore.Store) Option {
	return func(o *options) {
		o.snapshotStore = store
	}
}

// WithSnapshotDir stores snapshots in a local directory.
func WithSnapshotDir(dir string) Option {
	return func(o *options) {
		o.snapshotStore = blobstore.NewLocalStore(dir)
	}
}

// WithSnapshotOptions tunes the snapshot manager.
func WithSnapshotOptions(optFns ...func(*persistence.Options)) Option {
	return func(o *options) {
		o.snapshotOptions = append(o.snapshotOptions, optFns...)
	}
}

// WithResourceConfig limits the memory, concurrency and IO throughput of
// snapshots and rewrites.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &reroaring.BasicMetricsCollector{}
//	db, _ := reroaring.Open(ctx, reroaring.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Commands: %d, Avg latency: %dns\n", stats.CommandCount, stats.CommandAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := reroaring.NewJSONLogger(slog.LevelInfo)
//	db, _ := reroaring.Open(ctx, reroaring.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		rewriteChunk:     command.DefaultRewriteChunk,
		autoRewrite:      true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.registry == nil {
		o.registry = command.Default()
	}
	return o
}
