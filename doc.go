// Package reroaring is an embedded key-value store of compressed bitmaps
// with an N-ary set algebra and rank/select queries.
//
// Keys hold either a 32-bit or a 64-bit roaring bitmap. Commands follow the
// R. (32-bit) and R64. (64-bit) families of the Redis roaring module, plus
// the generic DEL, EXISTS, TYPE, KEYS, DBSIZE and FLUSHALL.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := reroaring.Open(ctx)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	db.Exec(ctx, "R.SETINTARRAY", "a", "1", "2", "3")
//	db.Exec(ctx, "R.SETINTARRAY", "b", "3", "4")
//	reply, _ := db.Exec(ctx, "R.BITOP", "OR", "c", "a", "b")
//	fmt.Println(reply) // (integer) 4
//
// # Durability
//
// An append-only log records every command that changed the keyspace, and
// snapshots store the whole keyspace in a blob store (local directory, S3
// or MinIO):
//
//	db, _ := reroaring.Open(ctx,
//	    reroaring.WithAOF("./data", func(o *aof.Options) {
//	        o.DurabilityMode = aof.DurabilityGroupCommit
//	    }),
//	    reroaring.WithSnapshotDir("./data/snapshots"),
//	)
//	db.Save(ctx) // snapshot, then empty the log
//
// Open restores the newest readable snapshot and replays the log on top of
// it. RewriteAOF compacts the log to the commands that rebuild the current
// keyspace; it also runs in the background once the log crosses the
// aof.Options thresholds.
//
// # Observability
//
// WithLogger installs a log/slog based Logger and WithMetricsCollector a
// MetricsCollector; package metrics/prometheus exports the latter.
package reroaring
