// Command reroaring is an interactive shell over an embedded reroaring DB.
//
// Usage:
//
//	reroaring -data ./data
//	echo "R.SETBIT k 7 1" | reroaring -data ./data
//
// Besides the bitmap commands the shell understands SAVE, LOAD,
// BGREWRITEAOF, HELP and QUIT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/reroaring"
	"github.com/hupe1980/reroaring/aof"
	"github.com/hupe1980/reroaring/blobstore"
	"github.com/hupe1980/reroaring/blobstore/minio"
	"github.com/hupe1980/reroaring/blobstore/s3"
	"github.com/hupe1980/reroaring/persistence"
	promcollector "github.com/hupe1980/reroaring/metrics/prometheus"
)

var version = "dev"

func main() {
	var (
		dataDir       = flag.String("data", "./data", "Data directory for the AOF and local snapshots")
		enableAOF     = flag.Bool("aof", true, "Enable the append-only log")
		fsync         = flag.String("fsync", "group", "AOF fsync mode (async, group, sync)")
		compressAOF   = flag.Bool("aof-compress", false, "Compress AOF entries with zstd")
		compression   = flag.String("compression", "lz4", "Snapshot compression (none, lz4, zstd)")
		retain        = flag.Int("retain", persistence.DefaultOptions.Retain, "Number of snapshots to keep")
		s3Bucket      = flag.String("s3-bucket", "", "Store snapshots in this S3 bucket")
		minioEndpoint = flag.String("minio-endpoint", "", "Store snapshots in MinIO at this endpoint (uses -s3-bucket)")
		minioSecure   = flag.Bool("minio-secure", true, "Use TLS for MinIO")
		blobPrefix    = flag.String("prefix", "snapshots", "Snapshot key prefix in S3 or MinIO")
		metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
		logLevel      = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
		logJSON       = flag.Bool("log-json", false, "Log as JSON")
		showVersion   = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("reroaring version %s\n", version)
		return
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger := reroaring.NewTextLogger(level)
	if *logJSON {
		logger = reroaring.NewJSONLogger(level)
	}

	comp, err := persistence.ParseCompression(*compression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	mode, err := parseFsync(*fsync)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := snapshotStore(ctx, *dataDir, *s3Bucket, *minioEndpoint, *minioSecure, *blobPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := []reroaring.Option{
		reroaring.WithLogger(logger),
		reroaring.WithSnapshotStore(store),
		reroaring.WithSnapshotOptions(func(o *persistence.Options) {
			o.Compression = comp
			o.Retain = *retain
		}),
	}
	if *enableAOF {
		opts = append(opts, reroaring.WithAOF(*dataDir, func(o *aof.Options) {
			o.DurabilityMode = mode
			o.Compress = *compressAOF
		}))
	}

	var srv *http.Server
	if *metricsAddr != "" {
		collector := promcollector.NewCollector()
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		opts = append(opts, reroaring.WithMetricsCollector(collector))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	db, err := reroaring.Open(ctx, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}

	sh := &shell{db: db, in: os.Stdin, out: os.Stdout, prompt: isTerminal(os.Stdin)}
	runErr := sh.run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: close: %v\n", err)
		os.Exit(1)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func snapshotStore(ctx context.Context, dataDir, bucket, minioEndpoint string, secure bool, prefix string) (blobstore.Store, error) {
	switch {
	case minioEndpoint != "":
		if bucket == "" {
			return nil, errors.New("-minio-endpoint requires -s3-bucket")
		}
		client, err := miniogo.New(minioEndpoint, &miniogo.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, bucket, prefix), nil
	case bucket != "":
		return s3.New(ctx, bucket, prefix)
	default:
		return blobstore.NewLocalStore(filepath.Join(dataDir, "snapshots")), nil
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}

func parseFsync(s string) (aof.DurabilityMode, error) {
	switch s {
	case "async":
		return aof.DurabilityAsync, nil
	case "group":
		return aof.DurabilityGroupCommit, nil
	case "sync":
		return aof.DurabilitySync, nil
	default:
		return 0, fmt.Errorf("invalid fsync mode %q", s)
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
