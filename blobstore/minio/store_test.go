package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/blobstore"
)

// newTestStore connects to MINIO_ENDPOINT (default localhost:9000) and
// skips the test when no server answers.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("minio client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available: %v", err)
	}

	const bucket = "reroaring-test"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	return NewStore(client, bucket, fmt.Sprintf("run-%d/", time.Now().UnixNano()))
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := []byte("RRB1 minio snapshot")
	require.NoError(t, store.Put(ctx, "snapshot-1.rrb", data))

	b, err := store.Open(ctx, "snapshot-1.rrb")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))
	require.NoError(t, b.Close())

	w, err := store.Create(ctx, "snapshot-2.rrb")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := blobstore.Get(ctx, store, "snapshot-2.rrb")
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(got))

	names, err := store.List(ctx, "snapshot-")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-1.rrb", "snapshot-2.rrb"}, names)

	for _, name := range names {
		require.NoError(t, store.Delete(ctx, name))
	}
	require.NoError(t, store.Delete(ctx, "snapshot-1.rrb"))
	_, err = store.Open(ctx, "snapshot-1.rrb")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStoreKeys(t *testing.T) {
	s := NewStore(nil, "bucket", "/root/prefix/")
	assert.Equal(t, "root/prefix/snapshot-1.rrb", s.key("snapshot-1.rrb"))

	bare := NewStore(nil, "bucket", "")
	assert.Equal(t, "snapshot-1.rrb", bare.key("snapshot-1.rrb"))
}
