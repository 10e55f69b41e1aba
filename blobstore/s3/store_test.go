package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/blobstore"
)

func TestStoreOpen(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "prefix/")

	t.Run("NotFound", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "bucket" && *in.Key == "prefix/missing.rrb"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "missing.rrb")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Found", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "prefix/snapshot-1.rrb"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		b, err := store.Open(context.Background(), "snapshot-1.rrb")
		require.NoError(t, err)
		assert.Equal(t, int64(100), b.Size())
		require.NoError(t, b.Close())
	})

	client.AssertExpectations(t)
}

func TestStoreDelete(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "")

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "snapshot-1.rrb"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "gone.rrb"
	})).Return(nil, &types.NoSuchKey{}).Once()

	require.NoError(t, store.Delete(context.Background(), "snapshot-1.rrb"))
	require.NoError(t, store.Delete(context.Background(), "gone.rrb"))
	client.AssertExpectations(t)
}

func TestStoreList(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "prefix/")

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Prefix == "prefix/snapshot-" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/snapshot-2.rrb")}},
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/snapshot-1.rrb")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "snapshot-")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-1.rrb", "snapshot-2.rrb"}, names)

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Prefix == "prefix/"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String("prefix/a")}, {Key: aws.String("prefix/")}},
	}, nil).Once()

	names, err = store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
	client.AssertExpectations(t)
}

func TestStorePut(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "prefix")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "prefix/check.rrb" &&
			aws.ToInt64(in.ContentLength) == 9 &&
			aws.ToString(in.ChecksumCRC32C) == "4waSgw=="
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "check.rrb", []byte("123456789")))
	client.AssertExpectations(t)
}

func TestStoreCreate(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		client := new(MockS3Client)
		store := NewStore(client, "bucket", "prefix")

		var uploaded string
		client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Key == "prefix/stream.rrb"
		})).Run(func(args mock.Arguments) {
			body, _ := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
			uploaded = string(body)
		}).Return(&s3.PutObjectOutput{}, nil).Once()

		w, err := store.Create(context.Background(), "stream.rrb")
		require.NoError(t, err)
		_, err = w.Write([]byte("RRB1"))
		require.NoError(t, err)
		_, err = w.Write([]byte(" body"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.ErrorIs(t, w.Close(), blobstore.ErrClosed)

		assert.Equal(t, "RRB1 body", uploaded)
		client.AssertExpectations(t)
	})

	t.Run("Abort", func(t *testing.T) {
		client := new(MockS3Client)
		store := NewStore(client, "bucket", "prefix")

		w, err := store.Create(context.Background(), "stream.rrb")
		require.NoError(t, err)
		_, err = w.Write([]byte("partial"))
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		_, err = w.Write([]byte("more"))
		require.ErrorIs(t, err, blobstore.ErrClosed)
		client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	})
}

func TestBlobReads(t *testing.T) {
	client := new(MockS3Client)
	b := &blob{client: client, bucket: "bucket", key: "k", size: 10}
	ctx := context.Background()

	body := func(s string) *s3.GetObjectOutput {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
	}
	ranged := func(r string) any {
		return mock.MatchedBy(func(in *s3.GetObjectInput) bool { return *in.Range == r })
	}

	t.Run("ReadAt", func(t *testing.T) {
		client.On("GetObject", mock.Anything, ranged("bytes=0-4")).Return(body("hello"), nil).Once()

		buf := make([]byte, 5)
		n, err := b.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf))
	})

	t.Run("ReadAtTail", func(t *testing.T) {
		client.On("GetObject", mock.Anything, ranged("bytes=5-9")).Return(body("world"), nil).Once()

		buf := make([]byte, 8)
		n, err := b.ReadAt(ctx, buf, 5)
		assert.Equal(t, io.EOF, err)
		assert.Equal(t, "world", string(buf[:n]))
	})

	t.Run("ReadAtPastEnd", func(t *testing.T) {
		_, err := b.ReadAt(ctx, make([]byte, 1), 10)
		assert.Equal(t, io.EOF, err)
		_, err = b.ReadAt(ctx, make([]byte, 1), -1)
		assert.ErrorIs(t, err, blobstore.ErrInvalidOffset)
	})

	t.Run("ReadRange", func(t *testing.T) {
		client.On("GetObject", mock.Anything, ranged("bytes=2-6")).Return(body("llowo"), nil).Once()

		rc, err := b.ReadRange(ctx, 2, 5)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "llowo", string(data))
	})

	t.Run("ReadAll", func(t *testing.T) {
		client.On("GetObject", mock.Anything, ranged("bytes=0-9")).Return(body("helloworld"), nil).Once()

		data, err := blobstore.ReadAll(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, "helloworld", string(data))
	})

	client.AssertExpectations(t)
}
