package minio

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecbench/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	store, err := Dial(ctx, endpoint, "minioadmin", "minioadmin", "vecbench-test", "it/", false)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "run/flat.bin", data))

	blob, err := store.Open(ctx, "run/flat.bin")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	names, err := store.List(ctx, "run/")
	require.NoError(t, err)
	assert.Contains(t, names, "run/flat.bin")

	got, err := blobstore.ReadAll(ctx, store, "run/flat.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "run/flat.bin"))
	_, err = store.Open(ctx, "run/flat.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
