package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/dispensing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDocumentStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalDocumentStore(dir, "http://localhost:8080/documents/")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "OP-1/dispensation 1.pdf", "application/pdf", []byte("%PDF")))

	data, err := os.ReadFile(filepath.Join(dir, "OP-1", "dispensation 1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	link, _, err := store.DownloadURL(ctx, "OP-1/dispensation 1.pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/documents/OP-1/dispensation%201.pdf", link)

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "../../escape.pdf", "application/pdf", []byte("x")))
		_, err := os.Stat(filepath.Join(dir, "escape.pdf"))
		assert.NoError(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, store.Put(ctx, " ", "application/pdf", nil), ErrEmptyKey)
	})
}

func TestNewS3DocumentStore(t *testing.T) {
	t.Run("requires bucket", func(t *testing.T) {
		_, err := NewS3DocumentStore(context.Background(), config.StorageConfig{})
		assert.Error(t, err)
	})

	t.Run("presigns download URLs", func(t *testing.T) {
		store, err := NewS3DocumentStore(context.Background(), config.StorageConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "dispensations",
			AccessKeyID:     "test",
			SecretAccessKey: "secret",
			UsePathStyle:    true,
		})
		require.NoError(t, err)

		link, expiresAt, err := store.DownloadURL(context.Background(), "OP-1/doc.pdf", 5*time.Minute)
		require.NoError(t, err)
		assert.Contains(t, link, "https://localhost:9000/dispensations/OP-1/doc.pdf")
		assert.Contains(t, link, "X-Amz-Signature")
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

		_, _, err = store.DownloadURL(context.Background(), "", 0)
		assert.ErrorIs(t, err, ErrEmptyKey)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "", normalizeEndpoint(" "))
	assert.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000"))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("http://minio:9000"))
}
