package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubObjectStorage(t *testing.T) {
	ctx := context.Background()
	stub := NewStubObjectStorage()

	t.Run("upload URL embeds the storage key", func(t *testing.T) {
		url, expiresAt, err := stub.GenerateUploadURL(ctx, "evidence/t1/photo.jpg", "image/jpeg", 15*time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, "/upload/evidence/t1/photo.jpg")
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 2*time.Second)
	})

	t.Run("download URL embeds the storage key", func(t *testing.T) {
		url, _, err := stub.GenerateDownloadURL(ctx, "evidence/t1/photo.jpg", time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, "/download/evidence/t1/photo.jpg")
	})

	t.Run("empty storage key is rejected", func(t *testing.T) {
		_, _, err := stub.GenerateUploadURL(ctx, "", "image/jpeg", time.Minute)
		assert.Error(t, err)
		_, _, err = stub.GenerateDownloadURL(ctx, "", time.Minute)
		assert.Error(t, err)
		assert.Error(t, stub.DeleteObject(ctx, ""))
	})

	t.Run("objects always exist", func(t *testing.T) {
		exists, err := stub.ObjectExists(ctx, "evidence/t1/photo.jpg")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
