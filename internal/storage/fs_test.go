package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	ctx := t.Context()

	data := []byte("%PDF-1.4 contract bytes")
	require.NoError(t, s.Put(ctx, "c1", bytes.NewReader(data), int64(len(data)), "application/pdf"))

	got, err := ReadAll(ctx, s, "c1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(s.root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, s.Delete(ctx, "c1"))
	require.NoError(t, s.Delete(ctx, "c1"), "delete is idempotent")

	_, err = s.Open(ctx, "c1")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFSStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../escape", "a/b"} {
		err := s.Put(t.Context(), key, bytes.NewReader(nil), 0, "")
		assert.Error(t, err, key)
	}
}

func TestFSStorePutHonoursContext(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = s.Put(ctx, "c2", bytes.NewReader([]byte("data")), 4, "")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Open(t.Context(), "c2")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
