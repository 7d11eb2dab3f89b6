package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type fakeStore struct {
	created   map[uuid.UUID]*entity.Contract
	createErr error
}

func (f *fakeStore) Create(_ context.Context, c *entity.Contract) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created[c.ID] = c
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.created[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.created, id)
	return nil
}

func newTestService(t *testing.T, maxBytes int64) (*Service, *fakeStore, *storage.FSStore) {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store := &fakeStore{created: map[uuid.UUID]*entity.Contract{}}
	return NewService(store, blobs, maxBytes, slog.New(slog.NewTextHandler(io.Discard, nil))), store, blobs
}

func TestIngest_CreatesPendingContract(t *testing.T) {
	svc, store, blobs := newTestService(t, 0)

	c, err := svc.Ingest(context.Background(), Upload{
		Filename: "../uploads/MSA.PDF",
		Size:     int64(len(minimalPDF)),
		Body:     bytes.NewReader(minimalPDF),
	})
	require.NoError(t, err)

	assert.Equal(t, "MSA.PDF", c.Filename)
	assert.Equal(t, constants.MIMEPDF, c.MimeType)
	assert.Equal(t, int64(len(minimalPDF)), c.FileSize)
	assert.Equal(t, constants.StatusPending, c.Status)
	assert.Equal(t, constants.StageQueued, c.Stage)
	assert.Zero(t, c.ProgressPercentage)
	assert.Contains(t, store.created, c.ID)

	got, err := storage.ReadAll(context.Background(), blobs, c.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, minimalPDF, got)
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name     string
		upload   Upload
		field    string
		tooLarge bool
	}{
		{name: "missing filename", upload: Upload{Filename: " ", Body: bytes.NewReader(minimalPDF)}, field: "filename"},
		{name: "wrong extension", upload: Upload{Filename: "notes.docx", Body: bytes.NewReader(minimalPDF)}, field: "file"},
		{name: "empty body", upload: Upload{Filename: "a.pdf", Body: bytes.NewReader(nil)}, field: "file"},
		{name: "not a pdf", upload: Upload{Filename: "a.pdf", Body: strings.NewReader("just some text pretending")}, field: "file"},
		{name: "declared size too large", upload: Upload{Filename: "a.pdf", Size: 1 << 20, Body: bytes.NewReader(minimalPDF)}, field: "file", tooLarge: true},
		{name: "body too large", upload: Upload{Filename: "a.pdf", Size: -1, Body: bytes.NewReader(bytes.Repeat([]byte("x"), 2048))}, field: "file", tooLarge: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t, 1024)

			_, err := svc.Ingest(context.Background(), tt.upload)

			var ve common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, tt.tooLarge, errors.Is(err, ErrFileTooLarge))
			assert.Empty(t, store.created)
		})
	}
}

func TestIngest_CreateFailureRemovesBlob(t *testing.T) {
	svc, store, blobs := newTestService(t, 0)
	store.createErr = &common.PersistenceError{Op: "create", Err: errors.New("db down")}

	_, err := svc.Ingest(context.Background(), Upload{Filename: "a.pdf", Body: bytes.NewReader(minimalPDF)})
	require.Error(t, err)

	entries, err := os.ReadDir(blobs.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRollback(t *testing.T) {
	svc, store, blobs := newTestService(t, 0)
	c, err := svc.Ingest(context.Background(), Upload{Filename: "a.pdf", Body: bytes.NewReader(minimalPDF)})
	require.NoError(t, err)

	require.NoError(t, svc.Rollback(context.Background(), c))
	assert.Empty(t, store.created)
	_, err = blobs.Open(context.Background(), c.BlobKey)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)

	// A second rollback finds nothing left and still succeeds.
	require.NoError(t, svc.Rollback(context.Background(), c))
}

func TestIngestDirectory(t *testing.T) {
	svc, store, _ := newTestService(t, 0)
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	write("a.pdf", minimalPDF)
	write("nested/b.pdf", minimalPDF)
	write("nested/readme.txt", []byte("ignored"))
	write("broken.pdf", []byte("not really a pdf"))
	write(".hidden/c.pdf", minimalPDF)

	results, stats, err := svc.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 3)
	assert.Len(t, store.created, 2)

	for _, r := range results {
		if filepath.Base(r.Path) == "broken.pdf" {
			assert.Contains(t, r.Err, "not a PDF")
			continue
		}
		assert.Empty(t, r.Err)
		assert.NotEqual(t, uuid.Nil, r.ContractID)
	}

	_, _, err = svc.IngestDirectory(context.Background(), "", false)
	assert.Error(t, err)
}
