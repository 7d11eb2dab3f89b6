package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm/gemini"
	"github.com/joseph-ayodele/contract-intelligence/internal/llm/openai"
	"github.com/joseph-ayodele/contract-intelligence/internal/ocr"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOpenDatabaseInMemory(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(ctx, common.DefaultConfig().Database, true, discard())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Ping(ctx))

	c := entity.NewContract("msa.pdf", constants.MIMEPDF, 10, time.Now().UTC())
	require.NoError(t, db.Contracts.Create(ctx, c))
	got, err := db.Contracts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, got.Status)
}

func TestNewBlobStore(t *testing.T) {
	s, err := NewBlobStore(context.Background(), common.StorageConfig{Backend: "fs", UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, s)

	_, err = NewBlobStore(context.Background(), common.StorageConfig{Backend: "tape"})
	assert.Error(t, err)
}

func TestNewTextExtractor(t *testing.T) {
	tx, err := NewTextExtractor(common.OCRConfig{Provider: "local"}, discard())
	require.NoError(t, err)
	assert.IsType(t, &ocr.Extractor{}, tx)

	tx, err = NewTextExtractor(common.OCRConfig{Provider: "ocrspace", APIKey: "k"}, discard())
	require.NoError(t, err)
	assert.IsType(t, &ocr.SpaceClient{}, tx)

	_, err = NewTextExtractor(common.OCRConfig{Provider: "abbyy"}, discard())
	assert.Error(t, err)
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(common.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini"}, discard())
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, c)
	assert.Equal(t, "openai/gpt-4o-mini", c.Name())

	c, err = NewCompleter(common.LLMConfig{Provider: "gemini", APIKey: "k"}, discard())
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, c)

	_, err = NewCompleter(common.LLMConfig{Provider: "llama"}, discard())
	assert.Error(t, err)

	fe, err := NewFieldExtractor(common.LLMConfig{Provider: "gemini", APIKey: "k"}, discard())
	require.NoError(t, err)
	assert.NotNil(t, fe)
}

func TestPipelineConfig(t *testing.T) {
	pc := PipelineConfig(common.PipelineConfig{
		MaxRetries:     5,
		BaseDelay:      2 * time.Second,
		MaxDelay:       time.Minute,
		StageTimeout:   time.Minute,
		PersistRetries: 2,
	})
	assert.Equal(t, 5, pc.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, pc.Retry.BaseDelay)
	assert.Equal(t, time.Minute, pc.Retry.MaxDelay)
	assert.Equal(t, time.Minute, pc.StageTimeout)
	assert.Equal(t, 2, pc.PersistRetries)
	require.NotNil(t, pc.Retry.IsRetryable)
	assert.False(t, pc.Retry.IsRetryable(context.Canceled))
}

func TestNewQueueBackends(t *testing.T) {
	done := make(chan uuid.UUID, 2)
	proc := async.ProcessorFunc(func(_ context.Context, id uuid.UUID) error {
		done <- id
		return nil
	})

	q, err := NewQueue(common.QueueConfig{Backend: "memory", Workers: 1, Size: 4}, proc, nil, discard())
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), async.NewJob(id, "t")))
	select {
	case got := <-done:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("memory queue did not process the job")
	}
	q.Shutdown(context.Background())

	mr := miniredis.RunT(t)
	q, err = NewQueue(common.QueueConfig{Backend: "redis", Workers: 1, Size: 4, RedisAddr: mr.Addr(), RedisKey: "test:jobs", LeaseTTL: time.Minute}, proc, nil, discard())
	require.NoError(t, err)
	id = uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), async.NewJob(id, "t")))
	select {
	case got := <-done:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("redis queue did not process the job")
	}
	q.Shutdown(context.Background())

	_, err = NewQueue(common.QueueConfig{Backend: "kafka"}, proc, nil, discard())
	assert.Error(t, err)
}
