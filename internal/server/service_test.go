package server

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
)

func TestUploadQueueClosedMapsToBackpressure(t *testing.T) {
	env := newTestEnv(t, 0)
	env.queue.err = async.ErrQueueClosed

	_, err := env.svc.Upload(context.Background(), ingest.Upload{
		Filename: "msa.pdf",
		Size:     int64(len(minimalPDF)),
		Body:     bytes.NewReader(minimalPDF),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrBackpressure)
	assert.ErrorIs(t, err, async.ErrQueueClosed)
	assert.Zero(t, env.contracts.len())
}

func TestUploadTraceIDFromContext(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := common.WithRequestID(context.Background(), "trace-9")

	c, err := env.svc.Upload(ctx, ingest.Upload{
		Filename: "msa.pdf",
		Size:     -1,
		Body:     bytes.NewReader(minimalPDF),
	})
	require.NoError(t, err)
	require.Len(t, env.queue.jobs, 1)
	assert.Equal(t, c.ID, env.queue.jobs[0].ContractID)
	assert.Equal(t, "trace-9", env.queue.jobs[0].TraceID)
}
