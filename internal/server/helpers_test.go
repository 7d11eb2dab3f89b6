package server

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
	"github.com/joseph-ayodele/contract-intelligence/internal/repository"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type memContracts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*entity.Contract
}

func newMemContracts() *memContracts {
	return &memContracts{byID: map[uuid.UUID]*entity.Contract{}}
}

func (m *memContracts) Create(_ context.Context, c *entity.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memContracts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memContracts) GetByID(_ context.Context, id uuid.UUID) (*entity.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memContracts) List(_ context.Context, p repository.ListParams) ([]*entity.Contract, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*entity.Contract
	for _, c := range m.byID {
		if p.Status != nil && c.Status != *p.Status {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	skip := (p.Page - 1) * p.Limit
	if skip >= len(all) {
		return nil, len(all), nil
	}
	end := min(skip+p.Limit, len(all))
	return all[skip:end], len(all), nil
}

func (m *memContracts) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type fnQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fnQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fnQueue) Shutdown(context.Context) {}

type fakeExporter struct {
	got    *constants.Status
	called bool
	data   []byte
}

func (e *fakeExporter) ExportXLSX(_ context.Context, status *constants.Status) ([]byte, error) {
	e.called = true
	e.got = status
	return e.data, nil
}

type uploadCounts map[string]int

func (u uploadCounts) UploadObserved(outcome string) { u[outcome]++ }

type testEnv struct {
	maxBytes  int64
	contracts *memContracts
	queue     *fnQueue
	blobs     *storage.FSStore
	exporter  *fakeExporter
	uploads   uploadCounts
	svc       *ContractService
}

func newTestEnv(t *testing.T, maxBytes int64) *testEnv {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		maxBytes:  maxBytes,
		contracts: newMemContracts(),
		queue:     &fnQueue{},
		blobs:     blobs,
		exporter:  &fakeExporter{data: []byte("xlsx-bytes")},
		uploads:   uploadCounts{},
	}
	ing := ingest.NewService(env.contracts, blobs, maxBytes, logger)
	env.svc = NewContractService(env.contracts, ing, env.queue, blobs, env.exporter, env.uploads, logger)
	return env
}

func (e *testEnv) seed(t *testing.T, status constants.Status, created time.Time) *entity.Contract {
	t.Helper()
	c := entity.NewContract("seed.pdf", constants.MIMEPDF, int64(len(minimalPDF)), created)
	c.Status = status
	if status == constants.StatusCompleted {
		c.Stage = constants.StageCompleted
		c.ProgressPercentage = constants.ProgressCompleted
		c.ScoreReport = &entity.ScoreReport{
			OverallScore: 25,
			Gaps:         []string{"payment_terms"},
		}
		done := created.Add(time.Minute)
		c.ProcessedAt = &done
	}
	require.NoError(t, e.contracts.Create(context.Background(), c))
	return c
}
