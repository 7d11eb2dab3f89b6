// Package server exposes contracts over HTTP (gin) and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/async"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
	"github.com/joseph-ayodele/contract-intelligence/internal/repository"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

// ContractReader is the read side of the contract repository.
type ContractReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	List(ctx context.Context, p repository.ListParams) ([]*entity.Contract, int, error)
}

// Ingester registers uploads and undoes them.
type Ingester interface {
	Ingest(ctx context.Context, up ingest.Upload) (*entity.Contract, error)
	Rollback(ctx context.Context, c *entity.Contract) error
}

// Exporter renders the XLSX report.
type Exporter interface {
	ExportXLSX(ctx context.Context, status *constants.Status) ([]byte, error)
}

// UploadRecorder counts upload outcomes.
type UploadRecorder interface {
	UploadObserved(outcome string)
}

type noopUploads struct{}

func (noopUploads) UploadObserved(string) {}

// ContractService is shared by the HTTP and gRPC surfaces. It never waits on
// pipeline execution.
type ContractService struct {
	contracts ContractReader
	ingester  Ingester
	queue     async.Queue
	blobs     storage.BlobStore
	exporter  Exporter
	uploads   UploadRecorder
	logger    *slog.Logger
}

func NewContractService(
	contracts ContractReader,
	ingester Ingester,
	queue async.Queue,
	blobs storage.BlobStore,
	exporter Exporter,
	uploads UploadRecorder,
	logger *slog.Logger,
) *ContractService {
	if logger == nil {
		logger = slog.Default()
	}
	if uploads == nil {
		uploads = noopUploads{}
	}
	return &ContractService{
		contracts: contracts,
		ingester:  ingester,
		queue:     queue,
		blobs:     blobs,
		exporter:  exporter,
		uploads:   uploads,
		logger:    logger,
	}
}

// Upload registers the document and enqueues it. When the dispatcher pushes
// back, the record and blob are removed and common.ErrBackpressure returned.
func (s *ContractService) Upload(ctx context.Context, up ingest.Upload) (*entity.Contract, error) {
	c, err := s.ingester.Ingest(ctx, up)
	if err != nil {
		s.uploads.UploadObserved("rejected")
		return nil, err
	}

	traceID := common.RequestIDFromContext(ctx)
	if err := s.queue.Enqueue(ctx, async.NewJob(c.ID, traceID)); err != nil {
		s.uploads.UploadObserved("backpressure")
		if rerr := s.ingester.Rollback(context.WithoutCancel(ctx), c); rerr != nil {
			s.logger.Error("upload.rollback.failed", "contract_id", c.ID, "error", rerr)
		}
		if errors.Is(err, async.ErrQueueClosed) {
			return nil, fmt.Errorf("%w: %w", common.ErrBackpressure, err)
		}
		return nil, err
	}

	s.uploads.UploadObserved("accepted")
	s.logger.Info("upload.accepted", "contract_id", c.ID, "filename", c.Filename, "request_id", traceID)
	return c, nil
}

// Status returns the record in whatever state it is.
func (s *ContractService) Status(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return s.contracts.GetByID(ctx, id)
}

// Result returns the record only once it is completed; otherwise the error
// matches common.ErrNotReady and the record is still returned for context.
func (s *ContractService) Result(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != constants.StatusCompleted {
		return c, fmt.Errorf("contract %s is %s: %w", id, c.Status, common.ErrNotReady)
	}
	return c, nil
}

// Page is one page of a listing.
type Page struct {
	Items   []*entity.Contract
	Total   int
	Page    int
	Limit   int
	HasNext bool
	HasPrev bool
}

// List pages through contracts newest first.
func (s *ContractService) List(ctx context.Context, p repository.ListParams) (Page, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = repository.DefaultPageLimit
	}
	p.Limit = min(p.Limit, repository.MaxPageLimit)

	items, total, err := s.contracts.List(ctx, p)
	if err != nil {
		return Page{}, err
	}
	skip := (p.Page - 1) * p.Limit
	return Page{
		Items:   items,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasNext: skip+p.Limit < total,
		HasPrev: p.Page > 1,
	}, nil
}

// Download opens the original upload. The caller closes the reader.
func (s *ContractService) Download(ctx context.Context, id uuid.UUID) (*entity.Contract, io.ReadCloser, error) {
	c, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, c.BlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil, fmt.Errorf("original file of %s: %w", id, common.ErrNotFound)
		}
		return nil, nil, err
	}
	return c, rc, nil
}

// Export renders the XLSX report, optionally for one status.
func (s *ContractService) Export(ctx context.Context, status *constants.Status) ([]byte, error) {
	return s.exporter.ExportXLSX(ctx, status)
}
