// Package ingest validates uploaded documents and registers them as pending
// contracts.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/storage"
)

// ErrFileTooLarge marks uploads above the size limit.
var ErrFileTooLarge = errors.New("file exceeds the upload size limit")

const maxFilenameLen = 255

// Upload is one incoming document.
type Upload struct {
	Filename    string
	Size        int64 // declared size; -1 when unknown
	ContentType string
	Body        io.Reader
}

// Store is the part of the repository ingestion writes to.
type Store interface {
	Create(ctx context.Context, c *entity.Contract) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service stores the original bytes and creates the contract record.
type Service struct {
	Store    Store
	Blobs    storage.BlobStore
	MaxBytes int64
	Logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, blobs storage.BlobStore, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxUploadBytes
	}
	return &Service{
		Store:    store,
		Blobs:    blobs,
		MaxBytes: maxBytes,
		Logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AllowedExt reports whether ext names an accepted document type.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// Ingest validates the upload, writes the blob and creates a pending record.
// Validation failures are common.ValidationError; oversized uploads also
// match ErrFileTooLarge.
func (s *Service) Ingest(ctx context.Context, up Upload) (*entity.Contract, error) {
	name := strings.TrimSpace(filepath.Base(up.Filename))
	v := common.NewValidator().
		Field("filename", name, common.Required, common.MaxLength(maxFilenameLen))
	if v.HasErrors() {
		return nil, v.Error()
	}
	if !AllowedExt(filepath.Ext(name)) {
		return nil, common.ValidationError{Field: "file", Value: name, Message: "only PDF files are accepted"}
	}
	if up.Size > s.MaxBytes {
		return nil, s.tooLarge(up.Size)
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, s.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.MaxBytes {
		return nil, s.tooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return nil, common.ValidationError{Field: "file", Value: name, Message: "file is empty"}
	}
	if mt := mimetype.Detect(data); !mt.Is(constants.MIMEPDF) {
		return nil, common.ValidationError{Field: "file", Value: mt.String(), Message: "content is not a PDF document"}
	}

	c := entity.NewContract(name, constants.MIMEPDF, int64(len(data)), s.now())
	if err := s.Blobs.Put(ctx, c.BlobKey, bytes.NewReader(data), int64(len(data)), constants.MIMEPDF); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := s.Store.Create(ctx, c); err != nil {
		if derr := s.Blobs.Delete(ctx, c.BlobKey); derr != nil {
			s.Logger.Warn("ingest.blob.cleanup_failed", "contract_id", c.ID, "error", derr)
		}
		return nil, err
	}

	s.Logger.Info("ingest.ok", "contract_id", c.ID, "filename", name, "size", c.FileSize)
	return c, nil
}

// Rollback removes a contract that was ingested but could not be dispatched.
func (s *Service) Rollback(ctx context.Context, c *entity.Contract) error {
	var errs []error
	if err := s.Store.Delete(ctx, c.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
		errs = append(errs, fmt.Errorf("delete record: %w", err))
	}
	if err := s.Blobs.Delete(ctx, c.BlobKey); err != nil {
		errs = append(errs, fmt.Errorf("delete blob: %w", err))
	}
	if len(errs) > 0 {
		s.Logger.Error("ingest.rollback.failed", "contract_id", c.ID, "error", errors.Join(errs...))
		return errors.Join(errs...)
	}
	s.Logger.Info("ingest.rollback.ok", "contract_id", c.ID)
	return nil
}

func (s *Service) tooLarge(size int64) error {
	return fmt.Errorf("%w: %w", ErrFileTooLarge, common.ValidationError{
		Field:   "file",
		Value:   size,
		Message: fmt.Sprintf("must be at most %d bytes", s.MaxBytes),
	})
}
