package server

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/ingest"
	"github.com/joseph-ayodele/contract-intelligence/internal/repository"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	retryAfter      = "5"

	// multipartOverhead leaves room for boundaries and part headers on top of
	// the file size limit.
	multipartOverhead = 1 << 20
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service        *ContractService
	MaxUploadBytes int64
	Health         func(ctx context.Context) error
	Metrics        http.Handler
	Logger         *slog.Logger
}

type handler struct {
	svc      *ContractService
	maxBytes int64
	health   func(ctx context.Context) error
	logger   *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxUploadBytes
	}
	h := &handler{svc: cfg.Service, maxBytes: maxBytes, health: cfg.Health, logger: logger}

	r := gin.New()
	r.Use(RequestID(), Logger(logger), Recovery(logger))

	r.GET("/healthz", h.healthz)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := r.Group("/api/v1/contracts")
	v1.POST("/upload", h.upload)
	v1.GET("", h.list)
	v1.GET("/export.xlsx", h.export)
	v1.GET("/:id", h.result)
	v1.GET("/:id/status", h.status)
	v1.GET("/:id/download", h.download)
	return r
}

func (h *handler) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("http.healthz.failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(c, ingest.ErrFileTooLarge)
			return
		}
		h.writeError(c, common.ValidationError{Field: "file", Message: "multipart field 'file' is required"})
		return
	}
	if fh.Size > h.maxBytes {
		h.writeError(c, ingest.ErrFileTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	contract, err := h.svc.Upload(c.Request.Context(), ingest.Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, uploadView{
		ID:       contract.ID,
		Filename: contract.Filename,
		Status:   contract.Status,
		Message:  "contract accepted for processing",
	})
}

func (h *handler) status(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	contract, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatusView(contract))
}

func (h *handler) result(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	contract, err := h.svc.Result(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *handler) list(c *gin.Context) {
	params, err := parseListParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	page, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageView(page))
}

func (h *handler) download(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	contract, rc, err := h.svc.Download(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": contract.Filename})
	c.DataFromReader(http.StatusOK, contract.FileSize, contract.MimeType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *handler) export(c *gin.Context) {
	var status *constants.Status
	if raw := c.Query("status"); raw != "" {
		st, ok := constants.ParseStatus(raw)
		if !ok {
			h.writeError(c, common.ValidationError{Field: "status", Message: "unknown status " + strconv.Quote(raw)})
			return
		}
		status = &st
	}
	data, err := h.svc.Export(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "contracts.xlsx"}))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, common.ValidationError{Field: "id", Message: "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseListParams(c *gin.Context) (repository.ListParams, error) {
	p := repository.ListParams{Page: 1, Limit: repository.DefaultPageLimit}
	v := common.NewValidator()
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, common.ValidationError{Field: "page", Message: "must be an integer"}
		}
		v.Field("page", n, common.IntRange(1, 1<<31-1))
		p.Page = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, common.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		v.Field("limit", n, common.IntRange(1, repository.MaxPageLimit))
		p.Limit = n
	}
	if raw := c.Query("status"); raw != "" {
		v.Field("status", raw, common.OneOf(constants.StatusValues()...))
		if st, ok := constants.ParseStatus(raw); ok {
			p.Status = &st
		}
	}
	if v.HasErrors() {
		return p, v.Error()
	}
	return p, nil
}

func (h *handler) writeError(c *gin.Context, err error) {
	var ve common.ValidationError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
	case errors.As(err, &ve), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, common.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, common.ErrNotReady):
		abortWithError(c, http.StatusConflict, "NOT_READY", err.Error())
	case errors.Is(err, common.ErrBackpressure):
		c.Header("Retry-After", retryAfter)
		abortWithError(c, http.StatusServiceUnavailable, "BUSY", err.Error())
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorView{Code: code, Message: message}})
}
