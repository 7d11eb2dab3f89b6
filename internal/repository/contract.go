package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	entschema "github.com/joseph-ayodele/contract-intelligence/db/ent/schema"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ListParams selects one page of contracts, newest first.
type ListParams struct {
	Page   int // 1-based
	Limit  int
	Status *constants.Status
}

type ContractRepository interface {
	Create(ctx context.Context, c *entity.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	// Update writes every mutable column in one statement.
	Update(ctx context.Context, c *entity.Contract) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, p ListParams) ([]*entity.Contract, int, error)
	ListByStatus(ctx context.Context, statuses ...constants.Status) ([]*entity.Contract, error)
	CountByStatus(ctx context.Context) (map[constants.Status]int, error)
}

var contractColumns = []string{
	"id", "filename", "mime_type", "file_size", "blob_key",
	"status", "stage", "progress_percentage",
	"raw_text", "text_confidence", "text_method",
	"structured_data", "score_report", "error_details",
	"retry_count", "created_at", "updated_at", "processed_at",
}

type contractRepo struct {
	db         *DB
	validators map[string][]func(string) error
	now        func() time.Time
	log        *slog.Logger
}

func NewContractRepository(db *DB, log *slog.Logger) ContractRepository {
	return &contractRepo{
		db:         db,
		validators: fieldValidators(),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func (r *contractRepo) builder() *entsql.DialectBuilder { return entsql.Dialect(r.db.Dialect()) }

func (r *contractRepo) validate(c *entity.Contract) error {
	values := map[string]string{
		"filename":  c.Filename,
		"mime_type": c.MimeType,
		"blob_key":  c.BlobKey,
		"status":    string(c.Status),
		"stage":     string(c.Stage),
	}
	for name, fns := range r.validators {
		v, ok := values[name]
		if !ok {
			continue
		}
		for _, fn := range fns {
			if err := fn(v); err != nil {
				return common.ValidationError{Field: name, Value: v, Message: err.Error()}
			}
		}
	}
	if c.ProgressPercentage < 0 || c.ProgressPercentage > 100 {
		return common.ValidationError{Field: "progress_percentage", Value: c.ProgressPercentage, Message: "must be within 0..100"}
	}
	return nil
}

func (r *contractRepo) Create(ctx context.Context, c *entity.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.BlobKey == "" {
		c.BlobKey = c.ID.String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if err := r.validate(c); err != nil {
		return err
	}
	vals, err := rowValues(c)
	if err != nil {
		return err
	}

	q, args := r.builder().Insert(entschema.Table).Columns(contractColumns...).Values(vals...).Query()
	var res stdsql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		r.log.Error("contract create failed", "contract_id", c.ID, "err", err)
		return &common.PersistenceError{Op: "create", Err: err}
	}
	r.log.Info("contract created", "contract_id", c.ID, "filename", c.Filename, "size", c.FileSize)
	return nil
}

func (r *contractRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	q, args := r.builder().
		Select(contractColumns...).
		From(r.builder().Table(entschema.Table)).
		Where(entsql.EQ("id", id)).
		Query()
	out, err := r.query(ctx, q, args)
	if err != nil {
		return nil, &common.PersistenceError{Op: "get", Err: err}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contract %s: %w", id, common.ErrNotFound)
	}
	return out[0], nil
}

func (r *contractRepo) Update(ctx context.Context, c *entity.Contract) error {
	if err := r.validate(c); err != nil {
		return err
	}
	c.UpdatedAt = r.now()
	vals, err := rowValues(c)
	if err != nil {
		return err
	}

	u := r.builder().Update(entschema.Table)
	// skip the immutable leading columns and created_at
	for i, col := range contractColumns {
		switch col {
		case "id", "blob_key", "created_at":
			continue
		}
		u = u.Set(col, vals[i])
	}
	q, args := u.Where(entsql.EQ("id", c.ID)).Query()

	var res stdsql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		r.log.Error("contract update failed", "contract_id", c.ID, "err", err)
		return &common.PersistenceError{Op: "update", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("contract %s: %w", c.ID, common.ErrNotFound)
	}
	r.log.Debug("contract updated",
		"contract_id", c.ID,
		"status", c.Status,
		"stage", c.Stage,
		"progress", c.ProgressPercentage,
	)
	return nil
}

func (r *contractRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.builder().Delete(entschema.Table).Where(entsql.EQ("id", id)).Query()
	var res stdsql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		r.log.Error("contract delete failed", "contract_id", id, "err", err)
		return &common.PersistenceError{Op: "delete", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("contract %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("contract deleted", "contract_id", id)
	return nil
}

func (r *contractRepo) List(ctx context.Context, p ListParams) ([]*entity.Contract, int, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	p.Limit = min(p.Limit, MaxPageLimit)

	count := r.builder().Select(entsql.Count("*")).From(r.builder().Table(entschema.Table))
	sel := r.builder().Select(contractColumns...).From(r.builder().Table(entschema.Table))
	if p.Status != nil {
		count = count.Where(entsql.EQ("status", string(*p.Status)))
		sel = sel.Where(entsql.EQ("status", string(*p.Status)))
	}

	total, err := r.scalar(ctx, count)
	if err != nil {
		return nil, 0, &common.PersistenceError{Op: "count", Err: err}
	}
	q, args := sel.
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).
		Limit(p.Limit).
		Offset((p.Page - 1) * p.Limit).
		Query()
	out, err := r.query(ctx, q, args)
	if err != nil {
		return nil, 0, &common.PersistenceError{Op: "list", Err: err}
	}
	return out, total, nil
}

// ListByStatus returns matching contracts oldest first.
func (r *contractRepo) ListByStatus(ctx context.Context, statuses ...constants.Status) ([]*entity.Contract, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	vals := make([]any, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}
	q, args := r.builder().
		Select(contractColumns...).
		From(r.builder().Table(entschema.Table)).
		Where(entsql.In("status", vals...)).
		OrderBy(entsql.Asc("created_at")).
		Query()
	out, err := r.query(ctx, q, args)
	if err != nil {
		return nil, &common.PersistenceError{Op: "list by status", Err: err}
	}
	return out, nil
}

func (r *contractRepo) CountByStatus(ctx context.Context) (map[constants.Status]int, error) {
	q, args := r.builder().
		Select("status", entsql.Count("*")).
		From(r.builder().Table(entschema.Table)).
		GroupBy("status").
		Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, &common.PersistenceError{Op: "count by status", Err: err}
	}
	defer rows.Close()

	out := map[constants.Status]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, &common.PersistenceError{Op: "count by status", Err: err}
		}
		out[constants.Status(s)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "count by status", Err: err}
	}
	return out, nil
}

func (r *contractRepo) scalar(ctx context.Context, sel *entsql.Selector) (int, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (r *contractRepo) query(ctx context.Context, q string, args []any) ([]*entity.Contract, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Contract
	for rows.Next() {
		c, err := scanContract(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// rowValues returns the column values in contractColumns order.
func rowValues(c *entity.Contract) ([]any, error) {
	data, err := jsonColumn(c.StructuredData, len(c.StructuredData) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode structured_data: %w", err)
	}
	report, err := jsonColumn(c.ScoreReport, c.ScoreReport == nil)
	if err != nil {
		return nil, fmt.Errorf("encode score_report: %w", err)
	}
	details, err := jsonColumn(c.ErrorDetails, c.ErrorDetails == nil)
	if err != nil {
		return nil, fmt.Errorf("encode error_details: %w", err)
	}
	var processedAt any
	if c.ProcessedAt != nil {
		processedAt = c.ProcessedAt.UTC()
	}
	var textConf any
	if c.TextConfidence != nil {
		textConf = float64(*c.TextConfidence)
	}
	return []any{
		c.ID, c.Filename, c.MimeType, c.FileSize, c.BlobKey,
		string(c.Status), string(c.Stage), c.ProgressPercentage,
		nullable(c.RawText), textConf, nullable(c.TextMethod),
		data, report, details,
		c.RetryCount, c.CreatedAt.UTC(), c.UpdatedAt.UTC(), processedAt,
	}, nil
}

func jsonColumn(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func scanContract(rows *entsql.Rows) (*entity.Contract, error) {
	var (
		c                     entity.Contract
		status, stage         string
		rawText, textMethod   stdsql.NullString
		textConf              stdsql.NullFloat64
		data, report, details stdsql.NullString
		processedAt           stdsql.NullTime
	)
	err := rows.Scan(
		&c.ID, &c.Filename, &c.MimeType, &c.FileSize, &c.BlobKey,
		&status, &stage, &c.ProgressPercentage,
		&rawText, &textConf, &textMethod,
		&data, &report, &details,
		&c.RetryCount, &c.CreatedAt, &c.UpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	c.Status = constants.Status(status)
	c.Stage = constants.Stage(stage)
	if rawText.Valid {
		c.RawText = &rawText.String
	}
	if textMethod.Valid {
		c.TextMethod = &textMethod.String
	}
	if textConf.Valid {
		f := float32(textConf.Float64)
		c.TextConfidence = &f
	}
	if processedAt.Valid {
		t := processedAt.Time
		c.ProcessedAt = &t
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &c.StructuredData); err != nil {
			return nil, fmt.Errorf("decode structured_data: %w", err)
		}
	}
	if report.Valid && report.String != "" {
		c.ScoreReport = &entity.ScoreReport{}
		if err := json.Unmarshal([]byte(report.String), c.ScoreReport); err != nil {
			return nil, fmt.Errorf("decode score_report: %w", err)
		}
	}
	if details.Valid && details.String != "" {
		c.ErrorDetails = &entity.ErrorDetails{}
		if err := json.Unmarshal([]byte(details.String), c.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode error_details: %w", err)
		}
	}
	return &c, nil
}

// IsNotFound reports whether err is a missing contract.
func IsNotFound(err error) bool { return errors.Is(err, common.ErrNotFound) }
