package repository

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.Context(), Config{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "contracts.db"),
	}, discard)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, discard) })
	require.NoError(t, Migrate(t.Context(), db, discard))
	require.NoError(t, HealthCheck(t.Context(), db, time.Second, discard))
	return db
}

func newContract(name string, created time.Time) *entity.Contract {
	return entity.NewContract(name, constants.MIMEPDF, 1024, created)
}

func TestContractRoundTrip(t *testing.T) {
	repo := NewContractRepository(openTestDB(t), discard)
	ctx := t.Context()

	c := newContract("msa.pdf", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "msa.pdf", got.Filename)
	assert.Equal(t, c.BlobKey, got.BlobKey)
	assert.Equal(t, constants.StatusPending, got.Status)
	assert.Equal(t, constants.StageQueued, got.Stage)
	assert.Zero(t, got.ProgressPercentage)
	assert.Nil(t, got.RawText)
	assert.Nil(t, got.ScoreReport)
	assert.Nil(t, got.ErrorDetails)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

	text := "This Agreement is made between Acme and Globex."
	method := "pdf-text"
	conf := float32(0.85)
	processed := time.Date(2025, 1, 2, 3, 5, 0, 0, time.UTC)
	got.Status = constants.StatusCompleted
	got.Stage = constants.StageCompleted
	got.ProgressPercentage = constants.ProgressCompleted
	got.RawText = &text
	got.TextMethod = &method
	got.TextConfidence = &conf
	got.StructuredData = entity.StructuredData{
		"payment_terms": {Value: "Net 30", Confidence: 0.9, Present: true},
		"currency":      entity.Absent(),
	}
	got.ScoreReport = &entity.ScoreReport{
		OverallScore:   42,
		CategoryScores: map[constants.Category]float64{constants.PaymentStructure: 9},
		Gaps:           []string{"currency"},
		Threshold:      0.5,
	}
	got.ProcessedAt = &processed
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, again.Status)
	assert.Equal(t, 100.0, again.ProgressPercentage)
	require.NotNil(t, again.RawText)
	assert.Equal(t, text, *again.RawText)
	assert.Equal(t, method, *again.TextMethod)
	assert.InDelta(t, 0.85, *again.TextConfidence, 1e-6)
	assert.Equal(t, "Net 30", again.StructuredData["payment_terms"].Value)
	assert.False(t, again.StructuredData["currency"].Present)
	require.NotNil(t, again.ScoreReport)
	assert.Equal(t, 42, again.ScoreReport.OverallScore)
	assert.Equal(t, 9.0, again.ScoreReport.CategoryScores[constants.PaymentStructure])
	require.NotNil(t, again.ProcessedAt)
	assert.True(t, processed.Equal(*again.ProcessedAt))

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.True(t, IsNotFound(repo.Delete(ctx, c.ID)))
}

func TestContractListAndCounts(t *testing.T) {
	repo := NewContractRepository(openTestDB(t), discard)
	ctx := t.Context()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 5 {
		c := newContract("c.pdf", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			c.Status = constants.StatusFailed
			c.Stage = constants.StageFailed
		}
		require.NoError(t, repo.Create(ctx, c))
		ids = append(ids, c.ID)
	}

	page, total, err := repo.List(ctx, ListParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID, "newest first")
	assert.Equal(t, ids[3], page[1].ID)

	last, _, err := repo.List(ctx, ListParams{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, ids[0], last[0].ID)

	failed := constants.StatusFailed
	only, total, err := repo.List(ctx, ListParams{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, only, 2)

	pending, err := repo.ListByStatus(ctx, constants.StatusPending, constants.StatusProcessing)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids[0], pending[0].ID, "oldest first")

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[constants.Status]int{constants.StatusPending: 3, constants.StatusFailed: 2}, counts)
}

func TestContractCreateValidates(t *testing.T) {
	repo := NewContractRepository(openTestDB(t), discard)

	c := newContract("x.pdf", time.Now())
	c.Status = "archived"
	err := repo.Create(t.Context(), c)

	var ve common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)

	c = newContract("", time.Now())
	assert.ErrorIs(t, repo.Create(t.Context(), c), common.ErrValidation)
}

func TestContractUpdateErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	repo := NewContractRepository(NewDB(sqlDB, dialect.Postgres), discard)

	c := newContract("msa.pdf", time.Now())

	mock.ExpectExec(`UPDATE "contracts" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Update(t.Context(), c)
	assert.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectExec(`UPDATE "contracts" SET`).WillReturnError(errors.New("connection refused"))
	err = repo.Update(t.Context(), c)
	var pe *common.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "update", pe.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractGetQueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	repo := NewContractRepository(NewDB(sqlDB, dialect.Postgres), discard)

	mock.ExpectQuery(`SELECT .* FROM "contracts" WHERE "id" = \$1`).WillReturnError(errors.New("boom"))
	_, err = repo.GetByID(t.Context(), uuid.New())

	var pe *common.PersistenceError
	assert.ErrorAs(t, err, &pe)
	require.NoError(t, mock.ExpectationsWereMet())
}
