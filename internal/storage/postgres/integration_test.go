//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"apod_pipeline/internal/domain"
	"apod_pipeline/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_apod_data.up.sql"),
			filepath.Join(migrationsPath, "002_create_run_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM apod_data")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM run_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func testRecord(date string) *domain.Record {
	return &domain.Record{
		Date:           date,
		Title:          utils.Ptr("Test Title"),
		Explanation:    utils.Ptr("Test Explanation"),
		URL:            "https://example.com/img.jpg",
		MediaType:      domain.MediaTypeImage,
		HDURL:          utils.Ptr("https://example.com/img_hd.jpg"),
		Copyright:      utils.Ptr("Someone"),
		ServiceVersion: utils.Ptr("v1"),
		ExtractedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresIntegrationSuite) TestRecordStore_EnsureSchema_Idempotent() {
	store := NewRecordStore(s.db)

	s.NoError(store.EnsureSchema(s.ctx))
	s.NoError(store.EnsureSchema(s.ctx))
}

// A fresh database must answer the pre-load Exists check cleanly once the
// schema has been ensured, so the first record counts as new.
func (s *PostgresIntegrationSuite) TestRecordStore_Exists_OnFreshDatabase() {
	_, err := s.db.ExecContext(s.ctx, "DROP TABLE IF EXISTS apod_data")
	s.Require().NoError(err)

	store := NewRecordStore(s.db)

	_, err = store.Exists(s.ctx, "2024-01-01")
	s.Error(err)

	s.Require().NoError(store.EnsureSchema(s.ctx))

	exists, err := store.Exists(s.ctx, "2024-01-01")
	s.NoError(err)
	s.False(exists)
}

func (s *PostgresIntegrationSuite) TestRecordStore_Upsert_Insert() {
	store := NewRecordStore(s.db)

	id, err := store.Upsert(s.ctx, testRecord("2024-01-01"))
	s.NoError(err)
	s.Greater(id, int64(0))

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apod_data WHERE date = $1", "2024-01-01")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestRecordStore_Upsert_SameDateLeavesOneRow() {
	store := NewRecordStore(s.db)

	rec := testRecord("2024-01-01")
	id1, err := store.Upsert(s.ctx, rec)
	s.NoError(err)

	rec.Title = utils.Ptr("Updated Title")
	id2, err := store.Upsert(s.ctx, rec)
	s.NoError(err)
	s.Equal(id1, id2)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apod_data")
	s.NoError(err)
	s.Equal(1, count)

	var title string
	err = s.db.GetContext(s.ctx, &title, "SELECT title FROM apod_data WHERE id = $1", id1)
	s.NoError(err)
	s.Equal("Updated Title", title)
}

func (s *PostgresIntegrationSuite) TestRecordStore_Upsert_LastWriteWins() {
	store := NewRecordStore(s.db)

	rec := testRecord("2024-01-01")
	_, err := store.Upsert(s.ctx, rec)
	s.NoError(err)

	later := rec.ExtractedAt.Add(time.Hour)
	rec.Explanation = utils.Ptr("second load")
	rec.ExtractedAt = later
	_, err = store.Upsert(s.ctx, rec)
	s.NoError(err)

	got, err := store.GetByDate(s.ctx, "2024-01-01")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("second load", *got.Explanation)
	s.WithinDuration(later, got.ExtractedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestRecordStore_DifferentDatesDistinctRows() {
	store := NewRecordStore(s.db)

	_, err := store.Upsert(s.ctx, testRecord("2024-01-01"))
	s.NoError(err)
	_, err = store.Upsert(s.ctx, testRecord("2024-01-02"))
	s.NoError(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apod_data")
	s.NoError(err)
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestRecordStore_Exists() {
	store := NewRecordStore(s.db)

	ok, err := store.Exists(s.ctx, "2024-01-01")
	s.NoError(err)
	s.False(ok)

	_, err = store.Upsert(s.ctx, testRecord("2024-01-01"))
	s.NoError(err)

	ok, err = store.Exists(s.ctx, "2024-01-01")
	s.NoError(err)
	s.True(ok)
}

func (s *PostgresIntegrationSuite) TestRecordStore_GetByDate_RoundTrip() {
	store := NewRecordStore(s.db)

	rec := testRecord("2024-01-01")
	_, err := store.Upsert(s.ctx, rec)
	s.NoError(err)

	got, err := store.GetByDate(s.ctx, "2024-01-01")
	s.NoError(err)
	s.Require().NotNil(got)

	s.Equal(rec.Date, got.Date)
	s.Equal(rec.URL, got.URL)
	s.Equal(rec.MediaType, got.MediaType)
	s.Equal(*rec.Title, *got.Title)
	s.Equal(*rec.Copyright, *got.Copyright)
	s.False(got.CreatedAt.IsZero())
}

func (s *PostgresIntegrationSuite) TestRecordStore_GetByDate_Absent() {
	store := NewRecordStore(s.db)

	got, err := store.GetByDate(s.ctx, "1999-12-31")
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestRunStateStore_GetNew() {
	store := NewRunStateStore(s.db)

	state, err := store.Get(s.ctx, "new-pipeline")
	s.NoError(err)
	s.NotNil(state)
	s.Equal("new-pipeline", state.PipelineID)
	s.True(state.LastRunAt.IsZero())
	s.Equal(int64(0), state.TotalLoaded)
}

func (s *PostgresIntegrationSuite) TestRunStateStore_UpdateAndGet() {
	store := NewRunStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.RunState{
		PipelineID:     "apod",
		LastRunAt:      now,
		LastRecordDate: "2024-01-01",
		TotalLoaded:    7,
	}
	s.NoError(store.Update(s.ctx, state))

	retrieved, err := store.Get(s.ctx, "apod")
	s.NoError(err)
	s.Equal("apod", retrieved.PipelineID)
	s.Equal("2024-01-01", retrieved.LastRecordDate)
	s.Equal(int64(7), retrieved.TotalLoaded)
	s.WithinDuration(now, retrieved.LastRunAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestRunStateStore_UpdateExisting() {
	store := NewRunStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.RunState{PipelineID: "apod", LastRunAt: now, LastRecordDate: "2024-01-01", TotalLoaded: 1}
	s.NoError(store.Update(s.ctx, state))

	state.LastRecordDate = "2024-01-02"
	state.TotalLoaded = 2
	s.NoError(store.Update(s.ctx, state))

	retrieved, err := store.Get(s.ctx, "apod")
	s.NoError(err)
	s.Equal("2024-01-02", retrieved.LastRecordDate)
	s.Equal(int64(2), retrieved.TotalLoaded)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	store := NewRecordStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := store.Upsert(ctx, testRecord("2024-01-01"))
		return err
	})
	s.NoError(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apod_data WHERE date = $1", "2024-01-01")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewRecordStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := store.Upsert(ctx, testRecord("2024-01-01")); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM apod_data WHERE date = $1", "2024-01-01")
	s.NoError(err)
	s.Equal(0, count)
}
