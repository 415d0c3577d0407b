package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"apod_pipeline/internal/domain"
)

type RunStateStore struct {
	db *sqlx.DB
}

func NewRunStateStore(db *sqlx.DB) *RunStateStore {
	return &RunStateStore{db: db}
}

// EnsureSchema creates the run_state table when absent.
func (s *RunStateStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_state (
			id SERIAL PRIMARY KEY,
			pipeline_id VARCHAR(100) NOT NULL,
			last_run_at TIMESTAMP,
			last_record_date VARCHAR(10),
			total_loaded BIGINT NOT NULL DEFAULT 0,
			UNIQUE(pipeline_id)
		)`
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query)
	return err
}

func (s *RunStateStore) Get(ctx context.Context, pipelineID string) (*domain.RunState, error) {
	var state domain.RunState
	query := `
		SELECT id, pipeline_id, last_run_at, COALESCE(last_record_date, '') AS last_record_date, total_loaded
		FROM run_state
		WHERE pipeline_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		// Empty state for a pipeline that has never run
		return &domain.RunState{
			PipelineID: pipelineID,
			LastRunAt:  time.Time{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RunStateStore) Update(ctx context.Context, state *domain.RunState) error {
	query := `
		INSERT INTO run_state (pipeline_id, last_run_at, last_record_date, total_loaded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pipeline_id) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_record_date = EXCLUDED.last_record_date,
			total_loaded = EXCLUDED.total_loaded`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.PipelineID,
		state.LastRunAt,
		state.LastRecordDate,
		state.TotalLoaded,
	)
	return err
}
