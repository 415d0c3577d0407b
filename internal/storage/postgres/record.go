package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"apod_pipeline/internal/domain"
)

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS apod_data (
		id SERIAL PRIMARY KEY,
		date DATE NOT NULL,
		title TEXT,
		url TEXT,
		explanation TEXT,
		media_type VARCHAR(50),
		hdurl TEXT,
		copyright TEXT,
		service_version VARCHAR(50),
		extracted_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(date)
	)`

type RecordStore struct {
	db *sqlx.DB
}

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

// EnsureSchema creates the apod_data table when absent.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, createTableQuery)
	return err
}

// Upsert inserts the record or, when the date already exists, updates every
// non-key column. At most one row per date regardless of how many times the
// same day is loaded.
func (s *RecordStore) Upsert(ctx context.Context, rec *domain.Record) (int64, error) {
	query := `
		INSERT INTO apod_data (
			date, title, url, explanation, media_type, hdurl, copyright,
			service_version, extracted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (date) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			explanation = EXCLUDED.explanation,
			media_type = EXCLUDED.media_type,
			hdurl = EXCLUDED.hdurl,
			copyright = EXCLUDED.copyright,
			service_version = EXCLUDED.service_version,
			extracted_at = EXCLUDED.extracted_at
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		rec.Date,
		rec.Title,
		rec.URL,
		rec.Explanation,
		rec.MediaType,
		rec.HDURL,
		rec.Copyright,
		rec.ServiceVersion,
		rec.ExtractedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// Exists reports whether a row for the date is already present.
func (s *RecordStore) Exists(ctx context.Context, date string) (bool, error) {
	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx,
		"SELECT id FROM apod_data WHERE date = $1", date,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByDate reads one record back, nil when absent.
func (s *RecordStore) GetByDate(ctx context.Context, date string) (*domain.Record, error) {
	query := `
		SELECT id, to_char(date, 'YYYY-MM-DD') AS date, title, url, explanation,
			media_type, hdurl, copyright, service_version, extracted_at, created_at
		FROM apod_data
		WHERE date = $1`

	row := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, date)

	var rec domain.Record
	err := row.Scan(
		&rec.ID,
		&rec.Date,
		&rec.Title,
		&rec.URL,
		&rec.Explanation,
		&rec.MediaType,
		&rec.HDURL,
		&rec.Copyright,
		&rec.ServiceVersion,
		&rec.ExtractedAt,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}
