// Package csvfile implements the flat-file sink: an append-style CSV row
// store that never holds two rows with the same date. A write loads the
// existing file, replaces any row with the same date in place, and rewrites
// the whole file. Fine at one row per day; a high-frequency feed would need
// a different design.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"apod_pipeline/internal/domain"
)

var header = []string{
	"date", "title", "url", "explanation", "media_type",
	"hdurl", "copyright", "service_version", "extracted_at",
}

const extractedAtLayout = time.RFC3339Nano

// Store writes Records to a single CSV file with dedup-on-write semantics.
// The mutex serializes writers within this process; cross-process exclusion
// is left to whoever schedules runs.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger.With("sink", "csv")}
}

// Path returns the file path this store writes to.
func (s *Store) Path() string {
	return s.path
}

// Write persists one record, replacing any existing row with the same date.
// Creates the file (and its directory) with a header row when absent.
// Returns whether the date was new to the file.
func (s *Store) Write(ctx context.Context, rec *domain.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	rows, err := s.readRows()
	if err != nil {
		return false, fmt.Errorf("read existing file: %w", err)
	}

	created := true
	for i, row := range rows {
		if row[0] == rec.Date {
			rows[i] = toRow(rec)
			created = false
			break
		}
	}
	if created {
		rows = append(rows, toRow(rec))
	}

	if err := s.writeRows(rows); err != nil {
		return false, err
	}

	s.logger.Debug("wrote record", "date", rec.Date, "created", created, "rows", len(rows))

	return created, nil
}

// ReadAll parses the file back into Records. A missing file is an empty
// dataset, not an error.
func (s *Store) ReadAll(ctx context.Context) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, nil
}

// readRows returns the data rows (header stripped), or nil when the file
// does not exist.
func (s *Store) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	if _, err := r.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// writeRows rewrites the whole file via a temp file and rename, so a crashed
// run never leaves a half-written dataset behind.
func (s *Store) writeRows(rows [][]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func toRow(rec *domain.Record) []string {
	return []string{
		rec.Date,
		deref(rec.Title),
		rec.URL,
		deref(rec.Explanation),
		rec.MediaType,
		deref(rec.HDURL),
		deref(rec.Copyright),
		deref(rec.ServiceVersion),
		rec.ExtractedAt.UTC().Format(extractedAtLayout),
	}
}

func fromRow(row []string) (*domain.Record, error) {
	extractedAt, err := time.Parse(extractedAtLayout, row[8])
	if err != nil {
		return nil, fmt.Errorf("parse extracted_at for date %s: %w", row[0], err)
	}

	return &domain.Record{
		Date:           row[0],
		Title:          optional(row[1]),
		URL:            row[2],
		Explanation:    optional(row[3]),
		MediaType:      row[4],
		HDURL:          optional(row[5]),
		Copyright:      optional(row[6]),
		ServiceVersion: optional(row[7]),
		ExtractedAt:    extractedAt,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
