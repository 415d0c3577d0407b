package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"apod_pipeline/internal/domain"
	"apod_pipeline/internal/metrics"
	"apod_pipeline/internal/transform"
	"apod_pipeline/internal/versioning"
)

// PipelineService runs one ETL pass: fetch, transform, load both sinks,
// track the flat file, commit the pointer. Fetch and transform errors abort
// before any write. The two sink writes are independent: one failing never
// suppresses the other, and a failure in either fails the run without
// rolling back the sink that succeeded. Versioning and publishing are
// best-effort and never fail the run.
type PipelineService struct {
	source    Source
	records   RecordStore
	file      FileStore
	runState  RunStateStore
	txManager TransactionManager
	tracker   Tracker
	committer Committer
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewPipelineService(
	source Source,
	records RecordStore,
	file FileStore,
	runState RunStateStore,
	txManager TransactionManager,
	tracker Tracker,
	committer Committer,
	publisher Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PipelineService {
	return &PipelineService{
		source:    source,
		records:   records,
		file:      file,
		runState:  runState,
		txManager: txManager,
		tracker:   tracker,
		committer: committer,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("source", source.ID()),
		now:       time.Now,
	}
}

// Run fetches and loads today's record.
func (s *PipelineService) Run(ctx context.Context) (*domain.RunStats, error) {
	return s.RunForDate(ctx, "")
}

// RunForDate fetches and loads the record for one calendar date (empty means
// today). Safe to call again for an already-loaded date: both sinks converge
// to one row per date.
func (s *PipelineService) RunForDate(ctx context.Context, date string) (*domain.RunStats, error) {
	startTime := s.now()

	stats := &domain.RunStats{
		DBSink:    domain.StepSkipped,
		FileSink:  domain.StepSkipped,
		Tracked:   domain.StepSkipped,
		Committed: domain.StepSkipped,
	}

	stats, err := s.run(ctx, date, stats)

	stats.Duration = time.Since(startTime)
	s.observeRun(stats, err)

	return stats, err
}

func (s *PipelineService) run(ctx context.Context, date string, stats *domain.RunStats) (*domain.RunStats, error) {
	s.logger.Info("starting pipeline run", "source_name", s.source.Name(), "date", date)

	raw, err := s.source.Fetch(ctx, date)
	if err != nil {
		return stats, err
	}

	rec, err := transform.Transform(raw, s.now())
	if err != nil {
		return stats, err
	}
	stats.Date = rec.Date

	exists, err := s.records.Exists(ctx, rec.Date)
	if err != nil {
		s.logger.Warn("could not check existing record, assuming update", "error", err)
	}
	stats.New = !exists && err == nil

	s.logger.Info("record transformed", "date", rec.Date, "media_type", rec.MediaType, "new", stats.New)

	dbErr, fileErr := s.loadSinks(ctx, rec, stats)

	if fileErr == nil {
		s.recordVersion(ctx, stats)
	}

	if dbErr == nil {
		if err := s.updateRunState(ctx, stats); err != nil {
			s.logger.Warn("failed to update run state", "error", err)
		}
	}

	if dbErr == nil || fileErr == nil {
		s.publish(ctx, rec, stats)
	}

	s.logger.Info("pipeline run completed",
		"date", stats.Date,
		"db_sink", stats.DBSink,
		"file_sink", stats.FileSink,
		"tracked", stats.Tracked,
		"committed", stats.Committed,
		"published", stats.Published,
	)

	return stats, errors.Join(dbErr, fileErr)
}

// loadSinks writes the record to both sinks concurrently. Neither write
// blocks on or aborts the other; each failure is reported as its own
// SinkError.
func (s *PipelineService) loadSinks(ctx context.Context, rec *domain.Record, stats *domain.RunStats) (dbErr, fileErr error) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.records.EnsureSchema(txCtx); err != nil {
				return err
			}
			_, err := s.records.Upsert(txCtx, rec)
			return err
		})
		if err != nil {
			dbErr = &domain.SinkError{Sink: "postgres", Err: err}
			stats.DBSink = domain.StepFailed
			s.logger.Error("relational sink write failed", "date", rec.Date, "error", err)
			return
		}
		stats.DBSink = domain.StepOK
	}()

	go func() {
		defer wg.Done()
		_, err := s.file.Write(ctx, rec)
		if err != nil {
			fileErr = &domain.SinkError{Sink: "csv", Err: err}
			stats.FileSink = domain.StepFailed
			s.logger.Error("flat-file sink write failed", "date", rec.Date, "error", err)
			return
		}
		stats.FileSink = domain.StepOK
	}()

	wg.Wait()

	if s.metrics != nil {
		s.metrics.SinkWritesTotal.WithLabelValues("postgres", string(stats.DBSink)).Inc()
		s.metrics.SinkWritesTotal.WithLabelValues("csv", string(stats.FileSink)).Inc()
	}

	return dbErr, fileErr
}

// recordVersion runs the two versioning sub-steps. Both are soft failure
// domains: outcomes land in stats, never in the run error.
func (s *PipelineService) recordVersion(ctx context.Context, stats *domain.RunStats) {
	if s.tracker == nil || s.committer == nil {
		return
	}

	pointer, err := s.tracker.Track(ctx, s.file.Path())
	if err != nil {
		stats.Tracked = domain.StepFailed
		s.logger.Warn("content versioning failed", "error", err)
		s.observeVersioning("dvc", domain.StepFailed)
		return
	}
	stats.Tracked = domain.StepOK
	stats.PointerPath = pointer
	s.observeVersioning("dvc", domain.StepOK)

	outcome, err := s.committer.CommitPointer(ctx, pointer)
	switch {
	case err != nil:
		stats.Committed = domain.StepFailed
		s.logger.Warn("code versioning failed", "error", err)
	case outcome == versioning.OutcomeNoChange:
		stats.Committed = domain.StepSkipped
	default:
		stats.Committed = domain.StepOK
	}
	s.observeVersioning("git", stats.Committed)
}

func (s *PipelineService) publish(ctx context.Context, rec *domain.Record, stats *domain.RunStats) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, rec, stats.New); err != nil {
		s.logger.Warn("failed to publish record event", "date", rec.Date, "error", err)
		return
	}
	stats.Published = true
}

func (s *PipelineService) updateRunState(ctx context.Context, stats *domain.RunStats) error {
	state, err := s.runState.Get(ctx, s.source.ID())
	if err != nil {
		return err
	}

	state.PipelineID = s.source.ID()
	state.LastRunAt = s.now()
	state.LastRecordDate = stats.Date
	if stats.New {
		state.TotalLoaded++
	}

	return s.runState.Update(ctx, state)
}

func (s *PipelineService) observeRun(stats *domain.RunStats, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	s.metrics.RunsTotal.WithLabelValues(status).Inc()
	s.metrics.RunDuration.Observe(stats.Duration.Seconds())
}

func (s *PipelineService) observeVersioning(step string, status domain.StepStatus) {
	if s.metrics == nil {
		return
	}
	s.metrics.VersioningTotal.WithLabelValues(step, string(status)).Inc()
}
