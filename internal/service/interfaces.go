package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"apod_pipeline/internal/domain"
	"apod_pipeline/internal/source/apod"
	"apod_pipeline/internal/versioning"
)

type RecordStore interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, rec *domain.Record) (int64, error)
	Exists(ctx context.Context, date string) (bool, error)
}

type FileStore interface {
	Write(ctx context.Context, rec *domain.Record) (bool, error)
	Path() string
}

type RunStateStore interface {
	Get(ctx context.Context, pipelineID string) (*domain.RunState, error)
	Update(ctx context.Context, state *domain.RunState) error
}

type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, date string) (*apod.APIResponse, error)
}

type Tracker interface {
	Track(ctx context.Context, filePath string) (string, error)
}

type Committer interface {
	CommitPointer(ctx context.Context, pointerPath string) (versioning.Outcome, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, rec *domain.Record, isNew bool) error
	Close() error
}
