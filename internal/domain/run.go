package domain

import "time"

// StepStatus is the tri-state outcome of a single pipeline step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// RunStats holds per-step outcomes of a single pipeline run, following the
// stage order fetched -> transformed -> loaded(db) & loaded(csv) -> tracked
// -> committed. A failure at tracked/committed never unwinds the loads.
type RunStats struct {
	Date        string
	New         bool
	DBSink      StepStatus
	FileSink    StepStatus
	Tracked     StepStatus
	Committed   StepStatus
	Published   bool
	PointerPath string
	Duration    time.Duration
}

// RunState is the persisted run ledger, one row per pipeline.
type RunState struct {
	ID             int64     `db:"id"`
	PipelineID     string    `db:"pipeline_id"`
	LastRunAt      time.Time `db:"last_run_at"`
	LastRecordDate string    `db:"last_record_date"`
	TotalLoaded    int64     `db:"total_loaded"`
}
