package entity

import "time"

// Run statuses recorded in the run log.
const (
	RunRunning           = "running"
	RunSucceeded         = "succeeded"
	RunFailed            = "failed"
	RunStructuralError   = "structural_error"
	RunQualityViolation  = "quality_violation"
	RunAmbiguousDeletion = "ambiguous_deletion"
)

// RunRecord is one orchestrated pipeline run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail"`
}

// StagedPartition is the winning batch currently merged into staging for
// one (kind, period).
type StagedPartition struct {
	BatchRef
	IngestedAt time.Time `json:"ingested_at"`
	RowCount   int       `json:"row_count"`
}

// StagingChanges lists the partitions a staging pass rewrote or removed.
type StagingChanges struct {
	Rewritten []StagedPartition
	Removed   []BatchRef
	Rebuilt   bool
}

// Touched reports whether the pass changed any partition of the kind.
func (c StagingChanges) Touched(kind RecordKind) bool {
	for _, p := range c.Rewritten {
		if p.Kind == kind {
			return true
		}
	}
	for _, r := range c.Removed {
		if r.Kind == kind {
			return true
		}
	}
	return c.Rebuilt
}

// SnapshotResult summarises one snapshotter pass.
type SnapshotResult struct {
	Replayed       bool
	AppliedPeriods []Period
	Opened         int
	Superseded     int
	Deleted        int
}

// RunSummary is what a full pipeline run reports back to its caller.
type RunSummary struct {
	RunID     string
	Ingested  []IngestResult
	Reports   []QualityReport
	Staging   StagingChanges
	Snapshot  SnapshotResult
	Gold      GoldTables
	Exported  []string
	Published []string
}
