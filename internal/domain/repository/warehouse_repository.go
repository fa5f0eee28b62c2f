package repository

import (
	"context"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// ClearanceRepository persists quality gate verdicts per bronze batch.
type ClearanceRepository interface {
	Clearances(ctx context.Context) ([]entity.BatchClearance, error)
	SaveClearance(ctx context.Context, clearance entity.BatchClearance, violations []entity.Violation) error
	Violations(ctx context.Context, ref entity.BatchRef) ([]entity.Violation, error)
}

// StagingRepository holds one incrementally maintained table per record kind.
type StagingRepository interface {
	StagedPartitions(ctx context.Context) ([]entity.StagedPartition, error)
	// ReplaceStagedPartition swaps a (kind, period) for the batch's rows in one transaction.
	ReplaceStagedPartition(ctx context.Context, batch entity.TypedBatch) error
	RemoveStagedPartition(ctx context.Context, ref entity.BatchRef) error
	ResetStaging(ctx context.Context) error

	StagedMonthlyMetrics(ctx context.Context) ([]entity.MonthlyMetricRow, error)
	StagedLeases(ctx context.Context) ([]entity.LeaseRow, error)
	StagedExpenses(ctx context.Context) ([]entity.ExpenseRow, error)
}

// SnapshotRepository owns the suite SCD table.
type SnapshotRepository interface {
	SuiteHistory(ctx context.Context) ([]entity.SuiteChangeRecord, error)
	ProcessedPartitions(ctx context.Context) ([]entity.ProcessedPartition, error)
	// ReplaceSuiteHistory rewrites the SCD table and its processed set atomically.
	ReplaceSuiteHistory(ctx context.Context, records []entity.SuiteChangeRecord, processed []entity.ProcessedPartition) error
	ConfirmedEmptyPeriods(ctx context.Context) ([]entity.Period, error)
	ConfirmEmptyPeriod(ctx context.Context, period entity.Period, note string) error
}

// GoldRepository owns the derived KPI tables.
type GoldRepository interface {
	ReplaceGold(ctx context.Context, gold entity.GoldTables) error
	LoadGold(ctx context.Context) (entity.GoldTables, error)
}

// GoldReader is the read contract exposed to dashboards and the API.
type GoldReader interface {
	PeriodKPIs(ctx context.Context, rng entity.PeriodRange) ([]entity.PeriodKPI, error)
	BuildingKPIs(ctx context.Context, rng entity.PeriodRange, building string) ([]entity.BuildingKPI, error)
	RollingWindows(ctx context.Context, size int, rng entity.PeriodRange) ([]entity.RollingWindow, error)
	CurrentSuites(ctx context.Context) ([]entity.SuiteChangeRecord, error)
	SuitesAsOf(ctx context.Context, period entity.Period) ([]entity.SuiteChangeRecord, error)
	SuiteVersions(ctx context.Context, suiteID string) ([]entity.SuiteChangeRecord, error)
	TableCounts(ctx context.Context) (map[string]int, error)
}

// RunLogRepository records orchestrated runs.
type RunLogRepository interface {
	StartRun(ctx context.Context, run entity.RunRecord) error
	FinishRun(ctx context.Context, run entity.RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]entity.RunRecord, error)
}

// BronzeAuditRepository queries bronze files directly through the hive read path.
type BronzeAuditRepository interface {
	BronzeAudit(ctx context.Context, bronzeRoot string, kind entity.RecordKind) ([]entity.BronzeAuditRow, error)
}

// Warehouse is the analytical store passed explicitly to every stage.
type Warehouse interface {
	ClearanceRepository
	StagingRepository
	SnapshotRepository
	GoldRepository
	GoldReader
	RunLogRepository
	BronzeAuditRepository
	Close() error
}
