package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineUseCase orchestrates the write path:
// extract -> bronze -> quality gate -> staging -> snapshot -> gold -> export.
type PipelineUseCase struct {
	sourceRepo  repository.SourceRepository
	bronzeRepo  repository.BronzeRepository
	warehouse   repository.Warehouse
	exportRepo  repository.ExportRepository
	objectStore repository.ObjectStoreRepository
	lockRepo    repository.RunLockRepository
	config      *types.Config
	console     types.ConsoleInterface
	logger      *zap.Logger
	gate        *QualityGate
	now         func() time.Time
}

// NewPipelineUseCase creates a new pipeline use case. objectStore may be nil
// when publishing is not configured.
func NewPipelineUseCase(
	sourceRepo repository.SourceRepository,
	bronzeRepo repository.BronzeRepository,
	warehouse repository.Warehouse,
	exportRepo repository.ExportRepository,
	objectStore repository.ObjectStoreRepository,
	lockRepo repository.RunLockRepository,
	config *types.Config,
	console types.ConsoleInterface,
	logger *zap.Logger,
) *PipelineUseCase {
	return &PipelineUseCase{
		sourceRepo:  sourceRepo,
		bronzeRepo:  bronzeRepo,
		warehouse:   warehouse,
		exportRepo:  exportRepo,
		objectStore: objectStore,
		lockRepo:    lockRepo,
		config:      config,
		console:     console,
		logger:      logger,
		gate:        NewQualityGate(config.Quality.Buildings, config.Quality.ExpenseCategories),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the pipeline clock; tests use it for stable timestamps.
func (uc *PipelineUseCase) WithClock(now func() time.Time) *PipelineUseCase {
	uc.now = now
	return uc
}

// Execute runs fn under the exclusive run lock and records it in the run log.
func (uc *PipelineUseCase) Execute(ctx context.Context, command string, fn func(ctx context.Context, runID string) error) error {
	runID := uuid.NewString()
	release, err := uc.lockRepo.Acquire(runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			uc.logger.Warn("failed to release run lock", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	logger := uc.logger.With(zap.String("run_id", runID), zap.String("command", command))
	run := entity.RunRecord{RunID: runID, Command: command, StartedAt: uc.now(), Status: entity.RunRunning}
	if err := uc.warehouse.StartRun(ctx, run); err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	logger.Info("run started")

	runErr := fn(ctx, runID)

	run.FinishedAt = uc.now()
	run.Status = RunStatusFor(runErr)
	if runErr != nil {
		run.Detail = runErr.Error()
	}
	if err := uc.warehouse.FinishRun(ctx, run); err != nil {
		logger.Error("failed to record run result", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("run failed", zap.String("status", run.Status), zap.Error(runErr))
	} else {
		logger.Info("run finished", zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	}
	return runErr
}

// RunStatusFor maps a terminal error to the run log status.
func RunStatusFor(err error) string {
	switch {
	case err == nil:
		return entity.RunSucceeded
	case errors.Is(err, types.ErrStructural):
		return entity.RunStructuralError
	case errors.Is(err, types.ErrQualityViolation):
		return entity.RunQualityViolation
	case errors.Is(err, types.ErrAmbiguousDeletion):
		return entity.RunAmbiguousDeletion
	}
	return entity.RunFailed
}

// Run executes the whole pipeline for the given sources.
func (uc *PipelineUseCase) Run(ctx context.Context, opts types.RunOptions) (entity.RunSummary, error) {
	var summary entity.RunSummary
	err := uc.Execute(ctx, "run", func(ctx context.Context, runID string) error {
		summary.RunID = runID

		ingested, err := uc.Ingest(ctx, opts.Sources, opts.AsOf)
		summary.Ingested = ingested
		if err != nil {
			return err
		}

		reports, err := uc.Validate(ctx, false)
		summary.Reports = reports
		if err != nil {
			return err
		}

		result, err := uc.Transform(ctx, opts.ConfirmEmpty, opts.Rebuild)
		summary.Staging = result.Staging
		summary.Snapshot = result.Snapshot
		summary.Gold = result.Gold
		if err != nil {
			return err
		}

		if len(opts.ExportTypes) > 0 {
			files, err := uc.Export(ctx, opts.ExportTypes, opts.ReportName, opts.Dir)
			summary.Exported = files
			if err != nil {
				return err
			}
		}

		if opts.Publish {
			uris, err := uc.Publish(ctx, opts.Dir)
			summary.Published = uris
			if err != nil {
				return err
			}
		}
		return nil
	})
	return summary, err
}

// Ingest extracts each source and appends its batches to bronze. Every
// batch of a file is decoded before anything is written, so a structural
// problem anywhere in the file leaves bronze untouched.
func (uc *PipelineUseCase) Ingest(ctx context.Context, sources []string, asOf entity.Period) ([]entity.IngestResult, error) {
	var results []entity.IngestResult
	for _, src := range sources {
		extraction, err := uc.sourceRepo.Extract(ctx, src, asOf)
		if err != nil {
			return results, fmt.Errorf("extracting %s: %w", src, err)
		}
		uc.logger.Info("source extracted",
			zap.String("source", extraction.SourceName),
			zap.String("period", extraction.AsOfMonth.String()),
			zap.String("fingerprint", extraction.Fingerprint),
			zap.Int("batches", len(extraction.Batches)))

		batches := make([]entity.TypedBatch, 0, len(extraction.Batches))
		for _, raw := range extraction.Batches {
			ref := entity.BatchRef{Kind: raw.Kind, AsOfMonth: extraction.AsOfMonth, Fingerprint: extraction.Fingerprint}
			batch, err := DecodeBatch(raw, ref, extraction.SourceName)
			if err != nil {
				return results, err
			}
			batches = append(batches, batch)
		}

		for _, batch := range batches {
			res, err := uc.IngestBatch(ctx, batch)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// IngestBatch is the bronze writer contract for one typed batch: skip when
// the (kind, period, fingerprint) is already recorded, append otherwise.
func (uc *PipelineUseCase) IngestBatch(ctx context.Context, batch entity.TypedBatch) (entity.IngestResult, error) {
	result := entity.IngestResult{BatchRef: batch.BatchRef}
	logger := uc.logger.With(
		zap.String("kind", string(batch.Kind)),
		zap.String("period", batch.AsOfMonth.String()),
		zap.String("fingerprint", batch.ShortFingerprint()))

	existing, found, err := uc.bronzeRepo.Lookup(ctx, batch.BatchRef)
	if err != nil {
		return result, fmt.Errorf("checking manifest: %w", err)
	}
	if found {
		result.Status = entity.IngestDuplicateSkipped
		result.RowCount = existing.RowCount
		result.File = existing.File
		result.PreviouslyAt = existing.IngestedAt
		logger.Info("duplicate ingestion skipped", zap.Int("rows", existing.RowCount), zap.Time("ingested_at", existing.IngestedAt),
			zap.NamedError("reason", types.IngestOutcome(result)))
		uc.console.LogInfo("%s %s already ingested (%d rows), skipped", batch.Kind, batch.AsOfMonth, existing.RowCount)
		return result, nil
	}

	periods, err := uc.bronzeRepo.PeriodsWithFingerprint(ctx, batch.Kind, batch.Fingerprint)
	if err != nil {
		return result, fmt.Errorf("checking manifest: %w", err)
	}
	for _, p := range periods {
		if p != batch.AsOfMonth {
			result.OtherPeriods = append(result.OtherPeriods, p)
		}
	}
	if len(result.OtherPeriods) > 0 {
		if uc.config.Ingest.StrictCrossPeriod {
			return result, fmt.Errorf("%w: %s %s also in %v", types.ErrCrossPeriodDuplicate, batch.Kind, batch.AsOfMonth, result.OtherPeriods)
		}
		logger.Warn("file content already ingested into other periods", zap.Any("other_periods", result.OtherPeriods))
		uc.console.LogWarning("%s content for %s was already ingested into %v", batch.Kind, batch.AsOfMonth, result.OtherPeriods)
	}

	batch.IngestedAt = uc.now()
	batch.Stamp()
	entry, err := uc.bronzeRepo.Append(ctx, batch)
	if err != nil {
		return result, fmt.Errorf("writing bronze %s %s: %w", batch.Kind, batch.AsOfMonth, err)
	}

	result.Status = entity.IngestWritten
	result.RowCount = entry.RowCount
	result.File = entry.File
	logger.Info("bronze batch written", zap.Int("rows", entry.RowCount), zap.String("file", entry.File))
	uc.console.LogSuccess("%s %s: %d rows written to bronze", batch.Kind, batch.AsOfMonth, entry.RowCount)
	return result, nil
}

// Validate runs the quality gate over pending batches, or over every batch
// when all is set. Overridden batches keep their verdict. The run halts with
// *types.QualityViolationError while any rejected batch, new or from an
// earlier run, is not superseded by a later cleared batch or overridden.
func (uc *PipelineUseCase) Validate(ctx context.Context, all bool) ([]entity.QualityReport, error) {
	clearances, err := uc.warehouse.Clearances(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clearances: %w", err)
	}
	idx := NewClearanceIndex(clearances)

	var reports []entity.QualityReport
	var manifest []entity.ManifestEntry
	fresh := make(map[entity.BatchRef]entity.QualityReport)
	for _, kind := range entity.AllKinds {
		entries, err := uc.bronzeRepo.Manifest(ctx, kind)
		if err != nil {
			return reports, fmt.Errorf("reading %s manifest: %w", kind, err)
		}
		manifest = append(manifest, entries...)
		for _, entry := range entries {
			status := idx.Status(entry.BatchRef)
			if status == entity.ClearanceOverridden || (!all && status != entity.ClearancePending) {
				continue
			}

			batch, err := uc.bronzeRepo.Read(ctx, entry)
			if err != nil {
				return reports, fmt.Errorf("reading bronze batch: %w", err)
			}
			report := uc.gate.Validate(batch, uc.now())

			clearance := entity.BatchClearance{
				BatchRef:       entry.BatchRef,
				Status:         entity.ClearanceCleared,
				CheckedAt:      report.CheckedAt,
				ViolationCount: len(report.Violations),
			}
			if !report.Passed() {
				clearance.Status = entity.ClearanceRejected
				if report.ReportFile, err = uc.bronzeRepo.WriteViolationReport(ctx, report); err != nil {
					return reports, fmt.Errorf("writing violation report: %w", err)
				}
				uc.logViolations(report)
				fresh[entry.BatchRef] = report
			}
			if err := uc.warehouse.SaveClearance(ctx, clearance, report.Violations); err != nil {
				return reports, fmt.Errorf("saving clearance: %w", err)
			}
			idx[entry.BatchRef] = clearance
			reports = append(reports, report)
		}
	}

	if err := uc.rejectionsError(ctx, manifest, idx, fresh); err != nil {
		return reports, err
	}
	if len(reports) > 0 {
		uc.console.LogSuccess("%d batches cleared the quality gate", len(reports))
	}
	return reports, nil
}

// rejectionsError devolve o erro de parada para lotes rejeitados ainda sem
// correção nem override. Lotes verificados agora usam o relatório recém
// gerado; os demais são remontados a partir das violações persistidas.
func (uc *PipelineUseCase) rejectionsError(ctx context.Context, manifest []entity.ManifestEntry, idx ClearanceIndex, fresh map[entity.BatchRef]entity.QualityReport) error {
	var rejected []entity.QualityReport
	for _, entry := range UnresolvedRejections(manifest, idx) {
		if report, ok := fresh[entry.BatchRef]; ok {
			rejected = append(rejected, report)
			continue
		}
		violations, err := uc.warehouse.Violations(ctx, entry.BatchRef)
		if err != nil {
			return fmt.Errorf("loading violations: %w", err)
		}
		uc.logger.Warn("batch is still rejected",
			zap.String("kind", string(entry.Kind)),
			zap.String("period", entry.AsOfMonth.String()),
			zap.String("fingerprint", entry.ShortFingerprint()),
			zap.Int("violations", len(violations)))
		uc.console.LogError("%s %s [%s] is still rejected with %d violations; fix the source or override it",
			entry.Kind, entry.AsOfMonth, entry.ShortFingerprint(), len(violations))
		rejected = append(rejected, entity.QualityReport{
			BatchRef:   entry.BatchRef,
			RowCount:   entry.RowCount,
			CheckedAt:  idx[entry.BatchRef].CheckedAt,
			Violations: violations,
		})
	}
	if len(rejected) > 0 {
		return &types.QualityViolationError{Reports: rejected}
	}
	return nil
}

func (uc *PipelineUseCase) logViolations(report entity.QualityReport) {
	for _, v := range report.Violations {
		uc.logger.Warn("quality violation",
			zap.String("kind", string(report.Kind)),
			zap.String("period", report.AsOfMonth.String()),
			zap.String("fingerprint", report.ShortFingerprint()),
			zap.Int("row", v.RowIndex),
			zap.String("row_key", v.RowKey),
			zap.String("rule", v.Rule),
			zap.String("column", v.Column),
			zap.String("observed", v.Observed))
	}
	uc.console.LogError("%s %s [%s]: %d quality violations, report at %s",
		report.Kind, report.AsOfMonth, report.ShortFingerprint(), len(report.Violations), report.ReportFile)
}

// Override marks a rejected batch as overridden so staging may use it.
func (uc *PipelineUseCase) Override(ctx context.Context, req types.OverrideRequest) error {
	if strings.TrimSpace(req.Reason) == "" {
		return errors.New("an override needs a reason")
	}
	ref := entity.BatchRef{Kind: req.Kind, AsOfMonth: req.Period, Fingerprint: req.Fingerprint}

	clearances, err := uc.warehouse.Clearances(ctx)
	if err != nil {
		return fmt.Errorf("loading clearances: %w", err)
	}
	current, ok := NewClearanceIndex(clearances)[ref]
	if !ok {
		if _, found, err := uc.bronzeRepo.Lookup(ctx, ref); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: %s %s %s", types.ErrBatchNotFound, req.Kind, req.Period, req.Fingerprint)
		}
		return fmt.Errorf("batch %s %s has not been validated yet", req.Kind, req.Period)
	}
	if current.Status != entity.ClearanceRejected {
		return fmt.Errorf("batch %s %s is %s; only rejected batches can be overridden", req.Kind, req.Period, current.Status)
	}

	violations, err := uc.warehouse.Violations(ctx, ref)
	if err != nil {
		return fmt.Errorf("loading violations: %w", err)
	}
	current.Status = entity.ClearanceOverridden
	current.OverrideReason = req.Reason
	current.CheckedAt = uc.now()
	if err := uc.warehouse.SaveClearance(ctx, current, violations); err != nil {
		return fmt.Errorf("saving override: %w", err)
	}

	uc.logger.Warn("quality gate overridden",
		zap.String("kind", string(ref.Kind)),
		zap.String("period", ref.AsOfMonth.String()),
		zap.String("fingerprint", ref.Fingerprint),
		zap.Int("violations", len(violations)),
		zap.String("reason", req.Reason))
	uc.console.LogWarning("%s %s [%s] overridden with %d violations: %s", ref.Kind, ref.AsOfMonth, ref.ShortFingerprint(), len(violations), req.Reason)
	return nil
}

// TransformResult is what one staging/snapshot/gold pass produced.
type TransformResult struct {
	Staging  entity.StagingChanges
	Snapshot entity.SnapshotResult
	Gold     entity.GoldTables
}

// Transform brings staging, the suite history and gold up to date with the
// cleared bronze batches. Each stage commits before the next reads it.
func (uc *PipelineUseCase) Transform(ctx context.Context, confirmEmpty []entity.Period, rebuild bool) (TransformResult, error) {
	var result TransformResult

	for _, p := range confirmEmpty {
		if err := uc.warehouse.ConfirmEmptyPeriod(ctx, p, "confirmed by operator"); err != nil {
			return result, fmt.Errorf("confirming empty period %s: %w", p, err)
		}
		uc.logger.Warn("empty lease period confirmed", zap.String("period", p.String()))
	}

	staging, err := uc.stage(ctx, rebuild)
	result.Staging = staging
	if err != nil {
		return result, err
	}

	snapshot, history, err := uc.snapshot(ctx, rebuild)
	result.Snapshot = snapshot
	if err != nil {
		return result, err
	}

	gold, err := uc.buildGold(ctx, history)
	result.Gold = gold
	return result, err
}

func (uc *PipelineUseCase) stage(ctx context.Context, rebuild bool) (entity.StagingChanges, error) {
	var changes entity.StagingChanges

	clearances, err := uc.warehouse.Clearances(ctx)
	if err != nil {
		return changes, fmt.Errorf("loading clearances: %w", err)
	}
	idx := NewClearanceIndex(clearances)

	var manifest []entity.ManifestEntry
	for _, kind := range entity.AllKinds {
		entries, err := uc.bronzeRepo.Manifest(ctx, kind)
		if err != nil {
			return changes, fmt.Errorf("reading %s manifest: %w", kind, err)
		}
		manifest = append(manifest, entries...)
	}
	if pending := PendingBatches(manifest, idx); len(pending) > 0 {
		return changes, fmt.Errorf("%w (%d pending)", types.ErrUnvalidatedBatches, len(pending))
	}
	if err := uc.rejectionsError(ctx, manifest, idx, nil); err != nil {
		return changes, err
	}

	staged, err := uc.warehouse.StagedPartitions(ctx)
	if err != nil {
		return changes, fmt.Errorf("loading staging state: %w", err)
	}
	plan := PlanStaging(SelectWinners(manifest, idx), staged, rebuild)
	if plan.Empty() {
		uc.logger.Info("staging is current")
		return changes, nil
	}

	// Rebuild descarta o estado e recalcula tudo a partir do bronze.
	if plan.Rebuild {
		if err := uc.warehouse.ResetStaging(ctx); err != nil {
			return changes, fmt.Errorf("resetting staging: %w", err)
		}
		changes.Rebuilt = true
	}

	for _, entry := range plan.Upserts {
		batch, err := uc.bronzeRepo.Read(ctx, entry)
		if err != nil {
			return changes, fmt.Errorf("reading bronze batch: %w", err)
		}
		if err := uc.warehouse.ReplaceStagedPartition(ctx, CleanBatch(batch)); err != nil {
			return changes, fmt.Errorf("staging %s %s: %w", entry.Kind, entry.AsOfMonth, err)
		}
		changes.Rewritten = append(changes.Rewritten, entity.StagedPartition{
			BatchRef:   entry.BatchRef,
			IngestedAt: entry.IngestedAt,
			RowCount:   entry.RowCount,
		})
		uc.logger.Info("staged partition",
			zap.String("kind", string(entry.Kind)),
			zap.String("period", entry.AsOfMonth.String()),
			zap.String("fingerprint", entry.ShortFingerprint()),
			zap.Int("rows", entry.RowCount))
	}
	for _, ref := range plan.Removals {
		if err := uc.warehouse.RemoveStagedPartition(ctx, ref); err != nil {
			return changes, fmt.Errorf("unstaging %s %s: %w", ref.Kind, ref.AsOfMonth, err)
		}
		changes.Removed = append(changes.Removed, ref)
		uc.logger.Info("removed staged partition", zap.String("kind", string(ref.Kind)), zap.String("period", ref.AsOfMonth.String()))
	}
	return changes, nil
}

func (uc *PipelineUseCase) snapshot(ctx context.Context, forceReplay bool) (entity.SnapshotResult, []entity.SuiteChangeRecord, error) {
	var result entity.SnapshotResult

	staged, err := uc.warehouse.StagedPartitions(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("loading staging state: %w", err)
	}
	processed, err := uc.warehouse.ProcessedPartitions(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("loading snapshot state: %w", err)
	}
	history, err := uc.warehouse.SuiteHistory(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("loading suite history: %w", err)
	}

	plan := PlanSnapshot(staged, processed, forceReplay)
	if !plan.Replay && len(plan.Pending) == 0 {
		return result, history, nil
	}

	confirmed, err := uc.warehouse.ConfirmedEmptyPeriods(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("loading confirmations: %w", err)
	}
	leases, err := uc.warehouse.StagedLeases(ctx)
	if err != nil {
		return result, nil, fmt.Errorf("loading staged leases: %w", err)
	}
	byPeriod := make(map[entity.Period][]entity.LeaseRow)
	for _, l := range leases {
		byPeriod[l.AsOfMonth] = append(byPeriod[l.AsOfMonth], l)
	}
	for _, rows := range byPeriod {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].SuiteID < rows[j].SuiteID })
	}

	var tracker *SuiteTracker
	var applied []entity.ProcessedPartition
	if plan.Replay {
		tracker = NewSuiteTracker(nil, "", confirmed)
		result.Replayed = true
		uc.logger.Info("replaying suite history", zap.Int("periods", len(plan.Pending)))
	} else {
		tracker = NewSuiteTracker(history, LastProcessed(processed), confirmed)
		applied = append(applied, processed...)
	}

	for _, p := range plan.Pending {
		res, err := tracker.Apply(p.AsOfMonth, byPeriod[p.AsOfMonth], p.Fingerprint)
		if err != nil {
			return result, nil, err
		}
		result.AppliedPeriods = append(result.AppliedPeriods, p.AsOfMonth)
		result.Opened += res.Opened
		result.Superseded += res.Superseded
		result.Deleted += res.Deleted
		applied = append(applied, entity.ProcessedPartition{AsOfMonth: p.AsOfMonth, Fingerprint: p.Fingerprint})
	}

	records := tracker.Records()
	if err := uc.warehouse.ReplaceSuiteHistory(ctx, records, applied); err != nil {
		return result, nil, fmt.Errorf("saving suite history: %w", err)
	}
	uc.logger.Info("suite history updated",
		zap.Bool("replayed", result.Replayed),
		zap.Int("periods", len(result.AppliedPeriods)),
		zap.Int("opened", result.Opened),
		zap.Int("superseded", result.Superseded),
		zap.Int("deleted", result.Deleted))
	return result, records, nil
}

func (uc *PipelineUseCase) buildGold(ctx context.Context, history []entity.SuiteChangeRecord) (entity.GoldTables, error) {
	monthly, err := uc.warehouse.StagedMonthlyMetrics(ctx)
	if err != nil {
		return entity.GoldTables{}, fmt.Errorf("loading staged metrics: %w", err)
	}
	expenses, err := uc.warehouse.StagedExpenses(ctx)
	if err != nil {
		return entity.GoldTables{}, fmt.Errorf("loading staged expenses: %w", err)
	}
	staged, err := uc.warehouse.StagedPartitions(ctx)
	if err != nil {
		return entity.GoldTables{}, fmt.Errorf("loading staging state: %w", err)
	}
	var leasePeriods []entity.Period
	for _, s := range staged {
		if s.Kind == entity.KindLease {
			leasePeriods = append(leasePeriods, s.AsOfMonth)
		}
	}

	gold := BuildGold(GoldInput{
		Monthly:      monthly,
		Expenses:     expenses,
		LeasePeriods: leasePeriods,
		History:      history,
	}, GoldOptions{
		TotalPropertyArea: uc.config.Gold.TotalPropertyArea,
		ExcludeOwnUse:     uc.config.Gold.ExcludeOwnUse,
		ProtoNOI:          uc.config.Gold.ProtoNOI,
		Windows:           uc.config.Gold.Windows,
	}, uc.now())

	if err := uc.warehouse.ReplaceGold(ctx, gold); err != nil {
		return gold, fmt.Errorf("saving gold tables: %w", err)
	}
	uc.logger.Info("gold rebuilt",
		zap.Int("periods", len(gold.PeriodKPIs)),
		zap.Int("building_rows", len(gold.BuildingKPIs)),
		zap.Int("windows", len(gold.Windows)))
	uc.console.LogSuccess("Gold rebuilt: %d periods, %d building rows, %d windows",
		len(gold.PeriodKPIs), len(gold.BuildingKPIs), len(gold.Windows))
	return gold, nil
}

// Export writes the gold tables in each requested format.
func (uc *PipelineUseCase) Export(ctx context.Context, formats []string, name, dir string) ([]string, error) {
	if dir == "" {
		dir = uc.config.Gold.Dir
	}
	if name == "" {
		name = "leasing_kpis"
	}
	gold, err := uc.warehouse.LoadGold(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading gold tables: %w", err)
	}

	var files []string
	var errs []error
	for _, format := range formats {
		var written []string
		var err error
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "csv":
			written, err = uc.exportRepo.ExportToCSV(gold, dir)
		case "json":
			var f string
			f, err = uc.exportRepo.ExportToJSON(gold, name, dir)
			written = []string{f}
		case "parquet":
			written, err = uc.exportRepo.ExportToParquet(gold, dir)
		case "pdf":
			var f string
			f, err = uc.exportRepo.ExportToPDF(gold, name, dir)
			written = []string{f}
		default:
			err = fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			uc.console.LogError("Failed to export %s: %s", format, err)
			errs = append(errs, err)
			continue
		}
		for _, f := range written {
			uc.console.LogSuccess("Exported %s", f)
		}
		uc.logger.Info("gold exported", zap.String("format", format), zap.Strings("files", written))
		files = append(files, written...)
	}
	return files, errors.Join(errs...)
}

// Publish uploads the export directory (and bronze when configured) to
// object storage under the configured prefix.
func (uc *PipelineUseCase) Publish(ctx context.Context, dir string) ([]string, error) {
	if uc.objectStore == nil {
		return nil, errors.New("publishing is disabled: set publish.bucket")
	}
	if dir == "" {
		dir = uc.config.Gold.Dir
	}

	identity, err := uc.objectStore.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving publish credentials: %w", err)
	}
	uc.logger.Info("publishing exports", zap.String("identity", identity), zap.String("bucket", uc.config.Publish.Bucket))

	uris, err := uc.uploadTree(ctx, dir, uc.config.Publish.Prefix)
	if err != nil {
		return uris, err
	}
	if uc.config.Publish.IncludeBronze {
		more, err := uc.uploadTree(ctx, uc.bronzeRepo.Root(), path.Join(uc.config.Publish.Prefix, "bronze"))
		uris = append(uris, more...)
		if err != nil {
			return uris, err
		}
	}
	uc.console.LogSuccess("Published %d files to s3://%s/%s", len(uris), uc.config.Publish.Bucket, uc.config.Publish.Prefix)
	return uris, nil
}

func (uc *PipelineUseCase) uploadTree(ctx context.Context, root, prefix string) ([]string, error) {
	var uris []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		uri, err := uc.objectStore.Upload(ctx, p, path.Join(prefix, filepath.ToSlash(rel)))
		if err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}
		uc.logger.Debug("uploaded", zap.String("file", p), zap.String("uri", uri))
		uris = append(uris, uri)
		return nil
	})
	return uris, err
}

// Unlock clears the lock files of a crashed run. It fails with
// types.ErrLockHeld while another run is live.
func (uc *PipelineUseCase) Unlock() error {
	if err := uc.lockRepo.ForceRelease(); err != nil {
		return err
	}
	uc.logger.Warn("crashed run lock cleared")
	return nil
}
