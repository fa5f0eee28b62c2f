package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/bronze"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/export"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/lockfile"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/source"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driven/warehouse"
	"github.com/diillson/leasing-bi-pipeline/internal/application/usecase"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/diillson/leasing-bi-pipeline/pkg/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	pipeline *usecase.PipelineUseCase
	wh       *warehouse.Warehouse
	bronze   *bronze.BronzeRepository
	cfg      *types.Config
	dir      string
	inbox    string
}

// newHarness monta o pipeline sobre os adaptadores reais em um diretório
// temporário, com relógio que avança um minuto por leitura.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := &types.Config{
		Warehouse: types.WarehouseConfig{Path: filepath.Join(dir, "warehouse.duckdb")},
		Bronze:    types.BronzeConfig{Root: filepath.Join(dir, "bronze")},
		Gold:      types.GoldConfig{Dir: filepath.Join(dir, "gold"), TotalPropertyArea: 9917, Windows: []int{3, 6, 9, 12}},
		Quality: types.QualityConfig{
			Buildings:         []string{"A", "B"},
			ExpenseCategories: []string{"fixed", "variable", "other"},
		},
		Source: types.SourceConfig{
			VacancyPatterns: []string{"vacante", "vacant", "disponible", "available"},
			OwnUsePatterns:  []string{"black label", "owner use", "uso propio", "101b"},
		},
		Lock: types.LockConfig{Path: filepath.Join(dir, ".leasing-bi.lock")},
	}

	logger := zap.NewNop()
	bronzeRepo, err := bronze.NewBronzeRepository(cfg.Bronze.Root, logger)
	require.NoError(t, err)
	wh, err := warehouse.Open(context.Background(), cfg.Warehouse.Path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wh.Close() })

	clock := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	pipeline := usecase.NewPipelineUseCase(
		source.NewSourceRepository(cfg.Source, cfg.Quality.Buildings, logger),
		bronzeRepo,
		wh,
		export.NewExportRepository(),
		nil,
		lockfile.New(cfg.Lock.Path),
		cfg,
		console.NewSilentConsole(),
		logger,
	).WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	return &harness{pipeline: pipeline, wh: wh, bronze: bronzeRepo, cfg: cfg, dir: dir, inbox: inbox}
}

func (h *harness) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func monthlyFile(period, month string, rent, collected, leased float64) string {
	return fmt.Sprintf(`as_of_month: "%s"
monthly:
  columns: [Month, Rent Base, Collected, Leased SqFt]
  rows:
    - [%s, %v, %v, %v]
`, period, month, rent, collected, leased)
}

// rosterFile descreve 19 unidades: 7 no prédio A e 12 no B, três vagas e
// uma de uso próprio.
func rosterFile(period string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "as_of_month: \"%s\"\nleases:\n  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]\n  rows:\n", period)
	for i := 1; i <= 7; i++ {
		tenant := fmt.Sprintf("Tenant A%d", i)
		if i == 7 {
			tenant = "Vacante"
		}
		fmt.Fprintf(&b, "    - [A1%02d, %s, 500, 1000, 12000]\n", i, tenant)
	}
	for i := 1; i <= 12; i++ {
		tenant := fmt.Sprintf("Tenant B%d", i)
		switch i {
		case 11, 12:
			tenant = "Vacante"
		case 1:
			tenant = "Black Label Studio"
		}
		fmt.Fprintf(&b, "    - [B2%02d, %s, 400, 800, 9600]\n", i, tenant)
	}
	b.WriteString("expenses:\n  columns: [Concepto, Real, Categoria]\n  rows:\n    - [Security, 1500, fixed]\n")
	return b.String()
}

func (h *harness) quarterSources(t *testing.T) []string {
	t.Helper()
	return []string{
		h.write(t, "dashboard_jan.yaml", monthlyFile("2025-01", "January", 19130, 19130, 8240)),
		h.write(t, "dashboard_feb.yaml", monthlyFile("2025-02", "February", 15036, 15036, 8820)),
		h.write(t, "dashboard_mar.yaml", monthlyFile("2025-03", "March", 14880, 14880, 8820)),
		h.write(t, "roster_mar.yaml", rosterFile("2025-03")),
	}
}

func kpisByPeriod(gold entity.GoldTables) map[entity.Period]entity.PeriodKPI {
	out := make(map[entity.Period]entity.PeriodKPI, len(gold.PeriodKPIs))
	for _, k := range gold.PeriodKPIs {
		out[k.Period] = k
	}
	return out
}

func TestPipeline_QuarterRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exportDir := filepath.Join(h.dir, "exports")

	summary, err := h.pipeline.Run(ctx, types.RunOptions{
		Sources:     h.quarterSources(t),
		ExportTypes: []string{"csv"},
		Dir:         exportDir,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	for _, res := range summary.Ingested {
		assert.Equal(t, entity.IngestWritten, res.Status, "%s %s", res.Kind, res.AsOfMonth)
	}

	gold, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	kpis := kpisByPeriod(gold)
	require.Len(t, kpis, 3)
	wantOccupancy := map[entity.Period]float64{"2025-01": 83.09, "2025-02": 88.94, "2025-03": 88.94}
	for p, want := range wantOccupancy {
		k := kpis[p]
		require.NotNil(t, k.OccupancyPct, p.String())
		assert.InDelta(t, want, *k.OccupancyPct, 0.01, p.String())
		assert.Equal(t, 100.0, *k.CollectionRatePct, p.String())
	}
	assert.Equal(t, entity.NOIBasisLessExpenses, kpis["2025-03"].NOIBasis)
	assert.Equal(t, entity.NOIBasisNoExpenses, kpis["2025-01"].NOIBasis)

	counts := map[string]entity.BuildingKPI{}
	vacant, ownUse := 0, 0
	for _, b := range gold.BuildingKPIs {
		assert.Equal(t, entity.Period("2025-03"), b.Period)
		counts[b.Building] = b
		vacant += b.VacantCount
		ownUse += b.OwnUseCount
	}
	assert.Equal(t, 7, counts["A"].SuiteCount)
	assert.Equal(t, 12, counts["B"].SuiteCount)
	assert.Equal(t, 3, vacant)
	assert.Equal(t, 1, ownUse)

	var twelve *entity.RollingWindow
	for i, w := range gold.Windows {
		if w.EndPeriod == "2025-03" && w.WindowSize == 12 {
			twelve = &gold.Windows[i]
		}
	}
	require.NotNil(t, twelve)
	assert.True(t, twelve.IsPartial)
	assert.Equal(t, 3, twelve.PeriodCount)
	assert.Equal(t, entity.Period("2025-01"), twelve.StartPeriod)

	assert.NotEmpty(t, summary.Exported)
	for _, f := range summary.Exported {
		assert.FileExists(t, f)
	}

	runs, err := h.wh.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entity.RunSucceeded, runs[0].Status)
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sources := h.quarterSources(t)

	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: sources})
	require.NoError(t, err)
	first, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	manifest, err := h.bronze.Manifest(ctx, entity.KindMonthlyMetric)
	require.NoError(t, err)

	summary, err := h.pipeline.Run(ctx, types.RunOptions{Sources: sources})
	require.NoError(t, err)
	for _, res := range summary.Ingested {
		assert.Equal(t, entity.IngestDuplicateSkipped, res.Status)
		assert.ErrorIs(t, types.IngestOutcome(res), types.ErrDuplicateIngestion)
	}
	assert.Empty(t, summary.Staging.Rewritten)

	second, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.PeriodKPIs, second.PeriodKPIs)
	assert.Equal(t, first.BuildingKPIs, second.BuildingKPIs)
	assert.Equal(t, first.Windows, second.Windows)

	again, err := h.bronze.Manifest(ctx, entity.KindMonthlyMetric)
	require.NoError(t, err)
	assert.Len(t, again, len(manifest), "no new bronze batches")
}

func TestPipeline_CorrectedFileWinsAndBronzeKeepsOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: h.quarterSources(t)})
	require.NoError(t, err)
	before, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)

	corrected := h.write(t, "dashboard_jan_v2.yaml", monthlyFile("2025-01", "January", 19130, 20000, 8240))
	summary, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{corrected}})
	require.NoError(t, err)
	require.Len(t, summary.Ingested, 1)
	assert.Equal(t, entity.IngestWritten, summary.Ingested[0].Status)
	require.Len(t, summary.Staging.Rewritten, 1)
	assert.Equal(t, entity.Period("2025-01"), summary.Staging.Rewritten[0].AsOfMonth)

	after, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	jan := kpisByPeriod(after)["2025-01"]
	assert.Equal(t, 20000.0, *jan.Collected)
	assert.InDelta(t, 104.55, *jan.CollectionRatePct, 0.01)

	// As demais competências não mudam.
	old := kpisByPeriod(before)
	for _, p := range []entity.Period{"2025-02", "2025-03"} {
		assert.Equal(t, old[p], kpisByPeriod(after)[p], p.String())
	}

	var jans []entity.ManifestEntry
	manifest, err := h.bronze.Manifest(ctx, entity.KindMonthlyMetric)
	require.NoError(t, err)
	for _, m := range manifest {
		if m.AsOfMonth == "2025-01" {
			jans = append(jans, m)
		}
	}
	require.Len(t, jans, 2, "bronze keeps both versions")
	assert.NotEqual(t, jans[0].Fingerprint, jans[1].Fingerprint)
	for _, m := range jans {
		assert.FileExists(t, filepath.Join(h.bronze.Root(), filepath.FromSlash(m.File)))
	}
}

func TestPipeline_QualityViolationHaltsRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := h.write(t, "roster_bad.yaml", `as_of_month: "2025-03"
leases:
  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]
  rows:
    - [A101, Acme LLC, 1200, -2400, 28800]
    - [A102, Beta Corp, 800, 1600, 19200]
`)
	summary, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{bad}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrQualityViolation), err.Error())

	var qv *types.QualityViolationError
	require.True(t, errors.As(err, &qv))
	require.Len(t, qv.Reports, 1)
	assert.Equal(t, entity.KindLease, qv.Reports[0].Kind)
	assert.FileExists(t, qv.Reports[0].ReportFile)
	assert.Empty(t, summary.Staging.Rewritten, "nothing reaches staging")

	gold, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	assert.Empty(t, gold.PeriodKPIs)

	runs, err := h.wh.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entity.RunQualityViolation, runs[0].Status)

	// Com override o lote segue para staging.
	require.NoError(t, h.pipeline.Override(ctx, types.OverrideRequest{
		Kind:        entity.KindLease,
		Period:      "2025-03",
		Fingerprint: qv.Reports[0].Fingerprint,
		Reason:      "rent sign fixed upstream next month",
	}))
	result, err := h.pipeline.Transform(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, result.Staging.Rewritten, 1)
	assert.Equal(t, 2, result.Snapshot.Opened)
}

func TestPipeline_RetryAfterQualityViolationStillHalts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := h.write(t, "roster_bad.yaml", `as_of_month: "2025-03"
leases:
  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]
  rows:
    - [A101, Acme LLC, 1200, -2400, 28800]
`)
	jan := h.write(t, "dashboard_jan.yaml", monthlyFile("2025-01", "January", 19130, 19130, 8240))

	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{bad, jan}})
	require.ErrorIs(t, err, types.ErrQualityViolation)

	summary, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{bad, jan}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrQualityViolation), err.Error())
	for _, res := range summary.Ingested {
		assert.Equal(t, entity.IngestDuplicateSkipped, res.Status)
	}
	var qv *types.QualityViolationError
	require.True(t, errors.As(err, &qv))
	require.Len(t, qv.Reports, 1)
	assert.Equal(t, entity.KindLease, qv.Reports[0].Kind)
	require.Len(t, qv.Reports[0].Violations, 1)
	assert.Equal(t, "rent_monthly", qv.Reports[0].Violations[0].Column)

	// transform isolado também recusa.
	_, err = h.pipeline.Transform(ctx, nil, false)
	assert.ErrorIs(t, err, types.ErrQualityViolation)

	runs, err := h.wh.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, entity.RunQualityViolation, r.Status)
	}
	gold, err := h.wh.LoadGold(ctx)
	require.NoError(t, err)
	assert.Empty(t, gold.PeriodKPIs)

	// Um arquivo corrigido para o mesmo período libera a execução.
	fixed := h.write(t, "roster_fixed.yaml", `as_of_month: "2025-03"
leases:
  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]
  rows:
    - [A101, Acme LLC, 1200, 2400, 28800]
`)
	_, err = h.pipeline.Run(ctx, types.RunOptions{Sources: []string{bad, jan, fixed}})
	require.NoError(t, err)
	suites, err := h.wh.CurrentSuites(ctx)
	require.NoError(t, err)
	require.Len(t, suites, 1)
	assert.Equal(t, 2400.0, *suites[0].RentMonthly)
}

func smallRoster(period string, rentA101 float64, suites ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "as_of_month: \"%s\"\nleases:\n  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]\n  rows:\n", period)
	fmt.Fprintf(&b, "    - [A101, Acme LLC, 1200, %v, %v]\n", rentA101, rentA101*12)
	for _, s := range suites {
		fmt.Fprintf(&b, "    - [%s, Tenant %s, 500, 1000, 12000]\n", s, s)
	}
	return b.String()
}

func TestPipeline_EmptyRosterNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{
		h.write(t, "roster_mar.yaml", smallRoster("2025-03", 2400, "A102", "B201")),
	}})
	require.NoError(t, err)

	empty := h.write(t, "roster_apr.yaml", "as_of_month: \"2025-04\"\nleases:\n  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]\n  rows: []\n")
	_, err = h.pipeline.Run(ctx, types.RunOptions{Sources: []string{empty}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAmbiguousDeletion), err.Error())

	runs, err := h.wh.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entity.RunAmbiguousDeletion, runs[0].Status)

	current, err := h.wh.CurrentSuites(ctx)
	require.NoError(t, err)
	assert.Len(t, current, 3, "history is untouched until the period is confirmed")

	result, err := h.pipeline.Transform(ctx, []entity.Period{"2025-04"}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Snapshot.Deleted)

	assertAllDeleted := func() {
		t.Helper()
		history, err := h.wh.SuiteHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 3)
		for _, r := range history {
			assert.Equal(t, entity.ClosedDeleted, r.ClosedReason, r.SuiteID)
			assert.Equal(t, entity.Period("2025-03"), r.ValidTo, r.SuiteID)
			assert.False(t, r.IsCurrent)
		}
		asOf, err := h.wh.SuitesAsOf(ctx, "2025-04")
		require.NoError(t, err)
		assert.Empty(t, asOf)
	}
	assertAllDeleted()

	// A confirmação persiste e vale também para um replay completo.
	result, err = h.pipeline.Transform(ctx, nil, true)
	require.NoError(t, err)
	assert.True(t, result.Snapshot.Replayed)
	assert.Equal(t, 3, result.Snapshot.Deleted)
	assertAllDeleted()
}

func TestPipeline_LateEarlierRosterReplaysHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{
		h.write(t, "roster_mar.yaml", smallRoster("2025-03", 2400, "A102")),
	}})
	require.NoError(t, err)

	summary, err := h.pipeline.Run(ctx, types.RunOptions{Sources: []string{
		h.write(t, "roster_feb.yaml", smallRoster("2025-02", 2200, "A102")),
	}})
	require.NoError(t, err)
	assert.True(t, summary.Snapshot.Replayed)
	assert.Equal(t, []entity.Period{"2025-02", "2025-03"}, summary.Snapshot.AppliedPeriods)

	versions, err := h.wh.SuiteVersions(ctx, "A101")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, entity.Period("2025-02"), versions[0].ValidFrom)
	assert.Equal(t, entity.Period("2025-02"), versions[0].ValidTo)
	assert.Equal(t, entity.ClosedSuperseded, versions[0].ClosedReason)
	assert.Equal(t, 2200.0, *versions[0].RentMonthly)
	assert.Equal(t, entity.Period("2025-03"), versions[1].ValidFrom)
	assert.True(t, versions[1].IsCurrent)
	assert.Equal(t, 2400.0, *versions[1].RentMonthly)

	unchanged, err := h.wh.SuiteVersions(ctx, "A102")
	require.NoError(t, err)
	require.Len(t, unchanged, 1)
	assert.Equal(t, entity.Period("2025-02"), unchanged[0].ValidFrom)
}

func TestPipeline_LockHeld(t *testing.T) {
	h := newHarness(t)
	release, err := lockfile.New(h.cfg.Lock.Path).Acquire("other-run")
	require.NoError(t, err)
	defer func() { _ = release() }()

	_, err = h.pipeline.Run(context.Background(), types.RunOptions{Sources: h.quarterSources(t)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrLockHeld), err.Error())
	assert.ErrorContains(t, err, "other-run")

	manifest, err := h.bronze.Manifest(context.Background(), entity.KindMonthlyMetric)
	require.NoError(t, err)
	assert.Empty(t, manifest, "nothing is written without the lock")
}

func TestPipeline_TransformRequiresValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	src := h.write(t, "dashboard_jan.yaml", monthlyFile("2025-01", "January", 100, 90, 50))
	_, err := h.pipeline.Ingest(ctx, []string{src}, "")
	require.NoError(t, err)

	_, err = h.pipeline.Transform(ctx, nil, false)
	assert.ErrorIs(t, err, types.ErrUnvalidatedBatches)
}
