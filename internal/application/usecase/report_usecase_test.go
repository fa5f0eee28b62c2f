package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/diillson/leasing-bi-pipeline/internal/application/usecase"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/diillson/leasing-bi-pipeline/pkg/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder guarda o que seria impresso no terminal.
type recorder struct {
	console.Silent
	out      strings.Builder
	warnings []string
	trends   map[string][]types.TrendPoint
}

func (r *recorder) Println(a ...interface{}) { fmt.Fprintln(&r.out, a...) }

func (r *recorder) LogWarning(format string, a ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, a...))
}

func (r *recorder) DisplayTrendBars(title string, points []types.TrendPoint) {
	if r.trends == nil {
		r.trends = map[string][]types.TrendPoint{}
	}
	r.trends[title] = points
}

func (h *harness) reports(rec *recorder) *usecase.ReportUseCase {
	return usecase.NewReportUseCase(h.wh, h.wh, h.wh, h.bronze, rec)
}

func TestReports_AfterQuarterRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.pipeline.Run(ctx, types.RunOptions{Sources: h.quarterSources(t)})
	require.NoError(t, err)

	rec := &recorder{}
	reports := h.reports(rec)

	require.NoError(t, reports.ShowKPIs(ctx, entity.PeriodRange{}, ""))
	out := rec.out.String()
	assert.Contains(t, out, "83.09%")
	assert.Contains(t, out, "88.94%")
	require.NotEmpty(t, rec.warnings, "Jan and Feb have no expense lines")
	assert.Contains(t, rec.warnings[0], entity.NOIBasisNoExpenses)

	rec.out.Reset()
	require.NoError(t, reports.ShowWindows(ctx, 12, entity.PeriodRange{}))
	assert.Contains(t, rec.out.String(), "partial (3/12)")

	require.NoError(t, reports.ShowTrend(ctx, entity.PeriodRange{From: "2025-02"}))
	assert.Len(t, rec.trends["Occupancy %"], 2)

	rec.out.Reset()
	require.NoError(t, reports.ShowSuiteHistory(ctx, " b201 "))
	assert.Contains(t, rec.out.String(), "Black Label Studio")

	rec.out.Reset()
	require.NoError(t, reports.ShowAudit(ctx, entity.KindMonthlyMetric))
	assert.Contains(t, rec.out.String(), "2025-02")

	rec.out.Reset()
	require.NoError(t, reports.ShowRuns(ctx, 5))
	assert.Contains(t, rec.out.String(), entity.RunSucceeded)
}

func TestReports_EmptyWarehouse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := &recorder{}
	reports := h.reports(rec)

	require.NoError(t, reports.ShowKPIs(ctx, entity.PeriodRange{}, ""))
	require.NoError(t, reports.ShowWindows(ctx, 3, entity.PeriodRange{}))
	require.NoError(t, reports.ShowSuites(ctx, ""))
	assert.Equal(t, []string{
		"No KPI rows yet. Run the pipeline first.",
		"No 3-month windows in range",
		"No suites found",
	}, rec.warnings)
	assert.Empty(t, rec.out.String())
}
