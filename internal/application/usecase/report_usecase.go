package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// ReportUseCase renders the gold read contract on the console.
type ReportUseCase struct {
	reader     repository.GoldReader
	audit      repository.BronzeAuditRepository
	runs       repository.RunLogRepository
	bronzeRepo repository.BronzeRepository
	console    types.ConsoleInterface
}

// NewReportUseCase creates a new report use case.
func NewReportUseCase(
	reader repository.GoldReader,
	audit repository.BronzeAuditRepository,
	runs repository.RunLogRepository,
	bronzeRepo repository.BronzeRepository,
	console types.ConsoleInterface,
) *ReportUseCase {
	return &ReportUseCase{
		reader:     reader,
		audit:      audit,
		runs:       runs,
		bronzeRepo: bronzeRepo,
		console:    console,
	}
}

// ShowKPIs exibe os KPIs mensais e, opcionalmente, os KPIs por prédio.
func (uc *ReportUseCase) ShowKPIs(ctx context.Context, rng entity.PeriodRange, building string) error {
	kpis, err := uc.reader.PeriodKPIs(ctx, rng)
	if err != nil {
		return err
	}
	if len(kpis) == 0 {
		uc.console.LogWarning("No KPI rows yet. Run the pipeline first.")
		return nil
	}

	table := uc.console.CreateTable()
	for _, col := range []string{"Period", "Rent Base", "Collected", "A/R", "Occupancy %", "Excl. Own Use %", "Collection %", "Price/Area/Yr", "Expenses", "NOI", "NOI Basis"} {
		table.AddColumn(col)
	}
	for _, k := range kpis {
		table.AddRow(
			k.Period,
			money(k.RentBase),
			money(k.Collected),
			money(k.AccountsReceivable),
			pct(k.OccupancyPct),
			pct(k.OccupancyPctExclOwnUse),
			pct(k.CollectionRatePct),
			money(k.PricePerAreaYr),
			fmt.Sprintf("%.2f", k.TotalExpenses),
			money(k.NOIProxy),
			k.NOIBasis,
		)
	}
	uc.console.Println(table.Render())

	// Linhas sem despesas mostram NOI igual à arrecadação bruta.
	for _, k := range kpis {
		if k.HasMetrics && k.NOIBasis != entity.NOIBasisLessExpenses {
			uc.console.LogWarning("NOI for some periods equals gross collections (%s); expense lines were not used", k.NOIBasis)
			break
		}
	}

	buildings, err := uc.reader.BuildingKPIs(ctx, rng, building)
	if err != nil {
		return err
	}
	if len(buildings) == 0 {
		return nil
	}
	bt := uc.console.CreateTable()
	for _, col := range []string{"Period", "Building", "Suites", "Vacant", "Own Use", "Area", "Occupied", "Occupancy %", "Excl. Own Use %", "Rent/Month"} {
		bt.AddColumn(col)
	}
	for _, b := range buildings {
		bt.AddRow(b.Period, b.Building, b.SuiteCount, b.VacantCount, b.OwnUseCount,
			fmt.Sprintf("%.2f", b.TotalArea), fmt.Sprintf("%.2f", b.OccupiedArea),
			pct(b.OccupancyPct), pct(b.OccupancyPctExclOwnUse), fmt.Sprintf("%.2f", b.RentMonthly))
	}
	uc.console.Println(bt.Render())
	return nil
}

// ShowWindows exibe as janelas móveis de um tamanho.
func (uc *ReportUseCase) ShowWindows(ctx context.Context, size int, rng entity.PeriodRange) error {
	windows, err := uc.reader.RollingWindows(ctx, size, rng)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		uc.console.LogWarning("No %d-month windows in range", size)
		return nil
	}

	table := uc.console.CreateTable()
	for _, col := range []string{"End", "Start", "Periods", "Full", "Avg Occupancy %", "Avg Collection %", "Rent Base", "Collected", "A/R", "NOI"} {
		table.AddColumn(col)
	}
	for _, w := range windows {
		full := "yes"
		if w.IsPartial {
			full = fmt.Sprintf("partial (%d/%d)", w.PeriodCount, w.WindowSize)
		}
		table.AddRow(w.EndPeriod, w.StartPeriod, w.PeriodCount, full,
			pct(w.AvgOccupancyPct), pct(w.AvgCollectionRatePct),
			fmt.Sprintf("%.2f", w.TotalRentBase), fmt.Sprintf("%.2f", w.TotalCollected),
			fmt.Sprintf("%.2f", w.TotalReceivable), fmt.Sprintf("%.2f", w.TotalNOIProxy))
	}
	uc.console.Println(table.Render())
	return nil
}

// ShowTrend exibe a tendência de ocupação e arrecadação.
func (uc *ReportUseCase) ShowTrend(ctx context.Context, rng entity.PeriodRange) error {
	kpis, err := uc.reader.PeriodKPIs(ctx, rng)
	if err != nil {
		return err
	}
	var occupancy, collected []types.TrendPoint
	for _, k := range kpis {
		if k.OccupancyPct != nil {
			occupancy = append(occupancy, types.TrendPoint{Period: k.Period.String(), Value: *k.OccupancyPct})
		}
		if k.Collected != nil {
			collected = append(collected, types.TrendPoint{Period: k.Period.String(), Value: *k.Collected})
		}
	}
	if len(occupancy) == 0 && len(collected) == 0 {
		uc.console.LogWarning("No trend data available")
		return nil
	}
	uc.console.DisplayTrendBars("Occupancy %", occupancy)
	uc.console.DisplayTrendBars("Collected", collected)
	return nil
}

// ShowSuites lista as unidades atuais, ou as válidas em um período.
func (uc *ReportUseCase) ShowSuites(ctx context.Context, asOf entity.Period) error {
	var suites []entity.SuiteChangeRecord
	var err error
	if asOf.IsZero() {
		suites, err = uc.reader.CurrentSuites(ctx)
	} else {
		suites, err = uc.reader.SuitesAsOf(ctx, asOf)
	}
	if err != nil {
		return err
	}
	if len(suites) == 0 {
		uc.console.LogWarning("No suites found")
		return nil
	}
	uc.console.Println(uc.suiteTable(suites))
	return nil
}

// ShowSuiteHistory lista todas as versões de uma unidade.
func (uc *ReportUseCase) ShowSuiteHistory(ctx context.Context, suiteID string) error {
	versions, err := uc.reader.SuiteVersions(ctx, strings.ToUpper(strings.TrimSpace(suiteID)))
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		uc.console.LogWarning("Suite %s has no history", suiteID)
		return nil
	}
	uc.console.Println(uc.suiteTable(versions))
	return nil
}

func (uc *ReportUseCase) suiteTable(records []entity.SuiteChangeRecord) string {
	table := uc.console.CreateTable()
	for _, col := range []string{"Suite", "Ver", "Building", "Tenant", "Area", "Rent/Month", "Vacant", "Own Use", "Valid From", "Valid To", "Closed"} {
		table.AddColumn(col)
	}
	for _, r := range records {
		validTo := "current"
		if !r.ValidTo.IsZero() {
			validTo = r.ValidTo.String()
		}
		table.AddRow(r.SuiteID, r.Version, r.Building, r.Tenant, money(r.Area), money(r.RentMonthly),
			yesNo(r.IsVacant), yesNo(r.IsOwnUse), r.ValidFrom, validTo, r.ClosedReason)
	}
	return table.Render()
}

// ShowAudit exibe as linhas do bronze por partição e fingerprint.
func (uc *ReportUseCase) ShowAudit(ctx context.Context, kind entity.RecordKind) error {
	rows, err := uc.audit.BronzeAudit(ctx, uc.bronzeRepo.Root(), kind)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		uc.console.LogWarning("No bronze data for %s", kind)
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AsOfMonth != rows[j].AsOfMonth {
			return rows[i].AsOfMonth.Before(rows[j].AsOfMonth)
		}
		return rows[i].IngestedAt.Before(rows[j].IngestedAt)
	})

	table := uc.console.CreateTable()
	for _, col := range []string{"Period", "Fingerprint", "Rows", "Ingested At", "Quality", "Staged"} {
		table.AddColumn(col)
	}
	for _, r := range rows {
		fp := entity.BatchRef{Fingerprint: r.Fingerprint}.ShortFingerprint()
		table.AddRow(r.AsOfMonth, fp, r.RowCount, r.IngestedAt.Format("2006-01-02 15:04:05"), r.Status, yesNo(r.Staged))
	}
	uc.console.Println(table.Render())
	return nil
}

// ShowRuns lista as execuções recentes do pipeline.
func (uc *ReportUseCase) ShowRuns(ctx context.Context, limit int) error {
	runs, err := uc.runs.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		uc.console.LogInfo("No runs recorded yet")
		return nil
	}
	table := uc.console.CreateTable()
	for _, col := range []string{"Run", "Command", "Started", "Finished", "Status", "Detail"} {
		table.AddColumn(col)
	}
	for _, r := range runs {
		finished := ""
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		table.AddRow(truncate(r.RunID, 11), r.Command, r.StartedAt.Format("2006-01-02 15:04:05"), finished, r.Status, truncate(r.Detail, 60))
	}
	uc.console.Println(table.Render())
	return nil
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
