package usecase

import (
	"fmt"
	"testing"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goldOpts = GoldOptions{TotalPropertyArea: 9917, Windows: []int{3, 6, 9, 12}}

func metric(period string, rent, collected, leased float64) entity.MonthlyMetricRow {
	p := entity.MustParsePeriod(period)
	return entity.MonthlyMetricRow{
		Lineage:    entity.Lineage{AsOfMonth: p, Fingerprint: "fp" + period, IngestedAt: t0},
		Period:     p,
		RentBase:   entity.Float(rent),
		Collected:  entity.Float(collected),
		LeasedArea: entity.Float(leased),
	}
}

func kpiFor(t *testing.T, gold entity.GoldTables, period entity.Period) entity.PeriodKPI {
	t.Helper()
	for _, k := range gold.PeriodKPIs {
		if k.Period == period {
			return k
		}
	}
	t.Fatalf("no kpi row for %s", period)
	return entity.PeriodKPI{}
}

func TestBuildGold_QuarterScenario(t *testing.T) {
	in := GoldInput{Monthly: []entity.MonthlyMetricRow{
		metric("2025-01", 19130, 19130, 8240),
		metric("2025-02", 15036, 15036, 8820),
		metric("2025-03", 14880, 14880, 8820),
	}}
	gold := BuildGold(in, goldOpts, t0)

	require.Len(t, gold.PeriodKPIs, 3)
	wantOccupancy := []float64{83.09, 88.94, 88.94}
	for i, k := range gold.PeriodKPIs {
		assert.InDelta(t, wantOccupancy[i], *k.OccupancyPct, 0.01, k.Period.String())
		assert.Equal(t, 100.0, *k.CollectionRatePct)
		assert.Equal(t, entity.NOIBasisNoExpenses, k.NOIBasis)
		assert.Equal(t, *k.Collected, *k.NOIProxy)
	}
	assert.Equal(t, t0, gold.GeneratedAt)
}

func TestBuildGold_ZeroRentBaseCollectionRate(t *testing.T) {
	gold := BuildGold(GoldInput{Monthly: []entity.MonthlyMetricRow{metric("2025-01", 0, 0, 100)}}, goldOpts, t0)
	k := kpiFor(t, gold, "2025-01")
	require.NotNil(t, k.CollectionRatePct)
	assert.Equal(t, 0.0, *k.CollectionRatePct)
	assert.Equal(t, 0.0, *k.PricePerAreaYr)
	assert.Equal(t, 0.0, *k.NOIMarginPct)
}

func TestBuildGold_DerivedFigures(t *testing.T) {
	m := metric("2025-01", 12000, 9000, 8000)
	gold := BuildGold(GoldInput{Monthly: []entity.MonthlyMetricRow{m}}, goldOpts, t0)
	k := kpiFor(t, gold, "2025-01")
	assert.Equal(t, 3000.0, *k.AccountsReceivable)
	assert.Equal(t, 18.0, *k.PricePerAreaYr)
	assert.Equal(t, 75.0, *k.CollectionRatePct)

	m.Uncollected = entity.Float(2500)
	m.PricePerArea = entity.Float(21.5)
	gold = BuildGold(GoldInput{Monthly: []entity.MonthlyMetricRow{m}}, goldOpts, t0)
	k = kpiFor(t, gold, "2025-01")
	assert.Equal(t, 2500.0, *k.AccountsReceivable, "reported uncollected wins over the difference")
	assert.Equal(t, 21.5, *k.PricePerAreaYr)
}

func TestBuildGold_NOIBasis(t *testing.T) {
	expense := func(item, category string, amount float64) entity.ExpenseRow {
		return entity.ExpenseRow{
			Lineage:      entity.Lineage{AsOfMonth: "2025-01", Fingerprint: "exp", IngestedAt: t0},
			Period:       "2025-01",
			LineItem:     item,
			ActualAmount: entity.Float(amount),
			Category:     category,
		}
	}
	in := GoldInput{
		Monthly: []entity.MonthlyMetricRow{metric("2025-01", 10000, 10000, 8000)},
		Expenses: []entity.ExpenseRow{
			expense("Security", entity.ExpenseFixed, 1500),
			expense("Power", entity.ExpenseVariable, 500),
			expense("Legal", entity.ExpenseOther, 300),
		},
	}

	t.Run("expense aware", func(t *testing.T) {
		k := kpiFor(t, BuildGold(in, goldOpts, t0), "2025-01")
		assert.Equal(t, entity.NOIBasisLessExpenses, k.NOIBasis)
		assert.Equal(t, 8000.0, *k.NOIProxy, "other expenses stay out of NOI")
		assert.Equal(t, 80.0, *k.NOIMarginPct)
		assert.Equal(t, 2300.0, k.TotalExpenses)
	})

	t.Run("proto toggle", func(t *testing.T) {
		opts := goldOpts
		opts.ProtoNOI = true
		k := kpiFor(t, BuildGold(in, opts, t0), "2025-01")
		assert.Equal(t, entity.NOIBasisProto, k.NOIBasis)
		assert.Equal(t, 10000.0, *k.NOIProxy)
	})

	t.Run("expense facts", func(t *testing.T) {
		facts := BuildGold(in, goldOpts, t0).ExpenseFacts
		require.Len(t, facts, 3)
		assert.Equal(t, entity.ExpenseFixed, facts[0].Category)
		assert.Equal(t, 1500.0, facts[0].TotalAmount)
	})
}

func TestBuildGold_LatestPartitionWinsPerMonth(t *testing.T) {
	older := metric("2025-01", 100, 100, 100)
	newer := metric("2025-01", 100, 90, 100)
	newer.AsOfMonth = "2025-02"
	newer.Fingerprint = "later"

	gold := BuildGold(GoldInput{Monthly: []entity.MonthlyMetricRow{newer, older}}, goldOpts, t0)
	require.Len(t, gold.PeriodKPIs, 1)
	assert.Equal(t, 90.0, *kpiFor(t, gold, "2025-01").Collected)
}

func TestBuildGold_OwnUseExclusion(t *testing.T) {
	history := []entity.SuiteChangeRecord{
		{SuiteID: "A101", Building: "A", Area: entity.Float(917), ValidFrom: "2025-01", IsCurrent: true, SuiteAttributes: entity.SuiteAttributes{IsOwnUse: true}},
	}
	in := GoldInput{
		Monthly:      []entity.MonthlyMetricRow{metric("2025-01", 100, 100, 5917)},
		LeasePeriods: []entity.Period{"2025-01"},
		History:      history,
	}
	k := kpiFor(t, BuildGold(in, goldOpts, t0), "2025-01")
	assert.Equal(t, 59.67, *k.OccupancyPct)
	assert.Equal(t, 55.56, *k.OccupancyPctExclOwnUse)
	assert.True(t, k.HasLeases)
}

func TestRollingWindows_PartialWindow(t *testing.T) {
	in := GoldInput{Monthly: []entity.MonthlyMetricRow{
		metric("2025-01", 100, 100, 8000),
		metric("2025-02", 200, 100, 8000),
		metric("2025-03", 300, 300, 8000),
	}}
	gold := BuildGold(in, goldOpts, t0)

	var w12, w3 *entity.RollingWindow
	for i, w := range gold.Windows {
		if w.EndPeriod != "2025-03" {
			continue
		}
		switch w.WindowSize {
		case 12:
			w12 = &gold.Windows[i]
		case 3:
			w3 = &gold.Windows[i]
		}
	}
	require.NotNil(t, w12)
	assert.Equal(t, 3, w12.PeriodCount)
	assert.True(t, w12.IsPartial)
	assert.Equal(t, entity.Period("2025-01"), w12.StartPeriod)
	assert.Equal(t, 600.0, w12.TotalRentBase)
	assert.Equal(t, 83.33, *w12.AvgCollectionRatePct)

	require.NotNil(t, w3)
	assert.Equal(t, 3, w3.PeriodCount)
	assert.False(t, w3.IsPartial)
}

func TestRollingWindows_SlidesOverCalendarMonths(t *testing.T) {
	var kpis []entity.PeriodKPI
	for _, p := range []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-06"} {
		kpis = append(kpis, entity.PeriodKPI{Period: entity.MustParsePeriod(p), HasMetrics: true, RentBase: entity.Float(10)})
	}
	kpis = append(kpis, entity.PeriodKPI{Period: "2025-05"})

	windows := RollingWindows(kpis, []int{3}, false)
	require.Len(t, windows, 5, "months without figures get no window")

	got := map[entity.Period]entity.RollingWindow{}
	for _, w := range windows {
		got[w.EndPeriod] = w
	}
	assert.Equal(t, 3, got["2025-04"].PeriodCount)
	assert.Equal(t, entity.Period("2025-02"), got["2025-04"].StartPeriod)

	june := got["2025-06"]
	assert.Equal(t, 2, june.PeriodCount, "april and june fall inside (march, june]")
	assert.Equal(t, entity.Period("2025-04"), june.StartPeriod)
	assert.True(t, june.IsPartial)
	assert.Equal(t, 20.0, june.TotalRentBase)
}

func TestBuildingKPIs_RosterScenario(t *testing.T) {
	var history []entity.SuiteChangeRecord
	add := func(building string, n int, area float64, vacant, ownUse int) {
		for i := 0; i < n; i++ {
			history = append(history, entity.SuiteChangeRecord{
				SuiteID:   fmt.Sprintf("%s%02d", building, i+1),
				Building:  building,
				Area:      entity.Float(area / float64(n)),
				ValidFrom: "2025-01",
				IsCurrent: true,
				SuiteAttributes: entity.SuiteAttributes{
					Tenant:      "Tenant",
					RentMonthly: entity.Float(1000),
					IsVacant:    i < vacant,
					IsOwnUse:    i >= n-ownUse,
				},
			})
		}
	}
	add("A", 7, 5881, 1, 1)
	add("B", 12, 5170, 2, 0)

	rows := BuildingKPIs("2025-01", entity.SuitesAsOf(history, "2025-01"))
	require.Len(t, rows, 2)

	counts := map[string]int{}
	vacant, ownUse := 0, 0
	for _, r := range rows {
		counts[r.Building] = r.SuiteCount
		vacant += r.VacantCount
		ownUse += r.OwnUseCount
	}
	assert.Equal(t, map[string]int{"A": 7, "B": 12}, counts)
	assert.Equal(t, 3, vacant)
	assert.Equal(t, 1, ownUse)
	assert.InDelta(t, 5881, rows[0].TotalArea, 0.01)
	assert.Equal(t, 6000.0, rows[0].RentMonthly, "vacant suites carry no rent")
}

func TestBuildingKPIs_UnassignedBuilding(t *testing.T) {
	rows := BuildingKPIs("2025-01", []entity.SuiteChangeRecord{{SuiteID: "X1", Area: entity.Float(10)}})
	require.Len(t, rows, 1)
	assert.Equal(t, "UNASSIGNED", rows[0].Building)
	assert.Equal(t, 100.0, *rows[0].OccupancyPct)
}
