package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// GoldInput is everything gold is derived from: staging plus SCD state.
type GoldInput struct {
	Monthly      []entity.MonthlyMetricRow
	Expenses     []entity.ExpenseRow
	LeasePeriods []entity.Period
	History      []entity.SuiteChangeRecord
}

// GoldOptions carries the KPI toggles.
type GoldOptions struct {
	TotalPropertyArea float64
	ExcludeOwnUse     bool
	ProtoNOI          bool
	Windows           []int
}

// BuildGold recomputes every gold table from scratch. It is a pure function
// of its input; nothing in gold is carried over between runs.
func BuildGold(in GoldInput, opts GoldOptions, now time.Time) entity.GoldTables {
	monthly := LatestMonthlyByPeriod(in.Monthly)
	expenses := LatestExpensesByPeriod(in.Expenses)

	leasePeriods := make(map[entity.Period]bool, len(in.LeasePeriods))
	periodSet := make(map[entity.Period]bool)
	for _, p := range in.LeasePeriods {
		leasePeriods[p] = true
		periodSet[p] = true
	}
	for p := range monthly {
		periodSet[p] = true
	}
	for p := range expenses {
		periodSet[p] = true
	}
	periods := sortedPeriods(periodSet)

	gold := entity.GoldTables{GeneratedAt: now}
	for _, p := range periods {
		row, hasMetrics := monthly[p]
		suites := entity.SuitesAsOf(in.History, p)
		kpi := periodKPI(p, row, hasMetrics, expenses[p], suites, opts)
		kpi.HasLeases = leasePeriods[p]
		gold.PeriodKPIs = append(gold.PeriodKPIs, kpi)
		gold.ExpenseFacts = append(gold.ExpenseFacts, expenseFacts(p, expenses[p])...)
		if leasePeriods[p] {
			gold.BuildingKPIs = append(gold.BuildingKPIs, BuildingKPIs(p, suites)...)
		}
	}
	gold.Windows = RollingWindows(gold.PeriodKPIs, opts.Windows, opts.ExcludeOwnUse)
	return gold
}

// LatestMonthlyByPeriod keeps one figure row per month: the one from the
// latest as-of partition, then the latest ingestion.
func LatestMonthlyByPeriod(rows []entity.MonthlyMetricRow) map[entity.Period]entity.MonthlyMetricRow {
	out := make(map[entity.Period]entity.MonthlyMetricRow, len(rows))
	for _, r := range rows {
		cur, ok := out[r.Period]
		if !ok || newerLineage(r.Lineage, cur.Lineage) {
			out[r.Period] = r
		}
	}
	return out
}

// LatestExpensesByPeriod keeps, per month, every line of the latest as-of
// partition reporting that month.
func LatestExpensesByPeriod(rows []entity.ExpenseRow) map[entity.Period][]entity.ExpenseRow {
	best := make(map[entity.Period]entity.Lineage)
	for _, r := range rows {
		cur, ok := best[r.Period]
		if !ok || newerLineage(r.Lineage, cur) {
			best[r.Period] = r.Lineage
		}
	}
	out := make(map[entity.Period][]entity.ExpenseRow, len(best))
	for _, r := range rows {
		if b := best[r.Period]; r.AsOfMonth == b.AsOfMonth && r.Fingerprint == b.Fingerprint {
			out[r.Period] = append(out[r.Period], r)
		}
	}
	return out
}

func newerLineage(a, b entity.Lineage) bool {
	if a.AsOfMonth != b.AsOfMonth {
		return a.AsOfMonth.After(b.AsOfMonth)
	}
	if !a.IngestedAt.Equal(b.IngestedAt) {
		return a.IngestedAt.After(b.IngestedAt)
	}
	return a.Fingerprint > b.Fingerprint
}

func periodKPI(p entity.Period, m entity.MonthlyMetricRow, hasMetrics bool, lines []entity.ExpenseRow, suites []entity.SuiteChangeRecord, opts GoldOptions) entity.PeriodKPI {
	kpi := entity.PeriodKPI{Period: p, TotalArea: opts.TotalPropertyArea, HasMetrics: hasMetrics}

	for _, l := range lines {
		if l.ActualAmount == nil {
			continue
		}
		switch strings.ToLower(l.Category) {
		case entity.ExpenseFixed:
			kpi.FixedExpenses += *l.ActualAmount
		case entity.ExpenseVariable:
			kpi.VariableExpenses += *l.ActualAmount
		default:
			kpi.OtherExpenses += *l.ActualAmount
		}
	}
	kpi.FixedExpenses = round2(kpi.FixedExpenses)
	kpi.VariableExpenses = round2(kpi.VariableExpenses)
	kpi.OtherExpenses = round2(kpi.OtherExpenses)
	kpi.TotalExpenses = round2(kpi.FixedExpenses + kpi.VariableExpenses + kpi.OtherExpenses)

	if !hasMetrics {
		kpi.NOIBasis = noiBasis(len(lines) > 0, opts.ProtoNOI)
		return kpi
	}

	kpi.RentBase = m.RentBase
	kpi.Collected = m.Collected
	kpi.LeasedArea = m.LeasedArea

	switch {
	case m.Uncollected != nil:
		kpi.AccountsReceivable = roundPtr(*m.Uncollected)
	case m.RentBase != nil && m.Collected != nil:
		kpi.AccountsReceivable = roundPtr(*m.RentBase - *m.Collected)
	}

	if m.LeasedArea != nil && opts.TotalPropertyArea > 0 {
		kpi.OccupancyPct = roundPtr(*m.LeasedArea / opts.TotalPropertyArea * 100)

		ownUse := 0.0
		for _, s := range suites {
			if s.IsOwnUse && s.Area != nil {
				ownUse += *s.Area
			}
		}
		if denom := opts.TotalPropertyArea - ownUse; denom > 0 {
			kpi.OccupancyPctExclOwnUse = roundPtr((*m.LeasedArea - ownUse) / denom * 100)
		}
	}

	if m.RentBase != nil && m.Collected != nil {
		if *m.RentBase == 0 {
			kpi.CollectionRatePct = entity.Float(0)
		} else {
			kpi.CollectionRatePct = roundPtr(*m.Collected / *m.RentBase * 100)
		}
	}

	switch {
	case m.PricePerArea != nil:
		kpi.PricePerAreaYr = roundPtr(*m.PricePerArea)
	case m.RentBase != nil && m.LeasedArea != nil && *m.LeasedArea > 0:
		kpi.PricePerAreaYr = roundPtr(*m.RentBase * 12 / *m.LeasedArea)
	}

	kpi.NOIBasis = noiBasis(len(lines) > 0, opts.ProtoNOI)
	if m.Collected != nil {
		noi := *m.Collected
		if kpi.NOIBasis == entity.NOIBasisLessExpenses {
			noi -= kpi.FixedExpenses + kpi.VariableExpenses
		}
		kpi.NOIProxy = roundPtr(noi)
		if *m.Collected == 0 {
			kpi.NOIMarginPct = entity.Float(0)
		} else {
			kpi.NOIMarginPct = roundPtr(noi / *m.Collected * 100)
		}
	}
	return kpi
}

func noiBasis(hasExpenses, proto bool) string {
	switch {
	case proto:
		return entity.NOIBasisProto
	case hasExpenses:
		return entity.NOIBasisLessExpenses
	}
	return entity.NOIBasisNoExpenses
}

// BuildingKPIs summarises the suites valid at p per building.
func BuildingKPIs(p entity.Period, suites []entity.SuiteChangeRecord) []entity.BuildingKPI {
	byBuilding := make(map[string]*entity.BuildingKPI)
	var names []string
	for _, s := range suites {
		name := s.Building
		if name == "" {
			name = "UNASSIGNED"
		}
		b, ok := byBuilding[name]
		if !ok {
			b = &entity.BuildingKPI{Period: p, Building: name}
			byBuilding[name] = b
			names = append(names, name)
		}
		area := 0.0
		if s.Area != nil {
			area = *s.Area
		}
		b.SuiteCount++
		b.TotalArea += area
		if s.IsVacant {
			b.VacantCount++
			b.VacantArea += area
		} else {
			b.OccupiedArea += area
			if s.RentMonthly != nil {
				b.RentMonthly += *s.RentMonthly
			}
		}
		if s.IsOwnUse {
			b.OwnUseCount++
			b.OwnUseArea += area
		}
	}

	sort.Strings(names)
	out := make([]entity.BuildingKPI, 0, len(names))
	for _, name := range names {
		b := byBuilding[name]
		b.EffectiveOccupiedArea = b.OccupiedArea - b.OwnUseArea
		if b.TotalArea > 0 {
			b.OccupancyPct = roundPtr(b.OccupiedArea / b.TotalArea * 100)
		}
		if denom := b.TotalArea - b.OwnUseArea; denom > 0 {
			b.OccupancyPctExclOwnUse = roundPtr(b.EffectiveOccupiedArea / denom * 100)
		}
		b.TotalArea = round2(b.TotalArea)
		b.OccupiedArea = round2(b.OccupiedArea)
		b.VacantArea = round2(b.VacantArea)
		b.OwnUseArea = round2(b.OwnUseArea)
		b.EffectiveOccupiedArea = round2(b.EffectiveOccupiedArea)
		b.RentMonthly = round2(b.RentMonthly)
		out = append(out, *b)
	}
	return out
}

func expenseFacts(p entity.Period, lines []entity.ExpenseRow) []entity.ExpenseFact {
	byCategory := make(map[string]*entity.ExpenseFact)
	var cats []string
	for _, l := range lines {
		cat := strings.ToLower(l.Category)
		f, ok := byCategory[cat]
		if !ok {
			f = &entity.ExpenseFact{Period: p, Category: cat}
			byCategory[cat] = f
			cats = append(cats, cat)
		}
		f.LineCount++
		if l.ActualAmount != nil {
			f.TotalAmount += *l.ActualAmount
		}
	}
	sort.Strings(cats)
	out := make([]entity.ExpenseFact, 0, len(cats))
	for _, c := range cats {
		f := byCategory[c]
		f.TotalAmount = round2(f.TotalAmount)
		out = append(out, *f)
	}
	return out
}

// mean accumulates a nullable average over a sliding window.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v != nil {
		m.sum += *v
		m.n++
	}
}

func (m *mean) remove(v *float64) {
	if v != nil {
		m.sum -= *v
		m.n--
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	return roundPtr(m.sum / float64(m.n))
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// RollingWindows computes trailing windows ending at every period with
// monthly figures. A window of size w ending at P spans the w calendar
// months (P-w, P]; months without figures are skipped, never padded, and
// such windows come back with IsPartial set.
func RollingWindows(kpis []entity.PeriodKPI, sizes []int, excludeOwnUse bool) []entity.RollingWindow {
	var series []entity.PeriodKPI
	for _, k := range kpis {
		if k.HasMetrics {
			series = append(series, k)
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period.Before(series[j].Period) })

	occupancy := func(k entity.PeriodKPI) *float64 {
		if excludeOwnUse {
			return k.OccupancyPctExclOwnUse
		}
		return k.OccupancyPct
	}

	var out []entity.RollingWindow
	for _, w := range sizes {
		var occ, rate, price, noi, margin mean
		var rentBase, collected, receivable, noiTotal float64

		add := func(k entity.PeriodKPI, sign float64) {
			if sign > 0 {
				occ.add(occupancy(k))
				rate.add(k.CollectionRatePct)
				price.add(k.PricePerAreaYr)
				noi.add(k.NOIProxy)
				margin.add(k.NOIMarginPct)
			} else {
				occ.remove(occupancy(k))
				rate.remove(k.CollectionRatePct)
				price.remove(k.PricePerAreaYr)
				noi.remove(k.NOIProxy)
				margin.remove(k.NOIMarginPct)
			}
			rentBase += sign * deref(k.RentBase)
			collected += sign * deref(k.Collected)
			receivable += sign * deref(k.AccountsReceivable)
			noiTotal += sign * deref(k.NOIProxy)
		}

		left := 0
		for right, end := range series {
			add(end, 1)
			for series[left].Period.Index() <= end.Period.Index()-w {
				add(series[left], -1)
				left++
			}
			count := right - left + 1
			out = append(out, entity.RollingWindow{
				EndPeriod:            end.Period,
				WindowSize:           w,
				StartPeriod:          series[left].Period,
				PeriodCount:          count,
				IsPartial:            count < w,
				AvgOccupancyPct:      occ.value(),
				AvgCollectionRatePct: rate.value(),
				AvgPricePerAreaYr:    price.value(),
				TotalRentBase:        round2(rentBase),
				TotalCollected:       round2(collected),
				TotalReceivable:      round2(receivable),
				AvgNOIProxy:          noi.value(),
				TotalNOIProxy:        round2(noiTotal),
				AvgNOIMarginPct:      margin.value(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EndPeriod != out[j].EndPeriod {
			return out[i].EndPeriod.Before(out[j].EndPeriod)
		}
		return out[i].WindowSize < out[j].WindowSize
	})
	return out
}

func sortedPeriods(set map[entity.Period]bool) []entity.Period {
	out := make([]entity.Period, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// round2 rounds half away from zero to cents.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundPtr(v float64) *float64 {
	r := round2(v)
	return &r
}
