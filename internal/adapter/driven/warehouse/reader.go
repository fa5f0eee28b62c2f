package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// rangeFilter monta o filtro de período; limites vazios ficam abertos.
func rangeFilter(column string, rng entity.PeriodRange) (string, []any) {
	return fmt.Sprintf("(? = '' OR %[1]s >= ?) AND (? = '' OR %[1]s <= ?)", column),
		[]any{rng.From.String(), rng.From.String(), rng.To.String(), rng.To.String()}
}

// PeriodKPIs lê prop_kpi_monthly dentro do intervalo.
func (w *Warehouse) PeriodKPIs(ctx context.Context, rng entity.PeriodRange) ([]entity.PeriodKPI, error) {
	where, args := rangeFilter("period", rng)
	rows, err := w.db.QueryContext(ctx, `SELECT `+periodKPIColumns+` FROM prop_kpi_monthly WHERE `+where+` ORDER BY period`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying prop_kpi_monthly: %w", err)
	}
	defer rows.Close()

	var out []entity.PeriodKPI
	for rows.Next() {
		var (
			k                                         entity.PeriodKPI
			period                                    string
			base, coll, ar, leased                    sql.NullFloat64
			occ, occExcl, rate, price, noi, noiMargin sql.NullFloat64
			basis                                     sql.NullString
		)
		if err := rows.Scan(&period, &base, &coll, &ar, &leased, &k.TotalArea,
			&occ, &occExcl, &rate, &price,
			&k.FixedExpenses, &k.VariableExpenses, &k.OtherExpenses, &k.TotalExpenses,
			&noi, &noiMargin, &basis, &k.HasMetrics, &k.HasLeases); err != nil {
			return nil, err
		}
		k.Period = entity.Period(period)
		k.RentBase = floatPtr(base)
		k.Collected = floatPtr(coll)
		k.AccountsReceivable = floatPtr(ar)
		k.LeasedArea = floatPtr(leased)
		k.OccupancyPct = floatPtr(occ)
		k.OccupancyPctExclOwnUse = floatPtr(occExcl)
		k.CollectionRatePct = floatPtr(rate)
		k.PricePerAreaYr = floatPtr(price)
		k.NOIProxy = floatPtr(noi)
		k.NOIMarginPct = floatPtr(noiMargin)
		k.NOIBasis = basis.String
		out = append(out, k)
	}
	return out, rows.Err()
}

// BuildingKPIs lê building_kpi_monthly; building vazio traz todos os prédios.
func (w *Warehouse) BuildingKPIs(ctx context.Context, rng entity.PeriodRange, building string) ([]entity.BuildingKPI, error) {
	where, args := rangeFilter("period", rng)
	args = append(args, building, building)
	rows, err := w.db.QueryContext(ctx, `SELECT `+buildingKPIColumns+` FROM building_kpi_monthly
		WHERE `+where+` AND (? = '' OR building = ?)
		ORDER BY period, building`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying building_kpi_monthly: %w", err)
	}
	defer rows.Close()

	var out []entity.BuildingKPI
	for rows.Next() {
		var b entity.BuildingKPI
		var period string
		var occ, occExcl sql.NullFloat64
		if err := rows.Scan(&period, &b.Building, &b.SuiteCount, &b.VacantCount, &b.OwnUseCount,
			&b.TotalArea, &b.OccupiedArea, &b.VacantArea, &b.OwnUseArea, &b.EffectiveOccupiedArea,
			&occ, &occExcl, &b.RentMonthly); err != nil {
			return nil, err
		}
		b.Period = entity.Period(period)
		b.OccupancyPct = floatPtr(occ)
		b.OccupancyPctExclOwnUse = floatPtr(occExcl)
		out = append(out, b)
	}
	return out, rows.Err()
}

// RollingWindows lê kpi_windows; size 0 traz todos os tamanhos.
func (w *Warehouse) RollingWindows(ctx context.Context, size int, rng entity.PeriodRange) ([]entity.RollingWindow, error) {
	where, args := rangeFilter("end_period", rng)
	args = append(args, size, size)
	rows, err := w.db.QueryContext(ctx, `SELECT `+windowColumns+` FROM kpi_windows
		WHERE `+where+` AND (? = 0 OR window_size = ?)
		ORDER BY end_period, window_size`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying kpi_windows: %w", err)
	}
	defer rows.Close()

	var out []entity.RollingWindow
	for rows.Next() {
		var (
			r                                entity.RollingWindow
			end, start                       string
			occ, rate, price, noi, noiMargin sql.NullFloat64
		)
		if err := rows.Scan(&end, &r.WindowSize, &start, &r.PeriodCount, &r.IsPartial,
			&occ, &rate, &price, &r.TotalRentBase, &r.TotalCollected, &r.TotalReceivable,
			&noi, &r.TotalNOIProxy, &noiMargin); err != nil {
			return nil, err
		}
		r.EndPeriod = entity.Period(end)
		r.StartPeriod = entity.Period(start)
		r.AvgOccupancyPct = floatPtr(occ)
		r.AvgCollectionRatePct = floatPtr(rate)
		r.AvgPricePerAreaYr = floatPtr(price)
		r.AvgNOIProxy = floatPtr(noi)
		r.AvgNOIMarginPct = floatPtr(noiMargin)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CurrentSuites lista as versões abertas do SCD.
func (w *Warehouse) CurrentSuites(ctx context.Context) ([]entity.SuiteChangeRecord, error) {
	return w.querySuites(ctx, `SELECT `+suiteColumns+` FROM dim_suite_scd WHERE is_current ORDER BY suite_id`)
}

// SuitesAsOf reconstrói o conjunto de unidades válido no período.
func (w *Warehouse) SuitesAsOf(ctx context.Context, period entity.Period) ([]entity.SuiteChangeRecord, error) {
	return w.querySuites(ctx, `SELECT `+suiteColumns+` FROM dim_suite_scd
		WHERE valid_from <= ? AND (valid_to IS NULL OR valid_to >= ?)
		ORDER BY suite_id`, period.String(), period.String())
}

// SuiteVersions lista todas as versões de uma unidade.
func (w *Warehouse) SuiteVersions(ctx context.Context, suiteID string) ([]entity.SuiteChangeRecord, error) {
	return w.querySuites(ctx, `SELECT `+suiteColumns+` FROM dim_suite_scd WHERE suite_id = ? ORDER BY version`, suiteID)
}

// TableCounts conta as linhas de cada tabela do armazém.
func (w *Warehouse) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(Tables))
	for _, table := range Tables {
		var n int
		if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
