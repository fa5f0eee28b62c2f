package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

const (
	periodKPIColumns = `period, rent_base, collected, accounts_receivable, leased_area, total_area,
		occupancy_pct, occupancy_pct_excl_own_use, collection_rate_pct, price_per_area_yr,
		fixed_expenses, variable_expenses, other_expenses, total_expenses,
		noi_proxy, noi_margin_pct, noi_basis, has_metrics, has_leases`
	buildingKPIColumns = `period, building, suite_count, vacant_count, own_use_count,
		total_area, occupied_area, vacant_area, own_use_area, effective_occupied_area,
		occupancy_pct, occupancy_pct_excl_own_use, rent_monthly`
	windowColumns = `end_period, window_size, start_period, period_count, is_partial,
		avg_occupancy_pct, avg_collection_rate_pct, avg_price_per_area_yr,
		total_rent_base, total_collected, total_accounts_receivable,
		avg_noi_proxy, total_noi_proxy, avg_noi_margin_pct`
)

var goldTables = []string{"prop_kpi_monthly", "building_kpi_monthly", "kpi_windows", "fact_expense_monthly", "gold_meta"}

// ReplaceGold troca todas as tabelas gold de uma vez. Gold é sempre
// reconstruído por inteiro a partir de staging e do SCD.
func (w *Warehouse) ReplaceGold(ctx context.Context, gold entity.GoldTables) error {
	return w.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range goldTables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		err := insertAll(ctx, tx, `INSERT INTO prop_kpi_monthly (`+periodKPIColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(gold.PeriodKPIs), func(i int) []any {
				k := gold.PeriodKPIs[i]
				return []any{k.Period.String(), nullable(k.RentBase), nullable(k.Collected),
					nullable(k.AccountsReceivable), nullable(k.LeasedArea), k.TotalArea,
					nullable(k.OccupancyPct), nullable(k.OccupancyPctExclOwnUse),
					nullable(k.CollectionRatePct), nullable(k.PricePerAreaYr),
					k.FixedExpenses, k.VariableExpenses, k.OtherExpenses, k.TotalExpenses,
					nullable(k.NOIProxy), nullable(k.NOIMarginPct), k.NOIBasis, k.HasMetrics, k.HasLeases}
			})
		if err != nil {
			return fmt.Errorf("inserting prop_kpi_monthly: %w", err)
		}

		err = insertAll(ctx, tx, `INSERT INTO building_kpi_monthly (`+buildingKPIColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(gold.BuildingKPIs), func(i int) []any {
				b := gold.BuildingKPIs[i]
				return []any{b.Period.String(), b.Building, b.SuiteCount, b.VacantCount, b.OwnUseCount,
					b.TotalArea, b.OccupiedArea, b.VacantArea, b.OwnUseArea, b.EffectiveOccupiedArea,
					nullable(b.OccupancyPct), nullable(b.OccupancyPctExclOwnUse), b.RentMonthly}
			})
		if err != nil {
			return fmt.Errorf("inserting building_kpi_monthly: %w", err)
		}

		err = insertAll(ctx, tx, `INSERT INTO kpi_windows (`+windowColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(gold.Windows), func(i int) []any {
				r := gold.Windows[i]
				return []any{r.EndPeriod.String(), r.WindowSize, r.StartPeriod.String(), r.PeriodCount, r.IsPartial,
					nullable(r.AvgOccupancyPct), nullable(r.AvgCollectionRatePct), nullable(r.AvgPricePerAreaYr),
					r.TotalRentBase, r.TotalCollected, r.TotalReceivable,
					nullable(r.AvgNOIProxy), r.TotalNOIProxy, nullable(r.AvgNOIMarginPct)}
			})
		if err != nil {
			return fmt.Errorf("inserting kpi_windows: %w", err)
		}

		err = insertAll(ctx, tx, `INSERT INTO fact_expense_monthly (period, category, total_amount, line_count)
			VALUES (?, ?, ?, ?)`,
			len(gold.ExpenseFacts), func(i int) []any {
				f := gold.ExpenseFacts[i]
				return []any{f.Period.String(), f.Category, f.TotalAmount, f.LineCount}
			})
		if err != nil {
			return fmt.Errorf("inserting fact_expense_monthly: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO gold_meta (generated_at) VALUES (?)`, nullTime(gold.GeneratedAt))
		return err
	})
}

// LoadGold lê as tabelas gold completas, para exportação.
func (w *Warehouse) LoadGold(ctx context.Context) (entity.GoldTables, error) {
	var gold entity.GoldTables
	var generated sql.NullTime
	err := w.db.QueryRowContext(ctx, `SELECT generated_at FROM gold_meta LIMIT 1`).Scan(&generated)
	if err != nil && err != sql.ErrNoRows {
		return gold, fmt.Errorf("querying gold_meta: %w", err)
	}
	gold.GeneratedAt = utc(generated)

	all := entity.PeriodRange{}
	if gold.PeriodKPIs, err = w.PeriodKPIs(ctx, all); err != nil {
		return gold, err
	}
	if gold.BuildingKPIs, err = w.BuildingKPIs(ctx, all, ""); err != nil {
		return gold, err
	}
	if gold.Windows, err = w.RollingWindows(ctx, 0, all); err != nil {
		return gold, err
	}
	if gold.ExpenseFacts, err = w.expenseFacts(ctx); err != nil {
		return gold, err
	}
	return gold, nil
}

func (w *Warehouse) expenseFacts(ctx context.Context) ([]entity.ExpenseFact, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT period, category, total_amount, line_count
		FROM fact_expense_monthly
		ORDER BY period, category`)
	if err != nil {
		return nil, fmt.Errorf("querying fact_expense_monthly: %w", err)
	}
	defer rows.Close()

	var out []entity.ExpenseFact
	for rows.Next() {
		var f entity.ExpenseFact
		var period string
		if err := rows.Scan(&period, &f.Category, &f.TotalAmount, &f.LineCount); err != nil {
			return nil, err
		}
		f.Period = entity.Period(period)
		out = append(out, f)
	}
	return out, rows.Err()
}
