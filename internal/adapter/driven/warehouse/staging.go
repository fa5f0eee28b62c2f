package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

func stagingTable(kind entity.RecordKind) (string, error) {
	switch kind {
	case entity.KindMonthlyMetric:
		return "stg_monthly_metric", nil
	case entity.KindLease:
		return "stg_lease", nil
	case entity.KindExpense:
		return "stg_expense", nil
	}
	return "", fmt.Errorf("unknown record kind %q", kind)
}

// StagedPartitions lista o lote vencedor atualmente em staging por (tipo, período).
func (w *Warehouse) StagedPartitions(ctx context.Context) ([]entity.StagedPartition, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT kind, as_of_month, fingerprint, ingested_at, row_count
		FROM staging_state
		ORDER BY kind, as_of_month`)
	if err != nil {
		return nil, fmt.Errorf("querying staging state: %w", err)
	}
	defer rows.Close()

	var out []entity.StagedPartition
	for rows.Next() {
		var (
			p            entity.StagedPartition
			kind, period string
			at           sql.NullTime
		)
		if err := rows.Scan(&kind, &period, &p.Fingerprint, &at, &p.RowCount); err != nil {
			return nil, err
		}
		p.Kind = entity.RecordKind(kind)
		p.AsOfMonth = entity.Period(period)
		p.IngestedAt = utc(at)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceStagedPartition troca as linhas de um (tipo, período) pelas do lote
// vencedor. Delete, insert e o registro de estado saem na mesma transação.
func (w *Warehouse) ReplaceStagedPartition(ctx context.Context, batch entity.TypedBatch) error {
	table, err := stagingTable(batch.Kind)
	if err != nil {
		return err
	}
	period := batch.AsOfMonth.String()
	lin := func() []any { return []any{period, batch.Fingerprint, batch.IngestedAt.UTC()} }

	return w.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE as_of_month = ?`, period); err != nil {
			return fmt.Errorf("clearing %s %s: %w", table, period, err)
		}

		switch batch.Kind {
		case entity.KindMonthlyMetric:
			err = insertAll(ctx, tx, `
				INSERT INTO stg_monthly_metric (as_of_month, file_fingerprint, ingested_at, period,
					rent_base, collected, uncollected, leased_area, derived_price_per_area)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				len(batch.Monthly), func(i int) []any {
					r := batch.Monthly[i]
					return append(lin(), r.Period.String(),
						nullable(r.RentBase), nullable(r.Collected), nullable(r.Uncollected),
						nullable(r.LeasedArea), nullable(r.PricePerArea))
				})
		case entity.KindLease:
			err = insertAll(ctx, tx, `
				INSERT INTO stg_lease (as_of_month, file_fingerprint, ingested_at, period, suite_id, building,
					tenant, area, rent_monthly, rent_annual, rent_per_area_year, is_vacant, is_own_use)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				len(batch.Leases), func(i int) []any {
					r := batch.Leases[i]
					return append(lin(), r.Period.String(), r.SuiteID, r.Building, r.Tenant,
						nullable(r.Area), nullable(r.RentMonthly), nullable(r.RentAnnual),
						nullable(r.RentPerAreaYear), r.IsVacant, r.IsOwnUse)
				})
		case entity.KindExpense:
			err = insertAll(ctx, tx, `
				INSERT INTO stg_expense (as_of_month, file_fingerprint, ingested_at, period,
					line_item, actual_amount, category)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				len(batch.Expenses), func(i int) []any {
					r := batch.Expenses[i]
					return append(lin(), r.Period.String(), r.LineItem, nullable(r.ActualAmount), r.Category)
				})
		}
		if err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM staging_state WHERE kind = ? AND as_of_month = ?`,
			string(batch.Kind), period); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staging_state (kind, as_of_month, fingerprint, ingested_at, row_count, staged_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(batch.Kind), period, batch.Fingerprint, batch.IngestedAt.UTC(), batch.RowCount(), time.Now().UTC())
		return err
	})
}

// RemoveStagedPartition apaga uma partição que deixou de ter vencedor.
func (w *Warehouse) RemoveStagedPartition(ctx context.Context, ref entity.BatchRef) error {
	table, err := stagingTable(ref.Kind)
	if err != nil {
		return err
	}
	return w.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE as_of_month = ?`, ref.AsOfMonth.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM staging_state WHERE kind = ? AND as_of_month = ?`,
			string(ref.Kind), ref.AsOfMonth.String())
		return err
	})
}

// ResetStaging descarta todo o staging para um rebuild completo.
func (w *Warehouse) ResetStaging(ctx context.Context) error {
	return w.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"stg_monthly_metric", "stg_lease", "stg_expense", "staging_state"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("resetting %s: %w", table, err)
			}
		}
		return nil
	})
}

func scanLineage(period, fingerprint string, at sql.NullTime) entity.Lineage {
	return entity.Lineage{AsOfMonth: entity.Period(period), Fingerprint: fingerprint, IngestedAt: utc(at)}
}

// StagedMonthlyMetrics devolve a tabela unificada de métricas mensais.
func (w *Warehouse) StagedMonthlyMetrics(ctx context.Context) ([]entity.MonthlyMetricRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT as_of_month, file_fingerprint, ingested_at, period,
			rent_base, collected, uncollected, leased_area, derived_price_per_area
		FROM stg_monthly_metric
		ORDER BY as_of_month, period`)
	if err != nil {
		return nil, fmt.Errorf("querying stg_monthly_metric: %w", err)
	}
	defer rows.Close()

	var out []entity.MonthlyMetricRow
	for rows.Next() {
		var (
			asOf, fp, period                string
			at                              sql.NullTime
			base, coll, uncoll, area, price sql.NullFloat64
		)
		if err := rows.Scan(&asOf, &fp, &at, &period, &base, &coll, &uncoll, &area, &price); err != nil {
			return nil, err
		}
		out = append(out, entity.MonthlyMetricRow{
			Lineage:      scanLineage(asOf, fp, at),
			Period:       entity.Period(period),
			RentBase:     floatPtr(base),
			Collected:    floatPtr(coll),
			Uncollected:  floatPtr(uncoll),
			LeasedArea:   floatPtr(area),
			PricePerArea: floatPtr(price),
		})
	}
	return out, rows.Err()
}

// StagedLeases devolve o rol de locações unificado.
func (w *Warehouse) StagedLeases(ctx context.Context) ([]entity.LeaseRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT as_of_month, file_fingerprint, ingested_at, period, suite_id, building, tenant,
			area, rent_monthly, rent_annual, rent_per_area_year, is_vacant, is_own_use
		FROM stg_lease
		ORDER BY as_of_month, suite_id`)
	if err != nil {
		return nil, fmt.Errorf("querying stg_lease: %w", err)
	}
	defer rows.Close()

	var out []entity.LeaseRow
	for rows.Next() {
		var (
			asOf, fp                        string
			period, suite, building, tenant sql.NullString
			at                              sql.NullTime
			area, monthly, annual, perArea  sql.NullFloat64
			vacant, ownUse                  sql.NullBool
		)
		if err := rows.Scan(&asOf, &fp, &at, &period, &suite, &building, &tenant,
			&area, &monthly, &annual, &perArea, &vacant, &ownUse); err != nil {
			return nil, err
		}
		out = append(out, entity.LeaseRow{
			Lineage:         scanLineage(asOf, fp, at),
			Period:          entity.Period(period.String),
			SuiteID:         suite.String,
			Building:        building.String,
			Tenant:          tenant.String,
			Area:            floatPtr(area),
			RentMonthly:     floatPtr(monthly),
			RentAnnual:      floatPtr(annual),
			RentPerAreaYear: floatPtr(perArea),
			IsVacant:        vacant.Bool,
			IsOwnUse:        ownUse.Bool,
		})
	}
	return out, rows.Err()
}

// StagedExpenses devolve as linhas de despesas unificadas.
func (w *Warehouse) StagedExpenses(ctx context.Context) ([]entity.ExpenseRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT as_of_month, file_fingerprint, ingested_at, period, line_item, actual_amount, category
		FROM stg_expense
		ORDER BY as_of_month, period, line_item`)
	if err != nil {
		return nil, fmt.Errorf("querying stg_expense: %w", err)
	}
	defer rows.Close()

	var out []entity.ExpenseRow
	for rows.Next() {
		var (
			asOf, fp               string
			period, item, category sql.NullString
			at                     sql.NullTime
			amount                 sql.NullFloat64
		)
		if err := rows.Scan(&asOf, &fp, &at, &period, &item, &amount, &category); err != nil {
			return nil, err
		}
		out = append(out, entity.ExpenseRow{
			Lineage:      scanLineage(asOf, fp, at),
			Period:       entity.Period(period.String),
			LineItem:     item.String,
			ActualAmount: floatPtr(amount),
			Category:     category.String,
		})
	}
	return out, rows.Err()
}
