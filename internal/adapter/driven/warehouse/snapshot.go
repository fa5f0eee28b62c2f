package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

const suiteColumns = `suite_id, version, building, area, tenant, rent_monthly, rent_annual, rent_per_area_year,
	is_vacant, is_own_use, valid_from, valid_to, is_current, closed_reason, source_fingerprint`

// SuiteHistory devolve a tabela SCD inteira, ordenada por unidade e versão.
func (w *Warehouse) SuiteHistory(ctx context.Context) ([]entity.SuiteChangeRecord, error) {
	return w.querySuites(ctx, `SELECT `+suiteColumns+` FROM dim_suite_scd ORDER BY suite_id, version`)
}

func (w *Warehouse) querySuites(ctx context.Context, query string, args ...any) ([]entity.SuiteChangeRecord, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dim_suite_scd: %w", err)
	}
	defer rows.Close()

	var out []entity.SuiteChangeRecord
	for rows.Next() {
		var (
			r                                     entity.SuiteChangeRecord
			validFrom                             string
			building, tenant, validTo, reason, fp sql.NullString
			area, monthly, annual, perArea        sql.NullFloat64
			vacant, ownUse, current               sql.NullBool
		)
		if err := rows.Scan(&r.SuiteID, &r.Version, &building, &area, &tenant, &monthly, &annual, &perArea,
			&vacant, &ownUse, &validFrom, &validTo, &current, &reason, &fp); err != nil {
			return nil, err
		}
		r.Building = building.String
		r.Area = floatPtr(area)
		r.Tenant = tenant.String
		r.RentMonthly = floatPtr(monthly)
		r.RentAnnual = floatPtr(annual)
		r.RentPerAreaYear = floatPtr(perArea)
		r.IsVacant = vacant.Bool
		r.IsOwnUse = ownUse.Bool
		r.ValidFrom = entity.Period(validFrom)
		r.ValidTo = entity.Period(validTo.String)
		r.IsCurrent = current.Bool
		r.ClosedReason = reason.String
		r.SourceFingerprint = fp.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProcessedPartitions lista as partições de locação já aplicadas ao SCD.
func (w *Warehouse) ProcessedPartitions(ctx context.Context) ([]entity.ProcessedPartition, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT as_of_month, fingerprint FROM snapshot_partitions ORDER BY as_of_month`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot_partitions: %w", err)
	}
	defer rows.Close()

	var out []entity.ProcessedPartition
	for rows.Next() {
		var period, fp string
		if err := rows.Scan(&period, &fp); err != nil {
			return nil, err
		}
		out = append(out, entity.ProcessedPartition{AsOfMonth: entity.Period(period), Fingerprint: fp})
	}
	return out, rows.Err()
}

// ReplaceSuiteHistory regrava o SCD e o conjunto de partições aplicadas numa
// única transação, para que um leitor nunca veja um sem o outro.
func (w *Warehouse) ReplaceSuiteHistory(ctx context.Context, records []entity.SuiteChangeRecord, processed []entity.ProcessedPartition) error {
	return w.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dim_suite_scd`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_partitions`); err != nil {
			return err
		}
		err := insertAll(ctx, tx, `INSERT INTO dim_suite_scd (`+suiteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(records), func(i int) []any {
				r := records[i]
				var reason any
				if r.ClosedReason != "" {
					reason = r.ClosedReason
				}
				return []any{r.SuiteID, r.Version, r.Building, nullable(r.Area), r.Tenant,
					nullable(r.RentMonthly), nullable(r.RentAnnual), nullable(r.RentPerAreaYear),
					r.IsVacant, r.IsOwnUse, r.ValidFrom.String(), nullablePeriod(r.ValidTo),
					r.IsCurrent, reason, r.SourceFingerprint}
			})
		if err != nil {
			return fmt.Errorf("inserting suite history: %w", err)
		}
		return insertAll(ctx, tx, `INSERT INTO snapshot_partitions (as_of_month, fingerprint) VALUES (?, ?)`,
			len(processed), func(i int) []any {
				return []any{processed[i].AsOfMonth.String(), processed[i].Fingerprint}
			})
	})
}

// ConfirmedEmptyPeriods lista os períodos cujo rol vazio foi confirmado.
func (w *Warehouse) ConfirmedEmptyPeriods(ctx context.Context) ([]entity.Period, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT DISTINCT as_of_month FROM snapshot_confirmations ORDER BY as_of_month`)
	if err != nil {
		return nil, fmt.Errorf("querying confirmations: %w", err)
	}
	defer rows.Close()

	var out []entity.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, entity.Period(p))
	}
	return out, rows.Err()
}

// ConfirmEmptyPeriod grava a confirmação do operador; repetir é inofensivo.
func (w *Warehouse) ConfirmEmptyPeriod(ctx context.Context, period entity.Period, note string) error {
	return w.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_confirmations WHERE as_of_month = ?`, period.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO snapshot_confirmations (as_of_month, note, confirmed_at) VALUES (?, ?, ?)`,
			period.String(), note, time.Now().UTC())
		return err
	})
}
