package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

const batchFilter = `kind = ? AND as_of_month = ? AND fingerprint = ?`

func refArgs(ref entity.BatchRef) []any {
	return []any{string(ref.Kind), ref.AsOfMonth.String(), ref.Fingerprint}
}

// Clearances lista os vereditos gravados.
func (w *Warehouse) Clearances(ctx context.Context) ([]entity.BatchClearance, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT kind, as_of_month, fingerprint, status, checked_at, violation_count, override_reason
		FROM batch_clearance
		ORDER BY kind, as_of_month, checked_at`)
	if err != nil {
		return nil, fmt.Errorf("querying clearances: %w", err)
	}
	defer rows.Close()

	var out []entity.BatchClearance
	for rows.Next() {
		var (
			c                    entity.BatchClearance
			kind, period, status string
			checked              sql.NullTime
			count                sql.NullInt64
			reason               sql.NullString
		)
		if err := rows.Scan(&kind, &period, &c.Fingerprint, &status, &checked, &count, &reason); err != nil {
			return nil, err
		}
		c.Kind = entity.RecordKind(kind)
		c.AsOfMonth = entity.Period(period)
		c.Status = entity.ClearanceStatus(status)
		c.CheckedAt = utc(checked)
		c.ViolationCount = int(count.Int64)
		c.OverrideReason = reason.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveClearance substitui o veredito e as violações do lote numa transação.
func (w *Warehouse) SaveClearance(ctx context.Context, clearance entity.BatchClearance, violations []entity.Violation) error {
	return w.withTx(ctx, func(tx *sql.Tx) error {
		args := refArgs(clearance.BatchRef)
		if _, err := tx.ExecContext(ctx, `DELETE FROM batch_clearance WHERE `+batchFilter, args...); err != nil {
			return fmt.Errorf("clearing verdict: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quality_violations WHERE `+batchFilter, args...); err != nil {
			return fmt.Errorf("clearing violations: %w", err)
		}
		var reason any
		if clearance.OverrideReason != "" {
			reason = clearance.OverrideReason
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_clearance (kind, as_of_month, fingerprint, status, checked_at, violation_count, override_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			append(args, string(clearance.Status), nullTime(clearance.CheckedAt), clearance.ViolationCount, reason)...); err != nil {
			return fmt.Errorf("saving verdict: %w", err)
		}
		return insertAll(ctx, tx, `
			INSERT INTO quality_violations (kind, as_of_month, fingerprint, row_index, row_key, rule, column_name, observed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			len(violations), func(i int) []any {
				v := violations[i]
				return append(refArgs(clearance.BatchRef), v.RowIndex, v.RowKey, v.Rule, v.Column, v.Observed)
			})
	})
}

// Violations lista as violações gravadas de um lote.
func (w *Warehouse) Violations(ctx context.Context, ref entity.BatchRef) ([]entity.Violation, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT row_index, row_key, rule, column_name, observed
		FROM quality_violations
		WHERE `+batchFilter+`
		ORDER BY row_index, rule`, refArgs(ref)...)
	if err != nil {
		return nil, fmt.Errorf("querying violations: %w", err)
	}
	defer rows.Close()

	var out []entity.Violation
	for rows.Next() {
		var v entity.Violation
		var key, rule, col, observed sql.NullString
		if err := rows.Scan(&v.RowIndex, &key, &rule, &col, &observed); err != nil {
			return nil, err
		}
		v.RowKey, v.Rule, v.Column, v.Observed = key.String, rule.String, col.String, observed.String
		out = append(out, v)
	}
	return out, rows.Err()
}
