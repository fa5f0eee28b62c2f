package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// StartRun registra o início de uma execução.
func (w *Warehouse) StartRun(ctx context.Context, run entity.RunRecord) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO run_log (run_id, command, started_at, finished_at, status, detail)
		VALUES (?, ?, ?, NULL, ?, ?)`,
		run.RunID, run.Command, nullTime(run.StartedAt), run.Status, run.Detail)
	if err != nil {
		return fmt.Errorf("inserting run_log: %w", err)
	}
	return nil
}

// FinishRun grava o desfecho da execução.
func (w *Warehouse) FinishRun(ctx context.Context, run entity.RunRecord) error {
	_, err := w.db.ExecContext(ctx, `
		UPDATE run_log SET finished_at = ?, status = ?, detail = ?
		WHERE run_id = ?`,
		nullTime(run.FinishedAt), run.Status, run.Detail, run.RunID)
	if err != nil {
		return fmt.Errorf("updating run_log: %w", err)
	}
	return nil
}

// RecentRuns lista as últimas execuções, da mais nova para a mais antiga.
func (w *Warehouse) RecentRuns(ctx context.Context, limit int) ([]entity.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := w.db.QueryContext(ctx, `
		SELECT run_id, command, started_at, finished_at, status, detail
		FROM run_log
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run_log: %w", err)
	}
	defer rows.Close()

	var out []entity.RunRecord
	for rows.Next() {
		var (
			r                       entity.RunRecord
			command, status, detail sql.NullString
			started, finished       sql.NullTime
		)
		if err := rows.Scan(&r.RunID, &command, &started, &finished, &status, &detail); err != nil {
			return nil, err
		}
		r.Command = command.String
		r.StartedAt = utc(started)
		r.FinishedAt = utc(finished)
		r.Status = status.String
		r.Detail = detail.String
		out = append(out, r)
	}
	return out, rows.Err()
}
