package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// BronzeAudit lê os arquivos bronze diretamente pelo caminho hive do DuckDB e
// cruza cada (período, fingerprint) com o veredito e o estado de staging.
func (w *Warehouse) BronzeAudit(ctx context.Context, bronzeRoot string, kind entity.RecordKind) ([]entity.BronzeAuditRow, error) {
	pattern := filepath.ToSlash(filepath.Join(bronzeRoot, kind.BronzeTable(), "as_of_month=*", "*.parquet"))
	matches, err := filepath.Glob(filepath.FromSlash(pattern))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		// read_parquet falha quando o glob não casa nenhum arquivo.
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT b.as_of_month, b._file_fingerprint, COUNT(*) AS row_count, MIN(b._ingested_at) AS ingested_at,
			COALESCE(c.status, 'pending') AS status, s.fingerprint IS NOT NULL AS staged
		FROM read_parquet('%s', hive_partitioning = true, hive_types = {'as_of_month': VARCHAR}) b
		LEFT JOIN batch_clearance c
			ON c.kind = ? AND c.as_of_month = b.as_of_month AND c.fingerprint = b._file_fingerprint
		LEFT JOIN staging_state s
			ON s.kind = ? AND s.as_of_month = b.as_of_month AND s.fingerprint = b._file_fingerprint
		GROUP BY b.as_of_month, b._file_fingerprint, c.status, s.fingerprint
		ORDER BY b.as_of_month, ingested_at`, strings.ReplaceAll(pattern, "'", "''"))

	rows, err := w.db.QueryContext(ctx, query, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("reading bronze %s: %w", kind.BronzeTable(), err)
	}
	defer rows.Close()

	var out []entity.BronzeAuditRow
	for rows.Next() {
		var (
			r      entity.BronzeAuditRow
			period string
			at     sql.NullTime
		)
		if err := rows.Scan(&period, &r.Fingerprint, &r.RowCount, &at, &r.Status, &r.Staged); err != nil {
			return nil, err
		}
		r.AsOfMonth = entity.Period(period)
		r.IngestedAt = utc(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
