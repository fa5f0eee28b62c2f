package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"
)

// Tables lists every warehouse table in creation order.
var Tables = []string{
	"batch_clearance",
	"quality_violations",
	"staging_state",
	"stg_monthly_metric",
	"stg_lease",
	"stg_expense",
	"dim_suite_scd",
	"snapshot_partitions",
	"snapshot_confirmations",
	"prop_kpi_monthly",
	"building_kpi_monthly",
	"kpi_windows",
	"fact_expense_monthly",
	"gold_meta",
	"run_log",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batch_clearance (
		kind            VARCHAR NOT NULL,
		as_of_month     VARCHAR NOT NULL,
		fingerprint     VARCHAR NOT NULL,
		status          VARCHAR NOT NULL,
		checked_at      TIMESTAMP,
		violation_count INTEGER,
		override_reason VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS quality_violations (
		kind        VARCHAR NOT NULL,
		as_of_month VARCHAR NOT NULL,
		fingerprint VARCHAR NOT NULL,
		row_index   INTEGER,
		row_key     VARCHAR,
		rule        VARCHAR,
		column_name VARCHAR,
		observed    VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS staging_state (
		kind        VARCHAR NOT NULL,
		as_of_month VARCHAR NOT NULL,
		fingerprint VARCHAR NOT NULL,
		ingested_at TIMESTAMP,
		row_count   INTEGER,
		staged_at   TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS stg_monthly_metric (
		as_of_month            VARCHAR NOT NULL,
		file_fingerprint       VARCHAR NOT NULL,
		ingested_at            TIMESTAMP,
		period                 VARCHAR,
		rent_base              DOUBLE,
		collected              DOUBLE,
		uncollected            DOUBLE,
		leased_area            DOUBLE,
		derived_price_per_area DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS stg_lease (
		as_of_month        VARCHAR NOT NULL,
		file_fingerprint   VARCHAR NOT NULL,
		ingested_at        TIMESTAMP,
		period             VARCHAR,
		suite_id           VARCHAR,
		building           VARCHAR,
		tenant             VARCHAR,
		area               DOUBLE,
		rent_monthly       DOUBLE,
		rent_annual        DOUBLE,
		rent_per_area_year DOUBLE,
		is_vacant          BOOLEAN,
		is_own_use         BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS stg_expense (
		as_of_month      VARCHAR NOT NULL,
		file_fingerprint VARCHAR NOT NULL,
		ingested_at      TIMESTAMP,
		period           VARCHAR,
		line_item        VARCHAR,
		actual_amount    DOUBLE,
		category         VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS dim_suite_scd (
		suite_id           VARCHAR NOT NULL,
		version            INTEGER NOT NULL,
		building           VARCHAR,
		area               DOUBLE,
		tenant             VARCHAR,
		rent_monthly       DOUBLE,
		rent_annual        DOUBLE,
		rent_per_area_year DOUBLE,
		is_vacant          BOOLEAN,
		is_own_use         BOOLEAN,
		valid_from         VARCHAR NOT NULL,
		valid_to           VARCHAR,
		is_current         BOOLEAN,
		closed_reason      VARCHAR,
		source_fingerprint VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS snapshot_partitions (
		as_of_month VARCHAR NOT NULL,
		fingerprint VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshot_confirmations (
		as_of_month  VARCHAR NOT NULL,
		note         VARCHAR,
		confirmed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS prop_kpi_monthly (
		period                     VARCHAR NOT NULL,
		rent_base                  DOUBLE,
		collected                  DOUBLE,
		accounts_receivable        DOUBLE,
		leased_area                DOUBLE,
		total_area                 DOUBLE,
		occupancy_pct              DOUBLE,
		occupancy_pct_excl_own_use DOUBLE,
		collection_rate_pct        DOUBLE,
		price_per_area_yr          DOUBLE,
		fixed_expenses             DOUBLE,
		variable_expenses          DOUBLE,
		other_expenses             DOUBLE,
		total_expenses             DOUBLE,
		noi_proxy                  DOUBLE,
		noi_margin_pct             DOUBLE,
		noi_basis                  VARCHAR,
		has_metrics                BOOLEAN,
		has_leases                 BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS building_kpi_monthly (
		period                     VARCHAR NOT NULL,
		building                   VARCHAR NOT NULL,
		suite_count                INTEGER,
		vacant_count               INTEGER,
		own_use_count              INTEGER,
		total_area                 DOUBLE,
		occupied_area              DOUBLE,
		vacant_area                DOUBLE,
		own_use_area               DOUBLE,
		effective_occupied_area    DOUBLE,
		occupancy_pct              DOUBLE,
		occupancy_pct_excl_own_use DOUBLE,
		rent_monthly               DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS kpi_windows (
		end_period                VARCHAR NOT NULL,
		window_size               INTEGER NOT NULL,
		start_period              VARCHAR,
		period_count              INTEGER,
		is_partial                BOOLEAN,
		avg_occupancy_pct         DOUBLE,
		avg_collection_rate_pct   DOUBLE,
		avg_price_per_area_yr     DOUBLE,
		total_rent_base           DOUBLE,
		total_collected           DOUBLE,
		total_accounts_receivable DOUBLE,
		avg_noi_proxy             DOUBLE,
		total_noi_proxy           DOUBLE,
		avg_noi_margin_pct        DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS fact_expense_monthly (
		period       VARCHAR NOT NULL,
		category     VARCHAR NOT NULL,
		total_amount DOUBLE,
		line_count   INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS gold_meta (
		generated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS run_log (
		run_id      VARCHAR NOT NULL,
		command     VARCHAR,
		started_at  TIMESTAMP,
		finished_at TIMESTAMP,
		status      VARCHAR,
		detail      VARCHAR
	)`,
}

var _ repository.Warehouse = (*Warehouse)(nil)

// Warehouse é o armazém analítico DuckDB que guarda todo estado derivado do
// pipeline. Uma única instância é passada explicitamente a cada etapa.
type Warehouse struct {
	db       *sql.DB
	path     string
	readOnly bool
	logger   *zap.Logger
}

// Open abre (ou cria) o arquivo DuckDB e garante o schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Warehouse, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating warehouse directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	w := &Warehouse{db: db, path: path, logger: logger}
	if err := w.migrate(ctx); err != nil {
		db.Close()
		return nil, classifyOpenError(err)
	}
	logger.Debug("warehouse opened", zap.String("path", path))
	return w, nil
}

// OpenReadOnly abre o arquivo existente sem permissão de escrita, para a API.
func OpenReadOnly(ctx context.Context, path string, logger *zap.Logger) (*Warehouse, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("warehouse not found: %w", err)
	}
	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classifyOpenError(fmt.Errorf("failed to open DuckDB read-only: %w", err))
	}
	return &Warehouse{db: db, path: path, readOnly: true, logger: logger}, nil
}

// classifyOpenError traduz o conflito de lock do DuckDB, quando outro
// processo mantém o arquivo aberto para escrita, em types.ErrLockHeld.
func classifyOpenError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "Could not set lock on file") || strings.Contains(msg, "Conflicting lock") {
		return fmt.Errorf("%w: warehouse is open in another process: %v", types.ErrLockHeld, err)
	}
	return err
}

func (w *Warehouse) migrate(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := w.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create warehouse schema: %w", err)
		}
	}
	return nil
}

// Close libera a conexão.
func (w *Warehouse) Close() error { return w.db.Close() }

// Path returns the database file.
func (w *Warehouse) Path() string { return w.path }

// withTx executa fn numa transação; qualquer erro desfaz tudo.
func (w *Warehouse) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if w.readOnly {
		return fmt.Errorf("warehouse %s is open read-only", w.path)
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			w.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// insertAll prepara stmt uma vez e o executa para cada linha.
func insertAll(ctx context.Context, tx *sql.Tx, stmt string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()
	for i := 0; i < n; i++ {
		if _, err := prepared.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// nullable converte ponteiros em valores SQL (nil vira NULL).
func nullable(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullablePeriod(p entity.Period) any {
	if p.IsZero() {
		return nil
	}
	return p.String()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func utc(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
