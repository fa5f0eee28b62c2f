package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepo() *SourceRepository {
	return NewSourceRepository(types.SourceConfig{
		VacancyPatterns: []string{"vacante", "vacant", "disponible", "available"},
		OwnUsePatterns:  []string{"black label", "owner use", "uso propio", "101b"},
	}, []string{"A", "B"}, zap.NewNop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_YAMLWorkbook(t *testing.T) {
	path := writeFile(t, "workbook.yaml", `
as_of_month: "2025-03"
monthly:
  columns: [Month, Rent Base, Collected, Leased SqFt]
  rows:
    - [January, 19130, 19130, 8240]
    - [February, 15036, 15036, 8820]
    - [null, null, null, null]
leases:
  columns: [Suite, Inquilino, m2, Renta Mensual, Renta Anual]
  rows:
    - [A101, Acme LLC, 1200, 2400, 28800]
    - [101B, Black Label Studio, 300, 0, 0]
    - [B201, Vacante, 500, 0, 0]
expenses:
  columns: [Concepto, Real, Categoria]
  rows:
    - [Security, 1500.5, fixed]
`)

	ext, err := newRepo().Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, entity.Period("2025-03"), ext.AsOfMonth)
	assert.Len(t, ext.Fingerprint, 64)
	assert.Equal(t, "workbook.yaml", ext.SourceName)
	require.Len(t, ext.Batches, 3)

	monthly := ext.Batches[0]
	assert.Equal(t, entity.KindMonthlyMetric, monthly.Kind)
	assert.Equal(t, []string{"period", "rent_base", "collected", "leased_area"}, monthly.Columns)
	require.Len(t, monthly.Rows, 2, "blank rows are dropped")
	assert.Equal(t, []string{"January", "19130", "19130", "8240"}, monthly.Rows[0])

	leases := ext.Batches[1]
	assert.Equal(t, []string{"suite_id", "tenant", "area", "rent_monthly", "rent_annual", "is_vacant", "is_own_use", "building", "rent_per_area_year"}, leases.Columns)
	assert.Equal(t, []string{"A101", "Acme LLC", "1200", "2400", "28800", "false", "false", "A", "24.0000"}, leases.Rows[0])
	assert.Equal(t, "true", leases.Rows[1][6], "own-use pattern")
	assert.Equal(t, "B", leases.Rows[1][7])
	assert.Equal(t, "true", leases.Rows[2][5], "vacancy pattern")

	expenses := ext.Batches[2]
	assert.Equal(t, []string{"line_item", "actual_amount", "category"}, expenses.Columns)
	assert.Equal(t, "1500.5", expenses.Rows[0][1])
}

func TestExtract_JSONWorkbook(t *testing.T) {
	path := writeFile(t, "export.json", `{"as_of_month": "2025-04", "monthly": {"columns": ["period", "rent_base", "collected"], "rows": [["2025-04", 100, 95.5]]}}`)

	ext, err := newRepo().Extract(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, ext.Batches, 1)
	assert.Equal(t, []string{"2025-04", "100", "95.5"}, ext.Batches[0].Rows[0])
}

func TestExtract_CSVKindAndPeriodFromName(t *testing.T) {
	path := writeFile(t, "lease_roster_2025_02.csv", "Suite,Tenant,Building,is_vacant\nA101,Acme,A,no\n\nB201,Vacant,B,yes\n")

	ext, err := newRepo().Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, entity.Period("2025-02"), ext.AsOfMonth)
	require.Len(t, ext.Batches, 1)
	batch := ext.Batches[0]
	assert.Equal(t, entity.KindLease, batch.Kind)
	assert.Len(t, batch.Rows, 2)
	assert.Equal(t, "yes", batch.Rows[1][3], "explicit flags are not re-derived")
}

func TestExtract_PeriodPrecedence(t *testing.T) {
	path := writeFile(t, "dashboard_2025-01.yaml", "as_of_month: \"2025-02\"\nmonthly:\n  columns: [rent_base, collected]\n  rows: [[1, 1]]\n")

	ext, err := newRepo().Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, entity.Period("2025-02"), ext.AsOfMonth, "document beats file name")

	ext, err = newRepo().Extract(context.Background(), path, "2025-06")
	require.NoError(t, err)
	assert.Equal(t, entity.Period("2025-06"), ext.AsOfMonth, "explicit --as-of beats everything")
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		target  error
	}{
		{"no period anywhere", "dashboard.csv", "rent_base,collected\n1,1\n", types.ErrPeriodNotDetected},
		{"unknown kind", "stuff_2025-01.csv", "a,b\n1,2\n", types.ErrUnknownRecordKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRepo().Extract(context.Background(), writeFile(t, tt.file, tt.content), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), err.Error())
		})
	}

	_, err := newRepo().Extract(context.Background(), writeFile(t, "book_2025-01.xlsx", "x"), "")
	assert.ErrorContains(t, err, "unsupported source format")
}

func TestExtract_FingerprintIsContentHash(t *testing.T) {
	a := writeFile(t, "dashboard_2025-01.csv", "rent_base,collected\n1,1\n")
	b := writeFile(t, "dashboard_2025-02.csv", "rent_base,collected\n1,1\n")
	c := writeFile(t, "dashboard_2025-03.csv", "rent_base,collected\n1,2\n")

	repo := newRepo()
	ea, err := repo.Extract(context.Background(), a, "")
	require.NoError(t, err)
	eb, err := repo.Extract(context.Background(), b, "")
	require.NoError(t, err)
	ec, err := repo.Extract(context.Background(), c, "")
	require.NoError(t, err)

	assert.Equal(t, ea.Fingerprint, eb.Fingerprint)
	assert.NotEqual(t, ea.Fingerprint, ec.Fingerprint)
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"  Renta   Mensual ": "rent_monthly",
		"Unidad":            "suite_id",
		"sqft":              "area",
		"Leased SqFt":       "leased_area",
		"Some Other-Col":    "some_other_col",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}
