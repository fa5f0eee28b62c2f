package bronze

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ingested = time.Date(2025, 3, 5, 10, 30, 0, 123456789, time.UTC)

func newRepo(t *testing.T) *BronzeRepository {
	t.Helper()
	repo, err := NewBronzeRepository(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return repo
}

func monthlyBatch(period, fp string, at time.Time) entity.TypedBatch {
	return entity.TypedBatch{
		BatchRef:   entity.BatchRef{Kind: entity.KindMonthlyMetric, AsOfMonth: entity.Period(period), Fingerprint: fp},
		IngestedAt: at,
		SourceName: "dashboard_" + period + ".csv",
		Monthly: []entity.MonthlyMetricRow{
			{Period: "2025-01", RentBase: entity.Float(19130), Collected: entity.Float(19130), LeasedArea: entity.Float(8240)},
			{Period: "2025-02", RentBase: entity.Float(15036), Collected: nil},
		},
	}
}

func TestAppendAndRead_RoundTripsRowsWithLineage(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	entry, err := repo.Append(ctx, monthlyBatch("2025-03", "abc123", ingested))
	require.NoError(t, err)
	assert.Equal(t, 2, entry.RowCount)
	assert.Equal(t, "raw_dashboard_monthly/as_of_month=2025-03/raw_dashboard_monthly_abc123.parquet", entry.File)
	assert.Equal(t, ingested.Truncate(time.Millisecond), entry.IngestedAt)
	assert.FileExists(t, filepath.Join(repo.Root(), filepath.FromSlash(entry.File)))

	batch, err := repo.Read(ctx, entry)
	require.NoError(t, err)
	require.Len(t, batch.Monthly, 2)

	first := batch.Monthly[0]
	assert.Equal(t, entity.Period("2025-01"), first.Period)
	assert.Equal(t, 19130.0, *first.RentBase)
	assert.Nil(t, first.Uncollected)
	assert.Equal(t, entity.Period("2025-03"), first.AsOfMonth)
	assert.Equal(t, "abc123", first.Fingerprint)
	assert.True(t, entry.IngestedAt.Equal(first.IngestedAt))
	assert.Nil(t, batch.Monthly[1].Collected)
}

func TestAppend_LeaseAndExpenseTables(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	lease := entity.TypedBatch{
		BatchRef:   entity.BatchRef{Kind: entity.KindLease, AsOfMonth: "2025-03", Fingerprint: "f1"},
		IngestedAt: ingested,
		Leases: []entity.LeaseRow{
			{Period: "2025-03", SuiteID: "A101", Building: "A", Tenant: "Acme", Area: entity.Float(1200), RentMonthly: entity.Float(2400)},
			{Period: "2025-03", SuiteID: "B201", Building: "B", Tenant: "Vacant", Area: entity.Float(500), IsVacant: true},
		},
	}
	expense := entity.TypedBatch{
		BatchRef:   entity.BatchRef{Kind: entity.KindExpense, AsOfMonth: "2025-03", Fingerprint: "f1"},
		IngestedAt: ingested,
		Expenses:   []entity.ExpenseRow{{Period: "2025-03", LineItem: "Security", ActualAmount: entity.Float(1500.5), Category: "fixed"}},
	}

	le, err := repo.Append(ctx, lease)
	require.NoError(t, err)
	ee, err := repo.Append(ctx, expense)
	require.NoError(t, err)

	got, err := repo.Read(ctx, le)
	require.NoError(t, err)
	require.Len(t, got.Leases, 2)
	assert.True(t, got.Leases[1].IsVacant)
	assert.Nil(t, got.Leases[1].RentMonthly)
	assert.Equal(t, "A", got.Leases[0].Building)

	gotExp, err := repo.Read(ctx, ee)
	require.NoError(t, err)
	require.Len(t, gotExp.Expenses, 1)
	assert.Equal(t, "Security", gotExp.Expenses[0].LineItem)
	assert.Equal(t, 1500.5, *gotExp.Expenses[0].ActualAmount)
}

func TestLookup_FindsCommittedBatchOnly(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	batch := monthlyBatch("2025-03", "abc123", ingested)

	_, found, err := repo.Lookup(ctx, batch.BatchRef)
	require.NoError(t, err)
	assert.False(t, found)

	first, err := repo.Append(ctx, batch)
	require.NoError(t, err)

	entry, found, err := repo.Lookup(ctx, batch.BatchRef)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, first, entry)

	again, err := repo.Append(ctx, monthlyBatch("2025-03", "abc123", ingested.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, first.IngestedAt, again.IngestedAt, "re-append keeps the original entry")

	entries, err := repo.Manifest(ctx, entity.KindMonthlyMetric)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPeriodsWithFingerprint(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, monthlyBatch("2025-01", "same", ingested))
	require.NoError(t, err)
	_, err = repo.Append(ctx, monthlyBatch("2025-02", "same", ingested.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.Append(ctx, monthlyBatch("2025-02", "other", ingested.Add(2*time.Minute)))
	require.NoError(t, err)

	periods, err := repo.PeriodsWithFingerprint(ctx, entity.KindMonthlyMetric, "same")
	require.NoError(t, err)
	assert.Equal(t, []entity.Period{"2025-01", "2025-02"}, periods)

	periods, err = repo.PeriodsWithFingerprint(ctx, entity.KindLease, "same")
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestManifest_OrderedByPeriodThenIngestion(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, monthlyBatch("2025-02", "late", ingested.Add(time.Hour)))
	require.NoError(t, err)
	_, err = repo.Append(ctx, monthlyBatch("2025-02", "early", ingested))
	require.NoError(t, err)
	_, err = repo.Append(ctx, monthlyBatch("2025-01", "jan", ingested.Add(2*time.Hour)))
	require.NoError(t, err)

	entries, err := repo.Manifest(ctx, entity.KindMonthlyMetric)
	require.NoError(t, err)
	var fps []string
	for _, e := range entries {
		fps = append(fps, e.Fingerprint)
	}
	assert.Equal(t, []string{"jan", "early", "late"}, fps)
}

func TestAppend_EmptyBatchIsCommitted(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	batch := entity.TypedBatch{
		BatchRef:   entity.BatchRef{Kind: entity.KindExpense, AsOfMonth: "2025-04", Fingerprint: "empty"},
		IngestedAt: ingested,
	}

	entry, err := repo.Append(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.RowCount)

	got, err := repo.Read(ctx, entry)
	require.NoError(t, err)
	assert.Empty(t, got.Expenses)
}

func TestAppend_LeavesNoPendingFiles(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Append(context.Background(), monthlyBatch("2025-03", "abc", ingested))
	require.NoError(t, err)

	err = filepath.WalkDir(repo.Root(), func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(d.Name(), ".pending-"), path)
		return nil
	})
	require.NoError(t, err)
}

func TestAppend_CancelledContext(t *testing.T) {
	repo := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Append(ctx, monthlyBatch("2025-03", "abc", ingested))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRead_RowCountMismatch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	entry, err := repo.Append(ctx, monthlyBatch("2025-03", "abc", ingested))
	require.NoError(t, err)

	entry.RowCount = 5
	_, err = repo.Read(ctx, entry)
	assert.ErrorContains(t, err, "manifest says 5")
}

func TestWriteViolationReport(t *testing.T) {
	repo := newRepo(t)
	report := entity.QualityReport{
		BatchRef:  entity.BatchRef{Kind: entity.KindLease, AsOfMonth: "2025-03", Fingerprint: "0123456789abcdef"},
		RowCount:  3,
		CheckedAt: time.Date(2025, 3, 6, 8, 0, 0, 0, time.UTC),
		Violations: []entity.Violation{
			{RowIndex: 1, RowKey: "A101", Rule: "rent_non_negative", Column: "rent_monthly", Observed: "-10"},
		},
	}

	path, err := repo.WriteViolationReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(repo.Root(), "_errors", "raw_lease_rate_snapshot", "as_of_month=2025-03", "violations_01234567_20250306T080000Z.json"),
		path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded entity.QualityReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Violations, decoded.Violations)
	assert.Equal(t, report.Fingerprint, decoded.Fingerprint)
}
