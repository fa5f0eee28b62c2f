package repository

import (
	"context"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// BronzeRepository is the append-only, period-partitioned raw store plus its
// ingestion manifest. Only committed (manifested) batches are visible.
type BronzeRepository interface {
	// Lookup returns the manifest entry for an exact (kind, period, fingerprint).
	Lookup(ctx context.Context, ref entity.BatchRef) (entity.ManifestEntry, bool, error)
	// PeriodsWithFingerprint lists every period holding the fingerprint for the kind.
	PeriodsWithFingerprint(ctx context.Context, kind entity.RecordKind, fingerprint string) ([]entity.Period, error)
	// Append writes the batch as one atomic unit and commits its manifest entry.
	Append(ctx context.Context, batch entity.TypedBatch) (entity.ManifestEntry, error)
	// Manifest lists committed batches of a kind ordered by period then ingestion time.
	Manifest(ctx context.Context, kind entity.RecordKind) ([]entity.ManifestEntry, error)
	// Read loads a committed batch back with lineage stamped on every row.
	Read(ctx context.Context, entry entity.ManifestEntry) (entity.TypedBatch, error)
	// WriteViolationReport persists a rejected batch's report next to bronze.
	WriteViolationReport(ctx context.Context, report entity.QualityReport) (string, error)
	// Root is the store's base directory, used by hive-partition readers.
	Root() string
}
