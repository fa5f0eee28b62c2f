package entity

import "time"

// RawBatch is a normalized table of one record kind as produced by the
// source extractor: a header plus string cells, not yet typed.
type RawBatch struct {
	Kind    RecordKind
	Columns []string
	Rows    [][]string
}

// Extraction is everything pulled from one source file.
type Extraction struct {
	SourceName  string
	Fingerprint string
	AsOfMonth   Period
	Batches     []RawBatch
}

// BatchRef identifies one ingested file's rows inside one partition.
type BatchRef struct {
	Kind        RecordKind `json:"kind"`
	AsOfMonth   Period     `json:"as_of_month"`
	Fingerprint string     `json:"fingerprint"`
}

// ShortFingerprint is the first 8 hex characters, for display and file names.
func (r BatchRef) ShortFingerprint() string {
	if len(r.Fingerprint) <= 8 {
		return r.Fingerprint
	}
	return r.Fingerprint[:8]
}

// TypedBatch is a structurally valid batch ready for the bronze store.
// Only the slice matching Kind is populated.
type TypedBatch struct {
	BatchRef
	IngestedAt time.Time
	SourceName string
	Monthly    []MonthlyMetricRow
	Leases     []LeaseRow
	Expenses   []ExpenseRow
}

// RowCount returns the number of rows of the batch's kind.
func (b TypedBatch) RowCount() int {
	switch b.Kind {
	case KindMonthlyMetric:
		return len(b.Monthly)
	case KindLease:
		return len(b.Leases)
	case KindExpense:
		return len(b.Expenses)
	}
	return 0
}

// Stamp writes the batch lineage onto every row.
func (b *TypedBatch) Stamp() {
	lin := Lineage{AsOfMonth: b.AsOfMonth, Fingerprint: b.Fingerprint, IngestedAt: b.IngestedAt}
	for i := range b.Monthly {
		b.Monthly[i].Lineage = lin
	}
	for i := range b.Leases {
		b.Leases[i].Lineage = lin
	}
	for i := range b.Expenses {
		b.Expenses[i].Lineage = lin
	}
}

// ManifestEntry records one committed bronze batch. The manifest is the
// index of visible bronze data and the dedup source of truth.
type ManifestEntry struct {
	BatchRef
	IngestedAt time.Time `json:"ingested_at"`
	RowCount   int       `json:"row_count"`
	File       string    `json:"file"`
	SourceName string    `json:"source_name"`
}

// IngestStatus is the outcome of a bronze write.
type IngestStatus string

const (
	IngestWritten          IngestStatus = "written"
	IngestDuplicateSkipped IngestStatus = "skipped_duplicate"
)

// IngestResult reports what the bronze writer did with one batch. For a
// duplicate, RowCount is the count previously written.
type IngestResult struct {
	BatchRef
	Status       IngestStatus
	RowCount     int
	File         string
	OtherPeriods []Period
	PreviouslyAt time.Time
}

// BronzeAuditRow summarises bronze rows per partition and fingerprint.
type BronzeAuditRow struct {
	AsOfMonth   Period    `json:"as_of_month"`
	Fingerprint string    `json:"fingerprint"`
	RowCount    int       `json:"row_count"`
	IngestedAt  time.Time `json:"ingested_at"`
	Status      string    `json:"status"`
	Staged      bool      `json:"staged"`
}
