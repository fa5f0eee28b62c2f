package bronze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
)

const manifestFile = "_manifest.json"

// manifest é o índice dos lotes visíveis de uma tabela bronze.
type manifest struct {
	Table   string                 `json:"table"`
	Entries []entity.ManifestEntry `json:"entries"`
}

// BronzeRepository implementa o BronzeRepository sobre arquivos parquet
// particionados no estilo hive (<tabela>/as_of_month=YYYY-MM/).
type BronzeRepository struct {
	root   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewBronzeRepository cria o repositório, garantindo que a raiz exista.
func NewBronzeRepository(root string, logger *zap.Logger) (*BronzeRepository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating bronze root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &BronzeRepository{root: abs, logger: logger}, nil
}

// Root returns the absolute bronze directory.
func (r *BronzeRepository) Root() string { return r.root }

// PartitionDir returns the hive partition directory of a kind and period.
func (r *BronzeRepository) PartitionDir(kind entity.RecordKind, period entity.Period) string {
	return filepath.Join(r.root, kind.BronzeTable(), "as_of_month="+period.String())
}

func (r *BronzeRepository) manifestPath(kind entity.RecordKind) string {
	return filepath.Join(r.root, kind.BronzeTable(), manifestFile)
}

func (r *BronzeRepository) loadManifest(kind entity.RecordKind) (manifest, error) {
	m := manifest{Table: kind.BronzeTable()}
	data, err := os.ReadFile(r.manifestPath(kind))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding manifest %s: %w", r.manifestPath(kind), err)
	}
	return m, nil
}

// saveManifest regrava o manifesto via arquivo temporário + rename; o rename
// é o ponto de commit do lote.
func (r *BronzeRepository) saveManifest(kind entity.RecordKind, m manifest) error {
	sort.SliceStable(m.Entries, func(i, j int) bool {
		a, b := m.Entries[i], m.Entries[j]
		if a.AsOfMonth != b.AsOfMonth {
			return a.AsOfMonth.Before(b.AsOfMonth)
		}
		return a.IngestedAt.Before(b.IngestedAt)
	})
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(r.manifestPath(kind), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Lookup procura um lote exato no manifesto.
func (r *BronzeRepository) Lookup(ctx context.Context, ref entity.BatchRef) (entity.ManifestEntry, bool, error) {
	m, err := r.loadManifest(ref.Kind)
	if err != nil {
		return entity.ManifestEntry{}, false, err
	}
	for _, e := range m.Entries {
		if e.BatchRef == ref {
			return e, true, nil
		}
	}
	return entity.ManifestEntry{}, false, nil
}

// PeriodsWithFingerprint lista os períodos em que o conteúdo já foi ingerido.
func (r *BronzeRepository) PeriodsWithFingerprint(ctx context.Context, kind entity.RecordKind, fingerprint string) ([]entity.Period, error) {
	m, err := r.loadManifest(kind)
	if err != nil {
		return nil, err
	}
	var out []entity.Period
	for _, e := range m.Entries {
		if e.Fingerprint == fingerprint {
			out = append(out, e.AsOfMonth)
		}
	}
	return out, nil
}

// Manifest lista os lotes confirmados de um tipo.
func (r *BronzeRepository) Manifest(ctx context.Context, kind entity.RecordKind) ([]entity.ManifestEntry, error) {
	m, err := r.loadManifest(kind)
	if err != nil {
		return nil, err
	}
	return m.Entries, nil
}

// Append grava o lote inteiro num único arquivo parquet e só então o
// registra no manifesto. Um lote já registrado não é regravado.
func (r *BronzeRepository) Append(ctx context.Context, batch entity.TypedBatch) (entity.ManifestEntry, error) {
	if err := ctx.Err(); err != nil {
		return entity.ManifestEntry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.loadManifest(batch.Kind)
	if err != nil {
		return entity.ManifestEntry{}, err
	}
	for _, e := range m.Entries {
		if e.BatchRef == batch.BatchRef {
			return e, nil
		}
	}

	// Parquet guarda milissegundos; o manifesto precisa do mesmo instante.
	batch.IngestedAt = batch.IngestedAt.UTC().Truncate(time.Millisecond)
	batch.Stamp()

	dir := r.PartitionDir(batch.Kind, batch.AsOfMonth)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entity.ManifestEntry{}, fmt.Errorf("creating partition: %w", err)
	}
	name := fmt.Sprintf("%s_%s.parquet", batch.Kind.BronzeTable(), batch.Fingerprint)
	path := filepath.Join(dir, name)

	if err := writeAtomic(path, func(w io.Writer) error { return writeRows(w, batch) }); err != nil {
		return entity.ManifestEntry{}, fmt.Errorf("writing %s: %w", name, err)
	}

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return entity.ManifestEntry{}, err
	}
	entry := entity.ManifestEntry{
		BatchRef:   batch.BatchRef,
		IngestedAt: batch.IngestedAt,
		RowCount:   batch.RowCount(),
		File:       filepath.ToSlash(rel),
		SourceName: batch.SourceName,
	}
	m.Entries = append(m.Entries, entry)
	if err := r.saveManifest(batch.Kind, m); err != nil {
		return entity.ManifestEntry{}, fmt.Errorf("committing manifest: %w", err)
	}

	r.logger.Debug("bronze batch committed",
		zap.String("table", batch.Kind.BronzeTable()),
		zap.String("file", entry.File),
		zap.Int("rows", entry.RowCount))
	return entry, nil
}

func writeRows(w io.Writer, batch entity.TypedBatch) error {
	switch batch.Kind {
	case entity.KindMonthlyMetric:
		return writeParquet(w, toMonthlyRecords(batch))
	case entity.KindLease:
		return writeParquet(w, toLeaseRecords(batch))
	case entity.KindExpense:
		return writeParquet(w, toExpenseRecords(batch))
	}
	return fmt.Errorf("unknown record kind %q", batch.Kind)
}

func writeParquet[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return writer.Close()
}

// Read carrega de volta um lote confirmado.
func (r *BronzeRepository) Read(ctx context.Context, entry entity.ManifestEntry) (entity.TypedBatch, error) {
	if err := ctx.Err(); err != nil {
		return entity.TypedBatch{}, err
	}
	batch := entity.TypedBatch{BatchRef: entry.BatchRef, IngestedAt: entry.IngestedAt, SourceName: entry.SourceName}
	path := filepath.Join(r.root, filepath.FromSlash(entry.File))

	switch entry.Kind {
	case entity.KindMonthlyMetric:
		rows, err := parquet.ReadFile[monthlyRecord](path)
		if err != nil {
			return batch, fmt.Errorf("reading %s: %w", entry.File, err)
		}
		for _, row := range rows {
			batch.Monthly = append(batch.Monthly, row.toEntity(entry.AsOfMonth))
		}
	case entity.KindLease:
		rows, err := parquet.ReadFile[leaseRecord](path)
		if err != nil {
			return batch, fmt.Errorf("reading %s: %w", entry.File, err)
		}
		for _, row := range rows {
			batch.Leases = append(batch.Leases, row.toEntity(entry.AsOfMonth))
		}
	case entity.KindExpense:
		rows, err := parquet.ReadFile[expenseRecord](path)
		if err != nil {
			return batch, fmt.Errorf("reading %s: %w", entry.File, err)
		}
		for _, row := range rows {
			batch.Expenses = append(batch.Expenses, row.toEntity(entry.AsOfMonth))
		}
	default:
		return batch, fmt.Errorf("unknown record kind %q", entry.Kind)
	}

	if batch.RowCount() != entry.RowCount {
		return batch, fmt.Errorf("bronze file %s holds %d rows, manifest says %d", entry.File, batch.RowCount(), entry.RowCount)
	}
	return batch, nil
}

// WriteViolationReport grava o relatório de violações ao lado do bronze.
func (r *BronzeRepository) WriteViolationReport(ctx context.Context, report entity.QualityReport) (string, error) {
	dir := filepath.Join(r.root, "_errors", report.Kind.BronzeTable(), "as_of_month="+report.AsOfMonth.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("violations_%s_%s.json", report.ShortFingerprint(), report.CheckedAt.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic escreve em um temporário no mesmo diretório e renomeia.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pending-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
