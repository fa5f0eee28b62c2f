package source

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var periodInName = regexp.MustCompile(`(20\d{2})[-_](0[1-9]|1[0-2])`)

// sheet é uma tabela exportada da planilha: cabeçalho mais linhas.
type sheet struct {
	Columns []string        `json:"columns" yaml:"columns"`
	Rows    [][]interface{} `json:"rows" yaml:"rows"`
}

// workbook é a exportação YAML/JSON da planilha inteira.
type workbook struct {
	AsOfMonth string `json:"as_of_month" yaml:"as_of_month"`
	Monthly   *sheet `json:"monthly" yaml:"monthly"`
	Leases    *sheet `json:"leases" yaml:"leases"`
	Expenses  *sheet `json:"expenses" yaml:"expenses"`
}

// SourceRepository implementa o SourceRepository para exportações CSV, YAML e JSON.
type SourceRepository struct {
	vacancyPatterns []string
	ownUsePatterns  []string
	buildings       []string
	logger          *zap.Logger
}

// NewSourceRepository cria um novo extrator.
func NewSourceRepository(cfg types.SourceConfig, buildings []string, logger *zap.Logger) *SourceRepository {
	return &SourceRepository{
		vacancyPatterns: lowerAll(cfg.VacancyPatterns),
		ownUsePatterns:  lowerAll(cfg.OwnUsePatterns),
		buildings:       buildings,
		logger:          logger,
	}
}

// Extract lê um arquivo de origem e devolve as tabelas normalizadas.
func (r *SourceRepository) Extract(ctx context.Context, path string, asOf entity.Period) (entity.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return entity.Extraction{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Extraction{}, fmt.Errorf("reading source: %w", err)
	}
	sum := sha256.Sum256(data)

	extraction := entity.Extraction{
		SourceName:  filepath.Base(path),
		Fingerprint: hex.EncodeToString(sum[:]),
	}

	var docPeriod string
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		var wb workbook
		if ext == ".json" {
			err = json.Unmarshal(data, &wb)
		} else {
			err = yaml.Unmarshal(data, &wb)
		}
		if err != nil {
			return extraction, fmt.Errorf("parsing %s: %w", extraction.SourceName, err)
		}
		docPeriod = wb.AsOfMonth
		for _, s := range []struct {
			kind  entity.RecordKind
			sheet *sheet
		}{
			{entity.KindMonthlyMetric, wb.Monthly},
			{entity.KindLease, wb.Leases},
			{entity.KindExpense, wb.Expenses},
		} {
			if s.sheet != nil {
				extraction.Batches = append(extraction.Batches, s.sheet.toRaw(s.kind))
			}
		}
	case ".csv":
		kind, err := kindFromName(extraction.SourceName)
		if err != nil {
			return extraction, err
		}
		batch, err := readCSV(data, kind)
		if err != nil {
			return extraction, fmt.Errorf("parsing %s: %w", extraction.SourceName, err)
		}
		extraction.Batches = append(extraction.Batches, batch)
	default:
		return extraction, fmt.Errorf("unsupported source format %q (expected .csv, .yaml, .yml or .json)", ext)
	}

	extraction.AsOfMonth, err = detectPeriod(asOf, docPeriod, extraction.SourceName)
	if err != nil {
		return extraction, err
	}

	for i := range extraction.Batches {
		if extraction.Batches[i].Kind == entity.KindLease {
			r.deriveLeaseColumns(&extraction.Batches[i])
		}
	}

	r.logger.Debug("source parsed",
		zap.String("source", extraction.SourceName),
		zap.String("format", ext),
		zap.String("period", extraction.AsOfMonth.String()),
		zap.Int("batches", len(extraction.Batches)))
	return extraction, nil
}

// detectPeriod: --as-of explícito, depois o documento, depois o nome do arquivo.
func detectPeriod(asOf entity.Period, docPeriod, name string) (entity.Period, error) {
	if !asOf.IsZero() {
		return asOf, nil
	}
	if strings.TrimSpace(docPeriod) != "" {
		return entity.ParsePeriod(docPeriod)
	}
	if m := periodInName.FindStringSubmatch(name); m != nil {
		return entity.ParsePeriod(m[1] + "-" + m[2])
	}
	return "", fmt.Errorf("%w: %s", types.ErrPeriodNotDetected, name)
}

func kindFromName(name string) (entity.RecordKind, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "expense"), strings.Contains(lower, "gastos"):
		return entity.KindExpense, nil
	case strings.Contains(lower, "lease"), strings.Contains(lower, "rate"), strings.Contains(lower, "roster"):
		return entity.KindLease, nil
	case strings.Contains(lower, "dashboard"), strings.Contains(lower, "monthly"), strings.Contains(lower, "metric"):
		return entity.KindMonthlyMetric, nil
	}
	return "", fmt.Errorf("%w: cannot infer record kind from file name %q", types.ErrUnknownRecordKind, name)
}

func readCSV(data []byte, kind entity.RecordKind) (entity.RawBatch, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return entity.RawBatch{}, err
	}
	if len(records) == 0 {
		return entity.RawBatch{}, fmt.Errorf("empty csv: no header row")
	}

	batch := entity.RawBatch{Kind: kind}
	for _, h := range records[0] {
		batch.Columns = append(batch.Columns, normalizeHeader(h))
	}
	for _, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		batch.Rows = append(batch.Rows, rec)
	}
	return batch, nil
}

func (s *sheet) toRaw(kind entity.RecordKind) entity.RawBatch {
	batch := entity.RawBatch{Kind: kind}
	for _, h := range s.Columns {
		batch.Columns = append(batch.Columns, normalizeHeader(h))
	}
	for _, row := range s.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellString(v)
		}
		if blankRow(cells) {
			continue
		}
		batch.Rows = append(batch.Rows, cells)
	}
	return batch
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// deriveLeaseColumns preenche colunas ausentes do rol de locações a partir
// do inquilino e do identificador da unidade.
func (r *SourceRepository) deriveLeaseColumns(batch *entity.RawBatch) {
	index := make(map[string]int, len(batch.Columns))
	for i, c := range batch.Columns {
		index[c] = i
	}
	cell := func(row []string, col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	derive := func(col string, fn func(row []string) string) {
		if _, ok := index[col]; ok {
			return
		}
		batch.Columns = append(batch.Columns, col)
		for i, row := range batch.Rows {
			// Linhas com aridade errada ficam como estão para o decode rejeitar.
			if len(row) == len(batch.Columns)-1 {
				batch.Rows[i] = append(row, fn(row))
			}
		}
		index[col] = len(batch.Columns) - 1
	}

	derive("is_vacant", func(row []string) string {
		return strconv.FormatBool(containsAny(cell(row, "tenant"), r.vacancyPatterns))
	})
	derive("is_own_use", func(row []string) string {
		return strconv.FormatBool(containsAny(cell(row, "tenant")+" "+cell(row, "suite_id"), r.ownUsePatterns))
	})
	derive("building", func(row []string) string {
		return r.buildingOf(cell(row, "suite_id"))
	})
	if _, ok := index["rent_annual"]; ok {
		if _, ok := index["area"]; ok {
			derive("rent_per_area_year", func(row []string) string {
				annual, okA := parseLoose(cell(row, "rent_annual"))
				area, okB := parseLoose(cell(row, "area"))
				if !okA || !okB || area <= 0 {
					return ""
				}
				return strconv.FormatFloat(annual/area, 'f', 4, 64)
			})
		}
	}
}

// buildingOf devolve o primeiro código de prédio presente no id da unidade.
func (r *SourceRepository) buildingOf(suiteID string) string {
	upper := strings.ToUpper(suiteID)
	for _, ch := range upper {
		for _, b := range r.buildings {
			if strings.EqualFold(string(ch), strings.TrimSpace(b)) {
				return strings.ToUpper(strings.TrimSpace(b))
			}
		}
	}
	return ""
}

func containsAny(s string, patterns []string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func parseLoose(s string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(cleaned, 64)
	return v, err == nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
