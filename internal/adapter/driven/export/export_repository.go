package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/repository"
)

// ExportRepositoryImpl implementa o ExportRepository.
type ExportRepositoryImpl struct {
	now func() time.Time
}

// NewExportRepository cria uma nova implementação do ExportRepository.
func NewExportRepository() repository.ExportRepository {
	return &ExportRepositoryImpl{now: time.Now}
}

// table é uma tabela gold achatada em cabeçalho mais células de texto.
type table struct {
	name    string
	columns []string
	rows    [][]string
}

// --- Funções de Exportação das Tabelas Gold ---

// ExportToCSV grava uma planilha por tabela gold, com nomes estáveis para que
// consumidores possam apontar sempre para o mesmo arquivo.
func (r *ExportRepositoryImpl) ExportToCSV(gold entity.GoldTables, outputDir string) ([]string, error) {
	dir, err := ensureDir(outputDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, t := range flatten(gold) {
		path := filepath.Join(dir, t.name+".csv")
		if err := writeCSV(path, t); err != nil {
			return files, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return files, err
		}
		files = append(files, abs)
	}
	return files, nil
}

func writeCSV(path string, t table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(t.columns); err != nil {
		return err
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return fmt.Errorf("error writing %s: %w", t.name, err)
	}
	return nil
}

// ExportToJSON grava todas as tabelas gold num único documento.
func (r *ExportRepositoryImpl) ExportToJSON(gold entity.GoldTables, filename, outputDir string) (string, error) {
	outputFilename, err := r.generateFilename(filename, outputDir, "json")
	if err != nil {
		return "", err
	}

	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(gold); err != nil {
		return "", fmt.Errorf("error encoding JSON data: %w", err)
	}

	return filepath.Abs(outputFilename)
}

// flatten converte as tabelas gold em linhas de texto; nulos viram célula vazia.
func flatten(gold entity.GoldTables) []table {
	kpis := table{name: "prop_kpi_monthly", columns: []string{
		"period", "rent_base", "collected", "accounts_receivable", "leased_area", "total_area",
		"occupancy_pct", "occupancy_pct_excl_own_use", "collection_rate_pct", "price_per_area_yr",
		"fixed_expenses", "variable_expenses", "other_expenses", "total_expenses",
		"noi_proxy", "noi_margin_pct", "noi_basis", "has_metrics", "has_leases",
	}}
	for _, k := range gold.PeriodKPIs {
		kpis.rows = append(kpis.rows, []string{
			k.Period.String(), opt(k.RentBase), opt(k.Collected), opt(k.AccountsReceivable), opt(k.LeasedArea), num(k.TotalArea),
			opt(k.OccupancyPct), opt(k.OccupancyPctExclOwnUse), opt(k.CollectionRatePct), opt(k.PricePerAreaYr),
			num(k.FixedExpenses), num(k.VariableExpenses), num(k.OtherExpenses), num(k.TotalExpenses),
			opt(k.NOIProxy), opt(k.NOIMarginPct), k.NOIBasis, strconv.FormatBool(k.HasMetrics), strconv.FormatBool(k.HasLeases),
		})
	}

	buildings := table{name: "building_kpi_monthly", columns: []string{
		"period", "building", "suite_count", "vacant_count", "own_use_count",
		"total_area", "occupied_area", "vacant_area", "own_use_area", "effective_occupied_area",
		"occupancy_pct", "occupancy_pct_excl_own_use", "rent_monthly",
	}}
	for _, b := range gold.BuildingKPIs {
		buildings.rows = append(buildings.rows, []string{
			b.Period.String(), b.Building, strconv.Itoa(b.SuiteCount), strconv.Itoa(b.VacantCount), strconv.Itoa(b.OwnUseCount),
			num(b.TotalArea), num(b.OccupiedArea), num(b.VacantArea), num(b.OwnUseArea), num(b.EffectiveOccupiedArea),
			opt(b.OccupancyPct), opt(b.OccupancyPctExclOwnUse), num(b.RentMonthly),
		})
	}

	windows := table{name: "kpi_windows", columns: []string{
		"end_period", "window_size", "start_period", "period_count", "is_partial",
		"avg_occupancy_pct", "avg_collection_rate_pct", "avg_price_per_area_yr",
		"total_rent_base", "total_collected", "total_accounts_receivable",
		"avg_noi_proxy", "total_noi_proxy", "avg_noi_margin_pct",
	}}
	for _, w := range gold.Windows {
		windows.rows = append(windows.rows, []string{
			w.EndPeriod.String(), strconv.Itoa(w.WindowSize), w.StartPeriod.String(), strconv.Itoa(w.PeriodCount), strconv.FormatBool(w.IsPartial),
			opt(w.AvgOccupancyPct), opt(w.AvgCollectionRatePct), opt(w.AvgPricePerAreaYr),
			num(w.TotalRentBase), num(w.TotalCollected), num(w.TotalReceivable),
			opt(w.AvgNOIProxy), num(w.TotalNOIProxy), opt(w.AvgNOIMarginPct),
		})
	}

	facts := table{name: "fact_expense_monthly", columns: []string{"period", "category", "total_amount", "line_count"}}
	for _, f := range gold.ExpenseFacts {
		facts.rows = append(facts.rows, []string{f.Period.String(), f.Category, num(f.TotalAmount), strconv.Itoa(f.LineCount)})
	}

	return []table{kpis, buildings, windows, facts}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func opt(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}

// --- Funções Auxiliares ---

func ensureDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	return dir, nil
}

// generateFilename cria um nome de arquivo único com timestamp e garante que o diretório exista.
func (r *ExportRepositoryImpl) generateFilename(base, dir, ext string) (string, error) {
	dir, err := ensureDir(dir)
	if err != nil {
		return "", err
	}
	timestamp := r.now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", base, timestamp, ext)
	return filepath.Join(dir, filename), nil
}

// Regex para limpar formatação pterm (rich tags) e sequências ANSI de cor/estilo.
var richTagRegex = regexp.MustCompile(`\[/?([a-zA-Z]+|#[0-9a-fA-F]{6})\]`)
var ansiRegex = regexp.MustCompile(`\x1B\[[0-9;]*[A-Za-z]`)

// cleanRichTags remove tags de formatação do pterm e sequências ANSI.
func cleanRichTags(text string) string {
	text = richTagRegex.ReplaceAllString(text, "")
	text = ansiRegex.ReplaceAllString(text, "")
	return text
}
