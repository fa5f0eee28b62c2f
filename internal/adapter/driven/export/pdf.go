package export

import (
	"fmt"
	"path/filepath"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/jung-kurt/gofpdf"
)

// ExportToPDF gera o relatório de KPIs: uma página com a série mensal, uma
// com os prédios do último período e uma com as janelas móveis.
func (r *ExportRepositoryImpl) ExportToPDF(gold entity.GoldTables, filename, outputDir string) (string, error) {
	outputFilename, err := r.generateFilename(filename, outputDir, "pdf")
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	headerColor := [3]int{40, 40, 40}
	headerTextColor := [3]int{255, 255, 255}
	sectionTitleColor := [3]int{0, 0, 0}
	bodyTextColor := [3]int{50, 50, 50}
	lineColor := [3]int{200, 200, 200}
	generated := gold.GeneratedAt
	if generated.IsZero() {
		generated = r.now()
	}
	page := 0

	startPage := func(title, subtitle string) {
		pdf.AddPage()
		page++
		pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
		pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 12, tr("  "+title), "", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		pdf.CellFormat(0, 8, tr("  "+subtitle), "", 1, "L", true, 0, "")
		pdf.Ln(6)
	}

	footer := func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		footerText := fmt.Sprintf("Generated by Leasing BI Pipeline | %s", generated.Format("2006-01-02 15:04 MST"))
		pdf.CellFormat(0, 10, tr(footerText), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Page %d", page)), "", 0, "R", false, 0, "")
	}

	drawTable := func(title string, t table, widths []float64) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(sectionTitleColor[0], sectionTitleColor[1], sectionTitleColor[2])
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(7)
		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+277, pdf.GetY())
		pdf.Ln(3)

		pdf.SetFont("Arial", "B", 8)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		for i, c := range t.columns {
			pdf.CellFormat(widths[i], 7, tr(c), "B", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for n, row := range t.rows {
			fill := n%2 == 1
			pdf.SetFillColor(248, 248, 248)
			for i, cell := range row {
				align := "R"
				if i == 0 {
					align = "L"
				}
				pdf.CellFormat(widths[i], 6, tr(cleanRichTags(cell)), "", 0, align, fill, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	// Página 1: série mensal
	series := table{columns: []string{"Period", "Rent base", "Collected", "A/R", "Occupancy %", "Excl. own use %",
		"Collection %", "Price/area/yr", "Expenses", "NOI proxy", "NOI margin %", "NOI basis"}}
	for _, k := range gold.PeriodKPIs {
		series.rows = append(series.rows, []string{
			k.Period.String(), money(k.RentBase), money(k.Collected), money(k.AccountsReceivable),
			pct(k.OccupancyPct), pct(k.OccupancyPctExclOwnUse), pct(k.CollectionRatePct), money(k.PricePerAreaYr),
			fmt.Sprintf("$%.2f", k.TotalExpenses), money(k.NOIProxy), pct(k.NOIMarginPct), k.NOIBasis,
		})
	}
	startPage("Leasing KPI Report", periodSpan(gold.PeriodKPIs))
	drawTable("Monthly KPIs", series, []float64{17, 22, 22, 20, 20, 22, 20, 22, 20, 22, 20, 50})
	footer()

	// Página 2: prédios no último período com dados de locação
	if latest := latestBuildingPeriod(gold.BuildingKPIs); !latest.IsZero() {
		buildings := table{columns: []string{"Building", "Suites", "Vacant", "Own use", "Total area",
			"Occupied area", "Occupancy %", "Excl. own use %", "Rent / month"}}
		for _, b := range gold.BuildingKPIs {
			if b.Period != latest {
				continue
			}
			buildings.rows = append(buildings.rows, []string{
				b.Building, fmt.Sprint(b.SuiteCount), fmt.Sprint(b.VacantCount), fmt.Sprint(b.OwnUseCount),
				fmt.Sprintf("%.0f", b.TotalArea), fmt.Sprintf("%.0f", b.OccupiedArea),
				pct(b.OccupancyPct), pct(b.OccupancyPctExclOwnUse), fmt.Sprintf("$%.2f", b.RentMonthly),
			})
		}
		startPage("Buildings", "As of "+latest.String())
		drawTable("Building occupancy", buildings, []float64{30, 25, 25, 25, 30, 30, 30, 30, 30})
		footer()
	}

	// Página 3: janelas móveis terminando no último período
	if n := len(gold.Windows); n > 0 {
		end := gold.Windows[n-1].EndPeriod
		windows := table{columns: []string{"Window", "Start", "Periods", "Partial", "Avg occupancy %",
			"Avg collection %", "Total rent base", "Total collected", "Total NOI proxy"}}
		for _, w := range gold.Windows {
			if w.EndPeriod != end {
				continue
			}
			partial := "no"
			if w.IsPartial {
				partial = "yes"
			}
			windows.rows = append(windows.rows, []string{
				fmt.Sprintf("%dm", w.WindowSize), w.StartPeriod.String(), fmt.Sprint(w.PeriodCount), partial,
				pct(w.AvgOccupancyPct), pct(w.AvgCollectionRatePct),
				fmt.Sprintf("$%.2f", w.TotalRentBase), fmt.Sprintf("$%.2f", w.TotalCollected), fmt.Sprintf("$%.2f", w.TotalNOIProxy),
			})
		}
		startPage("Rolling Windows", "Ending "+end.String())
		drawTable("Trailing windows", windows, []float64{25, 25, 25, 25, 32, 32, 35, 35, 35})
		footer()
	}

	if err := pdf.OutputFileAndClose(outputFilename); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}

	return filepath.Abs(outputFilename)
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func periodSpan(kpis []entity.PeriodKPI) string {
	if len(kpis) == 0 {
		return "No periods loaded"
	}
	return fmt.Sprintf("Periods %s to %s", kpis[0].Period, kpis[len(kpis)-1].Period)
}

func latestBuildingPeriod(rows []entity.BuildingKPI) entity.Period {
	var latest entity.Period
	for _, b := range rows {
		if latest.IsZero() || b.Period.After(latest) {
			latest = b.Period
		}
	}
	return latest
}
