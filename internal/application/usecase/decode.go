package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// Canonical column names per record kind.
var (
	monthlyColumns = []string{"period", "rent_base", "collected", "uncollected", "leased_area", "derived_price_per_area"}
	leaseColumns   = []string{"period", "suite_id", "building", "tenant", "area", "rent_monthly", "rent_annual", "rent_per_area_year", "is_vacant", "is_own_use"}
	expenseColumns = []string{"period", "line_item", "actual_amount", "category"}

	requiredColumns = map[entity.RecordKind][]string{
		entity.KindMonthlyMetric: {"rent_base", "collected"},
		entity.KindLease:         {"suite_id", "tenant"},
		entity.KindExpense:       {"line_item", "actual_amount", "category"},
	}
)

// KnownColumns returns the canonical columns accepted for a kind.
func KnownColumns(kind entity.RecordKind) []string {
	switch kind {
	case entity.KindMonthlyMetric:
		return monthlyColumns
	case entity.KindLease:
		return leaseColumns
	case entity.KindExpense:
		return expenseColumns
	}
	return nil
}

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7, "aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
}

// rowDecoder reads typed cells from one raw row and collects problems
// instead of stopping at the first one.
type rowDecoder struct {
	index    map[string]int
	cells    []string
	row      int
	batch    entity.Period
	problems *[]types.StructuralProblem
}

func (d rowDecoder) raw(col string) string {
	i, ok := d.index[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(d.cells[i])
}

func (d rowDecoder) fail(col, format string, a ...interface{}) {
	*d.problems = append(*d.problems, types.StructuralProblem{Row: d.row, Column: col, Reason: fmt.Sprintf(format, a...)})
}

func (d rowDecoder) text(col string) string { return d.raw(col) }

func (d rowDecoder) number(col string) *float64 {
	v, err := ParseNumber(d.raw(col))
	if err != nil {
		d.fail(col, "%v", err)
		return nil
	}
	return v
}

func (d rowDecoder) flag(col string) bool {
	v, err := ParseFlag(d.raw(col))
	if err != nil {
		d.fail(col, "%v", err)
	}
	return v
}

func (d rowDecoder) period(col string) entity.Period {
	s := d.raw(col)
	if s == "" {
		return d.batch
	}
	p, err := ParsePeriodCell(s, d.batch)
	if err != nil {
		d.fail(col, "%v", err)
		return d.batch
	}
	return p
}

// DecodeBatch is the structural check in front of the bronze store: it turns
// a raw batch into typed rows or rejects the whole batch with a
// *types.StructuralError listing every problem found.
func DecodeBatch(raw entity.RawBatch, ref entity.BatchRef, source string) (entity.TypedBatch, error) {
	fail := func(problems []types.StructuralProblem) error {
		return &types.StructuralError{Kind: raw.Kind, Period: ref.AsOfMonth, Source: source, Problems: problems}
	}

	known := KnownColumns(raw.Kind)
	if known == nil {
		return entity.TypedBatch{}, fmt.Errorf("%w: %q", types.ErrUnknownRecordKind, raw.Kind)
	}
	if ref.AsOfMonth.IsZero() {
		return entity.TypedBatch{}, fail([]types.StructuralProblem{{Reason: "batch has no target reporting period"}})
	}

	var problems []types.StructuralProblem
	index := make(map[string]int, len(raw.Columns))
	for i, c := range raw.Columns {
		name := strings.ToLower(strings.TrimSpace(c))
		if _, dup := index[name]; dup {
			problems = append(problems, types.StructuralProblem{Column: name, Reason: "duplicate column"})
			continue
		}
		index[name] = i
	}
	for _, c := range requiredColumns[raw.Kind] {
		if _, ok := index[c]; !ok {
			problems = append(problems, types.StructuralProblem{Column: c, Reason: "required column missing"})
		}
	}
	if len(problems) > 0 {
		return entity.TypedBatch{}, fail(problems)
	}

	batch := entity.TypedBatch{BatchRef: ref, SourceName: source}
	batch.Kind = raw.Kind

	for i, cells := range raw.Rows {
		if len(cells) != len(raw.Columns) {
			problems = append(problems, types.StructuralProblem{
				Row:    i + 1,
				Reason: fmt.Sprintf("wrong arity: %d cells for %d columns", len(cells), len(raw.Columns)),
			})
			continue
		}
		d := rowDecoder{index: index, cells: cells, row: i + 1, batch: ref.AsOfMonth, problems: &problems}

		switch raw.Kind {
		case entity.KindMonthlyMetric:
			price := d.number("derived_price_per_area")
			if _, ok := index["derived_price_per_area"]; !ok {
				price = d.number("price_per_area")
			}
			batch.Monthly = append(batch.Monthly, entity.MonthlyMetricRow{
				Period:       d.period("period"),
				RentBase:     d.number("rent_base"),
				Collected:    d.number("collected"),
				Uncollected:  d.number("uncollected"),
				LeasedArea:   d.number("leased_area"),
				PricePerArea: price,
			})
		case entity.KindLease:
			row := entity.LeaseRow{
				Period:          d.period("period"),
				SuiteID:         strings.ToUpper(d.text("suite_id")),
				Building:        strings.ToUpper(d.text("building")),
				Tenant:          d.text("tenant"),
				Area:            d.number("area"),
				RentMonthly:     d.number("rent_monthly"),
				RentAnnual:      d.number("rent_annual"),
				RentPerAreaYear: d.number("rent_per_area_year"),
				IsVacant:        d.flag("is_vacant"),
				IsOwnUse:        d.flag("is_own_use"),
			}
			if row.Period != ref.AsOfMonth {
				d.fail("period", "lease snapshot row for %s inside batch for %s", row.Period, ref.AsOfMonth)
			}
			batch.Leases = append(batch.Leases, row)
		case entity.KindExpense:
			batch.Expenses = append(batch.Expenses, entity.ExpenseRow{
				Period:       d.period("period"),
				LineItem:     d.text("line_item"),
				ActualAmount: d.number("actual_amount"),
				Category:     strings.ToLower(d.text("category")),
			})
		}
	}

	if len(problems) > 0 {
		return entity.TypedBatch{}, fail(problems)
	}
	return batch, nil
}

// ParseNumber reads a spreadsheet number. Blank, "-", "null", "n/a" and
// "nan" are missing values. Currency symbols, thousands separators, percent
// signs and accounting parentheses are tolerated.
func ParseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "null", "none", "nan", "n/a", "na":
		return nil, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "%", "").Replace(s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unparseable number %q", s)
	}
	if negative {
		v = -v
	}
	return &v, nil
}

// ParseFlag reads a yes/no cell. Blank is false.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "f", "no", "n", "0", "0.0":
		return false, nil
	case "true", "t", "yes", "y", "1", "1.0", "x", "si", "sí":
		return true, nil
	}
	return false, fmt.Errorf("unparseable flag %q", s)
}

// ParsePeriodCell accepts YYYY-MM, YYYY-MM-DD, or a month name (English or
// Spanish, optionally followed by a year). A bare month name takes the year
// of the batch period.
func ParsePeriodCell(s string, batch entity.Period) (entity.Period, error) {
	if p, err := entity.ParsePeriod(s); err == nil {
		return p, nil
	}
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(s, "-", " ")))
	if len(fields) == 0 || len(fields) > 2 {
		return "", fmt.Errorf("unparseable period %q", s)
	}
	month, ok := monthNames[fields[0]]
	if !ok {
		return "", fmt.Errorf("unparseable period %q", s)
	}
	year := batch.Start().Year()
	if len(fields) == 2 {
		y, err := strconv.Atoi(fields[1])
		if err != nil || y < 1900 {
			return "", fmt.Errorf("unparseable period %q", s)
		}
		year = y
	}
	if year <= 1 {
		return "", fmt.Errorf("period %q has no year and the batch has no period", s)
	}
	return entity.ParsePeriod(fmt.Sprintf("%04d-%02d", year, month))
}
