package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// Rule categories, following the usual completeness/validity/uniqueness split.
const (
	RuleCompleteness = "completeness"
	RuleValidity     = "validity"
	RuleUniqueness   = "uniqueness"
)

// Rule is one row-level constraint over a typed row. Check returns false
// and the observed value when the row violates it.
type Rule[R any] struct {
	Name   string
	Type   string
	Column string
	Check  func(R) (ok bool, observed string)
}

// QualityGate holds the declared rule set per record kind.
type QualityGate struct {
	monthly  []Rule[entity.MonthlyMetricRow]
	leases   []Rule[entity.LeaseRow]
	expenses []Rule[entity.ExpenseRow]
}

// NewQualityGate builds the rule set. Buildings and categories are the
// accepted codes; matching is case-insensitive.
func NewQualityGate(buildings, categories []string) *QualityGate {
	allowedBuildings := toSet(buildings, strings.ToUpper)
	allowedCategories := toSet(categories, strings.ToLower)

	return &QualityGate{
		monthly: []Rule[entity.MonthlyMetricRow]{
			{Name: "period_required", Type: RuleCompleteness, Column: "period",
				Check: func(r entity.MonthlyMetricRow) (bool, string) { return !r.Period.IsZero(), "" }},
			nonNegative("rent_base", func(r entity.MonthlyMetricRow) *float64 { return r.RentBase }),
			nonNegative("collected", func(r entity.MonthlyMetricRow) *float64 { return r.Collected }),
			nonNegative("leased_area", func(r entity.MonthlyMetricRow) *float64 { return r.LeasedArea }),
			nonNegative("derived_price_per_area", func(r entity.MonthlyMetricRow) *float64 { return r.PricePerArea }),
		},
		leases: []Rule[entity.LeaseRow]{
			required("suite_id", func(r entity.LeaseRow) string { return r.SuiteID }),
			required("tenant", func(r entity.LeaseRow) string { return r.Tenant }),
			{Name: "building_in_set", Type: RuleValidity, Column: "building",
				Check: func(r entity.LeaseRow) (bool, string) {
					if r.Building == "" {
						return true, ""
					}
					_, ok := allowedBuildings[strings.ToUpper(r.Building)]
					return ok, r.Building
				}},
			nonNegative("area", func(r entity.LeaseRow) *float64 { return r.Area }),
			nonNegative("rent_monthly", func(r entity.LeaseRow) *float64 { return r.RentMonthly }),
			nonNegative("rent_annual", func(r entity.LeaseRow) *float64 { return r.RentAnnual }),
			nonNegative("rent_per_area_year", func(r entity.LeaseRow) *float64 { return r.RentPerAreaYear }),
		},
		expenses: []Rule[entity.ExpenseRow]{
			required("line_item", func(r entity.ExpenseRow) string { return r.LineItem }),
			{Name: "actual_amount_required", Type: RuleCompleteness, Column: "actual_amount",
				Check: func(r entity.ExpenseRow) (bool, string) { return r.ActualAmount != nil, "null" }},
			nonNegative("actual_amount", func(r entity.ExpenseRow) *float64 { return r.ActualAmount }),
			{Name: "category_in_set", Type: RuleValidity, Column: "category",
				Check: func(r entity.ExpenseRow) (bool, string) {
					_, ok := allowedCategories[strings.ToLower(r.Category)]
					return ok, r.Category
				}},
		},
	}
}

// Validate checks every row of the batch and returns the report. The
// report's Passed() is the clearance verdict.
func (g *QualityGate) Validate(batch entity.TypedBatch, now time.Time) entity.QualityReport {
	report := entity.QualityReport{BatchRef: batch.BatchRef, RowCount: batch.RowCount(), CheckedAt: now}

	switch batch.Kind {
	case entity.KindMonthlyMetric:
		report.Violations = evaluate(g.monthly, batch.Monthly, func(r entity.MonthlyMetricRow) string { return string(r.Period) })
	case entity.KindLease:
		report.Violations = evaluate(g.leases, batch.Leases, func(r entity.LeaseRow) string { return r.SuiteID })
		report.Violations = append(report.Violations, uniqueSuites(batch.Leases)...)
	case entity.KindExpense:
		report.Violations = evaluate(g.expenses, batch.Expenses, func(r entity.ExpenseRow) string {
			return fmt.Sprintf("%s/%s", r.Period, r.LineItem)
		})
	}
	return report
}

func evaluate[R any](rules []Rule[R], rows []R, key func(R) string) []entity.Violation {
	var out []entity.Violation
	for i, row := range rows {
		for _, rule := range rules {
			if ok, observed := rule.Check(row); !ok {
				out = append(out, entity.Violation{
					RowIndex: i + 1,
					RowKey:   key(row),
					Rule:     rule.Name,
					Column:   rule.Column,
					Observed: observed,
				})
			}
		}
	}
	return out
}

// uniqueSuites flags repeated suite ids; a roster snapshot lists each suite once.
func uniqueSuites(rows []entity.LeaseRow) []entity.Violation {
	seen := make(map[string]int, len(rows))
	var out []entity.Violation
	for i, r := range rows {
		if r.SuiteID == "" {
			continue
		}
		if first, dup := seen[r.SuiteID]; dup {
			out = append(out, entity.Violation{
				RowIndex: i + 1,
				RowKey:   r.SuiteID,
				Rule:     "suite_id_unique",
				Column:   "suite_id",
				Observed: fmt.Sprintf("duplicate of row %d", first),
			})
			continue
		}
		seen[r.SuiteID] = i + 1
	}
	return out
}

func nonNegative[R any](column string, get func(R) *float64) Rule[R] {
	return Rule[R]{
		Name:   column + "_non_negative",
		Type:   RuleValidity,
		Column: column,
		Check: func(r R) (bool, string) {
			v := get(r)
			if v == nil || *v >= 0 {
				return true, ""
			}
			return false, strconv.FormatFloat(*v, 'f', -1, 64)
		},
	}
}

func required[R any](column string, get func(R) string) Rule[R] {
	return Rule[R]{
		Name:   column + "_required",
		Type:   RuleCompleteness,
		Column: column,
		Check: func(r R) (bool, string) {
			return strings.TrimSpace(get(r)) != "", "empty"
		},
	}
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[norm(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
