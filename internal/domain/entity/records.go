package entity

import (
	"fmt"
	"time"
)

// RecordKind identifies one of the three source record families.
type RecordKind string

const (
	KindMonthlyMetric RecordKind = "monthly_metric"
	KindLease         RecordKind = "lease"
	KindExpense       RecordKind = "expense"
)

// AllKinds lists record kinds in pipeline order.
var AllKinds = []RecordKind{KindMonthlyMetric, KindLease, KindExpense}

// ParseRecordKind accepts the canonical names plus the bronze table names.
func ParseRecordKind(s string) (RecordKind, error) {
	switch s {
	case "monthly_metric", "monthly", "metrics", "raw_dashboard_monthly":
		return KindMonthlyMetric, nil
	case "lease", "leases", "raw_lease_rate_snapshot":
		return KindLease, nil
	case "expense", "expenses", "raw_expenses_monthly":
		return KindExpense, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// BronzeTable is the bronze table (directory) name for the kind.
func (k RecordKind) BronzeTable() string {
	switch k {
	case KindMonthlyMetric:
		return "raw_dashboard_monthly"
	case KindLease:
		return "raw_lease_rate_snapshot"
	case KindExpense:
		return "raw_expenses_monthly"
	}
	return "raw_" + string(k)
}

// Lineage is the ingestion metadata stamped on every bronze row and carried
// through staging.
type Lineage struct {
	AsOfMonth   Period    `json:"as_of_month"`
	Fingerprint string    `json:"file_fingerprint"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// MonthlyMetricRow holds the aggregate figures reported for one month.
// Nil pointers are missing values, carried through as nulls.
type MonthlyMetricRow struct {
	Lineage
	Period       Period   `json:"period"`
	RentBase     *float64 `json:"rent_base"`
	Collected    *float64 `json:"collected"`
	Uncollected  *float64 `json:"uncollected"`
	LeasedArea   *float64 `json:"leased_area"`
	PricePerArea *float64 `json:"derived_price_per_area"`
}

// LeaseRow describes one suite in a lease roster snapshot.
type LeaseRow struct {
	Lineage
	Period          Period   `json:"period"`
	SuiteID         string   `json:"suite_id"`
	Building        string   `json:"building"`
	Tenant          string   `json:"tenant"`
	Area            *float64 `json:"area"`
	RentMonthly     *float64 `json:"rent_monthly"`
	RentAnnual      *float64 `json:"rent_annual"`
	RentPerAreaYear *float64 `json:"rent_per_area_year"`
	IsVacant        bool     `json:"is_vacant"`
	IsOwnUse        bool     `json:"is_own_use"`
}

// ExpenseRow is one expense line for a month.
type ExpenseRow struct {
	Lineage
	Period       Period   `json:"period"`
	LineItem     string   `json:"line_item"`
	ActualAmount *float64 `json:"actual_amount"`
	Category     string   `json:"category"`
}

// Expense categories.
const (
	ExpenseFixed    = "fixed"
	ExpenseVariable = "variable"
	ExpenseOther    = "other"
)

// Float returns a pointer to v; handy for literals.
func Float(v float64) *float64 { return &v }
