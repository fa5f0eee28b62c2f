package entity

import "time"

// NOI proxy bases, written next to every NOI figure so consumers can tell a
// gross-collections degenerate value from an expense-aware one.
const (
	NOIBasisLessExpenses = "collected_less_expenses"
	NOIBasisNoExpenses   = "gross_collected_no_expenses"
	NOIBasisProto        = "gross_collected_proto"
)

// PeriodKPI is one row of prop_kpi_monthly. Nil fields mean "no data yet".
type PeriodKPI struct {
	Period                 Period   `json:"period"`
	RentBase               *float64 `json:"rent_base"`
	Collected              *float64 `json:"collected"`
	AccountsReceivable     *float64 `json:"accounts_receivable"`
	LeasedArea             *float64 `json:"leased_area"`
	TotalArea              float64  `json:"total_area"`
	OccupancyPct           *float64 `json:"occupancy_pct"`
	OccupancyPctExclOwnUse *float64 `json:"occupancy_pct_excl_own_use"`
	CollectionRatePct      *float64 `json:"collection_rate_pct"`
	PricePerAreaYr         *float64 `json:"price_per_area_yr"`
	FixedExpenses          float64  `json:"fixed_expenses"`
	VariableExpenses       float64  `json:"variable_expenses"`
	OtherExpenses          float64  `json:"other_expenses"`
	TotalExpenses          float64  `json:"total_expenses"`
	NOIProxy               *float64 `json:"noi_proxy"`
	NOIMarginPct           *float64 `json:"noi_margin_pct"`
	NOIBasis               string   `json:"noi_basis"`
	HasMetrics             bool     `json:"has_metrics"`
	HasLeases              bool     `json:"has_leases"`
}

// BuildingKPI is one row of building_kpi_monthly.
type BuildingKPI struct {
	Period                 Period   `json:"period"`
	Building               string   `json:"building"`
	SuiteCount             int      `json:"suite_count"`
	VacantCount            int      `json:"vacant_count"`
	OwnUseCount            int      `json:"own_use_count"`
	TotalArea              float64  `json:"total_area"`
	OccupiedArea           float64  `json:"occupied_area"`
	VacantArea             float64  `json:"vacant_area"`
	OwnUseArea             float64  `json:"own_use_area"`
	EffectiveOccupiedArea  float64  `json:"effective_occupied_area"`
	OccupancyPct           *float64 `json:"occupancy_pct"`
	OccupancyPctExclOwnUse *float64 `json:"occupancy_pct_excl_own_use"`
	RentMonthly            float64  `json:"rent_monthly"`
}

// RollingWindow is one row of kpi_windows. IsPartial is set when fewer than
// WindowSize periods with data fell inside the window.
type RollingWindow struct {
	EndPeriod            Period   `json:"end_period"`
	WindowSize           int      `json:"window_size"`
	StartPeriod          Period   `json:"start_period"`
	PeriodCount          int      `json:"period_count"`
	IsPartial            bool     `json:"is_partial"`
	AvgOccupancyPct      *float64 `json:"avg_occupancy_pct"`
	AvgCollectionRatePct *float64 `json:"avg_collection_rate_pct"`
	AvgPricePerAreaYr    *float64 `json:"avg_price_per_area_yr"`
	TotalRentBase        float64  `json:"total_rent_base"`
	TotalCollected       float64  `json:"total_collected"`
	TotalReceivable      float64  `json:"total_accounts_receivable"`
	AvgNOIProxy          *float64 `json:"avg_noi_proxy"`
	TotalNOIProxy        float64  `json:"total_noi_proxy"`
	AvgNOIMarginPct      *float64 `json:"avg_noi_margin_pct"`
}

// ExpenseFact is one row of fact_expense_monthly.
type ExpenseFact struct {
	Period      Period  `json:"period"`
	Category    string  `json:"category"`
	TotalAmount float64 `json:"total_amount"`
	LineCount   int     `json:"line_count"`
}

// GoldTables is a full gold rebuild, replaced atomically.
type GoldTables struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	PeriodKPIs   []PeriodKPI     `json:"prop_kpi_monthly"`
	BuildingKPIs []BuildingKPI   `json:"building_kpi_monthly"`
	Windows      []RollingWindow `json:"kpi_windows"`
	ExpenseFacts []ExpenseFact   `json:"fact_expense_monthly"`
}
