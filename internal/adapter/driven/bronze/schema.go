package bronze

import (
	"time"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// Parquet row layouts. The as_of_month partition column lives in the hive
// directory name, not inside the files; lineage columns are stamped on every
// row.

type monthlyRecord struct {
	Period          string    `parquet:"period"`
	RentBase        *float64  `parquet:"rent_base"`
	Collected       *float64  `parquet:"collected"`
	Uncollected     *float64  `parquet:"uncollected"`
	LeasedArea      *float64  `parquet:"leased_area"`
	PricePerArea    *float64  `parquet:"derived_price_per_area"`
	FileFingerprint string    `parquet:"_file_fingerprint"`
	IngestedAt      time.Time `parquet:"_ingested_at,timestamp(millisecond)"`
	SourceName      string    `parquet:"_source_name"`
}

type leaseRecord struct {
	Period          string    `parquet:"period"`
	SuiteID         string    `parquet:"suite_id"`
	Building        string    `parquet:"building"`
	Tenant          string    `parquet:"tenant"`
	Area            *float64  `parquet:"area"`
	RentMonthly     *float64  `parquet:"rent_monthly"`
	RentAnnual      *float64  `parquet:"rent_annual"`
	RentPerAreaYear *float64  `parquet:"rent_per_area_year"`
	IsVacant        bool      `parquet:"is_vacant"`
	IsOwnUse        bool      `parquet:"is_own_use"`
	FileFingerprint string    `parquet:"_file_fingerprint"`
	IngestedAt      time.Time `parquet:"_ingested_at,timestamp(millisecond)"`
	SourceName      string    `parquet:"_source_name"`
}

type expenseRecord struct {
	Period          string    `parquet:"period"`
	LineItem        string    `parquet:"line_item"`
	ActualAmount    *float64  `parquet:"actual_amount"`
	Category        string    `parquet:"category"`
	FileFingerprint string    `parquet:"_file_fingerprint"`
	IngestedAt      time.Time `parquet:"_ingested_at,timestamp(millisecond)"`
	SourceName      string    `parquet:"_source_name"`
}

func toMonthlyRecords(b entity.TypedBatch) []monthlyRecord {
	out := make([]monthlyRecord, 0, len(b.Monthly))
	for _, r := range b.Monthly {
		out = append(out, monthlyRecord{
			Period:          r.Period.String(),
			RentBase:        r.RentBase,
			Collected:       r.Collected,
			Uncollected:     r.Uncollected,
			LeasedArea:      r.LeasedArea,
			PricePerArea:    r.PricePerArea,
			FileFingerprint: b.Fingerprint,
			IngestedAt:      b.IngestedAt,
			SourceName:      b.SourceName,
		})
	}
	return out
}

func toLeaseRecords(b entity.TypedBatch) []leaseRecord {
	out := make([]leaseRecord, 0, len(b.Leases))
	for _, r := range b.Leases {
		out = append(out, leaseRecord{
			Period:          r.Period.String(),
			SuiteID:         r.SuiteID,
			Building:        r.Building,
			Tenant:          r.Tenant,
			Area:            r.Area,
			RentMonthly:     r.RentMonthly,
			RentAnnual:      r.RentAnnual,
			RentPerAreaYear: r.RentPerAreaYear,
			IsVacant:        r.IsVacant,
			IsOwnUse:        r.IsOwnUse,
			FileFingerprint: b.Fingerprint,
			IngestedAt:      b.IngestedAt,
			SourceName:      b.SourceName,
		})
	}
	return out
}

func toExpenseRecords(b entity.TypedBatch) []expenseRecord {
	out := make([]expenseRecord, 0, len(b.Expenses))
	for _, r := range b.Expenses {
		out = append(out, expenseRecord{
			Period:          r.Period.String(),
			LineItem:        r.LineItem,
			ActualAmount:    r.ActualAmount,
			Category:        r.Category,
			FileFingerprint: b.Fingerprint,
			IngestedAt:      b.IngestedAt,
			SourceName:      b.SourceName,
		})
	}
	return out
}

func lineage(asOf entity.Period, fingerprint string, at time.Time) entity.Lineage {
	return entity.Lineage{AsOfMonth: asOf, Fingerprint: fingerprint, IngestedAt: at.UTC()}
}

func (r monthlyRecord) toEntity(asOf entity.Period) entity.MonthlyMetricRow {
	return entity.MonthlyMetricRow{
		Lineage:      lineage(asOf, r.FileFingerprint, r.IngestedAt),
		Period:       entity.Period(r.Period),
		RentBase:     r.RentBase,
		Collected:    r.Collected,
		Uncollected:  r.Uncollected,
		LeasedArea:   r.LeasedArea,
		PricePerArea: r.PricePerArea,
	}
}

func (r leaseRecord) toEntity(asOf entity.Period) entity.LeaseRow {
	return entity.LeaseRow{
		Lineage:         lineage(asOf, r.FileFingerprint, r.IngestedAt),
		Period:          entity.Period(r.Period),
		SuiteID:         r.SuiteID,
		Building:        r.Building,
		Tenant:          r.Tenant,
		Area:            r.Area,
		RentMonthly:     r.RentMonthly,
		RentAnnual:      r.RentAnnual,
		RentPerAreaYear: r.RentPerAreaYear,
		IsVacant:        r.IsVacant,
		IsOwnUse:        r.IsOwnUse,
	}
}

func (r expenseRecord) toEntity(asOf entity.Period) entity.ExpenseRow {
	return entity.ExpenseRow{
		Lineage:      lineage(asOf, r.FileFingerprint, r.IngestedAt),
		Period:       entity.Period(r.Period),
		LineItem:     r.LineItem,
		ActualAmount: r.ActualAmount,
		Category:     r.Category,
	}
}
