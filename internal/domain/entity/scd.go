package entity

// Reasons a suite change record stopped being current.
const (
	ClosedSuperseded = "superseded"
	ClosedDeleted    = "deleted"
)

// SuiteAttributes is the tracked attribute tuple compared between periods.
type SuiteAttributes struct {
	Tenant          string   `json:"tenant"`
	RentMonthly     *float64 `json:"rent_monthly"`
	RentAnnual      *float64 `json:"rent_annual"`
	RentPerAreaYear *float64 `json:"rent_per_area_year"`
	IsVacant        bool     `json:"is_vacant"`
	IsOwnUse        bool     `json:"is_own_use"`
}

// Equal is value equality over the tracked tuple; nil equals only nil.
func (a SuiteAttributes) Equal(b SuiteAttributes) bool {
	return a.Tenant == b.Tenant &&
		sameFloat(a.RentMonthly, b.RentMonthly) &&
		sameFloat(a.RentAnnual, b.RentAnnual) &&
		sameFloat(a.RentPerAreaYear, b.RentPerAreaYear) &&
		a.IsVacant == b.IsVacant &&
		a.IsOwnUse == b.IsOwnUse
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// AttributesOf extracts the tracked tuple from a lease row.
func AttributesOf(r LeaseRow) SuiteAttributes {
	return SuiteAttributes{
		Tenant:          r.Tenant,
		RentMonthly:     r.RentMonthly,
		RentAnnual:      r.RentAnnual,
		RentPerAreaYear: r.RentPerAreaYear,
		IsVacant:        r.IsVacant,
		IsOwnUse:        r.IsOwnUse,
	}
}

// SuiteChangeRecord is one historical state of a suite. ValidTo is the last
// period the state covered (inclusive) and is zero while the record is open.
type SuiteChangeRecord struct {
	SuiteID  string   `json:"suite_id"`
	Version  int      `json:"version"`
	Building string   `json:"building"`
	Area     *float64 `json:"area"`
	SuiteAttributes
	ValidFrom         Period `json:"valid_from"`
	ValidTo           Period `json:"valid_to,omitempty"`
	IsCurrent         bool   `json:"is_current"`
	ClosedReason      string `json:"closed_reason,omitempty"`
	SourceFingerprint string `json:"source_fingerprint"`
}

// Covers reports whether the record's validity interval includes p.
func (r SuiteChangeRecord) Covers(p Period) bool {
	if p.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo.IsZero() || !p.After(r.ValidTo)
}

// IsDeleted reports whether the record was closed by hard deletion.
func (r SuiteChangeRecord) IsDeleted() bool { return r.ClosedReason == ClosedDeleted }

// SuitesAsOf reconstructs the suite set valid at p from a full history.
func SuitesAsOf(history []SuiteChangeRecord, p Period) []SuiteChangeRecord {
	var out []SuiteChangeRecord
	for _, r := range history {
		if r.Covers(p) {
			out = append(out, r)
		}
	}
	return out
}

// ProcessedPartition is a lease partition the snapshotter has applied.
type ProcessedPartition struct {
	AsOfMonth   Period `json:"as_of_month"`
	Fingerprint string `json:"fingerprint"`
}
