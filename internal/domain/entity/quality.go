package entity

import "time"

// ClearanceStatus is the quality gate verdict for one bronze batch.
// A batch without a recorded status is pending.
type ClearanceStatus string

const (
	ClearancePending    ClearanceStatus = "pending"
	ClearanceCleared    ClearanceStatus = "cleared"
	ClearanceRejected   ClearanceStatus = "rejected"
	ClearanceOverridden ClearanceStatus = "overridden"
)

// Stageable reports whether staging may merge a batch with this status.
func (s ClearanceStatus) Stageable() bool {
	return s == ClearanceCleared || s == ClearanceOverridden
}

// BatchClearance is the persisted verdict for one batch.
type BatchClearance struct {
	BatchRef
	Status         ClearanceStatus `json:"status"`
	CheckedAt      time.Time       `json:"checked_at"`
	ViolationCount int             `json:"violation_count"`
	OverrideReason string          `json:"override_reason,omitempty"`
}

// Violation is one failed rule on one row.
type Violation struct {
	RowIndex int    `json:"row_index"`
	RowKey   string `json:"row_key"`
	Rule     string `json:"rule"`
	Column   string `json:"column"`
	Observed string `json:"observed"`
}

// QualityReport is the result of validating one batch.
type QualityReport struct {
	BatchRef
	RowCount   int         `json:"row_count"`
	CheckedAt  time.Time   `json:"checked_at"`
	Violations []Violation `json:"violations"`
	ReportFile string      `json:"report_file,omitempty"`
}

// Passed reports whether the batch cleared every rule.
func (r QualityReport) Passed() bool { return len(r.Violations) == 0 }
