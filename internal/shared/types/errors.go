package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

var (
	ErrStructural           = errors.New("structural error in input batch")
	ErrQualityViolation     = errors.New("quality violation")
	ErrAmbiguousDeletion    = errors.New("ambiguous deletion")
	ErrDuplicateIngestion   = errors.New("duplicate ingestion skipped")
	ErrLockHeld             = errors.New("another pipeline run holds the lock")
	ErrUnvalidatedBatches   = errors.New("bronze batches are awaiting validation; run validate first")
	ErrPeriodNotDetected    = errors.New("could not detect the reporting period; pass --as-of")
	ErrUnknownRecordKind    = errors.New("unknown record kind")
	ErrBatchNotFound        = errors.New("bronze batch not found")
	ErrCrossPeriodDuplicate = errors.New("file content already ingested into another period")
)

// StructuralProblem is one reason a batch failed decoding.
type StructuralProblem struct {
	Row    int    // 1-based data row, 0 for header-level problems
	Column string
	Reason string
}

func (p StructuralProblem) String() string {
	switch {
	case p.Row == 0 && p.Column == "":
		return p.Reason
	case p.Row == 0:
		return fmt.Sprintf("column %s: %s", p.Column, p.Reason)
	case p.Column == "":
		return fmt.Sprintf("row %d: %s", p.Row, p.Reason)
	}
	return fmt.Sprintf("row %d, column %s: %s", p.Row, p.Column, p.Reason)
}

// StructuralError rejects a whole batch before anything is written.
type StructuralError struct {
	Kind     entity.RecordKind
	Period   entity.Period
	Source   string
	Problems []StructuralProblem
}

func (e *StructuralError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for i, p := range e.Problems {
		if i == 5 {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(e.Problems)-i))
			break
		}
		msgs = append(msgs, p.String())
	}
	return fmt.Sprintf("structural error in %s batch for %s (%s): %s",
		e.Kind, e.Period, e.Source, strings.Join(msgs, "; "))
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// QualityViolationError halts a run after the quality gate rejected batches.
// The rejected batches stay in bronze, flagged as not cleared.
type QualityViolationError struct {
	Reports []entity.QualityReport
}

func (e *QualityViolationError) Error() string {
	total := 0
	parts := make([]string, 0, len(e.Reports))
	for _, r := range e.Reports {
		total += len(r.Violations)
		parts = append(parts, fmt.Sprintf("%s %s [%s]: %d", r.Kind, r.AsOfMonth, r.ShortFingerprint(), len(r.Violations)))
	}
	return fmt.Sprintf("quality violation: %d violations in %d batches (%s)", total, len(e.Reports), strings.Join(parts, ", "))
}

func (e *QualityViolationError) Is(target error) bool { return target == ErrQualityViolation }

// AmbiguousDeletionError refuses to read an empty lease roster as mass vacancy.
type AmbiguousDeletionError struct {
	Period      entity.Period
	PriorPeriod entity.Period
	OpenSuites  int
}

func (e *AmbiguousDeletionError) Error() string {
	return fmt.Sprintf("lease roster for %s is empty while %d suites were open as of %s; "+
		"confirm with --confirm-empty-period %s if the period was fully re-extracted",
		e.Period, e.OpenSuites, e.PriorPeriod, e.Period)
}

func (e *AmbiguousDeletionError) Is(target error) bool { return target == ErrAmbiguousDeletion }

// IngestOutcome reports a skipped duplicate as ErrDuplicateIngestion so
// callers can match it with errors.Is; written batches yield nil.
func IngestOutcome(r entity.IngestResult) error {
	if r.Status == entity.IngestDuplicateSkipped {
		return fmt.Errorf("%w: %s %s [%s]", ErrDuplicateIngestion, r.Kind, r.AsOfMonth, r.ShortFingerprint())
	}
	return nil
}
