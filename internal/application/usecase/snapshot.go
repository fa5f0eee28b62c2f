package usecase

import (
	"fmt"
	"sort"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
)

// SuiteTracker applies lease roster periods, in order, to a suite change
// history. Each suite moves Absent -> Active -> Active' ... -> Closed.
type SuiteTracker struct {
	records   []entity.SuiteChangeRecord
	open      map[string]int // suite id -> index of its open record
	versions  map[string]int
	last      entity.Period
	confirmed map[entity.Period]bool
}

// NewSuiteTracker resumes from an existing history. last is the latest
// period already applied (zero for a fresh history).
func NewSuiteTracker(history []entity.SuiteChangeRecord, last entity.Period, confirmedEmpty []entity.Period) *SuiteTracker {
	t := &SuiteTracker{
		records:   append([]entity.SuiteChangeRecord(nil), history...),
		open:      make(map[string]int),
		versions:  make(map[string]int),
		last:      last,
		confirmed: make(map[entity.Period]bool, len(confirmedEmpty)),
	}
	for i, r := range t.records {
		if r.ValidTo.IsZero() && !r.IsDeleted() {
			t.open[r.SuiteID] = i
		}
		if r.Version > t.versions[r.SuiteID] {
			t.versions[r.SuiteID] = r.Version
		}
	}
	for _, p := range confirmedEmpty {
		t.confirmed[p] = true
	}
	return t
}

// Apply compares one period's full roster against the open records.
// An empty roster while suites are open is refused with
// *types.AmbiguousDeletionError unless the period was confirmed.
func (t *SuiteTracker) Apply(period entity.Period, rows []entity.LeaseRow, fingerprint string) (entity.SnapshotResult, error) {
	var res entity.SnapshotResult
	if !t.last.IsZero() && !period.After(t.last) {
		return res, fmt.Errorf("lease period %s is not after last applied period %s", period, t.last)
	}
	if len(rows) == 0 && len(t.open) > 0 && !t.confirmed[period] {
		return res, &types.AmbiguousDeletionError{Period: period, PriorPeriod: t.last, OpenSuites: len(t.open)}
	}

	closeAt := period.AddMonths(-1)
	present := make(map[string]bool, len(rows))

	for _, row := range rows {
		if present[row.SuiteID] {
			// The quality gate rejects duplicates; keep the first occurrence.
			continue
		}
		present[row.SuiteID] = true
		attrs := entity.AttributesOf(row)

		if idx, ok := t.open[row.SuiteID]; ok {
			if t.records[idx].SuiteAttributes.Equal(attrs) {
				// Área e prédio não abrem versão; o registro aberto segue a última medição.
				t.records[idx].Area = row.Area
				t.records[idx].Building = row.Building
				continue
			}
			t.close(idx, closeAt, entity.ClosedSuperseded)
			res.Superseded++
		}
		t.openRecord(period, row, fingerprint)
		res.Opened++
	}

	ids := make([]string, 0, len(t.open))
	for id := range t.open {
		if !present[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		t.close(t.open[id], closeAt, entity.ClosedDeleted)
		res.Deleted++
	}

	t.last = period
	res.AppliedPeriods = []entity.Period{period}
	return res, nil
}

func (t *SuiteTracker) close(idx int, at entity.Period, reason string) {
	r := &t.records[idx]
	r.ValidTo = at
	r.IsCurrent = false
	r.ClosedReason = reason
	delete(t.open, r.SuiteID)
}

func (t *SuiteTracker) openRecord(period entity.Period, row entity.LeaseRow, fingerprint string) {
	t.versions[row.SuiteID]++
	t.records = append(t.records, entity.SuiteChangeRecord{
		SuiteID:           row.SuiteID,
		Version:           t.versions[row.SuiteID],
		Building:          row.Building,
		Area:              row.Area,
		SuiteAttributes:   entity.AttributesOf(row),
		ValidFrom:         period,
		IsCurrent:         true,
		SourceFingerprint: fingerprint,
	})
	t.open[row.SuiteID] = len(t.records) - 1
}

// Records returns the history ordered by suite then version.
func (t *SuiteTracker) Records() []entity.SuiteChangeRecord {
	out := append([]entity.SuiteChangeRecord(nil), t.records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuiteID != out[j].SuiteID {
			return out[i].SuiteID < out[j].SuiteID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// SnapshotPlan says which staged lease partitions still need applying and
// whether the existing history must be replayed from scratch.
type SnapshotPlan struct {
	Replay  bool
	Pending []entity.StagedPartition
}

// PlanSnapshot compares the staged lease partitions with the partitions the
// history was built from. New later periods apply incrementally; a changed
// winner, a vanished partition or a late earlier period forces a replay.
func PlanSnapshot(staged []entity.StagedPartition, processed []entity.ProcessedPartition, forceReplay bool) SnapshotPlan {
	var leases []entity.StagedPartition
	for _, s := range staged {
		if s.Kind == entity.KindLease {
			leases = append(leases, s)
		}
	}
	sort.Slice(leases, func(i, j int) bool { return leases[i].AsOfMonth.Before(leases[j].AsOfMonth) })

	if forceReplay {
		return SnapshotPlan{Replay: true, Pending: leases}
	}

	done := make(map[entity.Period]string, len(processed))
	var last entity.Period
	for _, p := range processed {
		done[p.AsOfMonth] = p.Fingerprint
		if p.AsOfMonth.After(last) {
			last = p.AsOfMonth
		}
	}

	stagedAt := make(map[entity.Period]bool, len(leases))
	var pending []entity.StagedPartition
	for _, s := range leases {
		stagedAt[s.AsOfMonth] = true
		fp, seen := done[s.AsOfMonth]
		switch {
		case seen && fp == s.Fingerprint:
		case seen, !last.IsZero() && !s.AsOfMonth.After(last):
			return SnapshotPlan{Replay: true, Pending: leases}
		default:
			pending = append(pending, s)
		}
	}
	for p := range done {
		if !stagedAt[p] {
			return SnapshotPlan{Replay: true, Pending: leases}
		}
	}
	return SnapshotPlan{Pending: pending}
}

// LastProcessed returns the latest processed period, zero when none.
func LastProcessed(processed []entity.ProcessedPartition) entity.Period {
	var last entity.Period
	for _, p := range processed {
		if p.AsOfMonth.After(last) {
			last = p.AsOfMonth
		}
	}
	return last
}
