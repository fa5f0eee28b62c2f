package usecase

import (
	"sort"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
)

// PartitionKey identifies one staged partition.
type PartitionKey struct {
	Kind      entity.RecordKind
	AsOfMonth entity.Period
}

func keyOf(ref entity.BatchRef) PartitionKey {
	return PartitionKey{Kind: ref.Kind, AsOfMonth: ref.AsOfMonth}
}

// StagingPlan is the minimal set of partition rewrites that brings staging
// in line with the cleared bronze batches.
type StagingPlan struct {
	Upserts  []entity.ManifestEntry
	Removals []entity.BatchRef
	Rebuild  bool
}

// Empty reports whether staging is already current.
func (p StagingPlan) Empty() bool {
	return len(p.Upserts) == 0 && len(p.Removals) == 0 && !p.Rebuild
}

// ClearanceIndex maps a batch to its recorded verdict.
type ClearanceIndex map[entity.BatchRef]entity.BatchClearance

// NewClearanceIndex indexes clearances by batch.
func NewClearanceIndex(clearances []entity.BatchClearance) ClearanceIndex {
	idx := make(ClearanceIndex, len(clearances))
	for _, c := range clearances {
		idx[c.BatchRef] = c
	}
	return idx
}

// Status returns the batch verdict, pending when none was recorded.
func (idx ClearanceIndex) Status(ref entity.BatchRef) entity.ClearanceStatus {
	if c, ok := idx[ref]; ok {
		return c.Status
	}
	return entity.ClearancePending
}

// PendingBatches lists manifest entries without a quality verdict.
func PendingBatches(manifest []entity.ManifestEntry, idx ClearanceIndex) []entity.ManifestEntry {
	var out []entity.ManifestEntry
	for _, e := range manifest {
		if idx.Status(e.BatchRef) == entity.ClearancePending {
			out = append(out, e)
		}
	}
	return out
}

// UnresolvedRejections lists rejected batches that no later cleared or
// overridden batch of the same partition supersedes. Each one halts the
// pipeline until the source is fixed or the batch is overridden.
func UnresolvedRejections(manifest []entity.ManifestEntry, idx ClearanceIndex) []entity.ManifestEntry {
	var out []entity.ManifestEntry
	for _, e := range manifest {
		if idx.Status(e.BatchRef) != entity.ClearanceRejected {
			continue
		}
		superseded := false
		for _, other := range manifest {
			if keyOf(other.BatchRef) == keyOf(e.BatchRef) && idx.Status(other.BatchRef).Stageable() && laterThan(other, e) {
				superseded = true
				break
			}
		}
		if !superseded {
			out = append(out, e)
		}
	}
	return out
}

// SelectWinners picks, per (kind, period), the stageable batch with the
// latest ingestion timestamp. Equal timestamps fall back to the greater
// fingerprint so the choice never depends on input order.
func SelectWinners(manifest []entity.ManifestEntry, idx ClearanceIndex) map[PartitionKey]entity.ManifestEntry {
	winners := make(map[PartitionKey]entity.ManifestEntry)
	for _, e := range manifest {
		if !idx.Status(e.BatchRef).Stageable() {
			continue
		}
		k := keyOf(e.BatchRef)
		cur, ok := winners[k]
		if !ok || laterThan(e, cur) {
			winners[k] = e
		}
	}
	return winners
}

func laterThan(a, b entity.ManifestEntry) bool {
	if !a.IngestedAt.Equal(b.IngestedAt) {
		return a.IngestedAt.After(b.IngestedAt)
	}
	return a.Fingerprint > b.Fingerprint
}

// PlanStaging compares winners with what staging currently holds. Unchanged
// partitions are left alone; with rebuild every winner is rewritten.
func PlanStaging(winners map[PartitionKey]entity.ManifestEntry, staged []entity.StagedPartition, rebuild bool) StagingPlan {
	plan := StagingPlan{Rebuild: rebuild}

	current := make(map[PartitionKey]entity.StagedPartition, len(staged))
	if !rebuild {
		for _, s := range staged {
			current[keyOf(s.BatchRef)] = s
		}
	}

	for k, w := range winners {
		if s, ok := current[k]; ok && s.Fingerprint == w.Fingerprint {
			continue
		}
		plan.Upserts = append(plan.Upserts, w)
	}
	if !rebuild {
		for k, s := range current {
			if _, ok := winners[k]; !ok {
				plan.Removals = append(plan.Removals, s.BatchRef)
			}
		}
	}

	sort.Slice(plan.Upserts, func(i, j int) bool { return lessRef(plan.Upserts[i].BatchRef, plan.Upserts[j].BatchRef) })
	sort.Slice(plan.Removals, func(i, j int) bool { return lessRef(plan.Removals[i], plan.Removals[j]) })
	return plan
}

func lessRef(a, b entity.BatchRef) bool {
	if a.Kind != b.Kind {
		return kindOrder(a.Kind) < kindOrder(b.Kind)
	}
	return a.AsOfMonth.Before(b.AsOfMonth)
}

func kindOrder(k entity.RecordKind) int {
	for i, kk := range entity.AllKinds {
		if kk == k {
			return i
		}
	}
	return len(entity.AllKinds)
}

// CleanBatch normalises text fields before a batch enters staging. Numeric
// fields are already typed by the bronze decode.
func CleanBatch(b entity.TypedBatch) entity.TypedBatch {
	out := b
	out.Leases = make([]entity.LeaseRow, len(b.Leases))
	for i, r := range b.Leases {
		r.SuiteID = normaliseSpace(r.SuiteID)
		r.Building = normaliseSpace(r.Building)
		r.Tenant = normaliseSpace(r.Tenant)
		out.Leases[i] = r
	}
	out.Expenses = make([]entity.ExpenseRow, len(b.Expenses))
	for i, r := range b.Expenses {
		r.LineItem = normaliseSpace(r.LineItem)
		r.Category = normaliseSpace(r.Category)
		out.Expenses[i] = r
	}
	out.Monthly = append([]entity.MonthlyMetricRow(nil), b.Monthly...)
	return out
}

func normaliseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
