package reconcile

import (
	"sort"

	"github.com/stagefront/seatpack-sync/internal/models"
)

// DiffOptions carries the read-only context a diff runs under.
type DiffOptions struct {
	PerformanceID string
	POSEnabled    bool
	// ManuallyDelisted holds packs an operator pulled from sale. Their seat
	// ranges are suppressed from creation so reconciliation cannot undo a
	// manual delist while the range is still being scraped.
	ManuallyDelisted []models.SeatPack
}

// Diff compares the full existing-active-pack set with the full candidate set
// from the newest scrape and produces a SyncPlan. It is pure and
// deterministic: same inputs always yield the same plan, and no I/O happens
// here.
//
// If the candidate set is empty while active packs exist, the scrape is
// treated as suspect and the plan carries zero delist actions.
func Diff(existing []models.SeatPack, candidates []CandidatePack, opts DiffOptions) SyncPlan {
	plan := SyncPlan{
		PerformanceID: opts.PerformanceID,
		POSEnabled:    opts.POSEnabled,
	}

	// Empty-scrape safety rule: a transient scraping failure must not
	// mass-delist a performance's whole inventory.
	if len(candidates) == 0 && len(existing) > 0 {
		plan.SuspectEmptyScrape = true
		return plan
	}

	suppressed := make(map[string]bool, len(opts.ManuallyDelisted))
	for i := range opts.ManuallyDelisted {
		suppressed[ExistingKey(&opts.ManuallyDelisted[i])] = true
	}

	existingByKey := make(map[string]*models.SeatPack, len(existing))
	for i := range existing {
		existingByKey[ExistingKey(&existing[i])] = &existing[i]
	}

	// Dedupe candidates on structural key, first occurrence wins.
	candidateByKey := make(map[string]CandidatePack, len(candidates))
	var candidateKeys []string
	for _, c := range candidates {
		k := c.Key()
		if _, seen := candidateByKey[k]; seen {
			continue
		}
		candidateByKey[k] = c
		candidateKeys = append(candidateKeys, k)
	}
	sort.Strings(candidateKeys)

	// Phase 1: packs present on both sides keep their identity. Identical
	// packs need no structural action; a price or size drift becomes an
	// in-place update. Either way, a still-pending pack gets a sync action.
	var vanished []*models.SeatPack
	for _, k := range sortedExistingKeys(existingByKey) {
		pack := existingByKey[k]
		cand, ok := candidateByKey[k]
		if !ok {
			vanished = append(vanished, pack)
			continue
		}
		if changes := fieldChanges(pack, cand); len(changes) > 0 {
			plan.UpdateActions = append(plan.UpdateActions, UpdateAction{
				PackID:  pack.InternalPackID,
				Pack:    cand,
				Changes: changes,
			})
		}
		if pack.POSStatus == models.POSPending {
			plan.SyncActions = append(plan.SyncActions, SyncAction{
				PackID: pack.InternalPackID,
				Pack:   cand,
			})
		}
	}

	var added []CandidatePack
	for _, k := range candidateKeys {
		if _, ok := existingByKey[k]; ok {
			continue
		}
		if suppressed[k] {
			continue
		}
		added = append(added, candidateByKey[k])
	}

	// Phase 2: classify overlap between vanished and added packs, then build
	// creations and delists from the same transformation pass so lineage
	// references line up.
	transformations := Compare(vanished, added)

	consumed := make(map[string]bool)
	produced := make(map[string]bool)
	for _, t := range transformations {
		sources := sortedCopy(t.ConsumedPackIDs)
		for _, id := range sources {
			consumed[id] = true
		}
		for _, result := range t.Results {
			produced[result.Key()] = true
			plan.CreationActions = append(plan.CreationActions, CreationAction{
				Pack:          result,
				ActionType:    t.Type,
				SourcePackIDs: sources,
			})
		}
		for _, id := range sources {
			plan.DelistActions = append(plan.DelistActions, DelistAction{
				PackID: id,
				Reason: models.ReasonTransformed,
			})
		}
	}

	// Phase 3: leftovers are unrelated churn.
	for _, pack := range vanished {
		if consumed[pack.InternalPackID] {
			continue
		}
		plan.DelistActions = append(plan.DelistActions, DelistAction{
			PackID: pack.InternalPackID,
			Reason: models.ReasonVanished,
		})
	}
	for _, c := range added {
		if produced[c.Key()] {
			continue
		}
		plan.CreationActions = append(plan.CreationActions, CreationAction{
			Pack:          c,
			ActionType:    models.StateCreate,
			SourcePackIDs: nil,
		})
	}

	sortPlan(&plan)
	return plan
}

// fieldChanges returns the mutable fields that drifted between a persisted
// pack and its structurally identical candidate.
func fieldChanges(pack *models.SeatPack, cand CandidatePack) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	if pack.PackPrice != cand.PackPrice {
		changes["pack_price"] = FieldChange{Old: pack.PackPrice, New: cand.PackPrice}
	}
	if pack.TotalPrice != cand.TotalPrice {
		changes["total_price"] = FieldChange{Old: pack.TotalPrice, New: cand.TotalPrice}
	}
	if pack.PackSize != cand.PackSize {
		changes["pack_size"] = FieldChange{Old: pack.PackSize, New: cand.PackSize}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func sortedExistingKeys(m map[string]*models.SeatPack) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortPlan fixes the ordering of every action group so the plan is stable
// across runs regardless of map iteration order.
func sortPlan(plan *SyncPlan) {
	sort.Slice(plan.CreationActions, func(i, j int) bool {
		return plan.CreationActions[i].Pack.Key() < plan.CreationActions[j].Pack.Key()
	})
	sort.Slice(plan.UpdateActions, func(i, j int) bool {
		return plan.UpdateActions[i].PackID < plan.UpdateActions[j].PackID
	})
	sort.Slice(plan.DelistActions, func(i, j int) bool {
		return plan.DelistActions[i].PackID < plan.DelistActions[j].PackID
	})
	sort.Slice(plan.SyncActions, func(i, j int) bool {
		return plan.SyncActions[i].PackID < plan.SyncActions[j].PackID
	})
}
