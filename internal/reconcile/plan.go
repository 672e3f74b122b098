// Package reconcile implements the pure diffing layer of the seat-pack sync
// engine: it compares the previously recorded active packs with the candidate
// set produced by the latest scrape and emits a SyncPlan of creation, update,
// delist and POS-sync actions. Nothing in this package performs I/O.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/stagefront/seatpack-sync/internal/models"
)

// CandidatePack is a scraped seat pack before it has any persistent identity.
// Candidates carry structural fields only; identity across scrapes is inferred
// from structural overlap, never assumed.
type CandidatePack struct {
	ZoneID          string   `json:"zone_id"`
	LevelID         string   `json:"level_id,omitempty"`
	SectionID       string   `json:"section_id,omitempty"`
	RowLabel        string   `json:"row_label"`
	StartSeatNumber string   `json:"start_seat_number"`
	EndSeatNumber   string   `json:"end_seat_number"`
	PackSize        int      `json:"pack_size"`
	PackPrice       float64  `json:"pack_price"`
	TotalPrice      float64  `json:"total_price"`
	SeatKeys        []string `json:"seat_keys"`
}

// Key is the structural signature used to match candidates against existing
// packs: same zone, row and seat range means same pack.
func (c CandidatePack) Key() string {
	return packKey(c.ZoneID, c.RowLabel, c.StartSeatNumber, c.EndSeatNumber)
}

func packKey(zoneID, row, start, end string) string {
	return fmt.Sprintf("%s:%s:%s:%s", zoneID, row, start, end)
}

// ExistingKey returns the structural signature of a persisted pack.
func ExistingKey(p *models.SeatPack) string {
	return packKey(p.ZoneID, p.RowLabel, p.StartSeatNumber, p.EndSeatNumber)
}

// FieldChange records an old/new value pair for an UpdateAction.
type FieldChange struct {
	Old any
	New any
}

// CreationAction creates a new seat pack, either organically or as the
// product of a transformation (split/merge/shrink/transformed).
type CreationAction struct {
	Pack          CandidatePack
	ActionType    models.PackState
	SourcePackIDs []string
}

// UpdateAction mutates only the named changed fields of an existing pack.
type UpdateAction struct {
	PackID  string
	Pack    CandidatePack
	Changes map[string]FieldChange
}

// DelistAction soft-deletes an existing pack.
type DelistAction struct {
	PackID string
	Reason models.DelistReason
}

// SyncAction flags a structurally unchanged pack that still needs its POS
// push confirmed.
type SyncAction struct {
	PackID string
	Pack   CandidatePack
}

// SyncPlan is the complete, ordered set of actions produced by one diff.
// Creation and delist actions born from the same transformation are built in
// the same pass so lineage references are valid at execution time.
type SyncPlan struct {
	PerformanceID string
	POSEnabled    bool

	CreationActions []CreationAction
	UpdateActions   []UpdateAction
	DelistActions   []DelistAction
	SyncActions     []SyncAction

	// SuspectEmptyScrape is set when the candidate set was empty while
	// active packs exist: the scrape is treated as failed and no delist
	// actions are emitted.
	SuspectEmptyScrape bool
}

// TotalActions returns the number of actions across all groups.
func (p *SyncPlan) TotalActions() int {
	return len(p.CreationActions) + len(p.UpdateActions) + len(p.DelistActions) + len(p.SyncActions)
}

// IsNoop reports whether the plan requires no structural work.
func (p *SyncPlan) IsNoop() bool {
	return len(p.CreationActions) == 0 && len(p.UpdateActions) == 0 && len(p.DelistActions) == 0
}

func sortedCopy(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
