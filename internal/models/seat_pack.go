package models

import "time"

// PackStatus says whether our system currently offers the pack.
type PackStatus string

const (
	PackActive   PackStatus = "active"
	PackInactive PackStatus = "inactive"
)

// POSStatus tracks the sync state against the POS vendor.
type POSStatus string

const (
	POSPending  POSStatus = "pending"
	POSActive   POSStatus = "active"
	POSInactive POSStatus = "inactive"
	POSSynced   POSStatus = "synced"
)

// PackState records the cause of the most recent lifecycle transition.
type PackState string

const (
	StateCreate      PackState = "create"
	StateSplit       PackState = "split"
	StateMerge       PackState = "merge"
	StateShrink      PackState = "shrink"
	StateTransformed PackState = "transformed"
	StateDelist      PackState = "delist"
)

// DelistReason is populated only when PackStatus is inactive.
type DelistReason string

const (
	ReasonVanished            DelistReason = "vanished"
	ReasonTransformed         DelistReason = "transformed"
	ReasonManualDelist        DelistReason = "manual_delist"
	ReasonPerformanceDisabled DelistReason = "performance_disabled"
)

// SeatPack is a priced, contiguous run of seats in one row, offered as a
// single sellable inventory unit. Packs are only ever soft-deleted; once
// inactive they are never reactivated. A reappearing range gets a brand-new
// pack with SourcePackIDs pointing at the stale one.
type SeatPack struct {
	InternalPackID  string   `gorm:"primaryKey;type:varchar(128)" json:"internal_pack_id"`
	PerformanceID   string   `gorm:"index;not null" json:"performance_id"`
	ZoneID          string   `gorm:"index" json:"zone_id"`
	LevelID         string   `json:"level_id,omitempty"`
	SectionID       string   `json:"section_id,omitempty"`
	RowLabel        string   `gorm:"not null" json:"row_label"`
	StartSeatNumber string   `json:"start_seat_number"`
	EndSeatNumber   string   `json:"end_seat_number"`
	PackSize        int      `json:"pack_size"`
	PackPrice       float64  `json:"pack_price"`
	TotalPrice      float64  `json:"total_price"`
	SeatKeys        []string `gorm:"serializer:json" json:"seat_keys"`

	// Lineage: ids of the pack(s) this one was derived from via a
	// transformation. Empty for organic creations.
	SourcePackIDs []string `gorm:"serializer:json" json:"source_pack_ids"`

	PackStatus   PackStatus   `gorm:"type:varchar(16);not null;default:'active';index" json:"pack_status"`
	POSStatus    POSStatus    `gorm:"type:varchar(16);not null;default:'pending';index" json:"pos_status"`
	PackState    PackState    `gorm:"type:varchar(16);not null;default:'create'" json:"pack_state"`
	DelistReason DelistReason `gorm:"type:varchar(32)" json:"delist_reason,omitempty"`

	// POSInventoryID is the vendor-side listing id once a push succeeded.
	POSInventoryID string `json:"pos_inventory_id,omitempty"`
	// POSSyncedAt is set when local state was last confirmed consistent with
	// the vendor. A delisted pack with an inventory id and no confirmation
	// still owes the vendor a delete call; the sweep settles it.
	POSSynced   bool       `json:"pos_synced"`
	POSSyncedAt *time.Time `json:"pos_synced_at,omitempty"`

	ManuallyDelisted   bool       `json:"manually_delisted"`
	ManuallyDelistedBy string     `json:"manually_delisted_by,omitempty"`
	ManuallyDelistedAt *time.Time `json:"manually_delisted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsPOSDelete reports whether the vendor-side listing may still exist and
// needs cleanup by the sweep.
func (p *SeatPack) NeedsPOSDelete() bool {
	return p.PackStatus == PackInactive && p.POSInventoryID != "" && !p.POSSynced
}

// DelistPackState derives the transition cause recorded on a delist.
func DelistPackState(reason DelistReason) PackState {
	if reason == ReasonTransformed {
		return StateTransformed
	}
	return StateDelist
}
