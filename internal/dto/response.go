package dto

import "github.com/stagefront/seatpack-sync/internal/models"

// SyncStatusResponse summarizes a performance's sync position: how many
// packs sit in each POS state and whether any inventory is live at all.
type SyncStatusResponse struct {
	PerformanceID  string                     `json:"performance_id"`
	POSEnabled     bool                       `json:"pos_enabled"`
	HasActivePacks bool                       `json:"has_active_packs"`
	POSStatusCount map[models.POSStatus]int64 `json:"pos_status_counts"`
}

// SweepResponse reports a manually triggered pending-pack sweep.
type SweepResponse struct {
	PerformanceID string   `json:"performance_id"`
	Pushed        int      `json:"pushed"`
	Deleted       int      `json:"deleted"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
