package models

import "time"

// Performance is the read-mostly context a reconciliation pass runs against.
// POSEnabled gates whether any vendor operation is attempted.
type Performance struct {
	InternalPerformanceID string     `gorm:"primaryKey;type:varchar(128)" json:"internal_performance_id"`
	EventName             string     `json:"event_name"`
	VenueName             string     `json:"venue_name"`
	SourceWebsite         string     `json:"source_website"`
	POSEnabled            bool       `gorm:"not null;default:false" json:"pos_enabled"`
	PerformanceDate       *time.Time `json:"performance_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
