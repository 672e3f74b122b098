package dto

import (
	"fmt"
	"time"

	"github.com/stagefront/seatpack-sync/internal/reconcile"
)

// ScrapedPack is one seat pack as reported by the scraper. It carries no
// identity; packs are matched to stored state by structural signature.
type ScrapedPack struct {
	ZoneID          string   `json:"zone_id"`
	LevelID         string   `json:"level_id"`
	SectionID       string   `json:"section_id"`
	RowLabel        string   `json:"row_label"`
	StartSeatNumber string   `json:"start_seat_number"`
	EndSeatNumber   string   `json:"end_seat_number"`
	PackSize        int      `json:"pack_size"`
	PackPrice       float64  `json:"pack_price"`
	TotalPrice      float64  `json:"total_price"`
	SeatKeys        []string `json:"seat_keys,omitempty"`
}

// ScrapeCompletedMessage is the queue payload emitted when a scrape job
// finishes for one performance.
type ScrapeCompletedMessage struct {
	PerformanceID   string        `json:"performance_id"`
	ScrapeJobID     string        `json:"scrape_job_id"`
	EventName       string        `json:"event_name"`
	VenueName       string        `json:"venue_name"`
	SourceWebsite   string        `json:"source_website"`
	PerformanceDate *time.Time    `json:"performance_date,omitempty"`
	POSEnabled      bool          `json:"pos_enabled"`
	ScrapedAt       time.Time     `json:"scraped_at"`
	Packs           []ScrapedPack `json:"packs"`
}

// Validate rejects messages that cannot be processed at all. An empty pack
// list is valid; the reconciler decides what an empty scrape means.
func (m *ScrapeCompletedMessage) Validate() error {
	if m.PerformanceID == "" {
		return fmt.Errorf("missing performance_id")
	}
	for i, p := range m.Packs {
		if p.ZoneID == "" || p.RowLabel == "" {
			return fmt.Errorf("pack %d: missing zone_id or row_label", i)
		}
		if p.StartSeatNumber == "" || p.EndSeatNumber == "" {
			return fmt.Errorf("pack %d: missing seat range", i)
		}
		if p.PackSize <= 0 {
			return fmt.Errorf("pack %d: pack_size must be positive", i)
		}
	}
	return nil
}

// ToCandidates converts the wire packs into reconciler candidates.
func (m *ScrapeCompletedMessage) ToCandidates() []reconcile.CandidatePack {
	candidates := make([]reconcile.CandidatePack, 0, len(m.Packs))
	for _, p := range m.Packs {
		candidates = append(candidates, reconcile.CandidatePack{
			ZoneID:          p.ZoneID,
			LevelID:         p.LevelID,
			SectionID:       p.SectionID,
			RowLabel:        p.RowLabel,
			StartSeatNumber: p.StartSeatNumber,
			EndSeatNumber:   p.EndSeatNumber,
			PackSize:        p.PackSize,
			PackPrice:       p.PackPrice,
			TotalPrice:      p.TotalPrice,
			SeatKeys:        p.SeatKeys,
		})
	}
	return candidates
}
