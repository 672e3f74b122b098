package service

import (
	"context"
	"fmt"
	"log"

	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stagefront/seatpack-sync/internal/pos"
	"github.com/stagefront/seatpack-sync/internal/repository"
)

// BulkInventoryResult reports a batch of vendor create calls. Failures are
// recorded per pack and never raised as a hard failure for the batch.
type BulkInventoryResult struct {
	Attempted    int
	Created      int
	Failed       int
	InventoryIDs map[string]string // pack id -> vendor inventory id
	Errors       []string
}

// DelistResult reports a batch of vendor delete calls.
type DelistResult struct {
	DelistedCount int
	FailedCount   int
	Errors        []string
}

// SweepResult reports one pass of the pending-pack sweep.
type SweepResult struct {
	Pushed  int
	Deleted int
	Failed  int
	Errors  []string
}

// InventoryPusher pushes newly created packs to the POS vendor, removes
// delisted packs from it, and sweeps packs whose sync was never confirmed.
// Vendor outages surface as per-pack errors; persisted truth always wins.
type InventoryPusher interface {
	CreateBulkInventory(ctx context.Context, packs []models.SeatPack, perf *models.Performance) *BulkInventoryResult
	DelistSeatPacks(ctx context.Context, packs []models.SeatPack) *DelistResult
	SyncPendingPacks(ctx context.Context, performanceID string) (*SweepResult, error)
}

type inventoryPusher struct {
	client   pos.Client
	packRepo repository.SeatPackRepository
	perfRepo repository.PerformanceRepository
}

func NewInventoryPusher(client pos.Client, packRepo repository.SeatPackRepository, perfRepo repository.PerformanceRepository) InventoryPusher {
	return &inventoryPusher{client: client, packRepo: packRepo, perfRepo: perfRepo}
}

// CreateBulkInventory pushes each pack to the vendor, one call per pack. A
// successful push is confirmed in storage immediately; a failed one leaves
// the pack pending for the next sweep.
func (p *inventoryPusher) CreateBulkInventory(ctx context.Context, packs []models.SeatPack, perf *models.Performance) *BulkInventoryResult {
	result := &BulkInventoryResult{InventoryIDs: make(map[string]string)}

	for i := range packs {
		pack := &packs[i]
		result.Attempted++

		inventoryID, err := p.client.CreateListing(ctx, buildInventoryPayload(pack, perf))
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("push pack %s: %v", pack.InternalPackID, err))
			log.Printf("[InventoryPusher] push failed for pack %s: %v", pack.InternalPackID, err)
			continue
		}

		if err := p.packRepo.MarkListed(ctx, pack.InternalPackID, inventoryID); err != nil {
			// Vendor listing exists but the confirmation write failed. Leave
			// the pack pending; the sweep re-confirms against the vendor.
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("confirm pack %s: %v", pack.InternalPackID, err))
			continue
		}

		result.Created++
		result.InventoryIDs[pack.InternalPackID] = inventoryID
	}

	if result.Attempted > 0 {
		log.Printf("[InventoryPusher] pushed %d/%d packs for performance %s",
			result.Created, result.Attempted, perf.InternalPerformanceID)
	}
	return result
}

// DelistSeatPacks removes packs from the vendor. The local record is already
// inactive at this point: a failed vendor delete only means the vendor-side
// listing may still exist and stays owed for the sweep.
func (p *inventoryPusher) DelistSeatPacks(ctx context.Context, packs []models.SeatPack) *DelistResult {
	result := &DelistResult{}

	for i := range packs {
		pack := &packs[i]
		if pack.POSInventoryID == "" {
			continue
		}

		if err := p.client.DeleteListing(ctx, pack.POSInventoryID); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("delist pack %s: %v", pack.InternalPackID, err))
			log.Printf("[InventoryPusher] vendor delete failed for pack %s: %v", pack.InternalPackID, err)
			continue
		}

		if err := p.packRepo.MarkDelistConfirmed(ctx, pack.InternalPackID); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("confirm delist %s: %v", pack.InternalPackID, err))
			continue
		}
		result.DelistedCount++
	}

	return result
}

// SyncPendingPacks is the periodic sweep: it pushes still-pending active
// packs and completes owed vendor deletions, repairing whatever a crashed or
// partially failed pass left behind.
func (p *inventoryPusher) SyncPendingPacks(ctx context.Context, performanceID string) (*SweepResult, error) {
	perf, err := p.perfRepo.FindByID(ctx, performanceID)
	if err != nil {
		return nil, fmt.Errorf("load performance %s: %w", performanceID, err)
	}

	result := &SweepResult{}
	if !perf.POSEnabled {
		return result, nil
	}

	pending, err := p.packRepo.FindPendingForPush(ctx, performanceID)
	if err != nil {
		return nil, fmt.Errorf("find pending packs: %w", err)
	}
	if len(pending) > 0 {
		push := p.CreateBulkInventory(ctx, pending, perf)
		result.Pushed = push.Created
		result.Failed += push.Failed
		result.Errors = append(result.Errors, push.Errors...)
	}

	owed, err := p.packRepo.FindOwedPOSDeletes(ctx, performanceID)
	if err != nil {
		return nil, fmt.Errorf("find owed deletes: %w", err)
	}
	if len(owed) > 0 {
		del := p.DelistSeatPacks(ctx, owed)
		result.Deleted = del.DelistedCount
		result.Failed += del.FailedCount
		result.Errors = append(result.Errors, del.Errors...)
	}

	if result.Pushed > 0 || result.Deleted > 0 || result.Failed > 0 {
		log.Printf("[InventoryPusher] sweep for %s: %d pushed, %d deleted, %d failed",
			performanceID, result.Pushed, result.Deleted, result.Failed)
	}
	return result, nil
}

func buildInventoryPayload(pack *models.SeatPack, perf *models.Performance) pos.InventoryPayload {
	return pos.InventoryPayload{
		ExternalID:  pack.InternalPackID,
		EventName:   perf.EventName,
		VenueName:   perf.VenueName,
		Section:     pack.SectionID,
		Row:         pack.RowLabel,
		SeatStart:   pack.StartSeatNumber,
		SeatEnd:     pack.EndSeatNumber,
		TicketCount: pack.PackSize,
		UnitCost:    pack.PackPrice,
	}
}
