package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stagefront/seatpack-sync/internal/reconcile"
	"github.com/stagefront/seatpack-sync/internal/repository"
	"gorm.io/gorm"
)

// SyncExecutorConfig enumerates the executor's knobs.
type SyncExecutorConfig struct {
	// SourcePrefix is the venue/source prefix baked into generated pack ids.
	SourcePrefix string
	// IDRetryLimit bounds the uniqueness-retry loop on id collision.
	IDRetryLimit int
}

// ExecutionResult is the outcome of one sync action.
type ExecutionResult struct {
	Success       bool
	ActionType    string
	PackID        string
	CreatedPackID string
	ErrorMessage  string
}

// SyncExecutionSummary aggregates a plan execution.
type SyncExecutionSummary struct {
	TotalActions      int
	SuccessfulActions int
	FailedActions     int

	CreatedPacks  int
	UpdatedPacks  int
	DelistedPacks int
	SyncedPacks   int

	CreatedPackIDs []string
	Results        []ExecutionResult
	Errors         []string
	ExecutionTime  time.Duration
}

// Succeeded reports overall success: zero failed actions.
func (s *SyncExecutionSummary) Succeeded() bool {
	return s.FailedActions == 0
}

// SyncExecutor applies a SyncPlan to persistent storage inside one
// transaction, enforcing the four-dimensional lifecycle state machine.
type SyncExecutor interface {
	Execute(ctx context.Context, plan reconcile.SyncPlan, perf *models.Performance, isInitialScrape bool) (*SyncExecutionSummary, error)
}

type syncExecutor struct {
	packRepo repository.SeatPackRepository
	cfg      SyncExecutorConfig
}

func NewSyncExecutor(packRepo repository.SeatPackRepository, cfg SyncExecutorConfig) SyncExecutor {
	if cfg.IDRetryLimit <= 0 {
		cfg.IDRetryLimit = 10
	}
	return &syncExecutor{packRepo: packRepo, cfg: cfg}
}

// Execute runs the whole plan inside a single transaction. Per-action
// failures are recorded without aborting sibling actions; only a
// non-recoverable error rolls the transaction back, leaving the prior
// committed state intact.
func (e *syncExecutor) Execute(
	ctx context.Context,
	plan reconcile.SyncPlan,
	perf *models.Performance,
	isInitialScrape bool,
) (*SyncExecutionSummary, error) {
	start := time.Now()
	summary := &SyncExecutionSummary{}

	log.Printf("[SyncExecutor] executing plan for performance %s (initial=%t, actions=%d)",
		perf.InternalPerformanceID, isInitialScrape, plan.TotalActions())

	err := e.packRepo.Transaction(ctx, func(tx *gorm.DB) error {
		for _, action := range plan.CreationActions {
			res := e.executeCreation(ctx, tx, action, perf)
			e.record(summary, res)
			if res.Success {
				summary.CreatedPacks++
				summary.CreatedPackIDs = append(summary.CreatedPackIDs, res.CreatedPackID)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		for _, action := range plan.UpdateActions {
			res := e.isolated(tx, func(tx *gorm.DB) ExecutionResult {
				return e.executeUpdate(ctx, tx, action)
			})
			e.record(summary, res)
			if res.Success {
				summary.UpdatedPacks++
			}
		}

		// A brand-new performance has nothing to retire.
		if isInitialScrape {
			if n := len(plan.DelistActions); n > 0 {
				log.Printf("[SyncExecutor] skipping %d delist actions for initial scrape", n)
			}
		} else {
			for _, action := range plan.DelistActions {
				res := e.isolated(tx, func(tx *gorm.DB) ExecutionResult {
					return e.executeDelist(ctx, tx, action)
				})
				e.record(summary, res)
				if res.Success && res.ErrorMessage == "" {
					summary.DelistedPacks++
				}
			}
		}

		for _, action := range plan.SyncActions {
			var confirmed bool
			res := e.isolated(tx, func(tx *gorm.DB) ExecutionResult {
				var r ExecutionResult
				r, confirmed = e.executeSync(ctx, tx, action)
				return r
			})
			e.record(summary, res)
			if confirmed {
				summary.SyncedPacks++
			}
		}

		return nil
	})

	summary.ExecutionTime = time.Since(start)

	if err != nil {
		log.Printf("[SyncExecutor] plan execution rolled back for %s: %v", perf.InternalPerformanceID, err)
		return nil, fmt.Errorf("execute sync plan: %w", err)
	}

	log.Printf("[SyncExecutor] plan executed for %s: %d/%d successful (%d created, %d updated, %d delisted, %d synced) in %s",
		perf.InternalPerformanceID, summary.SuccessfulActions, summary.TotalActions,
		summary.CreatedPacks, summary.UpdatedPacks, summary.DelistedPacks, summary.SyncedPacks,
		summary.ExecutionTime)

	return summary, nil
}

// errActionRolledBack triggers the savepoint rollback for a failed action;
// the ExecutionResult already carries the real error message.
var errActionRolledBack = errors.New("action rolled back")

// isolated runs one action inside a nested transaction (a SAVEPOINT on
// Postgres). An errored statement aborts the enclosing Postgres transaction
// until a rollback, so without the savepoint one failed action would poison
// every sibling and the final commit. A nil tx means the repository is not
// statement-backed; run the action inline.
func (e *syncExecutor) isolated(tx *gorm.DB, fn func(tx *gorm.DB) ExecutionResult) ExecutionResult {
	if tx == nil {
		return fn(nil)
	}
	var res ExecutionResult
	_ = tx.Transaction(func(inner *gorm.DB) error {
		res = fn(inner)
		if !res.Success {
			return errActionRolledBack
		}
		return nil
	})
	return res
}

// createInSavepoint shields the insert the same way: a unique violation must
// leave the enclosing transaction usable for the id-collision retry and for
// sibling actions.
func (e *syncExecutor) createInSavepoint(ctx context.Context, tx *gorm.DB, pack *models.SeatPack) error {
	if tx == nil {
		return e.packRepo.Create(ctx, tx, pack)
	}
	return tx.Transaction(func(inner *gorm.DB) error {
		return e.packRepo.Create(ctx, inner, pack)
	})
}

func (e *syncExecutor) record(summary *SyncExecutionSummary, res ExecutionResult) {
	summary.TotalActions++
	summary.Results = append(summary.Results, res)
	if res.Success {
		summary.SuccessfulActions++
	} else {
		summary.FailedActions++
		summary.Errors = append(summary.Errors, res.ErrorMessage)
	}
}

func (e *syncExecutor) executeCreation(ctx context.Context, tx *gorm.DB, action reconcile.CreationAction, perf *models.Performance) ExecutionResult {
	cand := action.Pack

	packID, err := e.allocatePackID(ctx, tx, perf.InternalPerformanceID)
	if err != nil {
		return ExecutionResult{ActionType: string(action.ActionType), ErrorMessage: fmt.Sprintf("allocate pack id: %v", err)}
	}

	for attempt := 0; ; attempt++ {
		pack := &models.SeatPack{
			InternalPackID:  packID,
			PerformanceID:   perf.InternalPerformanceID,
			ZoneID:          cand.ZoneID,
			LevelID:         cand.LevelID,
			SectionID:       cand.SectionID,
			RowLabel:        cand.RowLabel,
			StartSeatNumber: cand.StartSeatNumber,
			EndSeatNumber:   cand.EndSeatNumber,
			PackSize:        cand.PackSize,
			PackPrice:       cand.PackPrice,
			TotalPrice:      cand.TotalPrice,
			SeatKeys:        cand.SeatKeys,
			SourcePackIDs:   action.SourcePackIDs,
			PackStatus:      models.PackActive,
			POSStatus:       models.POSPending,
			PackState:       action.ActionType,
		}

		err := e.createInSavepoint(ctx, tx, pack)
		if err == nil {
			return ExecutionResult{
				Success:       true,
				ActionType:    string(action.ActionType),
				PackID:        packID,
				CreatedPackID: packID,
			}
		}
		if !errors.Is(err, repository.ErrDuplicateID) || attempt >= e.cfg.IDRetryLimit {
			return ExecutionResult{ActionType: string(action.ActionType), ErrorMessage: fmt.Sprintf("create pack: %v", err)}
		}

		// Identity collision: regenerate and retry only this creation.
		packID, err = e.allocatePackID(ctx, tx, perf.InternalPerformanceID)
		if err != nil {
			return ExecutionResult{ActionType: string(action.ActionType), ErrorMessage: fmt.Sprintf("reallocate pack id: %v", err)}
		}
	}
}

// allocatePackID generates the next {prefix}_PACK_{performance}_{seq} id,
// probing past existing ids until a free slot is found.
func (e *syncExecutor) allocatePackID(ctx context.Context, tx *gorm.DB, performanceID string) (string, error) {
	count, err := e.packRepo.CountByPerformance(ctx, tx, performanceID)
	if err != nil {
		return "", err
	}

	seq := count + 1
	for i := 0; i <= e.cfg.IDRetryLimit; i++ {
		id := fmt.Sprintf("%s_PACK_%s_%04d", e.cfg.SourcePrefix, performanceID, seq)
		exists, err := e.packRepo.ExistsByID(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		seq++
	}
	return "", fmt.Errorf("no free pack id after %d probes for performance %s", e.cfg.IDRetryLimit+1, performanceID)
}

func (e *syncExecutor) executeUpdate(ctx context.Context, tx *gorm.DB, action reconcile.UpdateAction) ExecutionResult {
	fields := make(map[string]any, len(action.Changes))
	for field, change := range action.Changes {
		fields[field] = change.New
	}

	if err := e.packRepo.UpdateFields(ctx, tx, action.PackID, fields); err != nil {
		return ExecutionResult{ActionType: "update", PackID: action.PackID, ErrorMessage: fmt.Sprintf("update pack %s: %v", action.PackID, err)}
	}
	return ExecutionResult{Success: true, ActionType: "update", PackID: action.PackID}
}

// executeDelist applies the four-dimensional delist transition:
// pack_status active→inactive, pack_state derived from the reason, and
// pos_status recomputed so the sweep knows whether a vendor delete is owed.
func (e *syncExecutor) executeDelist(ctx context.Context, tx *gorm.DB, action reconcile.DelistAction) ExecutionResult {
	pack, err := e.packRepo.FindActiveByID(ctx, tx, action.PackID)
	if errors.Is(err, repository.ErrNotFound) {
		// Already inactive: the end state is reached, not a failure.
		return ExecutionResult{Success: true, ActionType: "delist", PackID: action.PackID,
			ErrorMessage: fmt.Sprintf("pack %s not found or already inactive", action.PackID)}
	}
	if err != nil {
		return ExecutionResult{ActionType: "delist", PackID: action.PackID, ErrorMessage: fmt.Sprintf("load pack %s: %v", action.PackID, err)}
	}

	fields := map[string]any{
		"pack_status":   models.PackInactive,
		"delist_reason": action.Reason,
		"pack_state":    models.DelistPackState(action.Reason),
	}

	switch {
	case pack.POSInventoryID != "" && (pack.POSStatus == models.POSActive || pack.POSStatus == models.POSSynced):
		// Live on the vendor: mark the delete as owed, the sweep settles it.
		fields["pos_status"] = models.POSInactive
		fields["pos_synced"] = false
	case pack.POSStatus == models.POSPending:
		// Never pushed, nothing owed to the vendor.
		fields["pos_status"] = models.POSInactive
		fields["pos_synced"] = true
	default:
		fields["pos_synced"] = true
	}

	if action.Reason == models.ReasonManualDelist {
		fields["manually_delisted"] = true
		fields["manually_delisted_at"] = time.Now()
	}

	if err := e.packRepo.UpdateFields(ctx, tx, action.PackID, fields); err != nil {
		return ExecutionResult{ActionType: "delist", PackID: action.PackID, ErrorMessage: fmt.Sprintf("delist pack %s: %v", action.PackID, err)}
	}
	return ExecutionResult{Success: true, ActionType: "delist", PackID: action.PackID}
}

// executeSync confirms a pack as synced with the vendor. It is idempotent:
// re-applying to an already-synced pack succeeds without a write. A pack
// that was never pushed stays pending for the push stage; that is a
// successful no-op here, not a failure.
func (e *syncExecutor) executeSync(ctx context.Context, tx *gorm.DB, action reconcile.SyncAction) (ExecutionResult, bool) {
	pack, err := e.packRepo.FindActiveByID(ctx, tx, action.PackID)
	if err != nil {
		return ExecutionResult{ActionType: "sync", PackID: action.PackID, ErrorMessage: fmt.Sprintf("load pack %s: %v", action.PackID, err)}, false
	}

	if pack.POSStatus == models.POSSynced {
		return ExecutionResult{Success: true, ActionType: "sync", PackID: action.PackID}, true
	}
	if pack.POSInventoryID == "" {
		return ExecutionResult{Success: true, ActionType: "sync", PackID: action.PackID,
			ErrorMessage: fmt.Sprintf("pack %s not pushed yet, deferred to push stage", action.PackID)}, false
	}

	fields := map[string]any{
		"pos_status":    models.POSSynced,
		"pos_synced":    true,
		"pos_synced_at": time.Now(),
	}
	if err := e.packRepo.UpdateFields(ctx, tx, action.PackID, fields); err != nil {
		return ExecutionResult{ActionType: "sync", PackID: action.PackID, ErrorMessage: fmt.Sprintf("sync pack %s: %v", action.PackID, err)}, false
	}
	return ExecutionResult{Success: true, ActionType: "sync", PackID: action.PackID}, true
}
