package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stagefront/seatpack-sync/internal/lock"
	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stagefront/seatpack-sync/internal/notify"
	"github.com/stagefront/seatpack-sync/internal/reconcile"
	"github.com/stagefront/seatpack-sync/internal/repository"
)

// Scenario says which workflow variant a pass ran.
type Scenario string

const (
	ScenarioInitial    Scenario = "initial"
	ScenarioSubsequent Scenario = "subsequent"
)

// Stage is the workflow state machine position a pass ended in.
type Stage string

const (
	StageStart        Stage = "START"
	StageReconcile    Stage = "RECONCILE"
	StageExecute      Stage = "EXECUTE"
	StagePushPOS      Stage = "PUSH_POS"
	StageSweepPending Stage = "SWEEP_PENDING"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
)

// WorkflowResult is the unified outcome of one reconcile-and-sync pass.
type WorkflowResult struct {
	Success       bool
	OperationID   string
	PerformanceID string
	Scenario      Scenario
	Stage         Stage

	CreatedPacks          int
	UpdatedPacks          int
	DelistedPacks         int
	SyncedPacks           int
	POSInventoriesCreated int

	ExecutionTime time.Duration
	Warnings      []string
	ErrorMessages []string
}

// WorkflowManager orchestrates one pass:
// START → RECONCILE → EXECUTE → PUSH_POS → SWEEP_PENDING → DONE.
// The EXECUTE stage is transactional; POS side-effects after the commit are
// best-effort and reported, never rolled back.
type WorkflowManager struct {
	packRepo repository.SeatPackRepository
	perfRepo repository.PerformanceRepository
	executor SyncExecutor
	pusher   InventoryPusher
	notifier notify.Notifier
	locker   lock.PerformanceLocker
}

func NewWorkflowManager(
	packRepo repository.SeatPackRepository,
	perfRepo repository.PerformanceRepository,
	executor SyncExecutor,
	pusher InventoryPusher,
	notifier notify.Notifier,
	locker lock.PerformanceLocker,
) *WorkflowManager {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if locker == nil {
		locker = lock.NopLocker{}
	}
	return &WorkflowManager{
		packRepo: packRepo,
		perfRepo: perfRepo,
		executor: executor,
		pusher:   pusher,
		notifier: notifier,
		locker:   locker,
	}
}

// ProcessAutoDetectScenario inspects whether any active pack exists for the
// performance and dispatches to the matching scenario.
func (m *WorkflowManager) ProcessAutoDetectScenario(ctx context.Context, performanceID string, candidates []reconcile.CandidatePack) *WorkflowResult {
	hasActive, err := m.packRepo.HasActivePacks(ctx, performanceID)
	if err != nil {
		result := newResult(ScenarioSubsequent, performanceID)
		return m.fail(result, StageStart, fmt.Errorf("detect scenario: %w", err))
	}
	if hasActive {
		return m.ProcessSubsequentScrape(ctx, performanceID, candidates)
	}
	return m.ProcessInitialScrape(ctx, performanceID, candidates)
}

// ProcessInitialScrape handles the first-ever scrape of a performance:
// everything is a creation and delist actions are suppressed.
func (m *WorkflowManager) ProcessInitialScrape(ctx context.Context, performanceID string, candidates []reconcile.CandidatePack) *WorkflowResult {
	return m.run(ctx, ScenarioInitial, performanceID, candidates)
}

// ProcessSubsequentScrape runs the full diff pipeline against the recorded
// active packs.
func (m *WorkflowManager) ProcessSubsequentScrape(ctx context.Context, performanceID string, candidates []reconcile.CandidatePack) *WorkflowResult {
	return m.run(ctx, ScenarioSubsequent, performanceID, candidates)
}

func newResult(scenario Scenario, performanceID string) *WorkflowResult {
	return &WorkflowResult{
		OperationID:   uuid.NewString(),
		PerformanceID: performanceID,
		Scenario:      scenario,
		Stage:         StageStart,
	}
}

func (m *WorkflowManager) run(ctx context.Context, scenario Scenario, performanceID string, candidates []reconcile.CandidatePack) *WorkflowResult {
	start := time.Now()
	result := newResult(scenario, performanceID)
	defer func() { result.ExecutionTime = time.Since(start) }()

	release, err := m.locker.Acquire(ctx, performanceID)
	if err != nil {
		return m.fail(result, StageStart, fmt.Errorf("acquire performance lock: %w", err))
	}
	defer release()

	m.notifier.SyncStarted(result.OperationID, performanceID)
	log.Printf("[Workflow] %s pass %s started for performance %s (%d candidates)",
		scenario, result.OperationID, performanceID, len(candidates))

	perf, err := m.perfRepo.FindByID(ctx, performanceID)
	if err != nil {
		return m.fail(result, StageStart, fmt.Errorf("load performance %s: %w", performanceID, err))
	}

	// RECONCILE. Skipped for an initial scrape: with no existing packs the
	// diff degenerates to pure creations.
	result.Stage = StageReconcile
	var existing, manual []models.SeatPack
	if scenario == ScenarioSubsequent {
		if existing, err = m.packRepo.FindActiveByPerformance(ctx, performanceID); err != nil {
			return m.fail(result, StageReconcile, fmt.Errorf("load active packs: %w", err))
		}
		if manual, err = m.packRepo.FindManuallyDelisted(ctx, performanceID); err != nil {
			return m.fail(result, StageReconcile, fmt.Errorf("load manually delisted packs: %w", err))
		}
	}

	plan := reconcile.Diff(existing, candidates, reconcile.DiffOptions{
		PerformanceID:    performanceID,
		POSEnabled:       perf.POSEnabled,
		ManuallyDelisted: manual,
	})
	if plan.SuspectEmptyScrape {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("empty candidate set with %d active packs: treating scrape as failed, no packs delisted", len(existing)))
	}

	// EXECUTE: the only transactional stage.
	result.Stage = StageExecute
	summary, err := m.executor.Execute(ctx, plan, perf, scenario == ScenarioInitial)
	if err != nil {
		return m.fail(result, StageExecute, err)
	}
	result.CreatedPacks = summary.CreatedPacks
	result.UpdatedPacks = summary.UpdatedPacks
	result.DelistedPacks = summary.DelistedPacks
	result.SyncedPacks = summary.SyncedPacks
	result.ErrorMessages = append(result.ErrorMessages, summary.Errors...)

	// POS stages run outside the transaction. "DB committed, vendor call not
	// yet attempted" is a normal state repaired by the sweep.
	posFailures := 0
	if perf.POSEnabled {
		result.Stage = StagePushPOS
		created := make(map[string]bool, len(summary.CreatedPackIDs))
		for _, id := range summary.CreatedPackIDs {
			created[id] = true
		}

		pending, err := m.packRepo.FindPendingForPush(ctx, performanceID)
		if err != nil {
			return m.fail(result, StagePushPOS, fmt.Errorf("load pending packs: %w", err))
		}
		var fresh, leftover []models.SeatPack
		for _, p := range pending {
			if created[p.InternalPackID] {
				fresh = append(fresh, p)
			} else {
				leftover = append(leftover, p)
			}
		}

		push := m.pusher.CreateBulkInventory(ctx, fresh, perf)
		result.POSInventoriesCreated += push.Created
		result.Warnings = append(result.Warnings, push.Errors...)
		posFailures += push.Failed

		owed, err := m.packRepo.FindOwedPOSDeletes(ctx, performanceID)
		if err != nil {
			return m.fail(result, StagePushPOS, fmt.Errorf("load owed deletes: %w", err))
		}
		del := m.pusher.DelistSeatPacks(ctx, owed)
		result.Warnings = append(result.Warnings, del.Errors...)
		posFailures += del.FailedCount

		// SWEEP_PENDING: packs a previous pass left unconfirmed. Packs that
		// just failed in PUSH_POS are not retried here; the periodic sweep
		// picks them up instead.
		result.Stage = StageSweepPending
		sweep := m.pusher.CreateBulkInventory(ctx, leftover, perf)
		result.POSInventoriesCreated += sweep.Created
		result.SyncedPacks += sweep.Created
		result.Warnings = append(result.Warnings, sweep.Errors...)
		posFailures += sweep.Failed
	}

	result.Stage = StageDone
	result.Success = summary.Succeeded() && posFailures == 0

	m.notifier.SyncCompleted(result.OperationID, performanceID, result.Success, notify.SyncCounts{
		Created:   result.CreatedPacks,
		Updated:   result.UpdatedPacks,
		Delisted:  result.DelistedPacks,
		Synced:    result.SyncedPacks,
		POSPushed: result.POSInventoriesCreated,
		Failed:    summary.FailedActions + posFailures,
	}, result.Warnings)

	log.Printf("[Workflow] %s pass %s finished for performance %s: success=%t (%d created, %d updated, %d delisted, %d pushed)",
		scenario, result.OperationID, performanceID, result.Success,
		result.CreatedPacks, result.UpdatedPacks, result.DelistedPacks, result.POSInventoriesCreated)

	return result
}

func (m *WorkflowManager) fail(result *WorkflowResult, stage Stage, err error) *WorkflowResult {
	result.Stage = StageFailed
	result.Success = false
	result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("%s: %v", stage, err))
	m.notifier.SyncError(result.OperationID, result.PerformanceID, err.Error())
	log.Printf("[Workflow] pass %s failed at %s for performance %s: %v",
		result.OperationID, stage, result.PerformanceID, err)
	return result
}
