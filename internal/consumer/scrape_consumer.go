package consumer

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stagefront/seatpack-sync/internal/dto"
	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stagefront/seatpack-sync/internal/reconcile"
	"github.com/stagefront/seatpack-sync/internal/repository"
	"github.com/stagefront/seatpack-sync/internal/service"
)

// Workflow is the slice of the workflow manager the consumer drives.
type Workflow interface {
	ProcessAutoDetectScenario(ctx context.Context, performanceID string, candidates []reconcile.CandidatePack) *service.WorkflowResult
}

// ScrapeConsumer drains scrape-completed messages and drives one
// reconciliation pass per message.
type ScrapeConsumer struct {
	perfRepo repository.PerformanceRepository
	workflow Workflow
	timeout  time.Duration

	// requeueDelay throttles requeue nacks. RabbitMQ redelivers a nacked
	// message immediately, so a held lock would otherwise spin the consumer
	// hot for the lock's whole duration.
	requeueDelay time.Duration
}

func NewScrapeConsumer(perfRepo repository.PerformanceRepository, workflow Workflow, timeout time.Duration) *ScrapeConsumer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ScrapeConsumer{perfRepo: perfRepo, workflow: workflow, timeout: timeout, requeueDelay: 5 * time.Second}
}

// Start processes deliveries until the channel closes. Messages are acked
// one at a time; a pass covers a single performance so there is no batching.
func (sc *ScrapeConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			sc.handleMessage(msg)
		}
		log.Println("[ScrapeConsumer] channel closed, stopping consumer")
	}()
}

func (sc *ScrapeConsumer) handleMessage(msg amqp.Delivery) {
	var scrape dto.ScrapeCompletedMessage
	if err := json.Unmarshal(msg.Body, &scrape); err != nil {
		log.Printf("[ScrapeConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false) // malformed, drop
		return
	}
	if err := scrape.Validate(); err != nil {
		log.Printf("[ScrapeConsumer] invalid scrape message for job %s: %v", scrape.ScrapeJobID, err)
		msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sc.timeout)
	defer cancel()

	// Performance metadata rides along on every scrape message; keep the
	// local record current before reconciling against it.
	perf := &models.Performance{
		InternalPerformanceID: scrape.PerformanceID,
		EventName:             scrape.EventName,
		VenueName:             scrape.VenueName,
		SourceWebsite:         scrape.SourceWebsite,
		PerformanceDate:       scrape.PerformanceDate,
		POSEnabled:            scrape.POSEnabled,
	}
	if err := sc.perfRepo.Upsert(ctx, perf); err != nil {
		log.Printf("[ScrapeConsumer] failed to upsert performance %s: %v", scrape.PerformanceID, err)
		sc.requeue(msg)
		return
	}

	result := sc.workflow.ProcessAutoDetectScenario(ctx, scrape.PerformanceID, scrape.ToCandidates())
	if result.Stage == service.StageFailed {
		// A held lock or transient infrastructure error: requeue so the
		// scrape is retried once the current pass finishes. POS push
		// failures do not land here; those complete the pass with warnings.
		requeue := !isPermanent(result)
		log.Printf("[ScrapeConsumer] pass %s failed for performance %s (requeue=%t): %v",
			result.OperationID, scrape.PerformanceID, requeue, result.ErrorMessages)
		if requeue {
			sc.requeue(msg)
		} else {
			msg.Nack(false, false)
		}
		return
	}

	log.Printf("[ScrapeConsumer] processed scrape %s for performance %s: success=%t, %d created, %d delisted",
		scrape.ScrapeJobID, scrape.PerformanceID, result.Success, result.CreatedPacks, result.DelistedPacks)
	msg.Ack(false)
}

// requeue backs off before the nack so redelivery is paced instead of
// spinning against a condition that needs time to clear.
func (sc *ScrapeConsumer) requeue(msg amqp.Delivery) {
	time.Sleep(sc.requeueDelay)
	msg.Nack(false, true)
}

// isPermanent reports whether retrying the same message can ever succeed.
// Missing records are permanent; lock contention and connectivity are not.
func isPermanent(result *service.WorkflowResult) bool {
	for _, msg := range result.ErrorMessages {
		if strings.Contains(msg, repository.ErrNotFound.Error()) {
			return true
		}
	}
	return false
}
