// Package notify delivers fire-and-forget sync lifecycle events. Delivery
// failure is logged and ignored; it must never influence a pass's outcome.
package notify

import (
	"log"
	"time"

	"github.com/stagefront/seatpack-sync/pkg/rabbitmq"
)

// SyncCounts is the payload fragment shared by completion events.
type SyncCounts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Delisted  int `json:"delisted"`
	Synced    int `json:"synced"`
	POSPushed int `json:"pos_pushed"`
	Failed    int `json:"failed"`
}

type Notifier interface {
	SyncStarted(operationID, performanceID string)
	SyncCompleted(operationID, performanceID string, success bool, counts SyncCounts, warnings []string)
	SyncError(operationID, performanceID, message string)
}

type amqpNotifier struct {
	publisher *rabbitmq.Publisher
}

// NewAMQPNotifier publishes sync events to the notifications exchange.
func NewAMQPNotifier(publisher *rabbitmq.Publisher) Notifier {
	return &amqpNotifier{publisher: publisher}
}

type syncEvent struct {
	OperationID   string      `json:"operation_id"`
	PerformanceID string      `json:"performance_id"`
	Success       *bool       `json:"success,omitempty"`
	Counts        *SyncCounts `json:"counts,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
	Error         string      `json:"error,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

func (n *amqpNotifier) SyncStarted(operationID, performanceID string) {
	n.publish("sync.started", syncEvent{
		OperationID:   operationID,
		PerformanceID: performanceID,
		Timestamp:     time.Now(),
	})
}

func (n *amqpNotifier) SyncCompleted(operationID, performanceID string, success bool, counts SyncCounts, warnings []string) {
	n.publish("sync.completed", syncEvent{
		OperationID:   operationID,
		PerformanceID: performanceID,
		Success:       &success,
		Counts:        &counts,
		Warnings:      warnings,
		Timestamp:     time.Now(),
	})
}

func (n *amqpNotifier) SyncError(operationID, performanceID, message string) {
	n.publish("sync.error", syncEvent{
		OperationID:   operationID,
		PerformanceID: performanceID,
		Error:         message,
		Timestamp:     time.Now(),
	})
}

func (n *amqpNotifier) publish(routingKey string, event syncEvent) {
	if err := n.publisher.Publish(routingKey, event); err != nil {
		log.Printf("[Notifier] failed to publish %s for operation %s: %v", routingKey, event.OperationID, err)
	}
}

// NopNotifier discards all events. Used in tests and when notifications are
// disabled.
type NopNotifier struct{}

func (NopNotifier) SyncStarted(string, string)                               {}
func (NopNotifier) SyncCompleted(string, string, bool, SyncCounts, []string) {}
func (NopNotifier) SyncError(string, string, string)                         {}
