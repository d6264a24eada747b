// Package events publishes terminal reconciliation outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 10 * time.Millisecond
)

var (
	publishedCounter     = metrics.GetOrCreateCounter(`outcome_events_total{result="published"}`)
	publishFailedCounter = metrics.GetOrCreateCounter(`outcome_events_total{result="publish_failed"}`)
)

// OutcomeEvent is the message value written for every terminal transaction.
type OutcomeEvent struct {
	TransactionID int64     `json:"transaction_id"`
	InvoiceID     int64     `json:"invoice_id"`
	State         string    `json:"state"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	ChargeID      string    `json:"charge_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	NeedsReview   bool      `json:"needs_review"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewOutcomeEvent(o *domain.Outcome, at time.Time) OutcomeEvent {
	return OutcomeEvent{
		TransactionID: o.TransactionID,
		InvoiceID:     o.InvoiceID,
		State:         string(o.State),
		Amount:        o.Amount.StringFixed(2),
		Currency:      o.Currency,
		ChargeID:      o.ChargeID,
		Error:         o.Error,
		NeedsReview:   o.NeedsReview,
		OccurredAt:    at.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by transaction id so all events for one
// transaction land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewWriter(cfg config.EventsConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              DefaultBatchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           DefaultBatchTimeout,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, outcome *domain.Outcome) error {
	value, err := json.Marshal(NewOutcomeEvent(outcome, p.now()))
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(outcome.TransactionID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("reconcile_outcome")},
		},
	})
	if err != nil {
		publishFailedCounter.Inc()
		return fmt.Errorf("write outcome event: %w", err)
	}
	publishedCounter.Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOutcome(context.Context, *domain.Outcome) error { return nil }
