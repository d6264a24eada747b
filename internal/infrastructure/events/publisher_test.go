package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_PublishOutcome(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return at }

	err := p.PublishOutcome(context.Background(), &domain.Outcome{
		TransactionID: 12,
		InvoiceID:     42,
		State:         domain.StateProcessed,
		Amount:        decimal.RequireFromString("250"),
		Currency:      "INR",
		ChargeID:      "pay_1",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "12", string(msg.Key))

	var event OutcomeEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "processed", event.State)
	assert.Equal(t, "250.00", event.Amount)
	assert.Equal(t, "pay_1", event.ChargeID)
	assert.Equal(t, at, event.OccurredAt)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("broker down")})

	err := p.PublishOutcome(context.Background(), &domain.Outcome{TransactionID: 1})

	assert.ErrorContains(t, err, "broker down")
}
