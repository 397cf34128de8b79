// Package events publishes trade lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/tradereplay/internal/models"
)

const (
	TradeOpened    = "trade.opened"
	TradeResolved  = "trade.resolved"
	TradeScratched = "trade.scratched"

	writeTimeout = 5 * time.Second
)

// TradeEvent is the JSON payload written for every trade state change.
type TradeEvent struct {
	Type       string           `json:"type"`
	TradeID    string           `json:"trade_id"`
	SessionID  string           `json:"session_id"`
	Direction  models.Direction `json:"direction"`
	Outcome    models.Outcome   `json:"outcome"`
	EntryPrice float64          `json:"entry_price"`
	ExitPrice  *float64         `json:"exit_price,omitempty"`
	PnLPoints  float64          `json:"pnl_points"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewTradeEvent snapshots t.
func NewTradeEvent(eventType string, t *models.Trade, at time.Time) TradeEvent {
	return TradeEvent{
		Type:       eventType,
		TradeID:    t.ID,
		SessionID:  t.SessionID,
		Direction:  t.Direction,
		Outcome:    t.Outcome,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		PnLPoints:  t.PnLPoints,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers trade events.
type Publisher interface {
	Publish(ctx context.Context, ev TradeEvent) error
	Close() error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer for the trade topic.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Zstd,
	}
}

// KafkaPublisher writes each event as one message keyed by trade id.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev TradeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize event failed: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(ev.TradeID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, TradeEvent) error { return nil }
func (Noop) Close() error                              { return nil }
