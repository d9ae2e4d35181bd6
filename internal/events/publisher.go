// Package events publishes catalog change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"productflow/internal/domain"
)

const (
	TypeProductCreated = "product.created"
	TypeProductDeleted = "product.deleted"
)

// ProductEvent is the JSON payload written for every product change.
type ProductEvent struct {
	EventID     string    `json:"eventId"`
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurredAt"`
	ProductID   int64     `json:"productId"`
	SKU         string    `json:"sku"`
	ProductName string    `json:"productName"`
}

// NewProductEvent stamps a fresh event id and time onto a product change.
func NewProductEvent(eventType string, p domain.Product) ProductEvent {
	return ProductEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		ProductID:   p.ID,
		SKU:         p.SKU,
		ProductName: p.Name,
	}
}

// Publisher delivers product events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, event ProductEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ProductEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by product id, so every
// change of one product lands on the same partition. Writes are asynchronous;
// delivery failures surface in the writer's completion log.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka producer error", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event ProductEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ProductID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: write %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
