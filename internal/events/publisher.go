// Package events publishes extraction completion messages to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// EventExtractionCompleted is the message type header value.
const EventExtractionCompleted = "extraction.completed"

// Channel is the slice of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
}

// CompletedEvent is the JSON body published after a successful save.
type CompletedEvent struct {
	AccountID  string            `json:"account_id"`
	Timestamp  time.Time         `json:"timestamp"`
	TotalCount int               `json:"total_count"`
	PriceRange domain.PriceRange `json:"price_range"`
	ProductIDs []string          `json:"product_ids"`
}

// Publisher sends one CompletedEvent per extraction result to a queue.
type Publisher struct {
	ch    Channel
	queue string
	close func() error
}

// NewPublisher wraps an already open channel.
func NewPublisher(ch Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue, close: func() error { return nil }}
}

// Dial connects to the broker, opens a channel, and declares a durable
// queue.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare queue %s: %w", queue, err)
	}

	p := NewPublisher(ch, queue)
	p.close = func() error {
		return errors.Join(ch.Close(), conn.Close())
	}
	return p, nil
}

// Save publishes the completion event for result.
func (p *Publisher) Save(ctx context.Context, result *domain.ExtractionResult) error {
	body, err := json.Marshal(newCompletedEvent(result))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         EventExtractionCompleted,
		Timestamp:    result.Summary.Timestamp,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.queue, err)
	}
	return nil
}

// Close releases the channel and connection opened by Dial.
func (p *Publisher) Close() error {
	return p.close()
}

func newCompletedEvent(result *domain.ExtractionResult) CompletedEvent {
	ids := make([]string, 0, len(result.Products))
	for i := range result.Products {
		ids = append(ids, result.Products[i].ID)
	}
	return CompletedEvent{
		AccountID:  result.Summary.AccountID,
		Timestamp:  result.Summary.Timestamp,
		TotalCount: result.Summary.TotalCount,
		PriceRange: result.Summary.PriceRange,
		ProductIDs: ids,
	}
}
