// internal/queue/producer.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LeadEventPayload is the wire form of an engine mutation event.
type LeadEventPayload struct {
	LeadID    int64     `json:"lead_id"`
	EventType string    `json:"event_type"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

type LeadEventProducer struct {
	ch *amqp.Channel
}

func NewLeadEventProducer(rmq *RabbitMQ) *LeadEventProducer {
	return &LeadEventProducer{ch: rmq.Ch}
}

// PublishLeadEvent publishes one event as a persistent JSON message.
func (p *LeadEventProducer) PublishLeadEvent(ctx context.Context, payload LeadEventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal lead event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish lead event: %w", err)
	}

	return nil
}
