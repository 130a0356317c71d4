package commandbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/harborgrid-justin/cadcore/common"
	"github.com/harborgrid-justin/cadcore/common/mrabbitmq"
)

// OutboxPublisher publishes a Result's produced event types to an AMQP
// exchange after a successful Execute, giving downstream consumers a
// transport-level notification alongside the durable event log.
type OutboxPublisher struct {
	connection *mrabbitmq.RabbitMQConnection
	exchange   string
	routingKey string
}

// NewOutboxPublisher binds a publisher to an already-configured rabbitmq
// connection hub.
func NewOutboxPublisher(conn *mrabbitmq.RabbitMQConnection, exchange, routingKey string) *OutboxPublisher {
	return &OutboxPublisher{connection: conn, exchange: exchange, routingKey: routingKey}
}

type outboxMessage struct {
	CommandID   string   `json:"command_id"`
	AggregateID string   `json:"aggregate_id"`
	EventTypes  []string `json:"event_types"`
	Version     uint64   `json:"version"`
}

// Publish sends result as a persistent JSON message. The caller (Bus.Execute)
// decides how to handle a publish failure: the outbox is best-effort
// notification, not the durability boundary.
func (p *OutboxPublisher) Publish(ctx context.Context, result Result) error {
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "commandbus.outbox.publish")
	defer span.End()

	channel, err := p.connection.GetChannel(ctx)
	if err != nil {
		return fmt.Errorf("acquiring rabbitmq channel: %w", err)
	}

	body, err := json.Marshal(outboxMessage{
		CommandID:   result.CommandID,
		AggregateID: result.AggregateID,
		EventTypes:  result.EventTypes,
		Version:     result.Version,
	})
	if err != nil {
		return fmt.Errorf("marshalling outbox message: %w", err)
	}

	if err := channel.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publishing outbox message: %w", err)
	}

	return nil
}
