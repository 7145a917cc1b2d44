package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"vidstream/config"
	"vidstream/dto"
)

// Publisher enqueues jobs onto the media exchange. Channels are opened per
// publish; amqp channels are not safe for concurrent use.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeName, cfg.Kind, true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, cfg: cfg}, nil
}

func (p *Publisher) PublishProcess(ctx context.Context, message dto.ProcessMessage) error {
	return p.publish(ctx, ProcessRoutingKey, message)
}

func (p *Publisher) PublishCleanup(ctx context.Context) error {
	return p.publish(ctx, CleanupRoutingKey, dto.CleanupMessage{RequestedAt: time.Now()})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}
