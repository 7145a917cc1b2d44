package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vidstream/config"
)

// CleanupConsumer drives the cleanup lane. Sweeps are not retried: a
// failed sweep simply runs again next period, so every message is acked.
type CleanupConsumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type cleanupConsumer[T any] struct {
	conn    *amqp.Connection
	cfg     *config.RabbitMQ
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error
}

func (c cleanupConsumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(ExchangeName, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", ExchangeName).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(CleanupQueueName, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", CleanupQueueName).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, CleanupRoutingKey, ExchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", CleanupQueueName).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(1, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", CleanupQueueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(CleanupQueueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", CleanupQueueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("queue", CleanupQueueName).Msg("cleanup consumer started")

	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := c.handler(ctx, msg, dependencies); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("cleanup sweep failed, will run again next period")
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func NewCleanupConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) CleanupConsumer[T] {
	return &cleanupConsumer[T]{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
	}
}
