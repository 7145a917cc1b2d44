package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vidstream/config"
)

// ProcessConsumer drives the processing lane: at-least-once delivery with
// manual acks, a bounded retry budget per message, a dead-letter queue for
// abandoned jobs, and a system-wide rate limit on dispatch.
type ProcessConsumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type processConsumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
	maxTries   uint
	retryDelay time.Duration
	limiter    *Limiter
}

func (c processConsumer[T]) Consume(ctx context.Context, dependencies T) error {
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

	err = ch.ExchangeDeclare(DeadLetterExchangeName, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", DeadLetterExchangeName).Msg("failed to declare dlx")
		return err
	}

	dlq, err := ch.QueueDeclare(ProcessDLQName, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", ProcessDLQName).Msg("failed to declare dlq")
		return err
	}

	err = ch.QueueBind(dlq.Name, ProcessDLQRoutingKey, DeadLetterExchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Msg("failed to bind dlq")
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchangeName,
		"x-dead-letter-routing-key": ProcessDLQRoutingKey,
	}
	q, err := ch.QueueDeclare(ProcessQueueName, true, false, false, false, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", ProcessQueueName).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, ProcessRoutingKey, ExchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", ProcessQueueName).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", ProcessQueueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(ProcessQueueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", ProcessQueueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", ProcessQueueName).
		Int("workers", c.numWorkers).
		Uint("max_tries", c.maxTries).
		Msg("processing consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				operation := func() (struct{}, error) {
					return struct{}{}, c.handler(ctx, msg, dependencies)
				}

				bo := backoff.NewConstantBackOff(c.retryDelay)
				_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxTries))
				if err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("abandoning message after all retries")
					if nackErr := msg.Nack(false, false); nackErr != nil {
						zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to dead-letter queue")
					}
					continue
				}
				if ackErr := msg.Ack(false); ackErr != nil {
					zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
				}
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			// Bounds concurrent external-tool invocations system-wide.
			if err := c.limiter.Wait(ctx); err != nil {
				close(jobs)
				wg.Wait()
				return err
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

func NewProcessConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	maxTries uint,
	retryDelay time.Duration,
	limiter *Limiter,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) ProcessConsumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if maxTries < 1 {
		maxTries = 1
	}
	if retryDelay <= 0 {
		retryDelay = time.Minute
	}
	return &processConsumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
		maxTries:   maxTries,
		retryDelay: retryDelay,
		limiter:    limiter,
	}
}
