package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"vidstream/dto"
	"vidstream/service"
)

type ServiceDependencies struct {
	Processor *service.Processor
	Cleaner   *service.Cleaner
}

func ProcessHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.ProcessMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal process message, dropping")
		return nil
	}

	return deps.Processor.Process(ctx, job)
}

func CleanupHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.CleanupMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal cleanup message, dropping")
		return nil
	}

	removed, err := deps.Cleaner.Sweep(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("cleanup job finished")
	return nil
}
