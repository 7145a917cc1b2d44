package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidstream/config"
	"vidstream/constant"
	jobHandler "vidstream/handler"
	"vidstream/pkg/rabbitmq"
	"vidstream/repository"
	"vidstream/service"
	"vidstream/storage"
	"vidstream/token"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	store, err := storage.New(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("storage.New")
	}
	codec := token.NewCodec(cfg.Auth.Secret, cfg.Auth.SessionTTL)

	publisher, err := rabbitmq.NewPublisher(conn, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("rabbitmq.NewPublisher")
	}

	processor := service.NewProcessor(repo, store, cfg, service.NewExecRunner())
	cleaner := service.NewCleaner(cfg.Media.StagingDir, cfg.Retention.MaxAge)
	mediaService := service.NewMediaService(repo, store, publisher, codec, cfg)

	serviceDeps := jobHandler.ServiceDependencies{
		Processor: processor,
		Cleaner:   cleaner,
	}

	limiter := rabbitmq.NewLimiter(cfg.Media.ProcessRatePerMinute, time.Minute)

	// Start processing consumer
	processConsumer := rabbitmq.NewProcessConsumer(conn, cfg.Queue, cfg.Server.Workers, uint(cfg.Media.RetryMaxAttempts), cfg.Media.RetryDelay, limiter, jobHandler.ProcessHandler)
	go func() {
		err := processConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Process consumer error")
		}
	}()

	// Start cleanup consumer
	cleanupConsumer := rabbitmq.NewCleanupConsumer(conn, cfg.Queue, jobHandler.CleanupHandler)
	go func() {
		err := cleanupConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Cleanup consumer error")
		}
	}()

	go rabbitmq.RunCleanupScheduler(ctx, publisher, cfg.Retention.SweepInterval)

	r := gin.Default()
	addHealth(r)
	addRoutes(r, mediaService, codec, cfg)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
