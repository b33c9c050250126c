package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vetdesk/appointment-engine/internal/adapters/database"
	"github.com/vetdesk/appointment-engine/internal/adapters/events"
	"github.com/vetdesk/appointment-engine/internal/application/services"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/pricing"
	"github.com/vetdesk/appointment-engine/internal/domain/providers"
	"github.com/vetdesk/appointment-engine/internal/domain/statemachine"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/clients/postgres"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/clients/redis"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/observability"
	"github.com/vetdesk/appointment-engine/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logging
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	log.Info().
		Str("service", cfg.OTEL.ServiceName).
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", cfg.Env).
		Msg("Starting appointment engine")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized")

	// Initialize Redis client; the engine degrades to unpublished
	// events without it.
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis client; events disabled")
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Event bus initialized")
	}

	// Initialize adapters and services
	appointmentAdapter := database.NewAppointmentAdapter(pgClient, database.WithMetrics(metrics))

	var notifier services.Notifier
	var notificationService *services.NotificationService
	if eventBus != nil {
		notificationService = services.NewNotificationService(eventBus)
		notifier = notificationService
	} else {
		notifier = noopNotifier{}
	}

	appointmentService := services.NewAppointmentService(
		appointmentAdapter,
		services.NewSlotLedger(appointmentAdapter),
		statemachine.NewMachine(pricing.NewFactory()),
		notifier,
		cfg.Engine,
		services.WithMetrics(metrics),
	)
	// The transport layer that drives the service lives outside this
	// repository.
	_ = appointmentService

	// Mirror the committed-transition stream into the log so operators
	// can follow lifecycle activity without a consumer attached.
	if eventBus != nil {
		updates, err := eventBus.Subscribe(ctx, providers.EventChannelAppointmentUpdates)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to subscribe to appointment updates")
		} else {
			go func() {
				for event := range updates {
					log.Info().
						Str("event_type", string(event.Type)).
						Str("appointment_id", event.AppointmentID).
						Str("recipient_id", event.RecipientID).
						Msg("Appointment event")
				}
			}()
		}
	}

	log.Info().Msg("Appointment engine ready")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Appointment engine shutting down")

	if notificationService != nil {
		notificationService.Flush()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Appointment engine stopped")
}

// noopNotifier drops events when no bus is configured.
type noopNotifier struct{}

func (noopNotifier) AppointmentTransitioned(*entities.Appointment, entities.AppointmentEventType, services.Actor) {
}
