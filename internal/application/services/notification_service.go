package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/providers"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/observability"
	"github.com/vetdesk/appointment-engine/pkg/retry"
)

// Notifier receives committed lifecycle transitions. Delivery is
// best-effort and must never fail the transition that triggered it.
type Notifier interface {
	AppointmentTransitioned(appt *entities.Appointment, eventType entities.AppointmentEventType, actor Actor)
}

// NotificationService publishes lifecycle events to the event bus,
// asynchronously and behind a circuit breaker. A bus outage degrades
// to logged drops rather than failed or rolled-back transitions.
type NotificationService struct {
	bus      providers.EventBus
	breaker  *gobreaker.CircuitBreaker
	retryCfg retry.Config
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewNotificationService creates a notification service over the bus.
func NewNotificationService(bus providers.EventBus) *NotificationService {
	return &NotificationService{
		bus: bus,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "event-publish",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		retryCfg: retry.Config{
			MaxAttempts:     3,
			InitialDelay:    100 * time.Millisecond,
			MaxDelay:        time.Second,
			BackoffFactor:   2.0,
			MaxTotalTimeout: 5 * time.Second,
		},
		timeout: 10 * time.Second,
	}
}

// AppointmentTransitioned publishes the event for a committed
// transition in the background.
func (n *NotificationService) AppointmentTransitioned(appt *entities.Appointment, eventType entities.AppointmentEventType, actor Actor) {
	event := &entities.AppointmentEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		AppointmentID: appt.ID,
		RecipientID:   recipientFor(appt, eventType, actor),
		OccurredAt:    time.Now().UTC(),
	}
	recipientChannel := ""
	if event.RecipientID == appt.VetID {
		recipientChannel = providers.GetVetChannel(event.RecipientID)
	} else if event.RecipientID != "" {
		recipientChannel = providers.GetOwnerChannel(event.RecipientID)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		// The publish runs detached from the request, so the global
		// logger is the only one in scope.
		if err := n.publish(ctx, event, recipientChannel); err != nil {
			observability.GetLogger().Error().
				Err(err).
				Str("appointment_id", event.AppointmentID).
				Str("event_type", string(event.Type)).
				Msg("Failed to publish lifecycle event")
		}
	}()
}

// Flush blocks until all in-flight publishes have finished.
func (n *NotificationService) Flush() {
	n.wg.Wait()
}

func (n *NotificationService) publish(ctx context.Context, event *entities.AppointmentEvent, recipientChannel string) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		err := retry.Do(ctx, n.retryCfg, func() error {
			if err := n.bus.Publish(ctx, providers.EventChannelAppointmentUpdates, event); err != nil {
				return err
			}
			if recipientChannel != "" {
				return n.bus.Publish(ctx, recipientChannel, event)
			}
			return nil
		})
		return nil, err
	})
	return err
}

// recipientFor routes each event to the party who has to react to it.
// A cancellation goes to whichever party did not cancel.
func recipientFor(appt *entities.Appointment, eventType entities.AppointmentEventType, actor Actor) string {
	switch eventType {
	case entities.EventAppointmentCreated, entities.EventAppointmentConfirmed:
		return appt.VetID
	case entities.EventAppointmentApproved, entities.EventAppointmentCompleted, entities.EventAppointmentRejected:
		return appt.OwnerID
	case entities.EventAppointmentCancelled:
		if actor.Role == ActorRoleVet {
			return appt.OwnerID
		}
		return appt.VetID
	}
	return ""
}
