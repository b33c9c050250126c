package providers

import (
	"context"

	"github.com/vetdesk/appointment-engine/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// appointment lifecycle events. Delivery is at-most-once per
// subscriber; the notification collaborator on the far side owns
// formatting and user-facing delivery.
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// Event channel constants.
const (
	// EventChannelAppointmentUpdates carries every committed transition.
	EventChannelAppointmentUpdates = "appointments:updates"

	// EventChannelVetPrefix is the prefix for per-veterinarian channels.
	EventChannelVetPrefix = "vet:"

	// EventChannelOwnerPrefix is the prefix for per-owner channels.
	EventChannelOwnerPrefix = "owner:"
)

// GetVetChannel returns the channel name for a veterinarian's events.
func GetVetChannel(vetID string) string {
	return EventChannelVetPrefix + vetID
}

// GetOwnerChannel returns the channel name for an owner's events.
func GetOwnerChannel(ownerID string) string {
	return EventChannelOwnerPrefix + ownerID
}
