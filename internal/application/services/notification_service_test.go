package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetdesk/appointment-engine/internal/application/services"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
)

// MockEventBus records published events per channel.
type MockEventBus struct {
	mu        sync.Mutex
	published map[string][]*entities.AppointmentEvent
	fail      bool
}

func newMockEventBus() *MockEventBus {
	return &MockEventBus{published: make(map[string][]*entities.AppointmentEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("bus unavailable")
	}
	m.published[channel] = append(m.published[channel], event)
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	return nil, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (m *MockEventBus) Close() error { return nil }

func (m *MockEventBus) events(channel string) []*entities.AppointmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.AppointmentEvent(nil), m.published[channel]...)
}

func TestNotificationService_Routing(t *testing.T) {
	appt := pendingAppointment()

	tests := []struct {
		name             string
		eventType        entities.AppointmentEventType
		actor            services.Actor
		wantRecipient    string
		recipientChannel string
	}{
		{
			name:             "created goes to the vet",
			eventType:        entities.EventAppointmentCreated,
			actor:            owner,
			wantRecipient:    "vet-1",
			recipientChannel: "vet:vet-1",
		},
		{
			name:             "approved goes to the owner",
			eventType:        entities.EventAppointmentApproved,
			actor:            vet,
			wantRecipient:    "owner-1",
			recipientChannel: "owner:owner-1",
		},
		{
			name:             "confirmed goes to the vet",
			eventType:        entities.EventAppointmentConfirmed,
			actor:            owner,
			wantRecipient:    "vet-1",
			recipientChannel: "vet:vet-1",
		},
		{
			name:             "completed goes to the owner",
			eventType:        entities.EventAppointmentCompleted,
			actor:            vet,
			wantRecipient:    "owner-1",
			recipientChannel: "owner:owner-1",
		},
		{
			name:             "rejected goes to the owner",
			eventType:        entities.EventAppointmentRejected,
			actor:            vet,
			wantRecipient:    "owner-1",
			recipientChannel: "owner:owner-1",
		},
		{
			name:             "owner cancellation goes to the vet",
			eventType:        entities.EventAppointmentCancelled,
			actor:            owner,
			wantRecipient:    "vet-1",
			recipientChannel: "vet:vet-1",
		},
		{
			name:             "vet cancellation goes to the owner",
			eventType:        entities.EventAppointmentCancelled,
			actor:            vet,
			wantRecipient:    "owner-1",
			recipientChannel: "owner:owner-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newMockEventBus()
			svc := services.NewNotificationService(bus)

			svc.AppointmentTransitioned(appt, tt.eventType, tt.actor)
			svc.Flush()

			updates := bus.events("appointments:updates")
			require.Len(t, updates, 1)
			assert.Equal(t, tt.eventType, updates[0].Type)
			assert.Equal(t, appt.ID, updates[0].AppointmentID)
			assert.Equal(t, tt.wantRecipient, updates[0].RecipientID)
			assert.NotEmpty(t, updates[0].ID)
			assert.False(t, updates[0].OccurredAt.IsZero())

			direct := bus.events(tt.recipientChannel)
			require.Len(t, direct, 1)
			assert.Equal(t, updates[0].ID, direct[0].ID)
		})
	}
}

func TestNotificationService_BusFailureDoesNotPropagate(t *testing.T) {
	bus := newMockEventBus()
	bus.fail = true
	svc := services.NewNotificationService(bus)

	// Must neither panic nor block; the drop is logged.
	svc.AppointmentTransitioned(pendingAppointment(), entities.EventAppointmentCreated, owner)
	svc.Flush()

	assert.Empty(t, bus.events("appointments:updates"))
}
