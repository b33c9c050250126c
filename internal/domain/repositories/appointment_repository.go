package repositories

import (
	"context"

	"github.com/vetdesk/appointment-engine/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment persistence.
//
// Implementations must guarantee that Create and Update are atomic with
// respect to the slot-conflict invariant: a write claiming a
// (vet, date, time) slot already held by another non-terminal
// appointment fails with a slot conflict error, never a silent
// overwrite. Update additionally enforces the optimistic version: a
// stale write fails with a conflict error.
type AppointmentRepository interface {
	// Create inserts a new appointment, claiming its slot.
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID.
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// Update persists a transitioned appointment at the given prior
	// version, incrementing the version on success.
	Update(ctx context.Context, appointment *entities.Appointment) error

	// FindActiveBySlot returns the non-terminal appointment occupying
	// (vetID, date, time), excluding excludeID, or nil when the slot is
	// free.
	FindActiveBySlot(ctx context.Context, vetID, date, timeOfDay, excludeID string) (*entities.Appointment, error)

	// ListByOwner retrieves appointments booked by an owner.
	ListByOwner(ctx context.Context, ownerID string, filter AppointmentFilter) ([]*entities.Appointment, error)

	// ListByVet retrieves appointments assigned to a veterinarian.
	ListByVet(ctx context.Context, vetID string, filter AppointmentFilter) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	Status   entities.AppointmentStatus
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}
