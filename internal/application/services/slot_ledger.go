package services

import (
	"context"
	"fmt"

	"github.com/vetdesk/appointment-engine/internal/domain/repositories"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// SlotLedger answers whether a veterinarian's slot is free. It is a
// read-side guard only; the database's partial unique index remains
// the authority when two writers race past it.
type SlotLedger struct {
	repo repositories.AppointmentRepository
}

// NewSlotLedger creates a slot ledger over the appointment repository.
func NewSlotLedger(repo repositories.AppointmentRepository) *SlotLedger {
	return &SlotLedger{repo: repo}
}

// EnsureFree returns a slot conflict error when (vetID, date, timeOfDay)
// is held by a non-terminal appointment other than excludeID.
func (l *SlotLedger) EnsureFree(ctx context.Context, vetID, date, timeOfDay, excludeID string) error {
	occupant, err := l.repo.FindActiveBySlot(ctx, vetID, date, timeOfDay, excludeID)
	if err != nil {
		return err
	}
	if occupant != nil {
		return apperrors.NewSlotConflictError(fmt.Sprintf(
			"veterinarian %s already has an active appointment on %s at %s",
			vetID, date, timeOfDay,
		))
	}
	return nil
}
