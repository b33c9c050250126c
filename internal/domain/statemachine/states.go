package statemachine

import (
	"fmt"
	"strings"

	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// pendingState accepts approve, reject, and reschedule.
type pendingState struct {
	denyAll
	machine *Machine
}

func (s pendingState) Approve(appt *entities.Appointment, in ApproveInput) error {
	if in.Fee <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("approval fee must be positive, got %.2f", in.Fee))
	}

	strategy, err := s.machine.pricing.ForCategory(appt.Category)
	if err != nil {
		return err
	}
	quote, err := strategy.Quote(in.Fee, in.Factors)
	if err != nil {
		return err
	}

	appt.Status = entities.AppointmentStatusApproved
	appt.Fee = &quote.TotalCost
	appt.FeeBreakdown = quote.Breakdown
	appt.VetNotes = in.Notes
	return nil
}

func (s pendingState) Reject(appt *entities.Appointment, in RejectInput) error {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return apperrors.NewValidationError("a rejection reason is required")
	}

	appt.Status = entities.AppointmentStatusRejected
	appt.StatusReason = reason
	return nil
}

func (s pendingState) Reschedule(appt *entities.Appointment, in RescheduleInput) error {
	return applyReschedule(appt, in)
}

// approvedState accepts confirm and cancel.
type approvedState struct {
	denyAll
}

func (s approvedState) Confirm(appt *entities.Appointment) error {
	appt.Status = entities.AppointmentStatusConfirmed
	return nil
}

func (s approvedState) Cancel(appt *entities.Appointment, in CancelInput) error {
	return applyCancel(appt, in)
}

// confirmedState accepts complete, cancel, and reschedule.
type confirmedState struct {
	denyAll
	machine *Machine
}

func (s confirmedState) Complete(appt *entities.Appointment, in CompleteInput) error {
	if strings.TrimSpace(in.Diagnosis) == "" {
		return apperrors.NewValidationError("a diagnosis is required to complete an appointment")
	}
	if in.FollowUp && in.FollowUpDate != "" {
		if err := entities.ValidateSlot(in.FollowUpDate, "00:00", 0); err != nil {
			return apperrors.NewValidationError("follow-up date must be YYYY-MM-DD")
		}
	}

	appt.Status = entities.AppointmentStatusCompleted
	appt.Diagnosis = in.Diagnosis
	appt.Treatment = in.Treatment
	appt.Prescriptions = in.Prescriptions
	appt.FollowUp = in.FollowUp
	if in.FollowUp && in.FollowUpDate != "" {
		d := in.FollowUpDate
		appt.FollowUpDate = &d
	}
	if in.Notes != "" {
		appt.VetNotes = in.Notes
	}
	completedAt := s.machine.now().UTC()
	appt.CompletedAt = &completedAt
	return nil
}

func (s confirmedState) Cancel(appt *entities.Appointment, in CancelInput) error {
	return applyCancel(appt, in)
}

// Reschedule from CONFIRMED demotes back to PENDING: the new slot needs
// a fresh approval, so the previously computed fee is discarded.
func (s confirmedState) Reschedule(appt *entities.Appointment, in RescheduleInput) error {
	if err := applyReschedule(appt, in); err != nil {
		return err
	}
	appt.Fee = nil
	appt.FeeBreakdown = nil
	return nil
}

// completedState accepts only the one-time rating.
type completedState struct {
	denyAll
}

func (s completedState) Rate(appt *entities.Appointment, in RateInput) error {
	if appt.Rating != nil {
		return apperrors.NewAlreadyRatedError(
			fmt.Sprintf("appointment %s has already been rated", appt.ID),
		)
	}
	if in.Stars < 1 || in.Stars > 5 {
		return apperrors.NewValidationError(fmt.Sprintf("rating must be between 1 and 5, got %d", in.Stars))
	}

	stars := in.Stars
	appt.Rating = &stars
	appt.Review = in.Review
	return nil
}

func applyCancel(appt *entities.Appointment, in CancelInput) error {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return apperrors.NewValidationError("a cancellation reason is required")
	}

	appt.Status = entities.AppointmentStatusCancelled
	appt.StatusReason = reason
	return nil
}

func applyReschedule(appt *entities.Appointment, in RescheduleInput) error {
	if in.Date == "" || in.Time == "" {
		return apperrors.NewValidationError("a reschedule requires both date and time")
	}

	appt.Status = entities.AppointmentStatusPending
	appt.Date = in.Date
	appt.Time = in.Time
	appt.StatusReason = strings.TrimSpace(in.Reason)
	return nil
}
