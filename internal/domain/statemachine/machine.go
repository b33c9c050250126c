// Package statemachine encodes the appointment lifecycle. Each status
// owns a handler exposing only the transitions legal from it; anything
// else fails with an invalid transition error before any field is
// touched. Handlers mutate the record in memory only; persistence,
// authorization, and slot-conflict checks belong to the service layer.
package statemachine

import (
	"fmt"
	"time"

	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/pricing"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// ApproveInput carries the veterinarian's approval decision.
type ApproveInput struct {
	Fee     float64
	Notes   string
	Factors pricing.Factors
}

// RejectInput carries the rejection reason.
type RejectInput struct {
	Reason string
}

// RescheduleInput moves the appointment to a new slot.
type RescheduleInput struct {
	Date   string
	Time   string
	Reason string
}

// CancelInput carries the cancellation reason.
type CancelInput struct {
	Reason string
}

// CompleteInput records the clinical outcome of a visit.
type CompleteInput struct {
	Diagnosis     string
	Treatment     string
	Prescriptions []string
	Notes         string
	FollowUp      bool
	FollowUpDate  string
}

// RateInput is the owner's one-time feedback on a completed visit.
type RateInput struct {
	Stars  int
	Review string
}

// Handler exposes every transition; per-status handlers override only
// the legal subset and inherit a denial for the rest.
type Handler interface {
	Approve(appt *entities.Appointment, in ApproveInput) error
	Reject(appt *entities.Appointment, in RejectInput) error
	Reschedule(appt *entities.Appointment, in RescheduleInput) error
	Confirm(appt *entities.Appointment) error
	Cancel(appt *entities.Appointment, in CancelInput) error
	Complete(appt *entities.Appointment, in CompleteInput) error
	Rate(appt *entities.Appointment, in RateInput) error
}

// Machine resolves the handler for an appointment's current status.
type Machine struct {
	pricing *pricing.Factory
	now     func() time.Time

	handlers map[entities.AppointmentStatus]Handler
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the completion timestamp source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine builds the lifecycle machine around a pricing factory.
func NewMachine(factory *pricing.Factory, opts ...Option) *Machine {
	m := &Machine{
		pricing: factory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.handlers = map[entities.AppointmentStatus]Handler{
		entities.AppointmentStatusPending:   pendingState{machine: m, denyAll: denyAll{entities.AppointmentStatusPending}},
		entities.AppointmentStatusApproved:  approvedState{denyAll: denyAll{entities.AppointmentStatusApproved}},
		entities.AppointmentStatusConfirmed: confirmedState{machine: m, denyAll: denyAll{entities.AppointmentStatusConfirmed}},
		entities.AppointmentStatusCompleted: completedState{denyAll: denyAll{entities.AppointmentStatusCompleted}},
		entities.AppointmentStatusCancelled: denyAll{entities.AppointmentStatusCancelled},
		entities.AppointmentStatusRejected:  denyAll{entities.AppointmentStatusRejected},
	}
	return m
}

// Handler returns the handler owning status.
func (m *Machine) Handler(status entities.AppointmentStatus) (Handler, error) {
	h, ok := m.handlers[status]
	if !ok {
		return nil, apperrors.NewInvalidTransitionError(fmt.Sprintf("unknown appointment status %q", status))
	}
	return h, nil
}

// denyAll is the capability floor: every transition is illegal. Status
// handlers embed it and override what their status permits.
type denyAll struct {
	status entities.AppointmentStatus
}

func (d denyAll) deny(action string) error {
	return apperrors.NewInvalidTransitionError(
		fmt.Sprintf("cannot %s an appointment in status %s", action, d.status),
	)
}

func (d denyAll) Approve(*entities.Appointment, ApproveInput) error { return d.deny("approve") }
func (d denyAll) Reject(*entities.Appointment, RejectInput) error   { return d.deny("reject") }
func (d denyAll) Reschedule(*entities.Appointment, RescheduleInput) error {
	return d.deny("reschedule")
}
func (d denyAll) Confirm(*entities.Appointment) error               { return d.deny("confirm") }
func (d denyAll) Cancel(*entities.Appointment, CancelInput) error   { return d.deny("cancel") }
func (d denyAll) Complete(*entities.Appointment, CompleteInput) error {
	return d.deny("complete")
}
func (d denyAll) Rate(*entities.Appointment, RateInput) error { return d.deny("rate") }
