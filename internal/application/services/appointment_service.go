package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/pricing"
	"github.com/vetdesk/appointment-engine/internal/domain/repositories"
	"github.com/vetdesk/appointment-engine/internal/domain/statemachine"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/observability"
	"github.com/vetdesk/appointment-engine/pkg/config"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
	"github.com/vetdesk/appointment-engine/pkg/keylock"
)

// ActorRole identifies which side of an appointment an actor is on.
type ActorRole string

const (
	ActorRoleOwner ActorRole = "owner"
	ActorRoleVet   ActorRole = "vet"
)

// Actor is the authenticated party requesting an operation.
type Actor struct {
	ID   string
	Role ActorRole
}

// TransitionAction names a lifecycle transition request.
type TransitionAction string

const (
	ActionApprove    TransitionAction = "approve"
	ActionReject     TransitionAction = "reject"
	ActionConfirm    TransitionAction = "confirm"
	ActionCancel     TransitionAction = "cancel"
	ActionComplete   TransitionAction = "complete"
	ActionReschedule TransitionAction = "reschedule"
	ActionRate       TransitionAction = "rate"
)

// BookInput is a request to book a new appointment.
type BookInput struct {
	OwnerID  string
	VetID    string
	PetID    string
	Category entities.AppointmentCategory
	Date     string
	Time     string
	Reason   string
}

// TransitionInput carries the action plus the fields that action needs;
// unrelated fields are ignored.
type TransitionInput struct {
	Action TransitionAction

	// Approve
	Fee     float64
	Factors pricing.Factors

	// Approve, complete
	Notes string

	// Reject, cancel, reschedule
	Reason string

	// Reschedule
	Date string
	Time string

	// Complete
	Diagnosis     string
	Treatment     string
	Prescriptions []string
	FollowUp      bool
	FollowUpDate  string

	// Rate
	Stars  int
	Review string
}

// AppointmentService is the only mutation entry point for
// appointments. It serializes writers per slot and per appointment,
// authorizes the actor, dispatches to the status handler, and persists
// the result in a single optimistic write.
type AppointmentService struct {
	repo     repositories.AppointmentRepository
	ledger   *SlotLedger
	machine  *statemachine.Machine
	locks    *keylock.KeyedMutex
	notifier Notifier

	slotInterval    int
	maxReasonLength int
	now             func() time.Time
	metrics         *observability.Metrics
}

// AppointmentServiceOption customizes an AppointmentService.
type AppointmentServiceOption func(*AppointmentService)

// WithClock overrides the timestamp source, used in tests.
func WithClock(now func() time.Time) AppointmentServiceOption {
	return func(s *AppointmentService) { s.now = now }
}

// WithMetrics enables engine metric recording.
func WithMetrics(m *observability.Metrics) AppointmentServiceOption {
	return func(s *AppointmentService) { s.metrics = m }
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	repo repositories.AppointmentRepository,
	ledger *SlotLedger,
	machine *statemachine.Machine,
	notifier Notifier,
	cfg config.EngineConfig,
	opts ...AppointmentServiceOption,
) *AppointmentService {
	s := &AppointmentService{
		repo:            repo,
		ledger:          ledger,
		machine:         machine,
		locks:           keylock.New(cfg.LockWaitTimeout),
		notifier:        notifier,
		slotInterval:    cfg.SlotIntervalMinutes,
		maxReasonLength: cfg.MaxReasonLength,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book books a new PENDING appointment, claiming its slot.
func (s *AppointmentService) Book(ctx context.Context, in BookInput) (_ *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.Book")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if err := s.validateBooking(in); err != nil {
		return nil, err
	}
	category := in.Category
	if category == "" {
		category = entities.CategoryConsultation
	}

	release, err := s.acquire(ctx, slotKey(in.VetID, in.Date, in.Time))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ledger.EnsureFree(ctx, in.VetID, in.Date, in.Time, ""); err != nil {
		s.recordConflict(ctx, in.VetID, err)
		return nil, err
	}

	now := s.now().UTC()
	appt := &entities.Appointment{
		ID:        uuid.New().String(),
		OwnerID:   in.OwnerID,
		VetID:     in.VetID,
		PetID:     in.PetID,
		Date:      in.Date,
		Time:      in.Time,
		Category:  category,
		Status:    entities.AppointmentStatusPending,
		Reason:    strings.TrimSpace(in.Reason),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The partial unique index backs this insert; a concurrent winner
	// surfaces here as a slot conflict even after the ledger said free.
	if err := s.repo.Create(ctx, appt); err != nil {
		s.recordConflict(ctx, in.VetID, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appt.ID).
		Str("vet_id", appt.VetID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("Appointment booked")

	s.notifier.AppointmentTransitioned(appt, entities.EventAppointmentCreated, Actor{ID: in.OwnerID, Role: ActorRoleOwner})
	return appt, nil
}

// Transition applies a lifecycle action to an appointment on behalf of
// an actor.
func (s *AppointmentService) Transition(ctx context.Context, appointmentID string, actor Actor, in TransitionInput) (_ *entities.Appointment, err error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.Transition")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if appointmentID == "" {
		return nil, apperrors.NewValidationError("an appointment id is required")
	}

	release, err := s.acquire(ctx, appointmentKey(appointmentID))
	if err != nil {
		return nil, err
	}
	defer release()

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(in.Action, actor, appt); err != nil {
		return nil, err
	}

	handler, err := s.machine.Handler(appt.Status)
	if err != nil {
		return nil, err
	}

	// The handler mutates a copy; nothing is observable until the
	// single Update below commits.
	updated := *appt
	releaseSlot, err := s.apply(ctx, handler, &updated, in)
	if err != nil {
		return nil, err
	}
	defer releaseSlot()

	updated.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, &updated); err != nil {
		s.recordConflict(ctx, updated.VetID, err)
		return nil, err
	}

	if s.metrics != nil {
		observability.RecordTransition(ctx, s.metrics, string(in.Action), string(updated.Status))
	}

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", updated.ID).
		Str("action", string(in.Action)).
		Str("status", string(updated.Status)).
		Msg("Appointment transitioned")

	if eventType, ok := eventForAction(in.Action); ok {
		s.notifier.AppointmentTransitioned(&updated, eventType, actor)
	}
	return &updated, nil
}

// GetByID retrieves an appointment visible to the actor.
func (s *AppointmentService) GetByID(ctx context.Context, appointmentID string, actor Actor) (*entities.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(actor, appt) {
		return nil, apperrors.NewForbiddenError("appointment belongs to another owner and veterinarian")
	}
	return appt, nil
}

// ListByOwner retrieves an owner's appointments.
func (s *AppointmentService) ListByOwner(ctx context.Context, ownerID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.repo.ListByOwner(ctx, ownerID, filter)
}

// ListByVet retrieves a veterinarian's appointments.
func (s *AppointmentService) ListByVet(ctx context.Context, vetID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return s.repo.ListByVet(ctx, vetID, filter)
}

func (s *AppointmentService) validateBooking(in BookInput) error {
	if in.OwnerID == "" || in.VetID == "" || in.PetID == "" {
		return apperrors.NewValidationError("owner, veterinarian, and pet ids are required")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return apperrors.NewValidationError("a booking reason is required")
	}
	if s.maxReasonLength > 0 && len(reason) > s.maxReasonLength {
		return apperrors.NewValidationError(fmt.Sprintf("reason exceeds %d characters", s.maxReasonLength))
	}
	if in.Category != "" && in.Category != entities.CategoryConsultation && in.Category != entities.CategoryProcedure {
		return apperrors.NewValidationError(fmt.Sprintf("unknown appointment category %q", in.Category))
	}
	return s.validateSlot(in.Date, in.Time)
}

func (s *AppointmentService) validateSlot(date, timeOfDay string) error {
	if err := entities.ValidateSlot(date, timeOfDay, s.slotInterval); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	slot, err := entities.ParseSlot(date, timeOfDay, time.UTC)
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if !slot.After(s.now().UTC()) {
		return apperrors.NewValidationError(fmt.Sprintf("slot %s %s is not in the future", date, timeOfDay))
	}
	return nil
}

// authorize enforces the role matrix: approve, reject, and complete
// belong to the appointment's veterinarian; confirm and rate to its
// owner; cancel and reschedule to either party.
func (s *AppointmentService) authorize(action TransitionAction, actor Actor, appt *entities.Appointment) error {
	allowed := false
	switch action {
	case ActionApprove, ActionReject, ActionComplete:
		allowed = actor.Role == ActorRoleVet && actor.ID == appt.VetID
	case ActionConfirm, ActionRate:
		allowed = actor.Role == ActorRoleOwner && actor.ID == appt.OwnerID
	case ActionCancel, ActionReschedule:
		allowed = isParticipant(actor, appt)
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown transition action %q", action))
	}
	if !allowed {
		return apperrors.NewForbiddenError(fmt.Sprintf("actor %s may not %s appointment %s", actor.ID, action, appt.ID))
	}
	return nil
}

// apply dispatches the action to the status handler. For reschedules
// it also returns the target-slot lock release, held until the caller
// has persisted.
func (s *AppointmentService) apply(ctx context.Context, handler statemachine.Handler, appt *entities.Appointment, in TransitionInput) (func(), error) {
	noop := func() {}
	switch in.Action {
	case ActionApprove:
		return noop, handler.Approve(appt, statemachine.ApproveInput{
			Fee:     in.Fee,
			Notes:   in.Notes,
			Factors: in.Factors,
		})
	case ActionReject:
		return noop, handler.Reject(appt, statemachine.RejectInput{Reason: in.Reason})
	case ActionConfirm:
		return noop, handler.Confirm(appt)
	case ActionCancel:
		return noop, handler.Cancel(appt, statemachine.CancelInput{Reason: in.Reason})
	case ActionComplete:
		return noop, handler.Complete(appt, statemachine.CompleteInput{
			Diagnosis:     in.Diagnosis,
			Treatment:     in.Treatment,
			Prescriptions: in.Prescriptions,
			Notes:         in.Notes,
			FollowUp:      in.FollowUp,
			FollowUpDate:  in.FollowUpDate,
		})
	case ActionReschedule:
		return s.applyReschedule(ctx, handler, appt, in)
	case ActionRate:
		return noop, handler.Rate(appt, statemachine.RateInput{Stars: in.Stars, Review: in.Review})
	}
	return noop, apperrors.NewValidationError(fmt.Sprintf("unknown transition action %q", in.Action))
}

// applyReschedule moves the appointment to a new slot. The handler call
// comes first so an illegal transition wins over a busy target slot;
// the new slot is then locked and re-checked, and stays locked until
// the transition is persisted.
func (s *AppointmentService) applyReschedule(ctx context.Context, handler statemachine.Handler, appt *entities.Appointment, in TransitionInput) (func(), error) {
	noop := func() {}
	if err := handler.Reschedule(appt, statemachine.RescheduleInput{
		Date:   in.Date,
		Time:   in.Time,
		Reason: in.Reason,
	}); err != nil {
		return noop, err
	}
	if err := s.validateSlot(in.Date, in.Time); err != nil {
		return noop, err
	}

	release, err := s.acquire(ctx, slotKey(appt.VetID, in.Date, in.Time))
	if err != nil {
		return noop, err
	}

	if err := s.ledger.EnsureFree(ctx, appt.VetID, in.Date, in.Time, appt.ID); err != nil {
		release()
		s.recordConflict(ctx, appt.VetID, err)
		return noop, err
	}
	return release, nil
}

func isParticipant(actor Actor, appt *entities.Appointment) bool {
	switch actor.Role {
	case ActorRoleOwner:
		return actor.ID == appt.OwnerID
	case ActorRoleVet:
		return actor.ID == appt.VetID
	}
	return false
}

// eventForAction maps a committed action to the lifecycle event it
// emits. Reschedules and ratings do not emit one.
func eventForAction(action TransitionAction) (entities.AppointmentEventType, bool) {
	switch action {
	case ActionApprove:
		return entities.EventAppointmentApproved, true
	case ActionReject:
		return entities.EventAppointmentRejected, true
	case ActionConfirm:
		return entities.EventAppointmentConfirmed, true
	case ActionCancel:
		return entities.EventAppointmentCancelled, true
	case ActionComplete:
		return entities.EventAppointmentCompleted, true
	}
	return "", false
}

// acquire takes a keyed lock, recording how long the wait took.
func (s *AppointmentService) acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	release, err := s.locks.Acquire(ctx, key)
	if s.metrics != nil {
		observability.RecordLockWait(ctx, s.metrics, key, time.Since(start))
	}
	return release, err
}

func (s *AppointmentService) recordConflict(ctx context.Context, vetID string, err error) {
	if s.metrics != nil && apperrors.IsType(err, apperrors.ErrorTypeSlotConflict) {
		observability.RecordSlotConflict(ctx, s.metrics, vetID)
	}
}

func slotKey(vetID, date, timeOfDay string) string {
	return "slot:" + vetID + ":" + date + ":" + timeOfDay
}

func appointmentKey(id string) string {
	return "appointment:" + id
}
