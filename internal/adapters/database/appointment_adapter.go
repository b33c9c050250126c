package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/repositories"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/clients/postgres"
	"github.com/vetdesk/appointment-engine/internal/infrastructure/observability"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// pgUniqueViolation is the Postgres error code raised by the partial
// unique index over active (vet_id, date, time) rows. It is the
// authoritative closer of the booking race: whichever write loses
// surfaces a slot conflict here.
const pgUniqueViolation = "23505"

var appointmentColumns = []interface{}{
	"id", "owner_id", "vet_id", "pet_id",
	"date", "time", "category", "status",
	"reason", "status_reason", "vet_notes", "diagnosis", "treatment",
	"prescriptions", "follow_up", "follow_up_date",
	"fee", "fee_breakdown", "rating", "review",
	"version", "created_at", "updated_at", "completed_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// AdapterOption customizes an AppointmentAdapter.
type AdapterOption func(*AppointmentAdapter)

// WithMetrics enables query duration recording.
func WithMetrics(m *observability.Metrics) AdapterOption {
	return func(a *AppointmentAdapter) { a.metrics = m }
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client, opts ...AdapterOption) repositories.AppointmentRepository {
	a := &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB().DB),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AppointmentAdapter) observe(ctx context.Context, operation string, start time.Time) {
	if a.metrics != nil {
		observability.RecordDBMetric(ctx, a.metrics, operation, time.Since(start))
	}
}

// Create inserts a new appointment, claiming its slot.
func (a *AppointmentAdapter) Create(ctx context.Context, appt *entities.Appointment) error {
	defer a.observe(ctx, "insert_appointment", time.Now())

	query, args, err := a.db.Insert("appointments").Rows(a.record(appt)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return a.writeError(err, appt)
	}
	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	defer a.observe(ctx, "get_appointment", time.Now())

	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appt, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to get appointment", err)
	}
	return appt, nil
}

// Update persists a transitioned appointment guarded by its prior
// version. A zero-row update means either the record vanished or the
// version is stale; the two are told apart with a follow-up read.
func (a *AppointmentAdapter) Update(ctx context.Context, appt *entities.Appointment) error {
	defer a.observe(ctx, "update_appointment", time.Now())

	priorVersion := appt.Version
	record := a.record(appt)
	delete(record, "id")
	delete(record, "created_at")
	record["version"] = priorVersion + 1

	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": appt.ID, "version": priorVersion}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return a.writeError(err, appt)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStorageUnavailableError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// The record is gone or the version is stale; a failed read
		// must not masquerade as either.
		if _, getErr := a.GetByID(ctx, appt.ID); getErr != nil {
			return getErr
		}
		return apperrors.NewConflictError(
			fmt.Sprintf("appointment %s was modified concurrently (stale version %d)", appt.ID, priorVersion),
		)
	}

	appt.Version = priorVersion + 1
	return nil
}

// FindActiveBySlot returns the non-terminal appointment occupying the
// slot, or nil when it is free.
func (a *AppointmentAdapter) FindActiveBySlot(ctx context.Context, vetID, date, timeOfDay, excludeID string) (*entities.Appointment, error) {
	defer a.observe(ctx, "find_active_by_slot", time.Now())

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{
			"vet_id": vetID,
			"date":   date,
			"time":   timeOfDay,
			"status": entities.ActiveStatuses,
		})
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.Limit(1).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build slot query", err)
	}

	appt, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to query slot occupancy", err)
	}
	return appt, nil
}

// ListByOwner retrieves appointments booked by an owner.
func (a *AppointmentAdapter) ListByOwner(ctx context.Context, ownerID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return a.list(ctx, goqu.Ex{"owner_id": ownerID}, filter)
}

// ListByVet retrieves appointments assigned to a veterinarian.
func (a *AppointmentAdapter) ListByVet(ctx context.Context, vetID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	return a.list(ctx, goqu.Ex{"vet_id": vetID}, filter)
}

func (a *AppointmentAdapter) list(ctx context.Context, match goqu.Ex, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	defer a.observe(ctx, "list_appointments", time.Now())

	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(match)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if filter.FromDate != "" {
		ds = ds.Where(goqu.C("date").Gte(filter.FromDate))
	}
	if filter.ToDate != "" {
		ds = ds.Where(goqu.C("date").Lte(filter.ToDate))
	}

	ds = ds.Order(goqu.I("date").Asc(), goqu.I("time").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewStorageUnavailableError("failed to scan appointment", err)
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageUnavailableError("failed to iterate appointments", err)
	}

	return appointments, nil
}

func (a *AppointmentAdapter) record(appt *entities.Appointment) goqu.Record {
	prescriptions := appt.Prescriptions
	if prescriptions == nil {
		prescriptions = []string{}
	}
	feeBreakdown := appt.FeeBreakdown
	if feeBreakdown == nil {
		feeBreakdown = []string{}
	}
	return goqu.Record{
		"id":             appt.ID,
		"owner_id":       appt.OwnerID,
		"vet_id":         appt.VetID,
		"pet_id":         appt.PetID,
		"date":           appt.Date,
		"time":           appt.Time,
		"category":       appt.Category,
		"status":         appt.Status,
		"reason":         appt.Reason,
		"status_reason":  appt.StatusReason,
		"vet_notes":      appt.VetNotes,
		"diagnosis":      appt.Diagnosis,
		"treatment":      appt.Treatment,
		"prescriptions":  pq.Array(prescriptions),
		"follow_up":      appt.FollowUp,
		"follow_up_date": appt.FollowUpDate,
		"fee":            appt.Fee,
		"fee_breakdown":  pq.Array(feeBreakdown),
		"rating":         appt.Rating,
		"review":         appt.Review,
		"version":        appt.Version,
		"created_at":     appt.CreatedAt,
		"updated_at":     appt.UpdatedAt,
		"completed_at":   appt.CompletedAt,
	}
}

// writeError classifies an insert/update failure. A unique violation on
// the active-slot index becomes a slot conflict naming the slot.
func (a *AppointmentAdapter) writeError(err error, appt *entities.Appointment) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return apperrors.NewSlotConflictError(fmt.Sprintf(
			"veterinarian %s already has an active appointment on %s at %s",
			appt.VetID, appt.Date, appt.Time,
		))
	}
	return apperrors.NewStorageUnavailableError("failed to write appointment", err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appt := &entities.Appointment{}
	var (
		followUpDate sql.NullString
		fee          sql.NullFloat64
		rating       sql.NullInt64
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&appt.ID,
		&appt.OwnerID,
		&appt.VetID,
		&appt.PetID,
		&appt.Date,
		&appt.Time,
		&appt.Category,
		&appt.Status,
		&appt.Reason,
		&appt.StatusReason,
		&appt.VetNotes,
		&appt.Diagnosis,
		&appt.Treatment,
		pq.Array(&appt.Prescriptions),
		&appt.FollowUp,
		&followUpDate,
		&fee,
		pq.Array(&appt.FeeBreakdown),
		&rating,
		&appt.Review,
		&appt.Version,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if followUpDate.Valid {
		appt.FollowUpDate = &followUpDate.String
	}
	if fee.Valid {
		appt.Fee = &fee.Float64
	}
	if rating.Valid {
		r := int(rating.Int64)
		appt.Rating = &r
	}
	if completedAt.Valid {
		t := completedAt.Time
		appt.CompletedAt = &t
	}

	return appt, nil
}
