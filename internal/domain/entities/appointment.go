package entities

import (
	"fmt"
	"time"
)

// AppointmentStatus represents the lifecycle status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusApproved  AppointmentStatus = "APPROVED"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusRejected  AppointmentStatus = "REJECTED"
)

// Terminal reports whether no further transitions are permitted from s.
// COMPLETED still accepts a one-time rating but never leaves COMPLETED.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRejected:
		return true
	}
	return false
}

// Active reports whether s counts toward the slot-conflict invariant.
func (s AppointmentStatus) Active() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusConfirmed:
		return true
	}
	return false
}

// ActiveStatuses are the statuses occupying a veterinarian slot.
var ActiveStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusApproved,
	AppointmentStatusConfirmed,
}

// AppointmentCategory selects the pricing strategy for an appointment.
type AppointmentCategory string

const (
	CategoryConsultation AppointmentCategory = "consultation"
	CategoryProcedure    AppointmentCategory = "procedure"
)

// Slot formatting constants
const (
	DateFormat = "2006-01-02" // YYYY-MM-DD
	TimeFormat = "15:04"      // HH:MM
)

// Appointment represents one booking between a pet owner and a
// veterinarian. References are opaque identifiers; the engine never
// dereferences them.
type Appointment struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"owner_id" db:"owner_id"`
	VetID   string `json:"vet_id" db:"vet_id"`
	PetID   string `json:"pet_id" db:"pet_id"`

	Date     string              `json:"date" db:"date"`
	Time     string              `json:"time" db:"time"`
	Category AppointmentCategory `json:"category" db:"category"`
	Status   AppointmentStatus   `json:"status" db:"status"`

	Reason string `json:"reason" db:"reason"`
	// StatusReason records why the latest reject, cancel, or
	// reschedule happened.
	StatusReason  string   `json:"status_reason" db:"status_reason"`
	VetNotes      string   `json:"vet_notes" db:"vet_notes"`
	Diagnosis     string   `json:"diagnosis" db:"diagnosis"`
	Treatment     string   `json:"treatment" db:"treatment"`
	Prescriptions []string `json:"prescriptions" db:"prescriptions"`
	FollowUp      bool     `json:"follow_up" db:"follow_up"`
	FollowUpDate  *string  `json:"follow_up_date" db:"follow_up_date"`

	// Fee is set only by the approve transition and cleared when a
	// reschedule demotes the appointment back to PENDING.
	Fee          *float64 `json:"fee" db:"fee"`
	FeeBreakdown []string `json:"fee_breakdown" db:"fee_breakdown"`

	Rating *int   `json:"rating" db:"rating"`
	Review string `json:"review" db:"review"`

	// Version is the optimistic concurrency token; every committed
	// transition increments it.
	Version int `json:"version" db:"version"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// SlotTime combines Date and Time into a wall-clock instant in loc.
func (a *Appointment) SlotTime(loc *time.Location) (time.Time, error) {
	return ParseSlot(a.Date, a.Time, loc)
}

// ParseSlot parses a (date, time) pair into an instant in loc.
func ParseSlot(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat+" "+TimeFormat, date+" "+timeOfDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q %q: %w", date, timeOfDay, err)
	}
	return t, nil
}

// ValidateSlot checks date/time format and slot granularity.
func ValidateSlot(date, timeOfDay string, intervalMinutes int) error {
	t, err := ParseSlot(date, timeOfDay, time.UTC)
	if err != nil {
		return err
	}
	if intervalMinutes > 0 && t.Minute()%intervalMinutes != 0 {
		return fmt.Errorf("time %s does not align to the %d-minute slot grid", timeOfDay, intervalMinutes)
	}
	return nil
}
