package entities

import "time"

// AppointmentEventType identifies a committed lifecycle transition.
type AppointmentEventType string

const (
	EventAppointmentCreated   AppointmentEventType = "appointment_created"
	EventAppointmentApproved  AppointmentEventType = "appointment_approved"
	EventAppointmentConfirmed AppointmentEventType = "appointment_confirmed"
	EventAppointmentCompleted AppointmentEventType = "appointment_completed"
	EventAppointmentCancelled AppointmentEventType = "appointment_cancelled"
	EventAppointmentRejected  AppointmentEventType = "appointment_rejected"
)

// AppointmentEvent is published after every committed transition. The
// notification collaborator owns delivery and formatting; this record
// carries only what it needs to route.
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AppointmentID string               `json:"appointment_id"`
	RecipientID   string               `json:"recipient_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
}
