// Package events publishes appointment lifecycle changes. Cancellation deletes
// the row, so this stream is the only record that a booking ever existed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salon/backend/internal/domain"
)

type Type string

const (
	AppointmentCreated   Type = "appointment.created"
	AppointmentUpdated   Type = "appointment.updated"
	AppointmentCancelled Type = "appointment.cancelled"
	AppointmentAttended  Type = "appointment.attended"
)

type Event struct {
	ID          string              `json:"event_id"`
	Type        Type                `json:"event_type"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Appointment AppointmentSnapshot `json:"appointment"`
}

type AppointmentSnapshot struct {
	ID              int64      `json:"id"`
	LocationID      int64      `json:"location_id"`
	Date            string     `json:"date"`
	Client          string     `json:"client"`
	Service         string     `json:"service"`
	ServiceID       *int64     `json:"service_id,omitempty"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	Price           float64    `json:"price"`
	Staff           string     `json:"staff"`
	Status          string     `json:"status"`
	ReceiverTaxID   string     `json:"receiver_tax_id,omitempty"`
	ReceiverName    string     `json:"receiver_name,omitempty"`
	ReceiverSurname string     `json:"receiver_surname,omitempty"`
	EmittedAt       *time.Time `json:"emitted_at,omitempty"`
}

func New(t Type, appt domain.Appointment, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: now.UTC(),
		Appointment: AppointmentSnapshot{
			ID:              appt.ID,
			LocationID:      appt.LocationID,
			Date:            appt.Date,
			Client:          appt.Client,
			Service:         appt.DisplayService(),
			ServiceID:       appt.ServiceID,
			StartTime:       appt.StartTime,
			EndTime:         appt.EndTime,
			Price:           appt.Price,
			Staff:           appt.Staff,
			Status:          string(appt.Status),
			ReceiverTaxID:   appt.ReceiverTaxID,
			ReceiverName:    appt.ReceiverName,
			ReceiverSurname: appt.ReceiverSurname,
			EmittedAt:       appt.EmittedAt,
		},
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
