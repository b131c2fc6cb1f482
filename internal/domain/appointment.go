package domain

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPending  AppointmentStatus = "PENDING"
	StatusAttended AppointmentStatus = "ATTENDED"
)

const DateLayout = "2006-01-02"

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          int64             `bun:"id,pk,autoincrement"`
	LocationID  int64             `bun:"location_id,notnull"`
	Date        string            `bun:"date,notnull"`
	Client      string            `bun:"client,notnull"`
	Service     string            `bun:"service,notnull"`
	ServiceID   *int64            `bun:"service_id"`
	ServiceName string            `bun:"service_name,nullzero"`
	StartTime   string            `bun:"start_time,notnull"`
	EndTime     string            `bun:"end_time,notnull"`
	Price       float64           `bun:"price,notnull"`
	Staff       string            `bun:"staff,notnull"`
	Status      AppointmentStatus `bun:"status,notnull"`

	ReceiverTaxID   string     `bun:"receiver_tax_id,nullzero"`
	ReceiverName    string     `bun:"receiver_name,nullzero"`
	ReceiverSurname string     `bun:"receiver_surname,nullzero"`
	EmittedAt       *time.Time `bun:"emitted_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.Status == "" {
			a.Status = StatusPending
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Attended() bool {
	return strings.EqualFold(string(a.Status), string(StatusAttended))
}

// Interval returns the stored start and end as times of day. ok is false when
// either stored value does not parse.
func (a Appointment) Interval() (start, end TimeOfDay, ok bool) {
	start, okStart := TryParseTimeOfDay(a.StartTime)
	end, okEnd := TryParseTimeOfDay(a.EndTime)
	return start, end, okStart && okEnd
}

// DisplayService prefers the catalog name over the free-text service.
func (a Appointment) DisplayService() string {
	if name := strings.TrimSpace(a.ServiceName); name != "" {
		return name
	}
	return a.Service
}

// AssignedTo compares staff names case-insensitively, ignoring surrounding space.
func (a Appointment) AssignedTo(staff string) bool {
	return strings.EqualFold(strings.TrimSpace(a.Staff), strings.TrimSpace(staff))
}

// Receipt identifies who an attended appointment was invoiced to.
type Receipt struct {
	TaxID     string
	Name      string
	Surname   string
	EmittedAt time.Time
}

// ValidDate reports whether s is an ISO calendar date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
