package store

import (
	"context"

	"salon/backend/internal/domain"
)

// Schedule is the read side the availability resolver needs for one location.
type Schedule interface {
	ListActiveStaff(ctx context.Context, locationID int64) ([]string, error)
	ListAppointments(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error)
}

// DayTx is a unit of work scoped to a single (location, date). Reads and writes
// made through it are serialized against every other DayTx for the same scope.
type DayTx interface {
	Schedule

	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
	MarkAttended(ctx context.Context, id int64, receipt domain.Receipt) error
}

type AppointmentRepository interface {
	Schedule

	GetAppointment(ctx context.Context, id int64) (domain.Appointment, error)
	InLocationDay(ctx context.Context, locationID int64, date string, fn func(ctx context.Context, tx DayTx) error) error
}

type Roster interface {
	ListActiveStaff(ctx context.Context, locationID int64) ([]string, error)
	ListStaff(ctx context.Context, locationID int64) ([]domain.StaffMember, error)
	AddStaff(ctx context.Context, locationID int64, name string) (domain.StaffMember, error)
	SetStaffActive(ctx context.Context, locationID int64, name string, active bool) error
}

type Catalog interface {
	ListLocations(ctx context.Context) ([]domain.Location, error)
	GetLocation(ctx context.Context, id int64) (domain.Location, error)
	ListServices(ctx context.Context, locationID int64) ([]domain.Service, error)
	GetService(ctx context.Context, locationID, serviceID int64) (domain.Service, error)
}

// Store is everything the scheduling service reads and writes.
type Store interface {
	AppointmentRepository
	Roster
	Catalog
}
