// Package api holds the JSON messages shared by the gRPC and HTTP transports.
package api

import (
	"encoding/json"
	"time"

	"salon/backend/internal/domain"
	"salon/backend/internal/invoice"
	"salon/backend/internal/service/appointments"
)

type Appointment struct {
	ID              int64      `json:"id"`
	LocationID      int64      `json:"location_id"`
	Date            string     `json:"date"`
	Client          string     `json:"client"`
	Service         string     `json:"service"`
	ServiceID       *int64     `json:"service_id,omitempty"`
	ServiceName     string     `json:"service_name,omitempty"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	Price           float64    `json:"price"`
	Staff           string     `json:"staff"`
	Status          string     `json:"status"`
	ReceiverTaxID   string     `json:"receiver_tax_id,omitempty"`
	ReceiverName    string     `json:"receiver_name,omitempty"`
	ReceiverSurname string     `json:"receiver_surname,omitempty"`
	EmittedAt       *time.Time `json:"emitted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Price is a decimal carried as text so the service can report a malformed
// value as a field error. It decodes from a JSON number or string.
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	*p = Price(b)
	return nil
}

// AppointmentFields are the editable fields of an appointment.
type AppointmentFields struct {
	Client    string `json:"client"`
	Service   string `json:"service"`
	ServiceID *int64 `json:"service_id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Price     Price  `json:"price"`
	Staff     string `json:"staff"`
}

func (f AppointmentFields) Details() appointments.Details {
	return appointments.Details{
		Client:    f.Client,
		Service:   f.Service,
		ServiceID: f.ServiceID,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Price:     string(f.Price),
		Staff:     f.Staff,
	}
}

type CreateAppointmentRequest struct {
	LocationID int64  `json:"location_id"`
	Date       string `json:"date"`
	AppointmentFields
}

type UpdateAppointmentRequest struct {
	ID int64 `json:"id"`
	AppointmentFields
}

type AppointmentIDRequest struct {
	ID int64 `json:"id"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	LocationID int64  `json:"location_id"`
	Date       string `json:"date"`
}

type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type AttendAppointmentRequest struct {
	ID              int64  `json:"id"`
	ReceiverTaxID   string `json:"receiver_tax_id"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverSurname string `json:"receiver_surname"`
}

type Invoice struct {
	Name          string    `json:"name"`
	Authorization string    `json:"authorization"`
	IssuedAt      time.Time `json:"issued_at"`
	Total         float64   `json:"total"`
}

type AttendAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
	Invoice     Invoice     `json:"invoice"`
}

type AvailableStaffRequest struct {
	LocationID int64  `json:"location_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ExcludeID  int64  `json:"exclude_id,omitempty"`
}

type AvailableStaffResponse struct {
	Staff []string `json:"staff"`
}

type SlotGridRequest struct {
	StartTime string `json:"start_time,omitempty"`
}

// SlotGridResponse lists every start time, and the end times for the
// requested start when one was given.
type SlotGridResponse struct {
	StartTimes []string `json:"start_times"`
	EndTimes   []string `json:"end_times,omitempty"`
}

type Location struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type ListLocationsRequest struct{}

type ListLocationsResponse struct {
	Locations []Location `json:"locations"`
}

type Service struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type LocationRequest struct {
	LocationID int64 `json:"location_id"`
}

type ListServicesResponse struct {
	Services []Service `json:"services"`
}

type StaffMember struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type ListStaffResponse struct {
	Staff []StaffMember `json:"staff"`
}

type AddStaffRequest struct {
	LocationID int64  `json:"location_id"`
	Name       string `json:"name"`
}

type StaffResponse struct {
	Staff StaffMember `json:"staff"`
}

type SetStaffActiveRequest struct {
	LocationID int64  `json:"location_id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
}

type Empty struct{}

func FromAppointment(a domain.Appointment) Appointment {
	return Appointment{
		ID:              a.ID,
		LocationID:      a.LocationID,
		Date:            a.Date,
		Client:          a.Client,
		Service:         a.Service,
		ServiceID:       a.ServiceID,
		ServiceName:     a.ServiceName,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Price:           a.Price,
		Staff:           a.Staff,
		Status:          string(a.Status),
		ReceiverTaxID:   a.ReceiverTaxID,
		ReceiverName:    a.ReceiverName,
		ReceiverSurname: a.ReceiverSurname,
		EmittedAt:       a.EmittedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func FromAppointments(rows []domain.Appointment) []Appointment {
	out := make([]Appointment, 0, len(rows))
	for _, a := range rows {
		out = append(out, FromAppointment(a))
	}
	return out
}

func FromInvoice(d invoice.Document) Invoice {
	return Invoice{
		Name:          d.Name,
		Authorization: d.Authorization,
		IssuedAt:      d.IssuedAt,
		Total:         d.Total,
	}
}

func FromLocations(rows []domain.Location) []Location {
	out := make([]Location, 0, len(rows))
	for _, l := range rows {
		out = append(out, Location{ID: l.ID, Name: l.Name, Address: l.Address})
	}
	return out
}

func FromServices(rows []domain.Service) []Service {
	out := make([]Service, 0, len(rows))
	for _, s := range rows {
		out = append(out, Service{ID: s.ID, Name: s.Name, Price: s.Price})
	}
	return out
}

func FromStaffMember(m domain.StaffMember) StaffMember {
	return StaffMember{ID: m.ID, Name: m.Name, Active: m.Active}
}

func FromStaff(rows []domain.StaffMember) []StaffMember {
	out := make([]StaffMember, 0, len(rows))
	for _, m := range rows {
		out = append(out, FromStaffMember(m))
	}
	return out
}
