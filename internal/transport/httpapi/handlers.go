package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"salon/backend/internal/api"
	"salon/backend/internal/domain"
	"salon/backend/internal/invoice"
	"salon/backend/internal/service/appointments"
)

type AppointmentsService interface {
	StartTimes() []string
	EndTimes(start string) []string
	AvailableStaff(ctx context.Context, q appointments.AvailabilityQuery) ([]string, error)
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Edit(ctx context.Context, id int64, in appointments.Details) (domain.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	Attend(ctx context.Context, id int64, in appointments.AttendInput) (appointments.AttendResult, error)
	Get(ctx context.Context, id int64) (domain.Appointment, error)
	List(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	ListServices(ctx context.Context, locationID int64) ([]domain.Service, error)
	ListStaff(ctx context.Context, locationID int64) ([]domain.StaffMember, error)
	AddStaff(ctx context.Context, locationID int64, name string) (domain.StaffMember, error)
	SetStaffActive(ctx context.Context, locationID int64, name string, active bool) error
}

type handlers struct {
	svc        AppointmentsService
	invoiceDir string
	log        *slog.Logger
}

func (h *handlers) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *handlers) slotGrid(w http.ResponseWriter, r *http.Request) {
	resp := api.SlotGridResponse{StartTimes: h.svc.StartTimes()}
	if start := r.URL.Query().Get("start"); start != "" {
		resp.EndTimes = h.svc.EndTimes(start)
	}
	render.JSON(w, r, resp)
}

func (h *handlers) listLocations(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.listLocations")

	rows, err := h.svc.ListLocations(r.Context())
	if err != nil {
		serviceError(w, r, log, "failed to list locations", err)
		return
	}
	render.JSON(w, r, api.ListLocationsResponse{Locations: api.FromLocations(rows)})
}

func (h *handlers) listServices(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.listServices")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	rows, err := h.svc.ListServices(r.Context(), locationID)
	if err != nil {
		serviceError(w, r, log, "failed to list services", err)
		return
	}
	render.JSON(w, r, api.ListServicesResponse{Services: api.FromServices(rows)})
}

func (h *handlers) listStaff(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.listStaff")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	rows, err := h.svc.ListStaff(r.Context(), locationID)
	if err != nil {
		serviceError(w, r, log, "failed to list staff", err)
		return
	}
	render.JSON(w, r, api.ListStaffResponse{Staff: api.FromStaff(rows)})
}

func (h *handlers) addStaff(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.addStaff")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	var req api.AddStaffRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", slog.Any("err", err))
		badRequest(w, r, "failed to decode request")
		return
	}

	m, err := h.svc.AddStaff(r.Context(), locationID, req.Name)
	if err != nil {
		serviceError(w, r, log, "failed to add staff", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.StaffResponse{Staff: api.FromStaffMember(m)})
}

func (h *handlers) setStaffActive(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.setStaffActive")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	var req api.SetStaffActiveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", slog.Any("err", err))
		badRequest(w, r, "failed to decode request")
		return
	}

	if err := h.svc.SetStaffActive(r.Context(), locationID, chi.URLParam(r, "name"), req.Active); err != nil {
		serviceError(w, r, log, "failed to update staff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) availableStaff(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.availableStaff")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	q := r.URL.Query()
	var exclude int64
	if raw := q.Get("exclude"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			badRequest(w, r, "exclude must be an appointment id")
			return
		}
		exclude = id
	}

	staff, err := h.svc.AvailableStaff(r.Context(), appointments.AvailabilityQuery{
		LocationID: locationID,
		Date:       q.Get("date"),
		StartTime:  q.Get("start"),
		EndTime:    q.Get("end"),
		ExcludeID:  exclude,
	})
	if err != nil {
		serviceError(w, r, log, "failed to resolve availability", err)
		return
	}
	render.JSON(w, r, api.AvailableStaffResponse{Staff: staff})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.listAppointments")

	locationID, ok := int64Param(w, r, "locationID")
	if !ok {
		return
	}
	rows, err := h.svc.List(r.Context(), locationID, r.URL.Query().Get("date"))
	if err != nil {
		serviceError(w, r, log, "failed to list appointments", err)
		return
	}
	log.Debug("appointments listed", slog.Int64("location_id", locationID), slog.Int("count", len(rows)))
	render.JSON(w, r, api.ListAppointmentsResponse{Appointments: api.FromAppointments(rows)})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.createAppointment")

	var req api.CreateAppointmentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", slog.Any("err", err))
		badRequest(w, r, "failed to decode request")
		return
	}

	appt, err := h.svc.Create(r.Context(), appointments.CreateInput{
		LocationID: req.LocationID,
		Date:       req.Date,
		Details:    req.Details(),
	})
	if err != nil {
		serviceError(w, r, log, "failed to create appointment", err)
		return
	}

	log.Info("appointment created", slog.Int64("appointment_id", appt.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, api.AppointmentResponse{Appointment: api.FromAppointment(appt)})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.getAppointment")

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		serviceError(w, r, log, "failed to get appointment", err)
		return
	}
	render.JSON(w, r, api.AppointmentResponse{Appointment: api.FromAppointment(appt)})
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.updateAppointment")

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req api.AppointmentFields
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", slog.Any("err", err))
		badRequest(w, r, "failed to decode request")
		return
	}

	appt, err := h.svc.Edit(r.Context(), id, req.Details())
	if err != nil {
		serviceError(w, r, log, "failed to update appointment", err)
		return
	}

	log.Info("appointment updated", slog.Int64("appointment_id", id))
	render.JSON(w, r, api.AppointmentResponse{Appointment: api.FromAppointment(appt)})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.cancelAppointment")

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		serviceError(w, r, log, "failed to cancel appointment", err)
		return
	}

	log.Info("appointment cancelled", slog.Int64("appointment_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) attendAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "httpapi.attendAppointment")

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req api.AttendAppointmentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("failed to decode request body", slog.Any("err", err))
		badRequest(w, r, "failed to decode request")
		return
	}

	res, err := h.svc.Attend(r.Context(), id, appointments.AttendInput{
		TaxID:   req.ReceiverTaxID,
		Name:    req.ReceiverName,
		Surname: req.ReceiverSurname,
	})
	if err != nil {
		serviceError(w, r, log, "failed to attend appointment", err)
		return
	}

	log.Info("appointment attended", slog.Int64("appointment_id", id), slog.String("invoice", res.Invoice.Name))
	render.JSON(w, r, api.AttendAppointmentResponse{
		Appointment: api.FromAppointment(res.Appointment),
		Invoice:     api.FromInvoice(res.Invoice),
	})
}

func (h *handlers) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !invoice.ValidName(name) || strings.Contains(name, "..") {
		writeError(w, r, http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: "invoice not found"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(h.invoiceDir, name))
}

func int64Param(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || v <= 0 {
		badRequest(w, r, key+" must be a positive integer")
		return 0, false
	}
	return v, true
}
