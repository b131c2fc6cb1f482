package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"salon/backend/internal/api"
	"salon/backend/internal/domain"
	"salon/backend/internal/service/appointments"
	"salon/backend/internal/store"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

type appointmentsService interface {
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

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) GetSlotGrid(ctx context.Context, req *api.SlotGridRequest) (*api.SlotGridResponse, error) {
	resp := &api.SlotGridResponse{StartTimes: s.svc.StartTimes()}
	if req != nil && req.StartTime != "" {
		resp.EndTimes = s.svc.EndTimes(req.StartTime)
	}
	return resp, nil
}

func (s *AppointmentsServer) ListAvailableStaff(ctx context.Context, req *api.AvailableStaffRequest) (*api.AvailableStaffResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAvailableStaff"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	staff, err := s.svc.AvailableStaff(ctx, appointments.AvailabilityQuery{
		LocationID: req.LocationID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		ExcludeID:  req.ExcludeID,
	})
	if err != nil {
		return nil, s.statusError(log, "availability lookup failed", err, slog.Int64("location_id", req.LocationID))
	}

	log.Debug("available staff listed",
		slog.Int64("location_id", req.LocationID),
		slog.String("date", req.Date),
		slog.Int("count", len(staff)),
	)
	return &api.AvailableStaffResponse{Staff: staff}, nil
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *api.CreateAppointmentRequest) (*api.AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	appt, err := s.svc.Create(ctx, appointments.CreateInput{
		LocationID: req.LocationID,
		Date:       req.Date,
		Details:    req.Details(),
	})
	if err != nil {
		return nil, s.statusError(log, "appointment create failed", err,
			slog.Int64("location_id", req.LocationID),
			slog.String("date", req.Date),
			slog.String("staff", req.Staff),
		)
	}

	log.Info("appointment created", slog.Int64("appointment_id", appt.ID), slog.String("staff", appt.Staff))
	return &api.AppointmentResponse{Appointment: api.FromAppointment(appt)}, nil
}

func (s *AppointmentsServer) UpdateAppointment(ctx context.Context, req *api.UpdateAppointmentRequest) (*api.AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateAppointment"))

	if req == nil || req.ID <= 0 {
		log.Warn("invalid request", slog.String("reason", "missing_id"))
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	appt, err := s.svc.Edit(ctx, req.ID, req.Details())
	if err != nil {
		return nil, s.statusError(log, "appointment update failed", err, slog.Int64("appointment_id", req.ID))
	}

	log.Info("appointment updated", slog.Int64("appointment_id", appt.ID))
	return &api.AppointmentResponse{Appointment: api.FromAppointment(appt)}, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *api.AppointmentIDRequest) (*api.Empty, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	if req == nil || req.ID <= 0 {
		log.Warn("invalid request", slog.String("reason", "missing_id"))
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	if err := s.svc.Cancel(ctx, req.ID); err != nil {
		return nil, s.statusError(log, "appointment cancel failed", err, slog.Int64("appointment_id", req.ID))
	}

	log.Info("appointment cancelled", slog.Int64("appointment_id", req.ID))
	return &api.Empty{}, nil
}

func (s *AppointmentsServer) AttendAppointment(ctx context.Context, req *api.AttendAppointmentRequest) (*api.AttendAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "AttendAppointment"))

	if req == nil || req.ID <= 0 {
		log.Warn("invalid request", slog.String("reason", "missing_id"))
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	res, err := s.svc.Attend(ctx, req.ID, appointments.AttendInput{
		TaxID:   req.ReceiverTaxID,
		Name:    req.ReceiverName,
		Surname: req.ReceiverSurname,
	})
	if err != nil {
		return nil, s.statusError(log, "appointment attend failed", err, slog.Int64("appointment_id", req.ID))
	}

	log.Info("appointment attended",
		slog.Int64("appointment_id", req.ID),
		slog.String("authorization", res.Invoice.Authorization),
	)
	return &api.AttendAppointmentResponse{
		Appointment: api.FromAppointment(res.Appointment),
		Invoice:     api.FromInvoice(res.Invoice),
	}, nil
}

func (s *AppointmentsServer) GetAppointment(ctx context.Context, req *api.AppointmentIDRequest) (*api.AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	if req == nil || req.ID <= 0 {
		log.Warn("invalid request", slog.String("reason", "missing_id"))
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	appt, err := s.svc.Get(ctx, req.ID)
	if err != nil {
		return nil, s.statusError(log, "appointment get failed", err, slog.Int64("appointment_id", req.ID))
	}
	return &api.AppointmentResponse{Appointment: api.FromAppointment(appt)}, nil
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *api.ListAppointmentsRequest) (*api.ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	rows, err := s.svc.List(ctx, req.LocationID, req.Date)
	if err != nil {
		return nil, s.statusError(log, "appointments list failed", err, slog.Int64("location_id", req.LocationID))
	}

	log.Debug("appointments listed",
		slog.Int64("location_id", req.LocationID),
		slog.String("date", req.Date),
		slog.Int("count", len(rows)),
	)
	return &api.ListAppointmentsResponse{Appointments: api.FromAppointments(rows)}, nil
}

func (s *AppointmentsServer) ListLocations(ctx context.Context, req *api.ListLocationsRequest) (*api.ListLocationsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListLocations"))

	rows, err := s.svc.ListLocations(ctx)
	if err != nil {
		return nil, s.statusError(log, "locations list failed", err)
	}
	return &api.ListLocationsResponse{Locations: api.FromLocations(rows)}, nil
}

func (s *AppointmentsServer) ListServices(ctx context.Context, req *api.LocationRequest) (*api.ListServicesResponse, error) {
	log := s.log.With(slog.String("rpc", "ListServices"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	rows, err := s.svc.ListServices(ctx, req.LocationID)
	if err != nil {
		return nil, s.statusError(log, "services list failed", err, slog.Int64("location_id", req.LocationID))
	}
	return &api.ListServicesResponse{Services: api.FromServices(rows)}, nil
}

func (s *AppointmentsServer) ListStaff(ctx context.Context, req *api.LocationRequest) (*api.ListStaffResponse, error) {
	log := s.log.With(slog.String("rpc", "ListStaff"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	rows, err := s.svc.ListStaff(ctx, req.LocationID)
	if err != nil {
		return nil, s.statusError(log, "staff list failed", err, slog.Int64("location_id", req.LocationID))
	}
	return &api.ListStaffResponse{Staff: api.FromStaff(rows)}, nil
}

func (s *AppointmentsServer) AddStaff(ctx context.Context, req *api.AddStaffRequest) (*api.StaffResponse, error) {
	log := s.log.With(slog.String("rpc", "AddStaff"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	m, err := s.svc.AddStaff(ctx, req.LocationID, req.Name)
	if err != nil {
		return nil, s.statusError(log, "staff add failed", err, slog.Int64("location_id", req.LocationID))
	}

	log.Info("staff added", slog.Int64("location_id", req.LocationID), slog.String("staff", m.Name))
	return &api.StaffResponse{Staff: api.FromStaffMember(m)}, nil
}

func (s *AppointmentsServer) SetStaffActive(ctx context.Context, req *api.SetStaffActiveRequest) (*api.Empty, error) {
	log := s.log.With(slog.String("rpc", "SetStaffActive"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := s.svc.SetStaffActive(ctx, req.LocationID, req.Name, req.Active); err != nil {
		return nil, s.statusError(log, "staff update failed", err, slog.Int64("location_id", req.LocationID))
	}
	return &api.Empty{}, nil
}

// statusError maps service errors onto gRPC codes and logs them at a level
// matching who is at fault.
func (s *AppointmentsServer) statusError(log *slog.Logger, msg string, err error, attrs ...any) error {
	attrs = append(attrs, slog.Any("err", err))

	var (
		vErr *appointments.ValidationError
		aErr *appointments.AvailabilityError
		tErr *appointments.TerminalStateError
		eErr *appointments.EmissionError
	)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", attrs...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &aErr):
		log.Info("staff not available", attrs...)
		return status.Error(codes.Aborted, aErr.Error())
	case errors.As(err, &tErr):
		log.Info("appointment already attended", attrs...)
		return status.Error(codes.FailedPrecondition, tErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", attrs...)
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		log.Info("already exists", attrs...)
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, store.ErrLocked):
		log.Info("locked", attrs...)
		return status.Error(codes.Unavailable, "appointment is being processed by another session, try again")
	case errors.As(err, &eErr):
		log.Error(msg, attrs...)
		return status.Error(codes.Unavailable, "invoice could not be emitted, try again")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, attrs...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	default:
		log.Error(msg, attrs...)
		return status.Error(codes.Internal, "internal error")
	}
}
