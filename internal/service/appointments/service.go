package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salon/backend/internal/domain"
	"salon/backend/internal/events"
	"salon/backend/internal/invoice"
	"salon/backend/internal/lock"
	"salon/backend/internal/service/availability"
	"salon/backend/internal/store"
)

const (
	DefaultTaxIDDigits = 9
	DefaultLockTTL     = 30 * time.Second
)

type Options struct {
	Grid        domain.SlotGrid
	TaxIDDigits int
	Locker      lock.Locker
	LockTTL     time.Duration
	Publisher   events.Publisher
	Logger      *slog.Logger
}

type Service struct {
	store       store.Store
	emitter     invoice.Emitter
	resolver    availability.Resolver
	taxIDDigits int
	locker      lock.Locker
	lockTTL     time.Duration
	events      events.Publisher
	log         *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(st store.Store, emitter invoice.Emitter, opts Options) *Service {
	if opts.Grid == (domain.SlotGrid{}) {
		opts.Grid = domain.DefaultSlotGrid
	}
	if opts.TaxIDDigits <= 0 {
		opts.TaxIDDigits = DefaultTaxIDDigits
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLock()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:       st,
		emitter:     emitter,
		resolver:    availability.NewResolver(opts.Grid),
		taxIDDigits: opts.TaxIDDigits,
		locker:      opts.Locker,
		lockTTL:     opts.LockTTL,
		events:      opts.Publisher,
		log:         opts.Logger.With(slog.String("component", "appointments")),
		tracer:      otel.Tracer("salon/backend/internal/service/appointments"),
		now:         time.Now,
	}
}

// Details are the mutable fields of an appointment.
type Details struct {
	Client    string
	Service   string
	ServiceID *int64
	StartTime string
	EndTime   string
	Price     string
	Staff     string
}

type CreateInput struct {
	LocationID int64
	Date       string
	Details
}

type AvailabilityQuery struct {
	LocationID int64
	Date       string
	StartTime  string
	EndTime    string
	ExcludeID  int64
}

type AttendInput struct {
	TaxID   string
	Name    string
	Surname string
}

type AttendResult struct {
	Appointment domain.Appointment
	Invoice     invoice.Document
}

func (s *Service) StartTimes() []string {
	return domain.FormatTimes(s.resolver.Grid().StartTimes())
}

// EndTimes is empty when start is not a bookable start time.
func (s *Service) EndTimes(start string) []string {
	t, ok := domain.TryParseTimeOfDay(start)
	if !ok {
		return []string{}
	}
	out := domain.FormatTimes(s.resolver.Grid().EndTimes(t))
	if out == nil {
		return []string{}
	}
	return out
}

func (s *Service) AvailableStaff(ctx context.Context, q AvailabilityQuery) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.AvailableStaff", trace.WithAttributes(
		attribute.Int64("location.id", q.LocationID),
		attribute.String("appointment.date", q.Date),
	))
	defer span.End()

	if !domain.ValidDate(q.Date) {
		return nil, validationError("date", "date must be YYYY-MM-DD")
	}
	names, err := s.resolver.Available(ctx, s.store, availability.Query{
		LocationID: q.LocationID,
		Date:       q.Date,
		Start:      q.StartTime,
		End:        q.EndTime,
		ExcludeID:  q.ExcludeID,
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return names, nil
}

func (s *Service) List(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error) {
	if !domain.ValidDate(date) {
		return nil, validationError("date", "date must be YYYY-MM-DD")
	}
	rows, err := s.store.ListAppointments(ctx, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Appointment, error) {
	if id <= 0 {
		return domain.Appointment{}, validationError("id", "id is required")
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return appt, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Create", trace.WithAttributes(
		attribute.Int64("location.id", in.LocationID),
		attribute.String("appointment.date", in.Date),
	))
	defer span.End()

	if in.LocationID <= 0 {
		return domain.Appointment{}, validationError("location_id", "location_id is required")
	}
	if !domain.ValidDate(in.Date) {
		return domain.Appointment{}, validationError("date", "date must be YYYY-MM-DD")
	}
	if _, err := s.store.GetLocation(ctx, in.LocationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, validationError("location_id", "unknown location")
		}
		recordError(span, err)
		return domain.Appointment{}, fmt.Errorf("get location: %w", err)
	}

	appt := domain.Appointment{
		LocationID: in.LocationID,
		Date:       in.Date,
		Status:     domain.StatusPending,
	}
	if err := s.applyDetails(ctx, &appt, in.Details); err != nil {
		recordError(span, err)
		return domain.Appointment{}, err
	}

	var created domain.Appointment
	err := s.store.InLocationDay(ctx, appt.LocationID, appt.Date, func(ctx context.Context, tx store.DayTx) error {
		staff, err := s.checkAvailable(ctx, tx, appt, 0)
		if err != nil {
			return err
		}
		appt.Staff = staff

		created, err = tx.InsertAppointment(ctx, appt)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return domain.Appointment{}, err
	}

	span.SetAttributes(attribute.Int64("appointment.id", created.ID))
	s.log.InfoContext(ctx, "appointment created",
		slog.Int64("appointment_id", created.ID),
		slog.Int64("location_id", created.LocationID),
		slog.String("date", created.Date),
		slog.String("staff", created.Staff),
	)
	s.publish(ctx, events.AppointmentCreated, created)
	return created, nil
}

// Edit overwrites the mutable fields of a pending appointment. The location
// and date of an appointment never change.
func (s *Service) Edit(ctx context.Context, id int64, in Details) (domain.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Edit", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.store.InLocationDay(ctx, current.LocationID, current.Date, func(ctx context.Context, tx store.DayTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment %d: %w", id, err)
		}
		if appt.Attended() {
			return &TerminalStateError{AppointmentID: id}
		}
		if err := s.applyDetails(ctx, &appt, in); err != nil {
			return err
		}
		staff, err := s.checkAvailable(ctx, tx, appt, id)
		if err != nil {
			return err
		}
		appt.Staff = staff

		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("update appointment %d: %w", id, err)
		}
		updated, err = tx.GetAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return domain.Appointment{}, err
	}

	s.log.InfoContext(ctx, "appointment updated",
		slog.Int64("appointment_id", id),
		slog.String("staff", updated.Staff),
		slog.String("start", updated.StartTime),
		slog.String("end", updated.EndTime),
	)
	s.publish(ctx, events.AppointmentUpdated, updated)
	return updated, nil
}

// Cancel permanently removes a pending appointment.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "appointments.Cancel", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return err
	}

	var removed domain.Appointment
	err = s.store.InLocationDay(ctx, current.LocationID, current.Date, func(ctx context.Context, tx store.DayTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment %d: %w", id, err)
		}
		if appt.Attended() {
			return &TerminalStateError{AppointmentID: id}
		}
		if err := tx.DeleteAppointment(ctx, id); err != nil {
			return fmt.Errorf("delete appointment %d: %w", id, err)
		}
		removed = appt
		return nil
	})
	if err != nil {
		recordError(span, err)
		return err
	}

	s.log.InfoContext(ctx, "appointment cancelled", slog.Int64("appointment_id", id))
	s.publish(ctx, events.AppointmentCancelled, removed)
	return nil
}

// Attend emits the invoice for a pending appointment and marks it attended.
// If emission fails nothing is committed. If marking fails after emission the
// document stays on disk and the error is returned.
func (s *Service) Attend(ctx context.Context, id int64, in AttendInput) (AttendResult, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Attend", trace.WithAttributes(attribute.Int64("appointment.id", id)))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return AttendResult{}, err
	}
	if current.Attended() {
		return AttendResult{}, &TerminalStateError{AppointmentID: id}
	}

	receiver, err := s.validateReceiver(in)
	if err != nil {
		return AttendResult{}, err
	}

	key := fmt.Sprintf("attend:%d", id)
	acquired, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		recordError(span, err)
		return AttendResult{}, fmt.Errorf("acquire attend lock: %w", err)
	}
	if !acquired {
		return AttendResult{}, fmt.Errorf("appointment %d: %w", id, store.ErrLocked)
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			s.log.WarnContext(ctx, "release attend lock failed", slog.Int64("appointment_id", id), slog.Any("err", err))
		}
	}()

	var res AttendResult
	err = s.store.InLocationDay(ctx, current.LocationID, current.Date, func(ctx context.Context, tx store.DayTx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment %d: %w", id, err)
		}
		if appt.Attended() {
			return &TerminalStateError{AppointmentID: id}
		}

		doc, err := s.emitter.Emit(ctx, receiver, []invoice.LineItem{{
			Quantity:    1,
			Description: appt.DisplayService(),
			UnitPrice:   appt.Price,
			TaxAmount:   0,
		}})
		if err != nil {
			return &EmissionError{Err: err}
		}

		err = tx.MarkAttended(ctx, id, domain.Receipt{
			TaxID:     receiver.TaxID,
			Name:      receiver.Name,
			Surname:   receiver.Surname,
			EmittedAt: doc.IssuedAt,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "invoice emitted but appointment not marked attended",
				slog.Int64("appointment_id", id),
				slog.String("invoice", doc.Path),
				slog.Any("err", err),
			)
			if errors.Is(err, store.ErrConflict) {
				return &TerminalStateError{AppointmentID: id}
			}
			return fmt.Errorf("mark appointment %d attended: %w", id, err)
		}

		res.Invoice = doc
		res.Appointment, err = tx.GetAppointment(ctx, id)
		if err != nil {
			return fmt.Errorf("get appointment %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return AttendResult{}, err
	}

	s.log.InfoContext(ctx, "appointment attended",
		slog.Int64("appointment_id", id),
		slog.String("authorization", res.Invoice.Authorization),
		slog.String("invoice", res.Invoice.Path),
	)
	s.publish(ctx, events.AppointmentAttended, res.Appointment)
	return res, nil
}

func (s *Service) validateReceiver(in AttendInput) (invoice.Receiver, error) {
	r := invoice.Receiver{
		TaxID:   strings.TrimSpace(in.TaxID),
		Name:    strings.TrimSpace(in.Name),
		Surname: strings.TrimSpace(in.Surname),
	}
	if !digitsOnly(r.TaxID, s.taxIDDigits) {
		return invoice.Receiver{}, validationError("receiver_tax_id", fmt.Sprintf("receiver_tax_id must be exactly %d digits", s.taxIDDigits))
	}
	if r.Name == "" {
		return invoice.Receiver{}, validationError("receiver_name", "receiver_name is required")
	}
	if r.Surname == "" {
		return invoice.Receiver{}, validationError("receiver_surname", "receiver_surname is required")
	}
	return r, nil
}

// applyDetails validates in and copies it onto appt. The staff name is only
// checked for presence here; availability is checked inside the day scope.
func (s *Service) applyDetails(ctx context.Context, appt *domain.Appointment, in Details) error {
	client := strings.TrimSpace(in.Client)
	if client == "" {
		return validationError("client", "client is required")
	}

	service := strings.TrimSpace(in.Service)
	var serviceName string
	if in.ServiceID != nil {
		svc, err := s.store.GetService(ctx, appt.LocationID, *in.ServiceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return validationError("service_id", "unknown service")
			}
			return fmt.Errorf("get service: %w", err)
		}
		serviceName = svc.Name
		if service == "" {
			service = svc.Name
		}
	}
	if service == "" {
		return validationError("service", "service is required")
	}

	start, ok := domain.TryParseTimeOfDay(in.StartTime)
	if !ok || !s.resolver.Grid().IsStart(start) {
		return validationError("start_time", "start_time is not a bookable start time")
	}
	end, ok := domain.TryParseTimeOfDay(in.EndTime)
	if !ok || !s.resolver.Grid().IsEnd(start, end) {
		return validationError("end_time", "end_time is not a bookable end time for start_time")
	}

	price, err := parsePrice(in.Price)
	if err != nil {
		return err
	}

	staff := strings.TrimSpace(in.Staff)
	if staff == "" {
		return validationError("staff", "staff is required")
	}

	appt.Client = client
	appt.Service = service
	appt.ServiceID = in.ServiceID
	appt.ServiceName = serviceName
	appt.StartTime = start.String()
	appt.EndTime = end.String()
	appt.Price = price
	appt.Staff = staff
	return nil
}

// checkAvailable returns the roster spelling of appt.Staff if that member is
// free for the appointment's interval.
func (s *Service) checkAvailable(ctx context.Context, tx store.DayTx, appt domain.Appointment, excludeID int64) (string, error) {
	free, err := s.resolver.Available(ctx, tx, availability.Query{
		LocationID: appt.LocationID,
		Date:       appt.Date,
		Start:      appt.StartTime,
		End:        appt.EndTime,
		ExcludeID:  excludeID,
	})
	if err != nil {
		return "", err
	}
	name, ok := availability.Contains(free, appt.Staff)
	if !ok {
		return "", &AvailabilityError{Staff: appt.Staff, Available: free}
	}
	return name, nil
}

func (s *Service) publish(ctx context.Context, t events.Type, appt domain.Appointment) {
	if err := s.events.Publish(ctx, events.New(t, appt, s.now())); err != nil {
		s.log.WarnContext(ctx, "publish event failed",
			slog.String("event_type", string(t)),
			slog.Int64("appointment_id", appt.ID),
			slog.Any("err", err),
		)
	}
}

// parsePrice reads a plain decimal. An empty price is zero; hex floats,
// underscores and named values such as "Inf" are rejected.
func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if strings.IndexFunc(raw, func(r rune) bool { return !strings.ContainsRune("0123456789.+-eE", r) }) >= 0 {
		return 0, validationError("price", "price must be a number")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, validationError("price", "price must be a number")
	}
	if v < 0 {
		return 0, validationError("price", "price must not be negative")
	}
	return v, nil
}

func digitsOnly(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
