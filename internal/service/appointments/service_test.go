package appointments

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"salon/backend/internal/domain"
	"salon/backend/internal/events"
	"salon/backend/internal/invoice"
	"salon/backend/internal/store"
	"salon/backend/internal/store/memory"
)

const testDate = "2026-03-14"

type fakeEmitter struct {
	emitFn func(ctx context.Context, to invoice.Receiver, items []invoice.LineItem) (invoice.Document, error)
}

func (f *fakeEmitter) Emit(ctx context.Context, to invoice.Receiver, items []invoice.LineItem) (invoice.Document, error) {
	if f.emitFn == nil {
		panic("Emit not configured")
	}
	return f.emitFn(ctx, to, items)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) types() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLocker struct {
	lockFn func(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.lockFn == nil {
		panic("Lock not configured")
	}
	return f.lockFn(ctx, key, ttl)
}

func (f *fakeLocker) Unlock(ctx context.Context, key string) error {
	return nil
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	location  domain.Location
	manicure  domain.Service
	emitted   []invoice.LineItem
	publisher *fakePublisher
}

func newFixture(t *testing.T, staff ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), publisher: &fakePublisher{}}
	f.location = f.store.AddLocation("Nail Studio", "Main St 1")
	f.manicure = f.store.AddService(f.location.ID, "Manicure", 80)
	for _, name := range staff {
		if _, err := f.store.AddStaff(ctx, f.location.ID, name); err != nil {
			t.Fatalf("AddStaff(%q) error: %v", name, err)
		}
	}
	emitter := &fakeEmitter{
		emitFn: func(ctx context.Context, to invoice.Receiver, items []invoice.LineItem) (invoice.Document, error) {
			f.emitted = append(f.emitted, items...)
			return invoice.Document{
				Name:          fmt.Sprintf("invoice_%d.html", len(f.emitted)),
				Authorization: "AUTH",
				IssuedAt:      time.Date(2026, 3, 14, 12, 0, len(f.emitted), 0, time.UTC),
				Total:         items[0].Total(),
			}, nil
		},
	}
	f.svc = NewService(f.store, emitter, Options{Publisher: f.publisher})
	return f
}

func (f *fixture) input(staff, start, end string) CreateInput {
	return CreateInput{
		LocationID: f.location.ID,
		Date:       testDate,
		Details: Details{
			Client:    "Client",
			Service:   "Manicure",
			StartTime: start,
			EndTime:   end,
			Price:     "80",
			Staff:     staff,
		},
	}
}

func (f *fixture) mustCreate(t *testing.T, staff, start, end string) domain.Appointment {
	t.Helper()
	appt, err := f.svc.Create(context.Background(), f.input(staff, start, end))
	if err != nil {
		t.Fatalf("Create(%s %s-%s) error: %v", staff, start, end, err)
	}
	return appt
}

func (f *fixture) mustAttend(t *testing.T, id int64) AttendResult {
	t.Helper()
	res, err := f.svc.Attend(context.Background(), id, AttendInput{TaxID: "123456789", Name: "Ana", Surname: "Lopez"})
	if err != nil {
		t.Fatalf("Attend(%d) error: %v", id, err)
	}
	return res
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	rows, err := f.store.ListAppointments(context.Background(), f.location.ID, testDate)
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	return len(rows)
}

func TestServiceCreate_ValidationErrors(t *testing.T) {
	f := newFixture(t, "Ana")
	unknown := int64(999)

	cases := []struct {
		name  string
		edit  func(in *CreateInput)
		field string
	}{
		{"missing location", func(in *CreateInput) { in.LocationID = 0 }, "location_id"},
		{"unknown location", func(in *CreateInput) { in.LocationID = 999 }, "location_id"},
		{"bad date", func(in *CreateInput) { in.Date = "14/03/2026" }, "date"},
		{"empty client", func(in *CreateInput) { in.Client = "   " }, "client"},
		{"empty service", func(in *CreateInput) { in.Service = "" }, "service"},
		{"unknown service id", func(in *CreateInput) { in.ServiceID = &unknown }, "service_id"},
		{"malformed start", func(in *CreateInput) { in.StartTime = "9:00" }, "start_time"},
		{"off-grid start", func(in *CreateInput) { in.StartTime = "09:15" }, "start_time"},
		{"start at close", func(in *CreateInput) { in.StartTime, in.EndTime = "19:00", "19:30" }, "start_time"},
		{"end before start", func(in *CreateInput) { in.EndTime = "09:30" }, "end_time"},
		{"end equals start", func(in *CreateInput) { in.EndTime = "10:00" }, "end_time"},
		{"end after close", func(in *CreateInput) { in.EndTime = "19:30" }, "end_time"},
		{"non-numeric price", func(in *CreateInput) { in.Price = "ten" }, "price"},
		{"negative price", func(in *CreateInput) { in.Price = "-1" }, "price"},
		{"hex price", func(in *CreateInput) { in.Price = "0x1p4" }, "price"},
		{"infinite price", func(in *CreateInput) { in.Price = "Inf" }, "price"},
		{"underscored price", func(in *CreateInput) { in.Price = "1_000" }, "price"},
		{"empty staff", func(in *CreateInput) { in.Staff = " " }, "staff"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input("Ana", "10:00", "10:30")
			tc.edit(&in)

			_, err := f.svc.Create(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v (%T), want *ValidationError", err, err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
	if n := f.count(t); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
}

func TestServiceCreate_PersistsPendingWithRosterSpelling(t *testing.T) {
	f := newFixture(t, "Ana", "Beti")

	in := f.input(" ana ", "10:00", "10:30")
	in.Client = "  Maria  "
	in.Price = " 80.50 "
	appt, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if appt.Status != domain.StatusPending {
		t.Fatalf("status = %q, want %q", appt.Status, domain.StatusPending)
	}
	if appt.Staff != "Ana" || appt.Client != "Maria" || appt.Price != 80.5 {
		t.Fatalf("stored = %+v", appt)
	}
	if got := f.publisher.types(); !reflect.DeepEqual(got, []events.Type{events.AppointmentCreated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestServiceCreate_ServiceIDCopiesCatalogName(t *testing.T) {
	f := newFixture(t, "Ana")

	in := f.input("Ana", "10:00", "10:30")
	in.Service = ""
	in.ServiceID = &f.manicure.ID
	appt, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.Service != "Manicure" || appt.ServiceName != "Manicure" {
		t.Fatalf("service = %q / %q, want Manicure", appt.Service, appt.ServiceName)
	}
	if appt.ServiceID == nil || *appt.ServiceID != f.manicure.ID {
		t.Fatalf("service_id = %v, want %d", appt.ServiceID, f.manicure.ID)
	}
}

func TestServiceCreate_RejectsDoubleBooking(t *testing.T) {
	f := newFixture(t, "Ana")
	f.mustCreate(t, "Ana", "10:00", "11:00")

	_, err := f.svc.Create(context.Background(), f.input("Ana", "10:30", "11:00"))
	var aErr *AvailabilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("error = %v (%T), want *AvailabilityError", err, err)
	}
	if len(aErr.Available) != 0 {
		t.Fatalf("available = %v, want none", aErr.Available)
	}
	if n := f.count(t); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestServiceCreate_AvailabilityErrorListsFreeStaff(t *testing.T) {
	f := newFixture(t, "Ana", "Beti")
	f.mustCreate(t, "Ana", "10:00", "10:30")

	_, err := f.svc.Create(context.Background(), f.input("Ana", "10:00", "10:30"))
	var aErr *AvailabilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("error = %v, want *AvailabilityError", err)
	}
	if !reflect.DeepEqual(aErr.Available, []string{"Beti"}) {
		t.Fatalf("available = %v, want [Beti]", aErr.Available)
	}
}

func TestServiceCreate_InactiveOrUnknownStaffRejected(t *testing.T) {
	f := newFixture(t, "Ana", "Beti")
	if err := f.svc.SetStaffActive(context.Background(), f.location.ID, "Beti", false); err != nil {
		t.Fatalf("SetStaffActive error: %v", err)
	}

	for _, staff := range []string{"Beti", "Carla"} {
		_, err := f.svc.Create(context.Background(), f.input(staff, "10:00", "10:30"))
		var aErr *AvailabilityError
		if !errors.As(err, &aErr) {
			t.Fatalf("%s: error = %v, want *AvailabilityError", staff, err)
		}
	}
}

func TestServiceCreate_AdjacentSlotsAccepted(t *testing.T) {
	f := newFixture(t, "Ana")
	f.mustCreate(t, "Ana", "09:00", "09:30")
	f.mustCreate(t, "Ana", "09:30", "10:00")
	f.mustCreate(t, "Ana", "18:30", "19:00")
}

func TestServiceEdit_SelfExclusion(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "11:00")

	upd, err := f.svc.Edit(context.Background(), appt.ID, Details{
		Client: "Other", Service: "Pedicure", StartTime: "10:30", EndTime: "11:30", Price: "90", Staff: "Ana",
	})
	if err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	if upd.ID != appt.ID || upd.StartTime != "10:30" || upd.EndTime != "11:30" || upd.Client != "Other" || upd.Price != 90 {
		t.Fatalf("updated = %+v", upd)
	}
	if upd.LocationID != appt.LocationID || upd.Date != appt.Date {
		t.Fatalf("scope changed: %+v", upd)
	}
	if got := f.publisher.types(); !reflect.DeepEqual(got, []events.Type{events.AppointmentCreated, events.AppointmentUpdated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestServiceEdit_ConflictWithOtherBooking(t *testing.T) {
	f := newFixture(t, "Ana")
	f.mustCreate(t, "Ana", "10:00", "11:00")
	second := f.mustCreate(t, "Ana", "11:00", "11:30")

	_, err := f.svc.Edit(context.Background(), second.ID, Details{
		Client: "Client", Service: "Manicure", StartTime: "10:30", EndTime: "11:30", Price: "80", Staff: "Ana",
	})
	var aErr *AvailabilityError
	if !errors.As(err, &aErr) {
		t.Fatalf("error = %v, want *AvailabilityError", err)
	}
	got, _ := f.svc.Get(context.Background(), second.ID)
	if got.StartTime != "11:00" {
		t.Fatalf("start = %s, want unchanged 11:00", got.StartTime)
	}
}

func TestServiceEdit_NotFound(t *testing.T) {
	f := newFixture(t, "Ana")
	_, err := f.svc.Edit(context.Background(), 42, Details{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestServiceAttend_EmitsInvoiceAndMarksAttended(t *testing.T) {
	f := newFixture(t, "Ana")
	in := f.input("Ana", "10:00", "10:30")
	in.ServiceID = &f.manicure.ID
	in.Service = "mani"
	appt, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	res := f.mustAttend(t, appt.ID)

	want := []invoice.LineItem{{Quantity: 1, Description: "Manicure", UnitPrice: 80, TaxAmount: 0}}
	if !reflect.DeepEqual(f.emitted, want) {
		t.Fatalf("items = %+v, want %+v", f.emitted, want)
	}
	got := res.Appointment
	if !got.Attended() {
		t.Fatalf("status = %q, want ATTENDED", got.Status)
	}
	if got.ReceiverTaxID != "123456789" || got.ReceiverName != "Ana" || got.ReceiverSurname != "Lopez" {
		t.Fatalf("receiver = %+v", got)
	}
	if got.EmittedAt == nil || !got.EmittedAt.Equal(res.Invoice.IssuedAt) {
		t.Fatalf("emitted_at = %v, want %v", got.EmittedAt, res.Invoice.IssuedAt)
	}
	if res.Invoice.Total != 80 {
		t.Fatalf("total = %v, want 80", res.Invoice.Total)
	}
}

func TestServiceAttend_SecondAttendIsTerminal(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	first := f.mustAttend(t, appt.ID)

	_, err := f.svc.Attend(context.Background(), appt.ID, AttendInput{TaxID: "987654321", Name: "X", Surname: "Y"})
	var tErr *TerminalStateError
	if !errors.As(err, &tErr) || !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("error = %v, want *TerminalStateError", err)
	}
	if tErr.AppointmentID != appt.ID {
		t.Fatalf("appointment id = %d, want %d", tErr.AppointmentID, appt.ID)
	}
	if len(f.emitted) != 1 {
		t.Fatalf("emitted %d invoices, want 1", len(f.emitted))
	}
	got, _ := f.svc.Get(context.Background(), appt.ID)
	if !got.EmittedAt.Equal(*first.Appointment.EmittedAt) || got.ReceiverTaxID != "123456789" {
		t.Fatalf("attended appointment changed: %+v", got)
	}
}

func TestServiceTerminalImmutability(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	attended := f.mustAttend(t, appt.ID).Appointment

	_, err := f.svc.Edit(context.Background(), appt.ID, Details{
		Client: "Changed", Service: "Manicure", StartTime: "11:00", EndTime: "11:30", Price: "1", Staff: "Ana",
	})
	if !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("Edit error = %v, want %v", err, ErrAlreadyAttended)
	}
	if err := f.svc.Cancel(context.Background(), appt.ID); !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("Cancel error = %v, want %v", err, ErrAlreadyAttended)
	}
	if _, err := f.svc.Attend(context.Background(), appt.ID, AttendInput{}); !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("Attend with empty receiver error = %v, want %v", err, ErrAlreadyAttended)
	}
	if len(f.emitted) != 1 {
		t.Fatalf("emitted %d invoices, want 1", len(f.emitted))
	}

	got, err := f.svc.Get(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !reflect.DeepEqual(got, attended) {
		t.Fatalf("appointment changed:\n got %+v\nwant %+v", got, attended)
	}
}

func TestServiceCreate_EmptyPriceIsZero(t *testing.T) {
	f := newFixture(t, "Ana")

	in := f.input("Ana", "10:00", "10:30")
	in.Price = ""
	appt, err := f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.Price != 0 {
		t.Fatalf("price = %v, want 0", appt.Price)
	}

	in = f.input("Ana", "11:00", "11:30")
	in.Price = "1.5e2"
	appt, err = f.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if appt.Price != 150 {
		t.Fatalf("price = %v, want 150", appt.Price)
	}
}

func TestServiceAttend_ReceiverValidation(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")

	cases := []struct {
		in    AttendInput
		field string
	}{
		{AttendInput{TaxID: "12345678", Name: "A", Surname: "B"}, "receiver_tax_id"},
		{AttendInput{TaxID: "1234567890", Name: "A", Surname: "B"}, "receiver_tax_id"},
		{AttendInput{TaxID: "12345678X", Name: "A", Surname: "B"}, "receiver_tax_id"},
		{AttendInput{TaxID: "123456789", Name: " ", Surname: "B"}, "receiver_name"},
		{AttendInput{TaxID: "123456789", Name: "A", Surname: ""}, "receiver_surname"},
	}
	for _, tc := range cases {
		_, err := f.svc.Attend(context.Background(), appt.ID, tc.in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != tc.field {
			t.Fatalf("%+v: error = %v, want ValidationError on %s", tc.in, err, tc.field)
		}
	}
	if len(f.emitted) != 0 {
		t.Fatalf("emitted %d invoices, want 0", len(f.emitted))
	}
}

func TestServiceAttend_EmissionFailureLeavesPending(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	boom := errors.New("disk full")
	f.svc.emitter = &fakeEmitter{
		emitFn: func(ctx context.Context, to invoice.Receiver, items []invoice.LineItem) (invoice.Document, error) {
			return invoice.Document{}, boom
		},
	}

	_, err := f.svc.Attend(context.Background(), appt.ID, AttendInput{TaxID: "123456789", Name: "A", Surname: "B"})
	var eErr *EmissionError
	if !errors.As(err, &eErr) || !errors.Is(err, boom) {
		t.Fatalf("error = %v, want *EmissionError wrapping %v", err, boom)
	}
	got, _ := f.svc.Get(context.Background(), appt.ID)
	if got.Attended() || got.EmittedAt != nil || got.ReceiverTaxID != "" {
		t.Fatalf("appointment changed: %+v", got)
	}
}

type failingMarkStore struct {
	*memory.Store
	err error
}

func (s failingMarkStore) InLocationDay(ctx context.Context, locationID int64, date string, fn func(ctx context.Context, tx store.DayTx) error) error {
	return s.Store.InLocationDay(ctx, locationID, date, func(ctx context.Context, tx store.DayTx) error {
		return fn(ctx, failingMarkTx{DayTx: tx, err: s.err})
	})
}

type failingMarkTx struct {
	store.DayTx
	err error
}

func (t failingMarkTx) MarkAttended(ctx context.Context, id int64, receipt domain.Receipt) error {
	return t.err
}

func TestServiceAttend_PersistenceFailureAfterEmission(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	boom := errors.New("write failed")
	f.svc.store = failingMarkStore{Store: f.store, err: boom}

	_, err := f.svc.Attend(context.Background(), appt.ID, AttendInput{TaxID: "123456789", Name: "A", Surname: "B"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	var eErr *EmissionError
	if errors.As(err, &eErr) {
		t.Fatalf("persistence failure reported as emission failure: %v", err)
	}
	if len(f.emitted) != 1 {
		t.Fatalf("emitted %d invoices, want 1", len(f.emitted))
	}
	got, _ := f.store.GetAppointment(context.Background(), appt.ID)
	if got.Attended() {
		t.Fatalf("status = %q, want PENDING", got.Status)
	}
}

func TestServiceAttend_LockedBySomeoneElse(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	var gotKey string
	f.svc.locker = &fakeLocker{
		lockFn: func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
			gotKey = key
			return false, nil
		},
	}

	_, err := f.svc.Attend(context.Background(), appt.ID, AttendInput{TaxID: "123456789", Name: "A", Surname: "B"})
	if !errors.Is(err, store.ErrLocked) {
		t.Fatalf("error = %v, want %v", err, store.ErrLocked)
	}
	if gotKey != fmt.Sprintf("attend:%d", appt.ID) {
		t.Fatalf("lock key = %q", gotKey)
	}
	if len(f.emitted) != 0 {
		t.Fatalf("emitted %d invoices, want 0", len(f.emitted))
	}
}

func TestServiceCancel(t *testing.T) {
	f := newFixture(t, "Ana")
	appt := f.mustCreate(t, "Ana", "10:00", "10:30")

	if err := f.svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), appt.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get error = %v, want %v", err, store.ErrNotFound)
	}
	if err := f.svc.Cancel(context.Background(), appt.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Cancel error = %v, want %v", err, store.ErrNotFound)
	}

	// The freed slot can be booked again.
	f.mustCreate(t, "Ana", "10:00", "10:30")

	types := f.publisher.types()
	if len(types) != 3 || types[1] != events.AppointmentCancelled {
		t.Fatalf("events = %v", types)
	}
	if f.publisher.events[1].Appointment.ID != appt.ID {
		t.Fatalf("cancelled snapshot id = %d, want %d", f.publisher.events[1].Appointment.ID, appt.ID)
	}
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, "Ana")
	f.publisher.err = errors.New("broker down")

	appt := f.mustCreate(t, "Ana", "10:00", "10:30")
	if _, err := f.svc.Get(context.Background(), appt.ID); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}

func TestService_NoDoubleBookingProperty(t *testing.T) {
	f := newFixture(t, "Ana", "Beti")
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	starts := f.svc.StartTimes()
	staff := []string{"Ana", "Beti"}
	var ids []int64

	for step := 0; step < 400; step++ {
		start := starts[rng.Intn(len(starts))]
		ends := f.svc.EndTimes(start)
		end := ends[rng.Intn(min(len(ends), 4))]
		d := Details{Client: "c", Service: "s", StartTime: start, EndTime: end, Price: "10", Staff: staff[rng.Intn(len(staff))]}

		var err error
		if len(ids) > 0 && rng.Intn(3) == 0 {
			_, err = f.svc.Edit(ctx, ids[rng.Intn(len(ids))], d)
		} else {
			var appt domain.Appointment
			appt, err = f.svc.Create(ctx, CreateInput{LocationID: f.location.ID, Date: testDate, Details: d})
			if err == nil {
				ids = append(ids, appt.ID)
			}
		}
		var aErr *AvailabilityError
		if err != nil && !errors.As(err, &aErr) && !errors.Is(err, ErrAlreadyAttended) {
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}
		if len(ids) > 0 && rng.Intn(10) == 0 {
			f.mustAttendQuiet(t, ids[rng.Intn(len(ids))])
		}
		assertNoOverlaps(t, f, step)
	}
	if len(ids) == 0 {
		t.Fatal("no appointment was ever accepted")
	}
}

func (f *fixture) mustAttendQuiet(t *testing.T, id int64) {
	t.Helper()
	_, err := f.svc.Attend(context.Background(), id, AttendInput{TaxID: "123456789", Name: "A", Surname: "B"})
	if err != nil && !errors.Is(err, ErrAlreadyAttended) {
		t.Fatalf("Attend(%d) error: %v", id, err)
	}
}

func assertNoOverlaps(t *testing.T, f *fixture, step int) {
	t.Helper()
	rows, err := f.store.ListAppointments(context.Background(), f.location.ID, testDate)
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			a, b := rows[i], rows[j]
			if !a.AssignedTo(b.Staff) {
				continue
			}
			as, ae, _ := a.Interval()
			bs, be, _ := b.Interval()
			if domain.Overlaps(as, ae, bs, be) {
				t.Fatalf("step %d: %s double-booked: %d %s-%s and %d %s-%s",
					step, a.Staff, a.ID, a.StartTime, a.EndTime, b.ID, b.StartTime, b.EndTime)
			}
		}
	}
}

func TestService_ConcurrentCreatesBookSlotOnce(t *testing.T) {
	f := newFixture(t, "Ana")
	const workers = 16

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.input("Ana", "10:00", "11:00"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		var aErr *AvailabilityError
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &aErr):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
	if n := f.count(t); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestServiceAvailableStaff(t *testing.T) {
	f := newFixture(t, "Ana", "Beti")
	f.mustCreate(t, "Ana", "10:00", "10:30")

	got, err := f.svc.AvailableStaff(context.Background(), AvailabilityQuery{
		LocationID: f.location.ID, Date: testDate, StartTime: "10:00", EndTime: "10:30",
	})
	if err != nil {
		t.Fatalf("AvailableStaff error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Beti"}) {
		t.Fatalf("available = %v, want [Beti]", got)
	}

	_, err = f.svc.AvailableStaff(context.Background(), AvailabilityQuery{LocationID: f.location.ID, Date: "2026-3-14"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "date" {
		t.Fatalf("error = %v, want ValidationError on date", err)
	}
}

func TestServiceGridQueries(t *testing.T) {
	f := newFixture(t)
	starts := f.svc.StartTimes()
	if len(starts) != 20 || starts[0] != "09:00" || starts[19] != "18:30" {
		t.Fatalf("starts = %v", starts)
	}
	if got := f.svc.EndTimes("18:30"); !reflect.DeepEqual(got, []string{"19:00"}) {
		t.Fatalf("EndTimes(18:30) = %v", got)
	}
	for _, bad := range []string{"19:00", "09:15", "bad"} {
		if got := f.svc.EndTimes(bad); got == nil || len(got) != 0 {
			t.Fatalf("EndTimes(%q) = %#v, want empty", bad, got)
		}
	}
}

func TestServiceCustomGridAndTaxDigits(t *testing.T) {
	st := memory.New()
	loc := st.AddLocation("L", "")
	if _, err := st.AddStaff(context.Background(), loc.ID, "Ana"); err != nil {
		t.Fatalf("AddStaff error: %v", err)
	}
	grid, err := domain.NewSlotGrid("08:00", "12:00", 60)
	if err != nil {
		t.Fatalf("NewSlotGrid error: %v", err)
	}
	svc := NewService(st, &fakeEmitter{}, Options{Grid: grid, TaxIDDigits: 8})

	if got := svc.StartTimes(); !reflect.DeepEqual(got, []string{"08:00", "09:00", "10:00", "11:00"}) {
		t.Fatalf("starts = %v", got)
	}
	_, err = svc.Create(context.Background(), CreateInput{LocationID: loc.ID, Date: testDate, Details: Details{
		Client: "c", Service: "s", StartTime: "09:30", EndTime: "10:30", Price: "1", Staff: "Ana",
	}})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "start_time" {
		t.Fatalf("error = %v, want ValidationError on start_time", err)
	}
	if _, err := svc.validateReceiver(AttendInput{TaxID: "12345678", Name: "A", Surname: "B"}); err != nil {
		t.Fatalf("8-digit tax id rejected: %v", err)
	}
}

func TestServiceList_RequiresISODate(t *testing.T) {
	f := newFixture(t, "Ana")
	f.mustCreate(t, "Ana", "11:00", "11:30")
	f.mustCreate(t, "Ana", "09:00", "09:30")

	rows, err := f.svc.List(context.Background(), f.location.ID, testDate)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(rows) != 2 || rows[0].StartTime != "09:00" {
		t.Fatalf("rows = %+v", rows)
	}
	if _, err := f.svc.List(context.Background(), f.location.ID, "today"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestServiceAddStaff(t *testing.T) {
	f := newFixture(t, "Ana")
	ctx := context.Background()

	m, err := f.svc.AddStaff(ctx, f.location.ID, "  Beti ")
	if err != nil {
		t.Fatalf("AddStaff error: %v", err)
	}
	if m.Name != "Beti" || !m.Active {
		t.Fatalf("member = %+v", m)
	}

	var vErr *ValidationError
	if _, err := f.svc.AddStaff(ctx, f.location.ID, "  "); !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("empty name error = %v", err)
	}
	if _, err := f.svc.AddStaff(ctx, 999, "Carla"); !errors.As(err, &vErr) || vErr.Field != "location_id" {
		t.Fatalf("unknown location error = %v", err)
	}
	if _, err := f.svc.AddStaff(ctx, f.location.ID, "ANA"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate error = %v, want %v", err, store.ErrConflict)
	}

	names, err := f.svc.ListActiveStaff(ctx, f.location.ID)
	if err != nil {
		t.Fatalf("ListActiveStaff error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Ana", "Beti"}) {
		t.Fatalf("names = %v", names)
	}
}
