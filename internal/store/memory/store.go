// Package memory is an in-process store for the single-terminal desktop mode and
// for tests. Every InLocationDay call holds a lock for its (location, date) scope
// and rolls its writes back if the callback fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"salon/backend/internal/domain"
	"salon/backend/internal/store"
)

type dayKey struct {
	locationID int64
	date       string
}

type Store struct {
	mu           sync.RWMutex
	appointments map[int64]domain.Appointment
	staff        []domain.StaffMember
	services     []domain.Service
	locations    []domain.Location
	lastID       int64

	scopesMu sync.Mutex
	scopes   map[dayKey]*sync.Mutex
}

func New() *Store {
	return &Store{
		appointments: make(map[int64]domain.Appointment),
		scopes:       make(map[dayKey]*sync.Mutex),
	}
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) AddLocation(name, address string) domain.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := domain.Location{ID: s.nextID(), Name: name, Address: address}
	s.locations = append(s.locations, l)
	return l
}

func (s *Store) AddService(locationID int64, name string, price float64) domain.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := domain.Service{ID: s.nextID(), LocationID: locationID, Name: name, Price: price}
	s.services = append(s.services, svc)
	return svc
}

// PutAppointment stores a row verbatim, bypassing every check. Tests use it to
// plant legacy or malformed rows.
func (s *Store) PutAppointment(appt domain.Appointment) domain.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == 0 {
		appt.ID = s.nextID()
	} else if appt.ID > s.lastID {
		s.lastID = appt.ID
	}
	s.appointments[appt.ID] = appt
	return appt
}

func (s *Store) ListLocations(ctx context.Context) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Location(nil), s.locations...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Location{}, store.ErrNotFound
}

func (s *Store) ListServices(ctx context.Context, locationID int64) ([]domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Service
	for _, svc := range s.services {
		if svc.LocationID == locationID {
			out = append(out, svc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetService(ctx context.Context, locationID, serviceID int64) (domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, svc := range s.services {
		if svc.LocationID == locationID && svc.ID == serviceID {
			return svc, nil
		}
	}
	return domain.Service{}, store.ErrNotFound
}

func (s *Store) ListStaff(ctx context.Context, locationID int64) ([]domain.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StaffMember
	for _, m := range s.staff {
		if m.LocationID == locationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListActiveStaff(ctx context.Context, locationID int64) ([]string, error) {
	members, err := s.ListStaff(ctx, locationID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.Active {
			out = append(out, m.Name)
		}
	}
	return out, nil
}

func (s *Store) AddStaff(ctx context.Context, locationID int64, name string) (domain.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.staff {
		if m.LocationID == locationID && strings.EqualFold(m.Name, name) {
			return domain.StaffMember{}, store.ErrConflict
		}
	}
	m := domain.StaffMember{
		ID:         s.nextID(),
		LocationID: locationID,
		Name:       name,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	s.staff = append(s.staff, m)
	return m, nil
}

func (s *Store) SetStaffActive(ctx context.Context, locationID int64, name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.staff {
		if m.LocationID == locationID && strings.EqualFold(m.Name, name) {
			s.staff[i].Active = active
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListAppointments(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Appointment
	for _, a := range s.appointments {
		if a.LocationID == locationID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) scope(locationID int64, date string) *sync.Mutex {
	s.scopesMu.Lock()
	defer s.scopesMu.Unlock()
	k := dayKey{locationID: locationID, date: date}
	m, ok := s.scopes[k]
	if !ok {
		m = &sync.Mutex{}
		s.scopes[k] = m
	}
	return m
}

func (s *Store) InLocationDay(ctx context.Context, locationID int64, date string, fn func(ctx context.Context, tx store.DayTx) error) error {
	m := s.scope(locationID, date)
	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &dayTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// dayTx writes through to the store and keeps the previous row versions so a
// failed callback can be undone.
type dayTx struct {
	s    *Store
	undo []func()
}

func (t *dayTx) ListActiveStaff(ctx context.Context, locationID int64) ([]string, error) {
	return t.s.ListActiveStaff(ctx, locationID)
}

func (t *dayTx) ListAppointments(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error) {
	return t.s.ListAppointments(ctx, locationID, date)
}

func (t *dayTx) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return t.s.GetAppointment(ctx, id)
}

func (t *dayTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := time.Now().UTC()
	appt.ID = t.s.nextID()
	if appt.Status == "" {
		appt.Status = domain.StatusPending
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now
	t.s.appointments[appt.ID] = appt

	id := appt.ID
	t.undo = append(t.undo, func() { delete(t.s.appointments, id) })
	return appt, nil
}

func (t *dayTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	prev, ok := t.s.appointments[appt.ID]
	if !ok {
		return store.ErrNotFound
	}
	next := prev
	next.Client = appt.Client
	next.Service = appt.Service
	next.ServiceID = appt.ServiceID
	next.ServiceName = appt.ServiceName
	next.StartTime = appt.StartTime
	next.EndTime = appt.EndTime
	next.Price = appt.Price
	next.Staff = appt.Staff
	next.UpdatedAt = time.Now().UTC()
	t.s.appointments[appt.ID] = next

	t.undo = append(t.undo, func() { t.s.appointments[prev.ID] = prev })
	return nil
}

func (t *dayTx) DeleteAppointment(ctx context.Context, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	prev, ok := t.s.appointments[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(t.s.appointments, id)

	t.undo = append(t.undo, func() { t.s.appointments[prev.ID] = prev })
	return nil
}

func (t *dayTx) MarkAttended(ctx context.Context, id int64, receipt domain.Receipt) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	prev, ok := t.s.appointments[id]
	if !ok {
		return store.ErrNotFound
	}
	if prev.Attended() {
		return fmt.Errorf("appointment %d: %w", id, store.ErrConflict)
	}
	emitted := receipt.EmittedAt.UTC()
	next := prev
	next.Status = domain.StatusAttended
	next.ReceiverTaxID = receipt.TaxID
	next.ReceiverName = receipt.Name
	next.ReceiverSurname = receipt.Surname
	next.EmittedAt = &emitted
	next.UpdatedAt = time.Now().UTC()
	t.s.appointments[id] = next

	t.undo = append(t.undo, func() { t.s.appointments[prev.ID] = prev })
	return nil
}

func (t *dayTx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var (
	_ store.Store                 = (*Store)(nil)
	_ store.AppointmentRepository = (*Store)(nil)
	_ store.Roster                = (*Store)(nil)
	_ store.Catalog               = (*Store)(nil)
	_ store.DayTx                 = (*dayTx)(nil)
)
