// Package availability answers which staff members are free for an interval on
// a given day at a location.
package availability

import (
	"context"
	"fmt"
	"strings"

	"salon/backend/internal/domain"
	"salon/backend/internal/store"
)

type Query struct {
	LocationID int64
	Date       string
	Start      string
	End        string
	// ExcludeID skips one appointment, so an edit is not blocked by itself.
	// Zero excludes nothing.
	ExcludeID int64
}

type Resolver struct {
	grid domain.SlotGrid
}

func NewResolver(grid domain.SlotGrid) Resolver {
	return Resolver{grid: grid}
}

func (r Resolver) Grid() domain.SlotGrid {
	return r.grid
}

// Interval parses start and end and checks them against the grid.
func (r Resolver) Interval(start, end string) (domain.TimeOfDay, domain.TimeOfDay, bool) {
	s, ok := domain.TryParseTimeOfDay(start)
	if !ok {
		return 0, 0, false
	}
	e, ok := domain.TryParseTimeOfDay(end)
	if !ok {
		return 0, 0, false
	}
	if !r.grid.IsEnd(s, e) {
		return 0, 0, false
	}
	return s, e, true
}

// Available returns the active staff with no booking overlapping the query
// interval, in roster order. An interval that is off the grid yields an empty
// result rather than an error. Attended appointments block their slot too.
func (r Resolver) Available(ctx context.Context, sched store.Schedule, q Query) ([]string, error) {
	start, end, ok := r.Interval(q.Start, q.End)
	if !ok {
		return []string{}, nil
	}

	names, err := sched.ListActiveStaff(ctx, q.LocationID)
	if err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	staff := normalizeNames(names)
	if len(staff) == 0 {
		return []string{}, nil
	}

	appts, err := sched.ListAppointments(ctx, q.LocationID, q.Date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	free := make([]string, 0, len(staff))
	for _, name := range staff {
		if !booked(name, appts, start, end, q.ExcludeID) {
			free = append(free, name)
		}
	}
	return free, nil
}

func booked(staff string, appts []domain.Appointment, start, end domain.TimeOfDay, excludeID int64) bool {
	for _, a := range appts {
		if excludeID != 0 && a.ID == excludeID {
			continue
		}
		if !a.AssignedTo(staff) {
			continue
		}
		// A row whose stored times do not parse never conflicts.
		aStart, aEnd, ok := a.Interval()
		if !ok {
			continue
		}
		if domain.Overlaps(start, end, aStart, aEnd) {
			return true
		}
	}
	return false
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Contains reports whether staff is in names, ignoring case and surrounding
// space, and returns the roster spelling.
func Contains(names []string, staff string) (string, bool) {
	staff = strings.TrimSpace(staff)
	for _, n := range names {
		if strings.EqualFold(n, staff) {
			return n, true
		}
	}
	return "", false
}
