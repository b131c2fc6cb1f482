package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"salon/backend/internal/domain"
	"salon/backend/internal/store"
)

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return rows, nil
}

func (s *Service) ListServices(ctx context.Context, locationID int64) ([]domain.Service, error) {
	rows, err := s.store.ListServices(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return rows, nil
}

func (s *Service) ListStaff(ctx context.Context, locationID int64) ([]domain.StaffMember, error) {
	rows, err := s.store.ListStaff(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return rows, nil
}

func (s *Service) ListActiveStaff(ctx context.Context, locationID int64) ([]string, error) {
	names, err := s.store.ListActiveStaff(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	return names, nil
}

// AddStaff registers an active staff member. Names are unique per location,
// ignoring case.
func (s *Service) AddStaff(ctx context.Context, locationID int64, name string) (domain.StaffMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.StaffMember{}, validationError("name", "name is required")
	}
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.StaffMember{}, validationError("location_id", "unknown location")
		}
		return domain.StaffMember{}, fmt.Errorf("get location: %w", err)
	}

	m, err := s.store.AddStaff(ctx, locationID, name)
	if err != nil {
		return domain.StaffMember{}, fmt.Errorf("add staff %q: %w", name, err)
	}
	s.log.InfoContext(ctx, "staff added", slog.Int64("location_id", locationID), slog.String("staff", m.Name))
	return m, nil
}

func (s *Service) SetStaffActive(ctx context.Context, locationID int64, name string, active bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validationError("name", "name is required")
	}
	if err := s.store.SetStaffActive(ctx, locationID, name, active); err != nil {
		return fmt.Errorf("set staff %q active=%t: %w", name, active, err)
	}
	s.log.InfoContext(ctx, "staff updated", slog.Int64("location_id", locationID), slog.String("staff", name), slog.Bool("active", active))
	return nil
}
