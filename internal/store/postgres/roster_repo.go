package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"salon/backend/internal/domain"
	"salon/backend/internal/store"
)

func listActiveStaff(ctx context.Context, db bun.IDB, locationID int64) ([]string, error) {
	var names []string
	err := db.NewSelect().
		Model((*domain.StaffMember)(nil)).
		Column("name").
		Where("location_id = ?", locationID).
		Where("active").
		OrderExpr("name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *Repo) ListStaff(ctx context.Context, locationID int64) ([]domain.StaffMember, error) {
	var rows []domain.StaffMember
	err := r.db.NewSelect().
		Model(&rows).
		Where("location_id = ?", locationID).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) AddStaff(ctx context.Context, locationID int64, name string) (domain.StaffMember, error) {
	m := domain.StaffMember{
		LocationID: locationID,
		Name:       name,
		Active:     true,
	}
	if _, err := r.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.StaffMember{}, store.ErrConflict
		}
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (r *Repo) SetStaffActive(ctx context.Context, locationID int64, name string, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*domain.StaffMember)(nil)).
		Set("active = ?", active).
		Where("location_id = ?", locationID).
		Where("lower(name) = lower(?)", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *Repo) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var rows []domain.Location
	if err := r.db.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	var row domain.Location
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Location{}, store.ErrNotFound
		}
		return domain.Location{}, err
	}
	return row, nil
}

func (r *Repo) ListServices(ctx context.Context, locationID int64) ([]domain.Service, error) {
	var rows []domain.Service
	err := r.db.NewSelect().
		Model(&rows).
		Where("location_id = ?", locationID).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) GetService(ctx context.Context, locationID, serviceID int64) (domain.Service, error) {
	var row domain.Service
	err := r.db.NewSelect().
		Model(&row).
		Where("location_id = ?", locationID).
		Where("id = ?", serviceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Service{}, store.ErrNotFound
		}
		return domain.Service{}, err
	}
	return row, nil
}

var (
	_ store.Store   = (*Repo)(nil)
	_ store.Roster  = (*Repo)(nil)
	_ store.Catalog = (*Repo)(nil)
)
