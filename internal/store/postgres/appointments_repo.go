package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"salon/backend/internal/domain"
	"salon/backend/internal/store"
)

const pgUniqueViolation = "23505"

type Repo struct {
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{db: db}
}

type dayTx struct {
	tx bun.Tx
}

func (r *Repo) ListAppointments(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, locationID, date)
}

func (r *Repo) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (r *Repo) ListActiveStaff(ctx context.Context, locationID int64) ([]string, error) {
	return listActiveStaff(ctx, r.db, locationID)
}

// InLocationDay runs fn in a transaction holding an advisory lock on the
// (location, date) pair, so an availability check and the write that depends
// on it cannot interleave with another writer for the same day.
func (r *Repo) InLocationDay(ctx context.Context, locationID int64, date string, fn func(ctx context.Context, tx store.DayTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockLocationDay(ctx, tx, locationID, date); err != nil {
			return err
		}
		return fn(ctx, dayTx{tx: tx})
	})
}

func lockLocationDay(ctx context.Context, tx bun.Tx, locationID int64, date string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", dayLockKey(locationID, date)).Exec(ctx)
	return err
}

func dayLockKey(locationID int64, date string) string {
	return fmt.Sprintf("appointments:%d:%s", locationID, date)
}

func listAppointments(ctx context.Context, db bun.IDB, locationID int64, date string) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("location_id = ?", locationID).
		Where("date = ?", date).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getAppointment(ctx context.Context, db bun.IDB, id int64) (domain.Appointment, error) {
	var row domain.Appointment
	err := db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return row, nil
}

func (t dayTx) ListActiveStaff(ctx context.Context, locationID int64) ([]string, error) {
	return listActiveStaff(ctx, t.tx, locationID)
}

func (t dayTx) ListAppointments(ctx context.Context, locationID int64, date string) ([]domain.Appointment, error) {
	return listAppointments(ctx, t.tx, locationID, date)
}

func (t dayTx) GetAppointment(ctx context.Context, id int64) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t dayTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.ID = 0
	if _, err := t.tx.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (t dayTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	m := appt
	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("client", "service", "service_id", "service_name", "start_time", "end_time", "price", "staff", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (t dayTx) DeleteAppointment(ctx context.Context, id int64) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (t dayTx) MarkAttended(ctx context.Context, id int64, receipt domain.Receipt) error {
	res, err := t.tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.StatusAttended).
		Set("receiver_tax_id = ?", receipt.TaxID).
		Set("receiver_name = ?", receipt.Name).
		Set("receiver_surname = ?", receipt.Surname).
		Set("emitted_at = ?", receipt.EmittedAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status <> ?", domain.StatusAttended).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	if _, err := getAppointment(ctx, t.tx, id); err != nil {
		return err
	}
	return fmt.Errorf("appointment %d: %w", id, store.ErrConflict)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var (
	_ store.AppointmentRepository = (*Repo)(nil)
	_ store.DayTx                 = dayTx{}
)
