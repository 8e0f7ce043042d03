package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmorenov/plazacore/internal/domain"
)

// ErrCodeTaken signals a reservation code collision; the caller
// regenerates the code and retries.
var ErrCodeTaken = errors.New("reservation code already taken")

type ReservationRepository interface {
	CreateWithHold(ctx context.Context, res *domain.Reservation, actor string) error
	GetByCode(ctx context.Context, code string) (*domain.Reservation, error)
	FindActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, code string, from []domain.ReservationStatus, to domain.ReservationStatus) (*domain.Reservation, error)
	ExpireDue(ctx context.Context, now time.Time) ([]domain.Reservation, error)
}

const reservationColumns = `id, code, facility_id, spot_number, plate, driver_id, hold_start, hold_end, amount_cents, status, grace_minutes, created_at, updated_at`

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(&res.ID, &res.Code, &res.FacilityID, &res.SpotNumber, &res.Plate, &res.DriverID,
		&res.HoldStart, &res.HoldEnd, &res.AmountCents, &res.Status, &res.GraceMinutes, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateWithHold books a hold: the Free→Reserved flip, its audit row
// and the reservation insert commit together. The active-hold partial
// unique index makes a concurrent second booking for the same spot
// lose with ErrSpotUnavailable rather than double-reserve.
func (r *PGReservationRepository) CreateWithHold(ctx context.Context, res *domain.Reservation, actor string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, _, err := lockSpot(ctx, tx, res.FacilityID, res.SpotNumber)
	if err != nil {
		return err
	}
	if current != domain.SpotStatusFree {
		return domain.ErrSpotUnavailable
	}
	if _, err := flipSpot(ctx, tx, res.FacilityID, res.SpotNumber, current, domain.EventReserve, "reservation "+res.Code, actor, res.CreatedAt); err != nil {
		return err
	}

	res.Status = domain.ReservationStatusPendingPayment
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (code, facility_id, spot_number, plate, driver_id, hold_start, hold_end, amount_cents, status, grace_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		res.Code, res.FacilityID, res.SpotNumber, res.Plate, res.DriverID,
		res.HoldStart, res.HoldEnd, res.AmountCents, res.Status, res.GraceMinutes).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if uniqueViolation(err, "reservations_code_key") {
		return ErrCodeTaken
	}
	if uniqueViolation(err, "reservations_active_spot_uniq") {
		return domain.ErrSpotUnavailable
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGReservationRepository) GetByCode(ctx context.Context, code string) (*domain.Reservation, error) {
	return scanReservation(r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE code=$1`, code))
}

func (r *PGReservationRepository) FindActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Reservation, error) {
	return scanReservation(r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE facility_id=$1 AND spot_number=$2 AND status = ANY($3)`,
		facilityID, number, domain.HoldingStatuses))
}

// UpdateStatus is a guarded read-modify-write: the row is only updated
// if its status is still one of from. ErrNotFound means either no such
// code or a lost guard; the caller re-fetches to tell them apart.
func (r *PGReservationRepository) UpdateStatus(ctx context.Context, code string, from []domain.ReservationStatus, to domain.ReservationStatus) (*domain.Reservation, error) {
	return scanReservation(r.db.QueryRow(ctx,
		`UPDATE reservations SET status=$2, updated_at=now()
		 WHERE code=$1 AND status = ANY($3)
		 RETURNING `+reservationColumns, code, to, from))
}

// ExpireDue flips every Confirmed reservation whose hold (plus grace)
// has elapsed to Expired, in one guarded statement. Safe to run
// repeatedly and concurrently with itself: a row can only match once.
func (r *PGReservationRepository) ExpireDue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE reservations SET status=$1, updated_at=now()
		 WHERE status=$2 AND hold_end + make_interval(mins => grace_minutes) < $3
		 RETURNING `+reservationColumns,
		domain.ReservationStatusExpired, domain.ReservationStatusConfirmed, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *res)
	}
	return expired, rows.Err()
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
