package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmorenov/plazacore/internal/domain"
)

type OccupancyRepository interface {
	CreateWithSpot(ctx context.Context, occ *domain.Occupancy, actor string) error
	CreateFreeForm(ctx context.Context, occ *domain.Occupancy) error
	CreateFromReservation(ctx context.Context, occ *domain.Occupancy, code string, actor string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Occupancy, error)
	FindActiveByPlate(ctx context.Context, facilityID int64, plate string) (*domain.Occupancy, error)
	FindActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Occupancy, error)
	Close(ctx context.Context, id uuid.UUID, exitAt time.Time, actor string) (*domain.Occupancy, domain.SpotStatus, error)
	Relocate(ctx context.Context, id uuid.UUID, newSpot int, operatorID, reason string, at time.Time) (*domain.Movement, error)
}

const occupancyColumns = `id, facility_id, spot_number, plate, entry_at, exit_at, tariff_ref, payment_ref, created_at, updated_at`

type PGOccupancyRepository struct {
	db *pgxpool.Pool
}

func NewOccupancyRepository(db *pgxpool.Pool) OccupancyRepository {
	return &PGOccupancyRepository{db: db}
}

func scanOccupancy(row pgx.Row) (*domain.Occupancy, error) {
	var o domain.Occupancy
	err := row.Scan(&o.ID, &o.FacilityID, &o.SpotNumber, &o.Plate, &o.EntryAt, &o.ExitAt, &o.TariffRef, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGOccupancyRepository) insert(ctx context.Context, tx pgx.Tx, occ *domain.Occupancy) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO occupancies (id, facility_id, spot_number, plate, entry_at, tariff_ref, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		occ.ID, occ.FacilityID, occ.SpotNumber, occ.Plate, occ.EntryAt, occ.TariffRef, occ.PaymentRef).
		Scan(&occ.CreatedAt, &occ.UpdatedAt)
	if uniqueViolation(err, "") {
		return domain.ErrDuplicateActiveOccupancy
	}
	return err
}

// CreateWithSpot records a check-in bound to a spot: the Free→Occupied
// flip, its audit row and the occupancy insert commit together or not
// at all. The partial unique indexes turn a concurrent duplicate
// check-in into ErrDuplicateActiveOccupancy.
func (r *PGOccupancyRepository) CreateWithSpot(ctx context.Context, occ *domain.Occupancy, actor string) error {
	if occ.SpotNumber == nil {
		return errors.New("occupancy has no spot number")
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, _, err := lockSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber)
	if err != nil {
		return err
	}
	if current != domain.SpotStatusFree {
		return domain.ErrSpotUnavailable
	}
	if _, err := flipSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber, current, domain.EventOccupy, "vehicle check-in", actor, occ.EntryAt); err != nil {
		return err
	}
	if err := r.insert(ctx, tx, occ); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateFreeForm records a check-in without an assigned spot; only the
// per-plate uniqueness invariant applies.
func (r *PGOccupancyRepository) CreateFreeForm(ctx context.Context, occ *domain.Occupancy) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.insert(ctx, tx, occ); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateFromReservation converts a confirmed reservation into an
// occupancy: Reserved→Occupied, reservation Confirmed→Active and the
// occupancy insert are one atomic unit.
func (r *PGOccupancyRepository) CreateFromReservation(ctx context.Context, occ *domain.Occupancy, code string, actor string) error {
	if occ.SpotNumber == nil {
		return errors.New("occupancy has no spot number")
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, _, err := lockSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber)
	if err != nil {
		return err
	}
	if _, err := flipSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber, current, domain.EventConvertReservation, "reservation "+code+" converted", actor, occ.EntryAt); err != nil {
		return err
	}

	cmd, err := tx.Exec(ctx,
		`UPDATE reservations SET status=$2, updated_at=now() WHERE code=$1 AND status=$3`,
		code, domain.ReservationStatusActive, domain.ReservationStatusConfirmed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if err := r.insert(ctx, tx, occ); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGOccupancyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Occupancy, error) {
	return scanOccupancy(r.db.QueryRow(ctx,
		`SELECT `+occupancyColumns+` FROM occupancies WHERE id=$1`, id))
}

func (r *PGOccupancyRepository) FindActiveByPlate(ctx context.Context, facilityID int64, plate string) (*domain.Occupancy, error) {
	return scanOccupancy(r.db.QueryRow(ctx,
		`SELECT `+occupancyColumns+` FROM occupancies WHERE facility_id=$1 AND plate=$2 AND exit_at IS NULL`,
		facilityID, plate))
}

func (r *PGOccupancyRepository) FindActiveBySpot(ctx context.Context, facilityID int64, number int) (*domain.Occupancy, error) {
	return scanOccupancy(r.db.QueryRow(ctx,
		`SELECT `+occupancyColumns+` FROM occupancies WHERE facility_id=$1 AND spot_number=$2 AND exit_at IS NULL`,
		facilityID, number))
}

// Close checks a vehicle out. If the stay held a spot the spot is
// released in the same transaction: back to Free, or handed over to
// Reserved when a confirmed reservation is already waiting for it. A
// stay that began as a converted reservation completes that reservation
// here, so its row stops holding the spot. Returns the released spot's
// new status ("" for free-form stays).
func (r *PGOccupancyRepository) Close(ctx context.Context, id uuid.UUID, exitAt time.Time, actor string) (*domain.Occupancy, domain.SpotStatus, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	occ, err := scanOccupancy(tx.QueryRow(ctx,
		`SELECT `+occupancyColumns+` FROM occupancies WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, "", err
	}
	if !occ.Active() {
		return occ, "", domain.ErrAlreadyClosed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE occupancies SET exit_at=$2, updated_at=now() WHERE id=$1`, id, exitAt); err != nil {
		return nil, "", err
	}
	occ.ExitAt = &exitAt

	var released domain.SpotStatus
	if occ.SpotNumber != nil {
		current, _, err := lockSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber)
		if err != nil {
			return nil, "", err
		}

		// The stay's own converted reservation, if any, is the only one
		// that can be ACTIVE on this spot. Complete it so it stops
		// holding the spot under the active-per-spot index.
		if _, err := tx.Exec(ctx,
			`UPDATE reservations SET status=$3, updated_at=now()
			 WHERE facility_id=$1 AND spot_number=$2 AND status=$4`,
			occ.FacilityID, *occ.SpotNumber,
			domain.ReservationStatusCompleted, domain.ReservationStatusActive); err != nil {
			return nil, "", err
		}

		var waiting bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM reservations
				WHERE facility_id=$1 AND spot_number=$2 AND status=$3
			)`, occ.FacilityID, *occ.SpotNumber, domain.ReservationStatusConfirmed).
			Scan(&waiting); err != nil {
			return nil, "", err
		}

		ev := domain.EventRelease
		reason := "vehicle check-out"
		if waiting {
			ev = domain.EventReleaseToReserved
			reason = "vehicle check-out, handover to waiting reservation"
		}
		released, err = flipSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber, current, ev, reason, actor, exitAt)
		if err != nil {
			return nil, "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return occ, released, nil
}

// Relocate moves an active stay to a Free spot. Destination and origin
// flips, the occupancy update and the movement audit row commit as a
// single unit.
func (r *PGOccupancyRepository) Relocate(ctx context.Context, id uuid.UUID, newSpot int, operatorID, reason string, at time.Time) (*domain.Movement, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	occ, err := scanOccupancy(tx.QueryRow(ctx,
		`SELECT `+occupancyColumns+` FROM occupancies WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if !occ.Active() {
		return nil, domain.ErrAlreadyClosed
	}
	if occ.SpotNumber != nil && *occ.SpotNumber == newSpot {
		return nil, domain.ErrSpotUnavailable
	}

	destStatus, destZone, err := lockSpot(ctx, tx, occ.FacilityID, newSpot)
	if err != nil {
		return nil, err
	}
	if destStatus != domain.SpotStatusFree {
		return nil, domain.ErrSpotUnavailable
	}
	if _, err := flipSpot(ctx, tx, occ.FacilityID, newSpot, destStatus, domain.EventOccupy, "vehicle relocated in", operatorID, at); err != nil {
		return nil, err
	}

	var originZone *string
	if occ.SpotNumber != nil {
		originStatus, zone, err := lockSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber)
		if err != nil {
			return nil, err
		}
		originZone = zone
		if _, err := flipSpot(ctx, tx, occ.FacilityID, *occ.SpotNumber, originStatus, domain.EventRelease, "vehicle relocated out", operatorID, at); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE occupancies SET spot_number=$2, updated_at=now() WHERE id=$1`, id, newSpot); err != nil {
		return nil, err
	}

	mv := &domain.Movement{
		FacilityID:      occ.FacilityID,
		OccupancyID:     occ.ID,
		Plate:           occ.Plate,
		OriginSpot:      occ.SpotNumber,
		DestinationSpot: newSpot,
		OriginZone:      originZone,
		DestinationZone: destZone,
		OperatorID:      operatorID,
		Reason:          reason,
		OccurredAt:      at,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO movements (facility_id, occupancy_id, plate, origin_spot, destination_spot, origin_zone, destination_zone, operator_id, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		mv.FacilityID, mv.OccupancyID, mv.Plate, mv.OriginSpot, mv.DestinationSpot, mv.OriginZone, mv.DestinationZone, mv.OperatorID, mv.Reason, mv.OccurredAt).
		Scan(&mv.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return mv, nil
}

var _ OccupancyRepository = (*PGOccupancyRepository)(nil)
