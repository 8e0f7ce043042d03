package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmorenov/plazacore/internal/domain"
)

type SpotRepository interface {
	ProvisionZone(ctx context.Context, facilityID int64, zone *string, category domain.VehicleCategory, fromNumber, toNumber int) (int64, error)
	ResetFreeSpots(ctx context.Context, facilityID int64, zone *string) (int64, error)
	Get(ctx context.Context, facilityID int64, number int) (*domain.Spot, error)
	ListByFacility(ctx context.Context, facilityID int64) ([]domain.Spot, error)
	Transition(ctx context.Context, facilityID int64, number int, ev domain.Event, reason, actor string, at time.Time) (domain.SpotStatus, error)
	StatusLog(ctx context.Context, facilityID int64, number int, limit int) ([]domain.StatusChange, error)
}

type PGSpotRepository struct {
	db *pgxpool.Pool
}

func NewSpotRepository(db *pgxpool.Pool) SpotRepository {
	return &PGSpotRepository{db: db}
}

// ProvisionZone bulk-creates a numbered range of Free spots. Existing
// numbers are left untouched so re-running a zone configuration is
// safe.
func (r *PGSpotRepository) ProvisionZone(ctx context.Context, facilityID int64, zone *string, category domain.VehicleCategory, fromNumber, toNumber int) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO spots (facility_id, number, category, zone, status)
		SELECT $1, n, $4, $5, $6 FROM generate_series($2::int, $3::int) AS n
		ON CONFLICT (facility_id, number) DO NOTHING`,
		facilityID, fromNumber, toNumber, category, zone, domain.SpotStatusFree)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ResetFreeSpots deletes Free spots for a capacity reset. Spots that
// are occupied, reserved or under maintenance are never touched.
func (r *PGSpotRepository) ResetFreeSpots(ctx context.Context, facilityID int64, zone *string) (int64, error) {
	var cmd pgconn.CommandTag
	var err error
	if zone == nil {
		cmd, err = r.db.Exec(ctx,
			`DELETE FROM spots WHERE facility_id=$1 AND status=$2`,
			facilityID, domain.SpotStatusFree)
	} else {
		cmd, err = r.db.Exec(ctx,
			`DELETE FROM spots WHERE facility_id=$1 AND status=$2 AND zone=$3`,
			facilityID, domain.SpotStatusFree, *zone)
	}
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PGSpotRepository) Get(ctx context.Context, facilityID int64, number int) (*domain.Spot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT facility_id, number, category, zone, status, created_at, updated_at
		 FROM spots WHERE facility_id=$1 AND number=$2`, facilityID, number)
	var s domain.Spot
	if err := row.Scan(&s.FacilityID, &s.Number, &s.Category, &s.Zone, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGSpotRepository) ListByFacility(ctx context.Context, facilityID int64) ([]domain.Spot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT facility_id, number, category, zone, status, created_at, updated_at
		 FROM spots WHERE facility_id=$1 ORDER BY number`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spots := make([]domain.Spot, 0)
	for rows.Next() {
		var s domain.Spot
		if err := rows.Scan(&s.FacilityID, &s.Number, &s.Category, &s.Zone, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		spots = append(spots, s)
	}
	return spots, rows.Err()
}

// Transition applies one transition-table event to a spot under a row
// lock and writes the audit entry atomically with the flip.
func (r *PGSpotRepository) Transition(ctx context.Context, facilityID int64, number int, ev domain.Event, reason, actor string, at time.Time) (domain.SpotStatus, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	current, _, err := lockSpot(ctx, tx, facilityID, number)
	if err != nil {
		return "", err
	}
	next, err := flipSpot(ctx, tx, facilityID, number, current, ev, reason, actor, at)
	if err != nil {
		return current, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return next, nil
}

func (r *PGSpotRepository) StatusLog(ctx context.Context, facilityID int64, number int, limit int) ([]domain.StatusChange, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, facility_id, spot_number, prior_status, next_status, reason, actor, occurred_at
		 FROM spot_status_log WHERE facility_id=$1 AND spot_number=$2
		 ORDER BY occurred_at DESC, id DESC LIMIT $3`, facilityID, number, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := make([]domain.StatusChange, 0)
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.ID, &c.FacilityID, &c.SpotNumber, &c.Prior, &c.Next, &c.Reason, &c.Actor, &c.OccurredAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

var _ SpotRepository = (*PGSpotRepository)(nil)
