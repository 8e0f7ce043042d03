package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmorenov/plazacore/internal/domain"
)

// stayWindowBuffer widens the occupancy window on both sides when
// querying movements, tolerating clock skew between movement and
// occupancy timestamps.
const stayWindowBuffer = 5 * time.Minute

type MovementRepository interface {
	Record(ctx context.Context, mv *domain.Movement) error
	HistoryForStay(ctx context.Context, occupancyID uuid.UUID) ([]domain.Movement, error)
}

type PGMovementRepository struct {
	db *pgxpool.Pool
}

func NewMovementRepository(db *pgxpool.Pool) MovementRepository {
	return &PGMovementRepository{db: db}
}

// Record appends one movement. There is deliberately no update or
// delete operation on this table.
func (r *PGMovementRepository) Record(ctx context.Context, mv *domain.Movement) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO movements (facility_id, occupancy_id, plate, origin_spot, destination_spot, origin_zone, destination_zone, operator_id, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		mv.FacilityID, mv.OccupancyID, mv.Plate, mv.OriginSpot, mv.DestinationSpot,
		mv.OriginZone, mv.DestinationZone, mv.OperatorID, mv.Reason, mv.OccurredAt).
		Scan(&mv.ID)
}

// HistoryForStay returns the stay's movements ordered by timestamp
// ascending (the source-of-truth ordering; displays reverse it). The
// window is the occupancy's entry/exit bounds with a symmetric buffer.
func (r *PGMovementRepository) HistoryForStay(ctx context.Context, occupancyID uuid.UUID) ([]domain.Movement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.facility_id, m.occupancy_id, m.plate, m.origin_spot, m.destination_spot,
		       m.origin_zone, m.destination_zone, m.operator_id, m.reason, m.occurred_at
		FROM movements m
		JOIN occupancies o ON o.id = m.occupancy_id
		WHERE m.occupancy_id = $1
		  AND m.occurred_at >= o.entry_at - $2::interval
		  AND (o.exit_at IS NULL OR m.occurred_at <= o.exit_at + $2::interval)
		ORDER BY m.occurred_at ASC, m.id ASC`,
		occupancyID, stayWindowBuffer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0)
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(&m.ID, &m.FacilityID, &m.OccupancyID, &m.Plate, &m.OriginSpot, &m.DestinationSpot,
			&m.OriginZone, &m.DestinationZone, &m.OperatorID, &m.Reason, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

var _ MovementRepository = (*PGMovementRepository)(nil)
